// Command docmd converts a PDF into layout-aware Markdown.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:     "docmd",
	Short:   "docmd reconstructs Markdown from a PDF's glyph layout",
	Version: version,
	Long: `docmd is a layout-aware PDF-to-Markdown reconstruction engine.

It rebuilds headings, lists, code blocks, tables, and math from a PDF's
positioned glyph stream rather than its raw text order, repairs common
OCR and font-encoding corruption, and strips repeating headers/footers
across pages.`,
}

func init() {
	rootCmd.AddCommand(convertCmd)
}
