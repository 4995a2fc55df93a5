package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glyphforge/docmd"
)

var convertFlags struct {
	output              string
	ocr                 bool
	language            string
	noTables            bool
	noMath              bool
	noHeaderFooter      bool
	noHyphenationFix    bool
	preserveLayout      bool
	password            string
	parallelism         int
	logStyle            string
	statsPath           string
	s3URL               string
}

var convertCmd = &cobra.Command{
	Use:   "convert <pdf>",
	Short: "Convert a PDF into Markdown",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.StringVarP(&convertFlags.output, "output", "o", "", "write Markdown to this path instead of stdout")
	f.BoolVar(&convertFlags.ocr, "ocr", false, "attempt OCR even when glyph text is present; a page's glyph text is still used when it has any")
	f.StringVar(&convertFlags.language, "language", "eng", "ISO language code passed to the OCR adapter")
	f.BoolVar(&convertFlags.noTables, "no-tables", false, "disable table detection")
	f.BoolVar(&convertFlags.noMath, "no-math", false, "disable math tokenization")
	f.BoolVar(&convertFlags.noHeaderFooter, "no-header-footer-removal", false, "disable repeating header/footer stripping")
	f.BoolVar(&convertFlags.noHyphenationFix, "no-hyphenation-fix", false, "disable end-of-line hyphenation repair")
	f.BoolVar(&convertFlags.preserveLayout, "preserve-layout", false, "keep runs of more than two blank lines instead of collapsing them")
	f.StringVar(&convertFlags.password, "password", "", "password for an encrypted PDF")
	f.IntVar(&convertFlags.parallelism, "parallelism", 1, "number of pages to convert concurrently")
	f.StringVar(&convertFlags.logStyle, "log", "terminal", "logging style: terminal, json, logfmt, noop")
	f.StringVar(&convertFlags.statsPath, "stats", "", "write a YAML stats sidecar to this path")
	f.StringVar(&convertFlags.s3URL, "s3", "", "fetch the input PDF from this s3://bucket/key URL instead of the local filesystem")
}

// exitCode is a CLI-level error carrying the process exit status
// required by §6, distinct from docmd.Error's pipeline taxonomy.
type exitCode struct {
	code int
	err  error
}

func (e *exitCode) Error() string { return e.err.Error() }
func (e *exitCode) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var ec *exitCode
	if errors.As(err, &ec) {
		return ec.code
	}
	return 1
}

func runConvert(cmd *cobra.Command, args []string) error {
	path := args[0]

	logger := docmd.NewLogger(&docmd.LogConfig{Style: docmd.LogStyle(convertFlags.logStyle)})
	defer logger.Sync() //nolint:errcheck

	content, err := readInput(path)
	if err != nil {
		return &exitCode{code: 2, err: fmt.Errorf("docmd: reading input: %w", err)}
	}

	src, err := newPDFGlyphSource(content, convertFlags.password)
	if err != nil {
		return mapOpenError(err)
	}
	defer src.Close()

	opts := docmd.ConvertOptions{
		EnableOCR:              convertFlags.ocr,
		Language:               convertFlags.language,
		DisableTables:          convertFlags.noTables,
		DisableMath:            convertFlags.noMath,
		DisableHeaderFooter:    convertFlags.noHeaderFooter,
		DisableHyphenationFix:  convertFlags.noHyphenationFix,
		PreserveLayout:         convertFlags.preserveLayout,
		Password:               convertFlags.password,
		EnableCodeFences:       true,
	}

	result, err := docmd.ConvertDocument(context.Background(), src, docmd.DefaultConfig(), opts, nil, logger, convertFlags.parallelism)
	if err != nil {
		return mapPipelineError(err)
	}

	if err := writeOutput(convertFlags.output, result.Markdown); err != nil {
		return &exitCode{code: 1, err: err}
	}

	if convertFlags.statsPath != "" {
		if err := writeStats(convertFlags.statsPath, result); err != nil {
			return &exitCode{code: 1, err: err}
		}
	}

	if ocrRequired(result) {
		return &exitCode{code: 5, err: fmt.Errorf("docmd: %d page(s) needed OCR but no adapter was configured", len(result.PageFailures))}
	}

	return nil
}

func ocrRequired(result docmd.DocumentResult) bool {
	for _, f := range result.PageFailures {
		if f.Err.Code == docmd.ErrOCRUnavailable {
			return true
		}
	}
	return false
}

func mapOpenError(err error) error {
	var docErr *docmd.Error
	if errors.As(err, &docErr) {
		switch docErr.Code {
		case docmd.ErrPasswordRequired:
			return &exitCode{code: 3, err: docErr}
		case docmd.ErrPasswordIncorrect:
			return &exitCode{code: 4, err: docErr}
		}
	}
	return &exitCode{code: 2, err: err}
}

func mapPipelineError(err error) error {
	var docErr *docmd.Error
	if errors.As(err, &docErr) {
		switch docErr.Code {
		case docmd.ErrPasswordRequired:
			return &exitCode{code: 3, err: docErr}
		case docmd.ErrPasswordIncorrect:
			return &exitCode{code: 4, err: docErr}
		case docmd.ErrInvalidInput:
			return &exitCode{code: 2, err: docErr}
		}
	}
	return &exitCode{code: 1, err: err}
}

func readInput(path string) ([]byte, error) {
	if convertFlags.s3URL != "" {
		return fetchS3Object(context.Background(), convertFlags.s3URL)
	}
	return os.ReadFile(path)
}

func writeOutput(path, markdown string) error {
	if path == "" {
		_, err := fmt.Println(markdown)
		return err
	}
	return os.WriteFile(path, []byte(markdown), 0o644)
}

func writeStats(path string, result docmd.DocumentResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("docmd: creating stats sidecar: %w", err)
	}
	defer f.Close()
	return docmd.WriteStatsSidecar(f, result.Stats, len(result.GarbledPages) > 0)
}
