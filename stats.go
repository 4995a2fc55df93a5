package docmd

import (
	"bytes"
	"fmt"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// statsSidecar is the YAML shape written alongside the Markdown output
// by the reference CLI's --stats flag, grounded on
// docsaf/markdown.go's front-matter yaml.v3 usage.
type statsSidecar struct {
	WordCount     int  `yaml:"word_count"`
	HeadingCount  int  `yaml:"heading_count"`
	TableCount    int  `yaml:"table_count"`
	ListItemCount int  `yaml:"list_item_count"`
	ImageCount    int  `yaml:"image_count"`
	PageCount     int  `yaml:"page_count"`
	Garbled       bool `yaml:"garbled_pages_present"`
}

// WriteStatsSidecar marshals a DocumentStats as YAML to w, for the CLI's
// `--stats` sidecar file.
func WriteStatsSidecar(w io.Writer, stats DocumentStats, anyGarbled bool) error {
	sidecar := statsSidecar{
		WordCount:     stats.WordCount,
		HeadingCount:  stats.HeadingCount,
		TableCount:    stats.TableCount,
		ListItemCount: stats.ListItemCount,
		ImageCount:    stats.ImageCount,
		PageCount:     stats.PageCount,
		Garbled:       anyGarbled,
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(sidecar)
}

// headingRecord is one heading captured by walking the rendered
// Markdown's goldmark AST, used by ValidateMarkdownStructure's
// self-check.
type headingRecord struct {
	Level int
	Text  string
}

func extractHeadingText(n ast.Node, source []byte) string {
	var b bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
	}
	return b.String()
}

// walkHeadings parses markdown with goldmark and returns its headings in
// document order, grounded on docsaf/markdown.go's Process walker (the
// same heading-stack AST walk, used here only for validation rather than
// section splitting).
func walkHeadings(markdown string) []headingRecord {
	source := []byte(markdown)
	md := goldmark.New()
	reader := gmtext.NewReader(source)
	doc := md.Parser().Parse(reader)

	var headings []headingRecord
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			headings = append(headings, headingRecord{
				Level: h.Level,
				Text:  extractHeadingText(h, source),
			})
		}
		return ast.WalkContinue, nil
	})
	return headings
}

// ValidateMarkdownStructure is the Structured-Text Emitter's self-check
// (§4.7/DOMAIN STACK wiring): it re-parses the engine's own emitted
// Markdown with goldmark and confirms the number of headings the AST
// sees matches the number ComputeStats counted from the raw
// `^#+\s+.+$` line pattern. A mismatch means the emitter produced
// Markdown goldmark itself cannot parse as the intended heading
// structure (e.g. an un-escaped `#` inside a paragraph that accidentally
// looks like a heading to the line-based counter but not to a real
// parser, or vice versa).
func ValidateMarkdownStructure(markdown string, stats DocumentStats) error {
	headings := walkHeadings(markdown)
	if len(headings) != stats.HeadingCount {
		return fmt.Errorf("docmd: markdown AST has %d headings, stats counted %d", len(headings), stats.HeadingCount)
	}
	for _, h := range headings {
		if h.Level < 1 || h.Level > 6 {
			return fmt.Errorf("docmd: heading %q has invalid level %d", h.Text, h.Level)
		}
	}
	return nil
}
