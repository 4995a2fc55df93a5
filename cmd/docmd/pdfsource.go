package main

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/glyphforge/docmd"
)

// pdfGlyphSource is the reference GlyphSource implementation: it wraps
// ledongthuc/pdf, the same PDF byte parser docsaf/pdf.go uses, and
// turns each page's positioned pdf.Text runs into the shaper event
// stream the docmd core consumes. This is the only place in the whole
// module that imports a PDF-parsing library; the core package never
// touches PDF bytes (§1/§6). It deliberately does not implement
// docmd.RasterSource: rasterizing a page to an image needs a renderer
// this module does not depend on, so the OCR adapter is never reached
// from the CLI: with --ocr, pages with glyph text are converted from
// their glyphs, pages without any are recorded as DegenerateLayout, and
// no OcrUnavailable failure is recorded (exit code 5 does not occur).
type pdfGlyphSource struct {
	reader *pdf.Reader
}

// newPDFGlyphSource opens a PDF from raw bytes, retrying with the given
// password if the PDF is encrypted. ledongthuc/pdf reports an encrypted,
// unopenable document as a plain error; we classify it by message since
// the library does not export a dedicated encryption error type.
func newPDFGlyphSource(content []byte, password string) (*pdfGlyphSource, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		if !looksLikeEncryptionError(err) {
			return nil, &docmd.Error{Code: docmd.ErrInvalidInput, Err: err}
		}
		if password == "" {
			return nil, &docmd.Error{Code: docmd.ErrPasswordRequired, Err: err}
		}
		reader, err = pdf.NewReaderEncrypted(bytes.NewReader(content), int64(len(content)), func() string { return password })
		if err != nil {
			return nil, &docmd.Error{Code: docmd.ErrPasswordIncorrect, Err: err}
		}
	}
	return &pdfGlyphSource{reader: reader}, nil
}

func looksLikeEncryptionError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "encrypt") || strings.Contains(msg, "password")
}

func (s *pdfGlyphSource) PageCount(ctx context.Context) (int, error) {
	return s.reader.NumPage(), nil
}

func (s *pdfGlyphSource) Page(ctx context.Context, index int) (float64, float64, []docmd.ShaperEvent, error) {
	page := s.reader.Page(index + 1)
	if page.V.IsNull() {
		return 0, 0, nil, nil
	}

	width, height := pageDimensions(page)
	content := page.Content()
	events := textsToEvents(content.Text)
	// ledongthuc/pdf reports Y upward from the page bottom; the core reads
	// ascending Y as top-to-bottom, so convert to a top-origin Y.
	for i := range events {
		switch events[i].Kind {
		case docmd.EventBeginLine:
			events[i].Y = height - events[i].Y
		case docmd.EventChar:
			events[i].Glyph.Y = height - events[i].Glyph.Y
		}
	}
	return width, height, events, nil
}

func pageDimensions(page pdf.Page) (float64, float64) {
	box := page.V.Key("MediaBox")
	if box.Len() != 4 {
		return 612, 792 // US Letter default, matching ledongthuc/pdf's own fallback
	}
	return box.Index(2).Float64(), box.Index(3).Float64()
}

// textsToEvents groups ledongthuc/pdf's flat []pdf.Text by Y coordinate
// into BeginLine/Char/EndLine events, the same row-grouping idea as
// docsaf/pdf_layout.go's groupIntoRows, but feeding the docmd shaper
// contract instead of docsaf's TextBlock model.
func textsToEvents(texts []pdf.Text) []docmd.ShaperEvent {
	if len(texts) == 0 {
		return nil
	}

	sorted := append([]pdf.Text(nil), texts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y // top of page first
		}
		return sorted[i].X < sorted[j].X
	})

	var events []docmd.ShaperEvent
	curY := sorted[0].Y
	events = append(events, docmd.ShaperEvent{Kind: docmd.EventBeginLine, Y: curY})
	for _, t := range sorted {
		if t.Y != curY {
			events = append(events, docmd.ShaperEvent{Kind: docmd.EventEndLine})
			curY = t.Y
			events = append(events, docmd.ShaperEvent{Kind: docmd.EventBeginLine, Y: curY})
		}
		for _, r := range t.S {
			events = append(events, docmd.ShaperEvent{
				Kind: docmd.EventChar,
				Glyph: docmd.Glyph{
					Char:       r,
					X:          t.X,
					Y:          t.Y,
					FontSize:   t.FontSize,
					FontFamily: t.Font,
					Weight:     fontWeightOf(t.Font),
					Style:      fontStyleOf(t.Font),
				},
			})
		}
	}
	events = append(events, docmd.ShaperEvent{Kind: docmd.EventEndLine})
	return events
}

func fontWeightOf(font string) docmd.FontWeight {
	if strings.Contains(strings.ToLower(font), "bold") {
		return docmd.WeightBold
	}
	return docmd.WeightNormal
}

func fontStyleOf(font string) docmd.FontStyle {
	lower := strings.ToLower(font)
	if strings.Contains(lower, "italic") || strings.Contains(lower, "oblique") {
		return docmd.StyleItalic
	}
	return docmd.StyleNormalFont
}

func (s *pdfGlyphSource) Close() error { return nil }
