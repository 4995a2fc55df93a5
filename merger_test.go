package docmd

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func textPageEvents(text string, y float64) []ShaperEvent {
	events := []ShaperEvent{{Kind: EventBeginLine, Y: y}}
	x := 0.0
	for _, r := range text {
		events = append(events, charEvent(r, x, y, 12))
		x += 6
	}
	events = append(events, ShaperEvent{Kind: EventEndLine})
	return events
}

// fakeGlyphSource is an in-memory GlyphSource built from a list of pages,
// each page a list of text lines, for exercising ConvertDocument without
// a real PDF parser.
type fakeGlyphSource struct {
	pages   [][]string
	failAt  map[int]error
	closed  bool
}

func (f *fakeGlyphSource) PageCount(ctx context.Context) (int, error) {
	return len(f.pages), nil
}

func (f *fakeGlyphSource) Page(ctx context.Context, index int) (float64, float64, []ShaperEvent, error) {
	if err, ok := f.failAt[index]; ok {
		return 0, 0, nil, err
	}
	var events []ShaperEvent
	y := 700.0
	for _, line := range f.pages[index] {
		events = append(events, textPageEvents(line, y)...)
		y -= 14
	}
	return 612, 792, events, nil
}

func (f *fakeGlyphSource) Close() error {
	f.closed = true
	return nil
}

func TestConvertDocumentSerialHappyPath(t *testing.T) {
	src := &fakeGlyphSource{pages: [][]string{
		{"This is the first page of plain prose text that reads normally."},
		{"This is the second page of plain prose text that reads normally."},
	}}
	result, err := ConvertDocument(context.Background(), src, DefaultConfig(), ConvertOptions{}, nil, nil, 1)
	if err != nil {
		t.Fatalf("ConvertDocument() error = %v", err)
	}
	if len(result.PageFailures) != 0 {
		t.Errorf("PageFailures = %v, want none", result.PageFailures)
	}
	if !strings.Contains(result.Markdown, "first page") {
		t.Errorf("Markdown = %q, missing first page content", result.Markdown)
	}
	if !strings.Contains(result.Markdown, "second page") {
		t.Errorf("Markdown = %q, missing second page content", result.Markdown)
	}
}

func TestConvertDocumentZeroPagesIsInvalidInput(t *testing.T) {
	src := &fakeGlyphSource{pages: nil}
	_, err := ConvertDocument(context.Background(), src, DefaultConfig(), ConvertOptions{}, nil, nil, 1)
	if err == nil {
		t.Fatal("ConvertDocument() error = nil, want ErrInvalidInput")
	}
	var docErr *Error
	if !errors.As(err, &docErr) || docErr.Code != ErrInvalidInput {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestConvertDocumentSinglePageFailureDoesNotAbortDocument(t *testing.T) {
	src := &fakeGlyphSource{
		pages: [][]string{
			{"Page zero has normal prose content describing something simple."},
			{"Page one also has normal prose content describing something else."},
			{"Page two has normal prose content too, completing the document."},
		},
		failAt: map[int]error{1: errors.New("simulated page extraction failure")},
	}
	result, err := ConvertDocument(context.Background(), src, DefaultConfig(), ConvertOptions{}, nil, nil, 1)
	if err != nil {
		t.Fatalf("ConvertDocument() error = %v, want nil (single page failure is non-fatal)", err)
	}
	if len(result.PageFailures) != 1 {
		t.Fatalf("PageFailures = %v, want exactly 1 failure", result.PageFailures)
	}
	if result.PageFailures[0].Page != 1 {
		t.Errorf("failed page index = %d, want 1", result.PageFailures[0].Page)
	}
	if !strings.Contains(result.Markdown, "Page zero") || !strings.Contains(result.Markdown, "Page two") {
		t.Errorf("Markdown = %q, want the surviving pages' content present", result.Markdown)
	}
}

func TestConvertDocumentEmptyPageRecordsDegenerateLayout(t *testing.T) {
	src := &fakeGlyphSource{pages: [][]string{{}}}
	result, err := ConvertDocument(context.Background(), src, DefaultConfig(), ConvertOptions{}, nil, nil, 1)
	if err != nil {
		t.Fatalf("ConvertDocument() error = %v", err)
	}
	if len(result.PageFailures) != 1 {
		t.Fatalf("PageFailures = %v, want exactly 1 DegenerateLayout failure", result.PageFailures)
	}
	if result.PageFailures[0].Err.Code != ErrDegenerateLayout {
		t.Errorf("failure code = %v, want ErrDegenerateLayout", result.PageFailures[0].Err.Code)
	}
}

func TestConvertDocumentCancelledContextIsFatal(t *testing.T) {
	src := &fakeGlyphSource{pages: [][]string{
		{"some content"}, {"more content"}, {"even more content"},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ConvertDocument(ctx, src, DefaultConfig(), ConvertOptions{}, nil, nil, 1)
	var docErr *Error
	if !errors.As(err, &docErr) || docErr.Code != ErrCancelled {
		t.Errorf("error = %v, want ErrCancelled", err)
	}
}

func TestConvertDocumentParallelMatchesSerialOutput(t *testing.T) {
	pages := [][]string{
		{"Page zero has normal prose content describing something simple."},
		{"Page one also has normal prose content describing something else."},
		{"Page two has normal prose content too, completing the document."},
		{"Page three wraps things up with a final paragraph of plain text."},
	}
	serial, err := ConvertDocument(context.Background(), &fakeGlyphSource{pages: pages}, DefaultConfig(), ConvertOptions{}, nil, nil, 1)
	if err != nil {
		t.Fatalf("serial ConvertDocument() error = %v", err)
	}
	parallel, err := ConvertDocument(context.Background(), &fakeGlyphSource{pages: pages}, DefaultConfig(), ConvertOptions{}, nil, nil, 4)
	if err != nil {
		t.Fatalf("parallel ConvertDocument() error = %v", err)
	}
	if serial.Markdown != parallel.Markdown {
		t.Errorf("parallel Markdown differs from serial:\nserial:   %q\nparallel: %q", serial.Markdown, parallel.Markdown)
	}
}

func TestConvertDocumentDeterministic(t *testing.T) {
	pages := [][]string{
		{"Alpha page content describing the first section of the document."},
		{"Beta page content describing the second section of the document."},
	}
	first, err := ConvertDocument(context.Background(), &fakeGlyphSource{pages: pages}, DefaultConfig(), ConvertOptions{}, nil, nil, 1)
	if err != nil {
		t.Fatalf("ConvertDocument() error = %v", err)
	}
	second, err := ConvertDocument(context.Background(), &fakeGlyphSource{pages: pages}, DefaultConfig(), ConvertOptions{}, nil, nil, 1)
	if err != nil {
		t.Fatalf("ConvertDocument() error = %v", err)
	}
	if first.Markdown != second.Markdown {
		t.Errorf("two runs on the same input produced different Markdown:\nfirst:  %q\nsecond: %q", first.Markdown, second.Markdown)
	}
}

func TestOcrTextToMarkdownSplitsParagraphsOnBlankLines(t *testing.T) {
	in := "first line\nsecond line\n\nthird line"
	got := ocrTextToMarkdown(in)
	want := "first line second line\n\nthird line"
	if got != want {
		t.Errorf("ocrTextToMarkdown() = %q, want %q", got, want)
	}
}

type stubOCRAdapter struct {
	text string
	err  error
}

func (s stubOCRAdapter) Recognize(ctx context.Context, raster []byte, language string) (string, error) {
	return s.text, s.err
}

func TestTryOCRFallbackRecoversEmptyGlyphPage(t *testing.T) {
	cfg := DefaultConfig()
	p := PageInput{Index: 0, Raster: func() []byte { return []byte{1, 2, 3} }}
	outcome, ok := tryOCRFallback(p, nil, cfg, ConvertOptions{}, stubOCRAdapter{text: "recovered text here"}, nil)
	if !ok {
		t.Fatal("tryOCRFallback() ok = false, want true")
	}
	if !strings.Contains(outcome.Markdown, "recovered text here") {
		t.Errorf("Markdown = %q, want OCR text present", outcome.Markdown)
	}
}

func TestTryOCRFallbackSkippedWhenGlyphLinesPresentAndOCRNotRequested(t *testing.T) {
	cfg := DefaultConfig()
	lines := []Line{{Text: "already have text"}}
	p := PageInput{Index: 0, Raster: func() []byte { return []byte{1} }}
	_, ok := tryOCRFallback(p, lines, cfg, ConvertOptions{EnableOCR: false}, stubOCRAdapter{text: "x"}, nil)
	if ok {
		t.Error("tryOCRFallback() ok = true, want false (glyph text already present)")
	}
}

func TestMergeOutcomesAggregatesGarbledPages(t *testing.T) {
	cfg := DefaultConfig()
	garbledText := "K(��LC>@�+ ��Mℎ>@�)"
	outcomes := []PageOutcome{
		{Index: 0, Markdown: "clean page", Lines: []string{"clean page"}},
		{Index: 1, Markdown: garbledText, Lines: []string{garbledText}, Advisory: DetectGarbledFont(garbledText, cfg)},
	}
	result := mergeOutcomes(outcomes, cfg, ConvertOptions{})
	if len(result.GarbledPages) == 0 {
		t.Error("GarbledPages is empty, want page 1 flagged")
	}
	if _, ok := result.GarbledPages[1]; !ok {
		t.Errorf("GarbledPages = %v, want page 1 present", result.GarbledPages)
	}
}
