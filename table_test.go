package docmd

import (
	"strings"
	"testing"
)

func TestDetectBorderedTable(t *testing.T) {
	cfg := DefaultConfig()
	lines := []string{
		"| Name | Age | City |",
		"|------|-----|------|",
		"| John | 30  | NYC  |",
		"| Jane | 25  | LA   |",
	}
	g, ok := DetectBorderedTable(lines, 0, cfg)
	if !ok {
		t.Fatal("DetectBorderedTable() ok = false, want true")
	}
	if g.Cols != 3 {
		t.Errorf("Cols = %d, want 3", g.Cols)
	}
	if len(g.Rows) != 3 {
		t.Fatalf("len(Rows) = %d, want 3 (separator row dropped)", len(g.Rows))
	}
	tbl, ok := BuildTable(g, "bordered", cfg)
	if !ok {
		t.Fatal("BuildTable() ok = false, want true")
	}
	if !tbl.HasHeader {
		t.Error("HasHeader = false, want true")
	}
	md := RenderTable(tbl)
	if !containsAll(md, "| Name | Age | City |", "| John | 30 | NYC |", "| Jane | 25 | LA |") {
		t.Errorf("RenderTable() = %q, missing expected rows", md)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func TestDetectBorderedTableRejectsTooFewRows(t *testing.T) {
	cfg := DefaultConfig()
	_, ok := DetectBorderedTable([]string{"| only one row |"}, 0, cfg)
	if ok {
		t.Error("DetectBorderedTable() with a single row: ok = true, want false")
	}
}

func TestDetectASCIITable(t *testing.T) {
	cfg := DefaultConfig()
	lines := []string{
		"Name     Qty   Price",
		"Widget   12    9.99",
		"Gadget   4     19.50",
		"Gizmo    31    3.25",
	}
	g, ok := DetectASCIITable(lines, 0, cfg)
	if !ok {
		t.Fatal("DetectASCIITable() ok = false, want true")
	}
	if g.Cols != 3 {
		t.Errorf("Cols = %d, want 3", g.Cols)
	}
	if len(g.Rows) != 4 {
		t.Errorf("len(Rows) = %d, want 4", len(g.Rows))
	}
}

func TestDetectASCIITableRejectsInconsistentColumns(t *testing.T) {
	cfg := DefaultConfig()
	lines := []string{
		"The quick brown fox jumped over the lazy dog in the afternoon sun.",
		"It was warm and the field stretched far beyond the old fence line.",
	}
	if _, ok := DetectASCIITable(lines, 0, cfg); ok {
		t.Error("DetectASCIITable() on prose: ok = true, want false")
	}
}

func TestDetectPositionedTable(t *testing.T) {
	cfg := DefaultConfig()
	rows := [][]PositionedCell{
		{{Text: "Name", X: 10}, {Text: "Qty", X: 200}, {Text: "Price", X: 350}},
		{{Text: "Widget", X: 10}, {Text: "12", X: 200}, {Text: "9.99", X: 350}},
		{{Text: "Gadget", X: 10}, {Text: "4", X: 200}, {Text: "19.50", X: 350}},
	}
	g, ok := DetectPositionedTable(rows, 0, cfg)
	if !ok {
		t.Fatal("DetectPositionedTable() ok = false, want true")
	}
	if g.Cols != 3 {
		t.Errorf("Cols = %d, want 3", g.Cols)
	}
}

func TestCellsByRowFromLinesSplitsOnWideGlyphGaps(t *testing.T) {
	cfg := DefaultConfig()
	fontSize := 12.0
	glyphs := []Glyph{
		{Char: 'N', X: 10, FontSize: fontSize},
		{Char: 'a', X: 16, FontSize: fontSize},
		{Char: 'm', X: 22, FontSize: fontSize},
		{Char: 'e', X: 28, FontSize: fontSize},
		// wide gap simulating a column boundary, well past the
		// single-space-width continuation threshold.
		{Char: 'Q', X: 200, FontSize: fontSize},
		{Char: 't', X: 206, FontSize: fontSize},
		{Char: 'y', X: 212, FontSize: fontSize},
	}
	rows := cellsByRowFromLines([]Line{{Glyphs: glyphs}}, cfg)
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if len(rows[0]) != 2 {
		t.Fatalf("len(rows[0]) = %d, want 2 cells, got %+v", len(rows[0]), rows[0])
	}
	if rows[0][0].Text != "Name" || rows[0][1].Text != "Qty" {
		t.Errorf("rows[0] = %+v, want Name/Qty", rows[0])
	}
}

func TestGridProfileRejectsProseFragments(t *testing.T) {
	cfg := DefaultConfig()
	g := Grid{
		Cols: 2,
		Rows: [][]string{
			{"This sentence reads as genuine prose that wrapped across", "a two column academic layout and never really closed cleanly."},
			{"Another long line of continuous English text appears here", "describing the same broken paragraph continuation problem again."},
		},
	}
	profile := Profile(g)
	score := profile.Score(allRowsEqualLength(g))
	if profile.Accept(score, cfg) {
		t.Errorf("GridProfile.Accept() = true for prose-fragment grid, want false (score=%v)", score)
	}
}

func TestDetectTablesOverlapSuppression(t *testing.T) {
	cfg := DefaultConfig()
	lines := []string{
		"| Name | Age |",
		"|------|-----|",
		"| John | 30  |",
		"| Jane | 25  |",
	}
	tables := DetectTables(lines, 0, nil, cfg)
	if len(tables) != 1 {
		t.Fatalf("len(tables) = %d, want 1 (ASCII strategy should not double-detect the bordered table)", len(tables))
	}
	if tables[0].DetectionType != "bordered" {
		t.Errorf("DetectionType = %q, want %q", tables[0].DetectionType, "bordered")
	}
}

func TestColumnAlignmentNumericIsRight(t *testing.T) {
	g := Grid{
		Cols: 2,
		Rows: [][]string{
			{"Name", "Total"},
			{"Widget", "9.99"},
			{"Gadget", "19.50"},
		},
	}
	if got := columnAlignment(g, 1, true, 0.70); got != AlignRight {
		t.Errorf("columnAlignment(numeric col) = %v, want %v", got, AlignRight)
	}
	if got := columnAlignment(g, 0, true, 0.70); got != AlignLeft {
		t.Errorf("columnAlignment(text col) = %v, want %v", got, AlignLeft)
	}
}
