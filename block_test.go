package docmd

import "testing"

func textLine(text string, y, size float64) Line {
	return Line{Text: text, Y: y, MinX: 0, MaxX: float64(len(text)) * size * 0.6, AvgFontSize: size}
}

func TestGroupBlocksSplitsOnLargeGap(t *testing.T) {
	cfg := DefaultConfig()
	lines := []Line{
		textLine("line one", 0, 12),
		textLine("line two", 16, 12),
		textLine("far below", 200, 12), // gap far exceeds 2.5 * 12
	}

	blocks := GroupBlocks(lines, cfg)
	if len(blocks) != 2 {
		t.Fatalf("GroupBlocks() returned %d blocks, want 2", len(blocks))
	}
	if blocks[0].Text != "line one\nline two" {
		t.Errorf("blocks[0].Text = %q", blocks[0].Text)
	}
	if blocks[1].Text != "far below" {
		t.Errorf("blocks[1].Text = %q", blocks[1].Text)
	}
}

func TestGroupBlocksEmpty(t *testing.T) {
	if got := GroupBlocks(nil, DefaultConfig()); got != nil {
		t.Errorf("GroupBlocks(nil) = %v, want nil", got)
	}
}

func TestClassifyBlockList(t *testing.T) {
	cfg := DefaultConfig()
	b := buildBlock([]Line{
		textLine("- first item", 0, 12),
		textLine("- second item", 16, 12),
		textLine("- third item", 32, 12),
	})
	cb := ClassifyBlock(b, 12, cfg)
	if cb.Type != BlockList {
		t.Errorf("Type = %v, want %v", cb.Type, BlockList)
	}
}

func TestClassifyBlockCode(t *testing.T) {
	cfg := DefaultConfig()
	b := buildBlock([]Line{
		textLine("func main() {", 0, 12),
		textLine("    fmt.Println(\"hi\")", 16, 12),
		textLine("}", 32, 12),
	})
	cb := ClassifyBlock(b, 12, cfg)
	if cb.Type != BlockCode {
		t.Errorf("Type = %v, want %v", cb.Type, BlockCode)
	}
}

func TestClassifyBlockHeading(t *testing.T) {
	cfg := DefaultConfig()
	b := buildBlock([]Line{
		textLine("Chapter One", 0, 24),
	})
	cb := ClassifyBlock(b, 12, cfg)
	if cb.Type != BlockHeading {
		t.Errorf("Type = %v, want %v", cb.Type, BlockHeading)
	}
	if cb.HeadingLevel != 1 {
		t.Errorf("HeadingLevel = %d, want 1 for 2x body size", cb.HeadingLevel)
	}
}

func TestClassifyBlockProse(t *testing.T) {
	cfg := DefaultConfig()
	b := buildBlock([]Line{
		textLine("The quick brown fox jumps over the lazy dog near the river bank.", 0, 12),
		textLine("It was a calm afternoon and the wind had just begun to settle down.", 16, 12),
	})
	cb := ClassifyBlock(b, 12, cfg)
	if cb.Type != BlockProse {
		t.Errorf("Type = %v, want %v", cb.Type, BlockProse)
	}
}

func TestClassifyBlockPotentialTable(t *testing.T) {
	cfg := DefaultConfig()
	b := buildBlock([]Line{
		textLine("Name     Qty   Price", 0, 12),
		textLine("Widget   12    9.99", 16, 12),
		textLine("Gadget   4     19.50", 32, 12),
		textLine("Gizmo    31    3.25", 48, 12),
	})
	cb := ClassifyBlock(b, 12, cfg)
	if cb.Type != BlockPotentialTable {
		t.Errorf("Type = %v, want %v", cb.Type, BlockPotentialTable)
	}
}

func TestRelabelProseColumns(t *testing.T) {
	blocks := []ClassifiedBlock{
		{Type: BlockProse},
		{Type: BlockHeading},
	}
	RelabelProseColumns(blocks, true)
	if blocks[0].Type != BlockProseColumn {
		t.Errorf("blocks[0].Type = %v, want %v", blocks[0].Type, BlockProseColumn)
	}
	if blocks[1].Type != BlockHeading {
		t.Errorf("blocks[1].Type changed unexpectedly to %v", blocks[1].Type)
	}
}

func TestRelabelProseColumnsSingleColumnNoOp(t *testing.T) {
	blocks := []ClassifiedBlock{{Type: BlockProse}}
	RelabelProseColumns(blocks, false)
	if blocks[0].Type != BlockProse {
		t.Errorf("single-column prose was relabeled to %v", blocks[0].Type)
	}
}

func TestMergeAdjacentSameType(t *testing.T) {
	blocks := []ClassifiedBlock{
		{Block: Block{Text: "a", MaxY: 10}, Type: BlockProse, Confidence: 0.8},
		{Block: Block{Text: "b", MaxY: 20}, Type: BlockProse, Confidence: 0.6},
		{Block: Block{Text: "c", MaxY: 30}, Type: BlockHeading, Confidence: 1},
	}
	merged := MergeAdjacentSameType(blocks)
	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2", len(merged))
	}
	if merged[0].Text != "a\nb" {
		t.Errorf("merged[0].Text = %q", merged[0].Text)
	}
	if merged[0].Confidence != 0.7 {
		t.Errorf("merged[0].Confidence = %v, want 0.7", merged[0].Confidence)
	}
}

func TestMergeAdjacentSameTypeNeverMergesHeadings(t *testing.T) {
	blocks := []ClassifiedBlock{
		{Block: Block{Text: "H1"}, Type: BlockHeading},
		{Block: Block{Text: "H2"}, Type: BlockHeading},
	}
	merged := MergeAdjacentSameType(blocks)
	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2 (headings never merge)", len(merged))
	}
}

func TestBodySize(t *testing.T) {
	lines := []Line{
		{Text: "short", AvgFontSize: 18},
		{Text: "this is the dominant body text size", AvgFontSize: 12},
		{Text: "more body text to tip the balance", AvgFontSize: 12},
	}
	if got := BodySize(lines); got != 12 {
		t.Errorf("BodySize() = %v, want 12", got)
	}
}

func TestIsNumericCell(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"plain integer", "42", true},
		{"currency", "$1,234.50", true},
		{"percentage", "12.5%", true},
		{"negative parens", "(3.2)", true},
		{"word", "Total", false},
		{"empty", "", false},
		{"mixed alnum", "A1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNumericCell(tt.in); got != tt.want {
				t.Errorf("isNumericCell(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
