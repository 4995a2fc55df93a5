package docmd

import (
	"strings"
	"testing"
)

func TestShouldMergeParagraphsLabelPatternNeverMerges(t *testing.T) {
	cfg := DefaultConfig()
	if shouldMergeParagraphs("some lead-in text", "Gaza: the situation remains tense.", 0, 12, cfg) {
		t.Error("shouldMergeParagraphs() = true for a label-pattern line, want false")
	}
}

func TestShouldMergeParagraphsSentenceEndCapitalNeverMerges(t *testing.T) {
	cfg := DefaultConfig()
	if shouldMergeParagraphs("This is a complete sentence.", "Next one starts fresh.", 0, 12, cfg) {
		t.Error("shouldMergeParagraphs() = true after sentence-ending punctuation + capital start, want false")
	}
}

func TestShouldMergeParagraphsContentWordCapitalNeverMerges(t *testing.T) {
	cfg := DefaultConfig()
	if shouldMergeParagraphs("the ending word is meaningful", "Capitalized continuation", 0, 12, cfg) {
		t.Error("shouldMergeParagraphs() = true after content-word end + capital start, want false")
	}
}

func TestShouldMergeParagraphsLowercaseAlwaysMerges(t *testing.T) {
	cfg := DefaultConfig()
	if !shouldMergeParagraphs("This sentence ends oddly", "and continues lowercase here.", 1000, 12, cfg) {
		t.Error("shouldMergeParagraphs() = false for lowercase continuation regardless of gap, want true")
	}
}

func TestShouldMergeParagraphsGapThreshold(t *testing.T) {
	// "the" is a closed-class function word, so rule 3 ("ends with a
	// content word") never fires here; only the gap (rule 5) decides.
	cfg := DefaultConfig()
	if !shouldMergeParagraphs("this continues on through the", "Another Capitalized Start", 5, 12, cfg) {
		t.Error("shouldMergeParagraphs() = false for small gap, want true (gap < 1.5x line height)")
	}
	if shouldMergeParagraphs("this continues on through the", "Another Capitalized Start", 100, 12, cfg) {
		t.Error("shouldMergeParagraphs() = true for large gap, want false")
	}
}

func TestRenderListLineNormalizesBullet(t *testing.T) {
	if got := renderListLine("• some item"); got != "- some item" {
		t.Errorf("renderListLine() = %q, want %q", got, "- some item")
	}
}

func TestRenderListLineKeepsNumberedMarker(t *testing.T) {
	if got := renderListLine("2. second item"); got != "2. second item" {
		t.Errorf("renderListLine() = %q, want %q", got, "2. second item")
	}
}

func TestEmitPageHeadingThenProse(t *testing.T) {
	cfg := DefaultConfig()
	layout := PageLayout{Columns: []Column{{}}}
	classified := [][]ClassifiedBlock{
		{
			{Block: Block{Text: "Chapter One"}, Type: BlockHeading, HeadingLevel: 1},
			{Block: Block{Text: "The quick brown fox jumps over the lazy dog near the bank."}, Type: BlockProse},
		},
	}
	tables := [][][]Table{{nil, nil}}
	md := EmitPage(layout, classified, tables, 12, cfg, ConvertOptions{})
	if !strings.HasPrefix(md, "# Chapter One\n\n") {
		t.Errorf("EmitPage() = %q, want heading first", md)
	}
	if !strings.Contains(md, "quick brown fox") {
		t.Errorf("EmitPage() = %q, missing prose paragraph", md)
	}
}

func TestEmitPageCodeFences(t *testing.T) {
	cfg := DefaultConfig()
	layout := PageLayout{Columns: []Column{{}}}
	classified := [][]ClassifiedBlock{
		{{Block: Block{Text: "func main() {}"}, Type: BlockCode}},
	}
	tables := [][][]Table{{nil}}
	md := EmitPage(layout, classified, tables, 12, cfg, ConvertOptions{EnableCodeFences: true})
	if !strings.Contains(md, "```\nfunc main() {}\n```") {
		t.Errorf("EmitPage() = %q, want fenced code block", md)
	}
}

func TestEmitPageRendersMultipleTablesInOneBlockWithoutShiftingLaterBlocks(t *testing.T) {
	cfg := DefaultConfig()
	layout := PageLayout{Columns: []Column{{}}}
	classified := [][]ClassifiedBlock{
		{
			{Block: Block{Text: "table block"}, Type: BlockPotentialTable},
			{Block: Block{Text: "Second Block"}, Type: BlockHeading, HeadingLevel: 2},
		},
	}
	first := Table{Rows: [][]string{{"A"}, {"1"}}, Alignments: []Alignment{AlignLeft}}
	second := Table{Rows: [][]string{{"B"}, {"2"}}, Alignments: []Alignment{AlignLeft}}
	tables := [][][]Table{{{first, second}, nil}}
	md := EmitPage(layout, classified, tables, 12, cfg, ConvertOptions{})
	if !strings.Contains(md, RenderTable(first)) || !strings.Contains(md, RenderTable(second)) {
		t.Errorf("EmitPage() = %q, want both tables from the single block rendered", md)
	}
	if !strings.Contains(md, "## Second Block") {
		t.Errorf("EmitPage() = %q, want the following heading block unaffected", md)
	}
}

func TestCollapseBlankLinesRespectsPreserveLayout(t *testing.T) {
	cfg := DefaultConfig()
	in := "a\n\n\n\n\nb"
	if got := collapseBlankLines(in, cfg, true); got != in {
		t.Errorf("collapseBlankLines(preserveLayout=true) = %q, want unchanged", got)
	}
	collapsed := collapseBlankLines(in, cfg, false)
	if strings.Contains(collapsed, "\n\n\n\n") {
		t.Errorf("collapseBlankLines() = %q, still has a run of blank lines", collapsed)
	}
}

func TestFormatParagraphTextBoldItalic(t *testing.T) {
	cfg := DefaultConfig()
	block := Block{
		Text: "strong words",
		Lines: []Line{
			{Text: "strong words", Weight: WeightBold, Style: StyleItalic},
		},
	}
	got := formatParagraphText(block, cfg)
	if got != "***strong words***" {
		t.Errorf("formatParagraphText() = %q, want %q", got, "***strong words***")
	}
}
