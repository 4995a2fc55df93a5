package docmd

import (
	"regexp"
	"strings"
)

// emitterState is the small state machine described in §4.10: list and
// code enter dedicated states that flush on any heading or non-matching
// block.
type emitterState int

const (
	stateIdle emitterState = iota
	stateInParagraph
	stateInList
	stateInCode
)

var labelPatternRe = regexp.MustCompile(`^[A-Z][A-Za-z]*(\s+[A-Z][A-Za-z]*)*:\s`)

// endsWithContentWord reports whether s ends with a word outside
// functionWords, the closed-class set of connective words that do NOT
// count as "ends with a content word" for the paragraph-continuation
// rule (§4.7 rule 3). It reuses the same function-word set as proseScore
// per Design Note 2 (the rules overlap and are unified here).
func endsWithContentWord(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	last := strings.ToLower(strings.Trim(fields[len(fields)-1], ".,;:!?\"'()"))
	return last != "" && !functionWords[last]
}

func startsCapital(s string) bool {
	s = strings.TrimLeft(s, " \t")
	if s == "" {
		return false
	}
	r := rune(s[0])
	return r >= 'A' && r <= 'Z'
}

func startsLowerOrContinuation(s string) bool {
	s = strings.TrimLeft(s, " \t")
	if s == "" {
		return false
	}
	r := rune(s[0])
	if r >= 'a' && r <= 'z' {
		return true
	}
	switch r {
	case ',', ';', ':', '-', '"', '\'', ')', '”', '’':
		return true
	}
	return false
}

// shouldMergeParagraphs implements §4.7's five ordered continuation
// rules.
func shouldMergeParagraphs(prev, cur string, gap, avgLineHeight float64, cfg Config) bool {
	if labelPatternRe.MatchString(strings.TrimLeft(cur, " \t")) {
		return false
	}
	if endsWithSentencePunct(strings.TrimRight(prev, "\"')]")) && startsCapital(cur) {
		return false
	}
	if endsWithContentWord(prev) && startsCapital(cur) {
		return false
	}
	if startsLowerOrContinuation(cur) {
		return true
	}
	return gap < cfg.ParagraphGapLineRatio*avgLineHeight
}

func majorityAttribute(lines []Line, total int, pick func(Line) bool, cfg Config) bool {
	if total == 0 {
		return false
	}
	n := 0
	for _, ln := range lines {
		if pick(ln) {
			n += len(ln.Text)
		}
	}
	return float64(n)/float64(total) > cfg.BoldItalicMajority
}

func formatParagraphText(block Block, cfg Config) string {
	text := strings.Join(strings.Fields(block.Text), " ")
	total := len(block.Text)
	bold := majorityAttribute(block.Lines, total, func(l Line) bool { return l.Weight == WeightBold }, cfg)
	italic := majorityAttribute(block.Lines, total, func(l Line) bool { return l.Style == StyleItalic }, cfg)
	switch {
	case bold && italic:
		return "***" + text + "***"
	case bold:
		return "**" + text + "**"
	case italic:
		return "*" + text + "*"
	default:
		return text
	}
}

// EmitPage renders a page's classified blocks and tables, in reading
// order (columns left-to-right, blocks top-to-bottom within each
// column), as Markdown, per §4.7/§4.10.
func EmitPage(layout PageLayout, classified [][]ClassifiedBlock, tables [][][]Table, bodySize float64, cfg Config, opts ConvertOptions) string {
	var out strings.Builder
	state := stateIdle
	var paragraphBuf []string
	var prevBlockText string
	var prevBlockMaxY float64
	haveBuf := false

	flushParagraph := func() {
		if len(paragraphBuf) > 0 {
			out.WriteString(strings.Join(paragraphBuf, " "))
			out.WriteString("\n\n")
			paragraphBuf = nil
		}
		haveBuf = false
		state = stateIdle
	}

	for ci := range layout.Columns {
		blocks := classified[ci]
		colTables := tables[ci]
		for bi, cb := range blocks {
			switch cb.Type {
			case BlockHeading:
				flushParagraph()
				out.WriteString(strings.Repeat("#", cb.HeadingLevel))
				out.WriteString(" ")
				out.WriteString(strings.Join(strings.Fields(cb.Text), " "))
				out.WriteString("\n\n")
				state = stateIdle

			case BlockList:
				flushParagraph()
				state = stateInList
				for _, l := range strings.Split(cb.Text, "\n") {
					out.WriteString(renderListLine(l))
					out.WriteString("\n")
				}
				out.WriteString("\n")

			case BlockCode:
				flushParagraph()
				state = stateInCode
				if opts.EnableCodeFences {
					out.WriteString("```\n")
					out.WriteString(cb.Text)
					out.WriteString("\n```\n\n")
				} else {
					out.WriteString(cb.Text)
					out.WriteString("\n\n")
				}

			case BlockPotentialTable:
				flushParagraph()
				blockTables := colTables[bi]
				if !opts.DisableTables && len(blockTables) > 0 {
					for _, tbl := range blockTables {
						out.WriteString(RenderTable(tbl))
						out.WriteString("\n")
					}
				} else {
					out.WriteString(cb.Text)
					out.WriteString("\n\n")
				}
				state = stateIdle

			case BlockProse, BlockProseColumn:
				text := formatParagraphText(cb.Block, cfg)
				gap := cb.MinY - prevBlockMaxY
				merge := haveBuf && state == stateInParagraph &&
					shouldMergeParagraphs(prevBlockText, text, gap, cb.AvgFontSize, cfg)
				if !merge {
					flushParagraph()
				}
				paragraphBuf = append(paragraphBuf, text)
				haveBuf = true
				state = stateInParagraph
				prevBlockText = text
				prevBlockMaxY = cb.MaxY

			default:
				flushParagraph()
				out.WriteString(cb.Text)
				out.WriteString("\n\n")
			}
		}
	}
	flushParagraph()

	return collapseBlankLines(out.String(), cfg, opts.PreserveLayout)
}

var bulletLineRe = regexp.MustCompile(`^\s*([-•●○◦▪▸►◆✓✗★☆]|\d+[.)])\s*(.*)$`)

func renderListLine(line string) string {
	m := bulletLineRe.FindStringSubmatch(line)
	if m == nil {
		return strings.TrimSpace(line)
	}
	marker := m[1]
	rest := strings.TrimSpace(m[2])
	if numberedListRe.MatchString(line) {
		return marker + " " + rest
	}
	return "- " + rest
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

func collapseBlankLines(s string, cfg Config, preserveLayout bool) string {
	if preserveLayout {
		return s
	}
	maxNewlines := cfg.MaxBlankLines + 1
	return blankRunRe.ReplaceAllString(s, strings.Repeat("\n", maxNewlines))
}

// ConvertOptions mirrors the CLI flags of §6.
type ConvertOptions struct {
	EnableOCR               bool
	Language                string
	DisableTables           bool
	DisableMath             bool
	DisableHeaderFooter     bool
	DisableHyphenationFix   bool
	PreserveLayout          bool
	Password                string
	EnableCodeFences        bool
}
