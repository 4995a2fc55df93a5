package docmd

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// BlockType labels a ClassifiedBlock.
type BlockType string

const (
	BlockProse         BlockType = "prose"
	BlockProseColumn   BlockType = "prose-column"
	BlockHeading       BlockType = "heading"
	BlockList          BlockType = "list"
	BlockCode          BlockType = "code"
	BlockPotentialTable BlockType = "potential-table"
	BlockUnknown       BlockType = "unknown"
)

// Block is a vertically contiguous run of Lines within one column.
type Block struct {
	Lines       []Line
	MinX, MaxX  float64
	MinY, MaxY  float64
	AvgFontSize float64
	Text        string
}

// ClassifiedBlock is a Block with a type, confidence, and heading level
// (only meaningful when Type == BlockHeading).
type ClassifiedBlock struct {
	Block
	Type         BlockType
	Confidence   float64
	HeadingLevel int
	ColumnIndex  int
}

// GroupBlocks groups a column's Lines (already sorted by Y ascending)
// into Blocks separated by a vertical gap exceeding
// cfg.BlockGapFontSizeMultiple * mean(avgFontSize), per §4.3.
func GroupBlocks(lines []Line, cfg Config) []Block {
	if len(lines) == 0 {
		return nil
	}

	var blocks []Block
	cur := []Line{lines[0]}

	flush := func() {
		blocks = append(blocks, buildBlock(cur))
	}

	for i := 1; i < len(lines); i++ {
		prev, curLine := lines[i-1], lines[i]
		gap := curLine.Y - prev.Y
		threshold := cfg.BlockGapFontSizeMultiple * (prev.AvgFontSize+curLine.AvgFontSize)/2
		if gap > threshold {
			flush()
			cur = []Line{curLine}
		} else {
			cur = append(cur, curLine)
		}
	}
	flush()

	return blocks
}

func buildBlock(lines []Line) Block {
	b := Block{Lines: append([]Line(nil), lines...)}
	var texts []string
	var sizeSum float64
	b.MinX, b.MaxX = lines[0].MinX, lines[0].MaxX
	b.MinY, b.MaxY = lines[0].Y, lines[0].Y
	for _, ln := range lines {
		if ln.MinX < b.MinX {
			b.MinX = ln.MinX
		}
		if ln.MaxX > b.MaxX {
			b.MaxX = ln.MaxX
		}
		if ln.Y < b.MinY {
			b.MinY = ln.Y
		}
		if ln.Y > b.MaxY {
			b.MaxY = ln.Y
		}
		sizeSum += ln.AvgFontSize
		texts = append(texts, ln.Text)
	}
	b.AvgFontSize = sizeSum / float64(len(lines))
	// Extend vertically by one avg-font-size so the last baseline is contained.
	b.MaxY += b.AvgFontSize
	b.Text = strings.Join(texts, "\n")
	return b
}

var bulletGlyphs = []rune("-•●○◦▪▸►◆✓✗★☆")

func isBulletGlyphRune(r rune) bool {
	if r >= 0x2022 && r <= 0x2043 {
		return true
	}
	for _, b := range bulletGlyphs {
		if r == b {
			return true
		}
	}
	return false
}

var numberedListRe = regexp.MustCompile(`^\s*\d+[.)]\s`)

func lineStartsList(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		return false
	}
	runes := []rune(trimmed)
	if isBulletGlyphRune(runes[0]) {
		return true
	}
	return numberedListRe.MatchString(line)
}

var codeKeywords = []string{"if", "else", "for", "while", "return", "function", "def", "class", "import", "from"}

var (
	identCallRe = regexp.MustCompile(`\b\w+\(`)
	assignRe    = regexp.MustCompile(`\b\w+\s*=\s*[^=]`)
)

func lineLooksLikeCode(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if trimmed == "{" || trimmed == "}" || trimmed == "[" || trimmed == "]" || trimmed == "(" || trimmed == ")" {
		return true
	}
	firstWord := strings.ToLower(strings.SplitN(trimmed, " ", 2)[0])
	for _, kw := range codeKeywords {
		if firstWord == kw || strings.HasPrefix(firstWord, kw+"(") {
			return true
		}
	}
	if strings.HasSuffix(trimmed, ";") || strings.HasSuffix(trimmed, "{") {
		return true
	}
	if strings.HasPrefix(line, "    ") {
		return true
	}
	if identCallRe.MatchString(trimmed) || assignRe.MatchString(trimmed) {
		return true
	}
	return false
}

func endsWithSentencePunct(s string) bool {
	trimmed := strings.TrimRight(s, " \t")
	if trimmed == "" {
		return false
	}
	last := rune(trimmed[len(trimmed)-1])
	return last == '.' || last == '!' || last == '?'
}

// functionWords is the closed-class set used by proseScore and the
// emitter's continuation rule.
var functionWords = buildWordSet(strings.Fields(
	"the a an is are was were be been have has had do does did will would " +
		"could should may might must shall can to of in for on with at by " +
		"from as into through during before after and but or nor so yet " +
		"both either neither not only also just than then now here there " +
		"this that these those it its they their them he she his her we " +
		"our you your who which what",
))

func buildWordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = true
	}
	return set
}

// ClassifyBlock applies the ordered dispatch of §4.4: list, code,
// heading, then prose-vs-table scoring.
func ClassifyBlock(b Block, bodySize float64, cfg Config) ClassifiedBlock {
	lines := b.Text
	lineList := strings.Split(lines, "\n")
	nLines := len(lineList)

	// 1. list
	bulletCount := 0
	for _, l := range lineList {
		if lineStartsList(l) {
			bulletCount++
		}
	}
	if nLines > 0 && float64(bulletCount)/float64(nLines) >= cfg.ListBulletRatio {
		return ClassifiedBlock{Block: b, Type: BlockList, Confidence: float64(bulletCount) / float64(nLines)}
	}

	// 2. code
	codeCount := 0
	for _, l := range lineList {
		if lineLooksLikeCode(l) {
			codeCount++
		}
	}
	if nLines > 0 && float64(codeCount)/float64(nLines) >= cfg.CodeLineRatio {
		return ClassifiedBlock{Block: b, Type: BlockCode, Confidence: float64(codeCount) / float64(nLines)}
	}

	// 3. heading
	trimmedText := strings.TrimSpace(lines)
	if nLines <= cfg.HeadingMaxLines && len(trimmedText) <= cfg.HeadingMaxChars {
		longButEndsSentence := len(trimmedText) > cfg.HeadingLongLineLen && endsWithSentencePunct(trimmedText)
		if !longButEndsSentence {
			noSentencePunctShort := len(trimmedText) < cfg.HeadingShortTextLen && !strings.ContainsAny(trimmedText, ".!?")
			biggerFont := bodySize > 0 && b.AvgFontSize > bodySize
			if noSentencePunctShort || biggerFont {
				level := headingLevel(b.AvgFontSize, bodySize, cfg)
				return ClassifiedBlock{Block: b, Type: BlockHeading, Confidence: 1, HeadingLevel: level}
			}
		}
	}

	// 4. prose vs table scoring
	prose, table := proseScore(lineList, cfg), tableScore(lineList, cfg)
	if prose >= table {
		if prose >= cfg.ProseScoreClear && table < cfg.ProseScoreTableCeiling {
			return ClassifiedBlock{Block: b, Type: BlockProse, Confidence: prose}
		}
		if table >= cfg.TableScoreClear && prose < cfg.TableScoreProseCeiling {
			return ClassifiedBlock{Block: b, Type: BlockPotentialTable, Confidence: table}
		}
		// Ambiguous, tie, or neither threshold clears: lean prose.
		return ClassifiedBlock{Block: b, Type: BlockProse, Confidence: prose}
	}
	if table >= cfg.TableScoreClear && prose < cfg.TableScoreProseCeiling {
		return ClassifiedBlock{Block: b, Type: BlockPotentialTable, Confidence: table}
	}
	return ClassifiedBlock{Block: b, Type: BlockProse, Confidence: prose}
}

func headingLevel(size, bodySize float64, cfg Config) int {
	if bodySize <= 0 {
		return 1
	}
	switch {
	case size >= cfg.HeadingLevel1Multiple*bodySize:
		return 1
	case size >= cfg.HeadingLevel2Multiple*bodySize:
		return 2
	case size >= cfg.HeadingLevel3Multiple*bodySize:
		return 3
	default:
		return 3
	}
}

func proseScore(lines []string, cfg Config) float64 {
	score := 0.0

	words, sentenceEndings, wordLenSum := 0, 0, 0
	functionWordCount := 0
	sentences := 0

	for _, l := range lines {
		fields := strings.Fields(l)
		words += len(fields)
		for _, w := range fields {
			clean := strings.Trim(w, ".,;:!?\"'()")
			wordLenSum += len(clean)
			if functionWords[strings.ToLower(clean)] {
				functionWordCount++
			}
		}
		if endsWithSentencePunct(l) {
			sentenceEndings++
		}
	}
	// Rough sentence count for the mean-words-per-sentence heuristic: the
	// number of . ! ? marks in the block, or one sentence when none is found.
	sentences = strings.Count(strings.Join(lines, " "), ".") +
		strings.Count(strings.Join(lines, " "), "!") +
		strings.Count(strings.Join(lines, " "), "?")
	if sentences == 0 {
		sentences = 1
	}

	meanWordsPerSentence := float64(words) / float64(sentences)
	if meanWordsPerSentence >= 5 && meanWordsPerSentence <= 30 {
		score += 0.25
	}

	var functionWordRatio float64
	if words > 0 {
		functionWordRatio = float64(functionWordCount) / float64(words)
	}
	if functionWordRatio >= 0.15 {
		score += 0.25
	}
	if functionWordRatio > 0.25 {
		score += 0.15
	}

	if len(lines) > 0 {
		sentenceLineRatio := float64(sentenceEndings) / float64(len(lines))
		if sentenceLineRatio > 0.30 {
			score += 0.20
		}
	}

	if words > 0 {
		meanWordLen := float64(wordLenSum) / float64(words)
		if meanWordLen >= 4 && meanWordLen <= 8 {
			score += 0.15
		}
	}

	return score
}

var currencyTrim = "$€£¥"

func isNumericCell(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	s = strings.Trim(s, currencyTrim)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	dotSeen := false
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == ',':
			// thousands separator
		case r == '.':
			if dotSeen {
				return false
			}
			dotSeen = true
		default:
			return false
		}
	}
	return digits > 0
}

func tableScore(lines []string, cfg Config) float64 {
	score := 0.0
	text := strings.Join(lines, "\n")
	if strings.ContainsAny(text, "|¦") {
		score += 0.4
	}

	nLines := len(lines)
	if nLines == 0 {
		return score
	}

	shortCellLines, numericLines := 0, 0
	cellCounts := make(map[int]int)
	var totalLen int

	for _, l := range lines {
		totalLen += len(l)
		cells := strings.Fields(l)
		if len(cells) > 0 {
			cellCounts[len(cells)]++
		}

		shortNoSpace := 0
		for _, c := range cells {
			if len(c) <= 20 {
				shortNoSpace++
			}
		}
		if len(cells) > 0 && float64(shortNoSpace)/float64(len(cells)) >= 0.5 {
			shortCellLines++
		}

		hasNumeric := false
		for _, c := range cells {
			if isNumericCell(c) {
				hasNumeric = true
				break
			}
		}
		if hasNumeric {
			numericLines++
		}
	}

	if float64(shortCellLines)/float64(nLines) >= 0.40 {
		score += 0.25
	}
	if float64(numericLines)/float64(nLines) >= 0.30 {
		score += 0.2
	}

	modeCount, modeN := 0, 0
	for n, c := range cellCounts {
		if c > modeCount {
			modeCount, modeN = c, n
		}
	}
	if nLines > 1 {
		denom := float64(nLines - 1)
		if denom > 0 && modeN >= 2 && float64(modeCount)/denom >= 0.60 {
			score += 0.15
		}
	}

	meanLen := float64(totalLen) / float64(nLines)
	if meanLen > 100 {
		score -= 0.2
	}

	return score
}

// RelabelProseColumns upgrades prose blocks to prose-column when the
// page has more than one column, per §4.4's primary anti-false-positive
// defense for two-column academic layouts.
func RelabelProseColumns(blocks []ClassifiedBlock, isMultiColumn bool) {
	if !isMultiColumn {
		return
	}
	for i := range blocks {
		if blocks[i].Type == BlockProse {
			blocks[i].Type = BlockProseColumn
		}
	}
}

// MergeAdjacentSameType merges consecutive same-type blocks within a
// column, expanding the bbox and averaging confidence. Heading blocks
// are never merged.
func MergeAdjacentSameType(blocks []ClassifiedBlock) []ClassifiedBlock {
	if len(blocks) == 0 {
		return blocks
	}
	merged := []ClassifiedBlock{blocks[0]}
	for i := 1; i < len(blocks); i++ {
		last := &merged[len(merged)-1]
		cur := blocks[i]
		if last.Type == cur.Type && last.Type != BlockHeading {
			last.Lines = append(last.Lines, cur.Lines...)
			if cur.MaxY > last.MaxY {
				last.MaxY = cur.MaxY
			}
			if cur.MinX < last.MinX {
				last.MinX = cur.MinX
			}
			if cur.MaxX > last.MaxX {
				last.MaxX = cur.MaxX
			}
			last.Text = last.Text + "\n" + cur.Text
			last.Confidence = (last.Confidence + cur.Confidence) / 2
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// BodySize computes the page body font size: the size owning the
// greatest total character count, rounded to the nearest 0.5, per §4.7.
func BodySize(lines []Line) float64 {
	totals := make(map[float64]int)
	for _, ln := range lines {
		rounded := roundToHalf(ln.AvgFontSize)
		totals[rounded] += len(ln.Text)
	}
	sizes := make([]float64, 0, len(totals))
	for size := range totals {
		sizes = append(sizes, size)
	}
	sort.Float64s(sizes)
	best, bestCount := 0.0, -1
	for _, size := range sizes {
		if count := totals[size]; count > bestCount {
			best, bestCount = size, count
		}
	}
	return best
}

func roundToHalf(f float64) float64 {
	return float64(int(f*2+0.5)) / 2
}
