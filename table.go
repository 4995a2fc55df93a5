package docmd

import (
	"regexp"
	"sort"
	"strings"
)

// Alignment is a table column's text alignment.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// Grid is a rectangular rows x cols array of cell strings, built by one
// of the three table strategies. Every row has exactly cols cells.
type Grid struct {
	Rows [][]string
	Cols int
	// scoreBonus is added to the GridProfile score before the acceptance
	// gate (only the bordered strategy sets this, per §9 open question 1).
	scoreBonus float64
	// StartLine/EndLine are the source-line range the grid was built
	// from, used for overlap suppression across strategies.
	StartLine, EndLine int
}

// GridProfile is the deterministic per-cell classification of a Grid,
// used as the table accept/reject gate.
type GridProfile struct {
	NRows, NCols                                    int
	NonEmpty                                        int
	ShortToken, Numeric, Sentence, ProseFragment     int
	AvgLen, MaxLen                                   float64
	Density                                          float64
	score                                            float64
}

// Table is a Grid that passed the GridProfile acceptance gate.
type Table struct {
	Rows          [][]string
	HasHeader     bool
	Alignments    []Alignment
	Confidence    float64
	DetectionType string
	StartLine, EndLine int
}

func isShortToken(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 24 || strings.ContainsAny(s, " \t") {
		return false
	}
	stripped := strings.Trim(s, "()[]{}\"'.,;:!?$€£¥%")
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') && r != '.' {
			return false
		}
	}
	return true
}

func isSentenceCell(s string) bool {
	words := strings.Fields(s)
	if len(words) < 5 {
		return false
	}
	trimmed := strings.TrimRight(strings.TrimSpace(s), "\"')")
	return strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, "!") ||
		strings.HasSuffix(trimmed, "?") || strings.HasSuffix(trimmed, "…")
}

func isProseFragmentCell(s string, cfg Config) bool {
	trimmed := strings.TrimSpace(s)
	words := strings.Fields(trimmed)
	if len(trimmed) > 60 {
		return true
	}
	if len(words) >= 4 && len(trimmed) > 40 {
		fwRatio := functionWordRatioOf(words)
		if fwRatio >= 0.15 {
			return true
		}
	}
	if len(words) >= 5 && len(trimmed) > 0 {
		r := rune(trimmed[0])
		if r >= 'A' && r <= 'Z' {
			meanLen := meanWordLength(words)
			if meanLen >= 3.5 {
				return true
			}
		}
	}
	return false
}

func functionWordRatioOf(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	n := 0
	for _, w := range words {
		if functionWords[strings.ToLower(strings.Trim(w, ".,;:!?\"'()"))] {
			n++
		}
	}
	return float64(n) / float64(len(words))
}

func meanWordLength(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	total := 0
	for _, w := range words {
		total += len(w)
	}
	return float64(total) / float64(len(words))
}

// Profile computes a GridProfile from a Grid, per §4.5.
func Profile(g Grid) GridProfile {
	p := GridProfile{NRows: len(g.Rows), NCols: g.Cols}
	var lenSum float64
	for _, row := range g.Rows {
		for _, cell := range row {
			trimmed := strings.TrimSpace(cell)
			if trimmed == "" {
				continue
			}
			p.NonEmpty++
			l := float64(len(trimmed))
			lenSum += l
			if l > p.MaxLen {
				p.MaxLen = l
			}
			if isShortToken(trimmed) {
				p.ShortToken++
			}
			if isNumericCell(trimmed) {
				p.Numeric++
			}
			if isSentenceCell(trimmed) {
				p.Sentence++
			}
			if isProseFragmentCell(trimmed, Config{}) {
				p.ProseFragment++
			}
		}
	}
	if p.NonEmpty > 0 {
		p.AvgLen = lenSum / float64(p.NonEmpty)
	}
	totalCells := p.NRows * p.NCols
	if totalCells > 0 {
		p.Density = float64(p.NonEmpty) / float64(totalCells)
	}
	return p
}

// Score computes the GridProfile's additive score, per §4.5's formula.
// It does not itself decide acceptance; see Accept.
func (p GridProfile) Score(allEqualLength bool) float64 {
	if p.NonEmpty == 0 {
		return 0
	}
	sentenceRatio := float64(p.Sentence) / float64(p.NonEmpty)
	proseFragRatio := float64(p.ProseFragment) / float64(p.NonEmpty)

	score := 1.0*float64(p.NRows) + 0.8*float64(p.NCols)
	score += 3.0 * (float64(p.ShortToken) / float64(p.NonEmpty))
	score += 2.0 * (float64(p.Numeric) / float64(p.NonEmpty))

	switch {
	case sentenceRatio > 0.8:
		score -= 4.0 * sentenceRatio
	case sentenceRatio > 0.4:
		score -= 2.0 * sentenceRatio
	}

	switch {
	case proseFragRatio > 0.5:
		score -= 6.0 * proseFragRatio
	case proseFragRatio > 0.3:
		score -= 3.0 * proseFragRatio
	case proseFragRatio > 0.15:
		score -= 1.5 * proseFragRatio
	}

	if max(sentenceRatio, proseFragRatio) > 0.6 && float64(p.ShortToken+p.Numeric) < 0.3*float64(p.NonEmpty) {
		score -= 5.0
	}

	switch {
	case p.AvgLen > 80:
		score -= 4.0
	case p.AvgLen > 50:
		score -= 2.0
	}

	if p.MaxLen > 100 {
		score -= 2.0
	}

	if p.NRows >= 4 && p.NCols >= 3 && proseFragRatio < 0.3 {
		score += 2.0
	}
	if allEqualLength {
		score += 1.5
	}
	if p.Density >= 0.6 {
		score += 1.0
	}

	return score
}

// Accept applies the acceptance gate of §4.5 to a scored GridProfile.
func (p GridProfile) Accept(score float64, cfg Config) bool {
	if p.NRows < 2 || p.NCols < 2 {
		return false
	}
	if p.Density < cfg.TableMinDensity {
		return false
	}
	if p.NonEmpty == 0 {
		return false
	}
	tabularRatio := float64(p.ShortToken+p.Numeric) / float64(p.NonEmpty)

	if !(p.AvgLen <= 60 || tabularRatio >= 0.5) {
		return false
	}
	if !((p.MaxLen <= 80 || p.AvgLen <= 40) || tabularRatio >= 0.4) {
		return false
	}

	sentenceRatio := float64(p.Sentence) / float64(p.NonEmpty)
	if sentenceRatio >= 0.4 && tabularRatio < 0.5 {
		return false
	}

	shortDeficit := float64(p.ShortToken)/float64(p.NonEmpty) < 0.15 && p.Numeric == 0
	if shortDeficit && !(p.NRows >= 4 && p.NCols >= 3 && p.AvgLen <= 30) {
		return false
	}

	return score >= cfg.TableMinScore
}

// --- Strategies ---

var separatorLineRe = regexp.MustCompile(`^[\s|:\-]+$`)

func padOrMergeRow(cells []string, cols int) []string {
	if len(cells) == cols {
		return cells
	}
	if len(cells) < cols {
		out := make([]string, cols)
		copy(out, cells)
		return out
	}
	out := make([]string, cols)
	copy(out, cells[:cols-1])
	out[cols-1] = strings.Join(cells[cols-1:], " ")
	return out
}

func mode(counts map[int]int) (value, count int) {
	keys := make([]int, 0, len(counts))
	for v := range counts {
		keys = append(keys, v)
	}
	sort.Ints(keys)
	for _, v := range keys {
		if c := counts[v]; c > count {
			value, count = v, c
		}
	}
	return
}

// DetectBorderedTable implements the bordered-pipe strategy of §4.5.
func DetectBorderedTable(lines []string, startLine int, cfg Config) (Grid, bool) {
	var rows [][]string
	maxPipes := 0
	for _, l := range lines {
		if !strings.ContainsAny(l, "|¦") {
			continue
		}
		if separatorLineRe.MatchString(l) {
			continue
		}
		if n := strings.Count(l, "|") + strings.Count(l, "¦"); n > maxPipes {
			maxPipes = n
		}
		cells := strings.FieldsFunc(l, func(r rune) bool { return r == '|' || r == '¦' })
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		// Strip empty leading/trailing cells from outer pipes.
		for len(cells) > 0 && cells[0] == "" {
			cells = cells[1:]
		}
		for len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}

	if len(rows) < 2 || maxPipes < 2 {
		return Grid{}, false
	}

	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	for i := range rows {
		rows[i] = padOrMergeRow(rows[i], cols)
	}

	return Grid{
		Rows:       rows,
		Cols:       cols,
		scoreBonus: cfg.TableBorderedScoreBonus,
		StartLine:  startLine,
		EndLine:    startLine + len(lines) - 1,
	}, true
}

var wideSpaceRe = regexp.MustCompile(`\s{3,}`)
var narrowSpaceRe = regexp.MustCompile(`\s{2,}`)

// DetectASCIITable implements the whitespace-aligned strategy of §4.5.
func DetectASCIITable(lines []string, startLine int, cfg Config) (Grid, bool) {
	splitRows := func(re *regexp.Regexp) ([][]string, map[int]int) {
		var rows [][]string
		counts := make(map[int]int)
		for _, l := range lines {
			if strings.TrimSpace(l) == "" {
				continue
			}
			cells := re.Split(strings.TrimSpace(l), -1)
			rows = append(rows, cells)
			counts[len(cells)]++
		}
		return rows, counts
	}

	rows, counts := splitRows(wideSpaceRe)
	modeN, modeCount := mode(counts)
	nonEmptyRows := len(rows)
	if nonEmptyRows == 0 || modeN < 2 || float64(modeCount)/float64(nonEmptyRows) < 0.60 {
		rows, counts = splitRows(narrowSpaceRe)
		modeN, modeCount = mode(counts)
		if nonEmptyRows == 0 || modeN < 2 || float64(modeCount)/float64(nonEmptyRows) < 0.60 {
			return Grid{}, false
		}
	}

	for i := range rows {
		rows[i] = padOrMergeRow(rows[i], modeN)
	}

	return Grid{Rows: rows, Cols: modeN, StartLine: startLine, EndLine: startLine + len(lines) - 1}, true
}

// PositionedCell is one cell with its x-position, for the column-
// clustered strategy.
type PositionedCell struct {
	Text string
	X    float64
	Row  int
}

// cellsByRowFromLines builds the per-row positioned cells DetectPositionedTable
// needs straight from a block's Glyphs, splitting each Line into cells at
// glyph gaps wider than cfg.TableCellGapFontSizeMultiple * FontSize.
func cellsByRowFromLines(lines []Line, cfg Config) [][]PositionedCell {
	var rows [][]PositionedCell
	for _, ln := range lines {
		if len(ln.Glyphs) == 0 {
			continue
		}
		var row []PositionedCell
		var cell strings.Builder
		cellStartX := ln.Glyphs[0].X
		prevX := ln.Glyphs[0].X
		for i, g := range ln.Glyphs {
			if i > 0 {
				gap := g.X - prevX
				threshold := cfg.TableCellGapFontSizeMultiple * g.FontSize
				if gap > threshold {
					row = append(row, PositionedCell{Text: strings.TrimSpace(cell.String()), X: cellStartX})
					cell.Reset()
					cellStartX = g.X
				}
			}
			cell.WriteRune(g.Char)
			prevX = g.X
		}
		if text := strings.TrimSpace(cell.String()); text != "" {
			row = append(row, PositionedCell{Text: text, X: cellStartX})
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

// DetectPositionedTable implements the column-clustered strategy of
// §4.5, used when per-character x-positions are available.
func DetectPositionedTable(cellsByRow [][]PositionedCell, startLine int, cfg Config) (Grid, bool) {
	var allX []float64
	for _, row := range cellsByRow {
		for _, c := range row {
			allX = append(allX, c.X)
		}
	}
	if len(allX) == 0 {
		return Grid{}, false
	}
	sort.Float64s(allX)

	var clusters []float64 // centroids
	for _, x := range allX {
		tol := cfg.TableClusterBaseTolerance * float64(len(clusters))
		placed := false
		for i, c := range clusters {
			if abs(x-c) <= tol {
				clusters[i] = (c + x) / 2
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, x)
		}
	}
	sort.Float64s(clusters)
	cols := len(clusters)
	if cols < 2 {
		return Grid{}, false
	}

	nearestCluster := func(x float64) int {
		best, bestDist := 0, abs(x-clusters[0])
		for i, c := range clusters {
			if d := abs(x - c); d < bestDist {
				best, bestDist = i, d
			}
		}
		return best
	}

	var rows [][]string
	var qualifyingRowLines int
	for _, row := range cellsByRow {
		if len(row) < 2 {
			continue
		}
		qualifyingRowLines++
		cells := make([]string, cols)
		for _, c := range row {
			idx := nearestCluster(c.X)
			if cells[idx] != "" {
				cells[idx] += " " + c.Text
			} else {
				cells[idx] = c.Text
			}
		}
		rows = append(rows, cells)
	}
	if len(rows) < 2 {
		return Grid{}, false
	}

	return Grid{Rows: rows, Cols: cols, StartLine: startLine, EndLine: startLine + len(cellsByRow) - 1}, true
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func allRowsEqualLength(g Grid) bool {
	if len(g.Rows) == 0 {
		return true
	}
	n := len(g.Rows[0])
	for _, r := range g.Rows[1:] {
		if len(r) != n {
			return false
		}
	}
	return true
}

func columnAlignment(g Grid, colIdx int, hasHeader bool, thresholdBordered float64) Alignment {
	start := 0
	if hasHeader {
		start = 1
	}
	numeric, total := 0, 0
	for i := start; i < len(g.Rows); i++ {
		if colIdx >= len(g.Rows[i]) {
			continue
		}
		cell := strings.TrimSpace(g.Rows[i][colIdx])
		if cell == "" {
			continue
		}
		total++
		if isNumericCell(cell) {
			numeric++
		}
	}
	if total == 0 {
		return AlignLeft
	}
	if float64(numeric)/float64(total) >= thresholdBordered {
		return AlignRight
	}
	return AlignLeft
}

// BuildTable accepts a Grid whose profile passes the gate and produces a
// Table, or reports ok=false.
func BuildTable(g Grid, detectionType string, cfg Config) (Table, bool) {
	profile := Profile(g)
	score := profile.Score(allRowsEqualLength(g)) + g.scoreBonus
	if !profile.Accept(score, cfg) {
		return Table{}, false
	}

	alignThreshold := 0.70
	if detectionType == "positioned" {
		alignThreshold = 0.50
	}

	hasHeader := len(g.Rows) > 0
	alignments := make([]Alignment, g.Cols)
	for c := 0; c < g.Cols; c++ {
		alignments[c] = columnAlignment(g, c, hasHeader, alignThreshold)
	}

	confidence := score / 10
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	return Table{
		Rows:          g.Rows,
		HasHeader:     hasHeader,
		Alignments:    alignments,
		Confidence:    confidence,
		DetectionType: detectionType,
		StartLine:     g.StartLine,
		EndLine:       g.EndLine,
	}, true
}

func overlaps(a, b Table) bool {
	return a.StartLine <= b.EndLine && b.StartLine <= a.EndLine
}

// DetectTables runs the three strategies over a block's lines in order,
// suppressing strategies that would overlap already-accepted tables by
// source-line range, per §4.5.
func DetectTables(blockLines []string, startLine int, cellsByRow [][]PositionedCell, cfg Config) []Table {
	var accepted []Table

	if g, ok := DetectBorderedTable(blockLines, startLine, cfg); ok {
		if t, ok := BuildTable(g, "bordered", cfg); ok {
			accepted = append(accepted, t)
		}
	}

	if g, ok := DetectASCIITable(blockLines, startLine, cfg); ok {
		if t, ok := BuildTable(g, "ascii", cfg); ok {
			conflict := false
			for _, a := range accepted {
				if overlaps(a, t) {
					conflict = true
					break
				}
			}
			if !conflict {
				accepted = append(accepted, t)
			}
		}
	}

	if cellsByRow != nil {
		if g, ok := DetectPositionedTable(cellsByRow, startLine, cfg); ok {
			if t, ok := BuildTable(g, "positioned", cfg); ok {
				conflict := false
				for _, a := range accepted {
					if overlaps(a, t) {
						conflict = true
						break
					}
				}
				if !conflict {
					accepted = append(accepted, t)
				}
			}
		}
	}

	return accepted
}

// RenderTable formats a Table as GitHub-flavored Markdown, grounded on
// docsaf/pdf_layout.go's formatTable pipe-aligned rendering.
func RenderTable(t Table) string {
	if len(t.Rows) == 0 {
		return ""
	}
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, c := range cells {
			b.WriteString(" ")
			b.WriteString(strings.ReplaceAll(c, "|", "\\|"))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(t.Rows[0])

	b.WriteString("|")
	for _, a := range t.Alignments {
		switch a {
		case AlignRight:
			b.WriteString(" ---: |")
		case AlignCenter:
			b.WriteString(" :---: |")
		default:
			b.WriteString(" --- |")
		}
	}
	b.WriteString("\n")

	for _, row := range t.Rows[1:] {
		writeRow(row)
	}
	return b.String()
}
