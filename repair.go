package docmd

import (
	"math"
	"regexp"
	"strings"
)

// repair.go implements §4.11's supplemented features: the distillation
// dropped several text-repair passes that a complete reconstruction
// engine in this lineage carries. Grounded on docsaf/text_repair.go and
// docsaf/font_encodings.go, adapted from the teacher's *TextRepair
// receiver methods to free functions operating on this package's types.

// --- Mirrored/reversed-text repair ---

// commonReversedWords is a small seed set of common English words as
// they would read if glyph order were reversed, the direct analogue of
// docsaf/text_repair.go's CommonReversedWords table.
var commonReversedWords = buildWordSet([]string{
	"eht", "dna", "rof", "era", "saw", "erew", "siht", "taht", "htiw",
	"evah", "sah", "ffo", "tub", "ton", "lla", "nac", "ton", "gnieb",
	"ot", "fo", "ni", "no",
})

// englishBigramFrequency is a compact seed of common English letter
// bigram weights, grounded on docsaf/text_repair.go's
// EnglishBigramFrequency table.
var englishBigramFrequency = map[string]float64{
	"th": 0.0356, "he": 0.0307, "in": 0.0243, "er": 0.0205, "an": 0.0199,
	"re": 0.0185, "nd": 0.0154, "on": 0.0151, "en": 0.0145, "at": 0.0149,
	"ou": 0.0129, "ed": 0.0127, "ha": 0.0125, "to": 0.0123, "or": 0.0120,
	"it": 0.0119, "is": 0.0112, "hi": 0.0108, "es": 0.0107, "ng": 0.0105,
}

func reverseRuneString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

func extractBigrams(text string) map[string]int {
	bigrams := make(map[string]int)
	text = strings.ToLower(text)
	prev := rune(0)
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			if prev != 0 {
				bigrams[string([]rune{prev, r})]++
			}
			prev = r
		} else {
			prev = 0
		}
	}
	return bigrams
}

func bigramScore(bigrams map[string]int) float64 {
	total := 0
	for _, c := range bigrams {
		total += c
	}
	if total == 0 {
		return 0
	}
	score := 0.0
	for bg, c := range bigrams {
		if freq, ok := englishBigramFrequency[bg]; ok {
			score += freq * float64(c) / float64(total)
		}
	}
	return score
}

func detectReversedWordScore(text string) float64 {
	words := strings.Fields(text)
	if len(words) < 5 {
		return 0
	}
	checked, reversed := 0, 0
	for _, w := range words {
		w = strings.ToLower(strings.Trim(w, ".,!?;:\"'()[]{}$%"))
		if len(w) < 3 || len(w) > 10 {
			continue
		}
		checked++
		if commonReversedWords[w] {
			reversed++
		}
	}
	if checked < 5 {
		return 0
	}
	return float64(reversed) / float64(checked) * 3.0
}

func detectReversedBigramScore(text string) float64 {
	original := extractBigrams(text)
	if len(original) < 10 {
		return 0
	}
	originalScore := bigramScore(original)
	reversedScore := bigramScore(extractBigrams(reverseRuneString(text)))
	if reversedScore > originalScore*1.2 {
		confidence := (reversedScore - originalScore) / (reversedScore + 0.001)
		if confidence > 1 {
			confidence = 1
		}
		return confidence
	}
	return 0
}

// DetectMirroredText scores a run of text for likely reversed glyph
// order, combining reversed-word and bigram-frequency evidence per
// §4.11, grounded on docsaf/text_repair.go's DetectMirroredText.
func DetectMirroredText(text string) float64 {
	if len(text) < 30 {
		return 0
	}
	lower := strings.ToLower(text)
	wordScore := detectReversedWordScore(lower)
	bigram := detectReversedBigramScore(lower)
	return wordScore*0.4 + bigram*0.6
}

func reverseWordsOnly(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		words[i] = reverseRuneString(w)
	}
	return strings.Join(words, " ")
}

// RepairMirroredText reverses a run detected as mirrored, choosing
// whichever of word-level or full-text reversal scores lowest on a
// second mirrored-text pass, and only applies when that improvement
// clears cfg.MirroredTextRepairGain.
func RepairMirroredText(text string, cfg Config) (string, bool) {
	confidence := DetectMirroredText(text)
	if confidence < 0.3 {
		return text, false
	}
	wordReversed := reverseWordsOnly(text)
	wordScore := DetectMirroredText(wordReversed)
	fullReversed := reverseRuneString(text)
	fullScore := DetectMirroredText(fullReversed)

	best, bestScore := text, confidence
	if wordScore < bestScore {
		best, bestScore = wordReversed, wordScore
	}
	if fullScore < bestScore {
		best, bestScore = fullReversed, fullScore
	}
	if best == text {
		return text, false
	}
	if bestScore > confidence*(1-cfg.MirroredTextRepairGain) {
		return text, false
	}
	return best, true
}

// --- Symbol-font Greek-as-Latin repair ---

// symbolGreekToLatin reverse-maps Symbol-font Greek code points back to
// the Latin letters a font-substituting PDF producer actually intended,
// grounded directly on docsaf/font_encodings.go's SymbolToLatinMap. This
// is distinct from, and runs before, the Math Tokenizer's legitimate
// Greek-to-LaTeX table (math.go's greekToLatex), which only fires on
// genuine math spans.
var symbolGreekToLatin = map[rune]rune{
	'Α': 'A', 'Β': 'B', 'Χ': 'C', 'Δ': 'D', 'Ε': 'E', 'Φ': 'F', 'Γ': 'G',
	'Η': 'H', 'Ι': 'I', 'ϑ': 'J', 'Κ': 'K', 'Λ': 'L', 'Μ': 'M', 'Ν': 'N',
	'Ο': 'O', 'Π': 'P', 'Θ': 'Q', 'Ρ': 'R', 'Σ': 'S', 'Τ': 'T', 'Υ': 'U',
	'ς': 'V', 'Ω': 'W', 'Ξ': 'X', 'Ψ': 'Y', 'Ζ': 'Z',

	'α': 'a', 'β': 'b', 'χ': 'c', 'δ': 'd', 'ε': 'e', 'φ': 'f', 'γ': 'g',
	'η': 'h', 'ι': 'i', 'ϕ': 'j', 'κ': 'k', 'λ': 'l', 'μ': 'm', 'ν': 'n',
	'ο': 'o', 'π': 'p', 'θ': 'q', 'ρ': 'r', 'σ': 's', 'τ': 't', 'υ': 'u',
	'ϖ': 'v', 'ω': 'w', 'ξ': 'x', 'ψ': 'y', 'ζ': 'z',
}

// DetectSymbolGreekText returns the ratio of Symbol-font Greek letters
// to total letters in text, per §4.11.
func DetectSymbolGreekText(text string) float64 {
	if len(text) < 10 {
		return 0
	}
	greek, letters := 0, 0
	for _, r := range text {
		if _, ok := symbolGreekToLatin[r]; ok {
			greek++
			letters++
		} else if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			letters++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(greek) / float64(letters)
}

// RepairSymbolGreekText converts Symbol-font Greek letters back to
// Latin, only applying above cfg.SymbolGreekRatioMin to avoid
// corrupting genuine math prose.
func RepairSymbolGreekText(text string, cfg Config) string {
	if DetectSymbolGreekText(text) < cfg.SymbolGreekRatioMin {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if latin, ok := symbolGreekToLatin[r]; ok {
			b.WriteRune(latin)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// --- Private-Use-Area glyph mapping ---

// puaSymbolFallback maps a handful of common ZapfDingbats/Symbol PUA
// remaps to their intended glyph, grounded on docsaf/font_encodings.go's
// ZapfDingbatsEncoding table (a fixed fallback, used when no
// context-learned mapping exists).
var puaSymbolFallback = map[rune]rune{
	0xF0B7: '•', 0xF06C: 'l', 0xF0A7: '\u2756', 0xF020: ' ', 0xF0D8: '>',
	0xF0DE: '\u2192', 0xF0E0: '\u2190',
}

// PUAMapper learns a code-point-to-rune mapping from repeated
// co-occurrence context across a document (the same PUA rune always
// appearing where a particular Latin rune "should" be, inferred from
// surrounding word shape), falling back to puaSymbolFallback when no
// learned mapping exists, per §4.11.
type PUAMapper struct {
	learned map[rune]rune
	votes   map[rune]map[rune]int
}

// NewPUAMapper returns an empty mapper ready to learn from Observe calls.
func NewPUAMapper() *PUAMapper {
	return &PUAMapper{
		learned: make(map[rune]rune),
		votes:   make(map[rune]map[rune]int),
	}
}

// Observe records that a PUA rune co-occurred in a word whose other
// (non-PUA) runes suggest the likely substitution, e.g. a PUA rune
// between two lowercase letters inside an otherwise-dictionary-shaped
// word most likely stands for a lowercase letter. This is a coarse
// heuristic, not a real spell-checker; it only up-votes a small
// candidate alphabet.
func (m *PUAMapper) Observe(word string) {
	runes := []rune(word)
	for i, r := range runes {
		if !isPUARune(r) {
			continue
		}
		candidate := inferPUACandidate(runes, i)
		if candidate == 0 {
			continue
		}
		if m.votes[r] == nil {
			m.votes[r] = make(map[rune]int)
		}
		m.votes[r][candidate]++
	}
}

func inferPUACandidate(runes []rune, i int) rune {
	// Most common case: a single missing letter inside a lowercase run.
	// There is no dictionary available at this layer, so the candidate
	// is simply "a lowercase letter" and resolution happens by majority
	// vote across the whole document in Resolve.
	hasLowerNeighbor := false
	if i > 0 && isLowerASCII(runes[i-1]) {
		hasLowerNeighbor = true
	}
	if i+1 < len(runes) && isLowerASCII(runes[i+1]) {
		hasLowerNeighbor = true
	}
	if hasLowerNeighbor {
		return 'e' // the single most frequent English letter is the best blind guess
	}
	return 0
}

func isLowerASCII(r rune) bool { return r >= 'a' && r <= 'z' }

// Resolve finalizes learned mappings: a PUA rune whose votes are
// dominated (>=60%) by one candidate is mapped to it; otherwise the
// static fallback table is consulted.
func (m *PUAMapper) Resolve() {
	for r, votes := range m.votes {
		total, best, bestN := 0, rune(0), 0
		for cand, n := range votes {
			total += n
			if n > bestN {
				best, bestN = cand, n
			}
		}
		if total > 0 && float64(bestN)/float64(total) >= 0.6 {
			m.learned[r] = best
		}
	}
}

// Map returns the mapped rune for r and whether a mapping exists,
// learned mappings taking priority over the static fallback.
func (m *PUAMapper) Map(r rune) (rune, bool) {
	if v, ok := m.learned[r]; ok {
		return v, true
	}
	if v, ok := puaSymbolFallback[r]; ok {
		return v, true
	}
	return 0, false
}

// Apply rewrites every mapped PUA rune in text, leaving unmapped PUA
// runes untouched for the Garbled-Font Heuristic (§4.9) to flag.
func (m *PUAMapper) Apply(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isPUARune(r) {
			if v, ok := m.Map(r); ok {
				b.WriteRune(v)
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// --- OCR-confusion-aware spelling repair ---

// ocrConfusionPairs is the small set of glyph confusions named in §4.11.
var ocrConfusionPairs = map[rune][]rune{
	'l': {'I', '1'}, 'I': {'l', '1'}, '1': {'l', 'I'},
	'o': {'O', '0'}, 'O': {'o', '0'}, '0': {'o', 'O'},
	's': {'5'}, '5': {'s'},
	'z': {'2'}, '2': {'z'},
}

// commonWordSet is a small seed dictionary used only to gate the
// correction: a line whose word shapes mostly match known words is left
// alone even if it contains confusable runes, to avoid corrupting
// correctly-extracted text.
var commonWordSet = buildWordSet(strings.Fields(
	"the of and a to in is you that it he was for on are as with his they " +
		"at be this have from or one had by word but not what all were we when " +
		"your can said there use an each which she do how their if will up other " +
		"about out many then them these so some her would make like him into time",
))

func commonWordRatio(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	n := 0
	for _, w := range words {
		if commonWordSet[strings.ToLower(strings.Trim(w, ".,;:!?\"'()"))] {
			n++
		}
	}
	return float64(n) / float64(len(words))
}

// repairOCRConfusionsWord rewrites a confusable word to the first variant,
// obtained by substituting one rune position, that is in commonWordSet.
// The commonWordRatio gate is applied per line by the caller,
// RepairOCRConfusionsInLine, per §4.11.
func repairOCRConfusionsWord(word string) string {
	if commonWordSet[strings.ToLower(word)] {
		return word
	}
	runes := []rune(word)
	for i, r := range runes {
		variants, ok := ocrConfusionPairs[r]
		if !ok {
			continue
		}
		for _, v := range variants {
			candidate := append([]rune(nil), runes...)
			candidate[i] = v
			if commonWordSet[strings.ToLower(string(candidate))] {
				return string(candidate)
			}
		}
	}
	return word
}

// RepairOCRConfusionsInLine corrects glyph-confusion spelling errors on
// a line, gated by a common-word-ratio test: lines that already read as
// mostly dictionary words are left untouched.
func RepairOCRConfusionsInLine(line string) string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return line
	}
	if commonWordRatio(words) >= 0.5 {
		return line
	}
	fixed := make([]string, len(words))
	for i, w := range words {
		trimmed := strings.TrimFunc(w, func(r rune) bool { return !isWordRune(r) })
		if trimmed == "" {
			fixed[i] = w
			continue
		}
		corrected := repairOCRConfusionsWord(trimmed)
		if corrected != trimmed {
			fixed[i] = strings.Replace(w, trimmed, corrected, 1)
		} else {
			fixed[i] = w
		}
	}
	return strings.Join(fixed, " ")
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// --- Line-entropy noise filtering ---

// CalculateLineEntropy computes the Shannon entropy (bits/char) of a
// line's rune distribution, grounded on docsaf/text_repair.go's
// CalculateLineEntropy.
func CalculateLineEntropy(line string) float64 {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0
	}
	counts := make(map[rune]int)
	total := 0
	for _, r := range line {
		counts[r]++
		total++
	}
	if total == 0 {
		return 0
	}
	entropy := 0.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// IsNoiseLine flags a line whose entropy exceeds cfg.NoiseEntropyThreshold
// as likely garbage (checksum-like strings, extraction artifacts), per
// §4.11. Flagged lines are excluded from DocumentStats word counts but
// never deleted from the emitted Markdown.
func IsNoiseLine(line string, cfg Config) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 10 {
		return false
	}
	return CalculateLineEntropy(trimmed) > cfg.NoiseEntropyThreshold
}

// --- Deposition/transcript line-number column stripping ---

var depositionLineNumberRe = regexp.MustCompile(`^[1-9]$|^1[0-9]$|^2[0-5]$`)

// DetectDepositionLayout reports whether a page's Lines look like a
// legal-transcript layout: a narrow leading numeric column (1-25) on
// most rows, or a strong concentration of Q:/A: markers, per §4.11.
// Grounded on docsaf/text_repair.go's DetectDepositionLayout.
func DetectDepositionLayout(lines []Line) bool {
	if len(lines) < 20 {
		return false
	}
	minX := lines[0].MinX
	for _, l := range lines {
		if l.MinX < minX {
			minX = l.MinX
		}
	}

	lineNumbers, qa := 0, 0
	for _, l := range lines {
		trimmed := strings.TrimSpace(l.Text)
		if len(l.Glyphs) == 0 {
			continue
		}
		firstX := l.Glyphs[0].X
		if firstX-minX < 30 && depositionLineNumberRe.MatchString(firstCellToken(trimmed)) {
			lineNumbers++
		}
		if trimmed == "Q" || trimmed == "A" || strings.HasPrefix(trimmed, "Q:") ||
			strings.HasPrefix(trimmed, "A:") || strings.HasPrefix(trimmed, "Q.") ||
			strings.HasPrefix(trimmed, "A.") {
			qa++
		}
	}

	if lineNumbers >= 10 {
		return true
	}
	return qa >= 5 && lineNumbers >= 5
}

func firstCellToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// FilterLineNumberColumn strips a leading line-number glyph run from
// each Line when the page is a detected deposition layout, so the
// numbering column is never mistaken for a data column by the Table
// Detector. It must run before Column Detection (§4.2).
func FilterLineNumberColumn(lines []Line) []Line {
	if !DetectDepositionLayout(lines) {
		return lines
	}
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = stripLeadingLineNumber(l)
	}
	return out
}

func stripLeadingLineNumber(l Line) Line {
	if len(l.Glyphs) == 0 {
		return l
	}
	// Find the run of glyphs forming the leading numeric token within
	// 30pt of the line's own min X, plus any immediately-following
	// whitespace gap before the main text column begins.
	minX := l.Glyphs[0].X
	cut := 0
	for cut < len(l.Glyphs) {
		g := l.Glyphs[cut]
		if g.X-minX >= 30 {
			break
		}
		if !(g.Char >= '0' && g.Char <= '9') && g.Char != ' ' {
			break
		}
		cut++
	}
	if cut == 0 {
		return l
	}
	token := strings.TrimSpace(string(glyphChars(l.Glyphs[:cut])))
	if !depositionLineNumberRe.MatchString(token) {
		return l
	}
	remaining := l.Glyphs[cut:]
	for len(remaining) > 0 && remaining[0].Char == ' ' {
		remaining = remaining[1:]
	}
	if len(remaining) == 0 {
		return l
	}
	newLine := l
	newLine.Glyphs = remaining
	newLine.MinX = remaining[0].X
	newLine.Text = string(glyphChars(remaining))
	return newLine
}

func glyphChars(glyphs []Glyph) []rune {
	out := make([]rune, len(glyphs))
	for i, g := range glyphs {
		out[i] = g.Char
	}
	return out
}

// --- Pre-pass orchestration ---

// RepairPage applies the §4.11 pre-classification repairs to a page's
// raw Lines, in the order the feature descriptions specify: line-number
// column stripping must happen before any layout analysis; mirrored-text
// and Symbol-Greek repair run per-line since they are line-local
// corruptions, before the lines are handed to the Column Detector.
func RepairPage(lines []Line, cfg Config) []Line {
	lines = FilterLineNumberColumn(lines)

	mapper := NewPUAMapper()
	for _, l := range lines {
		for _, w := range strings.Fields(l.Text) {
			mapper.Observe(w)
		}
	}
	mapper.Resolve()

	out := make([]Line, len(lines))
	for i, l := range lines {
		text := l.Text
		if repaired, ok := RepairMirroredText(text, cfg); ok {
			text = repaired
		}
		text = RepairSymbolGreekText(text, cfg)
		text = mapper.Apply(text)
		l.Text = text
		out[i] = l
	}
	return out
}
