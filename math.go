package docmd

import (
	"regexp"
	"strings"
	"unicode"
)

// greekToLatex maps 52 Greek letter code points (24 upper case, 25 lower
// case including final sigma, and the ϑ/ϕ/ϖ variants); letters that
// collide with ASCII Latin letters map to the Latin letter instead of a
// LaTeX command, per §4.6. Modeled on
// font_encodings.go's flat map[rune]rune tables, extended here to LaTeX
// command strings since no teacher file carries a Greek-to-LaTeX table.
var greekToLatex = map[rune]string{
	'Α': "A", 'Β': "B", 'Γ': "\\Gamma", 'Δ': "\\Delta", 'Ε': "E",
	'Ζ': "Z", 'Η': "H", 'Θ': "\\Theta", 'Ι': "I", 'Κ': "K",
	'Λ': "\\Lambda", 'Μ': "M", 'Ν': "N", 'Ξ': "\\Xi", 'Ο': "O",
	'Π': "\\Pi", 'Ρ': "P", 'Σ': "\\Sigma", 'Τ': "T", 'Υ': "\\Upsilon",
	'Φ': "\\Phi", 'Χ': "X", 'Ψ': "\\Psi", 'Ω': "\\Omega",

	'α': "\\alpha", 'β': "\\beta", 'γ': "\\gamma", 'δ': "\\delta",
	'ε': "\\epsilon", 'ζ': "\\zeta", 'η': "\\eta", 'θ': "\\theta",
	'ι': "\\iota", 'κ': "\\kappa", 'λ': "\\lambda", 'μ': "\\mu",
	'ν': "\\nu", 'ξ': "\\xi", 'ο': "o", 'π': "\\pi", 'ρ': "\\rho",
	'ς': "\\varsigma", 'σ': "\\sigma", 'τ': "\\tau", 'υ': "\\upsilon",
	'φ': "\\phi", 'χ': "\\chi", 'ψ': "\\psi", 'ω': "\\omega",
	'ϑ': "\\vartheta", 'ϕ': "\\varphi", 'ϖ': "\\varpi",
}

var superscriptToLatexDigit = map[rune]rune{
	'⁰': '0', '¹': '1', '²': '2', '³': '3', '⁴': '4',
	'⁵': '5', '⁶': '6', '⁷': '7', '⁸': '8', '⁹': '9',
	'⁺': '+', '⁻': '-', '⁼': '=', '⁽': '(', '⁾': ')',
}

var subscriptToLatexDigit = map[rune]rune{
	'₀': '0', '₁': '1', '₂': '2', '₃': '3', '₄': '4',
	'₅': '5', '₆': '6', '₇': '7', '₈': '8', '₉': '9',
	'₊': '+', '₋': '-', '₌': '=', '₍': '(', '₎': ')',
}

// operatorToLatex covers the ~80 operator/relation/arrow/set/logic/
// calculus symbols named in §4.6.
var operatorToLatex = map[rune]string{
	'≠': "\\neq", '≈': "\\approx", '≃': "\\simeq", '≅': "\\cong",
	'≡': "\\equiv", '≤': "\\leq", '≥': "\\geq", '≪': "\\ll", '≫': "\\gg",
	'∝': "\\propto", '±': "\\pm", '∓': "\\mp", '×': "\\times", '÷': "\\div",
	'·': "\\cdot", '∘': "\\circ", '∗': "\\ast", '⋅': "\\cdot",
	'→': "\\to", '←': "\\leftarrow", '↔': "\\leftrightarrow", '⇒': "\\Rightarrow",
	'⇐': "\\Leftarrow", '⇔': "\\Leftrightarrow", '↦': "\\mapsto", '↑': "\\uparrow",
	'↓': "\\downarrow",
	'∈': "\\in", '∉': "\\notin", '⊂': "\\subset", '⊆': "\\subseteq",
	'⊃': "\\supset", '⊇': "\\supseteq", '∪': "\\cup", '∩': "\\cap",
	'∅': "\\emptyset", '∖': "\\setminus",
	'∀': "\\forall", '∃': "\\exists", '¬': "\\neg", '∧': "\\land", '∨': "\\lor",
	'∑': "\\sum", '∏': "\\prod", '∫': "\\int", '∬': "\\iint", '∭': "\\iiint",
	'∇': "\\nabla", '∂': "\\partial", '√': "\\sqrt", '∞': "\\infty",
	'⊕': "\\oplus", '⊗': "\\otimes", '⊥': "\\perp", '∥': "\\parallel",
	'∠': "\\angle", '∴': "\\therefore", '∵': "\\because", '≜': "\\triangleq",
	'′': "'", '″': "''", '…': "\\ldots", '⋯': "\\cdots",
	'≲': "\\lesssim", '≳': "\\gtrsim", '⊄': "\\not\\subset", '⊅': "\\not\\supset",
	'(': "(", ')': ")", '[': "[", ']': "]", '{': "\\{", '}': "\\}",
	'⟨': "\\langle", '⟩': "\\rangle", '⌊': "\\lfloor", '⌋': "\\rfloor",
	'⌈': "\\lceil", '⌉': "\\rceil",
}

func unicodeToLatexChar(r rune) (string, bool) {
	if s, ok := greekToLatex[r]; ok {
		return s, true
	}
	if s, ok := operatorToLatex[r]; ok {
		return s, true
	}
	return "", false
}

// isNamedCommand reports whether s is a multi-letter LaTeX control sequence
// (e.g. "\pi", "\leq") rather than a single escaped symbol ("\{") or a
// bare pass-through character, since only the former swallows a following
// letter into its command name.
func isNamedCommand(s string) bool {
	if len(s) < 2 || s[0] != '\\' {
		return false
	}
	for _, r := range s[1:] {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// needsSpaceBefore reports whether r would merge into a preceding named
// LaTeX command if written with no separator.
func needsSpaceBefore(r rune) bool {
	return unicode.IsLetter(r) || r == '\\'
}

func isGreek(r rune) bool {
	_, ok := greekToLatex[r]
	return ok
}

func isSuperscript(r rune) bool {
	_, ok := superscriptToLatexDigit[r]
	return ok
}

func isSubscript(r rune) bool {
	_, ok := subscriptToLatexDigit[r]
	return ok
}

func isOperator(r rune) bool {
	_, ok := operatorToLatex[r]
	return ok
}

var equationRelationOps = map[rune]bool{
	'=': true, '≤': true, '≥': true, '≠': true, '≈': true, '≃': true,
	'⇒': true, '→': true, '⇔': true, '↦': true, '∝': true,
}

// mathDensity implements §4.6's density formula.
func mathDensity(text string) float64 {
	strong := 0.0
	weak := 0.0
	for _, r := range text {
		switch {
		case isGreek(r), isSuperscript(r), isSubscript(r), isOperator(r), r == '^', r == '_':
			strong++
		case r == '=' || r == '+' || r == '*':
			weak++
		}
	}
	n := float64(len([]rune(text)))
	if n == 0 {
		return 0
	}
	density := strong / n
	if strong > 0 {
		density += (weak / n) * 0.3
	}

	if strong > 0 {
		if simpleFractionRe.MatchString(text) {
			density += 0.05
		}
		if letterThenScriptRe.MatchString(text) {
			density += 0.15
		}
		if xEqualsRe.MatchString(text) {
			density += 0.10
		}
		if strings.Contains(text, "sqrt") || strings.Contains(text, "\\sqrt") || strings.ContainsRune(text, '√') {
			density += 0.15
		}
		if strings.Contains(text, "sum") || strings.Contains(text, "\\sum") || strings.ContainsRune(text, '∑') ||
			strings.Contains(text, "int") || strings.Contains(text, "\\int") || strings.ContainsRune(text, '∫') {
			density += 0.20
		}
	}

	if density > 1 {
		density = 1
	}
	if density < 0 {
		density = 0
	}
	return density
}

var (
	simpleFractionRe   = regexp.MustCompile(`\d+/\d+`)
	letterThenScriptRe = regexp.MustCompile(`[A-Za-z][⁰-⁹₀-₉]`)
	xEqualsRe          = regexp.MustCompile(`\b[a-zA-Z]\s*=`)
)

func containsStrongIndicator(s string) bool {
	for _, r := range s {
		if isGreek(r) || isSuperscript(r) || isSubscript(r) || isOperator(r) || r == '^' || r == '_' {
			return true
		}
	}
	return false
}

func countStrongIndicators(s string) int {
	n := 0
	for _, r := range s {
		if isGreek(r) || isSuperscript(r) || isSubscript(r) || isOperator(r) || r == '^' || r == '_' {
			n++
		}
	}
	return n
}

// isDisplayMath implements §4.6's display-math predicate.
func isDisplayMath(text string, multiLine bool, cfg Config) bool {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "$$") && strings.HasSuffix(t, "$$") {
		return true
	}
	if strings.HasPrefix(t, "\\[") && strings.HasSuffix(t, "\\]") {
		return true
	}
	for _, env := range []string{"equation", "align", "gather", "multline", "eqnarray", "displaymath"} {
		if strings.Contains(t, "\\begin{"+env+"}") {
			return true
		}
	}

	density := mathDensity(t)
	if multiLine && density > cfg.MathDisplayDensity {
		return true
	}

	if !multiLine && len(t) < cfg.MathDisplaySingleLineLen && density > cfg.MathDisplaySingleDensity {
		hasRelOp := false
		for _, r := range t {
			if equationRelationOps[r] {
				hasRelOp = true
				break
			}
		}
		hasConstruct := strings.ContainsAny(t, "∫∑") || strings.Contains(t, "\\int") ||
			strings.Contains(t, "\\sum") || strings.Contains(t, "\\frac") || strings.Contains(t, "matrix")
		if hasRelOp || hasConstruct {
			return true
		}
	}
	return false
}

// isInlineMath implements §4.6's inline-math predicate.
func isInlineMath(text string, cfg Config) bool {
	density := mathDensity(text)
	l := len([]rune(text))
	if l < cfg.MathInlineDensityShortLen && density > cfg.MathInlineDensityShort {
		return true
	}
	if l < cfg.MathInlineShortLen && containsStrongIndicator(text) {
		return true
	}
	return false
}

var inlineSpanCharRe = regexp.MustCompile(`[A-Za-z0-9+\-=<>^_(){}\s]`)

// findInlineMathSpans extracts contiguous runs containing strong math
// indicators from a longer prose line, per §4.6. The length/word-count/
// trailing-period gates are the sole pruning mechanism (§9 open
// question 4: no additional ad hoc greediness limit).
func findInlineMathSpans(text string) []MathSegment {
	runes := []rune(text)
	var spans []MathSegment
	i := 0
	for i < len(runes) {
		if !containsStrongIndicator(string(runes[i])) {
			i++
			continue
		}
		start := i
		j := i
		for j < len(runes) {
			r := runes[j]
			if containsStrongIndicator(string(r)) || inlineSpanCharRe.MatchString(string(r)) {
				j++
				continue
			}
			break
		}
		// Trim trailing whitespace from the span.
		end := j
		for end > start && runes[end-1] == ' ' {
			end--
		}
		span := string(runes[start:end])
		words := strings.Fields(span)
		reject := len(span) > 80 || len(words) > 6 ||
			(strings.HasSuffix(span, ".") && len(words) > 2)
		if !reject && mathDensity(span) >= 0.2 {
			spans = append(spans, MathSegment{Text: span, IsMath: true, StartIndex: start, EndIndex: end})
		}
		i = j
		if i == start {
			i++
		}
	}
	return mergeOverlappingSpans(spans)
}

func mergeOverlappingSpans(spans []MathSegment) []MathSegment {
	if len(spans) < 2 {
		return spans
	}
	merged := []MathSegment{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.StartIndex <= last.EndIndex {
			if s.EndIndex > last.EndIndex {
				last.EndIndex = s.EndIndex
			}
		} else {
			merged = append(merged, s)
		}
	}
	return merged
}

// MathSegment is a partition of a text string: segments concatenated
// reproduce the input exactly.
type MathSegment struct {
	Text               string
	IsMath, IsDisplay  bool
	StartIndex, EndIndex int
}

// normalizeMathText applies the Unicode-to-LaTeX substitution and the
// single-space/fraction normalization of §4.6.
func normalizeMathText(text string) string {
	runes := []rune(text)
	var b strings.Builder
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case isSuperscript(r):
			j := i
			var digits strings.Builder
			for j < len(runes) {
				if d, ok := superscriptToLatexDigit[runes[j]]; ok {
					digits.WriteRune(d)
					j++
					continue
				}
				break
			}
			b.WriteString("^{" + digits.String() + "}")
			i = j
		case isSubscript(r):
			j := i
			var digits strings.Builder
			for j < len(runes) {
				if d, ok := subscriptToLatexDigit[runes[j]]; ok {
					digits.WriteRune(d)
					j++
					continue
				}
				break
			}
			b.WriteString("_{" + digits.String() + "}")
			i = j
		default:
			if s, ok := unicodeToLatexChar(r); ok {
				b.WriteString(s)
				if isNamedCommand(s) && i+1 < len(runes) && needsSpaceBefore(runes[i+1]) {
					b.WriteByte(' ')
				}
			} else {
				b.WriteRune(r)
			}
			i++
		}
	}
	out := simpleFractionRe.ReplaceAllStringFunc(b.String(), func(m string) string {
		parts := strings.SplitN(m, "/", 2)
		if len(parts) != 2 {
			return m
		}
		return "\\frac{" + parts[0] + "}{" + parts[1] + "}"
	})
	out = regexp.MustCompile(`[ \t]+`).ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// wrapMath wraps a normalized math segment with inline or display
// delimiters, per §4.6.
func wrapMath(normalized string, display bool) string {
	if display {
		return "$$\n" + normalized + "\n$$"
	}
	return "$" + normalized + "$"
}

// TokenizeMath segments a text string into non-math and math runs,
// implementing §4.6's four-step segmentation algorithm, and renders
// each math run as LaTeX wrapped in inline or display delimiters.
func TokenizeMath(text string, multiLine bool, cfg Config) string {
	t := strings.TrimSpace(text)

	// Step 1: already delimited - pass through untouched.
	if (strings.HasPrefix(t, "$$") && strings.HasSuffix(t, "$$")) ||
		(strings.HasPrefix(t, "\\[") && strings.HasSuffix(t, "\\]")) ||
		(strings.HasPrefix(t, "$") && strings.HasSuffix(t, "$") && len(t) > 1) {
		return text
	}

	if isDisplayMath(t, multiLine, cfg) {
		return wrapMath(normalizeMathText(t), true)
	}

	if !multiLine {
		density := mathDensity(t)
		strongCount := countStrongIndicators(t)
		looksLikeProse := proseScore(strings.Split(t, "\n"), cfg) > 0
		spans := findInlineMathSpans(t)

		if looksLikeProse && len(spans) > 0 {
			var b strings.Builder
			last := 0
			runes := []rune(t)
			for _, s := range spans {
				b.WriteString(string(runes[last:s.StartIndex]))
				b.WriteString(wrapMath(normalizeMathText(s.Text), false))
				last = s.EndIndex
			}
			b.WriteString(string(runes[last:]))
			return b.String()
		}

		threshold := 0.12 + min(1.0, float64(len(t))/50)*0.13
		requiredStrong := 1
		if len(t) > 100 {
			requiredStrong = 3
		}
		if density >= threshold && strongCount >= requiredStrong {
			return wrapMath(normalizeMathText(t), false)
		}
		if isInlineMath(t, cfg) {
			return wrapMath(normalizeMathText(t), false)
		}
	}

	return text
}
