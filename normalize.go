package docmd

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DocumentStats is computed on final Markdown after normalization.
type DocumentStats struct {
	WordCount     int
	HeadingCount  int
	TableCount    int
	ListItemCount int
	ImageCount    int
	PageCount     int
}

var digitRunRe = regexp.MustCompile(`\d+`)

// normalizeForComparison strips page numbers/dates and collapses
// whitespace, per §4.8's header/footer pattern clustering. Grounded on
// docsaf/text_repair.go's normalizeForComparison.
func normalizeForComparison(s string) string {
	s = digitRunRe.ReplaceAllString(s, "#")
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(strings.TrimSpace(s))
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}

func jaccardSimilarity(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter, union := 0, 0
	seen := make(map[string]bool, len(a)+len(b))
	for w := range a {
		seen[w] = true
		if b[w] {
			inter++
		}
	}
	for w := range b {
		seen[w] = true
	}
	union = len(seen)
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// PageText is the per-page normalizer input: the page's Markdown text as
// ordered lines, from which sampleLines takes the first and last lines.
type PageText struct {
	PageNumber int
	Lines      []string // full, ordered text lines of the page's Markdown
}

func (p PageText) sampleLines(n int, fromEnd bool) []string {
	if len(p.Lines) == 0 {
		return nil
	}
	if fromEnd {
		start := len(p.Lines) - n
		if start < 0 {
			start = 0
		}
		return p.Lines[start:]
	}
	if n > len(p.Lines) {
		n = len(p.Lines)
	}
	return p.Lines[:n]
}

// DetectRepeatingPatterns clusters normalized first/last lines by
// Jaccard similarity and returns those appearing on at least
// cfg.HeaderFooterPagePct of pages, per §4.8. Grounded on
// docsaf/text_repair.go's findRepeatingPatterns/isSimilar.
func DetectRepeatingPatterns(pages []PageText, cfg Config) []string {
	if len(pages) < cfg.HeaderFooterMinPageCount {
		return nil
	}

	type candidate struct {
		text string
		page int
	}
	var candidates []candidate
	for pi, p := range pages {
		for _, l := range p.sampleLines(cfg.HeaderFooterSampleLines, false) {
			candidates = append(candidates, candidate{normalizeForComparison(l), pi})
		}
		for _, l := range p.sampleLines(cfg.HeaderFooterSampleLines, true) {
			candidates = append(candidates, candidate{normalizeForComparison(l), pi})
		}
	}

	// count is the number of distinct pages a cluster appears on.
	type cluster struct {
		rep      string
		words    map[string]bool
		count    int
		lastPage int
	}
	var clusters []*cluster

	for _, c := range candidates {
		if c.text == "" {
			continue
		}
		ws := wordSet(c.text)
		matched := false
		for _, cl := range clusters {
			if jaccardSimilarity(ws, cl.words) >= cfg.HeaderFooterJaccard {
				if cl.lastPage != c.page {
					cl.count++
					cl.lastPage = c.page
				}
				matched = true
				break
			}
		}
		if !matched {
			clusters = append(clusters, &cluster{rep: c.text, words: ws, count: 1, lastPage: c.page})
		}
	}

	var patterns []string
	minCount := float64(len(pages)) * cfg.HeaderFooterPagePct
	for _, cl := range clusters {
		if float64(cl.count) >= minCount {
			patterns = append(patterns, cl.rep)
		}
	}
	return patterns
}

// RemoveHeaderFooterLines filters a page's lines against the detected
// patterns, checking the first/last N lines per §4.8.
func RemoveHeaderFooterLines(lines []string, patterns []string, cfg Config) []string {
	if len(patterns) == 0 {
		return lines
	}
	matchesPattern := func(l string) bool {
		norm := normalizeForComparison(l)
		if norm == "" {
			return false
		}
		ws := wordSet(norm)
		for _, p := range patterns {
			if jaccardSimilarity(ws, wordSet(p)) >= cfg.HeaderFooterJaccard {
				return true
			}
		}
		return false
	}

	out := make([]string, 0, len(lines))
	n := cfg.HeaderFooterSampleLines
	for i, l := range lines {
		isEdge := i < n || i >= len(lines)-n
		if isEdge && matchesPattern(l) {
			continue
		}
		out = append(out, l)
	}
	return out
}

var (
	hyphenJoinRe  = regexp.MustCompile(`(\p{L})[-\x{2010}\x{2011}]\n(\p{Ll})`)
	enDashJoinRe  = regexp.MustCompile(`(\p{L})\x{2013}\n(\p{Ll})`)
	softHyphenRe  = regexp.MustCompile(`\x{00AD}`)
)

// RepairHyphenation joins word-\nword across line breaks and strips
// soft hyphens, per §4.8. Grounded on font_encodings.go's
// JoinHyphenatedWords.
func RepairHyphenation(text string) string {
	text = softHyphenRe.ReplaceAllString(text, "")
	text = hyphenJoinRe.ReplaceAllString(text, "$1$2")
	text = enDashJoinRe.ReplaceAllString(text, "$1$2")
	return text
}

// DefragmentLines merges short continuation lines with the previous
// line, per §4.8. A line is never merged into a preceding heading.
func DefragmentLines(lines []string, cfg Config) []string {
	if len(lines) == 0 {
		return lines
	}
	out := make([]string, 0, len(lines))
	out = append(out, lines[0])
	for i := 1; i < len(lines); i++ {
		cur := lines[i]
		trimmed := strings.TrimSpace(cur)
		if trimmed == "" {
			out = append(out, cur)
			continue
		}
		if len(trimmed) > cfg.LineDefragMaxLen || strings.HasPrefix(trimmed, "#") || lineStartsList(cur) {
			out = append(out, cur)
			continue
		}
		prevIdx := len(out) - 1
		for prevIdx >= 0 && strings.TrimSpace(out[prevIdx]) == "" {
			prevIdx--
		}
		if prevIdx < 0 {
			out = append(out, cur)
			continue
		}
		prev := out[prevIdx]
		if strings.HasPrefix(strings.TrimSpace(prev), "#") {
			out = append(out, cur)
			continue
		}
		prevEndsStrong := endsWithAny(prev, ".!?;:")
		if !prevEndsStrong || startsLowerOrContinuation(trimmed) {
			out[prevIdx] = strings.TrimRight(prev, " \t") + " " + trimmed
		} else {
			out = append(out, cur)
		}
	}
	return out
}

func endsWithAny(s string, chars string) bool {
	trimmed := strings.TrimRight(s, " \t")
	if trimmed == "" {
		return false
	}
	return strings.ContainsRune(chars, rune(trimmed[len(trimmed)-1]))
}

var onlyBulletRe = regexp.MustCompile(`^\s*[-•●○◦▪▸►◆]\s*$`)

// MergeOrphanBullets merges a standalone bullet-only line with its
// following text, per §4.8.
func MergeOrphanBullets(lines []string) []string {
	out := make([]string, 0, len(lines))
	i := 0
	for i < len(lines) {
		l := lines[i]
		if onlyBulletRe.MatchString(l) && i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if next != "" && !lineStartsList(next) {
				out = append(out, "- "+next)
				i += 2
				continue
			}
		}
		out = append(out, l)
		i++
	}
	return out
}

var (
	headingLineRe  = regexp.MustCompile(`(?m)^#+\s+.+$`)
	pipeRowRe      = regexp.MustCompile(`(?m)^\|.*\|$`)
	listItemLineRe = regexp.MustCompile(`(?m)^\s*([-*+]|\d+[.)])\s+.+$`)
	imageRe        = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	markdownSynRe  = regexp.MustCompile(`[#*_` + "`" + `>\[\]()|-]`)
)

// ComputeStats derives DocumentStats from the final Markdown, per §4.8.
// The word count excludes lines IsNoiseLine flags as extraction garbage
// (§4.11): those lines stay in the emitted Markdown but don't inflate
// the corpus statistics.
func ComputeStats(markdown string, pageCount int, cfg Config) DocumentStats {
	stats := DocumentStats{PageCount: pageCount}
	stats.HeadingCount = len(headingLineRe.FindAllString(markdown, -1))
	stats.ListItemCount = len(listItemLineRe.FindAllString(markdown, -1))
	stats.ImageCount = len(imageRe.FindAllString(markdown, -1))

	// Count consecutive pipe-row runs as tables (a run of >=2 rows).
	lines := strings.Split(markdown, "\n")
	pipeRun := 0
	var cleanLines []string
	for _, l := range lines {
		if pipeRowRe.MatchString(l) {
			pipeRun++
			if pipeRun == 2 {
				stats.TableCount++
			}
		} else {
			pipeRun = 0
		}
		if !IsNoiseLine(l, cfg) {
			cleanLines = append(cleanLines, l)
		}
	}

	stripped := markdownSynRe.ReplaceAllString(strings.Join(cleanLines, "\n"), " ")
	stats.WordCount = len(strings.Fields(stripped))
	return stats
}

// NormalizeDocument runs the full §4.8 pass over a document's per-page
// line sets: header/footer detection and removal, hyphenation repair,
// line defragmentation, and bullet merging, returning the final
// Markdown and its statistics.
func NormalizeDocument(pages []PageText, cfg Config, opts ConvertOptions) (string, DocumentStats) {
	var patterns []string
	if !opts.DisableHeaderFooter {
		patterns = DetectRepeatingPatterns(pages, cfg)
	}

	var allLines []string
	for _, p := range pages {
		lines := p.Lines
		if !opts.DisableHeaderFooter {
			lines = RemoveHeaderFooterLines(lines, patterns, cfg)
		}
		lines = MergeOrphanBullets(lines)
		lines = DefragmentLines(lines, cfg)
		allLines = append(allLines, lines...)
		allLines = append(allLines, "")
	}

	joined := strings.Join(allLines, "\n")
	if !opts.DisableHyphenationFix {
		joined = RepairHyphenation(joined)
	}
	joined = norm.NFC.String(joined)
	joined = collapseBlankLines(joined, cfg, opts.PreserveLayout)

	stats := ComputeStats(joined, len(pages), cfg)
	return joined, stats
}
