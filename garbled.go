package docmd

import (
	"regexp"
	"strings"
)

// GarbledFontAdvisory is the advisory-only result of §4.9: the core
// never calls out to a vision service itself, it only flags the page.
type GarbledFontAdvisory struct {
	Recommend         bool
	Reason            string
	GarbledPercentage float64
}

func isPUARune(r rune) bool {
	return r >= 0xE000 && r <= 0xF8FF
}

var (
	letterFFFDLetterRe = regexp.MustCompile(`\p{L}\x{FFFD}\p{L}`)
	ffdRunRe            = regexp.MustCompile(`\x{FFFD}{2,}`)
	mathOperatorBlockRe = regexp.MustCompile(`[∑∏∫√∂∇≤≥≠≈±×÷]{3,}`)
	garbledSubscriptRe  = regexp.MustCompile(`[a-zℎ]>@\x{FFFD}?`)
	parensGarbledRe     = regexp.MustCompile(`K\([^)]*\)\+\s*M[a-zℎ]>@`)
)

// GarbledPatternMatchCount counts the pattern-set matches named in §4.9.
func GarbledPatternMatchCount(text string) int {
	n := 0
	n += len(letterFFFDLetterRe.FindAllString(text, -1))
	n += len(ffdRunRe.FindAllString(text, -1))
	n += len(mathOperatorBlockRe.FindAllString(text, -1))
	n += len(garbledSubscriptRe.FindAllString(text, -1))
	n += len(parensGarbledRe.FindAllString(text, -1))
	return n
}

// DetectGarbledFont implements §4.9's recommendation formula: grounded
// directly on docsaf/ocr_quality.go's NeedsOCRFallback/HasGarbledPatterns.
func DetectGarbledFont(text string, cfg Config) GarbledFontAdvisory {
	replacementCount := strings.Count(text, "�")
	puaCount := 0
	total := 0
	for _, r := range text {
		total++
		if isPUARune(r) {
			puaCount++
		}
	}

	patternMatches := GarbledPatternMatchCount(text)

	var percentage float64
	if total > 0 {
		percentage = float64(replacementCount+puaCount) / float64(total)
	}

	reasons := []string{}
	if replacementCount >= cfg.GarbledMinReplacementChars {
		reasons = append(reasons, "replacement_characters")
	}
	if puaCount >= cfg.GarbledMinPUAChars {
		reasons = append(reasons, "private_use_area_characters")
	}
	if patternMatches >= cfg.GarbledMinPatternMatches {
		reasons = append(reasons, "garbled_pattern_match")
	}

	return GarbledFontAdvisory{
		Recommend:         len(reasons) > 0,
		Reason:            strings.Join(reasons, ","),
		GarbledPercentage: percentage,
	}
}
