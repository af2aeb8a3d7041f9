// Package claim parses, classifies and clarifies free-text claims made by
// rating campaigns.
package claim

import (
	"regexp"

	"github.com/ppiankov/srs/internal/model"
)

// Hedged language is checked first so "good, but..." never reads as good
var (
	mixedClaimRE = regexp.MustCompile(`(?i)\b(but|however|though|` +
		`some(\s+public)?\s+information|` +
		`basic\s+steps)\b`)
	badClaimRE = regexp.MustCompile(`(?i)\b(not|unresponsive|` +
		`(no|minimal|limited|little)(\s+public)?\s+(information|evidence|visibility)|` +
		`minimal\s+effort)\b`)
	goodClaimRE = regexp.MustCompile(`(?i)\b(distinguished)\b`)
)

// sentence boundary: a period, whitespace, then an uppercase letter or digit
var sentenceSepRE = regexp.MustCompile(`\.(\s+)[A-Z0-9]`)

// Classify infers a judgment from claim text. Text matching no rule gets def.
func Classify(text string, def model.Judgment) model.Judgment {
	switch {
	case mixedClaimRE.MatchString(text):
		return model.JudgmentMixed
	case badClaimRE.MatchString(text):
		return model.JudgmentBad
	case goodClaimRE.MatchString(text):
		return model.JudgmentGood
	default:
		return def
	}
}

// ClassifyDefault is Classify with a default of good
func ClassifyDefault(text string) model.Judgment {
	return Classify(text, model.JudgmentGood)
}

// Matched reports whether any rule matched, i.e. Classify did not fall back
func Matched(text string) bool {
	return mixedClaimRE.MatchString(text) ||
		badClaimRE.MatchString(text) ||
		goodClaimRE.MatchString(text)
}

// SplitIntoSentences splits text after each period that is followed by
// whitespace and an uppercase letter or digit. Empty fragments are dropped.
func SplitIntoSentences(text string) []string {
	var parts []string
	start := 0
	for _, m := range sentenceSepRE.FindAllStringSubmatchIndex(text, -1) {
		// m[2]:m[3] is the whitespace run between sentences
		parts = append(parts, text[start:m[2]])
		start = m[3]
	}
	parts = append(parts, text[start:])

	sentences := parts[:0]
	for _, p := range parts {
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}
