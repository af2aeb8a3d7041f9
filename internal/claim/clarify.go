package claim

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/srs/internal/model"
)

// Clarification adds Suffix right after the first match of Pattern. It is
// used for language that only makes sense in the context of one campaign.
type Clarification struct {
	Pattern *regexp.Regexp
	Suffix  string
}

// CompileClarifications turns configured rules into Clarifications
func CompileClarifications(rules []model.ClarificationRule) ([]Clarification, error) {
	out := make([]Clarification, 0, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("clarification %d: compile %q: %w", i, r.Pattern, err)
		}
		out = append(out, Clarification{Pattern: re, Suffix: r.Suffix})
	}
	return out, nil
}

// Clarify applies each rule in order to the progressively modified text.
// A rule is skipped when its suffix (ignoring enclosing parentheses) is
// already present, case-insensitively.
func Clarify(text string, rules []Clarification) string {
	for _, rule := range rules {
		probe := strings.ToLower(stripParens(rule.Suffix))
		if strings.Contains(strings.ToLower(text), probe) {
			continue
		}

		loc := rule.Pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		end := loc[1]
		text = text[:end] + " " + rule.Suffix + text[end:]
	}
	return text
}

func stripParens(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return s[1 : len(s)-1]
	}
	return s
}
