// Package rating holds helpers for campaign ratings.
package rating

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/srs/internal/model"
)

// DefaultMinScore is assumed when a rating has a score but no min_score;
// 0 is by far the most common floor
const DefaultMinScore = 0

// ErrEmptyGrade is returned for a grade with no characters
var ErrEmptyGrade = errors.New("empty grade")

// ErrInvalidGrade is returned when the first character is not valid UTF-8
// or is the replacement character
var ErrInvalidGrade = errors.New("invalid grade")

// GradeToJudgment converts a letter grade such as "B+" to a judgment:
// A and B are good, C is mixed, D, E and F are bad. Only the first
// character counts. Campaigns that color their grades differently must
// supply a judgment themselves.
func GradeToJudgment(grade string) (model.Judgment, error) {
	if grade == "" {
		return 0, ErrEmptyGrade
	}
	r, _ := utf8.DecodeRuneInString(grade)
	if r == utf8.RuneError {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGrade, grade)
	}

	switch r = unicode.ToUpper(r); {
	case r < 'C':
		return model.JudgmentGood, nil
	case r == 'C':
		return model.JudgmentMixed, nil
	default:
		return model.JudgmentBad, nil
	}
}
