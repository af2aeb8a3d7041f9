package model

import (
	"fmt"
	"strings"
)

// Judgment is the three-valued recommendation scale shared by ratings and claims
type Judgment int

const (
	JudgmentBad   Judgment = -1 // Avoid
	JudgmentMixed Judgment = 0  // Mixed or hedged
	JudgmentGood  Judgment = 1  // Recommended
)

func (j Judgment) String() string {
	switch j {
	case JudgmentBad:
		return "bad"
	case JudgmentMixed:
		return "mixed"
	case JudgmentGood:
		return "good"
	default:
		return fmt.Sprintf("judgment(%d)", int(j))
	}
}

// ParseJudgment accepts "good"/"mixed"/"bad" or "1"/"0"/"-1"
func ParseJudgment(s string) (Judgment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "good", "1", "+1":
		return JudgmentGood, nil
	case "mixed", "0":
		return JudgmentMixed, nil
	case "bad", "-1":
		return JudgmentBad, nil
	default:
		return 0, fmt.Errorf("unknown judgment %q (want good, mixed or bad)", s)
	}
}
