package model

// ClaimSource says how a claim's judgment was decided
type ClaimSource string

const (
	ClaimSourceRules   ClaimSource = "rules"   // a text rule matched
	ClaimSourceJudge   ClaimSource = "judge"   // the model-backed judge decided
	ClaimSourceDefault ClaimSource = "default" // nothing matched
)

// ClassifiedClaim is one claim sentence and its judgment
type ClassifiedClaim struct {
	Text     string      `json:"text"`
	Judgment Judgment    `json:"judgment"`
	Label    string      `json:"label"`
	Source   ClaimSource `json:"source"`
}
