// internal/verification/preview/models.go
package preview

import "challenge-verifier/pkg/ruleset"

const (
	ReasonAutoVerifiable    = "사진으로 자동 판별 가능한 챌린지입니다."
	ReasonNotAutoVerifiable = "사진으로 자동 판별하기 어려운 챌린지입니다."
)

// Result is the /preview response body.
type Result struct {
	Title          string        `json:"title"`
	Categories     []ruleset.Tag `json:"categories"`
	AutoVerifiable bool          `json:"autoVerifiable"`
	Reason         string        `json:"reason"`
}
