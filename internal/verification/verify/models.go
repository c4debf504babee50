// internal/verification/verify/models.go
package verify

import (
	"encoding/json"
	"fmt"

	"challenge-verifier/internal/verification/oracle"
	"challenge-verifier/pkg/ruleset"
)

// Outcome is the verdict of one verification.
type Outcome int

const (
	Pass Outcome = iota + 1
	Review
	Fail
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "PASS"
	case Review:
		return "REVIEW"
	case Fail:
		return "FAIL"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "PASS":
		return Pass, nil
	case "REVIEW":
		return Review, nil
	case "FAIL":
		return Fail, nil
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	if o < Pass || o > Fail {
		return nil, fmt.Errorf("cannot marshal %s", o)
	}
	return json.Marshal(o.String())
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Verdict is the full result of one verification. Field names follow the
// /verify response body.
type Verdict struct {
	Title               string        `json:"title"`
	Categories          []ruleset.Tag `json:"categories"`
	BestPrompt          string        `json:"bestPrompt"`
	Score               float64       `json:"score"`
	BestGenericPrompt   string        `json:"bestGenericPrompt"`
	GenericScore        float64       `json:"genericScore"`
	Outcome             Outcome       `json:"passed"`
	PassThreshold       float64       `json:"threshold"`
	ReviewThreshold     float64       `json:"reviewThreshold"`
	Margin              float64       `json:"margin"`
	PromptScores        oracle.Scores `json:"promptScores"`
	GenericPromptScores oracle.Scores `json:"genericPromptScores"`
}
