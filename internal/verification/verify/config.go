// internal/verification/verify/config.go
package verify

import (
	"fmt"
	"math"

	apperrors "challenge-verifier/internal/common/errors"
)

// Policy holds the verdict thresholds. Scores are cosine similarities.
type Policy struct {
	PassThreshold   float64
	ReviewThreshold float64
	Margin          float64
}

func DefaultPolicy() Policy {
	return Policy{
		PassThreshold:   0.20,
		ReviewThreshold: 0.18,
		Margin:          0.04,
	}
}

// Validate rejects a policy whose bands overlap or whose margin is negative.
func (p Policy) Validate() error {
	for name, v := range map[string]float64{
		"pass_threshold":   p.PassThreshold,
		"review_threshold": p.ReviewThreshold,
		"margin":           p.Margin,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.NewConfigurationError("policy", fmt.Errorf("%s is not a finite number", name))
		}
	}
	if p.ReviewThreshold > p.PassThreshold {
		return apperrors.NewConfigurationError("policy",
			fmt.Errorf("review_threshold %.4f exceeds pass_threshold %.4f", p.ReviewThreshold, p.PassThreshold))
	}
	if p.Margin < 0 {
		return apperrors.NewConfigurationError("policy", fmt.Errorf("margin %.4f is negative", p.Margin))
	}
	return nil
}

// Decide applies the policy to the best category score sc and the best
// generic score sg. The margin rule is checked first: a category score that
// does not clear the generic baseline fails regardless of the thresholds.
func (p Policy) Decide(sc, sg float64) Outcome {
	switch {
	case sc < sg+p.Margin:
		return Fail
	case sc >= p.PassThreshold:
		return Pass
	case sc >= p.ReviewThreshold:
		return Review
	default:
		return Fail
	}
}
