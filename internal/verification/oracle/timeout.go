package oracle

import (
	"context"
	"errors"
	"image"
	"time"

	apperrors "challenge-verifier/internal/common/errors"
)

type timeoutOracle struct {
	next    Oracle
	timeout time.Duration
}

// WithTimeout bounds each Score call. A call that runs past the deadline fails
// with ORACLE_TIMEOUT; any other backend failure becomes ORACLE_UNAVAILABLE.
// Cancellation by the caller is passed through untouched.
func WithTimeout(next Oracle, timeout time.Duration) Oracle {
	return &timeoutOracle{next: next, timeout: timeout}
}

func (o *timeoutOracle) Score(ctx context.Context, img image.Image, prompts []string) (Scores, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	scores, err := o.next.Score(callCtx, img, prompts)
	if err == nil {
		return scores, nil
	}
	return nil, o.classify(ctx, err)
}

func (o *timeoutOracle) classify(parent context.Context, err error) error {
	if _, ok := apperrors.AsStandardError(err); ok {
		return err
	}
	if parent.Err() != nil && errors.Is(parent.Err(), context.Canceled) {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewOracleTimeoutError(o.timeout, err)
	}
	return apperrors.NewOracleUnavailableError(err)
}

func (o *timeoutOracle) Ready(ctx context.Context) error {
	return o.next.Ready(ctx)
}
