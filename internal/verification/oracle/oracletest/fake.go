// Package oracletest provides deterministic oracles for tests.
package oracletest

import (
	"context"
	"image"
	"sync"

	"challenge-verifier/internal/verification/oracle"
)

// Fake scores prompts from a fixed table. Unknown prompts score Default.
// Err, when set, is returned from every Score call.
type Fake struct {
	Table    map[string]float64
	Default  float64
	Err      error
	ReadyErr error

	mu    sync.Mutex
	calls [][]string
}

func (f *Fake) Score(ctx context.Context, _ image.Image, prompts []string) (oracle.Scores, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), prompts...))
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	values := make([]float64, len(prompts))
	for i, p := range prompts {
		v, ok := f.Table[p]
		if !ok {
			v = f.Default
		}
		values[i] = v
	}
	return oracle.NewScores(prompts, values)
}

func (f *Fake) Ready(context.Context) error {
	return f.ReadyErr
}

// Calls returns the prompt lists seen so far, in call order.
func (f *Fake) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// Func adapts a function to oracle.Oracle.
type Func func(ctx context.Context, img image.Image, prompts []string) (oracle.Scores, error)

func (fn Func) Score(ctx context.Context, img image.Image, prompts []string) (oracle.Scores, error) {
	return fn(ctx, img, prompts)
}

func (fn Func) Ready(context.Context) error { return nil }
