// Package oracle scores an image against text prompts with an image/text
// embedding model. Scores are cosine similarities of L2-normalised embeddings.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
)

// ErrMalformedScores is returned when a backend answers with a score list that
// does not line up with the prompts it was asked about.
var ErrMalformedScores = errors.New("malformed score map")

// Oracle is the embedding similarity capability.
type Oracle interface {
	// Score returns one score per prompt, in prompt order.
	Score(ctx context.Context, img image.Image, prompts []string) (Scores, error)
	// Ready reports whether the backend can serve Score calls.
	Ready(ctx context.Context) error
}

type PromptScore struct {
	Prompt string
	Score  float64
}

// Scores keeps prompt order and serialises as a JSON object in that order.
type Scores []PromptScore

// NewScores pairs prompts with values. The lengths must match.
func NewScores(prompts []string, values []float64) (Scores, error) {
	if len(prompts) != len(values) {
		return nil, fmt.Errorf("%w: %d prompts, %d scores", ErrMalformedScores, len(prompts), len(values))
	}
	out := make(Scores, len(prompts))
	for i, p := range prompts {
		out[i] = PromptScore{Prompt: p, Score: values[i]}
	}
	return out, nil
}

// Best returns the highest score. Ties go to the earliest prompt.
func (s Scores) Best() (PromptScore, bool) {
	if len(s) == 0 {
		return PromptScore{}, false
	}
	best := s[0]
	for _, ps := range s[1:] {
		if ps.Score > best.Score {
			best = ps
		}
	}
	return best, true
}

// Validate checks that s holds exactly one entry per prompt, in order.
func (s Scores) Validate(prompts []string) error {
	if len(s) != len(prompts) {
		return fmt.Errorf("%w: %d prompts, %d scores", ErrMalformedScores, len(prompts), len(s))
	}
	for i, p := range prompts {
		if s[i].Prompt != p {
			return fmt.Errorf("%w: position %d is %q, want %q", ErrMalformedScores, i, s[i].Prompt, p)
		}
	}
	return nil
}

func (s Scores) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ps := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(ps.Prompt)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(ps.Score)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Scores) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("scores: expected object, got %v", tok)
	}
	out := Scores{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("scores: %q: %w", key, err)
		}
		out = append(out, PromptScore{Prompt: key, Score: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}
