// pkg/ruleset/ruleset.go
package ruleset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrInvalidRuleset = errors.New("invalid ruleset")

// LoadRuleset reads a JSON ruleset file and validates it.
func LoadRuleset(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rs Ruleset
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse ruleset %s: %w", path, err)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Validate checks the structural invariants the mapper and catalog rely on.
func (rs *Ruleset) Validate() error {
	if len(nonBlank(rs.Generic)) == 0 {
		return fmt.Errorf("%w: generic prompts must not be empty", ErrInvalidRuleset)
	}

	seen := make(map[Tag]bool, len(rs.Categories))
	for i, c := range rs.Categories {
		if strings.TrimSpace(string(c.Tag)) == "" {
			return fmt.Errorf("%w: category %d has no tag", ErrInvalidRuleset, i)
		}
		if c.Tag == Generic {
			return fmt.Errorf("%w: %q is the fallback and cannot be matched by keywords", ErrInvalidRuleset, Generic)
		}
		if seen[c.Tag] {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidRuleset, c.Tag)
		}
		seen[c.Tag] = true

		if len(c.Keywords) == 0 {
			return fmt.Errorf("%w: category %q has no keywords", ErrInvalidRuleset, c.Tag)
		}
		// A blank keyword is a substring of every title.
		if len(nonBlank(c.Keywords)) != len(c.Keywords) {
			return fmt.Errorf("%w: category %q has a blank keyword", ErrInvalidRuleset, c.Tag)
		}
	}
	return nil
}

// Tags returns the category tags in declaration order, without Generic.
func (rs *Ruleset) Tags() []Tag {
	tags := make([]Tag, 0, len(rs.Categories))
	for _, c := range rs.Categories {
		tags = append(tags, c.Tag)
	}
	return tags
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
