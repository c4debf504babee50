// internal/verification/prompts/catalog.go
package prompts

import (
	"strings"

	"challenge-verifier/pkg/ruleset"
)

// Catalog maps category tags to visual description sentences for the
// image/text similarity model. It is immutable after construction.
type Catalog struct {
	entries map[ruleset.Tag][]string
	generic []string
}

func NewCatalog(rs *ruleset.Ruleset) *Catalog {
	entries := make(map[ruleset.Tag][]string, len(rs.Categories))
	for _, c := range rs.Categories {
		if p := Dedupe(c.Prompts); len(p) > 0 {
			entries[c.Tag] = p
		}
	}
	return &Catalog{
		entries: entries,
		generic: Dedupe(rs.Generic),
	}
}

// PromptsFor returns the prompts of tag, or the generic prompts when the tag
// has no entry of its own.
func (c *Catalog) PromptsFor(tag ruleset.Tag) []string {
	if p, ok := c.entries[tag]; ok {
		return clone(p)
	}
	return c.GenericPrompts()
}

// GenericPrompts returns the fixed baseline set.
func (c *Catalog) GenericPrompts() []string {
	return clone(c.generic)
}

// Dedupe drops blank sentences and repeats, keeping the first occurrence.
func Dedupe(prompts []string) []string {
	seen := make(map[string]bool, len(prompts))
	out := make([]string, 0, len(prompts))
	for _, p := range prompts {
		if strings.TrimSpace(p) == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
