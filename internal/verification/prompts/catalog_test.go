// internal/verification/prompts/catalog_test.go
package prompts

import (
	"testing"

	"challenge-verifier/internal/verification/category"
	"challenge-verifier/pkg/ruleset"

	"github.com/stretchr/testify/assert"
)

func TestCatalog_PromptsFor(t *testing.T) {
	c := NewCatalog(ruleset.Default())

	fitness := c.PromptsFor(ruleset.Fitness)
	assert.Equal(t, "a person exercising", fitness[0])
	assert.Len(t, fitness, 6)

	assert.Equal(t, c.GenericPrompts(), c.PromptsFor(ruleset.Generic))
	assert.Equal(t, c.GenericPrompts(), c.PromptsFor("unknown-tag"))
}

func TestCatalog_GenericPromptsAreStable(t *testing.T) {
	c := NewCatalog(ruleset.Default())

	want := []string{
		"a photo of a person",
		"a photo taken indoors",
		"a photo taken outdoors",
		"a photo of an object",
	}
	assert.Equal(t, want, c.GenericPrompts())

	got := c.GenericPrompts()
	got[0] = "mutated"
	assert.Equal(t, want, c.GenericPrompts())
}

func TestCatalog_CategoryWithoutPromptsFallsBack(t *testing.T) {
	rs := ruleset.Default()
	rs.Categories = append(rs.Categories, ruleset.Category{Tag: "music", Keywords: []string{"피아노"}})
	rs.Categories[0].Prompts = []string{"", "  "}

	c := NewCatalog(rs)
	assert.Equal(t, c.GenericPrompts(), c.PromptsFor("music"))
	assert.Equal(t, c.GenericPrompts(), c.PromptsFor(ruleset.Fitness))
}

func TestCatalog_CoversEveryMapperTag(t *testing.T) {
	rs := ruleset.Default()
	rs.Categories = append(rs.Categories, ruleset.Category{Tag: "music", Keywords: []string{"피아노"}})

	c := NewCatalog(rs)
	for _, tag := range category.NewMapper(rs).Tags() {
		assert.NotEmpty(t, c.PromptsFor(tag), "tag %q", tag)
	}
}

func TestDedupe(t *testing.T) {
	in := []string{"a", "b", "a", "", "c", "b", " "}
	assert.Equal(t, []string{"a", "b", "c"}, Dedupe(in))
	assert.Empty(t, Dedupe(nil))
}
