// internal/verification/category/mapper.go
package category

import (
	"strings"

	"challenge-verifier/pkg/ruleset"

	"golang.org/x/text/unicode/norm"
)

// MaxCategories caps how many matched categories a title keeps. Matches past
// the cap are dropped in declaration order, not by relevance.
const MaxCategories = 2

type rule struct {
	tag      ruleset.Tag
	keywords []string
}

// Mapper maps free-text challenge titles to category tags using substring
// keyword rules. It is immutable and safe for concurrent use.
type Mapper struct {
	rules []rule
}

func NewMapper(rs *ruleset.Ruleset) *Mapper {
	rules := make([]rule, 0, len(rs.Categories))
	for _, c := range rs.Categories {
		kws := make([]string, 0, len(c.Keywords))
		for _, kw := range c.Keywords {
			kws = append(kws, Normalize(kw))
		}
		rules = append(rules, rule{tag: c.Tag, keywords: kws})
	}
	return &Mapper{rules: rules}
}

// Map returns one or two tags for title, or [generic] when no keyword matches.
func (m *Mapper) Map(title string) []ruleset.Tag {
	t := Normalize(title)

	matched := make([]ruleset.Tag, 0, MaxCategories)
	for _, r := range m.rules {
		for _, kw := range r.keywords {
			if strings.Contains(t, kw) {
				matched = append(matched, r.tag)
				break
			}
		}
	}

	if len(matched) == 0 {
		return []ruleset.Tag{ruleset.Generic}
	}
	if len(matched) > MaxCategories {
		matched = matched[:MaxCategories]
	}
	return matched
}

// Tags lists every tag Map can return, in declaration order, ending with generic.
func (m *Mapper) Tags() []ruleset.Tag {
	out := make([]ruleset.Tag, 0, len(m.rules)+1)
	for _, r := range m.rules {
		out = append(out, r.tag)
	}
	return append(out, ruleset.Generic)
}

// Normalize composes Unicode (NFC), trims, lowercases and collapses
// whitespace runs to a single space.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// IsGeneric reports whether tags is exactly the fallback result.
func IsGeneric(tags []ruleset.Tag) bool {
	return len(tags) == 1 && tags[0] == ruleset.Generic
}
