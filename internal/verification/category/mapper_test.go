// internal/verification/category/mapper_test.go
package category

import (
	"testing"

	"challenge-verifier/pkg/ruleset"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/unicode/norm"
)

func newDefaultMapper() *Mapper {
	return NewMapper(ruleset.Default())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Morning   RUN \t daily\n", "morning run daily"},
		{"물  마시기", "물 마시기"},
		{"", ""},
		{"   ", ""},
		{norm.NFD.String("운동"), "운동"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}
}

func TestMapper_Map(t *testing.T) {
	m := newDefaultMapper()

	tests := []struct {
		name  string
		title string
		want  []ruleset.Tag
	}{
		{"single fitness keyword", "오늘 운동 완료", []ruleset.Tag{ruleset.Fitness}},
		{"no keyword falls back to generic", "제목없음날씨좋다", []ruleset.Tag{ruleset.Generic}},
		{"empty title", "", []ruleset.Tag{ruleset.Generic}},
		{"study only", "매일 독서 30분", []ruleset.Tag{ruleset.Study}},
		{"cleaning only", "주말 방청소", []ruleset.Tag{ruleset.Cleaning}},
		{"food with collapsed whitespace", "하루 물   마시기", []ruleset.Tag{ruleset.Food}},
		{"outdoor only", "저녁 걷기", []ruleset.Tag{ruleset.Outdoor}},
		{"산책 also contains the study keyword 책", "저녁 산책", []ruleset.Tag{ruleset.Study, ruleset.Outdoor}},
		{"two categories keep declaration order", "요리하고 운동하기", []ruleset.Tag{ruleset.Fitness, ruleset.Food}},
		{"three categories truncate to first two", "운동 공부 요리", []ruleset.Tag{ruleset.Fitness, ruleset.Study}},
		{"truncation ignores title order", "등산 후 샐러드 그리고 청소", []ruleset.Tag{ruleset.Cleaning, ruleset.Food}},
		{"substring match inside a longer word", "책상 정리", []ruleset.Tag{ruleset.Study, ruleset.Cleaning}},
		{"decomposed hangul still matches", norm.NFD.String("아침 요가"), []ruleset.Tag{ruleset.Fitness}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Map(tt.title))
		})
	}
}

func TestMapper_Map_IsDeterministic(t *testing.T) {
	m := newDefaultMapper()
	first := m.Map("운동 독서 요리 산책 청소")
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, m.Map("운동 독서 요리 산책 청소"))
	}
	assert.Len(t, first, MaxCategories)
}

func TestMapper_Map_NormalizesKeywords(t *testing.T) {
	m := NewMapper(&ruleset.Ruleset{
		Categories: []ruleset.Category{
			{Tag: "music", Keywords: []string{"  Piano  Practice "}},
		},
		Generic: []string{"a photo"},
	})

	assert.Equal(t, []ruleset.Tag{"music"}, m.Map("daily PIANO    practice"))
	assert.Equal(t, []ruleset.Tag{ruleset.Generic}, m.Map("piano"))
}

func TestMapper_Map_SingleCategoryForEveryKeyword(t *testing.T) {
	rs := ruleset.Default()
	m := NewMapper(rs)

	for _, c := range rs.Categories {
		for _, kw := range c.Keywords {
			got := m.Map(kw)
			assert.Contains(t, got, c.Tag, "keyword %q", kw)
			assert.NotContains(t, got, ruleset.Generic, "keyword %q", kw)
		}
	}
}

func TestMapper_Tags(t *testing.T) {
	m := newDefaultMapper()
	assert.Equal(t, []ruleset.Tag{
		ruleset.Fitness, ruleset.Study, ruleset.Cleaning, ruleset.Food, ruleset.Outdoor, ruleset.Generic,
	}, m.Tags())
}

func TestIsGeneric(t *testing.T) {
	assert.True(t, IsGeneric([]ruleset.Tag{ruleset.Generic}))
	assert.False(t, IsGeneric([]ruleset.Tag{ruleset.Fitness}))
	assert.False(t, IsGeneric([]ruleset.Tag{ruleset.Generic, ruleset.Fitness}))
	assert.False(t, IsGeneric(nil))
}
