// pkg/ruleset/default.go
package ruleset

// Default returns the built-in Korean keyword rules and English visual prompts.
// Callers get a fresh copy and may not affect other holders by mutating it.
func Default() *Ruleset {
	return &Ruleset{
		Version:     "1.0.0",
		LastUpdated: "2025-11-20",
		Categories: []Category{
			{
				Tag:      Fitness,
				Keywords: []string{"운동", "헬스", "러닝", "달리기", "조깅", "요가", "필라테스", "스트레칭", "다이어트", "체중", "웨이트", "몸무게", "몸무계"},
				Prompts: []string{
					"a person exercising",
					"a person working out in a gym",
					"a person lifting weights",
					"a person running outdoors",
					"fitness training scene",
					"sportswear in a gym",
				},
			},
			{
				Tag:      Study,
				Keywords: []string{"공부", "독서", "책", "코딩", "과제", "자격증", "학습", "스터디", "리딩", "복습"},
				Prompts: []string{
					"a person studying at a desk",
					"a person reading a book",
					"a laptop on a desk",
					"a notebook and pen on a desk",
					"a study environment indoors",
				},
			},
			{
				Tag:      Cleaning,
				Keywords: []string{"청소", "정리", "정돈", "설거지", "방청소", "정리정돈"},
				Prompts: []string{
					"a person cleaning a room",
					"a person tidying up a desk",
					"a clean and organized room",
					"cleaning supplies in a home",
				},
			},
			{
				Tag:      Food,
				Keywords: []string{"식단", "요리", "건강식", "샐러드", "금주", "음식", "간식", "물마시기", "물 마시기"},
				Prompts: []string{
					"a healthy meal on a table",
					"a home-cooked meal",
					"a salad in a bowl",
					"food on a dining table",
				},
			},
			{
				Tag:      Outdoor,
				Keywords: []string{"산책", "등산", "여행", "출근", "외출", "걷기", "하이킹"},
				Prompts: []string{
					"a person walking outdoors",
					"a street scene outdoors",
					"a person hiking",
					"a park outdoors",
				},
			},
		},
		Generic: []string{
			"a photo of a person",
			"a photo taken indoors",
			"a photo taken outdoors",
			"a photo of an object",
		},
	}
}
