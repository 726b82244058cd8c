package biz

import (
	"time"

	"FlapBoard/internal/model"
)

// haikuTopics rotates daily; the day-of-year picks the entry.
var haikuTopics = []string{
	"morning coffee",
	"rush hour",
	"house plants",
	"a forgotten umbrella",
	"elevator small talk",
	"the office dog",
	"monday optimism",
	"a flickering neon sign",
	"leftover pizza",
	"the last parking spot",
}

// BuiltinGenerators returns the generator roster in rotation order.
// Each generator is deliberately thin: all the interesting behavior
// lives in the shared engine.
func BuiltinGenerators() []Generator {
	return []Generator{
		{
			Kind:           "haiku",
			SystemTemplate: "haiku_system.tmpl",
			UserTemplate:   "haiku_user.tmpl",
			Tier:           model.TierLight,
			OutputMode:     model.OutputModeText,
			MaxTokens:      120,
			Temperature:    0.9,
			Vars: func(now time.Time) map[string]any {
				return map[string]any{
					"Topic": haikuTopics[now.YearDay()%len(haikuTopics)],
					"Date":  now.Format("Monday, January 2"),
				}
			},
		},
		{
			Kind:           "fortune",
			SystemTemplate: "fortune_system.tmpl",
			UserTemplate:   "fortune_user.tmpl",
			Tier:           model.TierLight,
			OutputMode:     model.OutputModeText,
			MaxTokens:      80,
			Temperature:    1.0,
			Vars: func(now time.Time) map[string]any {
				return map[string]any{
					"Weekday": now.Format("Monday"),
				}
			},
		},
		{
			Kind:           "wordoftheday",
			SystemTemplate: "wordoftheday_system.tmpl",
			UserTemplate:   "wordoftheday_user.tmpl",
			Tier:           model.TierMedium,
			OutputMode:     model.OutputModeText,
			MaxTokens:      160,
			Temperature:    0.7,
			Vars: func(now time.Time) map[string]any {
				return map[string]any{
					"Date": now.Format("January 2, 2006"),
				}
			},
		},
	}
}
