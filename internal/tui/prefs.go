package tui

import (
	"fmt"
	"math"

	"github.com/raphaelgruber/askrumi/internal/models"
	"github.com/raphaelgruber/askrumi/internal/settings"
)

// prefItem is one editable row on the settings page.
type prefItem struct {
	label string
	show  func(p settings.Preferences) string
	// adjust applies a step in direction dir (+1 or -1). Booleans flip either way.
	adjust func(p *settings.Preferences, dir int, available []models.ModelInfo)
}

func boolItem(label string, field func(p *settings.Preferences) *bool) prefItem {
	return prefItem{
		label: label,
		show: func(p settings.Preferences) string {
			if *field(&p) {
				return "on"
			}
			return "off"
		},
		adjust: func(p *settings.Preferences, _ int, _ []models.ModelInfo) {
			f := field(p)
			*f = !*f
		},
	}
}

func intItem(label, unit string, step, min int, field func(p *settings.Preferences) *int) prefItem {
	return prefItem{
		label: label,
		show: func(p settings.Preferences) string {
			return fmt.Sprintf("%d%s", *field(&p), unit)
		},
		adjust: func(p *settings.Preferences, dir int, _ []models.ModelInfo) {
			f := field(p)
			*f += dir * step
			if *f < min {
				*f = min
			}
		},
	}
}

var prefItems = []prefItem{
	boolItem("Text to speech", func(p *settings.Preferences) *bool { return &p.TTS }),
	boolItem("Auto speak replies", func(p *settings.Preferences) *bool { return &p.AutoSpeak }),
	boolItem("Voice input", func(p *settings.Preferences) *bool { return &p.VoiceInput }),
	boolItem("Dark mode", func(p *settings.Preferences) *bool { return &p.DarkMode }),
	boolItem("Sound effects", func(p *settings.Preferences) *bool { return &p.SoundEffects }),
	{
		label: "Default model",
		show:  func(p settings.Preferences) string { return p.DefaultModel },
		adjust: func(p *settings.Preferences, dir int, available []models.ModelInfo) {
			p.DefaultModel = cycleModel(p.DefaultModel, dir, available)
		},
	},
	intItem("Typing speed", " ms/char", 10, 0, func(p *settings.Preferences) *int { return &p.TypingSpeed }),
	{
		label: "Temperature",
		show:  func(p settings.Preferences) string { return fmt.Sprintf("%.1f", p.Temperature) },
		adjust: func(p *settings.Preferences, dir int, _ []models.ModelInfo) {
			p.Temperature = math.Round((p.Temperature+float64(dir)*0.1)*10) / 10
		},
	},
	intItem("History depth", " exchanges", 1, 0, func(p *settings.Preferences) *int { return &p.HistoryDepth }),
	intItem("Max tokens (wisdom)", "", 20, 20, func(p *settings.Preferences) *int { return &p.MaxTokensWisdom }),
	intItem("Max tokens (empathetic)", "", 20, 20, func(p *settings.Preferences) *int { return &p.MaxTokensEmpathetic }),
	intItem("Max tokens (casual)", "", 10, 10, func(p *settings.Preferences) *int { return &p.MaxTokensCasual }),
	intItem("Quotes retrieved", "", 1, 0, func(p *settings.Preferences) *int { return &p.MaxQuotesRetrieved }),
}

// cycleModel steps through the available models, starting from current.
func cycleModel(current string, dir int, available []models.ModelInfo) string {
	var names []string
	for _, m := range available {
		if m.Available() {
			names = append(names, m.Name)
		}
	}
	if len(names) == 0 {
		return current
	}
	idx := -1
	for i, n := range names {
		if n == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		return names[0]
	}
	return names[(idx+dir+len(names))%len(names)]
}
