// Package settings persists client preferences and mirrors the generation
// subset to the server's behavior configuration.
package settings

import "time"

// DefaultModel is the model selected on first run.
const DefaultModel = "gemma3:270m"

// Preferences are the client-side knobs. Keys in the YAML file override
// the defaults; missing keys keep them.
type Preferences struct {
	TTS          bool   `yaml:"tts"`
	VoiceInput   bool   `yaml:"voice_input"`
	DarkMode     bool   `yaml:"dark_mode"`
	DefaultModel string `yaml:"default_model"`
	AutoSpeak    bool   `yaml:"auto_speak"`
	// TypingSpeed is the reveal interval per character, in milliseconds.
	TypingSpeed  int  `yaml:"typing_speed"`
	SoundEffects bool `yaml:"sound_effects"`

	// Generation parameters, mirrored to /api/chat/behavior-settings.
	Temperature         float64 `yaml:"temperature"`
	HistoryDepth        int     `yaml:"conversation_history_depth"`
	MaxTokensWisdom     int     `yaml:"max_tokens_wisdom"`
	MaxTokensEmpathetic int     `yaml:"max_tokens_empathetic"`
	MaxTokensCasual     int     `yaml:"max_tokens_casual"`
	MaxQuotesRetrieved  int     `yaml:"max_quotes_retrieved"`
}

// Defaults returns the built-in preferences.
func Defaults() Preferences {
	return Preferences{
		TTS:          true,
		VoiceInput:   true,
		DarkMode:     false,
		DefaultModel: DefaultModel,
		AutoSpeak:    true,
		TypingSpeed:  50,
		SoundEffects: true,

		Temperature:         0.8,
		HistoryDepth:        2,
		MaxTokensWisdom:     200,
		MaxTokensEmpathetic: 220,
		MaxTokensCasual:     80,
		MaxQuotesRetrieved:  3,
	}
}

// RevealInterval converts TypingSpeed into the per-character reveal delay.
func (p Preferences) RevealInterval() time.Duration {
	if p.TypingSpeed <= 0 {
		return 0
	}
	return time.Duration(p.TypingSpeed) * time.Millisecond
}

// ShouldSpeak reports whether replies are read aloud automatically.
func (p Preferences) ShouldSpeak() bool {
	return p.TTS && p.AutoSpeak
}

// sanitize clamps values a hand-edited file could get wrong.
func (p *Preferences) sanitize() {
	d := Defaults()
	if p.DefaultModel == "" {
		p.DefaultModel = d.DefaultModel
	}
	if p.TypingSpeed < 0 {
		p.TypingSpeed = 0
	}
	if p.Temperature < 0 {
		p.Temperature = 0
	}
	if p.Temperature > 2 {
		p.Temperature = 2
	}
	if p.HistoryDepth < 0 {
		p.HistoryDepth = 0
	}
}
