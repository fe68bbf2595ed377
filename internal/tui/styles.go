package tui

import "github.com/charmbracelet/lipgloss"

// theme is the palette for one color scheme.
type theme struct {
	Accent  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	User    lipgloss.Color
	Rumi    lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color
	TabBg   lipgloss.Color
}

var lightTheme = theme{
	Accent:  lipgloss.Color("#8B5A2B"), // saddle brown
	Text:    lipgloss.Color("#2E2A24"),
	Muted:   lipgloss.Color("#8A8378"),
	User:    lipgloss.Color("#2F6690"),
	Rumi:    lipgloss.Color("#7A4E2D"),
	Success: lipgloss.Color("#2E8B57"),
	Error:   lipgloss.Color("#C0392B"),
	Info:    lipgloss.Color("#3A7CA5"),
	TabBg:   lipgloss.Color("#EADBC8"),
}

var darkTheme = theme{
	Accent:  lipgloss.Color("#D7A86E"), // amber
	Text:    lipgloss.Color("#E8E2D6"),
	Muted:   lipgloss.Color("#6C6C6C"),
	User:    lipgloss.Color("#5FAFD7"),
	Rumi:    lipgloss.Color("#E0B77D"),
	Success: lipgloss.Color("#00D787"),
	Error:   lipgloss.Color("#FF005F"),
	Info:    lipgloss.Color("#5FAFD7"),
	TabBg:   lipgloss.Color("#3A3A3A"),
}

func themeFor(dark bool) theme {
	if dark {
		return darkTheme
	}
	return lightTheme
}

func (t theme) title() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
}

func (t theme) activeTab() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Accent).Background(t.TabBg).Bold(true).Padding(0, 1)
}

func (t theme) tab() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Muted).Padding(0, 1)
}

func (t theme) text() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Text)
}

func (t theme) muted() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Muted)
}

func (t theme) hint() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Muted).Italic(true)
}

func (t theme) userLabel() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t theme) rumiLabel() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Rumi).Bold(true)
}

func (t theme) selected() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
}

func (t theme) success() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t theme) failure() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t theme) info() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Info)
}
