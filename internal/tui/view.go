package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/askrumi/internal/models"
	"github.com/raphaelgruber/askrumi/internal/render"
	"github.com/raphaelgruber/askrumi/internal/session"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

func (m model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

func (m model) render() string {
	if m.quitting {
		return ""
	}
	t := themeFor(m.state.Preferences.DarkMode)
	width, height := m.size()

	header := m.header(t)
	footer := m.footer(t)
	bodyHeight := height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	var body string
	switch m.state.Page {
	case session.PageChat:
		body = m.chatBody(t, width)
	case session.PageModels:
		body = m.modelsBody(t)
	case session.PageSystem:
		body = m.systemBody(t)
	case session.PageHistory:
		body = m.historyBody(t)
	case session.PageSettings:
		body = m.settingsBody(t)
	case session.PageBehavior:
		body = m.behaviorBody(t)
	}

	return header + "\n" + tail(body, bodyHeight) + "\n" + footer
}

func (m model) size() (int, int) {
	w, h := m.width, m.height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

func (m model) header(t theme) string {
	var tabs []string
	for i, p := range session.Pages() {
		label := fmt.Sprintf("%d %s", i+1, p.Title())
		if p == m.state.Page {
			tabs = append(tabs, t.activeTab().Render(label))
		} else {
			tabs = append(tabs, t.tab().Render(label))
		}
	}
	status := t.muted().Render("model: " + m.state.Model)
	if m.state.Pending > 0 {
		status += t.info().Render(fmt.Sprintf("  (%d waiting)", m.state.Pending))
	}
	if m.state.Listening {
		status += t.failure().Render("  ● rec")
	}
	title := t.title().Render("Ask Rumi")
	return title + "  " + strings.Join(tabs, "") + "\n" + status
}

func (m model) footer(t theme) string {
	var lines []string

	switch n := m.visibleNotice(); {
	case m.confirmDelete != "":
		lines = append(lines, t.failure().Render(fmt.Sprintf("Delete conversation %s? [y/N]", m.confirmDelete)))
	case n != nil:
		lines = append(lines, noticeStyle(t, n.Level).Render(n.Message))
	default:
		lines = append(lines, "")
	}

	if m.state.Page == session.PageChat {
		lines = append(lines, m.input.View())
	}
	lines = append(lines, t.hint().Render(helpFor(m.state.Page)))
	return strings.Join(lines, "\n")
}

func noticeStyle(t theme, level session.Level) lipgloss.Style {
	switch level {
	case session.LevelSuccess:
		return t.success()
	case session.LevelError:
		return t.failure()
	default:
		return t.info()
	}
}

func helpFor(page session.Page) string {
	switch page {
	case session.PageChat:
		return "enter send • ctrl+k new • ctrl+l clear • ctrl+r voice • ctrl+s speak • esc hush • tab pages • ctrl+c quit"
	case session.PageModels:
		return "↑/↓ move • enter use • d download • t test • r refresh • q quit"
	case session.PageHistory:
		return "↑/↓ move • enter open • d delete • r refresh • q quit"
	case session.PageSettings:
		return "↑/↓ move • enter/←/→ change • p push to server • P pull from server • q quit"
	default:
		return "r refresh • tab pages • q quit"
	}
}

// tail keeps the last n lines of s so the newest content stays in view.
func tail(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for len(lines) < n {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m model) chatBody(t theme, width int) string {
	wrap := lipgloss.NewStyle().Width(width - 2)
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(entryView(t, wrap, e))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func entryView(t theme, wrap lipgloss.Style, e render.Entry) string {
	if e.Placeholder {
		return t.hint().Render("Rumi " + e.Text)
	}
	label := t.rumiLabel().Render("Rumi")
	if e.Role == models.RoleUser {
		label = t.userLabel().Render("You")
	}
	return label + "\n" + wrap.Inherit(t.text()).Render(e.Text)
}

func (m model) modelsBody(t theme) string {
	if len(m.state.Models) == 0 {
		return t.muted().Render("No models reported by the server.")
	}
	cursor := m.cursor[session.PageModels]
	var b strings.Builder
	for i, mi := range m.state.Models {
		marker := "  "
		if mi.Name == m.state.Model {
			marker = "● "
		}
		line := fmt.Sprintf("%s%-28s %-12s %6.1f GB  %s", marker, truncate(mi.Label(), 28), mi.Status, mi.SizeGB, mi.Provider)
		b.WriteString(rowStyle(t, i == cursor, mi.Available()).Render(line))
		b.WriteString("\n")
		if i == cursor && mi.Description != "" {
			b.WriteString(t.hint().Render("    " + mi.Description))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func rowStyle(t theme, selected, enabled bool) lipgloss.Style {
	switch {
	case selected:
		return t.selected()
	case !enabled:
		return t.muted()
	default:
		return t.text()
	}
}

func (m model) systemBody(t theme) string {
	info := m.state.System
	if info == nil {
		return t.muted().Render("System information not loaded. Press r to refresh.")
	}
	rows := [][2]string{
		{"Platform", info.Platform},
		{"Python", info.PythonVersion},
		{"PyTorch", info.TorchVersion},
		{"CPU cores", fmt.Sprintf("%d", info.CPUCount)},
		{"Memory total", fmt.Sprintf("%.1f GB", info.MemoryTotal)},
		{"Memory available", fmt.Sprintf("%.1f GB", info.MemoryAvailable)},
	}
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(t.muted().Render(fmt.Sprintf("%-18s", r[0])))
		b.WriteString(t.text().Render(r[1]))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m model) historyBody(t theme) string {
	if len(m.state.Conversations) == 0 {
		return t.muted().Render("No conversations yet.")
	}
	cursor := m.cursor[session.PageHistory]
	var b strings.Builder
	for i, c := range m.state.Conversations {
		marker := "  "
		if c.ID == m.state.ConversationID {
			marker = "● "
		}
		line := fmt.Sprintf("%s%-12s %3d msgs  %-20s %s", marker, truncate(c.ID, 12), c.Count(), truncate(c.UpdatedAt, 20), c.Model)
		b.WriteString(rowStyle(t, i == cursor, true).Render(line))
		b.WriteString("\n")
		if i == cursor {
			if first := firstQuestion(c); first != "" {
				b.WriteString(t.hint().Render("    " + first))
				b.WriteString("\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstQuestion(c models.Conversation) string {
	for _, msg := range c.Messages {
		if msg.Role == models.RoleUser {
			return truncate(strings.Join(strings.Fields(msg.Content), " "), 70)
		}
	}
	return ""
}

func (m model) settingsBody(t theme) string {
	cursor := m.cursor[session.PageSettings]
	prefs := m.state.Preferences
	var b strings.Builder
	for i, item := range prefItems {
		line := fmt.Sprintf("%-26s %s", item.label, item.show(prefs))
		if i == cursor {
			line = "› " + line
		} else {
			line = "  " + line
		}
		b.WriteString(rowStyle(t, i == cursor, true).Render(line))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m model) behaviorBody(t theme) string {
	if m.state.Behavior == nil && m.state.Keywords == nil {
		return t.muted().Render("Behavior settings not loaded. Press r to refresh.")
	}
	var b strings.Builder
	b.WriteString(t.title().Render("Behavior settings"))
	b.WriteString("\n")
	b.WriteString(t.text().Render(indentJSON(m.state.Behavior)))
	b.WriteString("\n\n")
	b.WriteString(t.title().Render("Emotion keywords"))
	b.WriteString("\n")
	b.WriteString(t.text().Render(indentJSON(m.state.Keywords)))
	b.WriteString("\n")
	b.WriteString(t.hint().Render("Edit with: rumi behavior set --file <json>, rumi keywords set --file <json>"))
	return b.String()
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
