package tui

import (
	"context"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/askrumi/internal/render"
	"github.com/raphaelgruber/askrumi/internal/session"
	"github.com/raphaelgruber/askrumi/internal/settings"
)

// noticeTTL is how long a notification stays on screen.
const noticeTTL = 4 * time.Second

// changedMsg signals that the controller state or display changed.
type changedMsg struct{}

// transcriptMsg carries a finished voice recording.
type transcriptMsg struct {
	text string
}

// expireMsg hides the notification raised at the given time.
type expireMsg struct {
	at time.Time
}

// model is the bubbletea model for the interactive client.
type model struct {
	ctx   context.Context
	ctrl  *session.Controller
	input textinput.Model

	state   session.State
	entries []render.Entry

	width  int
	height int

	// cursor is the selected row per list page.
	cursor map[session.Page]int
	// confirmDelete holds the conversation awaiting a y/N answer.
	confirmDelete string
	// dismissed is the timestamp of the last expired notification.
	dismissed time.Time
	quitting  bool
}

func newModel(ctx context.Context, ctrl *session.Controller) model {
	in := textinput.New()
	in.Placeholder = "Ask Rumi anything..."
	in.Prompt = "› "
	in.CharLimit = 4000
	in.SetWidth(60)
	in.Focus()

	m := model{
		ctx:    ctx,
		ctrl:   ctrl,
		input:  in,
		cursor: make(map[session.Page]int),
	}
	m.sync()
	return m
}

// Init loads preferences, greets and fetches the initial data.
func (m model) Init() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return tea.Batch(
		textinput.Blink,
		func() tea.Msg {
			// Failures are already reported as notifications.
			_ = ctrl.Start(ctx)
			return changedMsg{}
		},
	)
}

// sync refreshes the cached snapshot from the controller.
func (m *model) sync() {
	m.state = m.ctrl.State()
	m.entries = m.ctrl.Display().Entries()
	m.clampCursor()
}

func (m *model) clampCursor() {
	for page, n := range map[session.Page]int{
		session.PageModels:   len(m.state.Models),
		session.PageHistory:  len(m.state.Conversations),
		session.PageSettings: len(prefItems),
	} {
		c := m.cursor[page]
		if c >= n {
			c = n - 1
		}
		if c < 0 {
			c = 0
		}
		m.cursor[page] = c
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if w := msg.Width - 4; w > 10 {
			m.input.SetWidth(w)
		}
		return m, nil

	case changedMsg:
		return m, m.refreshNotice()

	case transcriptMsg:
		m.input.SetValue(msg.text)
		m.input.CursorEnd()
		return m, nil

	case expireMsg:
		m.dismissed = msg.at
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// refreshNotice re-reads the controller and schedules expiry for a new notification.
func (m *model) refreshNotice() tea.Cmd {
	var prev time.Time
	if m.state.Notice != nil {
		prev = m.state.Notice.At
	}
	m.sync()
	if n := m.state.Notice; n != nil && !n.At.Equal(prev) {
		at := n.At
		return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
			return expireMsg{at: at}
		})
	}
	return nil
}

// visibleNotice returns the notification to draw, if any.
func (m model) visibleNotice() *session.Notification {
	n := m.state.Notice
	if n == nil || n.At.Equal(m.dismissed) {
		return nil
	}
	return n
}

func (m model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.confirmDelete != "" {
		return m.answerDelete(key)
	}

	switch key {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		return m.cyclePage(1)
	case "shift+tab":
		return m.cyclePage(-1)
	case "ctrl+k":
		m.ctrl.NewConversation()
		return m, m.switchPage(session.PageChat)
	case "esc":
		m.ctrl.StopSpeaking()
		return m, nil
	}

	if m.state.Page != session.PageChat {
		switch key {
		case "q":
			m.quitting = true
			return m, tea.Quit
		case "1", "2", "3", "4", "5", "6":
			pages := session.Pages()
			return m, m.switchPage(pages[int(key[0]-'1')])
		}
	}

	switch m.state.Page {
	case session.PageChat:
		return m.chatKey(msg)
	case session.PageModels:
		return m.modelsKey(key)
	case session.PageHistory:
		return m.historyKey(key)
	case session.PageSettings:
		return m.settingsKey(key)
	case session.PageSystem:
		if key == "r" {
			return m, m.run(func(ctx context.Context) { _ = m.ctrl.RefreshSystem(ctx) })
		}
	case session.PageBehavior:
		if key == "r" {
			return m, m.run(func(ctx context.Context) { _ = m.ctrl.RefreshBehavior(ctx) })
		}
	}
	return m, nil
}

func (m model) cyclePage(dir int) (tea.Model, tea.Cmd) {
	pages := session.Pages()
	idx := 0
	for i, p := range pages {
		if p == m.state.Page {
			idx = i
			break
		}
	}
	next := pages[(idx+dir+len(pages))%len(pages)]
	return m, m.switchPage(next)
}

// switchPage navigates right away and refreshes the page's data in the background.
func (m *model) switchPage(page session.Page) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	m.state.Page = page
	m.clampCursor()
	return func() tea.Msg {
		_ = ctrl.SwitchPage(ctx, string(page))
		return changedMsg{}
	}
}

// run executes fn off the update loop and then resyncs.
func (m model) run(fn func(ctx context.Context)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		fn(ctx)
		return changedMsg{}
	}
}

func (m model) chatKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	ctrl := m.ctrl
	switch msg.String() {
	case "enter":
		text := m.input.Value()
		m.input.Reset()
		return m, m.run(func(ctx context.Context) { _, _ = ctrl.SendMessage(ctx, text) })
	case "ctrl+l":
		ctrl.ClearChat()
		return m, nil
	case "ctrl+s":
		return m, m.run(func(ctx context.Context) { _ = ctrl.SpeakLast(ctx) })
	case "ctrl+r":
		ctx := m.ctx
		return m, func() tea.Msg {
			text, err := ctrl.ToggleVoiceInput(ctx)
			if err != nil || text == "" {
				return changedMsg{}
			}
			return transcriptMsg{text: text}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) moveCursor(key string, n int) bool {
	page := m.state.Page
	switch key {
	case "up", "k":
		if m.cursor[page] > 0 {
			m.cursor[page]--
		}
		return true
	case "down", "j":
		if m.cursor[page] < n-1 {
			m.cursor[page]++
		}
		return true
	}
	return false
}

func (m model) modelsKey(key string) (tea.Model, tea.Cmd) {
	list := m.state.Models
	if m.moveCursor(key, len(list)) {
		return m, nil
	}
	ctrl := m.ctrl
	if key == "r" {
		return m, m.run(func(ctx context.Context) { _ = ctrl.RefreshModels(ctx) })
	}
	if len(list) == 0 {
		return m, nil
	}
	selected := list[m.cursor[session.PageModels]]

	switch key {
	case "enter":
		if err := ctrl.SelectModel(selected.Name); err == nil {
			m.sync()
		}
		return m, nil
	case "d":
		return m, m.run(func(ctx context.Context) {
			if _, err := ctrl.DownloadModel(ctx, selected.Name); err == nil {
				_ = ctrl.RefreshModels(ctx)
			}
		})
	case "t":
		return m, m.run(func(ctx context.Context) { _, _ = ctrl.TestModel(ctx, selected.Name) })
	}
	return m, nil
}

func (m model) historyKey(key string) (tea.Model, tea.Cmd) {
	list := m.state.Conversations
	if m.moveCursor(key, len(list)) {
		return m, nil
	}
	ctrl := m.ctrl
	if key == "r" {
		return m, m.run(func(ctx context.Context) { _ = ctrl.RefreshConversations(ctx) })
	}
	if len(list) == 0 {
		return m, nil
	}
	id := list[m.cursor[session.PageHistory]].ID

	switch key {
	case "enter":
		return m, m.run(func(ctx context.Context) { _ = ctrl.LoadConversation(ctx, id) })
	case "d", "x":
		m.confirmDelete = id
	}
	return m, nil
}

// answerDelete resolves the pending delete prompt. Only y confirms.
func (m model) answerDelete(key string) (tea.Model, tea.Cmd) {
	id := m.confirmDelete
	m.confirmDelete = ""
	approved := key == "y" || key == "Y"
	ctrl := m.ctrl
	return m, m.run(func(ctx context.Context) {
		_, _ = ctrl.DeleteConversation(ctx, id, func(string) bool { return approved })
	})
}

func (m model) settingsKey(key string) (tea.Model, tea.Cmd) {
	if m.moveCursor(key, len(prefItems)) {
		return m, nil
	}
	ctrl := m.ctrl
	item := prefItems[m.cursor[session.PageSettings]]
	available := m.state.Models

	dir := 0
	switch key {
	case "enter", "space", "right", "l", "+":
		dir = 1
	case "left", "h", "-":
		dir = -1
	case "p":
		return m, m.run(func(ctx context.Context) { _ = ctrl.PushGeneration(ctx) })
	case "P":
		return m, m.run(func(ctx context.Context) { _ = ctrl.PullGeneration(ctx) })
	default:
		return m, nil
	}

	if err := ctrl.UpdatePreferences(func(p *settings.Preferences) {
		item.adjust(p, dir, available)
	}); err == nil {
		m.sync()
	}
	return m, nil
}
