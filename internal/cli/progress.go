package cli

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/askrumi/internal/models"
)

const pollInterval = time.Second

// Theme holds the color scheme for one-shot command output.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// StatusFetcher reports download progress for a model.
type StatusFetcher interface {
	DownloadStatus(ctx context.Context, name string) (*models.DownloadStatus, error)
}

// tickMsg triggers polling the download status
type tickMsg time.Time

// statusMsg carries the updated download status
type statusMsg struct {
	status *models.DownloadStatus
	err    error
}

// progressModel is the bubbletea model for a model download.
type progressModel struct {
	ctx      context.Context
	fetcher  StatusFetcher
	name     string
	status   *models.DownloadStatus
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newProgressModel(ctx context.Context, fetcher StatusFetcher, name string) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		ctx:      ctx,
		fetcher:  fetcher,
		name:     name,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init fetches the status right away, then keeps polling.
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchStatus(),
		m.progress.Init(),
	)
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchStatus()

	case statusMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("fetch download status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.status = msg.status

		switch m.status.Status {
		case models.StatusAvailable:
			m.done = true
			return m, tea.Quit
		case models.StatusError, models.StatusNotFound:
			m.done = true
			m.err = fmt.Errorf("download of %s ended with status %q", m.name, m.status.Status)
			return m, tea.Quit
		}

		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if m.status == nil {
		return "Loading download status...\n"
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.status.Status))
	bar := m.progress.ViewAs(m.status.Fraction())
	pct := fmt.Sprintf("%3.0f%%", m.status.Fraction()*100)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")

	return fmt.Sprintf("%s %s %s %s\n%s\n", m.name, status, bar, pct, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nDownload of %s continues on the server.\nUse 'rumi models' to check status.\n", m.name)
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ %s\n", m.err))
	}

	return m.theme.completedStyle().Render(fmt.Sprintf("✓ %s is available\n", m.name))
}

// fetchStatus runs as a command so Update never blocks on the network.
func (m progressModel) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
		defer cancel()

		status, err := m.fetcher.DownloadStatus(ctx, m.name)
		return statusMsg{status: status, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunDownloadProgress shows a progress bar until the model is available.
// Returns nil on success or Ctrl+C (download continues server-side), error on failure.
func RunDownloadProgress(ctx context.Context, fetcher StatusFetcher, name string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	model := newProgressModel(ctx, fetcher, name)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			return nil
		}
		if m.err != nil {
			return m.err
		}
	}

	return nil
}
