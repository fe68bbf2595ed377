// Package tui is the interactive terminal client. It draws the session
// controller's state and turns key presses into controller operations.
package tui

import (
	"context"
	"fmt"

	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/askrumi/internal/session"
)

// Run starts the interactive client and blocks until the user quits or ctx ends.
func Run(ctx context.Context, ctrl *session.Controller) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(ctx, ctrl))

	// Controller changes arrive from reveal and request goroutines. They are
	// coalesced so a fast reveal never blocks on the program's message queue.
	changes := make(chan struct{}, 1)
	ctrl.OnChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	defer ctrl.OnChange(nil)

	go func() { _ = ctrl.WatchPreferences(ctx) }()

	go func() {
		for {
			select {
			case <-ctx.Done():
				p.Quit()
				return
			case <-changes:
				p.Send(changedMsg{})
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
