// Package voice adapts external speech programs for reading replies aloud
// and transcribing spoken input.
//
// Both directions shell out to a configured command line. The synthesizer
// receives the text on stdin; the recognizer prints its transcript on stdout.
package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// ErrUnavailable is returned when no command is configured for a direction.
var ErrUnavailable = errors.New("voice command not configured")

// ErrNoSpeech is returned when the recognizer produced an empty transcript.
var ErrNoSpeech = errors.New("no speech detected")

// Speaker reads text aloud.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Stop()
}

// Listener captures one utterance and returns its transcript.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// CommandSpeaker pipes text into an external synthesizer such as
// "espeak-ng --stdin" or "say". Only one utterance plays at a time; a new
// Speak interrupts the previous one.
type CommandSpeaker struct {
	argv   []string
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewCommandSpeaker parses commandLine into a speaker. An empty command
// line yields a speaker whose Speak returns ErrUnavailable.
func NewCommandSpeaker(commandLine string, logger *slog.Logger) *CommandSpeaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSpeaker{argv: strings.Fields(commandLine), logger: logger}
}

// Available reports whether a command is configured.
func (s *CommandSpeaker) Available() bool {
	return len(s.argv) > 0
}

// Speak blocks until the synthesizer exits or ctx is done.
func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	if !s.Available() {
		return ErrUnavailable
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	s.logger.Debug("speaking", "command", s.argv[0], "chars", len(text))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run %s: %w: %s", s.argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Stop interrupts the current utterance, if any.
func (s *CommandSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// CommandListener runs an external recognizer and reads its transcript.
type CommandListener struct {
	argv   []string
	logger *slog.Logger
}

// NewCommandListener parses commandLine into a listener.
func NewCommandListener(commandLine string, logger *slog.Logger) *CommandListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandListener{argv: strings.Fields(commandLine), logger: logger}
}

// Available reports whether a command is configured.
func (l *CommandListener) Available() bool {
	return len(l.argv) > 0
}

// Listen runs the recognizer to completion and returns its trimmed output.
func (l *CommandListener) Listen(ctx context.Context) (string, error) {
	if !l.Available() {
		return "", ErrUnavailable
	}

	cmd := exec.CommandContext(ctx, l.argv[0], l.argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run %s: %w: %s", l.argv[0], err, strings.TrimSpace(stderr.String()))
	}

	transcript := strings.TrimSpace(stdout.String())
	if transcript == "" {
		return "", ErrNoSpeech
	}
	l.logger.Debug("transcribed", "chars", len(transcript))
	return transcript, nil
}
