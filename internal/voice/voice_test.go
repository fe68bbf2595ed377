package voice

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireCommand(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not in PATH", name)
	}
}

func TestUnconfigured(t *testing.T) {
	s := NewCommandSpeaker("", nil)
	assert.False(t, s.Available())
	assert.True(t, errors.Is(s.Speak(context.Background(), "hello"), ErrUnavailable))
	s.Stop()

	l := NewCommandListener("   ", nil)
	assert.False(t, l.Available())
	_, err := l.Listen(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestSpeakPipesText(t *testing.T) {
	requireCommand(t, "cat")
	s := NewCommandSpeaker("cat", nil)
	require.NoError(t, s.Speak(context.Background(), "The wound is the place where the Light enters you."))
}

func TestSpeakEmptyTextIsNoop(t *testing.T) {
	s := NewCommandSpeaker("definitely-not-a-real-binary", nil)
	assert.NoError(t, s.Speak(context.Background(), "  \n"))
}

func TestSpeakFailure(t *testing.T) {
	requireCommand(t, "false")
	s := NewCommandSpeaker("false", nil)
	assert.Error(t, s.Speak(context.Background(), "hello"))
}

func TestStopInterruptsSpeech(t *testing.T) {
	requireCommand(t, "sleep")
	s := NewCommandSpeaker("sleep 5", nil)

	done := make(chan error, 1)
	go func() { done <- s.Speak(context.Background(), "long reply") }()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.cancel != nil
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err, "an interrupted utterance is not an error")
	case <-time.After(3 * time.Second):
		t.Fatal("Speak did not return after Stop")
	}
}

func TestListen(t *testing.T) {
	requireCommand(t, "echo")

	tests := []struct {
		name    string
		command string
		want    string
		wantErr error
	}{
		{"transcript", "echo what is love", "what is love", nil},
		{"silence", "echo", "", ErrNoSpeech},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewCommandListener(tt.command, nil).Listen(context.Background())
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
