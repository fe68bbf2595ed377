package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/askrumi/internal/client"
	"github.com/raphaelgruber/askrumi/internal/models"
	"github.com/raphaelgruber/askrumi/internal/render"
	"github.com/raphaelgruber/askrumi/internal/settings"
	"github.com/raphaelgruber/askrumi/internal/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeAPI struct {
	mu sync.Mutex

	ask           func(ctx context.Context, req client.ChatRequest) (*client.ChatReply, error)
	requests      []client.ChatRequest
	conversations []models.Conversation
	listErr       error
	deleted       []string
	models        []models.ModelInfo
	modelsErr     error
	system        *models.SystemInfo
	systemErr     error
	downloads     []string
	testResult    *models.TestResult
	behavior      client.ConfigObject
	keywords      client.ConfigObject
	calls         map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calls:  make(map[string]int),
		system: &models.SystemInfo{Platform: "Linux", CPUCount: 8},
		models: []models.ModelInfo{{Name: "gemma3:270m", Status: models.StatusAvailable}},
	}
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) hit(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeAPI) AskRumi(ctx context.Context, req client.ChatRequest) (*client.ChatReply, error) {
	f.mu.Lock()
	f.calls["ask"]++
	f.requests = append(f.requests, req)
	ask := f.ask
	f.mu.Unlock()
	return ask(ctx, req)
}

func (f *fakeAPI) ListModels(context.Context) ([]models.ModelInfo, error) {
	f.hit("models")
	return f.models, f.modelsErr
}

func (f *fakeAPI) DownloadModel(_ context.Context, name, _ string) (*models.DownloadTicket, error) {
	f.hit("download")
	f.mu.Lock()
	f.downloads = append(f.downloads, name)
	f.mu.Unlock()
	return &models.DownloadTicket{Model: name, Status: "queued"}, nil
}

func (f *fakeAPI) TestModel(_ context.Context, name string) (*models.TestResult, error) {
	f.hit("test")
	return f.testResult, nil
}

func (f *fakeAPI) SystemInfo(context.Context) (*models.SystemInfo, error) {
	f.hit("system")
	return f.system, f.systemErr
}

func (f *fakeAPI) ListConversations(context.Context) ([]models.Conversation, error) {
	f.hit("conversations")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Conversation(nil), f.conversations...), f.listErr
}

func (f *fakeAPI) DeleteConversation(_ context.Context, id string) error {
	f.hit("delete")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	kept := f.conversations[:0]
	for _, c := range f.conversations {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	f.conversations = kept
	return nil
}

func (f *fakeAPI) GetBehaviorSettings(context.Context) (client.ConfigObject, error) {
	f.hit("behavior")
	return f.behavior, nil
}

func (f *fakeAPI) GetEmotionKeywords(context.Context) (client.ConfigObject, error) {
	f.hit("keywords")
	return f.keywords, nil
}

func replyWith(response, id string, inference float64) func(context.Context, client.ChatRequest) (*client.ChatReply, error) {
	return func(context.Context, client.ChatRequest) (*client.ChatReply, error) {
		return &client.ChatReply{Response: response, ConversationID: id, InferenceTime: inference}, nil
	}
}

type recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

func (r *recorder) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []string
	stops  int
}

func (s *fakeSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	return nil
}

func (s *fakeSpeaker) Stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

func (s *fakeSpeaker) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

type fakeListener struct {
	transcript string
	err        error
	block      bool
}

func (l *fakeListener) Listen(ctx context.Context) (string, error) {
	if l.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return l.transcript, l.err
}

type harness struct {
	ctrl    *Controller
	api     *fakeAPI
	notes   *recorder
	speaker *fakeSpeaker
	store   *settings.Store
}

func newHarness(t *testing.T, opts ...func(*Options)) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	store := settings.NewStore(filepath.Join(t.TempDir(), "preferences.yaml"), nil, logger)
	// Instant reveals keep tests fast; individual tests slow them down.
	require.NoError(t, store.Update(func(p *settings.Preferences) { p.TypingSpeed = 0 }))

	h := &harness{api: newFakeAPI(), notes: &recorder{}, speaker: &fakeSpeaker{}, store: store}
	o := Options{Notifier: h.notes, Speaker: h.speaker, Logger: logger}
	for _, fn := range opts {
		fn(&o)
	}
	h.ctrl = New(h.api, store, o)
	t.Cleanup(h.ctrl.Close)
	return h
}

func texts(entries []render.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Content
	}
	return out
}

// =============================================================================
// SendMessage
// =============================================================================

func TestSendMessageSuccess(t *testing.T) {
	h := newHarness(t)
	h.api.ask = replyWith("Hi.", "abc123", 0.42)

	reveal, err := h.ctrl.SendMessage(context.Background(), "Hello")
	require.NoError(t, err)
	require.NotNil(t, reveal)
	reveal.Wait()

	entries := h.ctrl.Display().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, models.RoleUser, entries[0].Role)
	assert.Equal(t, "Hello", entries[0].Text)
	assert.Equal(t, models.RoleAssistant, entries[1].Role)
	assert.Equal(t, "Hi.", entries[1].Text)
	assert.False(t, entries[1].Placeholder)

	assert.Equal(t, "abc123", h.ctrl.State().ConversationID)

	notes := h.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelSuccess, notes[0].Level)
	assert.Equal(t, "Response received in 0.42s", notes[0].Message)
}

func TestSendMessageRevealsIncrementally(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Update(func(p *settings.Preferences) { p.TypingSpeed = 5 }))
	h.api.ask = replyWith("Hi.", "abc123", 0.42)

	reveal, err := h.ctrl.SendMessage(context.Background(), "Hello")
	require.NoError(t, err)

	entries := h.ctrl.Display().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Hi.", entries[1].Content, "full text is stored before the reveal finishes")

	reveal.Wait()
	assert.True(t, reveal.Completed())
	entry, ok := h.ctrl.Display().Get(entries[1].ID)
	require.True(t, ok)
	assert.Equal(t, "Hi.", entry.Text)
	assert.False(t, h.ctrl.State().Revealing)
}

func TestSendMessageRequestShape(t *testing.T) {
	h := newHarness(t)
	h.api.ask = replyWith("Peace.", "conv-1", 0.1)

	_, err := h.ctrl.SendMessage(context.Background(), "  first  ")
	require.NoError(t, err)
	_, err = h.ctrl.SendMessage(context.Background(), "second")
	require.NoError(t, err)

	require.Len(t, h.api.requests, 2)
	first, second := h.api.requests[0], h.api.requests[1]
	assert.Equal(t, "first", first.Message)
	assert.Equal(t, settings.DefaultModel, first.Model)
	assert.InDelta(t, 0.8, first.Temperature, 0.0001)
	assert.Nil(t, first.ConversationID)
	require.NotNil(t, second.ConversationID)
	assert.Equal(t, "conv-1", *second.ConversationID)
}

func TestSendMessageEmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t"} {
		t.Run("input "+in, func(t *testing.T) {
			h := newHarness(t)
			h.api.ask = replyWith("x", "y", 0)

			reveal, err := h.ctrl.SendMessage(context.Background(), in)
			assert.NoError(t, err)
			assert.Nil(t, reveal)
			assert.Equal(t, 0, h.ctrl.Display().Len())
			assert.Equal(t, 0, h.api.count("ask"))
		})
	}
}

func TestSendMessageApplicationError(t *testing.T) {
	h := newHarness(t)
	h.api.ask = func(context.Context, client.ChatRequest) (*client.ChatReply, error) {
		return nil, &client.ApplicationError{Message: "model unavailable"}
	}

	_, err := h.ctrl.SendMessage(context.Background(), "Hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrApplication))

	entries := h.ctrl.Display().Entries()
	assert.Equal(t, []string{"Hello", FailureText}, texts(entries))
	for _, e := range entries {
		assert.False(t, e.Placeholder)
	}

	notes := h.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelError, notes[0].Level)
	assert.Contains(t, notes[0].Message, "model unavailable")
	assert.Empty(t, h.ctrl.State().ConversationID)
	assert.Equal(t, 1, h.api.count("ask"), "failures are not retried")
}

func TestSendMessageTransportError(t *testing.T) {
	h := newHarness(t)
	h.api.ask = func(context.Context, client.ChatRequest) (*client.ChatReply, error) {
		return nil, errors.New("dial tcp 127.0.0.1:8001: connection refused")
	}

	_, err := h.ctrl.SendMessage(context.Background(), "Hello")
	require.Error(t, err)
	assert.Equal(t, []string{"Hello", FailureText}, texts(h.ctrl.Display().Entries()))
	assert.Contains(t, h.notes.all()[0].Message, "connection refused")
}

func TestSendMessageShowsPlaceholderWhilePending(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.api.ask = func(context.Context, client.ChatRequest) (*client.ChatReply, error) {
		<-release
		return &client.ChatReply{Response: "Be still.", ConversationID: "c"}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.ctrl.SendMessage(context.Background(), "Hello")
	}()

	require.Eventually(t, func() bool { return h.ctrl.Display().Len() == 2 }, time.Second, time.Millisecond)
	entries := h.ctrl.Display().Entries()
	assert.Equal(t, "Hello", entries[0].Text)
	assert.True(t, entries[1].Placeholder)
	assert.Equal(t, ThinkingText, entries[1].Text)
	assert.Equal(t, 1, h.ctrl.State().Pending)

	close(release)
	<-done
	entries = h.ctrl.Display().Entries()
	require.Len(t, entries, 2)
	assert.False(t, entries[1].Placeholder)
	assert.Equal(t, 0, h.ctrl.State().Pending)
}

func TestSendMessageSpeaksAfterReveal(t *testing.T) {
	h := newHarness(t)
	h.api.ask = replyWith("Listen with the ear of the heart.", "c", 0.2)

	reveal, err := h.ctrl.SendMessage(context.Background(), "Hello")
	require.NoError(t, err)
	reveal.Wait()

	require.Eventually(t, func() bool { return len(h.speaker.said()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "Listen with the ear of the heart.", h.speaker.said()[0])
}

func TestSendMessageSilentWhenAutoSpeakOff(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Update(func(p *settings.Preferences) { p.AutoSpeak = false }))
	h.api.ask = replyWith("Quiet.", "c", 0.2)

	reveal, err := h.ctrl.SendMessage(context.Background(), "Hello")
	require.NoError(t, err)
	reveal.Wait()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, h.speaker.said())
}

// Two sends in flight: the later send's id wins even if the earlier reply arrives last.
func TestOutOfOrderRepliesKeepNewestConversationID(t *testing.T) {
	h := newHarness(t)
	releaseFirst := make(chan struct{})
	h.api.ask = func(_ context.Context, req client.ChatRequest) (*client.ChatReply, error) {
		if req.Message == "first" {
			<-releaseFirst
			return &client.ChatReply{Response: "one", ConversationID: "old"}, nil
		}
		return &client.ChatReply{Response: "two", ConversationID: "new"}, nil
	}

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = h.ctrl.SendMessage(context.Background(), "first")
	}()
	require.Eventually(t, func() bool { return h.api.count("ask") == 1 }, time.Second, time.Millisecond)

	_, err := h.ctrl.SendMessage(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, "new", h.ctrl.State().ConversationID)

	close(releaseFirst)
	<-firstDone
	assert.Equal(t, "new", h.ctrl.State().ConversationID)
}

func TestReplyAfterNewConversationIsDiscarded(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.api.ask = func(context.Context, client.ChatRequest) (*client.ChatReply, error) {
		<-release
		return &client.ChatReply{Response: "late", ConversationID: "stale"}, nil
	}

	result := make(chan error, 1)
	go func() {
		_, err := h.ctrl.SendMessage(context.Background(), "Hello")
		result <- err
	}()
	require.Eventually(t, func() bool { return h.api.count("ask") == 1 }, time.Second, time.Millisecond)

	h.ctrl.NewConversation()
	close(release)

	assert.True(t, errors.Is(<-result, ErrSuperseded))
	assert.Equal(t, []string{Greeting}, texts(h.ctrl.Display().Entries()))
	assert.Empty(t, h.ctrl.State().ConversationID)
}

func TestDiscardedReplyLogsItsError(t *testing.T) {
	var logs bytes.Buffer
	h := newHarness(t, func(o *Options) {
		o.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	})
	release := make(chan struct{})
	h.api.ask = func(context.Context, client.ChatRequest) (*client.ChatReply, error) {
		<-release
		return nil, errors.New("connection refused")
	}

	result := make(chan error, 1)
	go func() {
		_, err := h.ctrl.SendMessage(context.Background(), "Hello")
		result <- err
	}()
	require.Eventually(t, func() bool { return h.api.count("ask") == 1 }, time.Second, time.Millisecond)

	h.ctrl.NewConversation()
	close(release)

	assert.True(t, errors.Is(<-result, ErrSuperseded))
	assert.Contains(t, logs.String(), "discarding reply for replaced conversation")
	assert.Contains(t, logs.String(), "connection refused")
}

func TestNoSpeechAfterConversationReset(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Update(func(p *settings.Preferences) { p.AutoSpeak = false }))
	h.api.ask = replyWith("Old reply.", "c", 0.1)

	reveal, err := h.ctrl.SendMessage(context.Background(), "Hello")
	require.NoError(t, err)
	reveal.Wait()
	require.True(t, reveal.Completed())

	h.ctrl.mu.Lock()
	epoch := h.ctrl.epoch
	h.ctrl.mu.Unlock()

	// The reveal finished but speech had not started when the user reset.
	h.ctrl.NewConversation()
	h.ctrl.speakAfter(reveal, "Old reply.", epoch)
	assert.Empty(t, h.speaker.said())

	// The same reply is still spoken while its conversation is current.
	h.ctrl.mu.Lock()
	epoch = h.ctrl.epoch
	h.ctrl.mu.Unlock()
	h.ctrl.speakAfter(reveal, "Old reply.", epoch)
	assert.Equal(t, []string{"Old reply."}, h.speaker.said())
}

// =============================================================================
// Reset, load, delete
// =============================================================================

func TestNewConversationAndClearChat(t *testing.T) {
	tests := []struct {
		name   string
		action func(*Controller)
		notice string
	}{
		{"new conversation", (*Controller).NewConversation, "New conversation started"},
		{"clear chat", (*Controller).ClearChat, "Chat cleared"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.api.ask = replyWith("Hi.", "abc123", 0.1)
			_, err := h.ctrl.SendMessage(context.Background(), "Hello")
			require.NoError(t, err)

			tt.action(h.ctrl)

			entries := h.ctrl.Display().Entries()
			require.Len(t, entries, 1)
			assert.Equal(t, Greeting, entries[0].Text)
			assert.Equal(t, models.RoleAssistant, entries[0].Role)
			state := h.ctrl.State()
			assert.Empty(t, state.ConversationID)
			require.NotNil(t, state.Notice)
			assert.Equal(t, tt.notice, state.Notice.Message)
		})
	}
}

func TestLoadConversation(t *testing.T) {
	h := newHarness(t)
	h.api.conversations = []models.Conversation{
		{ID: "other"},
		{ID: "abc123", Model: "gemma3:270m", Messages: []models.ChatMessage{
			{Role: models.RoleUser, Content: "What is love?"},
			{Role: models.RoleAssistant, Content: "Love is the bridge."},
		}},
	}
	require.NoError(t, h.ctrl.SwitchPage(context.Background(), "history"))

	require.NoError(t, h.ctrl.LoadConversation(context.Background(), "abc123"))

	assert.Equal(t, []string{"What is love?", "Love is the bridge."}, texts(h.ctrl.Display().Entries()))
	for _, e := range h.ctrl.Display().Entries() {
		assert.Equal(t, e.Content, e.Text, "loaded messages are shown instantly")
	}
	state := h.ctrl.State()
	assert.Equal(t, "abc123", state.ConversationID)
	assert.Equal(t, PageChat, state.Page)
	assert.False(t, state.Revealing)
}

func TestLoadConversationNotFound(t *testing.T) {
	h := newHarness(t)
	h.api.conversations = []models.Conversation{{ID: "abc123"}}
	h.api.ask = replyWith("Hi.", "abc123", 0.1)
	reveal, err := h.ctrl.SendMessage(context.Background(), "Hello")
	require.NoError(t, err)
	reveal.Wait()
	before := h.ctrl.Display().Entries()
	notesBefore := len(h.notes.all())

	err = h.ctrl.LoadConversation(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrConversationNotFound))

	assert.Equal(t, before, h.ctrl.Display().Entries())
	assert.Equal(t, "abc123", h.ctrl.State().ConversationID)
	notes := h.notes.all()[notesBefore:]
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "not found")
}

func TestDeleteConversationDeclined(t *testing.T) {
	h := newHarness(t)
	h.api.conversations = []models.Conversation{{ID: "abc123"}}
	var prompt string

	deleted, err := h.ctrl.DeleteConversation(context.Background(), "abc123", func(p string) bool {
		prompt = p
		return false
	})
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Contains(t, prompt, "abc123")
	assert.Equal(t, 0, h.api.count("delete"))
	assert.Equal(t, 0, h.api.count("conversations"))
	assert.Empty(t, h.notes.all())

	deleted, err = h.ctrl.DeleteConversation(context.Background(), "abc123", nil)
	require.NoError(t, err)
	assert.False(t, deleted, "nil confirm declines")
	assert.Equal(t, 0, h.api.count("delete"))
}

func TestDeleteConversationAccepted(t *testing.T) {
	yes := func(string) bool { return true }

	t.Run("other conversation", func(t *testing.T) {
		h := newHarness(t)
		h.api.conversations = []models.Conversation{{ID: "abc123"}, {ID: "keep"}}
		h.api.ask = replyWith("Hi.", "keep", 0.1)
		_, err := h.ctrl.SendMessage(context.Background(), "Hello")
		require.NoError(t, err)

		deleted, err := h.ctrl.DeleteConversation(context.Background(), "abc123", yes)
		require.NoError(t, err)
		assert.True(t, deleted)
		assert.Equal(t, []string{"abc123"}, h.api.deleted)

		state := h.ctrl.State()
		assert.Equal(t, "keep", state.ConversationID)
		require.Len(t, state.Conversations, 1, "list is refreshed")
		assert.Equal(t, 2, h.ctrl.Display().Len())
	})

	t.Run("current conversation", func(t *testing.T) {
		h := newHarness(t)
		h.api.conversations = []models.Conversation{{ID: "abc123"}}
		h.api.ask = replyWith("Hi.", "abc123", 0.1)
		_, err := h.ctrl.SendMessage(context.Background(), "Hello")
		require.NoError(t, err)

		deleted, err := h.ctrl.DeleteConversation(context.Background(), "abc123", yes)
		require.NoError(t, err)
		assert.True(t, deleted)

		state := h.ctrl.State()
		assert.Empty(t, state.ConversationID)
		assert.Empty(t, state.Conversations)
		assert.Equal(t, []string{Greeting}, texts(h.ctrl.Display().Entries()))
	})
}

// =============================================================================
// Navigation
// =============================================================================

func TestSwitchPageRefreshes(t *testing.T) {
	tests := []struct {
		page  string
		calls []string
	}{
		{"chat", nil},
		{"settings", nil},
		{"models", []string{"models"}},
		{"system", []string{"system"}},
		{"history", []string{"conversations"}},
		{"behavior-settings", []string{"behavior", "keywords"}},
	}

	for _, tt := range tests {
		t.Run(tt.page, func(t *testing.T) {
			h := newHarness(t)
			require.NoError(t, h.ctrl.SwitchPage(context.Background(), tt.page))
			assert.Equal(t, Page(tt.page), h.ctrl.State().Page)
			for _, op := range tt.calls {
				assert.Equal(t, 1, h.api.count(op), op)
			}

			// Refreshing again is harmless.
			require.NoError(t, h.ctrl.SwitchPage(context.Background(), tt.page))
			for _, op := range tt.calls {
				assert.Equal(t, 2, h.api.count(op), op)
			}
		})
	}
}

func TestSwitchPageUnknown(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.SwitchPage(context.Background(), "models"))

	err := h.ctrl.SwitchPage(context.Background(), "admin")
	assert.True(t, errors.Is(err, ErrUnknownPage))
	assert.Equal(t, PageModels, h.ctrl.State().Page)
}

func TestSwitchPageRefreshFailureKeepsNavigation(t *testing.T) {
	h := newHarness(t)
	h.api.modelsErr = errors.New("503 Service Unavailable")

	require.NoError(t, h.ctrl.SwitchPage(context.Background(), "models"))

	state := h.ctrl.State()
	assert.Equal(t, PageModels, state.Page)
	require.NotNil(t, state.Notice)
	assert.Equal(t, LevelError, state.Notice.Level)
	assert.Contains(t, state.Notice.Message, "Error loading models")
}

func TestStart(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Update(func(p *settings.Preferences) { p.DefaultModel = "phi3-mini" }))
	h.api.conversations = []models.Conversation{{ID: "a"}}

	require.NoError(t, h.ctrl.Start(context.Background()))

	state := h.ctrl.State()
	assert.Equal(t, "phi3-mini", state.Model)
	assert.Equal(t, PageChat, state.Page)
	assert.Len(t, state.Models, 1)
	require.NotNil(t, state.System)
	assert.Equal(t, "Linux", state.System.Platform)
	assert.Len(t, state.Conversations, 1)
	assert.Equal(t, []string{Greeting}, texts(h.ctrl.Display().Entries()))
}

func TestStartReportsEachFailure(t *testing.T) {
	h := newHarness(t)
	h.api.systemErr = errors.New("boom")

	err := h.ctrl.Start(context.Background())
	require.Error(t, err)
	state := h.ctrl.State()
	assert.Len(t, state.Models, 1, "other refreshes still land")
	assert.Nil(t, state.System)
}

// =============================================================================
// Models and voice
// =============================================================================

func TestSelectModel(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.SwitchPage(context.Background(), "models"))

	require.NoError(t, h.ctrl.SelectModel("phi3-mini"))
	state := h.ctrl.State()
	assert.Equal(t, "phi3-mini", state.Model)
	assert.Equal(t, PageChat, state.Page)
	assert.Equal(t, "Switched to phi3-mini", state.Notice.Message)

	assert.True(t, errors.Is(h.ctrl.SelectModel("  "), ErrNoModel))
}

func TestDownloadAndTestModel(t *testing.T) {
	h := newHarness(t)

	ticket, err := h.ctrl.DownloadModel(context.Background(), "phi3-mini")
	require.NoError(t, err)
	assert.Equal(t, "phi3-mini", ticket.Model)
	assert.Equal(t, "Download started for phi3-mini", h.ctrl.State().Notice.Message)

	h.api.testResult = &models.TestResult{Model: "phi3-mini", TestPassed: false, Message: "Model test failed"}
	result, err := h.ctrl.TestModel(context.Background(), "phi3-mini")
	require.NoError(t, err)
	assert.False(t, result.TestPassed)
	notice := h.ctrl.State().Notice
	assert.Equal(t, LevelError, notice.Level)
	assert.Equal(t, "Model test failed", notice.Message)
}

func TestToggleVoiceInput(t *testing.T) {
	t.Run("transcript", func(t *testing.T) {
		h := newHarness(t, func(o *Options) { o.Listener = &fakeListener{transcript: "what is the soul"} })
		got, err := h.ctrl.ToggleVoiceInput(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "what is the soul", got)
	})

	t.Run("disabled in preferences", func(t *testing.T) {
		h := newHarness(t, func(o *Options) { o.Listener = &fakeListener{transcript: "x"} })
		require.NoError(t, h.store.Update(func(p *settings.Preferences) { p.VoiceInput = false }))
		_, err := h.ctrl.ToggleVoiceInput(context.Background())
		assert.True(t, errors.Is(err, ErrVoiceDisabled))
		assert.Equal(t, "Voice input is disabled in settings", h.ctrl.State().Notice.Message)
	})

	t.Run("no listener", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.ctrl.ToggleVoiceInput(context.Background())
		assert.True(t, errors.Is(err, voice.ErrUnavailable))
	})

	t.Run("second toggle stops recording", func(t *testing.T) {
		h := newHarness(t, func(o *Options) { o.Listener = &fakeListener{block: true} })
		done := make(chan error, 1)
		go func() {
			_, err := h.ctrl.ToggleVoiceInput(context.Background())
			done <- err
		}()
		require.Eventually(t, func() bool { return h.ctrl.State().Listening }, time.Second, time.Millisecond)

		_, err := h.ctrl.ToggleVoiceInput(context.Background())
		require.NoError(t, err)
		assert.NoError(t, <-done)
		assert.False(t, h.ctrl.State().Listening)
	})
}

func TestOnChangeFires(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	calls := 0
	h.ctrl.OnChange(func() {
		mu.Lock()
		calls++
		mu.Unlock()
		_ = h.ctrl.State()
	})

	h.ctrl.NewConversation()
	mu.Lock()
	defer mu.Unlock()
	assert.Positive(t, calls)
}

func TestSpeakLast(t *testing.T) {
	h := newHarness(t)
	h.api.ask = replyWith("Be grateful for whoever comes.", "c", 0.1)
	require.NoError(t, h.store.Update(func(p *settings.Preferences) { p.AutoSpeak = false }))

	reveal, err := h.ctrl.SendMessage(context.Background(), "Hello")
	require.NoError(t, err)
	reveal.Wait()

	require.NoError(t, h.ctrl.SpeakLast(context.Background()))
	assert.Equal(t, []string{"Be grateful for whoever comes."}, h.speaker.said())

	require.NoError(t, h.store.Update(func(p *settings.Preferences) { p.TTS = false }))
	assert.Error(t, h.ctrl.SpeakLast(context.Background()))
	assert.Len(t, h.speaker.said(), 1)
}

func TestWatchPreferencesReportsExternalEdits(t *testing.T) {
	h := newHarness(t)
	changed := make(chan struct{}, 16)
	h.ctrl.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.ctrl.WatchPreferences(ctx) }()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(h.store.Path(), []byte("dark_mode: true\n"), 0644)
		select {
		case <-changed:
		case <-time.After(50 * time.Millisecond):
		}
		return h.ctrl.State().Preferences.DarkMode
	}, 5*time.Second, 10*time.Millisecond)
}
