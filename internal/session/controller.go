// Package session holds the client's authoritative state: the active page,
// the current conversation and the selected model. It drives the display,
// the API client, the preference store and the voice adapters.
//
// Presentation layers observe the controller through OnChange and read
// State; they never mutate it directly.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/askrumi/internal/client"
	"github.com/raphaelgruber/askrumi/internal/models"
	"github.com/raphaelgruber/askrumi/internal/render"
	"github.com/raphaelgruber/askrumi/internal/settings"
	"github.com/raphaelgruber/askrumi/internal/voice"
)

const (
	// Greeting is the assistant message a fresh conversation starts with.
	Greeting = "Welcome, seeker of wisdom. I am Rumi, your spiritual guide. Ask me anything about life, love, wisdom, or the mysteries of existence. What would you like to explore today?"
	// FailureText replaces the reply when a chat request fails.
	FailureText = "Sorry, I encountered an error. Please try again."
	// ThinkingText is shown while a reply is pending.
	ThinkingText = "Rumi is thinking"
)

var (
	// ErrConversationNotFound is returned when an id is absent from the server's list.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrSuperseded is returned for replies that arrive after the conversation was reset or replaced.
	ErrSuperseded = errors.New("conversation changed before the reply arrived")
	// ErrVoiceDisabled is returned when voice input is turned off in preferences.
	ErrVoiceDisabled = errors.New("voice input is disabled")
	// ErrNoModel is returned when selecting an empty model name.
	ErrNoModel = errors.New("model name required")
)

// API is the subset of the REST client the controller depends on.
type API interface {
	AskRumi(ctx context.Context, req client.ChatRequest) (*client.ChatReply, error)
	ListModels(ctx context.Context) ([]models.ModelInfo, error)
	DownloadModel(ctx context.Context, name, priority string) (*models.DownloadTicket, error)
	TestModel(ctx context.Context, name string) (*models.TestResult, error)
	SystemInfo(ctx context.Context) (*models.SystemInfo, error)
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	GetBehaviorSettings(ctx context.Context) (client.ConfigObject, error)
	GetEmotionKeywords(ctx context.Context) (client.ConfigObject, error)
}

// Options carries the optional collaborators of a Controller.
type Options struct {
	Speaker  voice.Speaker
	Listener voice.Listener
	Notifier Notifier
	Logger   *slog.Logger
}

// State is a snapshot of the controller for presentation.
type State struct {
	Page           Page
	Model          string
	ConversationID string
	Revealing      bool
	Pending        int
	Listening      bool

	Preferences   settings.Preferences
	Models        []models.ModelInfo
	System        *models.SystemInfo
	Conversations []models.Conversation
	Behavior      client.ConfigObject
	Keywords      client.ConfigObject

	Notice *Notification
}

// Controller is the session state machine. All methods are thread-safe.
type Controller struct {
	api      API
	store    *settings.Store
	display  *render.Display
	revealer *render.Revealer
	speaker  voice.Speaker
	listener voice.Listener
	notifier Notifier
	logger   *slog.Logger

	// applyMu orders display mutations of completing sends against resets,
	// so a reply either lands before a reset or is discarded after it.
	applyMu sync.Mutex

	mu             sync.Mutex
	page           Page
	model          string
	conversationID string
	seq            uint64 // last issued send
	adoptedSeq     uint64 // send whose conversation id is current
	epoch          uint64 // bumped whenever the conversation is reset or replaced
	pending        int
	listenCancel   context.CancelFunc
	models         []models.ModelInfo
	system         *models.SystemInfo
	conversations  []models.Conversation
	behavior       client.ConfigObject
	keywords       client.ConfigObject
	notice         *Notification
	onChange       func()
}

// New creates a controller on the chat page with an empty display.
// Call Start to load preferences, show the greeting and fetch initial data.
func New(api API, store *settings.Store, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	display := render.NewDisplay()
	c := &Controller{
		api:      api,
		store:    store,
		display:  display,
		revealer: render.NewRevealer(display),
		speaker:  opts.Speaker,
		listener: opts.Listener,
		notifier: opts.Notifier,
		logger:   logger,
		page:     PageChat,
		model:    store.Preferences().DefaultModel,
	}
	display.OnChange(c.changed)
	return c
}

// Display returns the message list the controller writes to.
func (c *Controller) Display() *render.Display {
	return c.display
}

// Revealer returns the reveal effect driver.
func (c *Controller) Revealer() *render.Revealer {
	return c.revealer
}

// Store returns the preference store.
func (c *Controller) Store() *settings.Store {
	return c.store
}

// OnChange registers fn to run after any state or display change.
// fn must not block; it runs on whichever goroutine made the change.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Controller) changed() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// State returns a snapshot of the session.
func (c *Controller) State() State {
	c.mu.Lock()
	s := State{
		Page:           c.page,
		Model:          c.model,
		ConversationID: c.conversationID,
		Pending:        c.pending,
		Listening:      c.listenCancel != nil,
		Models:         append([]models.ModelInfo(nil), c.models...),
		System:         c.system,
		Conversations:  append([]models.Conversation(nil), c.conversations...),
		Behavior:       c.behavior,
		Keywords:       c.keywords,
	}
	if c.notice != nil {
		n := *c.notice
		s.Notice = &n
	}
	c.mu.Unlock()

	s.Revealing = c.revealer.Revealing()
	s.Preferences = c.store.Preferences()
	return s
}

func (c *Controller) notify(level Level, format string, args ...any) {
	n := Notification{Level: level, Message: fmt.Sprintf(format, args...), At: time.Now()}
	c.mu.Lock()
	c.notice = &n
	c.mu.Unlock()

	if level == LevelError {
		c.logger.Warn("notification", "message", n.Message)
	} else {
		c.logger.Debug("notification", "level", level.String(), "message", n.Message)
	}
	if c.notifier != nil {
		c.notifier.Notify(n)
	}
	c.changed()
}

// =============================================================================
// Lifecycle
// =============================================================================

// LoadPreferences reads the preference file and adopts its default model.
func (c *Controller) LoadPreferences() settings.Preferences {
	prefs := c.store.Load()
	c.mu.Lock()
	c.model = prefs.DefaultModel
	c.mu.Unlock()
	c.changed()
	return prefs
}

// Start loads preferences, shows the greeting and fetches models, system
// info and conversations concurrently. Each fetch reports its own failure;
// the first error is returned.
func (c *Controller) Start(ctx context.Context) error {
	c.LoadPreferences()
	c.display.Reset(Greeting)

	var g errgroup.Group
	g.Go(func() error { return c.RefreshModels(ctx) })
	g.Go(func() error { return c.RefreshSystem(ctx) })
	g.Go(func() error { return c.RefreshConversations(ctx) })
	if err := g.Wait(); err != nil {
		c.logger.Warn("startup refresh incomplete", "error", err)
		return err
	}
	return nil
}

// Close stops any running reveal, speech or recording.
func (c *Controller) Close() {
	c.revealer.Stop()
	if c.speaker != nil {
		c.speaker.Stop()
	}
	c.mu.Lock()
	if c.listenCancel != nil {
		c.listenCancel()
	}
	c.mu.Unlock()
}

// =============================================================================
// Navigation
// =============================================================================

// SwitchPage activates the named page and refreshes its data. Unknown names
// are rejected without any state change. A failed refresh is reported as a
// notification and does not undo the navigation.
func (c *Controller) SwitchPage(ctx context.Context, name string) error {
	page, err := ParsePage(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.page = page
	c.mu.Unlock()
	c.changed()

	if err := c.refresh(ctx, page); err != nil {
		c.logger.Debug("page refresh failed", "page", page, "error", err)
	}
	return nil
}

func (c *Controller) refresh(ctx context.Context, page Page) error {
	switch page {
	case PageModels:
		return c.RefreshModels(ctx)
	case PageSystem:
		return c.RefreshSystem(ctx)
	case PageHistory:
		return c.RefreshConversations(ctx)
	case PageBehavior:
		return c.RefreshBehavior(ctx)
	default:
		return nil
	}
}

// RefreshModels fetches the model catalog.
func (c *Controller) RefreshModels(ctx context.Context) error {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		c.notify(LevelError, "Error loading models: %v", err)
		return fmt.Errorf("list models: %w", err)
	}
	c.mu.Lock()
	c.models = list
	c.mu.Unlock()
	c.changed()
	return nil
}

// RefreshSystem fetches the server host description.
func (c *Controller) RefreshSystem(ctx context.Context) error {
	info, err := c.api.SystemInfo(ctx)
	if err != nil {
		c.notify(LevelError, "Error loading system info: %v", err)
		return fmt.Errorf("system info: %w", err)
	}
	c.mu.Lock()
	c.system = info
	c.mu.Unlock()
	c.changed()
	return nil
}

// RefreshConversations fetches the stored conversation list.
func (c *Controller) RefreshConversations(ctx context.Context) error {
	list, err := c.api.ListConversations(ctx)
	if err != nil {
		c.notify(LevelError, "Error loading conversations: %v", err)
		return fmt.Errorf("list conversations: %w", err)
	}
	c.mu.Lock()
	c.conversations = list
	c.mu.Unlock()
	c.changed()
	return nil
}

// RefreshBehavior fetches the behavior configuration and emotion keywords together.
func (c *Controller) RefreshBehavior(ctx context.Context) error {
	var behavior, keywords client.ConfigObject
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cfg, err := c.api.GetBehaviorSettings(gctx)
		if err != nil {
			return fmt.Errorf("get behavior settings: %w", err)
		}
		behavior = cfg
		return nil
	})
	g.Go(func() error {
		cfg, err := c.api.GetEmotionKeywords(gctx)
		if err != nil {
			return fmt.Errorf("get emotion keywords: %w", err)
		}
		keywords = cfg
		return nil
	})
	if err := g.Wait(); err != nil {
		c.notify(LevelError, "Error loading behavior settings: %v", err)
		return err
	}

	c.mu.Lock()
	c.behavior = behavior
	c.keywords = keywords
	c.mu.Unlock()
	c.changed()
	return nil
}

// =============================================================================
// Chat
// =============================================================================

// SendMessage sends one chat turn and starts revealing the reply.
// Whitespace-only input is ignored and returns (nil, nil).
//
// Every send is stamped. A reply adopts its conversation id only when no
// later send has adopted one already, and replies to a conversation that was
// reset or replaced in the meantime are dropped with ErrSuperseded.
func (c *Controller) SendMessage(ctx context.Context, text string) (*render.Reveal, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	prefs := c.store.Preferences()

	c.applyMu.Lock()
	c.mu.Lock()
	c.seq++
	seq, epoch := c.seq, c.epoch
	req := client.ChatRequest{Message: text, Model: c.model, Temperature: prefs.Temperature}
	if c.conversationID != "" {
		id := c.conversationID
		req.ConversationID = &id
	}
	c.pending++
	c.mu.Unlock()

	c.display.Append(text, models.RoleUser)
	placeholder := c.display.AppendPlaceholder(ThinkingText)
	c.applyMu.Unlock()

	reply, err := c.api.AskRumi(ctx, req)

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	c.pending--
	stale := epoch != c.epoch
	if !stale && err == nil && reply.ConversationID != "" && seq > c.adoptedSeq {
		c.conversationID = reply.ConversationID
		c.adoptedSeq = seq
	}
	c.mu.Unlock()

	if stale {
		c.logger.Info("discarding reply for replaced conversation", "seq", seq, "error", err)
		c.changed()
		return nil, ErrSuperseded
	}

	c.display.Remove(placeholder)
	if err != nil {
		c.display.Append(FailureText, models.RoleAssistant)
		c.notify(LevelError, "Error: %v", err)
		return nil, fmt.Errorf("ask rumi: %w", err)
	}

	id := c.display.Append("", models.RoleAssistant)
	reveal := c.revealer.Reveal(id, reply.Response, prefs.RevealInterval())
	c.logger.Info("reply received",
		"conversation_id", reply.ConversationID,
		"inference_time", reply.InferenceTime,
		"chars", len(reply.Response))
	c.notify(LevelSuccess, "Response received in %.2fs", reply.InferenceTime)

	if prefs.ShouldSpeak() && c.speaker != nil {
		go c.speakAfter(reveal, reply.Response, epoch)
	}
	return reveal, nil
}

// speakAfter reads text aloud once its reveal has finished. Stopped reveals
// and replies whose conversation was reset or replaced are not spoken.
func (c *Controller) speakAfter(reveal *render.Reveal, text string, epoch uint64) {
	reveal.Wait()
	if !reveal.Completed() {
		return
	}
	c.mu.Lock()
	current := c.epoch
	c.mu.Unlock()
	if current != epoch {
		c.logger.Debug("skipping speech for replaced conversation")
		return
	}
	if err := c.speaker.Speak(context.Background(), text); err != nil && !errors.Is(err, voice.ErrUnavailable) {
		c.logger.Warn("speech failed", "error", err)
	}
}

// NewConversation forgets the current conversation id and shows the greeting.
func (c *Controller) NewConversation() {
	c.reset()
	c.notify(LevelSuccess, "New conversation started")
}

// ClearChat is NewConversation with a different notification.
func (c *Controller) ClearChat() {
	c.reset()
	c.notify(LevelSuccess, "Chat cleared")
}

func (c *Controller) reset() {
	c.replace(func() {
		c.conversationID = ""
	}, func() {
		c.display.Reset(Greeting)
	})
}

// replace swaps the conversation under applyMu: it stops effects, applies
// the state change, invalidates in-flight sends, then rewrites the display.
func (c *Controller) replace(state func(), display func()) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.revealer.Stop()
	if c.speaker != nil {
		c.speaker.Stop()
	}

	c.mu.Lock()
	state()
	c.epoch++
	c.adoptedSeq = c.seq
	c.mu.Unlock()

	display()
	c.changed()
}

// =============================================================================
// History
// =============================================================================

// LoadConversation shows a stored conversation and makes it current.
// The server's list is the only lookup; an absent id raises one notification
// and leaves the session untouched.
func (c *Controller) LoadConversation(ctx context.Context, id string) error {
	if err := c.RefreshConversations(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	var conv *models.Conversation
	for i := range c.conversations {
		if c.conversations[i].ID == id {
			found := c.conversations[i]
			conv = &found
			break
		}
	}
	c.mu.Unlock()

	if conv == nil {
		c.notify(LevelError, "Conversation %s not found", id)
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}

	c.replace(func() {
		c.conversationID = conv.ID
		c.page = PageChat
	}, func() {
		c.display.Replace(conv.Messages)
	})
	c.logger.Info("conversation loaded", "conversation_id", conv.ID, "messages", len(conv.Messages))
	return nil
}

// DeleteConversation removes a stored conversation after confirm approves.
// A nil confirm declines. It reports whether the delete happened.
func (c *Controller) DeleteConversation(ctx context.Context, id string, confirm Confirm) (bool, error) {
	if confirm == nil || !confirm(fmt.Sprintf("Delete conversation %s?", id)) {
		return false, nil
	}

	if err := c.api.DeleteConversation(ctx, id); err != nil {
		c.notify(LevelError, "Error deleting conversation: %v", err)
		return false, fmt.Errorf("delete conversation: %w", err)
	}

	c.mu.Lock()
	current := c.conversationID == id
	c.mu.Unlock()
	if current {
		c.reset()
	}

	c.notify(LevelSuccess, "Conversation deleted")
	if err := c.RefreshConversations(ctx); err != nil {
		c.logger.Warn("refresh after delete failed", "error", err)
	}
	return true, nil
}

// =============================================================================
// Models
// =============================================================================

// SelectModel makes name the model for subsequent sends and returns to chat.
func (c *Controller) SelectModel(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNoModel
	}
	c.mu.Lock()
	c.model = name
	c.page = PageChat
	c.mu.Unlock()
	c.notify(LevelSuccess, "Switched to %s", name)
	return nil
}

// DownloadModel asks the server to fetch a model.
func (c *Controller) DownloadModel(ctx context.Context, name string) (*models.DownloadTicket, error) {
	ticket, err := c.api.DownloadModel(ctx, name, "normal")
	if err != nil {
		c.notify(LevelError, "Error starting download: %v", err)
		return nil, fmt.Errorf("download model: %w", err)
	}
	c.notify(LevelInfo, "Download started for %s", name)
	return ticket, nil
}

// TestModel runs the server's smoke test for a model.
func (c *Controller) TestModel(ctx context.Context, name string) (*models.TestResult, error) {
	result, err := c.api.TestModel(ctx, name)
	if err != nil {
		c.notify(LevelError, "Error testing model: %v", err)
		return nil, fmt.Errorf("test model: %w", err)
	}
	level := LevelError
	if result.TestPassed {
		level = LevelSuccess
	}
	c.notify(level, "%s", result.Message)
	return result, nil
}

// =============================================================================
// Preferences and voice
// =============================================================================

// UpdatePreferences mutates and persists preferences.
func (c *Controller) UpdatePreferences(fn func(*settings.Preferences)) error {
	if err := c.store.Update(fn); err != nil {
		c.notify(LevelError, "Error saving settings: %v", err)
		return err
	}
	if !c.store.Preferences().TTS && c.speaker != nil {
		c.speaker.Stop()
	}
	c.changed()
	return nil
}

// WatchPreferences follows edits of the preference file made outside this
// session until ctx ends.
func (c *Controller) WatchPreferences(ctx context.Context) error {
	err := c.store.Watch(ctx, func(settings.Preferences) {
		c.changed()
	})
	if err != nil {
		c.logger.Warn("preferences watch stopped", "error", err)
	}
	return err
}

// PushGeneration mirrors the local generation parameters to the server.
func (c *Controller) PushGeneration(ctx context.Context) error {
	if err := c.store.PushGeneration(ctx); err != nil {
		c.notify(LevelError, "Error saving settings to server: %v", err)
		return err
	}
	c.notify(LevelSuccess, "Generation settings saved to server")
	return nil
}

// PullGeneration adopts the server's generation parameters locally.
func (c *Controller) PullGeneration(ctx context.Context) error {
	if _, err := c.store.PullGeneration(ctx); err != nil {
		c.notify(LevelError, "Error loading settings from server: %v", err)
		return err
	}
	c.notify(LevelSuccess, "Generation settings loaded from server")
	return nil
}

// StopSpeaking interrupts speech playback.
func (c *Controller) StopSpeaking() {
	if c.speaker != nil {
		c.speaker.Stop()
	}
}

// SpeakLast reads the most recent assistant message aloud. It blocks until
// playback ends.
func (c *Controller) SpeakLast(ctx context.Context) error {
	if c.speaker == nil || !c.store.Preferences().TTS {
		c.notify(LevelError, "Text to speech is disabled")
		return voice.ErrUnavailable
	}
	entries := c.display.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Role != models.RoleAssistant || e.Placeholder {
			continue
		}
		if err := c.speaker.Speak(ctx, e.Content); err != nil {
			if errors.Is(err, voice.ErrUnavailable) {
				c.notify(LevelError, "Text to speech not configured")
			} else {
				c.notify(LevelError, "Speech error: %v", err)
			}
			return err
		}
		return nil
	}
	return nil
}

// ToggleVoiceInput starts a recording, or stops the one in progress.
// A finished recording returns its transcript.
func (c *Controller) ToggleVoiceInput(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.listenCancel != nil {
		c.listenCancel()
		c.mu.Unlock()
		return "", nil
	}
	c.mu.Unlock()

	if c.listener == nil {
		c.notify(LevelError, "Voice input not supported")
		return "", voice.ErrUnavailable
	}
	if !c.store.Preferences().VoiceInput {
		c.notify(LevelError, "Voice input is disabled in settings")
		return "", ErrVoiceDisabled
	}

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.listenCancel = cancel
	c.mu.Unlock()
	c.notify(LevelInfo, "Listening...")

	transcript, err := c.listener.Listen(ctx)

	interrupted := ctx.Err() != nil
	c.mu.Lock()
	c.listenCancel = nil
	c.mu.Unlock()
	cancel()
	c.changed()

	switch {
	case err == nil:
		c.notify(LevelSuccess, "Voice input received")
		return transcript, nil
	case interrupted:
		return "", nil
	case errors.Is(err, voice.ErrUnavailable):
		c.notify(LevelError, "Voice input not supported")
	default:
		c.notify(LevelError, "Voice input error: %v", err)
	}
	return "", err
}
