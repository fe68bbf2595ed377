package render

import (
	"context"
	"sync"
	"time"
)

// Reveal is the cancellation token for one running reveal effect.
type Reveal struct {
	id        string
	cancel    context.CancelFunc
	done      chan struct{}
	completed bool
}

// ID returns the display id being revealed.
func (r *Reveal) ID() string { return r.id }

// Stop halts the reveal. Safe to call more than once.
func (r *Reveal) Stop() { r.cancel() }

// Done is closed once the reveal has emitted its last character.
func (r *Reveal) Done() <-chan struct{} { return r.done }

// Wait blocks until the reveal finishes or is stopped.
func (r *Reveal) Wait() { <-r.done }

// Completed reports whether the whole text was shown. Valid after Done.
func (r *Reveal) Completed() bool {
	select {
	case <-r.done:
		return r.completed
	default:
		return false
	}
}

// Revealer paces text into display entries one character at a time.
// At most one reveal runs at once: starting a new one stops the previous
// one and waits for it to finish writing.
type Revealer struct {
	display *Display

	// startMu serializes Reveal calls; mu only guards current, so observers
	// can query Revealing while a previous reveal is draining.
	startMu sync.Mutex
	mu      sync.Mutex
	current *Reveal
}

// NewRevealer creates a revealer writing into display.
func NewRevealer(display *Display) *Revealer {
	return &Revealer{display: display}
}

// Reveal shows fullText in entry id one rune per interval.
// A non-positive interval shows the text at once.
func (rv *Revealer) Reveal(id, fullText string, interval time.Duration) *Reveal {
	rv.startMu.Lock()
	defer rv.startMu.Unlock()

	rv.mu.Lock()
	prev := rv.current
	rv.mu.Unlock()
	if prev != nil {
		prev.Stop()
		<-prev.done
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Reveal{id: id, cancel: cancel, done: make(chan struct{})}
	rv.mu.Lock()
	rv.current = r
	rv.mu.Unlock()

	if !rv.display.begin(id, fullText) {
		cancel()
		close(r.done)
		return r
	}

	go rv.run(ctx, r, []rune(fullText), interval)
	return r
}

func (rv *Revealer) run(ctx context.Context, r *Reveal, text []rune, interval time.Duration) {
	defer close(r.done)
	defer r.cancel()

	if interval <= 0 {
		r.completed = rv.display.show(r.id, string(text))
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := range text {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		// Re-check after waking; a stop may have raced with the tick.
		if ctx.Err() != nil {
			return
		}
		if !rv.display.show(r.id, string(text[:i+1])) {
			return
		}
	}
	r.completed = true
}

// Revealing reports whether a reveal is currently in progress.
func (rv *Revealer) Revealing() bool {
	rv.mu.Lock()
	r := rv.current
	rv.mu.Unlock()
	if r == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Stop halts the active reveal, if any, and waits for it to exit.
func (rv *Revealer) Stop() {
	rv.mu.Lock()
	r := rv.current
	rv.mu.Unlock()
	if r != nil {
		r.Stop()
		<-r.done
	}
}

// Wait blocks until the active reveal, if any, finishes.
func (rv *Revealer) Wait() {
	rv.mu.Lock()
	r := rv.current
	rv.mu.Unlock()
	if r != nil {
		<-r.done
	}
}
