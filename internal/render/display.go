// Package render holds the ordered message display list and the reveal effect.
//
// The display is pure state: presentation layers subscribe with OnChange and
// read Entries. Nothing here knows how entries are drawn.
package render

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/askrumi/internal/models"
)

// Entry is one item in the display list.
type Entry struct {
	ID   string
	Role models.Role
	// Text is what is currently shown; it trails Content while a reveal runs.
	Text string
	// Content is the full message text. A stopped reveal never truncates it.
	Content string
	// Placeholder marks transient "thinking" entries with no stored counterpart.
	Placeholder bool
}

// Display is an ordered, append-only list with controlled removal.
// All methods are thread-safe.
type Display struct {
	mu       sync.Mutex
	entries  []Entry
	onChange func()
}

// NewDisplay creates an empty display.
func NewDisplay() *Display {
	return &Display{}
}

// OnChange registers fn to be called after every mutation.
// fn runs outside the display lock and may read the display.
func (d *Display) OnChange(fn func()) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

func (d *Display) notify() {
	d.mu.Lock()
	fn := d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// NewID returns a display identifier: creation time plus a random suffix.
func NewID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return prefix + "_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + suffix
}

// Append adds a message and returns its display id.
func (d *Display) Append(text string, role models.Role) string {
	id := NewID("msg")
	d.mu.Lock()
	d.entries = append(d.entries, Entry{ID: id, Role: role, Text: text, Content: text})
	d.mu.Unlock()
	d.notify()
	return id
}

// AppendPlaceholder adds a transient assistant entry that indicates in-flight work.
func (d *Display) AppendPlaceholder(text string) string {
	id := NewID("typing")
	d.mu.Lock()
	d.entries = append(d.entries, Entry{ID: id, Role: models.RoleAssistant, Text: text, Placeholder: true})
	d.mu.Unlock()
	d.notify()
	return id
}

// Remove deletes the entry with id. Removing a missing id is a no-op.
// Reports whether an entry was removed.
func (d *Display) Remove(id string) bool {
	d.mu.Lock()
	idx := d.indexOf(id)
	if idx < 0 {
		d.mu.Unlock()
		return false
	}
	d.entries = append(d.entries[:idx], d.entries[idx+1:]...)
	d.mu.Unlock()
	d.notify()
	return true
}

// Get returns a copy of the entry with id.
func (d *Display) Get(id string) (Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.indexOf(id)
	if idx < 0 {
		return Entry{}, false
	}
	return d.entries[idx], true
}

// Entries returns a snapshot of the list in display order.
func (d *Display) Entries() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Len returns the number of entries.
func (d *Display) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Reset replaces the list with a single assistant greeting.
func (d *Display) Reset(greeting string) {
	d.mu.Lock()
	d.entries = []Entry{{ID: NewID("msg"), Role: models.RoleAssistant, Text: greeting, Content: greeting}}
	d.mu.Unlock()
	d.notify()
}

// Replace swaps the whole list for msgs, fully shown.
// Messages with roles the client does not display are skipped.
func (d *Display) Replace(msgs []models.ChatMessage) {
	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		if !m.Role.Valid() {
			continue
		}
		entries = append(entries, Entry{ID: NewID("msg"), Role: m.Role, Text: m.Content, Content: m.Content})
	}
	d.mu.Lock()
	d.entries = entries
	d.mu.Unlock()
	d.notify()
}

// begin sets an entry's full content and clears what is shown.
func (d *Display) begin(id, content string) bool {
	d.mu.Lock()
	idx := d.indexOf(id)
	if idx < 0 {
		d.mu.Unlock()
		return false
	}
	d.entries[idx].Content = content
	d.entries[idx].Text = ""
	d.mu.Unlock()
	d.notify()
	return true
}

// show updates the visible text of an entry.
func (d *Display) show(id, text string) bool {
	d.mu.Lock()
	idx := d.indexOf(id)
	if idx < 0 {
		d.mu.Unlock()
		return false
	}
	d.entries[idx].Text = text
	d.mu.Unlock()
	d.notify()
	return true
}

// indexOf returns the index of id or -1. Caller must hold the lock.
func (d *Display) indexOf(id string) int {
	for i := range d.entries {
		if d.entries[i].ID == id {
			return i
		}
	}
	return -1
}
