package render

import (
	"sync/atomic"
	"testing"

	"github.com/raphaelgruber/askrumi/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendRemoveRoundTrip(t *testing.T) {
	d := NewDisplay()
	d.Append("first", models.RoleUser)
	before := d.Entries()

	id := d.Append("transient", models.RoleAssistant)
	require.Equal(t, len(before)+1, d.Len())

	assert.True(t, d.Remove(id))
	assert.Equal(t, before, d.Entries())
}

func TestRemoveIdempotent(t *testing.T) {
	d := NewDisplay()
	id := d.AppendPlaceholder("Rumi is thinking")

	assert.True(t, d.Remove(id))
	assert.False(t, d.Remove(id), "second remove is a no-op")
	assert.False(t, d.Remove("msg_unknown"))
	assert.Equal(t, 0, d.Len())
}

func TestPlaceholderEntry(t *testing.T) {
	d := NewDisplay()
	id := d.AppendPlaceholder("Rumi is thinking")

	e, ok := d.Get(id)
	require.True(t, ok)
	assert.True(t, e.Placeholder)
	assert.Equal(t, models.RoleAssistant, e.Role)
	assert.Contains(t, id, "typing_")
}

func TestIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID("msg")
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	d := NewDisplay()
	d.Append("a", models.RoleUser)
	d.Append("b", models.RoleAssistant)
	d.Append("c", models.RoleUser)

	var texts []string
	for _, e := range d.Entries() {
		texts = append(texts, e.Text)
	}
	assert.Equal(t, []string{"a", "b", "c"}, texts)
}

func TestResetAndReplace(t *testing.T) {
	d := NewDisplay()
	d.Append("old", models.RoleUser)

	d.Reset("Welcome")
	entries := d.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Welcome", entries[0].Text)
	assert.Equal(t, models.RoleAssistant, entries[0].Role)

	d.Replace([]models.ChatMessage{
		{Role: models.RoleUser, Content: "hi"},
		{Role: "system", Content: "hidden"},
		{Role: models.RoleAssistant, Content: "hello"},
	})
	entries = d.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "hi", entries[0].Text)
	assert.Equal(t, "hello", entries[1].Text)
	assert.Equal(t, "hello", entries[1].Content)
}

func TestOnChange(t *testing.T) {
	d := NewDisplay()
	var calls atomic.Int32
	d.OnChange(func() {
		// Observers may read the display from the callback.
		_ = d.Entries()
		calls.Add(1)
	})

	id := d.Append("x", models.RoleUser)
	d.Remove(id)
	d.Remove(id)

	assert.Equal(t, int32(2), calls.Load(), "no-op remove does not notify")
}

func TestEntriesIsSnapshot(t *testing.T) {
	d := NewDisplay()
	d.Append("x", models.RoleUser)

	snap := d.Entries()
	snap[0].Text = "mutated"
	assert.Equal(t, "x", d.Entries()[0].Text)
}
