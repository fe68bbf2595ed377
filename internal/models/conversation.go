package models

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role the client can display.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Conversation is the server-owned chat history as returned by the list endpoint.
// The client only ever holds a transient copy for display.
type Conversation struct {
	ID           string        `json:"id"`
	Messages     []ChatMessage `json:"messages,omitempty"`
	MessageCount int           `json:"message_count"`
	CreatedAt    string        `json:"created_at,omitempty"`
	UpdatedAt    string        `json:"updated_at"`
	Model        string        `json:"model"`
}

// ChatMessage represents a single stored message within a conversation.
type ChatMessage struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Count returns the number of messages, preferring the server's count
// when the message bodies were omitted from the listing.
func (c Conversation) Count() int {
	if c.MessageCount > 0 {
		return c.MessageCount
	}
	return len(c.Messages)
}
