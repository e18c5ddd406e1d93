package chat

import "time"

// Role identifies who produced a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message persists individual turns of a backend conversation.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Intent    string    `json:"intent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
