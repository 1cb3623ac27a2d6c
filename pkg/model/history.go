package model

import (
	"time"

	"github.com/google/uuid"
)

type HistoryID string

// NewHistoryID generates a new unique HistoryID
func NewHistoryID() HistoryID {
	return HistoryID(uuid.New().String())
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is an ordered conversation transcript. The first message is
// always the system instruction; after that, user and assistant messages
// alternate. History is owned by a chat session and must only be mutated
// through it.
type History struct {
	ID        HistoryID  `json:"id"`
	Messages  []*Message `json:"messages"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewHistory creates a history seeded with the system instruction.
func NewHistory(systemPrompt string) *History {
	now := time.Now()
	return &History{
		ID: NewHistoryID(),
		Messages: []*Message{
			{Role: RoleSystem, Content: systemPrompt},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds a message and bumps UpdatedAt.
func (h *History) Append(role Role, content string) {
	h.Messages = append(h.Messages, &Message{Role: role, Content: content})
	h.UpdatedAt = time.Now()
}
