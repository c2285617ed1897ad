package models

import (
	"time"

	"github.com/mnemos/mnemos/internal/domain"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
	MessageRoleSystem    MessageRole = "system"
)

// Message is one append-only entry in a conversation history.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func NewMessage(id, conversationID string, role MessageRole, content string) *Message {
	now := time.Now().UTC()
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (m *Message) Validate() error {
	switch m.Role {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleTool, MessageRoleSystem:
	default:
		return domain.ErrInvalidRole
	}
	if m.Content == "" {
		return domain.ErrEmptyContent
	}
	return nil
}

// Editable reports whether the message may be edited after creation.
// Assistant, tool and system messages are immutable.
func (m *Message) Editable() bool {
	return m.Role == MessageRoleUser
}

// Edit replaces the content of a user message.
func (m *Message) Edit(content string) error {
	if !m.Editable() {
		return domain.ErrMessageNotEditable
	}
	if content == "" {
		return domain.ErrEmptyContent
	}
	m.Content = content
	m.UpdatedAt = time.Now().UTC()
	return nil
}
