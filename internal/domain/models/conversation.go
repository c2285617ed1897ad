package models

import (
	"time"
	"unicode/utf8"
)

// DefaultConversationTitle is the placeholder assigned to conversations
// created without an explicit title.
const DefaultConversationTitle = "新对话"

// titleRuneLimit caps auto-derived titles at 30 characters.
const titleRuneLimit = 30

// Conversation represents a chat session owned by a user
type Conversation struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Title         string     `json:"title"`
	MessageCount  int        `json:"message_count"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func NewConversation(id, userID, title string) *Conversation {
	if title == "" {
		title = DefaultConversationTitle
	}
	now := time.Now().UTC()
	return &Conversation{
		ID:        id,
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecordExchange accounts for one completed user/assistant message pair.
func (c *Conversation) RecordExchange() {
	now := time.Now().UTC()
	c.MessageCount += 2
	c.LastMessageAt = &now
	c.UpdatedAt = now
}

// DropMessage accounts for one deleted message.
func (c *Conversation) DropMessage() {
	if c.MessageCount > 0 {
		c.MessageCount--
	}
	c.UpdatedAt = time.Now().UTC()
}

// NeedsTitle reports whether the conversation still carries a placeholder
// title that should be replaced by the first user message.
func (c *Conversation) NeedsTitle() bool {
	return c.Title == "" || c.Title == DefaultConversationTitle
}

// DeriveTitle sets the title from the given user message, truncated to the
// title limit. It only applies while NeedsTitle is true.
func (c *Conversation) DeriveTitle(userMessage string) {
	if !c.NeedsTitle() || userMessage == "" {
		return
	}
	c.Title = truncateRunes(userMessage, titleRuneLimit)
	c.UpdatedAt = time.Now().UTC()
}

// Rename replaces the title on explicit user action.
func (c *Conversation) Rename(title string) {
	c.Title = title
	c.UpdatedAt = time.Now().UTC()
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
