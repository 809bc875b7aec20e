package domain

import (
	"time"
)

// Role identifies the author of a conversation message.
type Role string

// Message roles understood by every generation provider.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// MessageType distinguishes plain text from media references.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
)

// Message is one entry of a conversation or preset history.
type Message struct {
	Role      Role        `json:"role"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Visible   bool        `json:"visibility"`
	CreatedAt time.Time   `json:"create_time"`
}

// NewTextMessage creates a visible text message stamped with the current time.
func NewTextMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Type:      MessageTypeText,
		Content:   content,
		Visible:   true,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks the role and content of the message.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return NewValidationError("role", "is not a known role", ErrInvalidRole)
	}
	if m.Content == "" {
		return NewValidationError("content", "cannot be empty", ErrEmptyContent)
	}
	return nil
}
