package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/domain"
)

// MessageStore holds ordered message histories keyed by chat or preset ID.
// Preset histories are the context placed before a chat's own messages.
type MessageStore interface {
	// GetMessages returns the history, oldest first. An unknown ID has an
	// empty history.
	GetMessages(ctx context.Context, chatID uuid.UUID) ([]domain.Message, error)

	// AppendMessage adds msg to the end of the chat history.
	AppendMessage(ctx context.Context, chatID uuid.UUID, msg domain.Message) error
}
