package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/domain"
)

// UserStore reads the billing view of users.
type UserStore interface {
	// GetByID returns ErrUserNotFound when no user has the given ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}
