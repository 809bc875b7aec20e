package store

import (
	"context"

	"github.com/google/uuid"
)

// CreditLedger adjusts user balances and keeps an audit record of every change.
type CreditLedger interface {
	// Check returns ErrCreditNotEnough when the balance is below amount.
	Check(ctx context.Context, userID uuid.UUID, amount float64) error

	// Consume subtracts amount from the balance and records it with the
	// given description. The balance may become negative.
	Consume(ctx context.Context, userID uuid.UUID, amount float64, description string) error

	// Add credits the balance by amount and records it.
	Add(ctx context.Context, userID uuid.UUID, amount float64, description string) error
}
