package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/platform/logger"
	"github.com/phrazzld/chatrelay-api/internal/store"
)

// Record description prefixes.
const (
	consumePrefix = "Consume: "
	addPrefix     = "Add: "
)

// CreditLedger updates users.credits_left and writes a credit_records row
// for every change inside one transaction.
type CreditLedger struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCreditLedger creates a CreditLedger.
func NewCreditLedger(db *sql.DB, logger *slog.Logger) *CreditLedger {
	return &CreditLedger{db: db, logger: logger}
}

// Check returns store.ErrCreditNotEnough when the balance is below amount.
func (l *CreditLedger) Check(ctx context.Context, userID uuid.UUID, amount float64) error {
	var balance float64
	err := l.db.QueryRowContext(ctx, `SELECT credits_left FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrUserNotFound
		}
		return MapError(err)
	}
	if balance < amount {
		return fmt.Errorf("%w: balance %.2f, required %.2f", store.ErrCreditNotEnough, balance, amount)
	}
	return nil
}

// Consume debits amount and records it as a negative entry.
func (l *CreditLedger) Consume(ctx context.Context, userID uuid.UUID, amount float64, description string) error {
	if amount < 0 {
		return fmt.Errorf("%w: amount must not be negative", store.ErrInvalidEntity)
	}
	return l.apply(ctx, userID, -amount, consumePrefix+description)
}

// Add credits amount and records it.
func (l *CreditLedger) Add(ctx context.Context, userID uuid.UUID, amount float64, description string) error {
	if amount < 0 {
		return fmt.Errorf("%w: amount must not be negative", store.ErrInvalidEntity)
	}
	return l.apply(ctx, userID, amount, addPrefix+description)
}

func (l *CreditLedger) apply(ctx context.Context, userID uuid.UUID, delta float64, description string) error {
	log := logger.FromContextOrDefault(ctx, l.logger).With(
		slog.String("user_id", userID.String()),
		slog.Float64("delta", delta))

	return store.RunInTransaction(ctx, l.db, func(ctx context.Context, tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE users SET credits_left = credits_left + $1 WHERE id = $2`,
			delta, userID)
		if err != nil {
			log.Error("failed to update balance", slog.String("error", err.Error()))
			return MapError(err)
		}
		if err := expectRows(result, store.ErrUserNotFound); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO credit_records (user_id, amount, description) VALUES ($1, $2, $3)`,
			userID, delta, description); err != nil {
			log.Error("failed to insert credit record", slog.String("error", err.Error()))
			return MapError(err)
		}

		log.Debug("credit ledger updated", slog.String("description", description))
		return nil
	})
}

var _ store.CreditLedger = (*CreditLedger)(nil)
