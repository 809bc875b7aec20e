package store

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every store backend. Backends wrap them so
// callers can branch with errors.Is regardless of the storage engine.
var (
	ErrNotFound          = errors.New("entity not found")
	ErrDuplicate         = errors.New("entity already exists")
	ErrInvalidEntity     = errors.New("invalid entity")
	ErrTransactionFailed = errors.New("transaction failed")

	ErrUserNotFound         = fmt.Errorf("%w: user", ErrNotFound)
	ErrConversationNotFound = fmt.Errorf("%w: conversation", ErrNotFound)
	ErrPresetNotFound       = fmt.Errorf("%w: preset", ErrNotFound)

	// ErrCreditNotEnough is returned by CreditLedger.Check when the balance
	// cannot cover the requested amount.
	ErrCreditNotEnough = errors.New("not enough credits")
)

func IsNotFoundError(err error) bool  { return errors.Is(err, ErrNotFound) }
func IsDuplicateError(err error) bool { return errors.Is(err, ErrDuplicate) }

// StoreError records which entity and operation a storage failure belongs to.
type StoreError struct {
	Entity    string
	Operation string
	Message   string
	Err       error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Entity, e.Operation, e.Message)
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{Entity: entity, Operation: operation, Message: message, Err: err}
}
