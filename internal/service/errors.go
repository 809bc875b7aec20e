package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/chatrelay-api/internal/domain"
)

var (
	// ErrInsufficientCredits indicates the user has no credits left and lacks
	// the permission to run tasks without them.
	// API layer should map this to HTTP 402 Payment Required.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrNotConversationOwner indicates the conversation belongs to another user.
	// API layer should map this to HTTP 403 Forbidden.
	ErrNotConversationOwner = errors.New("conversation is owned by another user")

	// ErrInvalidTaskType indicates an unsupported task type in a create request.
	ErrInvalidTaskType = fmt.Errorf("%w: unsupported task type", domain.ErrValidation)
)

// ServiceError adds operation context to an unexpected failure while keeping
// the cause reachable through errors.Is/errors.As.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a ServiceError for operation.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{Operation: operation, Message: message, Err: err}
}
