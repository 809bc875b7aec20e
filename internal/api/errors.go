package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/chatrelay-api/internal/api/shared"
	"github.com/phrazzld/chatrelay-api/internal/domain"
	"github.com/phrazzld/chatrelay-api/internal/service"
	"github.com/phrazzld/chatrelay-api/internal/service/auth"
	"github.com/phrazzld/chatrelay-api/internal/store"
	"github.com/phrazzld/chatrelay-api/internal/task"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// exposing the error itself.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrInsufficientCredits):
		return http.StatusPaymentRequired

	case errors.Is(err, service.ErrNotConversationOwner):
		return http.StatusForbidden

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, task.ErrStreamLocked):
		return http.StatusConflict

	case errors.Is(err, task.ErrTaskNotTerminal),
		errors.Is(err, task.ErrTaskFailed),
		errors.Is(err, task.ErrTaskFinished):
		return http.StatusUnprocessableEntity

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) && verr.Field != "" {
		return fmt.Sprintf("Invalid %s: %s", verr.Field, verr.Message)
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"
	case errors.Is(err, auth.ErrMissingToken):
		return "Authorization header required"
	case errors.Is(err, domain.ErrUnauthorized):
		return "User ID not found or invalid"

	case errors.Is(err, service.ErrInsufficientCredits):
		return "Not enough credits"
	case errors.Is(err, service.ErrNotConversationOwner):
		return "You do not own this conversation"

	case errors.Is(err, task.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrConversationNotFound):
		return "Conversation not found"
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, task.ErrStreamLocked):
		return "Task is already being streamed"
	case errors.Is(err, task.ErrTaskNotTerminal):
		return "Task is still in progress"
	case errors.Is(err, task.ErrTaskFailed):
		return "Task has failed"
	case errors.Is(err, task.ErrTaskFinished):
		return "Task has already finished"

	case errors.Is(err, service.ErrInvalidTaskType):
		return "Unsupported task type"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	case errors.Is(err, domain.ErrValidation):
		return "Validation failed"
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return "Server is busy, try again later"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and safe message for err. Errors that
// map to 500 use defaultMsg when it is set.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	msg := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && defaultMsg != "" {
		msg = defaultMsg
	}
	shared.RespondWithErrorAndLog(w, r, status, msg, err)
}

// HandleValidationError answers 400 for a request that failed struct validation.
func HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
}

// SanitizeValidationError turns a validator message into a short
// field-level message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()
	if !strings.Contains(errMsg, "Field validation") {
		return "Validation error"
	}

	// Key: 'CreateTaskRequest.ChatID' Error:Field validation for 'ChatID' failed on the 'uuid' tag
	parts := strings.Split(errMsg, "Error:")
	if len(parts) < 2 {
		return "Validation error"
	}
	fieldParts := strings.Split(parts[1], "'")
	if len(fieldParts) < 3 {
		return "Validation error"
	}
	field := fieldParts[1]
	if len(fieldParts) >= 5 {
		return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(fieldParts[3]))
	}
	return fmt.Sprintf("Invalid %s", field)
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "uuid":
		return "must be a UUID"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
