package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/api/shared"
	"github.com/phrazzld/chatrelay-api/internal/domain"
)

// taskIDParam is the chi route parameter of the /api/tasks/{id} routes.
const taskIDParam = "id"

// requireUserID returns the user authenticated by the auth middleware. When
// there is none it responds 401 and reports false.
func requireUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return uuid.Nil, false
	}
	return userID, true
}

// taskIDFromPath parses the task ID route parameter.
func taskIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, taskIDParam)
	if raw == "" {
		return uuid.Nil, domain.NewValidationError("task_id", "is required", domain.ErrValidation)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError("task_id", "must be a UUID", domain.ErrInvalidID)
	}
	return id, nil
}
