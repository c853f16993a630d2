package api

import (
	"errors"
	"net/http"

	"github.com/alecgard/cohort/internal/auth"
	"github.com/alecgard/cohort/internal/metrics"
	"github.com/alecgard/cohort/internal/user"
	"github.com/go-chi/chi/v5"
)

// usersHandler groups user management HTTP handlers.
type usersHandler struct {
	svc      AuthService
	sessions SessionManager
	metrics  *metrics.Metrics
}

func newUsersHandler(svc AuthService, sessions SessionManager, m *metrics.Metrics) *usersHandler {
	return &usersHandler{svc: svc, sessions: sessions, metrics: m}
}

// Create handles POST /api/v1/users (admin only).
func (h *usersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req user.RegistrationInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	u, err := h.svc.CreateUser(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "duplicate_email", "a user with this email already exists")
		case isValidationError(err):
			writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to create user")
		}
		return
	}

	auditLog(r, "create", "user", u.ID, "email", u.Email, "role", u.Role)
	writeJSON(w, http.StatusCreated, u)
}

// LogoutAll handles POST /api/v1/users/{id}/logout-all. A user may force
// out their own sessions; admins may do it for anyone.
func (h *usersHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")

	caller := auth.UserFromContext(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}
	if caller.ID != targetID && caller.Role != user.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden", "cannot invalidate another user's sessions")
		return
	}

	if err := h.sessions.InvalidateAllForUser(w, r, targetID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to invalidate sessions")
		return
	}

	if h.metrics != nil {
		h.metrics.IncSessionInvalidated("logout_all")
	}
	auditLog(r, "logout_all", "user", targetID)
	w.WriteHeader(http.StatusNoContent)
}

func isValidationError(err error) bool {
	return errors.Is(err, user.ErrEmailInvalid) ||
		errors.Is(err, user.ErrPasswordTooShort) ||
		errors.Is(err, user.ErrFirstNameRequired) ||
		errors.Is(err, user.ErrLastNameRequired) ||
		errors.Is(err, user.ErrRoleInvalid)
}
