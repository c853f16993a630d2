package api

import (
	"net/http"

	"github.com/alecgard/cohort/internal/auth"
	"github.com/alecgard/cohort/internal/metrics"
)

// authHandler groups authentication HTTP handlers.
type authHandler struct {
	svc      AuthService
	sessions SessionManager
	metrics  *metrics.Metrics
}

func newAuthHandler(svc AuthService, sessions SessionManager, m *metrics.Metrics) *authHandler {
	return &authHandler{svc: svc, sessions: sessions, metrics: m}
}

// Login handles POST /api/v1/auth/login.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "email and password are required")
		return
	}

	login, err := h.svc.LogIn(r.Context(), req.Email, req.Password, auth.LoginMeta{
		UserAgent: r.UserAgent(),
		IPAddress: clientIP(r),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "login failed")
		return
	}
	if login == nil {
		if h.metrics != nil {
			h.metrics.IncAuthFailure()
		}
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}

	h.sessions.Transport().Bind(w, login.Session.ID, login.Session.ExpiresAt)

	if h.metrics != nil {
		h.metrics.IncAuthSuccess()
		h.metrics.IncSessionCreated()
	}
	auditLog(r, "login", "session", login.Session.ID, "user_id", login.User.ID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": map[string]interface{}{
			"id":         login.User.ID,
			"email":      login.User.Email,
			"first_name": login.User.FirstName,
			"last_name":  login.User.LastName,
			"role":       login.User.Role,
			"team_id":    login.User.TeamID,
		},
		"expires_at": login.Session.ExpiresAt,
	})
}

// Me handles GET /api/v1/auth/me.
func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	sw := auth.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":       u,
		"expires_at": sw.Session.ExpiresAt,
	})
}

// Logout handles POST /api/v1/auth/logout.
func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Invalidate(w, r); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "logout failed")
		return
	}

	if h.metrics != nil {
		h.metrics.IncSessionInvalidated("logout")
	}
	if sw := auth.SessionFromContext(r.Context()); sw != nil {
		auditLog(r, "logout", "session", sw.Session.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Extend handles POST /api/v1/auth/extend. The session's expiry is pushed
// out by its default duration and the cookie refreshed to match.
func (h *authHandler) Extend(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Extend(w, r, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to extend session")
		return
	}
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no active session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"expires_at": sess.ExpiresAt,
	})
}

// CSRF handles GET /api/v1/auth/csrf: returns the request's CSRF token,
// minting one when absent.
func (h *authHandler) CSRF(w http.ResponseWriter, r *http.Request) {
	token, err := h.sessions.Transport().CSRFToken(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to issue csrf token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"csrf_token": token})
}
