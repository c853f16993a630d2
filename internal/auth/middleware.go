package auth

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/alecgard/cohort/internal/session"
	"github.com/alecgard/cohort/internal/user"
)

// SessionResolver resolves the request's cookie-bound session. The writer
// is passed through so stale cookies can be cleared on the way out.
// *session.Manager implements it.
type SessionResolver interface {
	Get(w http.ResponseWriter, r *http.Request) (*session.WithUser, error)
}

// RequireSession returns middleware that rejects unauthenticated requests
// with a JSON 401. On success the session is injected into the request
// context.
func RequireSession(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw, err := sessions.Get(w, r)
			if err != nil {
				writeServerError(w)
				return
			}
			if sw == nil {
				writeUnauthorized(w, "authentication required")
				return
			}

			ctx := ContextWithSession(r.Context(), sw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSessionRedirect returns middleware for page-level boundaries:
// unauthenticated requests are sent to the login page with the original URL
// in return_to so the client can resume after logging in.
func RequireSessionRedirect(sessions SessionResolver, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw, err := sessions.Get(w, r)
			if err != nil || sw == nil {
				target := loginPath + "?return_to=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}

			ctx := ContextWithSession(r.Context(), sw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin returns middleware that requires an already-guarded request's
// user to hold the admin role. Use inside a RequireSession chain.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := UserFromContext(r.Context())
		if u == nil {
			writeUnauthorized(w, "authentication required")
			return
		}
		if u.Role != user.RoleAdmin {
			writeForbidden(w, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeErrorJSON(w, http.StatusUnauthorized, "unauthorized", message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeErrorJSON(w, http.StatusForbidden, "forbidden", message)
}

func writeServerError(w http.ResponseWriter) {
	writeErrorJSON(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func writeErrorJSON(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{Code: code, Message: message},
	})
}
