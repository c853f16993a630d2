package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alecgard/cohort/internal/auth"
	"github.com/alecgard/cohort/internal/metrics"
	"github.com/alecgard/cohort/internal/session"
	"github.com/alecgard/cohort/internal/team"
	"github.com/alecgard/cohort/internal/user"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuthService is the slice of the authentication service the handlers use.
type AuthService interface {
	LogIn(ctx context.Context, email, password string, meta auth.LoginMeta) (*auth.Login, error)
	CreateUser(ctx context.Context, in user.RegistrationInput) (*user.User, error)
}

// SessionManager is the session lifecycle surface the handlers use.
// *session.Manager implements it.
type SessionManager interface {
	Get(w http.ResponseWriter, r *http.Request) (*session.WithUser, error)
	Invalidate(w http.ResponseWriter, r *http.Request) error
	InvalidateAllForUser(w http.ResponseWriter, r *http.Request, userID string) error
	Extend(w http.ResponseWriter, r *http.Request, duration time.Duration) (*session.Session, error)
	Transport() *session.CookieTransport
}

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Auth           AuthService
	Sessions       SessionManager
	Teams          *team.Resolver
	Metrics        *metrics.Metrics
	DBPool         *pgxpool.Pool
	AllowedOrigins []string

	// LoginPath is where browser-facing pages redirect unauthenticated
	// visitors.
	LoginPath string
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.Use(slogRequestLogger)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// Handlers.
	authH := newAuthHandler(deps.Auth, deps.Sessions, deps.Metrics)
	usersH := newUsersHandler(deps.Auth, deps.Sessions, deps.Metrics)
	teamsH := newTeamsHandler(deps.Teams)

	// Health check.
	r.Get("/health", healthHandler(deps.DBPool))

	// Metrics summary: a browser-facing page, so unauthenticated visitors
	// are bounced to the login page instead of getting a JSON 401.
	if deps.Metrics != nil {
		loginPath := deps.LoginPath
		if loginPath == "" {
			loginPath = "/login"
		}
		r.Group(func(mr chi.Router) {
			mr.Use(auth.RequireSessionRedirect(deps.Sessions, loginPath))
			mr.Get("/metrics/summary", deps.Metrics.Handler())
		})
	}

	r.Route("/api/v1", func(ar chi.Router) {
		// Unauthenticated.
		ar.Post("/auth/login", authH.Login)
		ar.Get("/auth/csrf", authH.CSRF)

		// Session-guarded.
		ar.Group(func(gr chi.Router) {
			gr.Use(auth.RequireSession(deps.Sessions))
			gr.Use(csrfMiddleware(deps.Sessions.Transport()))

			gr.Get("/auth/me", authH.Me)
			gr.Post("/auth/logout", authH.Logout)
			gr.Post("/auth/extend", authH.Extend)

			gr.Post("/users/{id}/logout-all", usersH.LogoutAll)
			gr.Group(func(adm chi.Router) {
				adm.Use(auth.RequireAdmin)
				adm.Post("/users", usersH.Create)
			})

			gr.Get("/teams/root", teamsH.Root)
			gr.Get("/teams/tree", teamsH.Tree)
			gr.Get("/teams/{id}", teamsH.Get)
			gr.Get("/teams/{id}/ancestors", teamsH.Ancestors)
			gr.Get("/teams/{id}/descendants", teamsH.Descendants)
			gr.Get("/teams/{id}/children", teamsH.Children)
			gr.Get("/teams/{id}/path", teamsH.Path)
			gr.Get("/teams/{id}/access", teamsH.Access)
			gr.Get("/teams/{id}/can-access", teamsH.CanAccess)
		})
	})

	return r
}

// healthHandler reports liveness plus database reachability.
func healthHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		database := "connected"
		status := http.StatusOK

		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				database = "unreachable"
				status = http.StatusServiceUnavailable
			}
		}

		body := map[string]string{"status": "ok", "database": database}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		writeJSON(w, status, body)
	}
}

// csrfMiddleware rejects mutating requests whose X-CSRF-Token header does
// not match the CSRF cookie.
func csrfMiddleware(transport *session.CookieTransport) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
				if !transport.ValidateCSRF(r, r.Header.Get("X-CSRF-Token")) {
					writeError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid csrf token")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// metricsMiddleware records request counts and latency per route pattern.
func metricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			m.ObserveHTTPRequest(r.Method, pattern, ww.Status(), time.Since(start).Seconds())
		})
	}
}

// slogRequestLogger is a simple structured logging middleware using slog.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.BytesWritten(),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}
