package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Store is the persistence surface the Manager needs. *PgStore implements
// it; tests use an in-memory fake.
type Store interface {
	GetWithUser(ctx context.Context, sessionID string) (*WithUser, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID string) error
	Extend(ctx context.Context, sessionID string, duration time.Duration) (*Session, error)
}

// LifecycleStats receives session lifecycle events the Manager observes.
// *metrics.Metrics satisfies it.
type LifecycleStats interface {
	IncSessionInvalidated(cause string)
}

// Manager composes the session store with the cookie transport: stores hold
// rows, the transport holds the client binding, and the Manager keeps the
// two consistent. All methods are request-scoped.
type Manager struct {
	store     Store
	transport *CookieTransport
	duration  time.Duration
	stats     LifecycleStats
	now       func() time.Time // injectable clock for testing
}

// NewManager creates a manager issuing sessions of the given default
// duration (DefaultDuration when zero or negative).
func NewManager(store Store, transport *CookieTransport, duration time.Duration) *Manager {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Manager{
		store:     store,
		transport: transport,
		duration:  duration,
		now:       time.Now,
	}
}

// Transport exposes the underlying cookie transport for CSRF handling.
func (m *Manager) Transport() *CookieTransport {
	return m.transport
}

// ObserveLifecycle registers a stats sink for lifecycle events the Manager
// itself triggers, such as lazy expiry during Get.
func (m *Manager) ObserveLifecycle(stats LifecycleStats) {
	m.stats = stats
}

// Get resolves the cookie-bound session, joined with its user. It returns
// nil (never an error visible to authentication) when there is nothing
// valid: no cookie, no row (cookie cleared), or an expired row (row deleted
// and cookie cleared — the lazy half of expiry cleanup).
func (m *Manager) Get(w http.ResponseWriter, r *http.Request) (*WithUser, error) {
	sessionID := m.transport.Read(r)
	if sessionID == "" {
		return nil, nil
	}

	sw, err := m.store.GetWithUser(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.transport.Clear(w)
			return nil, nil
		}
		return nil, err
	}

	if m.now().After(sw.ExpiresAt) {
		// Best effort: a concurrent sweep deleting the same row is harmless.
		if err := m.store.Delete(r.Context(), sessionID); err != nil {
			slog.Error("deleting expired session", "session_id", sessionID, "error", err)
		}
		m.transport.Clear(w)
		if m.stats != nil {
			m.stats.IncSessionInvalidated("expired")
		}
		return nil, nil
	}

	return sw, nil
}

// Invalidate deletes the cookie-bound session and clears the binding.
// No-op when no session id is bound.
func (m *Manager) Invalidate(w http.ResponseWriter, r *http.Request) error {
	sessionID := m.transport.Read(r)
	if sessionID == "" {
		return nil
	}

	if err := m.store.Delete(r.Context(), sessionID); err != nil {
		return err
	}
	m.transport.Clear(w)
	return nil
}

// InvalidateAllForUser deletes every session belonging to userID. When the
// caller's own session belongs to that user, the cookie is cleared too, so
// a forced global logout leaves no dangling binding.
func (m *Manager) InvalidateAllForUser(w http.ResponseWriter, r *http.Request, userID string) error {
	ownSession := false
	if sessionID := m.transport.Read(r); sessionID != "" {
		sw, err := m.store.GetWithUser(r.Context(), sessionID)
		if err == nil && sw.Session.UserID == userID {
			ownSession = true
		}
	}

	if err := m.store.DeleteAllForUser(r.Context(), userID); err != nil {
		return err
	}

	if ownSession {
		m.transport.Clear(w)
	}
	return nil
}

// Extend pushes the cookie-bound session's expiry out from now and
// refreshes the cookie to match. Returns nil (cookie cleared) when the
// session no longer exists.
func (m *Manager) Extend(w http.ResponseWriter, r *http.Request, duration time.Duration) (*Session, error) {
	sessionID := m.transport.Read(r)
	if sessionID == "" {
		return nil, nil
	}
	if duration <= 0 {
		duration = m.duration
	}

	sess, err := m.store.Extend(r.Context(), sessionID, duration)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.transport.Clear(w)
			return nil, nil
		}
		return nil, err
	}

	m.transport.Bind(w, sess.ID, sess.ExpiresAt)
	return sess, nil
}
