package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecgard/cohort/internal/id"
)

// ErrNotFound indicates no session row exists for the given identifier.
var ErrNotFound = errors.New("session not found")

// PgStore provides database operations for sessions. It deals purely in
// rows; expiry policy and cookie handling belong to the Manager.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a new session store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Create persists a new session row with a freshly generated identifier.
func (s *PgStore) Create(ctx context.Context, in CreateParams) (*Session, error) {
	sessionID, err := id.New("sess")
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	duration := in.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}
	expiresAt := time.Now().Add(duration)

	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshaling session metadata: %w", err)
	}

	var userAgent, ipAddress *string
	if in.UserAgent != "" {
		userAgent = &in.UserAgent
	}
	if in.IPAddress != "" {
		ipAddress = &in.IPAddress
	}

	sess := &Session{Metadata: metadata}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, user_agent, ip_address, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, user_id, expires_at, created_at, updated_at, user_agent, ip_address`,
		sessionID, in.UserID, expiresAt, userAgent, ipAddress, metadataJSON,
	).Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt,
		&sess.UpdatedAt, &sess.UserAgent, &sess.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// GetWithUser returns the session row joined with its user, regardless of
// expiry. Returns ErrNotFound when no row exists.
func (s *PgStore) GetWithUser(ctx context.Context, sessionID string) (*WithUser, error) {
	var (
		sw           WithUser
		metadataJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT s.id, s.user_id, s.expires_at, s.created_at, s.updated_at,
		        s.user_agent, s.ip_address, s.metadata,
		        u.id, u.email, u.first_name, u.last_name, u.role, u.team_id
		 FROM sessions s
		 JOIN users u ON s.user_id = u.id
		 WHERE s.id = $1`, sessionID,
	).Scan(&sw.ID, &sw.Session.UserID, &sw.ExpiresAt, &sw.CreatedAt, &sw.UpdatedAt,
		&sw.UserAgent, &sw.IPAddress, &metadataJSON,
		&sw.User.ID, &sw.User.Email, &sw.User.FirstName, &sw.User.LastName,
		&sw.User.Role, &sw.User.TeamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &sw.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling session metadata: %w", err)
		}
	}
	if sw.Metadata == nil {
		sw.Metadata = map[string]any{}
	}
	return &sw, nil
}

// Delete removes a session by id. Deleting an absent session is a no-op.
func (s *PgStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every session belonging to userID.
func (s *PgStore) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("deleting user sessions: %w", err)
	}
	return nil
}

// Extend recomputes the session's expiry from now and returns the updated
// row, or ErrNotFound when no row exists.
func (s *PgStore) Extend(ctx context.Context, sessionID string, duration time.Duration) (*Session, error) {
	if duration <= 0 {
		duration = DefaultDuration
	}
	expiresAt := time.Now().Add(duration)

	var (
		sess         Session
		metadataJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`UPDATE sessions SET expires_at = $1, updated_at = now()
		 WHERE id = $2
		 RETURNING id, user_id, expires_at, created_at, updated_at, user_agent, ip_address, metadata`,
		expiresAt, sessionID,
	).Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt,
		&sess.UpdatedAt, &sess.UserAgent, &sess.IPAddress, &metadataJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("extending session: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &sess.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling session metadata: %w", err)
		}
	}
	return &sess, nil
}

// CleanupExpired bulk-deletes all sessions past their expiry and returns
// the number removed. Meant for an out-of-band sweep, not the request path.
func (s *PgStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("cleaning up expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
