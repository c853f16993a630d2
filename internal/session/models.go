package session

import "time"

// DefaultDuration is the session lifetime applied when callers pass no
// explicit duration.
const DefaultDuration = 7 * 24 * time.Hour

// Session ties a user to a client for a bounded time. A session past
// ExpiresAt is dead even while the row still exists; reads delete it lazily.
type Session struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	ExpiresAt time.Time      `json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	UserAgent *string        `json:"user_agent,omitempty"`
	IPAddress *string        `json:"ip_address,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// User is the projection of the session's owner embedded in session reads.
// It deliberately omits the password hash.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	TeamID    string `json:"team_id"`
}

// WithUser is a session joined with its owning user.
type WithUser struct {
	Session
	User User `json:"user"`
}

// CreateParams holds the inputs for persisting a new session.
type CreateParams struct {
	UserID    string
	Metadata  map[string]any
	UserAgent string
	IPAddress string
	// Duration of validity; DefaultDuration when zero or negative.
	Duration time.Duration
}
