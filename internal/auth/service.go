package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alecgard/cohort/internal/password"
	"github.com/alecgard/cohort/internal/session"
	"github.com/alecgard/cohort/internal/user"
)

// UserStore is the slice of the user store the service depends on.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	Create(ctx context.Context, in user.CreateParams) (*user.User, error)
	SetLastLogin(ctx context.Context, id string, at time.Time) error
}

// SessionCreator persists new sessions. The service never touches the
// cookie transport; binding the session to the client is the HTTP layer's
// job.
type SessionCreator interface {
	Create(ctx context.Context, in session.CreateParams) (*session.Session, error)
}

// Codec performs the credential hashing work. The password package is the
// production implementation; tests substitute a fake to observe the work
// each login path performs.
type Codec interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
	GenerateRandom(length int) (string, error)
}

// stdCodec adapts the password package's functions to Codec.
type stdCodec struct{}

func (stdCodec) Hash(pw string) (string, error)       { return password.Hash(pw) }
func (stdCodec) Verify(pw, encoded string) bool       { return password.Verify(pw, encoded) }
func (stdCodec) GenerateRandom(n int) (string, error) { return password.GenerateRandom(n) }

// LoginMeta carries request attributes recorded on the session row.
type LoginMeta struct {
	UserAgent string
	IPAddress string
}

// Login is the outcome of a successful LogIn call.
type Login struct {
	Session *session.Session
	User    *user.User
}

// Defaults applied to registrations that do not specify a role or team.
type Defaults struct {
	Role   string
	TeamID string
}

// Service implements credential verification and account registration.
type Service struct {
	users           UserStore
	sessions        SessionCreator
	codec           Codec
	defaults        Defaults
	sessionDuration time.Duration
}

// NewService creates an authentication service.
func NewService(users UserStore, sessions SessionCreator, defaults Defaults, sessionDuration time.Duration) *Service {
	if defaults.Role == "" {
		defaults.Role = user.RoleMember
	}
	if sessionDuration <= 0 {
		sessionDuration = session.DefaultDuration
	}
	return &Service{
		users:           users,
		sessions:        sessions,
		codec:           stdCodec{},
		defaults:        defaults,
		sessionDuration: sessionDuration,
	}
}

// LogIn verifies the credentials and, on success, creates a session and
// records the login time. It returns (nil, nil) for any credential failure:
// unknown email, wrong password, or deactivated account. The caller learns
// nothing about which check failed.
//
// When the email has no matching user, a freshly generated random password
// is hashed and discarded so the miss path burns the same hashing work as a
// wrong-password path; response latency does not reveal whether an email is
// registered.
func (s *Service) LogIn(ctx context.Context, email, pw string, meta LoginMeta) (*Login, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.burnHash()
			return nil, nil
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !s.codec.Verify(pw, u.PasswordHash) {
		return nil, nil
	}
	if !u.Active {
		return nil, nil
	}

	now := time.Now()
	if err := s.users.SetLastLogin(ctx, u.ID, now); err != nil {
		// Login still succeeds; the timestamp is informational.
		slog.Error("recording last login", "user_id", u.ID, "error", err)
	}
	u.LastLoginAt = &now

	sess, err := s.sessions.Create(ctx, session.CreateParams{
		UserID:    u.ID,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		Duration:  s.sessionDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &Login{Session: sess, User: u}, nil
}

// burnHash performs one hash of a throwaway random password. Called on the
// unknown-email path so it costs as much as verifying a real digest.
func (s *Service) burnHash() {
	random, err := s.codec.GenerateRandom(password.DefaultGeneratedLength)
	if err != nil {
		slog.Error("generating padding password", "error", err)
		return
	}
	if _, err := s.codec.Hash(random); err != nil {
		slog.Error("hashing padding password", "error", err)
	}
}

// CreateUser validates the registration payload, hashes the password, and
// inserts the user with configured defaults for role and team when the
// payload leaves them empty. user.ErrDuplicateEmail passes through for the
// caller to map onto a conflict response.
func (s *Service) CreateUser(ctx context.Context, in user.RegistrationInput) (*user.User, error) {
	if err := user.ValidateRegistration(in); err != nil {
		return nil, err
	}

	hash, err := s.codec.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	role := in.Role
	if role == "" {
		role = s.defaults.Role
	}
	teamID := in.TeamID
	if teamID == "" {
		teamID = s.defaults.TeamID
	}

	u, err := s.users.Create(ctx, user.CreateParams{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
		TeamID:       teamID,
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}
