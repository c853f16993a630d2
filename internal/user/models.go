package user

import "time"

// Roles a user can hold.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User represents a registered account. Accounts are never physically
// deleted; Active is flipped off instead.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Role         string     `json:"role"` // "admin" or "member"
	TeamID       string     `json:"team_id"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// CreateParams holds the fields required to insert a new user. The password
// arrives already hashed; hashing is the authentication service's job.
type CreateParams struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string
	TeamID       string
}

// UpdateInput holds optional fields for a partial user update.
type UpdateInput struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Role      *string `json:"role,omitempty"`
	TeamID    *string `json:"team_id,omitempty"`
	Active    *bool   `json:"active,omitempty"`
}
