package user

import (
	"errors"
	"strings"
)

// Validation errors for registration input.
var (
	ErrEmailInvalid      = errors.New("a valid email address is required")
	ErrPasswordTooShort  = errors.New("password must be at least 8 characters")
	ErrFirstNameRequired = errors.New("first name is required")
	ErrLastNameRequired  = errors.New("last name is required")
	ErrRoleInvalid       = errors.New("role must be admin or member")
)

// minPasswordLength matches the registration form's requirement.
const minPasswordLength = 8

// RegistrationInput is the pre-hash registration payload validated before a
// user row is created.
type RegistrationInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role,omitempty"`
	TeamID    string `json:"team_id,omitempty"`
}

// ValidateRegistration checks a registration payload. Role and TeamID may be
// empty; the authentication service fills in configured defaults.
func ValidateRegistration(in RegistrationInput) error {
	if !validEmail(in.Email) {
		return ErrEmailInvalid
	}
	if len(in.Password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return ErrFirstNameRequired
	}
	if strings.TrimSpace(in.LastName) == "" {
		return ErrLastNameRequired
	}
	if in.Role != "" && in.Role != RoleAdmin && in.Role != RoleMember {
		return ErrRoleInvalid
	}
	return nil
}

// validEmail applies a cheap structural check: one @, non-empty local part,
// and a domain containing a dot. Real validation is the verification mail's
// job, which this service does not send.
func validEmail(s string) bool {
	at := strings.Index(s, "@")
	if at < 1 || at != strings.LastIndex(s, "@") {
		return false
	}
	domain := s[at+1:]
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1 && !strings.ContainsAny(s, " \t\n")
}
