package user

import (
	"errors"
	"testing"
)

func TestValidateRegistration(t *testing.T) {
	valid := RegistrationInput{
		Email:     "jane.doe@example.com",
		Password:  "long enough",
		FirstName: "Jane",
		LastName:  "Doe",
	}

	tests := []struct {
		name    string
		modify  func(*RegistrationInput)
		wantErr error
	}{
		{"valid input", func(in *RegistrationInput) {}, nil},
		{"valid with explicit role", func(in *RegistrationInput) { in.Role = RoleAdmin }, nil},
		{"valid with team", func(in *RegistrationInput) { in.TeamID = "team_abc123" }, nil},
		{"empty email", func(in *RegistrationInput) { in.Email = "" }, ErrEmailInvalid},
		{"email without at", func(in *RegistrationInput) { in.Email = "jane.example.com" }, ErrEmailInvalid},
		{"email without domain dot", func(in *RegistrationInput) { in.Email = "jane@example" }, ErrEmailInvalid},
		{"email with two ats", func(in *RegistrationInput) { in.Email = "jane@@example.com" }, ErrEmailInvalid},
		{"email with spaces", func(in *RegistrationInput) { in.Email = "jane doe@example.com" }, ErrEmailInvalid},
		{"email ending in dot", func(in *RegistrationInput) { in.Email = "jane@example." }, ErrEmailInvalid},
		{"short password", func(in *RegistrationInput) { in.Password = "1234567" }, ErrPasswordTooShort},
		{"empty first name", func(in *RegistrationInput) { in.FirstName = "" }, ErrFirstNameRequired},
		{"whitespace first name", func(in *RegistrationInput) { in.FirstName = "   " }, ErrFirstNameRequired},
		{"empty last name", func(in *RegistrationInput) { in.LastName = "" }, ErrLastNameRequired},
		{"unknown role", func(in *RegistrationInput) { in.Role = "owner" }, ErrRoleInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.modify(&in)

			err := ValidateRegistration(in)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRegistration() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
