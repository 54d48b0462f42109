package core

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

const (
	// MinPasswordLength is the shortest password accepted at registration.
	MinPasswordLength = 6
	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes = 72
)

// Account is a registered user. Accounts are created once and never mutated.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// PublicUser is the account view safe to return to clients.
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public strips the password hash.
func (a Account) Public() PublicUser {
	return PublicUser{ID: a.ID, Username: a.Username, Email: a.Email, CreatedAt: a.CreatedAt}
}

var (
	ErrEmailTaken         = NewValidationError("Email already registered")
	ErrUsernameTaken      = NewValidationError("Username already taken")
	ErrInvalidCredentials = NewValidationError("Invalid Credentials")
	ErrMissingUsername    = NewValidationError("username is required")
	ErrInvalidEmail       = NewValidationError("a valid email is required")
	ErrWeakPassword       = NewValidationError("password must be at least 6 characters")
	ErrPasswordTooLong    = NewValidationError("password must be at most 72 bytes")

	ErrAccountNotFound = errors.New("User not found")
)

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateRegistration checks already-normalized registration fields.
func ValidateRegistration(username, email, password string) error {
	if username == "" {
		return ErrMissingUsername
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}
