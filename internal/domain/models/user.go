package models

import (
	"strings"
	"time"

	"github.com/mnemos/mnemos/internal/domain"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MaxEmailLength    = 120
	MinPasswordLength = 8
)

// User is an account that owns conversations, memories and model configs.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewUser(id, username, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           id,
		Username:     strings.TrimSpace(username),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func ValidateUsername(username string) error {
	n := len([]rune(strings.TrimSpace(username)))
	if n < MinUsernameLength || n > MaxUsernameLength {
		return domain.ErrInvalidInput
	}
	return nil
}

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > MaxEmailLength || !strings.Contains(email, "@") {
		return domain.ErrInvalidInput
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.ErrInvalidInput
	}
	return nil
}
