package model

import "time"

type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

type ActionKind string

const (
	ActionPasswordReset ActionKind = "password_reset"
	ActionVerifyEmail   ActionKind = "verify_email"
)

// ActionToken is a one-time code mailed to the user. Only its hash is stored.
type ActionToken struct {
	TokenHash string
	UserID    string
	Kind      ActionKind
	ExpiresAt time.Time
	UsedAt    *time.Time
}
