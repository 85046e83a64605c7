// Package models defines server-side data models persisted by the stores.
package models

import "time"

// Identity is the authentication record of an account. It is the only place
// where the password hash and refresh token live.
type Identity struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string

	// EmailVerificationToken is nil once the email is verified.
	EmailVerificationToken *string
	EmailVerifiedAt        *time.Time

	RefreshToken       string
	RefreshTokenExpiry time.Time

	Role string

	// Version is bumped on every successful replace and guards concurrent
	// credential rotation.
	Version   int64
	CreatedAt time.Time
}

// HasRole reports whether the identity carries role.
func (i *Identity) HasRole(role string) bool {
	return i != nil && i.Role == role
}

// IsVerified reports whether the email verification has completed.
func (i *Identity) IsVerified() bool {
	return i.EmailVerificationToken == nil
}
