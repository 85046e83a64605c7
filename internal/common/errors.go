// Package common defines shared constants, sentinel errors and small random
// helpers used across the server and the CLI client. Callers should use
// errors.Is to match the sentinel values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrVersionConflict = errors.New("version conflict")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrValidation     = errors.New("validation error")

	// ErrDependency marks a failure of the store, the bus or the mail transport.
	ErrDependency = errors.New("dependency failure")

	// ErrConfiguration is returned when a component is built with missing or
	// malformed settings (e.g. a signing key that is not base64).
	ErrConfiguration = errors.New("configuration error")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
