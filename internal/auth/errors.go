package auth

import "errors"

var (
	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrBadCredentials is returned when a login does not match a stored user.
	ErrBadCredentials = errors.New("invalid credentials")

	errMissingSecret = errors.New("auth secret is not configured")
)
