package auth

import "errors"

var (
	// ErrInvalidCredentials indicates an email/password pair that does
	// not match a tenant. Deliberately vague; callers must not reveal
	// which half was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken indicates a token that fails signature or claim
	// validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates a well-formed token past its expiry.
	ErrExpiredToken = errors.New("expired token")

	// ErrSecretRequired is returned when an Authenticator is built
	// without a signing secret.
	ErrSecretRequired = errors.New("signing secret required")
)
