package services

import "errors"

var (
	// ErrUnauthenticated means the caller has no valid identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrDuplicateAccount means the email is already registered.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrInvalidCredential is returned for an unknown email or a wrong
	// password alike.
	ErrInvalidCredential = errors.New("invalid credentials")
	// ErrValidation wraps missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound means the record does not exist for the caller.
	ErrNotFound = errors.New("not found")
)
