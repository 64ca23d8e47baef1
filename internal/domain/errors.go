package domain

import "errors"

// Sentinel errors for the domain layer. These provide consistent, checkable
// errors for common business logic failures.
var (
	ErrUserAlreadyExists  = errors.New("user already registered")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrNotFound           = errors.New("requested resource not found")

	// ErrUnavailable marks a backend failure that may succeed on retry, as
	// opposed to ErrNotFound which is a terminal answer.
	ErrUnavailable = errors.New("backend unavailable")

	ErrInvalidRole    = errors.New("invalid role")
	ErrInvalidProduct = errors.New("invalid product")
	ErrInvalidImage   = errors.New("invalid image")
)
