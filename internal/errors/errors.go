package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session client
var (
	// Session errors
	ErrNoSession      = errors.New("no active session")
	ErrNoRefreshToken = errors.New("no refresh token")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")

	// Credential errors
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Storage errors
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// General errors
	ErrDisabled    = errors.New("disabled in this build")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
