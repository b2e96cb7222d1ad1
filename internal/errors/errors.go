package errors

import (
	"errors"
	"fmt"
)

// Common error types for the workforce client
var (
	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
	ErrNoRefreshToken   = errors.New("no refresh token")
	ErrInvalidToken     = errors.New("invalid token")

	// Push channel errors
	ErrChannelClosed    = errors.New("push channel closed")
	ErrHandshakeFailed  = errors.New("push handshake failed")
	ErrAttemptsExceeded = errors.New("reconnect attempts exceeded")

	// General errors
	ErrNotFound      = errors.New("not found")
	ErrInvalidConfig = errors.New("invalid configuration")
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
