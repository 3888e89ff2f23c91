package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session core
var (
	// Token errors
	ErrNoRefreshToken  = errors.New("no refresh token available")
	ErrRefreshRejected = errors.New("refresh rejected")
	ErrAuthExpired     = errors.New("authentication expired")
	ErrMalformedToken  = errors.New("malformed token")
	ErrTokenExpiryMiss = errors.New("token has no expiry claim")

	// Login errors
	ErrMissingInitData      = errors.New("init data is required")
	ErrInvalidTelegramData  = errors.New("invalid telegram login data")
	ErrDebugLoginDisabled   = errors.New("debug login is disabled")
	ErrAlreadyInitialized   = errors.New("session already initialised")
	ErrProfileUnavailable   = errors.New("user profile unavailable")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrUnsupportedBodyValue = errors.New("unsupported request body")
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
