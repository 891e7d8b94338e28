// Package common defines shared constants and sentinel errors used across
// the service, repository and transport layers. Callers should use errors.Is
// to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Ownership / validation errors, detected before any mutation.
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrSharingDisabled = errors.New("sharing disabled")

	// ErrLinkInvalid is returned for expired, exhausted, revoked or unknown
	// share tokens alike.
	ErrLinkInvalid = errors.New("link invalid")

	// ErrQuotaExceeded is only returned when quota enforcement is switched on.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// Infrastructure errors.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrCorruptHierarchy      = errors.New("corrupt folder hierarchy")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrUnauthorized = errors.New("unauthorized")
)

// Invalid wraps ErrInvalidArgument with a field-specific message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Dependency converts a blob or metadata store failure into
// ErrDependencyUnavailable, keeping the cause for diagnostics. Errors that
// already carry one of the domain sentinels are returned unchanged.
func Dependency(err error) error {
	if err == nil {
		return nil
	}
	if IsDomain(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
}

// IsDomain reports whether err matches any of the sentinels above.
func IsDomain(err error) bool {
	for _, s := range []error{
		ErrNotFound, ErrForbidden, ErrInvalidArgument, ErrSharingDisabled, ErrLinkInvalid,
		ErrQuotaExceeded, ErrDependencyUnavailable, ErrCorruptHierarchy, ErrInvalidToken, ErrUnauthorized,
	} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
