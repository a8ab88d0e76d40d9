package services

import (
	"errors"
	"fmt"

	"github.com/fittrack/apiserver/internal/store"
)

var (
	// ErrValidation marks malformed identifiers or missing required fields.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a write that collides with an existing record.
	ErrConflict = errors.New("conflict")
	// ErrAuthentication marks a missing, malformed or expired credential.
	ErrAuthentication = errors.New("authentication failed")
	// ErrAuthorization marks an authenticated caller lacking permission.
	ErrAuthorization = errors.New("not authorized")
	// ErrUpstreamUnavailable marks a failed external catalog lookup.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrPersistence marks an unexpected storage failure.
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError describes which input was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is reports ErrValidation so callers can match on the sentinel.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// notFound wraps ErrNotFound with the entity kind and id.
func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// persistence wraps a storage error, translating the store's sentinels.
func persistence(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrPersistence, err)
	}
}
