package domain

import "errors"

// Error kinds surfaced across layer boundaries. Handlers map these to HTTP
// statuses; repositories and adapters wrap them with context via %w.
var (
	// ErrNotFound: entity id unknown.
	ErrNotFound = errors.New("not found")

	// ErrIllegalTransition: event not valid for the entity's current status.
	// The entity is left unchanged.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrVersionConflict: a concurrent mutation won the check-and-set race.
	// Retryable by the caller, never retried server-side.
	ErrVersionConflict = errors.New("version conflict")

	// ErrBackendUnavailable: a backing store timed out or refused the
	// connection. Only surfaced when no fallback path exists.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrValidation: malformed input to a mutation.
	ErrValidation = errors.New("validation failed")
)
