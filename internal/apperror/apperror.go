package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoChange marks a "nothing to do" outcome: the requested mutation
	// equals the current state (screen name unchanged, no new commit since the
	// last enrollment). It is neither a success nor a failure — callers show
	// the message instead of applying anything.
	ErrNoChange = errors.New("no change")

	// ErrInvariant marks a programming error: a state that correct operation
	// can never reach, such as a terminal match receiving a further transition
	// or a matchup stored with its players out of order. These are logged and
	// aborted, never silently tolerated.
	ErrInvariant = errors.New("invariant violation")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized returns an AppError indicating the caller is not an authorized
// user at all (not on the course roster and not staff). Handlers map it to 401.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// NoChange returns an AppError carrying the human-readable reason why there
// was nothing to do. The message is surfaced verbatim to the caller.
func NoChange(message string) *AppError {
	return &AppError{
		Err:     ErrNoChange,
		Message: message,
	}
}

// Invariant returns an AppError for a state that should be unreachable.
func Invariant(message string) *AppError {
	return &AppError{
		Err:     ErrInvariant,
		Message: message,
	}
}
