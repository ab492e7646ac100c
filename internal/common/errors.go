// Package common defines shared sentinel errors and helpers used across
// BallotKeeper layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Store-level errors.
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("revision conflict")
	ErrStorage       = errors.New("storage error")
	ErrAlreadyExists = errors.New("already exists")

	// Validation errors (malformed documents, snapshots, queries).
	ErrValidation = errors.New("validation error")

	// ErrImmutable is returned for mutations of append-only collections.
	ErrImmutable = fmt.Errorf("%w: collection is append-only", ErrValidation)

	// Service-level errors.
	ErrAlreadyVoted = errors.New("student has already voted")
)

// DocumentError attaches the failing operation and document coordinates to
// one of the sentinel errors above.
type DocumentError struct {
	Op         string
	Collection string
	ID         string
	Err        error
}

func (e *DocumentError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// NewDocumentError wraps err with operation context.
func NewDocumentError(op, collection, id string, err error) error {
	return &DocumentError{Op: op, Collection: collection, ID: id, Err: err}
}

// Validationf builds an ErrValidation-wrapped error.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Storagef wraps an engine failure as ErrStorage, keeping the cause in the chain.
func Storagef(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, fmt.Sprintf(format, args...), err)
}

// Describe renders a user-facing message that tells the error kinds apart.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "Nothing matched: the requested record does not exist."
	case errors.Is(err, ErrConflict):
		return "Your data is stale: the record changed since it was loaded. Reload and retry."
	case errors.Is(err, ErrAlreadyVoted):
		return "This student has already voted; the vote takes precedence."
	case errors.Is(err, ErrAlreadyExists):
		return "A record with this identifier already exists."
	case errors.Is(err, ErrImmutable):
		return "Votes are permanent and cannot be changed or removed."
	case errors.Is(err, ErrValidation):
		return "The data is invalid: " + err.Error()
	case errors.Is(err, ErrStorage):
		return "The storage engine failed: " + err.Error()
	default:
		return "Unexpected error: " + err.Error()
	}
}
