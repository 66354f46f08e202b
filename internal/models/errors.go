package models

import (
	"github.com/cockroachdb/errors"
)

// Error taxonomy shared by every engine package. Callers match with errors.Is.
var (
	// ErrNotFound is returned by read operations when an entity, relationship
	// or path does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks a malformed candidate. It rejects that single
	// candidate, never the whole observation.
	ErrValidation = errors.New("validation error")

	// ErrConflict marks an observation that contradicts an existing
	// high-confidence relationship. It is recorded, never fatal.
	ErrConflict = errors.New("conflict detected")

	// ErrCapacityExceeded is returned when a transaction would grow the graph
	// past its configured limits. The transaction is rolled back.
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

// Validationf builds an error marked as ErrValidation.
func Validationf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

// NotFoundf builds an error marked as ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

// IsNotFound reports whether err carries the ErrNotFound mark.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
