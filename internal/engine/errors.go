package engine

import (
	"errors"
	"fmt"
)

// PersistenceError marks a local durable-store failure.
//
// This is the one genuinely fatal category for the engine: a store that
// cannot be written undermines the at-most-once/eventually-delivered
// guarantee. It is surfaced loudly (store error state, non-nil returns)
// rather than swallowed like per-scan denials or transport failures.
type PersistenceError struct {
	// Op names the failing store operation ("enqueue pending", "append log", ...).
	Op string

	// Err is the underlying store error.
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps a store failure with its operation name.
func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// IsPersistenceError returns true if the error is a durable-store failure.
// Uses errors.As to handle wrapped errors.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
