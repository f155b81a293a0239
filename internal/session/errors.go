package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidID indicates a client-supplied identifier could not be parsed.
	ErrInvalidID = errors.New("session.invalid_id")

	// ErrSerialization indicates a session payload could not be encoded or decoded.
	ErrSerialization = errors.New("session.serialization_failed")

	// ErrInvariantViolation indicates a handle named a session that is not in memory.
	ErrInvariantViolation = errors.New("session.invariant_violation")

	// ErrNotCached indicates an operation that needs a materialized session found none.
	ErrNotCached = errors.New("session.not_cached")
)

// InvariantError is the panic value raised by Handle operations whose session
// has vanished from memory. It signals a materialization bug, not a user error.
type InvariantError struct {
	ID string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("session data unexpectedly missing for %s", e.ID)
}

func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariantViolation
}
