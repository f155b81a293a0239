package backend

import (
	"errors"
	"fmt"
)

// ErrStorage matches every *StorageError with errors.Is.
var ErrStorage = errors.New("session storage failure")

// StorageError wraps a driver error with the logical operation that failed.
type StorageError struct {
	Op      string
	Dialect Dialect
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session storage %s (%s): %v", e.Op, e.Dialect, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageError(dialect Dialect, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StorageError
	if errors.As(err, &existing) {
		return err
	}
	return &StorageError{Op: op, Dialect: dialect, Err: err}
}
