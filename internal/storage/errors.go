package storage

import (
	"errors"

	"fattura/internal/core"
)

// StorageError wraps a persistence failure with the operation that hit
// it. Domain errors (core.ErrNotFound, core.ErrInvalidStatus,
// validation failures) pass through unwrapped so callers can match them
// with errors.Is.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrNotFound) ||
		errors.Is(err, core.ErrInvalidStatus) ||
		errors.Is(err, core.ErrInvalidInput) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
