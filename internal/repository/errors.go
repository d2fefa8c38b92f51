package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation names an ID absent from the collection.
var ErrNotFound = errors.New("reading not found")

// ValidationError reports a missing or invalid required field. Nothing is
// mutated when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// StorageError wraps a failure of the storage adapter. The in-memory
// collection is left in its last consistent state.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
