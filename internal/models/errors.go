package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a required related row is absent.
	ErrNotFound = errors.New("not found")

	// ErrInvariant marks a broken caller contract, such as a set index that
	// does not exist. It is never retried.
	ErrInvariant = errors.New("invariant violation")
)

// StorageError wraps any failure returned by the relational store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorage reports whether err came from the relational store.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
