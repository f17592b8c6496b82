// Package repository holds the storage errors shared by every store
// implementation.
package repository

import "errors"

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a concurrent writer won: an optimistic
	// version check failed or a uniqueness constraint was violated
	ErrConflict = errors.New("conflict")
)
