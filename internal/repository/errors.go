package repository

import "errors"

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert collides with an existing key.
	ErrDuplicate = errors.New("duplicate key")
	// ErrStatusMismatch is returned by a status-guarded update when the stored
	// status differs from the expected one.
	ErrStatusMismatch = errors.New("status mismatch")
)
