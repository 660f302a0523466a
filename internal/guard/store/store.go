package store

import "errors"

var (
	// ErrNotFound indicates the addressed record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict indicates a guarded mutation matched no row: the caller's
	// view of the record (status or counter value) is stale.
	ErrConflict = errors.New("record state conflict")
)
