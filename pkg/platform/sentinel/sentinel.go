// Package sentinel holds the store-level facts services translate into
// coded domain errors. Stores return them, possibly wrapped; callers match
// with errors.Is.
package sentinel

import "errors"

var (
	// ErrNotFound: no punishment or session with that key.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a record with the same identity already exists.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState: the record exists but cannot take the operation,
	// such as pardoning a punishment twice.
	ErrInvalidState = errors.New("invalid state")
)
