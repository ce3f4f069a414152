package storage

import "errors"

var (
	// ErrNotFound is returned by writes that target a missing row. Reads
	// return (nil, nil) instead.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique constraint or an expected
	// current value does not hold.
	ErrConflict = errors.New("conflicting write")
)
