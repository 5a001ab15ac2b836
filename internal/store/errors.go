package store

import "errors"

var (
	// ErrNotFound is returned when a lookup finds no matching row.
	ErrNotFound = errors.New("not found")

	// ErrConstraintViolation is returned when a write violates a schema
	// constraint (e.g. a UNIQUE index).
	ErrConstraintViolation = errors.New("constraint violation")
)
