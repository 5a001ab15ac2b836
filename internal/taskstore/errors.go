package taskstore

import "errors"

var (
	// ErrNotFound is returned when a control operation targets an unknown task ID.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned when a control operation is not valid
	// from the task's current state.
	ErrInvalidTransition = errors.New("operation not valid from current task state")
)
