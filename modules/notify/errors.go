package notify

import "errors"

var (
	// ErrPersistence is returned when a notification could not be written.
	// Nothing is delivered for a record that was not persisted.
	ErrPersistence = errors.New("notification persistence failed")
	// ErrNotFound is returned when a notification id is unknown.
	ErrNotFound = errors.New("notification not found")
	// ErrInvalidRequest is returned for an empty message or unknown priority.
	ErrInvalidRequest = errors.New("invalid notification request")
)
