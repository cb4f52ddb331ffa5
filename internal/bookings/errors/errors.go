package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStatusChanged is returned when a conditional status update finds the
	// booking no longer in the expected status.
	ErrStatusChanged = errors.New("booking status changed concurrently")
)
