package errors

import "errors"

var (
	ErrNotFound = errors.New("notification not found")

	ErrInvalidID = errors.New("invalid notification ID format")

	// ErrQueueFull is returned when the dispatcher buffer has no room.
	ErrQueueFull = errors.New("notification queue is full")

	ErrDispatcherClosed = errors.New("notification dispatcher is closed")

	ErrNoRecipient = errors.New("recipient has no email address")
)
