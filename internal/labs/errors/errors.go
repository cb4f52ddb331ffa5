package errors

import "errors"

var (
	ErrNotFound = errors.New("lab not found")

	ErrInvalidID = errors.New("invalid lab ID format")

	// ErrDuplicate wraps a unique index violation on name or code.
	ErrDuplicate = errors.New("lab with the same name or code already exists")

	ErrEquipmentNotFound = errors.New("equipment not found")

	ErrDuplicateEquipment = errors.New("equipment with this name already exists in the lab")
)
