package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Slot lifecycle errors
	ErrSlotBusy     = errors.New("slot is already claimed or completed")
	ErrSlotTerminal = errors.New("slot permanently failed; operator intervention required")
)
