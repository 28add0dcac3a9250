package domain

import "errors"

// Domain errors
var (
	ErrWheelNotFound       = errors.New("wheel not found")
	ErrWheelFull           = errors.New("wheel is full")
	ErrEmptyName           = errors.New("name cannot be empty")
	ErrNameTooLong         = errors.New("name is too long")
	ErrDuplicateName       = errors.New("a participant with this name already exists")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrInvalidIndex        = errors.New("participant index out of range")
	ErrSpinInProgress      = errors.New("participants cannot change while the wheel is spinning")
	ErrSpinUnavailable     = errors.New("spin is not available")
	ErrInvalidPhase        = errors.New("invalid action for current phase")
)
