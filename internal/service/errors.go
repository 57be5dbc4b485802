package service

import "errors"

// Domain errors surfaced to API handlers.
var (
	// ErrNotFound means neither store has a matching record.
	ErrNotFound = errors.New("not found")
	// ErrCapacityExhausted means the opportunity has no seats left, or a
	// concurrent reservation won the last one.
	ErrCapacityExhausted = errors.New("capacity exhausted")
	// ErrDuplicateRegistration means the user already holds a non-terminal
	// registration on the opportunity.
	ErrDuplicateRegistration = errors.New("already registered")
	// ErrValidation means required fields are missing or malformed.
	ErrValidation = errors.New("validation failed")
	// ErrIllegalTransition means the requested status change violates the
	// registration state machine.
	ErrIllegalTransition = errors.New("illegal status transition")
)
