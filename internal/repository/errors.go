package repository

import "errors"

// Common repository errors
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateKey      = errors.New("duplicate key violation")
	ErrCapacityExhausted = errors.New("no spots available")
)
