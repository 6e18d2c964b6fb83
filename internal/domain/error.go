package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Checkout flow errors
	ErrAttemptInFlight   = errors.New("a payment attempt is already in flight")
	ErrAttemptTerminal   = errors.New("payment attempt is already terminal")
	ErrInvalidTransition = errors.New("invalid attempt status transition")
	ErrCheckoutLocked    = errors.New("another checkout for this buyer and lesson is in progress")
	ErrRateLimited       = errors.New("too many checkout requests")
)
