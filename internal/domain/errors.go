package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidIntent         = errors.New("invalid payment intent")
	ErrInvalidAmount         = errors.New("amount must be non-zero")
	ErrInvalidCurrency       = errors.New("currency must be a 3-character code")
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")
	ErrPayloadConflict       = errors.New("idempotency key reused with a different payload")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrGatewayUnavailable    = errors.New("gateway unavailable")
	ErrGatewayRejected       = errors.New("gateway rejected payment")
)
