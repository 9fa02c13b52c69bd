package service

import "errors"

// Error taxonomy shared by every service. Handlers map these to HTTP status
// codes; raw persistence errors never leave this layer.
var (
	ErrValidation = errors.New("validation") // 400

	// ErrNotFound covers both "absent" and "owned by another store" so a
	// caller cannot probe other tenants' IDs.
	ErrNotFound = errors.New("not found") // 404

	ErrInvalidTransition = errors.New("invalid transition")        // 409
	ErrInsufficientStock = errors.New("insufficient stock")        // 409
	ErrOutOfStock        = errors.New("out of stock")              // 409
	ErrPriceChanged      = errors.New("price changed")             // 409
	ErrAlreadyCaptured   = errors.New("already captured")          // 409
	ErrAlreadyInFlight   = errors.New("payment already in flight") // 409
	ErrExceedsRefundable = errors.New("exceeds refundable amount") // 409

	ErrProvider = errors.New("payment provider") // 502
)
