package order

import (
	"errors"
	"fmt"
)

var (
	// ErrAmountOverflow is returned if an amount doesn't fit into the
	// 96 bit amount field of an order key.
	ErrAmountOverflow = errors.New("amount overflows 96 bits")

	// ErrNotOwner is returned if a batch operation touches an order that
	// belongs to a different user than the caller.
	ErrNotOwner = errors.New("order belongs to another user")
)

// ErrInvalidOrder is returned when a submitted order fails validation
// against the auction parameters.
type ErrInvalidOrder struct {
	// Order is the offending order key.
	Order Key

	// Reason describes which validation failed.
	Reason string
}

// Error implements the error interface.
func (e *ErrInvalidOrder) Error() string {
	return fmt.Sprintf("invalid order %v: %v", e.Order, e.Reason)
}
