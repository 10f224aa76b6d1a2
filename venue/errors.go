package venue

import (
	"errors"
	"fmt"

	"github.com/Zappss/ido-contracts/order"
)

var (
	// ErrAlreadyCleared is returned if a clearing price is submitted for
	// an auction that already has one.
	ErrAlreadyCleared = errors.New("auction already cleared")

	// ErrNotCleared is returned if a claim is attempted before the
	// auction has a clearing price.
	ErrNotCleared = errors.New("auction not cleared yet")

	// ErrSellerSettled is returned if the seller side of an auction is
	// settled twice.
	ErrSellerSettled = errors.New("seller side already settled")

	// ErrNoFeeReceiver is returned if fees are due but no fee receiver
	// has ever been configured.
	ErrNoFeeReceiver = errors.New("no fee receiver configured")
)

// ErrPrecomputeTooFar is returned if a precomputation walk either runs off
// the end of the book or walks past the point where the accumulated demand
// already covers the supply.
type ErrPrecomputeTooFar struct {
	// Steps is the number of steps that were requested.
	Steps uint64

	// Reason describes which bound the walk violated.
	Reason string
}

// Error implements the error interface.
func (e *ErrPrecomputeTooFar) Error() string {
	return fmt.Sprintf("precompute of %d steps went too far: %v", e.Steps,
		e.Reason)
}

// ErrPriceRejected is returned if a candidate clearing price fails one of
// the verification checks.
type ErrPriceRejected struct {
	// Candidate is the rejected candidate key.
	Candidate order.Key

	// Reason describes the failed check.
	Reason string
}

// Error implements the error interface.
func (e *ErrPriceRejected) Error() string {
	return fmt.Sprintf("clearing price %v rejected: %v", e.Candidate,
		e.Reason)
}

// ErrAlreadyClaimed is returned if a claim batch contains an order that is
// no longer part of the book.
type ErrAlreadyClaimed struct {
	// Order is the order that was already claimed or never existed.
	Order order.Key
}

// Error implements the error interface.
func (e *ErrAlreadyClaimed) Error() string {
	return fmt.Sprintf("order %v is no longer claimable", e.Order)
}
