package terms

import (
	"fmt"
	"sync"
)

const (
	// FeeDenominator is the fixed denominator of the auctioneer fee
	// fraction.
	FeeDenominator = 1000

	// MaxFeeNumerator caps the fee at 1.5% of the auctioned amount.
	MaxFeeNumerator = 15
)

// ErrFeeTooHigh is returned if a fee update exceeds the allowed maximum.
type ErrFeeTooHigh struct {
	// Numerator is the rejected numerator.
	Numerator uint64
}

// Error implements the error interface.
func (e *ErrFeeTooHigh) Error() string {
	return fmt.Sprintf("fee numerator %d exceeds maximum of %d",
		e.Numerator, MaxFeeNumerator)
}

// FeeSchedule holds the process wide fee parameters. Every auction takes a
// snapshot of the numerator at creation time, so updating the schedule only
// affects auctions initiated afterwards. The receiver on the other hand is
// resolved at settlement time.
type FeeSchedule struct {
	mtx sync.RWMutex

	feeNumerator       uint64
	feeReceiverUserID  uint64
	feeReceiverUpdated bool
}

// NewFeeSchedule creates a schedule with a zero fee.
func NewFeeSchedule() *FeeSchedule {
	return &FeeSchedule{}
}

// LoadFeeSchedule reconstructs a schedule from its persisted parameters.
func LoadFeeSchedule(numerator, receiverUserID uint64) (*FeeSchedule, error) {
	if numerator > MaxFeeNumerator {
		return nil, &ErrFeeTooHigh{Numerator: numerator}
	}

	return &FeeSchedule{
		feeNumerator:       numerator,
		feeReceiverUserID:  receiverUserID,
		feeReceiverUpdated: true,
	}, nil
}

// Update sets the fee numerator and the user receiving the fees.
func (f *FeeSchedule) Update(numerator, receiverUserID uint64) error {
	if numerator > MaxFeeNumerator {
		return &ErrFeeTooHigh{Numerator: numerator}
	}

	f.mtx.Lock()
	defer f.mtx.Unlock()

	f.feeNumerator = numerator
	f.feeReceiverUserID = receiverUserID
	f.feeReceiverUpdated = true

	return nil
}

// FeeNumerator returns the current fee numerator. New auctions snapshot
// this value.
func (f *FeeSchedule) FeeNumerator() uint64 {
	f.mtx.RLock()
	defer f.mtx.RUnlock()

	return f.feeNumerator
}

// FeeReceiver returns the user ID fees are paid to and whether a receiver
// has ever been configured.
func (f *FeeSchedule) FeeReceiver() (uint64, bool) {
	f.mtx.RLock()
	defer f.mtx.RUnlock()

	return f.feeReceiverUserID, f.feeReceiverUpdated
}
