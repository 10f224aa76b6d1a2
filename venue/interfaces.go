package venue

import (
	"github.com/Zappss/ido-contracts/account"
	"github.com/Zappss/ido-contracts/ledger"
	"github.com/Zappss/ido-contracts/order"
	"github.com/Zappss/ido-contracts/terms"
	"github.com/holiman/uint256"
)

// ClearingCase is the configuration the price verification arrived at.
type ClearingCase uint8

const (
	// CaseBidPartial means the clearing price sits exactly on one of the
	// bids in the book and that bid is the (possibly zero) partial fill.
	CaseBidPartial ClearingCase = iota

	// CaseSellerPartial means demand didn't cover the full supply at the
	// seller's floor price, so the seller's own order is the partial
	// fill.
	CaseSellerPartial

	// CaseExactMatch means the accumulated demand matches the supply
	// exactly and no order is partially filled.
	CaseExactMatch
)

// String returns a human readable case name.
func (c ClearingCase) String() string {
	switch c {
	case CaseBidPartial:
		return "bid-partial"
	case CaseSellerPartial:
		return "seller-partial"
	case CaseExactMatch:
		return "exact-match"
	default:
		return "unknown"
	}
}

// ClearingResult describes the outcome of a successful price verification.
type ClearingResult struct {
	// Case is the clearing configuration.
	Case ClearingCase

	// ClearingOrder is the order encoding the uniform clearing price.
	ClearingOrder order.Key

	// Volume is the partial fill volume: the filled sell amount of the
	// partially filled bid for CaseBidPartial, the sold amount of the
	// offered asset for CaseSellerPartial, zero for CaseExactMatch.
	Volume *uint256.Int

	// SumBidAmount is the total bidding asset of all fully considered
	// bids.
	SumBidAmount *uint256.Int

	// SumBuyAmount is the final cleared volume the funding threshold is
	// checked against.
	SumBuyAmount *uint256.Int

	// FundingThresholdNotReached is true if the cleared volume stayed
	// below the auction's funding threshold and all funds are returned.
	FundingThresholdNotReached bool
}

// Claim is the settlement outcome of a single claimed order.
type Claim struct {
	// Order is the claimed order.
	Order order.Key

	// OfferedAmount is the amount of the offered asset credited to the
	// bidder.
	OfferedAmount *uint256.Int

	// BiddingAmount is the amount of the bidding asset refunded to the
	// bidder.
	BiddingAmount *uint256.Int
}

// EngineConfig contains all of the required dependencies for the Engine to
// carry out its duties.
type EngineConfig struct {
	// Ledger moves assets between the engine's escrow and the users.
	Ledger ledger.Ledger

	// Directory resolves the user IDs carried in order keys back to
	// external account addresses.
	Directory *account.Directory

	// FeeSchedule supplies the fee receiver at settlement time. The fee
	// numerator itself is the per-auction snapshot.
	FeeSchedule *terms.FeeSchedule
}

// Engine runs the uniform price clearing and the settlement accounting of
// finished auctions.
type Engine struct {
	cfg EngineConfig
}

// NewEngine creates a new clearing engine.
func NewEngine(cfg *EngineConfig) *Engine {
	return &Engine{cfg: *cfg}
}
