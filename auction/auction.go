package auction

import (
	"errors"
	"fmt"
	"time"

	"github.com/Zappss/ido-contracts/ledger"
	"github.com/Zappss/ido-contracts/order"
	"github.com/holiman/uint256"
)

// Phase describes where in its lifecycle an auction currently is. The phase
// is fully derived from the auction record and the current time, it isn't
// stored anywhere.
type Phase uint8

const (
	// PhasePlacement is the open bidding window. Orders can be placed,
	// and cancelled while the cancellation window is also still open.
	PhasePlacement Phase = iota

	// PhaseSolution starts once the bidding window has closed and lasts
	// until a clearing price has been verified. The book is frozen,
	// precomputation and price verification run in this phase.
	PhaseSolution

	// PhaseFinished starts once the clearing order is set. Participants
	// claim their proceeds in this phase.
	PhaseFinished
)

// String returns a human readable phase name.
func (p Phase) String() string {
	switch p {
	case PhasePlacement:
		return "placement"
	case PhaseSolution:
		return "solution"
	case PhaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// ErrWrongPhase is returned if an operation is attempted outside the phase
// it is restricted to.
type ErrWrongPhase struct {
	// AuctionID is the auction the operation targeted.
	AuctionID uint64

	// Current is the phase the auction is in.
	Current Phase

	// Required is the phase the operation needs.
	Required Phase
}

// Error implements the error interface.
func (e *ErrWrongPhase) Error() string {
	return fmt.Sprintf("auction %d is in phase %v, operation requires "+
		"phase %v", e.AuctionID, e.Current, e.Required)
}

// Params are the seller supplied parameters of a new auction.
type Params struct {
	// OfferedAsset is the asset the seller auctions off.
	OfferedAsset ledger.Asset

	// BiddingAsset is the asset bidders pay with.
	BiddingAsset ledger.Asset

	// OrderCancellationEnd is the point in time after which placed
	// orders can no longer be cancelled.
	OrderCancellationEnd time.Time

	// AuctionEnd is the end of the bidding window.
	AuctionEnd time.Time

	// SellerUserID is the user auctioning off the offered asset.
	SellerUserID uint64

	// OfferedSellAmount is the total amount of the offered asset for
	// sale.
	OfferedSellAmount *uint256.Int

	// MinBuyAmount is the minimum total amount of the bidding asset the
	// seller accepts in return, which fixes the floor price.
	MinBuyAmount *uint256.Int

	// MinBidSellAmount is the smallest sell amount an individual bid
	// must exceed.
	MinBidSellAmount *uint256.Int

	// MinFundingThreshold is the minimum total clearing volume. If the
	// auction clears below it, all funds are returned.
	MinFundingThreshold *uint256.Int
}

// Auction is the full record of a single auction: the static parameters,
// the order book, the interim precomputation state and the final clearing
// result.
type Auction struct {
	// ID is the process wide auction identifier.
	ID uint64

	// OfferedAsset is the asset being sold.
	OfferedAsset ledger.Asset

	// BiddingAsset is the asset bids are paid in.
	BiddingAsset ledger.Asset

	// OrderCancellationEnd is the end of the cancellation window.
	OrderCancellationEnd time.Time

	// AuctionEnd is the end of the bidding window.
	AuctionEnd time.Time

	// InitialOrder encodes the seller's side as an order key: the seller
	// user ID, the minimum buy amount and the offered sell amount. It is
	// zeroed when the seller's side has been settled.
	InitialOrder order.Key

	// MinBidSellAmount is the smallest sell amount an individual bid
	// must exceed.
	MinBidSellAmount *uint256.Int

	// InterimSumBid is the running sell amount sum of the precomputed
	// prefix of the book.
	InterimSumBid *uint256.Int

	// InterimOrder is the last order visited by precomputation, the
	// point the clearing walk resumes from.
	InterimOrder order.Key

	// ClearingOrder is the order encoding the final clearing price.
	// While it is zero the auction hasn't cleared yet.
	ClearingOrder order.Key

	// VolumeClearingPriceOrder is the partially filled volume at the
	// clearing order: the filled sell amount of the partially filled bid
	// if a bid sits exactly at the clearing price, or the sold amount of
	// the offered asset if the seller's side is the partial one.
	VolumeClearingPriceOrder *uint256.Int

	// FeeNumerator is the fee schedule snapshot taken at creation.
	FeeNumerator uint64

	// MinFundingThreshold is the minimum clearing volume.
	MinFundingThreshold *uint256.Int

	// FundingThresholdNotReached is set at settlement if the auction
	// cleared below the funding threshold.
	FundingThresholdNotReached bool

	// Book is the ordered set of open bids.
	Book *order.OrderedSet
}

// NewAuction validates the parameters and creates a fresh auction record in
// the placement phase.
func NewAuction(id uint64, params *Params, feeNumerator uint64,
	now time.Time) (*Auction, error) {

	switch {
	case params.OfferedSellAmount == nil ||
		params.OfferedSellAmount.IsZero():

		return nil, errors.New("offered sell amount must be positive")

	case params.MinBuyAmount == nil || params.MinBuyAmount.IsZero():
		return nil, errors.New("minimum buy amount must be positive")

	case params.MinBidSellAmount == nil ||
		params.MinBidSellAmount.IsZero():

		return nil, errors.New("minimum bidding sell amount must " +
			"be positive")

	case !params.AuctionEnd.After(now):
		return nil, errors.New("auction end must be in the future")

	case params.OrderCancellationEnd.After(params.AuctionEnd):
		return nil, errors.New("cancellation window must not " +
			"outlast the auction")

	case params.OfferedAsset == params.BiddingAsset:
		return nil, errors.New("cannot auction an asset against " +
			"itself")
	}

	initialOrder, err := order.NewKey(
		params.SellerUserID, params.MinBuyAmount,
		params.OfferedSellAmount,
	)
	if err != nil {
		return nil, err
	}

	minFundingThreshold := new(uint256.Int)
	if params.MinFundingThreshold != nil {
		minFundingThreshold.Set(params.MinFundingThreshold)
	}

	return &Auction{
		ID:                       id,
		OfferedAsset:             params.OfferedAsset,
		BiddingAsset:             params.BiddingAsset,
		OrderCancellationEnd:     params.OrderCancellationEnd,
		AuctionEnd:               params.AuctionEnd,
		InitialOrder:             initialOrder,
		MinBidSellAmount:         params.MinBidSellAmount.Clone(),
		InterimSumBid:            new(uint256.Int),
		InterimOrder:             order.QueueStart,
		VolumeClearingPriceOrder: new(uint256.Int),
		FeeNumerator:             feeNumerator,
		MinFundingThreshold:      minFundingThreshold,
		Book:                     order.NewOrderedSet(),
	}, nil
}

// Phase derives the auction's phase at the given time.
func (a *Auction) Phase(now time.Time) Phase {
	switch {
	case a.IsFinished():
		return PhaseFinished

	case now.After(a.AuctionEnd):
		return PhaseSolution

	default:
		return PhasePlacement
	}
}

// AllowsPlacement returns true while new orders are accepted.
func (a *Auction) AllowsPlacement(now time.Time) bool {
	return a.Phase(now) == PhasePlacement
}

// AllowsCancellation returns true while placed orders may still be
// cancelled.
func (a *Auction) AllowsCancellation(now time.Time) bool {
	return a.AllowsPlacement(now) && now.Before(a.OrderCancellationEnd)
}

// InSolution returns true while the auction awaits its clearing price.
func (a *Auction) InSolution(now time.Time) bool {
	return a.Phase(now) == PhaseSolution
}

// IsFinished returns true once the clearing order has been set.
func (a *Auction) IsFinished() bool {
	return a.ClearingOrder != order.QueueStart
}

// Seller returns the decoded seller side: the seller's user ID, the minimum
// buy amount and the offered sell amount.
func (a *Auction) Seller() (uint64, *uint256.Int, *uint256.Int) {
	return a.InitialOrder.Decode()
}
