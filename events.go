package easyauction

import (
	"time"

	"github.com/Zappss/ido-contracts/account"
	"github.com/Zappss/ido-contracts/auction"
	"github.com/Zappss/ido-contracts/ledger"
	"github.com/Zappss/ido-contracts/order"
	"github.com/holiman/uint256"
)

// NewAuctionEvent is sent when a new auction has been initiated.
type NewAuctionEvent struct {
	// AuctionID is the identifier of the new auction.
	AuctionID uint64

	// OfferedAsset is the asset being sold.
	OfferedAsset ledger.Asset

	// BiddingAsset is the asset bids are paid in.
	BiddingAsset ledger.Asset

	// SellerUserID is the user auctioning off the offered asset.
	SellerUserID uint64

	// OrderCancellationEnd is the end of the cancellation window.
	OrderCancellationEnd time.Time

	// AuctionEnd is the end of the bidding window.
	AuctionEnd time.Time

	// InitialOrder is the seller's side encoded as an order key.
	InitialOrder order.Key
}

// NewSellOrderEvent is sent for every order accepted into a book.
type NewSellOrderEvent struct {
	// AuctionID is the auction the order was placed in.
	AuctionID uint64

	// Order is the placed order.
	Order order.Key
}

// CancellationSellOrderEvent is sent for every cancelled order.
type CancellationSellOrderEvent struct {
	// AuctionID is the auction the order was cancelled in.
	AuctionID uint64

	// Order is the cancelled order.
	Order order.Key
}

// NewUserEvent is sent when an address is assigned a fresh user ID.
type NewUserEvent struct {
	// UserID is the newly assigned ID.
	UserID uint64

	// Address is the registered address.
	Address account.Address
}

// UserRegistrationEvent is sent when a user explicitly registers.
type UserRegistrationEvent struct {
	// Address is the registered address.
	Address account.Address

	// UserID is the assigned ID.
	UserID uint64
}

// AuctionClearedEvent is sent when a clearing price has been verified.
type AuctionClearedEvent struct {
	// AuctionID is the cleared auction.
	AuctionID uint64

	// PriceNumerator is the buy side of the clearing price fraction.
	PriceNumerator *uint256.Int

	// PriceDenominator is the sell side of the clearing price fraction.
	PriceDenominator *uint256.Int

	// ClearingOrder is the full clearing order key.
	ClearingOrder order.Key
}

// ClaimedFromOrderEvent is sent for every settled order of a claim batch.
type ClaimedFromOrderEvent struct {
	// AuctionID is the auction the order was claimed from.
	AuctionID uint64

	// Order is the settled order.
	Order order.Key

	// OfferedAmount is the amount of the offered asset paid out.
	OfferedAmount *uint256.Int

	// BiddingAmount is the amount of the bidding asset refunded.
	BiddingAmount *uint256.Int
}

// AuctionPhaseEvent is sent when an auction's derived phase changes: by the
// phase watcher once the bidding window has closed, and by the server when
// a clearing price is verified. The end of the cancellation window doesn't
// change the phase and sends no event.
type AuctionPhaseEvent struct {
	// AuctionID is the auction that changed phase.
	AuctionID uint64

	// Phase is the phase the auction moved into.
	Phase auction.Phase
}
