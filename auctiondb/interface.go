package auctiondb

import (
	"context"
	"errors"

	"github.com/Zappss/ido-contracts/account"
	"github.com/Zappss/ido-contracts/auction"
)

var (
	// ErrNotInitialized is returned when accessing a store before Init
	// was called.
	ErrNotInitialized = errors.New("db not initialized")

	// ErrAlreadyInitialized is returned when Init is called twice.
	ErrAlreadyInitialized = errors.New("db already initialized")

	// ErrDbVersionMismatch is returned when the database was created
	// with a different version of the software.
	ErrDbVersionMismatch = errors.New("wrong db version")

	// ErrNoAuction is returned when a requested auction doesn't exist.
	ErrNoAuction = errors.New("auction not found")
)

// FeeParameters is the persisted form of the process wide fee schedule.
type FeeParameters struct {
	// Numerator is the fee numerator over the fixed denominator.
	Numerator uint64

	// ReceiverUserID is the user fees are paid to.
	ReceiverUserID uint64

	// ReceiverSet is true once a receiver has been configured.
	ReceiverSet bool
}

// Store is the persistence interface of the auction server. It covers the
// complete durable state: the auction counter, the per auction records
// including their order books, the user directory and the fee parameters.
type Store interface {
	// Init initializes the store's versioning state if it hasn't been
	// created before and loads existing state into any internal caches.
	Init(ctx context.Context) error

	// AuctionCounter returns the number of auctions created so far.
	AuctionCounter(ctx context.Context) (uint64, error)

	// StoreAuctionCounter persists the auction counter.
	StoreAuctionCounter(ctx context.Context, counter uint64) error

	// StoreAuction persists the full auction record, order book
	// included, overwriting any previous version.
	StoreAuction(ctx context.Context, a *auction.Auction) error

	// Auction fetches a single auction record.
	Auction(ctx context.Context, id uint64) (*auction.Auction, error)

	// Auctions fetches all auction records.
	Auctions(ctx context.Context) ([]*auction.Auction, error)

	// PersistClearing atomically persists an auction that just cleared:
	// the clearing fields and the final book state commit as one unit.
	PersistClearing(ctx context.Context, a *auction.Auction) error

	// StoreUser persists a single user directory entry.
	StoreUser(ctx context.Context, id uint64,
		addr account.Address) error

	// Users fetches the whole user directory.
	Users(ctx context.Context) (map[uint64]account.Address, error)

	// StoreFeeParameters persists the fee schedule.
	StoreFeeParameters(ctx context.Context, params *FeeParameters) error

	// FeeParameters fetches the fee schedule. A fresh store returns the
	// zero value.
	FeeParameters(ctx context.Context) (*FeeParameters, error)
}
