package order

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/lightningnetwork/lnd/subscribe"
)

// Submission is a single bid within a batch placement: the amount of the
// offered asset the bidder wants, the amount of the bidding asset they pay
// and the hint for the book position the resulting order belongs at.
type Submission struct {
	// BuyAmount is the amount of the offered asset the bidder wants.
	BuyAmount *uint256.Int

	// SellAmount is the amount of the bidding asset the bidder pays.
	SellAmount *uint256.Int

	// Hint is the key the submitter believes to be the immediate
	// predecessor of the new order. QueueStart always works.
	Hint Key
}

// NewOrderUpdate is an update sent each time a new order has been added to a
// book.
type NewOrderUpdate struct {
	// AuctionID is the auction the order was placed in.
	AuctionID uint64

	// Order is the order that was added.
	Order Key
}

// CancelledOrderUpdate is an update sent each time an order has been
// cancelled.
type CancelledOrderUpdate struct {
	// AuctionID is the auction the order was cancelled in.
	AuctionID uint64

	// Order is the order that was cancelled.
	Order Key
}

// BookConfig contains all of the required dependencies for the Book to carry
// out its duties.
type BookConfig struct {
	// MaxBatchSize is the maximum number of orders accepted in a single
	// placement or cancellation batch. Zero means no limit.
	MaxBatchSize int
}

// Book validates incoming order submissions against the auction's
// parameters and maintains the per-auction ordered sets. The phase guards
// and asset movements live with the caller, the book is only concerned with
// the order data itself.
type Book struct {
	started sync.Once
	stopped sync.Once

	cfg BookConfig

	ntfnServer *subscribe.Server
}

// NewBook instantiates a new Book backed by the given config.
func NewBook(cfg *BookConfig) *Book {
	return &Book{
		ntfnServer: subscribe.NewServer(),
		cfg:        *cfg,
	}
}

// Start starts all concurrent tasks the book is responsible for.
func (b *Book) Start() error {
	var startErr error
	b.started.Do(func() {
		startErr = b.ntfnServer.Start()
	})
	return startErr
}

// Stop stops all concurrent tasks the book is responsible for.
func (b *Book) Stop() {
	b.stopped.Do(func() {
		_ = b.ntfnServer.Stop()
	})
}

// Subscribe returns a new subscription client for order book updates.
func (b *Book) Subscribe() (*subscribe.Client, error) {
	return b.ntfnServer.Subscribe()
}

// PlaceOrders validates a batch of submissions for the given user and
// inserts them into the set. The whole batch is rejected if any submission
// violates the auction's limits: the limit price of every order must be
// strictly better than the floor encoded in the initial order and every
// sell amount must exceed the auction's minimum. Individual inserts that
// fail because of a duplicate key or an unusable hint are skipped, their
// hints may simply have gone stale in flight.
//
// The successfully placed keys are returned together with the total sell
// amount the caller needs to pull from the bidder.
func (b *Book) PlaceOrders(auctionID uint64, set *OrderedSet,
	initialOrder Key, minBidSellAmount *uint256.Int, userID uint64,
	subs []Submission) ([]Key, *uint256.Int, error) {

	if b.cfg.MaxBatchSize > 0 && len(subs) > b.cfg.MaxBatchSize {
		return nil, nil, &ErrInvalidOrder{
			Reason: "batch exceeds maximum size",
		}
	}

	_, sellerBuy, sellerSell := initialOrder.Decode()

	keys := make([]Key, 0, len(subs))
	for _, sub := range subs {
		key, err := NewKey(userID, sub.BuyAmount, sub.SellAmount)
		if err != nil {
			return nil, nil, err
		}

		if sub.BuyAmount.IsZero() || sub.SellAmount.IsZero() {
			return nil, nil, &ErrInvalidOrder{
				Order:  key,
				Reason: "zero amount",
			}
		}

		// The order's limit price must be strictly better than the
		// floor the seller set: buy/sell < sellerBuy/sellerSell,
		// cross-multiplied to avoid any truncation.
		left := new(uint256.Int).Mul(sub.BuyAmount, sellerSell)
		right := new(uint256.Int).Mul(sellerBuy, sub.SellAmount)
		if !left.Lt(right) {
			return nil, nil, &ErrInvalidOrder{
				Order:  key,
				Reason: "limit price not better than floor",
			}
		}

		if !sub.SellAmount.Gt(minBidSellAmount) {
			return nil, nil, &ErrInvalidOrder{
				Order:  key,
				Reason: "sell amount below auction minimum",
			}
		}

		keys = append(keys, key)
	}

	// The batch as a whole is valid, insert what we can. Hints that have
	// gone stale beyond repair and duplicate submissions are dropped
	// silently, the remaining orders of the batch still stand.
	var (
		placed  = make([]Key, 0, len(keys))
		sumSell = new(uint256.Int)
	)
	for i, key := range keys {
		// Check the running total before touching the set so a
		// failing batch leaves no trace.
		newSum, overflow := new(uint256.Int).AddOverflow(
			sumSell, key.SellAmount(),
		)
		if overflow {
			return nil, nil, ErrAmountOverflow
		}

		if !set.Insert(key, subs[i].Hint) {
			log.Debugf("Auction %d: skipping unplaceable order "+
				"%v", auctionID, key)
			continue
		}

		sumSell = newSum
		placed = append(placed, key)

		if err := b.ntfnServer.SendUpdate(&NewOrderUpdate{
			AuctionID: auctionID,
			Order:     key,
		}); err != nil {
			log.Errorf("Unable to send order update: %v", err)
		}
	}

	log.Debugf("Auction %d: placed %d/%d orders for user %d", auctionID,
		len(placed), len(subs), userID)

	return placed, sumSell, nil
}

// CancelOrders removes the given orders from the set, keeping tombstones so
// in-flight submissions that use the cancelled orders as hints keep
// working. Every key must belong to the calling user, otherwise the whole
// batch is rejected. Keys that are no longer part of the book are skipped.
//
// The cancelled keys are returned together with the total sell amount the
// caller needs to refund to the user.
func (b *Book) CancelOrders(auctionID uint64, set *OrderedSet, userID uint64,
	keys []Key) ([]Key, *uint256.Int, error) {

	if b.cfg.MaxBatchSize > 0 && len(keys) > b.cfg.MaxBatchSize {
		return nil, nil, &ErrInvalidOrder{
			Reason: "batch exceeds maximum size",
		}
	}

	for _, key := range keys {
		if key.UserID() != userID {
			return nil, nil, ErrNotOwner
		}
	}

	var (
		cancelled = make([]Key, 0, len(keys))
		sumSell   = new(uint256.Int)
	)
	for _, key := range keys {
		newSum, overflow := new(uint256.Int).AddOverflow(
			sumSell, key.SellAmount(),
		)
		if overflow {
			return nil, nil, ErrAmountOverflow
		}

		if !set.RemoveKeepHistory(key) {
			log.Debugf("Auction %d: skipping cancellation of "+
				"unknown order %v", auctionID, key)
			continue
		}

		sumSell = newSum
		cancelled = append(cancelled, key)

		if err := b.ntfnServer.SendUpdate(&CancelledOrderUpdate{
			AuctionID: auctionID,
			Order:     key,
		}); err != nil {
			log.Errorf("Unable to send cancel update: %v", err)
		}
	}

	return cancelled, sumSell, nil
}
