package auctiondb

import (
	"context"
	"testing"
	"time"

	"github.com/Zappss/ido-contracts/auction"
	"github.com/Zappss/ido-contracts/order"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// testAuction builds an auction record with a populated book, including a
// tombstone, the way it looks mid-flight.
func testAuction(t *testing.T) *auction.Auction {
	t.Helper()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	a, err := auction.NewAuction(7, &auction.Params{
		OfferedAsset:         "ATOM-A",
		BiddingAsset:         "ATOM-B",
		OrderCancellationEnd: now.Add(time.Hour),
		AuctionEnd:           now.Add(2 * time.Hour),
		SellerUserID:         0,
		OfferedSellAmount:    uint256.NewInt(1000),
		MinBuyAmount:         uint256.NewInt(500),
		MinBidSellAmount:     uint256.NewInt(10),
		MinFundingThreshold:  uint256.NewInt(100),
	}, 10, now)
	require.NoError(t, err)

	key1, err := order.NewKey(1, uint256.NewInt(100), uint256.NewInt(400))
	require.NoError(t, err)
	key2, err := order.NewKey(2, uint256.NewInt(100), uint256.NewInt(300))
	require.NoError(t, err)
	key3, err := order.NewKey(3, uint256.NewInt(100), uint256.NewInt(200))
	require.NoError(t, err)

	require.True(t, a.Book.Insert(key1, order.QueueStart))
	require.True(t, a.Book.Insert(key2, order.QueueStart))
	require.True(t, a.Book.Insert(key3, order.QueueStart))
	require.True(t, a.Book.RemoveKeepHistory(key2))

	a.InterimOrder = key1
	a.InterimSumBid = uint256.NewInt(400)

	return a
}

// TestMemoryStoreAuctionRoundTrip tests that a full auction record survives
// the serialization into the store and back, book tombstones included.
func TestMemoryStoreAuctionRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	// The store refuses to work before initialization and refuses to
	// initialize twice.
	_, err := store.Auctions(ctx)
	require.ErrorIs(t, err, ErrNotInitialized)
	require.NoError(t, store.Init(ctx))
	require.ErrorIs(t, store.Init(ctx), ErrAlreadyInitialized)

	a := testAuction(t)
	require.NoError(t, store.StoreAuction(ctx, a))

	restored, err := store.Auction(ctx, a.ID)
	require.NoError(t, err)

	require.Equal(t, a.ID, restored.ID)
	require.Equal(t, a.OfferedAsset, restored.OfferedAsset)
	require.Equal(t, a.BiddingAsset, restored.BiddingAsset)
	require.Equal(t, a.OrderCancellationEnd, restored.OrderCancellationEnd)
	require.Equal(t, a.AuctionEnd, restored.AuctionEnd)
	require.Equal(t, a.InitialOrder, restored.InitialOrder)
	require.Equal(t, a.MinBidSellAmount, restored.MinBidSellAmount)
	require.Equal(t, a.InterimSumBid, restored.InterimSumBid)
	require.Equal(t, a.InterimOrder, restored.InterimOrder)
	require.Equal(t, a.ClearingOrder, restored.ClearingOrder)
	require.Equal(
		t, a.VolumeClearingPriceOrder,
		restored.VolumeClearingPriceOrder,
	)
	require.Equal(t, a.FeeNumerator, restored.FeeNumerator)
	require.Equal(t, a.MinFundingThreshold, restored.MinFundingThreshold)
	require.Equal(t, a.Book.NextMap(), restored.Book.NextMap())
	require.Equal(t, a.Book.Len(), restored.Book.Len())

	_, err = store.Auction(ctx, 999)
	require.ErrorIs(t, err, ErrNoAuction)

	all, err := store.Auctions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

// TestMemoryStoreCounterUsersFees tests the remaining store records.
func TestMemoryStoreCounterUsersFees(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Init(ctx))

	counter, err := store.AuctionCounter(ctx)
	require.NoError(t, err)
	require.Zero(t, counter)

	require.NoError(t, store.StoreAuctionCounter(ctx, 42))
	counter, err = store.AuctionCounter(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 42, counter)

	require.NoError(t, store.StoreUser(ctx, 0, "alice"))
	require.NoError(t, store.StoreUser(ctx, 1, "bob"))
	users, err := store.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.EqualValues(t, "bob", users[1])

	params, err := store.FeeParameters(ctx)
	require.NoError(t, err)
	require.False(t, params.ReceiverSet)

	require.NoError(t, store.StoreFeeParameters(ctx, &FeeParameters{
		Numerator:      10,
		ReceiverUserID: 3,
		ReceiverSet:    true,
	}))
	params, err = store.FeeParameters(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 10, params.Numerator)
	require.EqualValues(t, 3, params.ReceiverUserID)
	require.True(t, params.ReceiverSet)
}
