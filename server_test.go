package easyauction

import (
	"context"
	"testing"
	"time"

	"github.com/Zappss/ido-contracts/account"
	"github.com/Zappss/ido-contracts/auction"
	"github.com/Zappss/ido-contracts/auctiondb"
	"github.com/Zappss/ido-contracts/ledger"
	"github.com/Zappss/ido-contracts/order"
	"github.com/Zappss/ido-contracts/venue"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

const (
	assetA ledger.Asset = "ATOM-A"
	assetB ledger.Asset = "ATOM-B"
)

// testServer wires a server to a memory store and ledger with a manually
// advanced clock.
type testServer struct {
	*Server

	store  *auctiondb.MemoryStore
	ledger *ledger.MemoryLedger
	now    time.Time
}

// newTestServer starts a fresh server at a fixed point in time.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := DefaultConfig()
	cfg.FeeSetter = "admin"

	store := auctiondb.NewMemoryStore()
	memLedger := ledger.NewMemoryLedger()

	srv := NewServer(cfg, store, memLedger)
	ts := &testServer{
		Server: srv,
		store:  store,
		ledger: memLedger,
		now:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	srv.timeNow = func() time.Time { return ts.now }

	require.NoError(t, store.Init(context.Background()))
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(srv.Stop)

	return ts
}

// advance moves the test clock forward.
func (ts *testServer) advance(d time.Duration) {
	ts.now = ts.now.Add(d)
}

// initiateAuction funds the seller and opens a default auction: supply
// 1000, floor buy 500, cancellation window one hour, bidding window two.
func (ts *testServer) initiateAuction(t *testing.T,
	minFunding uint64) uint64 {

	t.Helper()

	// Fund exactly the required deposit: the supply plus the fee slice
	// under the current fee snapshot.
	feeNumerator := ts.feeSchedule.FeeNumerator()
	ts.ledger.Mint(assetA, "seller", uint256.NewInt(
		1000+1000*feeNumerator/1000,
	))

	id, err := ts.InitiateAuction(
		context.Background(), "seller", &InitiateAuctionRequest{
			OfferedAsset:         assetA,
			BiddingAsset:         assetB,
			OrderCancellationEnd: ts.now.Add(time.Hour),
			AuctionEnd:           ts.now.Add(2 * time.Hour),
			OfferedSellAmount:    uint256.NewInt(1000),
			MinBuyAmount:         uint256.NewInt(500),
			MinBidSellAmount:     uint256.NewInt(10),
			MinFundingThreshold:  uint256.NewInt(minFunding),
		},
	)
	require.NoError(t, err)

	return id
}

// placeBid funds the bidder and places a single order.
func (ts *testServer) placeBid(t *testing.T, auctionID uint64,
	bidder account.Address, buy, sell uint64, hint order.Key) order.Key {

	t.Helper()

	ts.ledger.Mint(assetB, bidder, uint256.NewInt(sell))
	placed, err := ts.PlaceOrders(
		context.Background(), auctionID, bidder, []order.Submission{{
			BuyAmount:  uint256.NewInt(buy),
			SellAmount: uint256.NewInt(sell),
			Hint:       hint,
		}},
	)
	require.NoError(t, err)
	require.Len(t, placed, 1)

	return placed[0]
}

// TestServerAuctionLifecycle drives a full auction through placement,
// cancellation, clearing and claims, including a server restart in the
// middle to prove the persisted state is complete.
func TestServerAuctionLifecycle(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ctx := context.Background()

	auctionID := ts.initiateAuction(t, 0)

	// Seller deposited the full supply, no fee configured yet.
	require.Equal(t, uint256.NewInt(1000), ts.ledger.Escrow(assetA))

	bid1 := ts.placeBid(t, auctionID, "u1", 100, 400, order.QueueStart)

	// A second bid placed with the first one as hint.
	bid2 := ts.placeBid(t, auctionID, "u2", 150, 400, bid1)

	// A bid the bidder changes their mind about: cancelled within the
	// window, refunded in full, and its tombstone keeps working as a
	// hint afterwards.
	bid3 := ts.placeBid(t, auctionID, "u3", 10, 100, order.QueueStart)
	require.NoError(t, ts.CancelOrders(
		ctx, auctionID, "u3", []order.Key{bid3},
	))
	require.Equal(t, uint256.NewInt(100), ts.ledger.Balance(assetB, "u3"))

	rePlaced, err := ts.PlaceOrders(
		ctx, auctionID, "u3", []order.Submission{{
			BuyAmount:  uint256.NewInt(12),
			SellAmount: uint256.NewInt(100),
			Hint:       bid3,
		}},
	)
	require.NoError(t, err)
	require.Len(t, rePlaced, 1)
	require.NoError(t, ts.CancelOrders(
		ctx, auctionID, "u3", rePlaced,
	))

	// Past the cancellation window cancelling fails.
	ts.advance(90 * time.Minute)
	err = ts.CancelOrders(ctx, auctionID, "u1", []order.Key{bid1})
	var wrongPhase *auction.ErrWrongPhase
	require.ErrorAs(t, err, &wrongPhase)

	// Clearing attempts during placement fail as well.
	_, err = ts.VerifyPrice(ctx, auctionID, bid1)
	require.ErrorAs(t, err, &wrongPhase)

	// Close the bidding window and restart the server: everything must
	// come back from the store.
	ts.advance(time.Hour)
	ts.Stop()

	restarted := NewServer(ts.cfg, ts.store, ts.ledger)
	restarted.timeNow = func() time.Time { return ts.now }
	require.NoError(t, restarted.Start(ctx))
	t.Cleanup(restarted.Stop)
	ts.Server = restarted

	// No more placements after the end.
	ts.ledger.Mint(assetB, "u4", uint256.NewInt(100))
	_, err = ts.PlaceOrders(
		ctx, auctionID, "u4", []order.Submission{{
			BuyAmount:  uint256.NewInt(10),
			SellAmount: uint256.NewInt(100),
			Hint:       order.QueueStart,
		}},
	)
	require.ErrorAs(t, err, &wrongPhase)

	// Clear at price 5/4: 800 bidding atoms buy exactly the supply.
	result, err := ts.VerifyPrice(
		ctx, auctionID, mustSynthPrice(t, 5, 4),
	)
	require.NoError(t, err)
	require.Equal(t, venue.CaseExactMatch, result.Case)

	// Seller collected the full 800 bidding atoms.
	require.Equal(t, uint256.NewInt(800),
		ts.ledger.Balance(assetB, "seller"))

	// Further verification attempts bounce: the auction has left the
	// solution phase.
	_, err = ts.VerifyPrice(ctx, auctionID, mustSynthPrice(t, 5, 4))
	require.ErrorAs(t, err, &wrongPhase)

	// Both bidders claim their fills.
	claims, err := ts.ClaimParticipant(
		ctx, auctionID, []order.Key{bid1},
	)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	require.Equal(t, uint256.NewInt(500),
		ts.ledger.Balance(assetA, "u1"))

	_, err = ts.ClaimParticipant(ctx, auctionID, []order.Key{bid2})
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(500),
		ts.ledger.Balance(assetA, "u2"))

	// Claiming twice fails.
	_, err = ts.ClaimParticipant(ctx, auctionID, []order.Key{bid1})
	var alreadyClaimed *venue.ErrAlreadyClaimed
	require.ErrorAs(t, err, &alreadyClaimed)

	// All funds have left escrow.
	require.True(t, ts.ledger.Escrow(assetA).IsZero())
	require.True(t, ts.ledger.Escrow(assetB).IsZero())
}

// TestServerFeeLifecycle tests the fee setter authorization, the snapshot
// semantics and the fee payout.
func TestServerFeeLifecycle(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ctx := context.Background()

	// Only the configured fee setter may update fees.
	err := ts.SetFee(ctx, "mallory", 10, "fees")
	require.ErrorIs(t, err, ErrUnauthorizedFeeChange)

	require.NoError(t, ts.SetFee(ctx, "admin", 10, "fees"))

	// Auctions created from now on carry the snapshot.
	auctionID := ts.initiateAuction(t, 0)

	// 1000 supply + 1% fee slice.
	require.Equal(t, uint256.NewInt(1010), ts.ledger.Escrow(assetA))

	// A later fee change must not affect the running auction.
	require.NoError(t, ts.SetFee(ctx, "admin", 15, "fees"))

	ts.placeBid(t, auctionID, "u1", 100, 400, order.QueueStart)
	ts.advance(3 * time.Hour)

	result, err := ts.VerifyPrice(
		ctx, auctionID, mustSynthPrice(t, 500, 1000),
	)
	require.NoError(t, err)
	require.Equal(t, venue.CaseSellerPartial, result.Case)

	// Snapshot numerator 10: fee base 10, receiver share 10*200/1000=2,
	// the unsold 8 go back to the seller on top of the 800 unsold atoms.
	require.Equal(t, uint256.NewInt(2), ts.ledger.Balance(assetA, "fees"))
	require.Equal(t, uint256.NewInt(808),
		ts.ledger.Balance(assetA, "seller"))
}

// TestServerFundingThreshold tests that an auction clearing below its
// funding threshold returns everybody's funds.
func TestServerFundingThreshold(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ctx := context.Background()

	auctionID := ts.initiateAuction(t, 500)
	bid := ts.placeBid(t, auctionID, "u1", 100, 400, order.QueueStart)
	ts.advance(3 * time.Hour)

	result, err := ts.VerifyPrice(
		ctx, auctionID, mustSynthPrice(t, 500, 1000),
	)
	require.NoError(t, err)
	require.True(t, result.FundingThresholdNotReached)

	// Seller recovered the full supply immediately.
	require.Equal(t, uint256.NewInt(1000),
		ts.ledger.Balance(assetA, "seller"))

	// The bidder recovers the full bid on claim.
	_, err = ts.ClaimParticipant(ctx, auctionID, []order.Key{bid})
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(400),
		ts.ledger.Balance(assetB, "u1"))
	require.True(t, ts.ledger.Balance(assetA, "u1").IsZero())
}

// TestServerPrecompute tests the solution phase guard of the precompute
// call and its interplay with verification through the public API.
func TestServerPrecompute(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ctx := context.Background()

	auctionID := ts.initiateAuction(t, 0)
	ts.placeBid(t, auctionID, "u1", 100, 400, order.QueueStart)
	ts.placeBid(t, auctionID, "u2", 110, 400, order.QueueStart)

	// Too early.
	err := ts.PrecomputeSum(ctx, auctionID, 1)
	var wrongPhase *auction.ErrWrongPhase
	require.ErrorAs(t, err, &wrongPhase)

	ts.advance(3 * time.Hour)
	require.NoError(t, ts.PrecomputeSum(ctx, auctionID, 1))

	result, err := ts.VerifyPrice(
		ctx, auctionID, mustSynthPrice(t, 500, 1000),
	)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(800), result.SumBidAmount)
}

// TestServerEvents tests that the server emits its event stream in order.
func TestServerEvents(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ctx := context.Background()

	sub, err := ts.Subscribe()
	require.NoError(t, err)

	auctionID := ts.initiateAuction(t, 0)
	bid := ts.placeBid(t, auctionID, "u1", 100, 400, order.QueueStart)
	require.NoError(t, ts.CancelOrders(
		ctx, auctionID, "u1", []order.Key{bid},
	))

	// Seller registration, auction, bidder registration, order,
	// cancellation.
	expectEvent := func() interface{} {
		t.Helper()
		select {
		case update := <-sub.Updates():
			return update
		case <-time.After(5 * time.Second):
			t.Fatalf("no event received")
			return nil
		}
	}

	require.IsType(t, &NewUserEvent{}, expectEvent())
	require.IsType(t, &NewAuctionEvent{}, expectEvent())
	require.IsType(t, &NewUserEvent{}, expectEvent())

	newOrder, ok := expectEvent().(*NewSellOrderEvent)
	require.True(t, ok)
	require.Equal(t, bid, newOrder.Order)

	cancelled, ok := expectEvent().(*CancellationSellOrderEvent)
	require.True(t, ok)
	require.Equal(t, bid, cancelled.Order)
}

// mustSynthPrice builds a synthetic candidate key carrying only a price.
func mustSynthPrice(t *testing.T, num, den uint64) order.Key {
	t.Helper()

	key, err := order.NewKey(0, uint256.NewInt(num), uint256.NewInt(den))
	require.NoError(t, err)
	return key
}
