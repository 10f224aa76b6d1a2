package venue

import (
	"context"
	"testing"

	"github.com/Zappss/ido-contracts/order"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// TestClaimGuards tests the claim batch preconditions: the auction must be
// cleared, all orders must belong to one user and every order must still be
// claimable.
func TestClaimGuards(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessCfg{offeredSell: 1000, minBuy: 500})

	bid1 := h.placeBid("u1", 100, 400)
	bid2 := h.placeBid("u2", 120, 400)

	ctx := context.Background()

	// Claiming before the auction cleared fails.
	_, err := h.engine.ClaimFromParticipantOrder(
		ctx, h.auction, []order.Key{bid1},
	)
	require.ErrorIs(t, err, ErrNotCleared)

	_, err = h.engine.VerifyPrice(
		ctx, h.auction, synthPrice(t, 500, 1000),
	)
	require.NoError(t, err)

	// A batch mixing users is rejected as a whole.
	_, err = h.engine.ClaimFromParticipantOrder(
		ctx, h.auction, []order.Key{bid1, bid2},
	)
	require.ErrorIs(t, err, order.ErrNotOwner)
	require.True(t, h.auction.Book.Contains(bid1))

	// Duplicates within a batch are rejected without touching the book.
	_, err = h.engine.ClaimFromParticipantOrder(
		ctx, h.auction, []order.Key{bid1, bid1},
	)
	var claimed *ErrAlreadyClaimed
	require.ErrorAs(t, err, &claimed)
	require.True(t, h.auction.Book.Contains(bid1))

	// A successful claim removes the order for good, the second attempt
	// fails.
	_, err = h.engine.ClaimFromParticipantOrder(
		ctx, h.auction, []order.Key{bid1},
	)
	require.NoError(t, err)

	_, err = h.engine.ClaimFromParticipantOrder(
		ctx, h.auction, []order.Key{bid1},
	)
	require.ErrorAs(t, err, &claimed)
	require.Equal(t, bid1, claimed.Order)

	// An empty batch is a no-op.
	claims, err := h.engine.ClaimFromParticipantOrder(
		ctx, h.auction, nil,
	)
	require.NoError(t, err)
	require.Empty(t, claims)
}

// TestClaimBatchAccounting tests that a multi-order batch of one user sums
// filled and refunded amounts across the clearing boundary.
func TestClaimBatchAccounting(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessCfg{offeredSell: 100, minBuy: 100})

	// Three orders of the same user: one strictly better than the
	// clearing price, one exactly at it, one beyond it.
	better := h.placeBid("u1", 10, 120)
	atPrice := h.placeBid("u1", 50, 60)
	worse := h.placeBid("u1", 90, 100)

	result, err := h.engine.VerifyPrice(
		context.Background(), h.auction, atPrice,
	)
	require.NoError(t, err)
	require.Equal(t, CaseBidPartial, result.Case)
	require.True(t, result.Volume.IsZero())

	claims := h.claim(better, atPrice, worse)
	require.Len(t, claims, 3)

	// better: fully filled, 120*50/60 = 100 offered atoms.
	require.Equal(t, uint256.NewInt(100), claims[0].OfferedAmount)
	require.True(t, claims[0].BiddingAmount.IsZero())

	// atPrice: zero volume partial, full refund.
	require.True(t, claims[1].OfferedAmount.IsZero())
	require.Equal(t, uint256.NewInt(60), claims[1].BiddingAmount)

	// worse: beyond the clearing price, full refund.
	require.True(t, claims[2].OfferedAmount.IsZero())
	require.Equal(t, uint256.NewInt(100), claims[2].BiddingAmount)

	require.Equal(t, uint256.NewInt(100), h.balance(assetOffered, "u1"))
	require.Equal(t, uint256.NewInt(160), h.balance(assetBidding, "u1"))

	require.True(t, h.auction.Book.IsEmpty())
	require.True(t, h.ledger.Escrow(assetOffered).IsZero())
	require.True(t, h.ledger.Escrow(assetBidding).IsZero())
}
