package auction

import (
	"testing"
	"time"

	"github.com/Zappss/ido-contracts/order"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func validParams() *Params {
	return &Params{
		OfferedAsset:         "ATOM-A",
		BiddingAsset:         "ATOM-B",
		OrderCancellationEnd: testStart.Add(time.Hour),
		AuctionEnd:           testStart.Add(2 * time.Hour),
		SellerUserID:         3,
		OfferedSellAmount:    uint256.NewInt(1000),
		MinBuyAmount:         uint256.NewInt(500),
		MinBidSellAmount:     uint256.NewInt(10),
	}
}

// TestNewAuctionValidation tests the parameter checks of the constructor.
func TestNewAuctionValidation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(*Params)
	}{{
		name: "zero supply",
		mutate: func(p *Params) {
			p.OfferedSellAmount = uint256.NewInt(0)
		},
	}, {
		name: "zero min buy",
		mutate: func(p *Params) {
			p.MinBuyAmount = uint256.NewInt(0)
		},
	}, {
		name: "zero min bid sell",
		mutate: func(p *Params) {
			p.MinBidSellAmount = uint256.NewInt(0)
		},
	}, {
		name: "auction end in the past",
		mutate: func(p *Params) {
			p.AuctionEnd = testStart.Add(-time.Hour)
		},
	}, {
		name: "cancellation window outlasts auction",
		mutate: func(p *Params) {
			p.OrderCancellationEnd = p.AuctionEnd.Add(time.Hour)
		},
	}, {
		name: "same asset on both sides",
		mutate: func(p *Params) {
			p.BiddingAsset = p.OfferedAsset
		},
	}, {
		name: "supply beyond 96 bits",
		mutate: func(p *Params) {
			p.OfferedSellAmount = new(uint256.Int).Lsh(
				uint256.NewInt(1), 100,
			)
		},
	}}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			params := validParams()
			tc.mutate(params)

			_, err := NewAuction(1, params, 0, testStart)
			require.Error(t, err)
		})
	}

	a, err := NewAuction(1, validParams(), 7, testStart)
	require.NoError(t, err)
	require.EqualValues(t, 7, a.FeeNumerator)

	seller, minBuy, supply := a.Seller()
	require.EqualValues(t, 3, seller)
	require.Equal(t, uint256.NewInt(500), minBuy)
	require.Equal(t, uint256.NewInt(1000), supply)
}

// TestAuctionPhases tests the time derived phase transitions and their
// guards.
func TestAuctionPhases(t *testing.T) {
	t.Parallel()

	a, err := NewAuction(1, validParams(), 0, testStart)
	require.NoError(t, err)

	// During the cancellation window everything is allowed.
	now := testStart.Add(30 * time.Minute)
	require.Equal(t, PhasePlacement, a.Phase(now))
	require.True(t, a.AllowsPlacement(now))
	require.True(t, a.AllowsCancellation(now))
	require.False(t, a.InSolution(now))

	// After the cancellation window only placement remains.
	now = testStart.Add(90 * time.Minute)
	require.True(t, a.AllowsPlacement(now))
	require.False(t, a.AllowsCancellation(now))

	// After the bidding window the auction awaits its solution.
	now = testStart.Add(3 * time.Hour)
	require.Equal(t, PhaseSolution, a.Phase(now))
	require.False(t, a.AllowsPlacement(now))
	require.True(t, a.InSolution(now))
	require.False(t, a.IsFinished())

	// Setting the clearing order finishes the auction, regardless of
	// time.
	a.ClearingOrder, err = order.NewKey(
		0, uint256.NewInt(1), uint256.NewInt(2),
	)
	require.NoError(t, err)
	require.True(t, a.IsFinished())
	require.Equal(t, PhaseFinished, a.Phase(now))
	require.False(t, a.InSolution(now))
}
