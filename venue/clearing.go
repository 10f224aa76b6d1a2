package venue

import (
	"context"
	"fmt"

	"github.com/Zappss/ido-contracts/auction"
	"github.com/Zappss/ido-contracts/order"
	"github.com/holiman/uint256"
)

// PrecomputeSum advances the auction's interim clearing state by the given
// number of book positions, accumulating the sell amount of every visited
// order. Splitting the walk over multiple calls amortizes the cost of
// verifying a price on a large book.
//
// The walk fails without mutating the auction if it would run off the end
// of the book or past the clearing point, that is if the accumulated demand
// at the last visited order's price would already cover the full supply.
func (e *Engine) PrecomputeSum(a *auction.Auction, steps uint64) error {
	if a.IsFinished() {
		return ErrAlreadyCleared
	}
	if steps == 0 {
		return &ErrPrecomputeTooFar{
			Steps:  0,
			Reason: "at least one step required",
		}
	}

	_, _, offeredSell := a.Seller()

	cur := a.InterimOrder
	sumBid := a.InterimSumBid.Clone()

	for i := uint64(0); i < steps; i++ {
		next, ok := a.Book.Next(cur)
		if !ok {
			return fmt.Errorf("book of auction %d is corrupt, "+
				"no successor for %v", a.ID, cur)
		}
		if next == order.QueueEnd {
			return &ErrPrecomputeTooFar{
				Steps:  steps,
				Reason: "walk reached the end of the book",
			}
		}

		cur = next

		var overflow bool
		sumBid, overflow = new(uint256.Int).AddOverflow(
			sumBid, cur.SellAmount(),
		)
		if overflow {
			return order.ErrAmountOverflow
		}
	}

	// The precomputed prefix must stop short of the clearing point: the
	// demand at the last visited order's limit price has to still exceed
	// what the accumulated sum can fill.
	_, buyAmount, sellAmount := cur.Decode()
	left := new(uint256.Int).Mul(sumBid, buyAmount)
	right := new(uint256.Int).Mul(offeredSell, sellAmount)
	if !left.Lt(right) {
		return &ErrPrecomputeTooFar{
			Steps:  steps,
			Reason: "walk crossed the clearing point",
		}
	}

	a.InterimOrder = cur
	a.InterimSumBid = sumBid

	log.Debugf("Auction %d: precomputed %d steps, interim sum %v at %v",
		a.ID, steps, sumBid, cur)

	return nil
}

// VerifyPrice checks a candidate uniform clearing price against the book
// and, if it holds, commits the clearing result, collects the auctioneer
// fee and settles the seller's side. The auction is in the finished phase
// afterwards.
//
// The candidate is an order key encoding the proposed price as the
// fraction buy/sell. It either matches a bid resting in the book exactly,
// making that bid the single partially filled order, or it is synthetic and
// the partial fill falls to the seller (demand below supply at the floor
// price) or to nobody (demand matches supply exactly).
func (e *Engine) VerifyPrice(ctx context.Context, a *auction.Auction,
	candidate order.Key) (*ClearingResult, error) {

	if a.IsFinished() {
		return nil, ErrAlreadyCleared
	}

	if !candidate.Valid() {
		return nil, &ErrPriceRejected{
			Candidate: candidate,
			Reason:    "candidate is not a valid order key",
		}
	}

	num, den := candidate.BuyAmount(), candidate.SellAmount()

	sellerID, sellerBuy, offeredSell := a.Seller()

	// Resume the interim walk, accumulating every bid with a strictly
	// better limit price than the candidate.
	cur := a.InterimOrder
	sumBid := a.InterimSumBid.Clone()

	next, ok := a.Book.Next(cur)
	if !ok {
		return nil, fmt.Errorf("book of auction %d is corrupt, no "+
			"successor for %v", a.ID, cur)
	}
	for next != order.QueueEnd && next.SmallerThan(candidate) {
		cur = next

		var overflow bool
		sumBid, overflow = new(uint256.Int).AddOverflow(
			sumBid, cur.SellAmount(),
		)
		if overflow {
			return nil, order.ErrAmountOverflow
		}

		next, ok = a.Book.Next(cur)
		if !ok {
			return nil, fmt.Errorf("book of auction %d is "+
				"corrupt, no successor for %v", a.ID, cur)
		}
	}

	// Convert the accumulated bidding asset into the amount of the
	// offered asset it buys at the candidate price.
	product, overflow := new(uint256.Int).MulOverflow(sumBid, num)
	if overflow {
		return nil, order.ErrAmountOverflow
	}
	sumBuy := new(uint256.Int).Div(product, den)

	result := &ClearingResult{
		SumBidAmount: sumBid,
	}

	switch {
	// The walk stopped exactly on the candidate: a resting bid sets the
	// price and receives the single partial fill.
	case next == candidate:
		if sumBuy.Gt(offeredSell) {
			return nil, &ErrPriceRejected{
				Candidate: candidate,
				Reason: "demand above the clearing price " +
					"already exceeds supply",
			}
		}

		clearingBuy := new(uint256.Int).Sub(offeredSell, sumBuy)

		product, overflow := new(uint256.Int).MulOverflow(
			clearingBuy, den,
		)
		if overflow {
			return nil, order.ErrAmountOverflow
		}
		volume := new(uint256.Int).Div(product, num)
		if volume.Gt(order.MaxAmount) {
			return nil, order.ErrAmountOverflow
		}

		if volume.Gt(candidate.SellAmount()) {
			return nil, &ErrPriceRejected{
				Candidate: candidate,
				Reason: "partial fill exceeds the bid's " +
					"sell amount",
			}
		}

		result.Case = CaseBidPartial
		result.ClearingOrder = candidate
		result.Volume = volume
		result.SumBuyAmount = new(uint256.Int).Add(sumBuy, volume)

	// Synthetic price, demand below supply: only valid at exactly the
	// seller's floor price, with the seller's order partially filled.
	case sumBuy.Lt(offeredSell):
		left := new(uint256.Int).Mul(num, offeredSell)
		right := new(uint256.Int).Mul(sellerBuy, den)
		if !left.Eq(right) {
			return nil, &ErrPriceRejected{
				Candidate: candidate,
				Reason: "demand below supply requires the " +
					"floor price",
			}
		}

		clearingOrder, err := order.NewKey(sellerID, num, den)
		if err != nil {
			return nil, err
		}

		if sumBuy.Gt(order.MaxAmount) {
			return nil, order.ErrAmountOverflow
		}

		result.Case = CaseSellerPartial
		result.ClearingOrder = clearingOrder
		result.Volume = sumBuy.Clone()
		result.SumBuyAmount = sumBuy

	// Synthetic price, demand matches supply exactly: nobody is
	// partially filled. The seller's revenue at the price must still
	// meet their minimum.
	case sumBuy.Eq(offeredSell):
		left := new(uint256.Int).Mul(num, sellerBuy)
		right := new(uint256.Int).Mul(offeredSell, den)
		if left.Gt(right) {
			return nil, &ErrPriceRejected{
				Candidate: candidate,
				Reason: "seller revenue below the floor " +
					"at this price",
			}
		}

		result.Case = CaseExactMatch
		result.ClearingOrder = candidate
		result.Volume = new(uint256.Int)
		result.SumBuyAmount = offeredSell.Clone()

	default:
		return nil, &ErrPriceRejected{
			Candidate: candidate,
			Reason:    "demand at price exceeds supply",
		}
	}

	result.FundingThresholdNotReached =
		result.SumBuyAmount.Lt(a.MinFundingThreshold)

	// The price holds, commit it. Everything below this point only moves
	// funds out of escrow.
	a.ClearingOrder = result.ClearingOrder
	a.VolumeClearingPriceOrder = result.Volume.Clone()
	a.FundingThresholdNotReached = result.FundingThresholdNotReached

	log.Infof("Auction %d cleared: case=%v, order=%v, volume=%v, "+
		"sumBid=%v", a.ID, result.Case, result.ClearingOrder,
		result.Volume, result.SumBidAmount)

	if !result.FundingThresholdNotReached && a.FeeNumerator > 0 {
		if err := e.claimFees(ctx, a, result); err != nil {
			return nil, err
		}
	}

	if err := e.settleSeller(ctx, a, result); err != nil {
		return nil, err
	}

	return result, nil
}
