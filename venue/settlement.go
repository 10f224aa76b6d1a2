package venue

import (
	"context"
	"fmt"

	"github.com/Zappss/ido-contracts/auction"
	"github.com/Zappss/ido-contracts/order"
	"github.com/Zappss/ido-contracts/terms"
	"github.com/holiman/uint256"
)

// feeBase returns the total fee amount of the auction, the extra slice of
// the offered asset the seller deposited on top of the auctioned amount.
func feeBase(offeredSell *uint256.Int, feeNumerator uint64) (*uint256.Int,
	error) {

	product, overflow := new(uint256.Int).MulOverflow(
		offeredSell, uint256.NewInt(feeNumerator),
	)
	if overflow {
		return nil, order.ErrAmountOverflow
	}

	return product.Div(
		product, uint256.NewInt(terms.FeeDenominator),
	), nil
}

// claimFees distributes the auction's fee deposit: the share matching the
// actually sold amount goes to the fee receiver, the rest flows back to the
// seller. Called only when the funding threshold was met and the auction
// carries a non-zero fee snapshot.
func (e *Engine) claimFees(ctx context.Context, a *auction.Auction,
	result *ClearingResult) error {

	receiverID, ok := e.cfg.FeeSchedule.FeeReceiver()
	if !ok {
		return ErrNoFeeReceiver
	}
	receiverAddr, err := e.cfg.Directory.Resolve(receiverID)
	if err != nil {
		return err
	}

	sellerID, _, offeredSell := a.Seller()
	sellerAddr, err := e.cfg.Directory.Resolve(sellerID)
	if err != nil {
		return err
	}

	base, err := feeBase(offeredSell, a.FeeNumerator)
	if err != nil {
		return err
	}

	// If the seller sold everything, the full fee is earned. On a
	// partial fill of the seller's side only the sold fraction is, the
	// rest returns to the seller.
	if result.Case != CaseSellerPartial {
		return e.cfg.Ledger.Push(
			ctx, a.OfferedAsset, receiverAddr, base,
		)
	}

	sold := result.Volume
	unsold := new(uint256.Int).Sub(offeredSell, sold)

	receiverShare, overflow := new(uint256.Int).MulOverflow(base, sold)
	if overflow {
		return order.ErrAmountOverflow
	}
	receiverShare.Div(receiverShare, offeredSell)

	sellerShare, overflow := new(uint256.Int).MulOverflow(base, unsold)
	if overflow {
		return order.ErrAmountOverflow
	}
	sellerShare.Div(sellerShare, offeredSell)

	err = e.cfg.Ledger.Push(
		ctx, a.OfferedAsset, receiverAddr, receiverShare,
	)
	if err != nil {
		return err
	}

	log.Debugf("Auction %d: fee %v to receiver %d, %v back to seller",
		a.ID, receiverShare, receiverID, sellerShare)

	return e.cfg.Ledger.Push(ctx, a.OfferedAsset, sellerAddr, sellerShare)
}

// settleSeller pays out the seller's side of the clearing and locks the
// auction record by zeroing the initial order.
func (e *Engine) settleSeller(ctx context.Context, a *auction.Auction,
	result *ClearingResult) error {

	if a.InitialOrder == order.QueueStart {
		return ErrSellerSettled
	}

	sellerID, _, offeredSell := a.Seller()
	sellerAddr, err := e.cfg.Directory.Resolve(sellerID)
	if err != nil {
		return err
	}

	a.InitialOrder = order.QueueStart

	// Below the funding threshold the whole deposit comes back,
	// including the fee slice.
	if result.FundingThresholdNotReached {
		refund := offeredSell.Clone()
		if a.FeeNumerator > 0 {
			base, err := feeBase(offeredSell, a.FeeNumerator)
			if err != nil {
				return err
			}
			refund.Add(refund, base)
		}

		log.Infof("Auction %d: funding threshold missed, refunding "+
			"%v to seller %d", a.ID, refund, sellerID)

		return e.cfg.Ledger.Push(
			ctx, a.OfferedAsset, sellerAddr, refund,
		)
	}

	num := a.ClearingOrder.BuyAmount()
	den := a.ClearingOrder.SellAmount()

	// A partially filled seller gets the unsold part of the offered
	// asset back and collects the bidding asset for the sold part.
	if result.Case == CaseSellerPartial {
		sold := result.Volume
		unsold := new(uint256.Int).Sub(offeredSell, sold)

		proceeds, overflow := new(uint256.Int).MulOverflow(sold, den)
		if overflow {
			return order.ErrAmountOverflow
		}
		proceeds.Div(proceeds, num)

		err := e.cfg.Ledger.Push(
			ctx, a.OfferedAsset, sellerAddr, unsold,
		)
		if err != nil {
			return err
		}

		log.Infof("Auction %d: seller %d partially filled, %v "+
			"offered returned, %v bidding collected", a.ID,
			sellerID, unsold, proceeds)

		return e.cfg.Ledger.Push(
			ctx, a.BiddingAsset, sellerAddr, proceeds,
		)
	}

	// Fully sold: the whole supply converts at the clearing price.
	proceeds, overflow := new(uint256.Int).MulOverflow(offeredSell, den)
	if overflow {
		return order.ErrAmountOverflow
	}
	proceeds.Div(proceeds, num)

	log.Infof("Auction %d: seller %d fully filled, %v bidding collected",
		a.ID, sellerID, proceeds)

	return e.cfg.Ledger.Push(ctx, a.BiddingAsset, sellerAddr, proceeds)
}

// ClaimFromParticipantOrder settles a batch of orders that all belong to
// the same user against the finished auction. Fully filled bids convert
// their whole sell amount at the clearing price, the partially filled bid
// converts its filled volume and is refunded the rest, everything beyond
// the clearing price is refunded in full. If the funding threshold wasn't
// reached, every order is refunded in full.
//
// Claimed orders are removed from the book for good, a batch containing an
// already claimed order is rejected as a whole.
func (e *Engine) ClaimFromParticipantOrder(ctx context.Context,
	a *auction.Auction, orders []order.Key) ([]Claim, error) {

	if !a.IsFinished() {
		return nil, ErrNotCleared
	}
	if len(orders) == 0 {
		return nil, nil
	}

	userID := orders[0].UserID()
	for _, o := range orders {
		if o.UserID() != userID {
			return nil, order.ErrNotOwner
		}
	}

	userAddr, err := e.cfg.Directory.Resolve(userID)
	if err != nil {
		return nil, err
	}

	// Validate the whole batch up front so a rejection leaves the book
	// untouched. Duplicates within the batch count as already claimed.
	seen := make(map[order.Key]struct{}, len(orders))
	for _, o := range orders {
		if _, ok := seen[o]; ok {
			return nil, &ErrAlreadyClaimed{Order: o}
		}
		seen[o] = struct{}{}

		if !a.Book.Contains(o) {
			return nil, &ErrAlreadyClaimed{Order: o}
		}
	}

	num := a.ClearingOrder.BuyAmount()
	den := a.ClearingOrder.SellAmount()

	var (
		claims      = make([]Claim, 0, len(orders))
		sumOffered  = new(uint256.Int)
		sumBidding  = new(uint256.Int)
		thresholdNo = a.FundingThresholdNotReached
	)
	for _, o := range orders {
		claim := Claim{
			Order:         o,
			OfferedAmount: new(uint256.Int),
			BiddingAmount: new(uint256.Int),
		}
		sellAmount := o.SellAmount()

		switch {
		// Threshold missed: plain refund.
		case thresholdNo:
			claim.BiddingAmount.Set(sellAmount)

		// The partially filled bid at the clearing price.
		case o == a.ClearingOrder:
			volume := a.VolumeClearingPriceOrder

			product, overflow := new(uint256.Int).MulOverflow(
				volume, num,
			)
			if overflow {
				return nil, order.ErrAmountOverflow
			}
			claim.OfferedAmount.Div(product, den)
			claim.BiddingAmount.Sub(sellAmount, volume)

		// Strictly better than the clearing price: fully filled.
		case o.SmallerThan(a.ClearingOrder):
			product, overflow := new(uint256.Int).MulOverflow(
				sellAmount, num,
			)
			if overflow {
				return nil, order.ErrAmountOverflow
			}
			claim.OfferedAmount.Div(product, den)

		// Beyond the clearing price: fully refunded.
		default:
			claim.BiddingAmount.Set(sellAmount)
		}

		var overflow bool
		sumOffered, overflow = new(uint256.Int).AddOverflow(
			sumOffered, claim.OfferedAmount,
		)
		if overflow {
			return nil, order.ErrAmountOverflow
		}
		sumBidding, overflow = new(uint256.Int).AddOverflow(
			sumBidding, claim.BiddingAmount,
		)
		if overflow {
			return nil, order.ErrAmountOverflow
		}

		claims = append(claims, claim)
	}

	// All checks passed, take the orders out of the book and move the
	// funds.
	for _, o := range orders {
		if !a.Book.Remove(o) {
			return nil, fmt.Errorf("order %v vanished during "+
				"claim", o)
		}
	}

	if err := e.cfg.Ledger.Push(
		ctx, a.OfferedAsset, userAddr, sumOffered,
	); err != nil {
		return nil, err
	}
	if err := e.cfg.Ledger.Push(
		ctx, a.BiddingAsset, userAddr, sumBidding,
	); err != nil {
		return nil, err
	}

	log.Debugf("Auction %d: user %d claimed %d orders, %v offered, %v "+
		"bidding", a.ID, userID, len(claims), sumOffered, sumBidding)

	return claims, nil
}
