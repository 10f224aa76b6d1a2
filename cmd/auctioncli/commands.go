package main

import (
	"context"

	"github.com/Zappss/ido-contracts/auction"
	"github.com/Zappss/ido-contracts/order"
	"github.com/urfave/cli"
)

// auctionView is the JSON rendering of an auction record.
type auctionView struct {
	ID                         uint64   `json:"id"`
	OfferedAsset               string   `json:"offered_asset"`
	BiddingAsset               string   `json:"bidding_asset"`
	OrderCancellationEnd       string   `json:"order_cancellation_end"`
	AuctionEnd                 string   `json:"auction_end"`
	InitialOrder               string   `json:"initial_order"`
	MinBidSellAmount           string   `json:"min_bid_sell_amount"`
	InterimSumBid              string   `json:"interim_sum_bid"`
	ClearingOrder              string   `json:"clearing_order"`
	VolumeClearingPriceOrder   string   `json:"volume_clearing_price_order"`
	FeeNumerator               uint64   `json:"fee_numerator"`
	MinFundingThreshold        string   `json:"min_funding_threshold"`
	FundingThresholdNotReached bool     `json:"funding_threshold_not_reached"`
	OpenOrders                 []string `json:"open_orders"`
}

func newAuctionView(a *auction.Auction) *auctionView {
	view := &auctionView{
		ID:                       a.ID,
		OfferedAsset:             string(a.OfferedAsset),
		BiddingAsset:             string(a.BiddingAsset),
		OrderCancellationEnd:     a.OrderCancellationEnd.String(),
		AuctionEnd:               a.AuctionEnd.String(),
		InitialOrder:             a.InitialOrder.String(),
		MinBidSellAmount:         a.MinBidSellAmount.Dec(),
		InterimSumBid:            a.InterimSumBid.Dec(),
		ClearingOrder:            a.ClearingOrder.String(),
		VolumeClearingPriceOrder: a.VolumeClearingPriceOrder.Dec(),
		FeeNumerator:             a.FeeNumerator,
		MinFundingThreshold:      a.MinFundingThreshold.Dec(),

		FundingThresholdNotReached: a.FundingThresholdNotReached,
	}

	a.Book.ForEach(func(key order.Key) bool {
		view.OpenOrders = append(view.OpenOrders, key.String())
		return true
	})

	return view
}

var listAuctionsCommand = cli.Command{
	Name:    "auctions",
	Aliases: []string{"a"},
	Usage:   "list all auctions",
	Action:  listAuctions,
}

func listAuctions(ctx *cli.Context) error {
	store, err := getStore(ctx)
	if err != nil {
		return err
	}

	auctions, err := store.Auctions(context.Background())
	if err != nil {
		return err
	}

	views := make([]*auctionView, 0, len(auctions))
	for _, a := range auctions {
		views = append(views, newAuctionView(a))
	}
	printJSON(views)

	return nil
}

var listUsersCommand = cli.Command{
	Name:    "users",
	Aliases: []string{"u"},
	Usage:   "list the user directory",
	Action:  listUsers,
}

func listUsers(ctx *cli.Context) error {
	store, err := getStore(ctx)
	if err != nil {
		return err
	}

	users, err := store.Users(context.Background())
	if err != nil {
		return err
	}
	printJSON(users)

	return nil
}

var feeParamsCommand = cli.Command{
	Name:   "fees",
	Usage:  "show the current fee parameters",
	Action: feeParams,
}

func feeParams(ctx *cli.Context) error {
	store, err := getStore(ctx)
	if err != nil {
		return err
	}

	params, err := store.FeeParameters(context.Background())
	if err != nil {
		return err
	}
	printJSON(params)

	return nil
}
