package accounting

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/Zappss/ido-contracts/auction"
	"github.com/Zappss/ido-contracts/ledger"
	"github.com/shopspring/decimal"
)

// Entry is a single line of the settlement report: one asset movement
// between the auction escrow and an external account.
type Entry struct {
	// Timestamp is the time at which the movement was recorded.
	Timestamp time.Time

	// Direction tells whether the funds moved into or out of escrow.
	Direction ledger.Direction

	// Asset is the asset that moved.
	Asset ledger.Asset

	// Account is the external account involved.
	Account string

	// Amount is the moved amount in atoms.
	Amount decimal.Decimal
}

// Report contains the financial data of the auction server in a given
// period of time: every ledger movement plus the clearing summary of every
// auction that finished in the period.
type Report struct {
	// Start is the time from which our report will be created,
	// inclusive.
	Start time.Time

	// End is the time until which our report will be created, exclusive.
	End time.Time

	// Entries contain every asset movement within the period, in order.
	Entries []*Entry

	// ClearingPrices maps every finished auction to its clearing price.
	ClearingPrices map[uint64]decimal.Decimal
}

// Config packages the data sources of a report.
type Config struct {
	// Start is the inclusive start of the reporting period.
	Start time.Time

	// End is the exclusive end of the reporting period.
	End time.Time

	// Journal returns all recorded ledger movements.
	Journal func() []ledger.Entry

	// Auctions returns all auction records.
	Auctions func() ([]*auction.Auction, error)
}

// CreateReport creates an accounting report for a given period of time.
func CreateReport(cfg *Config) (*Report, error) {
	report := &Report{
		Start:          cfg.Start,
		End:            cfg.End,
		ClearingPrices: make(map[uint64]decimal.Decimal),
	}

	for _, movement := range cfg.Journal() {
		if movement.Timestamp.Before(cfg.Start) ||
			!movement.Timestamp.Before(cfg.End) {

			continue
		}

		report.Entries = append(report.Entries, &Entry{
			Timestamp: movement.Timestamp,
			Direction: movement.Direction,
			Asset:     movement.Asset,
			Account:   string(movement.Account),
			Amount: decimal.NewFromBigInt(
				movement.Amount.ToBig(), 0,
			),
		})
	}

	auctions, err := cfg.Auctions()
	if err != nil {
		log.Errorf("Unable to fetch auctions for report: %v", err)
		return nil, err
	}

	for _, a := range auctions {
		if !a.IsFinished() {
			continue
		}

		price, err := clearingPrice(a)
		if err != nil {
			return nil, err
		}
		report.ClearingPrices[a.ID] = price
	}

	return report, nil
}

// clearingPrice renders an auction's uniform clearing price as a decimal
// fraction of offered asset atoms per bidding asset atom.
func clearingPrice(a *auction.Auction) (decimal.Decimal, error) {
	num := decimal.NewFromBigInt(a.ClearingOrder.BuyAmount().ToBig(), 0)
	den := decimal.NewFromBigInt(a.ClearingOrder.SellAmount().ToBig(), 0)
	if den.IsZero() {
		return decimal.Zero, fmt.Errorf("auction %d has a zero "+
			"price denominator", a.ID)
	}

	return num.DivRound(den, 18), nil
}

// CSV renders the report's movement entries in CSV form.
func (r *Report) CSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"timestamp", "direction", "asset", "account", "amount",
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for _, e := range r.Entries {
		record := []string{
			e.Timestamp.UTC().Format(time.RFC3339),
			e.Direction.String(),
			string(e.Asset),
			e.Account,
			e.Amount.String(),
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}

	w.Flush()
	return buf.String(), w.Error()
}
