package auctiondb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/Zappss/ido-contracts/auction"
	"github.com/Zappss/ido-contracts/ledger"
	"github.com/Zappss/ido-contracts/order"
	"github.com/holiman/uint256"
)

// WriteElements writes each element in the elements slice to the passed
// buffer using WriteElement.
func WriteElements(w *bytes.Buffer, elements ...interface{}) error {
	for _, element := range elements {
		if err := WriteElement(w, element); err != nil {
			return err
		}
	}
	return nil
}

// WriteElement is a one-stop shop to write the big endian representation of
// any element which is to be serialized.
func WriteElement(w *bytes.Buffer, element interface{}) error {
	switch e := element.(type) {
	case bool:
		var b [1]byte
		if e {
			b[0] = 1
		}
		_, err := w.Write(b[:])
		return err

	case uint32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], e)
		_, err := w.Write(b[:])
		return err

	case uint64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], e)
		_, err := w.Write(b[:])
		return err

	case time.Time:
		return WriteElement(w, uint64(e.UnixNano()))

	case order.Key:
		_, err := w.Write(e[:])
		return err

	case *uint256.Int:
		b := e.Bytes32()
		_, err := w.Write(b[:])
		return err

	case ledger.Asset:
		return WriteElement(w, []byte(e))

	case []byte:
		if uint64(len(e)) > math.MaxUint32 {
			return fmt.Errorf("byte slice too long: %d", len(e))
		}
		if err := WriteElement(w, uint32(len(e))); err != nil {
			return err
		}
		_, err := w.Write(e)
		return err

	case map[order.Key]order.Key:
		if err := WriteElement(w, uint32(len(e))); err != nil {
			return err
		}
		for key, succ := range e {
			if err := WriteElements(w, key, succ); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unhandled element type: %T", element)
	}
}

// ReadElements deserializes a variable number of elements from the passed
// reader into the referenced elements.
func ReadElements(r io.Reader, elements ...interface{}) error {
	for _, element := range elements {
		if err := ReadElement(r, element); err != nil {
			return err
		}
	}
	return nil
}

// ReadElement is a one-stop utility function to deserialize any data
// structure.
func ReadElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *bool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = b[0] != 0
		return nil

	case *uint32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint32(b[:])
		return nil

	case *uint64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint64(b[:])
		return nil

	case *time.Time:
		var ns uint64
		if err := ReadElement(r, &ns); err != nil {
			return err
		}
		*e = time.Unix(0, int64(ns)).UTC()
		return nil

	case *order.Key:
		_, err := io.ReadFull(r, e[:])
		return err

	case **uint256.Int:
		var b [32]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = new(uint256.Int).SetBytes(b[:])
		return nil

	case *ledger.Asset:
		var raw []byte
		if err := ReadElement(r, &raw); err != nil {
			return err
		}
		*e = ledger.Asset(raw)
		return nil

	case *[]byte:
		var l uint32
		if err := ReadElement(r, &l); err != nil {
			return err
		}
		raw := make([]byte, l)
		if _, err := io.ReadFull(r, raw); err != nil {
			return err
		}
		*e = raw
		return nil

	case *map[order.Key]order.Key:
		var l uint32
		if err := ReadElement(r, &l); err != nil {
			return err
		}
		m := make(map[order.Key]order.Key, l)
		for i := uint32(0); i < l; i++ {
			var key, succ order.Key
			if err := ReadElements(r, &key, &succ); err != nil {
				return err
			}
			m[key] = succ
		}
		*e = m
		return nil

	default:
		return fmt.Errorf("unhandled element type: %T", element)
	}
}

// serializeAuction flattens the full auction record, order book included,
// into its persisted byte form.
func serializeAuction(w *bytes.Buffer, a *auction.Auction) error {
	return WriteElements(
		w, a.ID, a.OfferedAsset, a.BiddingAsset,
		a.OrderCancellationEnd, a.AuctionEnd, a.InitialOrder,
		a.MinBidSellAmount, a.InterimSumBid, a.InterimOrder,
		a.ClearingOrder, a.VolumeClearingPriceOrder, a.FeeNumerator,
		a.MinFundingThreshold, a.FundingThresholdNotReached,
		a.Book.NextMap(),
	)
}

// deserializeAuction reconstructs an auction record from its persisted byte
// form.
func deserializeAuction(r io.Reader) (*auction.Auction, error) {
	var (
		a        auction.Auction
		bookNext map[order.Key]order.Key
	)
	err := ReadElements(
		r, &a.ID, &a.OfferedAsset, &a.BiddingAsset,
		&a.OrderCancellationEnd, &a.AuctionEnd, &a.InitialOrder,
		&a.MinBidSellAmount, &a.InterimSumBid, &a.InterimOrder,
		&a.ClearingOrder, &a.VolumeClearingPriceOrder,
		&a.FeeNumerator, &a.MinFundingThreshold,
		&a.FundingThresholdNotReached, &bookNext,
	)
	if err != nil {
		return nil, err
	}

	a.Book = order.LoadOrderedSet(bookNext)

	return &a, nil
}

// serializeFeeParameters flattens the fee schedule.
func serializeFeeParameters(w *bytes.Buffer, params *FeeParameters) error {
	return WriteElements(
		w, params.Numerator, params.ReceiverUserID,
		params.ReceiverSet,
	)
}

// deserializeFeeParameters reconstructs the fee schedule.
func deserializeFeeParameters(r io.Reader) (*FeeParameters, error) {
	var params FeeParameters
	err := ReadElements(
		r, &params.Numerator, &params.ReceiverUserID,
		&params.ReceiverSet,
	)
	if err != nil {
		return nil, err
	}
	return &params, nil
}
