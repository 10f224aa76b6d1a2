package order

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
)

// Key is the packed representation of a single sell order within an
// auction's order book. The 32 bytes carry three big endian fields: the user
// ID of the bidder in the high 8 bytes, the amount of the offered asset the
// bidder wants to buy in the middle 12 bytes and the amount of the bidding
// asset the bidder is willing to pay in the low 12 bytes.
type Key [32]byte

var (
	// QueueStart is the sentinel key that marks the head of an order
	// book's linked chain. It sorts before every valid order key.
	QueueStart = Key{}

	// QueueEnd is the sentinel key that terminates an order book's linked
	// chain. It sorts after every valid order key.
	QueueEnd = Key{31: 0x01}

	// MaxAmount is the largest amount that fits into one of the two
	// 96 bit amount fields of a key.
	MaxAmount = new(uint256.Int).Rsh(
		new(uint256.Int).SetAllOne(), 160,
	)
)

// NewKey packs the given user ID and amounts into an order key. Amounts that
// don't fit into 96 bits are rejected.
func NewKey(userID uint64, buyAmount, sellAmount *uint256.Int) (Key, error) {
	var key Key

	if buyAmount.Gt(MaxAmount) {
		return key, fmt.Errorf("%w: buy amount %v exceeds 96 bits",
			ErrAmountOverflow, buyAmount)
	}
	if sellAmount.Gt(MaxAmount) {
		return key, fmt.Errorf("%w: sell amount %v exceeds 96 bits",
			ErrAmountOverflow, sellAmount)
	}

	binary.BigEndian.PutUint64(key[0:8], userID)
	writeAmount(key[8:20], buyAmount)
	writeAmount(key[20:32], sellAmount)

	return key, nil
}

// writeAmount writes the low 96 bits of the given amount into the 12 byte
// target slice, big endian.
func writeAmount(target []byte, amount *uint256.Int) {
	b32 := amount.Bytes32()
	copy(target, b32[20:32])
}

// UserID returns the user ID field of the key.
func (k Key) UserID() uint64 {
	return binary.BigEndian.Uint64(k[0:8])
}

// BuyAmount returns the buy amount field of the key, the amount of the
// offered asset the bidder wants.
func (k Key) BuyAmount() *uint256.Int {
	return new(uint256.Int).SetBytes(k[8:20])
}

// SellAmount returns the sell amount field of the key, the amount of the
// bidding asset the bidder pays.
func (k Key) SellAmount() *uint256.Int {
	return new(uint256.Int).SetBytes(k[20:32])
}

// Decode unpacks all three fields of the key.
func (k Key) Decode() (uint64, *uint256.Int, *uint256.Int) {
	return k.UserID(), k.BuyAmount(), k.SellAmount()
}

// IsSentinel returns true if the key is one of the two queue sentinels.
func (k Key) IsSentinel() bool {
	return k == QueueStart || k == QueueEnd
}

// Valid returns true if the key represents a real order, meaning it isn't a
// sentinel and both amounts are strictly positive.
func (k Key) Valid() bool {
	if k.IsSentinel() {
		return false
	}
	return !k.BuyAmount().IsZero() && !k.SellAmount().IsZero()
}

// SmallerThan reports whether k sorts strictly before other in the book's
// total order. Orders are compared by limit price, the most aggressive bid
// (the one paying the most bidding asset per unit of offered asset) first.
// Price ties break to the order with the larger sell amount, then to the
// lower user ID. The comparison cross-multiplies the two 96 bit amount pairs
// so the 192 bit intermediates never truncate.
func (k Key) SmallerThan(other Key) bool {
	switch {
	case k == other:
		return false

	case k == QueueStart:
		return true

	case other == QueueStart:
		return false

	case other == QueueEnd:
		return true

	case k == QueueEnd:
		return false
	}

	left := new(uint256.Int).Mul(k.BuyAmount(), other.SellAmount())
	right := new(uint256.Int).Mul(other.BuyAmount(), k.SellAmount())

	switch {
	case left.Lt(right):
		return true

	case left.Gt(right):
		return false
	}

	// Same limit price, the larger sell amount goes first.
	kSell, otherSell := k.SellAmount(), other.SellAmount()
	switch {
	case kSell.Gt(otherSell):
		return true

	case kSell.Lt(otherSell):
		return false
	}

	return k.UserID() < other.UserID()
}

// String returns a human readable rendering of the key.
func (k Key) String() string {
	switch k {
	case QueueStart:
		return "<queue-start>"
	case QueueEnd:
		return "<queue-end>"
	}

	return fmt.Sprintf("order(user=%d, buy=%v, sell=%v)", k.UserID(),
		k.BuyAmount(), k.SellAmount())
}

// Hex returns the raw hex serialization of the key, used by the data store
// and the admin tooling.
func (k Key) Hex() string {
	return hex.EncodeToString(k[:])
}

// KeyFromHex parses a key from its raw hex serialization.
func KeyFromHex(s string) (Key, error) {
	var key Key
	raw, err := hex.DecodeString(s)
	if err != nil {
		return key, err
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("invalid key length %d", len(raw))
	}
	copy(key[:], raw)
	return key, nil
}
