package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Zappss/ido-contracts/account"
	"github.com/holiman/uint256"
)

// Asset is an opaque asset identifier. The auction engine never interprets
// it, it only tells the ledger which balance to move.
type Asset string

// Direction describes which way an entry moved funds, seen from the
// engine's escrow.
type Direction uint8

const (
	// DirectionPull means funds moved from a user into escrow.
	DirectionPull Direction = iota

	// DirectionPush means funds moved from escrow to a user.
	DirectionPush
)

// String returns a human readable direction.
func (d Direction) String() string {
	switch d {
	case DirectionPull:
		return "pull"
	case DirectionPush:
		return "push"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Entry is a single recorded asset movement.
type Entry struct {
	// Timestamp is when the movement was recorded.
	Timestamp time.Time

	// Direction is which way the funds moved.
	Direction Direction

	// Asset is the asset that moved.
	Asset Asset

	// Account is the external account on the user side of the movement.
	Account account.Address

	// Amount is the number of atoms that moved.
	Amount *uint256.Int
}

// Ledger is the external custody collaborator. The engine calls Pull when
// it takes funds into escrow during auction initiation and order placement,
// and Push when it credits funds back out during settlement. Both calls are
// assumed to be atomic with the operation that triggers them, a failure
// aborts the whole operation.
type Ledger interface {
	// Pull moves the given amount of the asset from the account into
	// escrow.
	Pull(ctx context.Context, asset Asset, from account.Address,
		amount *uint256.Int) error

	// Push credits the given amount of the asset from escrow to the
	// account.
	Push(ctx context.Context, asset Asset, to account.Address,
		amount *uint256.Int) error
}

// ErrInsufficientFunds is returned by the memory ledger if a pull exceeds
// the account's balance.
type ErrInsufficientFunds struct {
	// Asset is the asset the pull was attempted in.
	Asset Asset

	// Account is the account that came up short.
	Account account.Address

	// Need is the amount the pull asked for.
	Need *uint256.Int

	// Have is the balance the account actually holds.
	Have *uint256.Int
}

// Error implements the error interface.
func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient %v funds for %v: need %v, have %v",
		e.Asset, e.Account, e.Need, e.Have)
}

// MemoryLedger is an in-memory Ledger used by tests and standalone runs. It
// tracks per account balances plus the engine's escrow and records a journal
// of every movement for the accounting report.
type MemoryLedger struct {
	mtx sync.Mutex

	balances map[Asset]map[account.Address]*uint256.Int
	escrow   map[Asset]*uint256.Int
	journal  []Entry

	timeNow func() time.Time
}

// A compile-time assertion that the memory ledger implements the Ledger
// interface.
var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[Asset]map[account.Address]*uint256.Int),
		escrow:   make(map[Asset]*uint256.Int),
		timeNow:  time.Now,
	}
}

// SetClock overrides the time source used to stamp journal entries. Tests
// use this to pin the reporting period.
func (m *MemoryLedger) SetClock(timeNow func() time.Time) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.timeNow = timeNow
}

// Mint credits the given amount to an account out of thin air. Test setup
// helper.
func (m *MemoryLedger) Mint(asset Asset, to account.Address,
	amount *uint256.Int) {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	bal := m.balance(asset, to)
	bal.Add(bal, amount)
}

// balance returns the mutable balance cell of an account.
//
// NOTE: The lock MUST be held when calling this method.
func (m *MemoryLedger) balance(asset Asset,
	addr account.Address) *uint256.Int {

	assetBalances, ok := m.balances[asset]
	if !ok {
		assetBalances = make(map[account.Address]*uint256.Int)
		m.balances[asset] = assetBalances
	}

	bal, ok := assetBalances[addr]
	if !ok {
		bal = new(uint256.Int)
		assetBalances[addr] = bal
	}

	return bal
}

// escrowBalance returns the mutable escrow cell of an asset.
//
// NOTE: The lock MUST be held when calling this method.
func (m *MemoryLedger) escrowBalance(asset Asset) *uint256.Int {
	bal, ok := m.escrow[asset]
	if !ok {
		bal = new(uint256.Int)
		m.escrow[asset] = bal
	}
	return bal
}

// Pull moves funds from the account into escrow.
//
// NOTE: This method is part of the Ledger interface.
func (m *MemoryLedger) Pull(_ context.Context, asset Asset,
	from account.Address, amount *uint256.Int) error {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	bal := m.balance(asset, from)
	if bal.Lt(amount) {
		return &ErrInsufficientFunds{
			Asset:   asset,
			Account: from,
			Need:    amount.Clone(),
			Have:    bal.Clone(),
		}
	}

	bal.Sub(bal, amount)
	esc := m.escrowBalance(asset)
	esc.Add(esc, amount)

	m.journal = append(m.journal, Entry{
		Timestamp: m.timeNow(),
		Direction: DirectionPull,
		Asset:     asset,
		Account:   from,
		Amount:    amount.Clone(),
	})

	return nil
}

// Push credits funds from escrow to the account.
//
// NOTE: This method is part of the Ledger interface.
func (m *MemoryLedger) Push(_ context.Context, asset Asset,
	to account.Address, amount *uint256.Int) error {

	if amount.IsZero() {
		return nil
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	esc := m.escrowBalance(asset)
	if esc.Lt(amount) {
		return &ErrInsufficientFunds{
			Asset:   asset,
			Account: "escrow",
			Need:    amount.Clone(),
			Have:    esc.Clone(),
		}
	}

	esc.Sub(esc, amount)
	bal := m.balance(asset, to)
	bal.Add(bal, amount)

	m.journal = append(m.journal, Entry{
		Timestamp: m.timeNow(),
		Direction: DirectionPush,
		Asset:     asset,
		Account:   to,
		Amount:    amount.Clone(),
	})

	return nil
}

// Balance returns a copy of the account's balance in the given asset.
func (m *MemoryLedger) Balance(asset Asset,
	addr account.Address) *uint256.Int {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.balance(asset, addr).Clone()
}

// Escrow returns a copy of the escrow balance of the given asset.
func (m *MemoryLedger) Escrow(asset Asset) *uint256.Int {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.escrowBalance(asset).Clone()
}

// Journal returns a copy of all recorded movements in order.
func (m *MemoryLedger) Journal() []Entry {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	journal := make([]Entry, len(m.journal))
	copy(journal, m.journal)
	return journal
}
