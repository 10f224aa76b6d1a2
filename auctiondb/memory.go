package auctiondb

import (
	"bytes"
	"context"
	"sync"

	"github.com/Zappss/ido-contracts/account"
	"github.com/Zappss/ido-contracts/auction"
)

// MemoryStore is an in-memory Store used by tests and standalone runs. It
// keeps all records in their serialized form so the exact same codec paths
// are exercised as with a durable backend.
type MemoryStore struct {
	mtx sync.RWMutex

	initialized bool

	auctionCounter uint64
	auctions       map[uint64][]byte
	users          map[uint64]account.Address
	feeParams      []byte
}

// A compile-time assertion that the memory store implements the Store
// interface.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[uint64][]byte),
		users:    make(map[uint64]account.Address),
	}
}

// Init initializes the store.
//
// NOTE: This method is part of the Store interface.
func (s *MemoryStore) Init(_ context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.initialized {
		return ErrAlreadyInitialized
	}
	s.initialized = true

	return nil
}

// checkInit returns an error if the store hasn't been initialized.
//
// NOTE: The lock MUST be held when calling this method.
func (s *MemoryStore) checkInit() error {
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}

// AuctionCounter returns the number of auctions created so far.
//
// NOTE: This method is part of the Store interface.
func (s *MemoryStore) AuctionCounter(_ context.Context) (uint64, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if err := s.checkInit(); err != nil {
		return 0, err
	}

	return s.auctionCounter, nil
}

// StoreAuctionCounter persists the auction counter.
//
// NOTE: This method is part of the Store interface.
func (s *MemoryStore) StoreAuctionCounter(_ context.Context,
	counter uint64) error {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.checkInit(); err != nil {
		return err
	}

	s.auctionCounter = counter
	return nil
}

// StoreAuction persists the full auction record.
//
// NOTE: This method is part of the Store interface.
func (s *MemoryStore) StoreAuction(_ context.Context,
	a *auction.Auction) error {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.checkInit(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := serializeAuction(&buf, a); err != nil {
		return err
	}
	s.auctions[a.ID] = buf.Bytes()

	return nil
}

// Auction fetches a single auction record.
//
// NOTE: This method is part of the Store interface.
func (s *MemoryStore) Auction(_ context.Context,
	id uint64) (*auction.Auction, error) {

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if err := s.checkInit(); err != nil {
		return nil, err
	}

	raw, ok := s.auctions[id]
	if !ok {
		return nil, ErrNoAuction
	}

	return deserializeAuction(bytes.NewReader(raw))
}

// Auctions fetches all auction records.
//
// NOTE: This method is part of the Store interface.
func (s *MemoryStore) Auctions(_ context.Context) ([]*auction.Auction,
	error) {

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if err := s.checkInit(); err != nil {
		return nil, err
	}

	auctions := make([]*auction.Auction, 0, len(s.auctions))
	for _, raw := range s.auctions {
		a, err := deserializeAuction(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, a)
	}

	return auctions, nil
}

// PersistClearing atomically persists a just cleared auction.
//
// NOTE: This method is part of the Store interface.
func (s *MemoryStore) PersistClearing(ctx context.Context,
	a *auction.Auction) error {

	return s.StoreAuction(ctx, a)
}

// StoreUser persists a single user directory entry.
//
// NOTE: This method is part of the Store interface.
func (s *MemoryStore) StoreUser(_ context.Context, id uint64,
	addr account.Address) error {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.checkInit(); err != nil {
		return err
	}

	s.users[id] = addr
	return nil
}

// Users fetches the whole user directory.
//
// NOTE: This method is part of the Store interface.
func (s *MemoryStore) Users(_ context.Context) (map[uint64]account.Address,
	error) {

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if err := s.checkInit(); err != nil {
		return nil, err
	}

	users := make(map[uint64]account.Address, len(s.users))
	for id, addr := range s.users {
		users[id] = addr
	}

	return users, nil
}

// StoreFeeParameters persists the fee schedule.
//
// NOTE: This method is part of the Store interface.
func (s *MemoryStore) StoreFeeParameters(_ context.Context,
	params *FeeParameters) error {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.checkInit(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := serializeFeeParameters(&buf, params); err != nil {
		return err
	}
	s.feeParams = buf.Bytes()

	return nil
}

// FeeParameters fetches the fee schedule.
//
// NOTE: This method is part of the Store interface.
func (s *MemoryStore) FeeParameters(_ context.Context) (*FeeParameters,
	error) {

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if err := s.checkInit(); err != nil {
		return nil, err
	}

	if s.feeParams == nil {
		return &FeeParameters{}, nil
	}

	return deserializeFeeParameters(bytes.NewReader(s.feeParams))
}
