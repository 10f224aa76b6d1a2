package auctiondb

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Zappss/ido-contracts/account"
	"github.com/Zappss/ido-contracts/auction"
	clientv3 "go.etcd.io/etcd/client/v3"
	conc "go.etcd.io/etcd/client/v3/concurrency"
)

const (
	// currentDbVersion is the version of the persisted data layout this
	// build reads and writes.
	currentDbVersion = uint32(0)

	// etcdTimeout is the deadline applied to individual etcd requests.
	etcdTimeout = 10 * time.Second
)

var (
	// topLevelDir is the top level directory that we'll use to store all
	// the auction data.
	topLevelDir = "easyauction/db"

	// versionPrefix is the key prefix that we'll use to store the
	// current version of the auction data for the target network.
	versionPrefix = "version"

	// auctionCounterPrefix is the key under which the auction counter
	// lives.
	auctionCounterPrefix = "auctionCounter"

	// auctionPrefix is the key prefix of the per auction records.
	auctionPrefix = "auction"

	// userPrefix is the key prefix of the user directory entries.
	userPrefix = "user"

	// feeParamsPrefix is the key under which the fee parameters live.
	feeParamsPrefix = "feeParams"

	// keyDelimiter is the special token that we'll use to delimit
	// entries in a key's path.
	keyDelimiter = "/"

	// stmDefaultIsolation is the isolation level we use for STM
	// transactions, the strictest the concurrency package offers.
	stmDefaultIsolation = conc.SerializableSnapshot
)

// EtcdConfig holds the etcd connection parameters.
type EtcdConfig struct {
	Host     string `long:"host" description:"etcd instance address"`
	User     string `long:"user" description:"etcd user name"`
	Password string `long:"password" description:"etcd password"`
}

// EtcdStore persists the auction state to an etcd cluster. Multi-record
// updates run as STM transactions so a clearing commits atomically. An
// optional SQL store mirrors cleared auctions for reporting queries.
type EtcdStore struct {
	client      *clientv3.Client
	networkID   string
	initialized bool

	// sqlMirror holds an optional SQLStore object which we'll use to
	// mirror cleared auctions to a SQL backend.
	sqlMirror *SQLStore
}

// A compile-time assertion that the etcd store implements the Store
// interface.
var _ Store = (*EtcdStore)(nil)

// NewEtcdStore creates a new etcd store instance. The specified user and
// password should be able to access all keys below topLevelDir.
func NewEtcdStore(network string, cfg *EtcdConfig,
	sqlMirror *SQLStore) (*EtcdStore, error) {

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{cfg.Host},
		DialTimeout: 5 * time.Second,
		Username:    cfg.User,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, err
	}

	return &EtcdStore{
		client:    cli,
		networkID: network,
		sqlMirror: sqlMirror,
	}, nil
}

// getKeyPrefix returns the key prefix path for the given prefix.
func (s *EtcdStore) getKeyPrefix(prefix string) string {
	// easyauction/db/<network>/<prefix>.
	return strings.Join(
		[]string{topLevelDir, s.networkID, prefix}, keyDelimiter,
	)
}

// auctionKey returns the full path of a single auction record.
func (s *EtcdStore) auctionKey(id uint64) string {
	return strings.Join([]string{
		s.getKeyPrefix(auctionPrefix),
		strconv.FormatUint(id, 10),
	}, keyDelimiter)
}

// userKey returns the full path of a single user directory entry.
func (s *EtcdStore) userKey(id uint64) string {
	return strings.Join([]string{
		s.getKeyPrefix(userPrefix),
		strconv.FormatUint(id, 10),
	}, keyDelimiter)
}

// defaultSTM returns an STM transaction wrapper for the store's etcd client
// with the default isolation level.
func (s *EtcdStore) defaultSTM(ctx context.Context,
	apply func(conc.STM) error) (*clientv3.TxnResponse, error) {

	ctxt, cancel := context.WithTimeout(ctx, etcdTimeout)
	defer cancel()

	return conc.NewSTM(
		s.client, func(stm conc.STM) error {
			return apply(stm)
		}, conc.WithAbortContext(ctxt),
		conc.WithIsolation(stmDefaultIsolation),
	)
}

// Init initializes the necessary versioning state if the database hasn't
// already been created in the past.
//
// NOTE: This method is part of the Store interface.
func (s *EtcdStore) Init(ctx context.Context) error {
	if s.initialized {
		return ErrAlreadyInitialized
	}

	ctxt, cancel := context.WithTimeout(ctx, etcdTimeout)
	defer cancel()

	versionKey := s.getKeyPrefix(versionPrefix)
	resp, err := s.client.Get(ctxt, versionKey)
	if err != nil {
		return err
	}

	s.initialized = true

	if resp.Count == 0 {
		log.Infof("Initializing db with version %v",
			currentDbVersion)

		_, err := s.defaultSTM(ctx, func(stm conc.STM) error {
			stm.Put(
				versionKey,
				strconv.Itoa(int(currentDbVersion)),
			)
			stm.Put(s.getKeyPrefix(auctionCounterPrefix), "0")
			return nil
		})
		return err
	}

	version, err := strconv.Atoi(string(resp.Kvs[0].Value))
	if err != nil {
		return err
	}

	log.Infof("Current db version %v, latest version %v", version,
		currentDbVersion)

	if uint32(version) != currentDbVersion {
		return ErrDbVersionMismatch
	}

	return nil
}

// AuctionCounter returns the number of auctions created so far.
//
// NOTE: This method is part of the Store interface.
func (s *EtcdStore) AuctionCounter(ctx context.Context) (uint64, error) {
	if !s.initialized {
		return 0, ErrNotInitialized
	}

	ctxt, cancel := context.WithTimeout(ctx, etcdTimeout)
	defer cancel()

	resp, err := s.client.Get(
		ctxt, s.getKeyPrefix(auctionCounterPrefix),
	)
	if err != nil {
		return 0, err
	}
	if len(resp.Kvs) == 0 {
		return 0, nil
	}

	return strconv.ParseUint(string(resp.Kvs[0].Value), 10, 64)
}

// StoreAuctionCounter persists the auction counter.
//
// NOTE: This method is part of the Store interface.
func (s *EtcdStore) StoreAuctionCounter(ctx context.Context,
	counter uint64) error {

	if !s.initialized {
		return ErrNotInitialized
	}

	ctxt, cancel := context.WithTimeout(ctx, etcdTimeout)
	defer cancel()

	_, err := s.client.Put(
		ctxt, s.getKeyPrefix(auctionCounterPrefix),
		strconv.FormatUint(counter, 10),
	)
	return err
}

// StoreAuction persists the full auction record.
//
// NOTE: This method is part of the Store interface.
func (s *EtcdStore) StoreAuction(ctx context.Context,
	a *auction.Auction) error {

	if !s.initialized {
		return ErrNotInitialized
	}

	var buf bytes.Buffer
	if err := serializeAuction(&buf, a); err != nil {
		return err
	}

	ctxt, cancel := context.WithTimeout(ctx, etcdTimeout)
	defer cancel()

	_, err := s.client.Put(ctxt, s.auctionKey(a.ID), buf.String())
	return err
}

// Auction fetches a single auction record.
//
// NOTE: This method is part of the Store interface.
func (s *EtcdStore) Auction(ctx context.Context, id uint64) (
	*auction.Auction, error) {

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	ctxt, cancel := context.WithTimeout(ctx, etcdTimeout)
	defer cancel()

	resp, err := s.client.Get(ctxt, s.auctionKey(id))
	if err != nil {
		return nil, err
	}
	if len(resp.Kvs) == 0 {
		return nil, ErrNoAuction
	}

	return deserializeAuction(bytes.NewReader(resp.Kvs[0].Value))
}

// Auctions fetches all auction records.
//
// NOTE: This method is part of the Store interface.
func (s *EtcdStore) Auctions(ctx context.Context) ([]*auction.Auction,
	error) {

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	ctxt, cancel := context.WithTimeout(ctx, etcdTimeout)
	defer cancel()

	resp, err := s.client.Get(
		ctxt, s.getKeyPrefix(auctionPrefix)+keyDelimiter,
		clientv3.WithPrefix(),
	)
	if err != nil {
		return nil, err
	}

	auctions := make([]*auction.Auction, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		a, err := deserializeAuction(bytes.NewReader(kv.Value))
		if err != nil {
			return nil, fmt.Errorf("unable to deserialize "+
				"auction %s: %v", kv.Key, err)
		}
		auctions = append(auctions, a)
	}

	return auctions, nil
}

// PersistClearing atomically persists a just cleared auction and mirrors it
// to the SQL backend if one is configured.
//
// NOTE: This method is part of the Store interface.
func (s *EtcdStore) PersistClearing(ctx context.Context,
	a *auction.Auction) error {

	if !s.initialized {
		return ErrNotInitialized
	}

	var buf bytes.Buffer
	if err := serializeAuction(&buf, a); err != nil {
		return err
	}

	_, err := s.defaultSTM(ctx, func(stm conc.STM) error {
		stm.Put(s.auctionKey(a.ID), buf.String())
		return nil
	})
	if err != nil {
		return err
	}

	// The SQL mirror is best effort reporting storage, a failure there
	// must not fail the clearing itself.
	if s.sqlMirror != nil {
		if err := s.sqlMirror.UpsertAuction(ctx, a); err != nil {
			log.Errorf("Unable to mirror auction %d to SQL: %v",
				a.ID, err)
		}
	}

	return nil
}

// StoreUser persists a single user directory entry.
//
// NOTE: This method is part of the Store interface.
func (s *EtcdStore) StoreUser(ctx context.Context, id uint64,
	addr account.Address) error {

	if !s.initialized {
		return ErrNotInitialized
	}

	ctxt, cancel := context.WithTimeout(ctx, etcdTimeout)
	defer cancel()

	_, err := s.client.Put(ctxt, s.userKey(id), string(addr))
	return err
}

// Users fetches the whole user directory.
//
// NOTE: This method is part of the Store interface.
func (s *EtcdStore) Users(ctx context.Context) (map[uint64]account.Address,
	error) {

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	ctxt, cancel := context.WithTimeout(ctx, etcdTimeout)
	defer cancel()

	prefix := s.getKeyPrefix(userPrefix) + keyDelimiter
	resp, err := s.client.Get(ctxt, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	users := make(map[uint64]account.Address, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		rawID := strings.TrimPrefix(string(kv.Key), prefix)
		id, err := strconv.ParseUint(rawID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user key %s: %v",
				kv.Key, err)
		}
		users[id] = account.Address(kv.Value)
	}

	return users, nil
}

// StoreFeeParameters persists the fee schedule.
//
// NOTE: This method is part of the Store interface.
func (s *EtcdStore) StoreFeeParameters(ctx context.Context,
	params *FeeParameters) error {

	if !s.initialized {
		return ErrNotInitialized
	}

	var buf bytes.Buffer
	if err := serializeFeeParameters(&buf, params); err != nil {
		return err
	}

	ctxt, cancel := context.WithTimeout(ctx, etcdTimeout)
	defer cancel()

	_, err := s.client.Put(
		ctxt, s.getKeyPrefix(feeParamsPrefix), buf.String(),
	)
	return err
}

// FeeParameters fetches the fee schedule.
//
// NOTE: This method is part of the Store interface.
func (s *EtcdStore) FeeParameters(ctx context.Context) (*FeeParameters,
	error) {

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	ctxt, cancel := context.WithTimeout(ctx, etcdTimeout)
	defer cancel()

	resp, err := s.client.Get(ctxt, s.getKeyPrefix(feeParamsPrefix))
	if err != nil {
		return nil, err
	}
	if len(resp.Kvs) == 0 {
		return &FeeParameters{}, nil
	}

	return deserializeFeeParameters(bytes.NewReader(resp.Kvs[0].Value))
}
