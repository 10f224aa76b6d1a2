package easyauction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Zappss/ido-contracts/account"
	"github.com/Zappss/ido-contracts/auction"
	"github.com/Zappss/ido-contracts/auctiondb"
	"github.com/Zappss/ido-contracts/ledger"
	"github.com/Zappss/ido-contracts/monitoring"
	"github.com/Zappss/ido-contracts/order"
	"github.com/Zappss/ido-contracts/terms"
	"github.com/Zappss/ido-contracts/venue"
	"github.com/davecgh/go-spew/spew"
	"github.com/holiman/uint256"
	"github.com/lightningnetwork/lnd/subscribe"
)

var (
	// ErrNoSuchAuction is returned if an operation targets an unknown
	// auction ID.
	ErrNoSuchAuction = errors.New("no such auction")

	// ErrUnauthorizedFeeChange is returned if anybody but the configured
	// fee setter tries to update the fee parameters.
	ErrUnauthorizedFeeChange = errors.New("fee change not authorized")
)

// InitiateAuctionRequest carries the seller supplied parameters of a new
// auction.
type InitiateAuctionRequest struct {
	// OfferedAsset is the asset the seller auctions off.
	OfferedAsset ledger.Asset

	// BiddingAsset is the asset bidders pay with.
	BiddingAsset ledger.Asset

	// OrderCancellationEnd is the end of the cancellation window.
	OrderCancellationEnd time.Time

	// AuctionEnd is the end of the bidding window.
	AuctionEnd time.Time

	// OfferedSellAmount is the total amount of the offered asset for
	// sale.
	OfferedSellAmount *uint256.Int

	// MinBuyAmount is the minimum total amount of the bidding asset the
	// seller accepts, fixing the floor price.
	MinBuyAmount *uint256.Int

	// MinBidSellAmount is the smallest sell amount an individual bid
	// must exceed.
	MinBidSellAmount *uint256.Int

	// MinFundingThreshold is the minimum clearing volume, zero for none.
	MinFundingThreshold *uint256.Int
}

// Server is the auction server: it owns the global state (user directory,
// fee schedule, auction records), enforces the per operation phase guards
// and wires the order book, the clearing engine, the ledger and the data
// store together. All operations are externally serialized through one
// lock, each one commits or fails as a unit.
type Server struct {
	started sync.Once
	stopped sync.Once

	cfg *Config

	store       auctiondb.Store
	ledger      ledger.Ledger
	directory   *account.Directory
	feeSchedule *terms.FeeSchedule
	book        *order.Book
	engine      *venue.Engine

	// auctions is the in-memory working set of all auction records,
	// loaded from the store at startup and persisted back after every
	// mutation.
	auctions       map[uint64]*auction.Auction
	auctionCounter uint64

	// knownPhases tracks the last phase the watcher saw per auction so
	// it only notifies actual transitions.
	knownPhases map[uint64]auction.Phase

	ntfnServer  *subscribe.Server
	phaseTicker *IntervalAwareForceTicker

	// timeNow is the single time source of all phase guards.
	timeNow func() time.Time

	mtx  sync.RWMutex
	wg   sync.WaitGroup
	quit chan struct{}
}

// NewServer creates a new auction server instance on top of the given store
// and ledger.
func NewServer(cfg *Config, store auctiondb.Store,
	assetLedger ledger.Ledger) *Server {

	directory := account.NewDirectory()
	feeSchedule := terms.NewFeeSchedule()

	s := &Server{
		cfg:         cfg,
		store:       store,
		ledger:      assetLedger,
		directory:   directory,
		feeSchedule: feeSchedule,
		book: order.NewBook(&order.BookConfig{
			MaxBatchSize: cfg.MaxBatchSize,
		}),
		engine: venue.NewEngine(&venue.EngineConfig{
			Ledger:      assetLedger,
			Directory:   directory,
			FeeSchedule: feeSchedule,
		}),
		auctions:    make(map[uint64]*auction.Auction),
		knownPhases: make(map[uint64]auction.Phase),
		ntfnServer:  subscribe.NewServer(),
		phaseTicker: NewIntervalAwareForceTicker(
			cfg.PhaseCheckInterval,
		),
		timeNow: time.Now,
		quit:    make(chan struct{}),
	}

	return s
}

// Start loads the persisted state and launches the background tasks.
func (s *Server) Start(ctx context.Context) error {
	var startErr error
	s.started.Do(func() {
		log.Infof("Starting auction server")

		if err := s.ntfnServer.Start(); err != nil {
			startErr = err
			return
		}
		if err := s.book.Start(); err != nil {
			startErr = err
			return
		}

		if err := s.loadState(ctx); err != nil {
			startErr = fmt.Errorf("unable to load state: %w", err)
			return
		}

		s.phaseTicker.Resume()
		s.wg.Add(1)
		go s.phaseWatcher()

		log.Infof("Auction server started with %d auctions and %d "+
			"users", len(s.auctions), s.directory.NumUsers())
	})
	return startErr
}

// Stop shuts down the background tasks.
func (s *Server) Stop() {
	s.stopped.Do(func() {
		log.Infof("Stopping auction server")

		close(s.quit)
		s.phaseTicker.Stop()
		s.wg.Wait()

		s.book.Stop()
		_ = s.ntfnServer.Stop()
	})
}

// loadState restores the directory, the fee schedule and the auction
// records from the store.
func (s *Server) loadState(ctx context.Context) error {
	users, err := s.store.Users(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		if err := s.directory.Load(users); err != nil {
			return err
		}
	}

	feeParams, err := s.store.FeeParameters(ctx)
	if err != nil {
		return err
	}
	if feeParams.ReceiverSet {
		err := s.feeSchedule.Update(
			feeParams.Numerator, feeParams.ReceiverUserID,
		)
		if err != nil {
			return err
		}
	}

	counter, err := s.store.AuctionCounter(ctx)
	if err != nil {
		return err
	}
	s.auctionCounter = counter

	auctions, err := s.store.Auctions(ctx)
	if err != nil {
		return err
	}
	now := s.timeNow()
	for _, a := range auctions {
		s.auctions[a.ID] = a
		s.knownPhases[a.ID] = a.Phase(now)
	}

	return nil
}

// Subscribe returns a subscription client for all server events.
func (s *Server) Subscribe() (*subscribe.Client, error) {
	return s.ntfnServer.Subscribe()
}

// SubscribeBook returns a subscription client for raw order book updates.
func (s *Server) SubscribeBook() (*subscribe.Client, error) {
	return s.book.Subscribe()
}

// notify sends an event to all subscribers.
func (s *Server) notify(event interface{}) {
	if err := s.ntfnServer.SendUpdate(event); err != nil {
		log.Errorf("Unable to send update %T: %v", event, err)
	}
}

// phaseWatcher periodically sweeps the auctions and emits an event for every
// change of an auction's derived phase. Purely observational, the phase guards
// themselves always compare against the current time.
func (s *Server) phaseWatcher() {
	defer s.wg.Done()

	for {
		select {
		case <-s.phaseTicker.Ticks():
			s.sweepPhases()

		case <-s.quit:
			return
		}
	}
}

// sweepPhases emits an AuctionPhaseEvent for every auction whose derived
// phase moved since the last sweep.
func (s *Server) sweepPhases() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	now := s.timeNow()
	for id, a := range s.auctions {
		phase := a.Phase(now)
		if s.knownPhases[id] == phase {
			continue
		}
		s.knownPhases[id] = phase

		log.Debugf("Auction %d moved to phase %v", id, phase)
		s.notify(&AuctionPhaseEvent{
			AuctionID: id,
			Phase:     phase,
		})
	}
}

// getOrRegisterUser resolves the address to its user ID, registering it on
// first contact, persisting and notifying the registration.
//
// NOTE: The lock MUST be held when calling this method.
func (s *Server) getOrRegisterUser(ctx context.Context,
	addr account.Address) (uint64, error) {

	id, isNew, err := s.directory.GetOrRegister(addr)
	if err != nil {
		return 0, err
	}
	if !isNew {
		return id, nil
	}

	if err := s.store.StoreUser(ctx, id, addr); err != nil {
		return 0, err
	}

	s.notify(&NewUserEvent{
		UserID:  id,
		Address: addr,
	})

	return id, nil
}

// RegisterUser explicitly assigns a user ID to the given address. Fails if
// the address is already registered.
func (s *Server) RegisterUser(ctx context.Context,
	addr account.Address) (uint64, error) {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	id, err := s.directory.Register(addr)
	if err != nil {
		return 0, err
	}

	if err := s.store.StoreUser(ctx, id, addr); err != nil {
		return 0, err
	}

	s.notify(&NewUserEvent{UserID: id, Address: addr})
	s.notify(&UserRegistrationEvent{Address: addr, UserID: id})

	return id, nil
}

// SetFee updates the global fee parameters: the numerator of the fee
// fraction and the address collecting the fees. Only the configured fee
// setter may call this. Running auctions keep their snapshot, the update
// applies to auctions initiated afterwards.
func (s *Server) SetFee(ctx context.Context, caller account.Address,
	numerator uint64, receiver account.Address) error {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if string(caller) != s.cfg.FeeSetter {
		return ErrUnauthorizedFeeChange
	}

	receiverID, err := s.getOrRegisterUser(ctx, receiver)
	if err != nil {
		return err
	}

	if err := s.feeSchedule.Update(numerator, receiverID); err != nil {
		return err
	}

	return s.store.StoreFeeParameters(ctx, &auctiondb.FeeParameters{
		Numerator:      numerator,
		ReceiverUserID: receiverID,
		ReceiverSet:    true,
	})
}

// InitiateAuction creates a new auction. The seller's full deposit, the
// offered amount plus the fee slice under the current fee snapshot, is
// pulled into escrow.
func (s *Server) InitiateAuction(ctx context.Context,
	seller account.Address, req *InitiateAuctionRequest) (uint64, error) {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	sellerID, err := s.getOrRegisterUser(ctx, seller)
	if err != nil {
		return 0, err
	}

	feeNumerator := s.feeSchedule.FeeNumerator()
	id := s.auctionCounter + 1

	a, err := auction.NewAuction(id, &auction.Params{
		OfferedAsset:         req.OfferedAsset,
		BiddingAsset:         req.BiddingAsset,
		OrderCancellationEnd: req.OrderCancellationEnd,
		AuctionEnd:           req.AuctionEnd,
		SellerUserID:         sellerID,
		OfferedSellAmount:    req.OfferedSellAmount,
		MinBuyAmount:         req.MinBuyAmount,
		MinBidSellAmount:     req.MinBidSellAmount,
		MinFundingThreshold:  req.MinFundingThreshold,
	}, feeNumerator, s.timeNow())
	if err != nil {
		return 0, err
	}

	// Deposit: the supply itself plus the fee slice on top.
	deposit := req.OfferedSellAmount.Clone()
	feeSlice, overflow := new(uint256.Int).MulOverflow(
		req.OfferedSellAmount, uint256.NewInt(feeNumerator),
	)
	if overflow {
		return 0, order.ErrAmountOverflow
	}
	feeSlice.Div(feeSlice, uint256.NewInt(terms.FeeDenominator))

	deposit, overflow = deposit.AddOverflow(deposit, feeSlice)
	if overflow {
		return 0, order.ErrAmountOverflow
	}

	err = s.ledger.Pull(ctx, req.OfferedAsset, seller, deposit)
	if err != nil {
		return 0, err
	}

	s.auctionCounter = id
	s.auctions[id] = a
	s.knownPhases[id] = auction.PhasePlacement

	if err := s.store.StoreAuctionCounter(ctx, id); err != nil {
		return 0, err
	}
	if err := s.store.StoreAuction(ctx, a); err != nil {
		return 0, err
	}

	log.Infof("Auction %d initiated by user %d: %v -> %v, supply %v",
		id, sellerID, req.OfferedAsset, req.BiddingAsset,
		req.OfferedSellAmount)

	s.notify(&NewAuctionEvent{
		AuctionID:            id,
		OfferedAsset:         req.OfferedAsset,
		BiddingAsset:         req.BiddingAsset,
		SellerUserID:         sellerID,
		OrderCancellationEnd: req.OrderCancellationEnd,
		AuctionEnd:           req.AuctionEnd,
		InitialOrder:         a.InitialOrder,
	})

	return id, nil
}

// auctionByID returns the auction record or ErrNoSuchAuction.
//
// NOTE: The lock MUST be held when calling this method.
func (s *Server) auctionByID(id uint64) (*auction.Auction, error) {
	a, ok := s.auctions[id]
	if !ok {
		return nil, ErrNoSuchAuction
	}
	return a, nil
}

// PlaceOrders validates and places a batch of bids for the given bidder,
// pulling the summed sell amounts into escrow.
func (s *Server) PlaceOrders(ctx context.Context, auctionID uint64,
	bidder account.Address, subs []order.Submission) ([]order.Key,
	error) {

	return s.placeOrders(ctx, auctionID, bidder, bidder, subs)
}

// PlaceOrdersOnBehalf places a batch of bids that will belong to another
// user while the submitter pays for them. Cancellation and claims go
// through the beneficiary.
func (s *Server) PlaceOrdersOnBehalf(ctx context.Context, auctionID uint64,
	submitter, onBehalf account.Address, subs []order.Submission) (
	[]order.Key, error) {

	return s.placeOrders(ctx, auctionID, submitter, onBehalf, subs)
}

// placeOrders is the shared implementation of the two placement calls.
func (s *Server) placeOrders(ctx context.Context, auctionID uint64,
	payer, beneficiary account.Address, subs []order.Submission) (
	[]order.Key, error) {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	a, err := s.auctionByID(auctionID)
	if err != nil {
		return nil, err
	}

	now := s.timeNow()
	if !a.AllowsPlacement(now) {
		return nil, &auction.ErrWrongPhase{
			AuctionID: auctionID,
			Current:   a.Phase(now),
			Required:  auction.PhasePlacement,
		}
	}

	userID, err := s.getOrRegisterUser(ctx, beneficiary)
	if err != nil {
		return nil, err
	}

	placed, sumSell, err := s.book.PlaceOrders(
		auctionID, a.Book, a.InitialOrder, a.MinBidSellAmount,
		userID, subs,
	)
	if err != nil {
		return nil, err
	}

	if !sumSell.IsZero() {
		err := s.ledger.Pull(ctx, a.BiddingAsset, payer, sumSell)
		if err != nil {
			// Undo the placements, the batch pays as a unit.
			for _, key := range placed {
				a.Book.Remove(key)
			}
			return nil, err
		}
	}

	if err := s.store.StoreAuction(ctx, a); err != nil {
		return nil, err
	}

	for _, key := range placed {
		s.notify(&NewSellOrderEvent{
			AuctionID: auctionID,
			Order:     key,
		})
	}

	return placed, nil
}

// CancelOrders removes the given orders of the calling bidder from the book
// and refunds their sell amounts. Only possible while the cancellation
// window is open.
func (s *Server) CancelOrders(ctx context.Context, auctionID uint64,
	bidder account.Address, keys []order.Key) error {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	a, err := s.auctionByID(auctionID)
	if err != nil {
		return err
	}

	now := s.timeNow()
	if !a.AllowsCancellation(now) {
		return &auction.ErrWrongPhase{
			AuctionID: auctionID,
			Current:   a.Phase(now),
			Required:  auction.PhasePlacement,
		}
	}

	userID, ok := s.directory.UserID(bidder)
	if !ok {
		return order.ErrNotOwner
	}

	cancelled, refund, err := s.book.CancelOrders(
		auctionID, a.Book, userID, keys,
	)
	if err != nil {
		return err
	}

	if !refund.IsZero() {
		err := s.ledger.Push(ctx, a.BiddingAsset, bidder, refund)
		if err != nil {
			return err
		}
	}

	if err := s.store.StoreAuction(ctx, a); err != nil {
		return err
	}

	for _, key := range cancelled {
		s.notify(&CancellationSellOrderEvent{
			AuctionID: auctionID,
			Order:     key,
		})
	}

	return nil
}

// PrecomputeSum advances the auction's interim clearing state by the given
// number of steps. Only valid in the solution phase.
func (s *Server) PrecomputeSum(ctx context.Context, auctionID uint64,
	steps uint64) error {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	a, err := s.auctionByID(auctionID)
	if err != nil {
		return err
	}

	now := s.timeNow()
	if !a.InSolution(now) {
		return &auction.ErrWrongPhase{
			AuctionID: auctionID,
			Current:   a.Phase(now),
			Required:  auction.PhaseSolution,
		}
	}

	if err := s.engine.PrecomputeSum(a, steps); err != nil {
		return err
	}

	return s.store.StoreAuction(ctx, a)
}

// VerifyPrice verifies the candidate clearing price, settles the seller's
// side and the fees on success and moves the auction to the finished phase.
func (s *Server) VerifyPrice(ctx context.Context, auctionID uint64,
	candidate order.Key) (*venue.ClearingResult, error) {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	a, err := s.auctionByID(auctionID)
	if err != nil {
		return nil, err
	}

	now := s.timeNow()
	if !a.InSolution(now) {
		return nil, &auction.ErrWrongPhase{
			AuctionID: auctionID,
			Current:   a.Phase(now),
			Required:  auction.PhaseSolution,
		}
	}

	result, err := s.engine.VerifyPrice(ctx, a, candidate)
	if err != nil {
		return nil, err
	}

	log.Debugf("Clearing result for auction %d: %v", auctionID,
		spew.Sdump(result))

	if err := s.store.PersistClearing(ctx, a); err != nil {
		return nil, err
	}

	s.knownPhases[auctionID] = auction.PhaseFinished
	s.notify(&AuctionClearedEvent{
		AuctionID:        auctionID,
		PriceNumerator:   result.ClearingOrder.BuyAmount(),
		PriceDenominator: result.ClearingOrder.SellAmount(),
		ClearingOrder:    result.ClearingOrder,
	})
	s.notify(&AuctionPhaseEvent{
		AuctionID: auctionID,
		Phase:     auction.PhaseFinished,
	})

	return result, nil
}

// ClaimParticipant settles a batch of orders that all belong to one user
// against the finished auction.
func (s *Server) ClaimParticipant(ctx context.Context, auctionID uint64,
	orders []order.Key) ([]venue.Claim, error) {

	s.mtx.Lock()
	defer s.mtx.Unlock()

	a, err := s.auctionByID(auctionID)
	if err != nil {
		return nil, err
	}

	if !a.IsFinished() {
		return nil, &auction.ErrWrongPhase{
			AuctionID: auctionID,
			Current:   a.Phase(s.timeNow()),
			Required:  auction.PhaseFinished,
		}
	}

	claims, err := s.engine.ClaimFromParticipantOrder(ctx, a, orders)
	if err != nil {
		return nil, err
	}

	if err := s.store.StoreAuction(ctx, a); err != nil {
		return nil, err
	}

	for _, claim := range claims {
		s.notify(&ClaimedFromOrderEvent{
			AuctionID:     auctionID,
			Order:         claim.Order,
			OfferedAmount: claim.OfferedAmount,
			BiddingAmount: claim.BiddingAmount,
		})
	}

	return claims, nil
}

// Auction returns a snapshot of the auction record.
func (s *Server) Auction(ctx context.Context,
	id uint64) (*auction.Auction, error) {

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if _, ok := s.auctions[id]; !ok {
		return nil, ErrNoSuchAuction
	}

	// Return the stored copy so callers can't mutate the working set.
	return s.store.Auction(ctx, id)
}

// AuctionStats returns the monitoring snapshot of the server.
//
// NOTE: This method is part of the monitoring.AuctionSource interface.
func (s *Server) AuctionStats(_ context.Context) (*monitoring.Stats, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	stats := &monitoring.Stats{
		AuctionsByPhase: make(map[string]uint32),
		NumUsers:        s.directory.NumUsers(),
	}

	now := s.timeNow()
	for _, a := range s.auctions {
		stats.AuctionsByPhase[a.Phase(now).String()]++
		stats.OpenOrders += uint32(a.Book.Len())
	}

	return stats, nil
}
