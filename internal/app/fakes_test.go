package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-settlement-service/internal/domain/asset"
	"auction-settlement-service/internal/domain/auction"
	"auction-settlement-service/internal/domain/bid"
	"auction-settlement-service/internal/domain/shared"
	"auction-settlement-service/internal/domain/wallet"
	"auction-settlement-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

// memStore is an in-memory implementation of every storage port
type memStore struct {
	mu         sync.Mutex
	auctions   map[uuid.UUID]*auction.Auction
	bids       map[uuid.UUID][]*bid.Bid
	assets     map[uuid.UUID]*asset.Asset
	businesses map[uuid.UUID]*shared.Business
	users      map[uuid.UUID]*shared.User

	bidErr       error
	markSettling error
	commitErr    error
	commits      int
	failures     []outbound.SettlementFailure
}

func newMemStore() *memStore {
	return &memStore{
		auctions:   map[uuid.UUID]*auction.Auction{},
		bids:       map[uuid.UUID][]*bid.Bid{},
		assets:     map[uuid.UUID]*asset.Asset{},
		businesses: map[uuid.UUID]*shared.Business{},
		users:      map[uuid.UUID]*shared.User{},
	}
}

func (m *memStore) auction(id uuid.UUID) auction.Auction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.auctions[id]
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*auction.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[id]
	if !ok {
		return nil, shared.ErrAuctionNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) ListExpiredActiveIDs(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, a := range m.auctions {
		if a.Status != auction.StatusActive || a.EndTime.After(now) || a.DeadLetteredAt != nil {
			continue
		}
		if a.NextAttemptAt != nil && a.NextAttemptAt.After(now) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (m *memStore) ListSettlingIDs(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, a := range m.auctions {
		if a.Status == auction.StatusSettling {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) MarkEnded(_ context.Context, id uuid.UUID, reason auction.EndReason, winnerID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.auctions[id]
	if a.Status != auction.StatusActive {
		return shared.ErrAuctionNotActive
	}
	a.Status = auction.StatusEnded
	a.EndReason = &reason
	a.WinnerID = winnerID
	return nil
}

func (m *memStore) MarkSettling(_ context.Context, id uuid.UUID, intent outbound.SettlementIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markSettling != nil {
		return m.markSettling
	}
	a := m.auctions[id]
	if a.Status != auction.StatusActive {
		return shared.ErrAuctionNotActive
	}
	bidID, bidder := intent.BidID, intent.BidderID
	winner, seller := intent.Winner.String(), intent.Seller.String()
	txID, expiry, amount := intent.TransactionID, intent.ValidUntil, intent.Amount
	a.Status = auction.StatusSettling
	a.SettlementTxID = &txID
	a.SettlementTxExpiry = &expiry
	a.SettlementBidID = &bidID
	a.SettlementBidderID = &bidder
	a.SettlementWinner = &winner
	a.SettlementSeller = &seller
	a.SettlementAmount = &amount
	return nil
}

func (m *memStore) RevertSettling(_ context.Context, id uuid.UUID, txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.auctions[id]
	if a.Status != auction.StatusSettling {
		return shared.ErrAuctionNotSettling
	}
	a.Status = auction.StatusActive
	a.SettlementTxID = nil
	a.SettlementTxExpiry = nil
	a.SettlementBidID = nil
	a.SettlementBidderID = nil
	a.SettlementWinner = nil
	a.SettlementSeller = nil
	a.SettlementAmount = nil
	return nil
}

func (m *memStore) RecordFailure(_ context.Context, id uuid.UUID, f outbound.SettlementFailure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.auctions[id]
	if a.Status != auction.StatusActive {
		return shared.ErrAuctionNotActive
	}
	a.SettlementAttempts = f.Attempts
	a.LastSettlementError = &f.LastError
	a.NextAttemptAt = f.NextAttemptAt
	if f.DeadLettered {
		at := f.At
		a.DeadLetteredAt = &at
	}
	m.failures = append(m.failures, f)
	return nil
}

func (m *memStore) GetByAuctionID(_ context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bidErr != nil {
		return nil, m.bidErr
	}
	return m.bids[auctionID], nil
}

func (m *memStore) GetBusiness(_ context.Context, id uuid.UUID) (*shared.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.businesses[id]
	if !ok {
		return nil, shared.ErrBusinessNotFound
	}
	return b, nil
}

func (m *memStore) ListBusinessUsers(_ context.Context, businessID uuid.UUID) ([]*shared.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []*shared.User
	for _, u := range m.users {
		if u.BusinessID != nil && *u.BusinessID == businessID {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (m *memStore) FindUserByIdentity(_ context.Context, identity string) (*shared.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID.String() == identity || (u.ExternalRef != nil && *u.ExternalRef == identity) {
			return u, nil
		}
	}
	return nil, shared.ErrUserNotFound
}

func (m *memStore) CommitSettlement(_ context.Context, r outbound.SettlementRecord) (*shared.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return nil, m.commitErr
	}
	a := m.auctions[r.AuctionID]
	if a.Status.IsTerminal() {
		return nil, shared.ErrAlreadySettled
	}
	m.commits++

	var identity *shared.Identity
	for _, u := range m.users {
		if u.WalletAddress != nil && *u.WalletAddress == r.WinnerWallet.String() && u.BusinessID != nil {
			identity = &shared.Identity{BusinessID: *u.BusinessID, UserID: u.ID}
		}
	}
	if identity == nil {
		w := r.WinnerWallet.String()
		b := &shared.Business{ID: uuid.New(), Name: w, WalletAddress: &w}
		u := &shared.User{ID: uuid.New(), BusinessID: &b.ID, WalletAddress: &w}
		m.businesses[b.ID] = b
		m.users[u.ID] = u
		identity = &shared.Identity{BusinessID: b.ID, UserID: u.ID, Created: true}
	}

	winner := r.WinnerID
	a.Status = auction.StatusSettled
	a.IsSettled = true
	a.WinnerID = &winner
	a.SettlementTxID = r.TransactionID

	as := m.assets[r.AssetID]
	as.OwnerID = identity.BusinessID
	as.Status = asset.StatusSold
	price := r.SalePrice
	as.LastSalePrice = &price
	return identity, nil
}

type memAssets struct{ m *memStore }

func (a memAssets) GetByID(_ context.Context, id uuid.UUID) (*asset.Asset, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	as, ok := a.m.assets[id]
	if !ok {
		return nil, shared.ErrAssetNotFound
	}
	cp := *as
	return &cp, nil
}

// fakePrepared is the prepared transfer handed out by fakeLedger
type fakePrepared struct {
	id    string
	until time.Time
	req   outbound.TransferRequest
}

func (p *fakePrepared) TransactionID() string { return p.id }
func (p *fakePrepared) ValidUntil() time.Time { return p.until }

type fakeLedger struct {
	mu        sync.Mutex
	operator  wallet.AccountID
	seq       int
	submitted []outbound.TransferRequest
	statuses  map[string]outbound.TransferStatus

	prepareErr    error
	submitErr     error
	receiptStatus outbound.TransferStatus
	statusErr     error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		operator:      "0.0.2",
		statuses:      map[string]outbound.TransferStatus{},
		receiptStatus: outbound.TransferConfirmed,
	}
}

func (l *fakeLedger) OperatorAccount() wallet.AccountID { return l.operator }

func (l *fakeLedger) PrepareTransfer(_ context.Context, req outbound.TransferRequest) (outbound.PreparedTransfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.prepareErr != nil {
		return nil, l.prepareErr
	}
	l.seq++
	return &fakePrepared{
		id:    fmt.Sprintf("0.0.2@1772366400.%09d", l.seq),
		until: testNow.Add(2 * time.Minute),
		req:   req,
	}, nil
}

func (l *fakeLedger) SubmitTransfer(_ context.Context, prepared outbound.PreparedTransfer) (*outbound.TransferReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := prepared.(*fakePrepared)
	if !ok {
		return nil, errors.New("foreign prepared transfer")
	}
	l.submitted = append(l.submitted, p.req)
	if l.submitErr != nil {
		l.statuses[p.id] = outbound.TransferPending
		return nil, l.submitErr
	}
	l.statuses[p.id] = l.receiptStatus
	return &outbound.TransferReceipt{TransactionID: p.id, Status: l.receiptStatus}, nil
}

func (l *fakeLedger) TransferStatus(_ context.Context, txID string) (outbound.TransferStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.statusErr != nil {
		return "", l.statusErr
	}
	status, ok := l.statuses[txID]
	if !ok {
		return outbound.TransferNotFound, nil
	}
	return status, nil
}

func (l *fakeLedger) submissions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.submitted)
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []outbound.Event
	err    error
}

func (b *fakeBroadcaster) Publish(_ context.Context, _ uuid.UUID, event outbound.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return b.err
}

func (b *fakeBroadcaster) types() []outbound.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []outbound.EventType
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeLock struct {
	leader bool
	err    error
	// grants, when positive, is how many Acquire calls hold the lease before it is lost
	grants int
	calls  int
}

func (l *fakeLock) Acquire(context.Context) (bool, error) {
	l.calls++
	if l.grants > 0 && l.calls > l.grants {
		return false, nil
	}
	return l.leader, l.err
}

func (l *fakeLock) Release(context.Context) error { return nil }

// fixture wires a settlement service over the in-memory store
type fixture struct {
	store       *memStore
	ledger      *fakeLedger
	broadcaster *fakeBroadcaster
	service     *SettlementService
}

func newFixture(retry RetryPolicy) *fixture {
	store := newMemStore()
	ledger := newFakeLedger()
	broadcaster := &fakeBroadcaster{}
	logger := zerolog.Nop()

	resolver := NewWalletResolver(WalletResolverParams{Identities: store, Logger: logger})
	service := NewSettlementService(SettlementServiceParams{
		Scanner: NewScanner(ScannerParams{AuctionRepo: store, Logger: logger}),
		Validator: NewValidator(ValidatorParams{
			BidRepo:   store,
			AssetRepo: memAssets{store},
			Resolver:  resolver,
			Logger:    logger,
		}),
		Executor:       NewTransferExecutor(TransferExecutorParams{Ledger: ledger, AuctionRepo: store, Logger: logger}),
		Committer:      NewStateCommitter(StateCommitterParams{Store: store, AuctionRepo: store, Logger: logger}),
		AuctionRepo:    store,
		Ledger:         ledger,
		Broadcaster:    broadcaster,
		Retry:          retry,
		ReconcileGrace: time.Minute,
		Clock:          fixedClock(testNow),
		Logger:         logger,
	})
	return &fixture{store: store, ledger: ledger, broadcaster: broadcaster, service: service}
}

// seed adds an expired, allowance-granted auction whose asset was minted by seller
func (f *fixture) seed(seller string) (*auction.Auction, *asset.Asset) {
	businessID := uuid.New()
	f.store.businesses[businessID] = &shared.Business{ID: businessID, Name: "seller"}

	as := &asset.Asset{
		ID:           uuid.New(),
		TokenID:      "0.0.5005",
		SerialNumber: 7,
		OwnerID:      businessID,
		Status:       asset.StatusListed,
	}
	if seller != "" {
		as.CreatorAccount = &seller
	}
	f.store.assets[as.ID] = as

	a := &auction.Auction{
		ID:               uuid.New(),
		AssetID:          as.ID,
		BusinessID:       businessID,
		Status:           auction.StatusActive,
		EndTime:          testNow.Add(-time.Minute),
		AllowanceGranted: true,
	}
	f.store.auctions[a.ID] = a
	return a, as
}

func (f *fixture) bid(a *auction.Auction, bidder string, amount string, at time.Time) *bid.Bid {
	b := &bid.Bid{
		ID:         uuid.New(),
		AuctionID:  a.ID,
		BidderID:   bidder,
		AmountHbar: decimal.RequireFromString(amount),
		CreatedAt:  at,
	}
	f.store.bids[a.ID] = append(f.store.bids[a.ID], b)
	return b
}
