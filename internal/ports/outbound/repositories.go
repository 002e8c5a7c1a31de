package outbound

import (
	"context"
	"time"

	"auction-settlement-service/internal/domain/asset"
	"auction-settlement-service/internal/domain/auction"
	"auction-settlement-service/internal/domain/bid"
	"auction-settlement-service/internal/domain/shared"
	"auction-settlement-service/internal/domain/wallet"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionRepository defines the interface for auction data operations
type AuctionRepository interface {
	// GetByID retrieves an auction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)

	// ListExpiredActiveIDs returns ACTIVE auctions whose end time is at or before now,
	// skipping dead-lettered auctions and auctions backing off until a later attempt
	ListExpiredActiveIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	// ListSettlingIDs returns auctions with a persisted, unconfirmed ledger transaction
	ListSettlingIDs(ctx context.Context) ([]uuid.UUID, error)

	// MarkEnded moves an ACTIVE auction to ENDED
	MarkEnded(ctx context.Context, id uuid.UUID, reason auction.EndReason, winnerID *string) error

	// MarkSettling persists the ledger transaction id together with the parties and amount
	// signed into it, and moves ACTIVE to SETTLING
	MarkSettling(ctx context.Context, id uuid.UUID, intent SettlementIntent) error

	// RevertSettling moves SETTLING back to ACTIVE and clears the transaction id
	RevertSettling(ctx context.Context, id uuid.UUID, txID string) error

	// RecordFailure stores retry bookkeeping for an ACTIVE auction that could not settle
	RecordFailure(ctx context.Context, id uuid.UUID, failure SettlementFailure) error
}

// SettlementIntent is what a prepared transaction commits the auction to. Recovery
// commits exactly these values once the transaction is confirmed.
type SettlementIntent struct {
	TransactionID string
	ValidUntil    time.Time
	BidID         uuid.UUID
	BidderID      string
	Winner        wallet.AccountID
	Seller        wallet.AccountID
	Amount        decimal.Decimal
}

// SettlementFailure is the retry bookkeeping written after a failed attempt
type SettlementFailure struct {
	Attempts      int
	LastError     string
	NextAttemptAt *time.Time
	DeadLettered  bool
	At            time.Time
}

// BidRepository defines the interface for bid data operations
type BidRepository interface {
	// GetByAuctionID retrieves all bids for an auction
	GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)
}

// AssetRepository defines the interface for asset data operations
type AssetRepository interface {
	// GetByID retrieves an asset by ID
	GetByID(ctx context.Context, id uuid.UUID) (*asset.Asset, error)
}

// IdentityRepository looks up businesses and users that hold ledger wallets
type IdentityRepository interface {
	// GetBusiness retrieves a business by ID
	GetBusiness(ctx context.Context, id uuid.UUID) (*shared.Business, error)

	// ListBusinessUsers returns the users linked to a business, oldest first
	ListBusinessUsers(ctx context.Context, businessID uuid.UUID) ([]*shared.User, error)

	// FindUserByIdentity finds a user by id or external reference
	FindUserByIdentity(ctx context.Context, identity string) (*shared.User, error)
}

// SettlementStore commits a confirmed settlement atomically
type SettlementStore interface {
	// CommitSettlement marks the auction SETTLED, finds or creates the winner's
	// Business/User pair and hands the asset over, all in one transaction
	CommitSettlement(ctx context.Context, record SettlementRecord) (*shared.Identity, error)
}

// SettlementRecord carries everything the committer writes
type SettlementRecord struct {
	AuctionID     uuid.UUID
	AssetID       uuid.UUID
	WinnerID      string
	WinnerWallet  wallet.AccountID
	SalePrice     decimal.Decimal
	TransactionID *string
	SettledAt     time.Time
}
