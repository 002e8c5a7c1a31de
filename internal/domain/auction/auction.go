package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the current status of an auction
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusSettling Status = "SETTLING"
	StatusEnded    Status = "ENDED"
	StatusSettled  Status = "SETTLED"
)

// EndReason records why an auction was closed without a transfer
type EndReason string

const (
	EndReasonNoAllowance   EndReason = "NO_ALLOWANCE"
	EndReasonNoBids        EndReason = "NO_BIDS"
	EndReasonSelfBid       EndReason = "SELF_BID"
	EndReasonReserveNotMet EndReason = "RESERVE_NOT_MET"
)

// Auction represents an auction for a ledger-backed asset
type Auction struct {
	ID               uuid.UUID       `json:"id"`
	AssetID          uuid.UUID       `json:"asset_id"`
	BusinessID       uuid.UUID       `json:"business_id"`
	Status           Status          `json:"status"`
	EndTime          time.Time       `json:"end_time"`
	ReservePrice     decimal.Decimal `json:"reserve_price"`
	AllowanceGranted bool            `json:"allowance_granted"`
	WinnerID         *string         `json:"winner_id,omitempty"`
	IsSettled        bool            `json:"is_settled"`
	EndReason        *EndReason      `json:"end_reason,omitempty"`

	// Settlement bookkeeping
	SettlementTxID      *string    `json:"settlement_tx_id,omitempty"`
	SettlementTxExpiry  *time.Time `json:"settlement_tx_expiry,omitempty"`
	SettlementAttempts  int        `json:"settlement_attempts"`
	LastSettlementError *string    `json:"last_settlement_error,omitempty"`
	NextAttemptAt       *time.Time `json:"next_attempt_at,omitempty"`
	DeadLetteredAt      *time.Time `json:"dead_lettered_at,omitempty"`

	// Parties and price signed into the pending transaction, set with SettlementTxID
	SettlementBidID    *uuid.UUID       `json:"settlement_bid_id,omitempty"`
	SettlementBidderID *string          `json:"settlement_bidder_id,omitempty"`
	SettlementWinner   *string          `json:"settlement_winner_wallet,omitempty"`
	SettlementSeller   *string          `json:"settlement_seller_wallet,omitempty"`
	SettlementAmount   *decimal.Decimal `json:"settlement_amount,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive returns true if the auction is still open for settlement
func (a *Auction) IsActive() bool {
	return a.Status == StatusActive
}

// IsSettling returns true if a ledger transfer was submitted but not yet committed
func (a *Auction) IsSettling() bool {
	return a.Status == StatusSettling
}

// IsTerminal returns true once the auction reached ENDED or SETTLED
func (a *Auction) IsTerminal() bool {
	return a.Status.IsTerminal()
}

// HasEnded returns true if the bidding window is closed at now
func (a *Auction) HasEnded(now time.Time) bool {
	return !a.EndTime.After(now)
}

// HasReserve returns true if a positive reserve price was set
func (a *Auction) HasReserve() bool {
	return a.ReservePrice.IsPositive()
}

// IsTerminal reports whether no further transition is allowed from s
func (s Status) IsTerminal() bool {
	return s == StatusEnded || s == StatusSettled
}
