package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-settlement-service/internal/domain/auction"
	"auction-settlement-service/internal/domain/shared"
	"auction-settlement-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const auctionColumns = `
	id, asset_id, business_id, status, end_time, reserve_price, allowance_granted,
	winner_id, is_settled, end_reason, settlement_tx_id, settlement_tx_expiry,
	settlement_attempts, last_settlement_error, next_attempt_at, dead_lettered_at,
	settlement_bid_id, settlement_bidder_id, settlement_winner_wallet,
	settlement_seller_wallet, settlement_amount, created_at, updated_at`

// AuctionRepository implements the auction repository interface
type AuctionRepository struct {
	conn *Connection
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(conn *Connection) *AuctionRepository {
	return &AuctionRepository{conn: conn}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*auction.Auction, error) {
	var (
		a      auction.Auction
		amount decimal.NullDecimal
	)
	err := row.Scan(
		&a.ID,
		&a.AssetID,
		&a.BusinessID,
		&a.Status,
		&a.EndTime,
		&a.ReservePrice,
		&a.AllowanceGranted,
		&a.WinnerID,
		&a.IsSettled,
		&a.EndReason,
		&a.SettlementTxID,
		&a.SettlementTxExpiry,
		&a.SettlementAttempts,
		&a.LastSettlementError,
		&a.NextAttemptAt,
		&a.DeadLetteredAt,
		&a.SettlementBidID,
		&a.SettlementBidderID,
		&a.SettlementWinner,
		&a.SettlementSeller,
		&amount,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if amount.Valid {
		a.SettlementAmount = &amount.Decimal
	}
	return &a, nil
}

// GetByID retrieves an auction by ID
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	a, err := scanAuction(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	return a, nil
}

// ListExpiredActiveIDs returns ACTIVE auctions due for settlement, oldest end time first
func (r *AuctionRepository) ListExpiredActiveIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM auctions
		WHERE status = $1
		  AND end_time <= $2
		  AND dead_lettered_at IS NULL
		  AND (next_attempt_at IS NULL OR next_attempt_at <= $2)
		ORDER BY end_time, id
	`
	return r.listIDs(ctx, "expired", query, auction.StatusActive, now)
}

// ListSettlingIDs returns auctions with a submitted, unconfirmed transfer
func (r *AuctionRepository) ListSettlingIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM auctions
		WHERE status = $1
		ORDER BY updated_at, id
	`
	return r.listIDs(ctx, "settling", query, auction.StatusSettling)
}

func (r *AuctionRepository) listIDs(ctx context.Context, what, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.conn.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s auctions: %w", what, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan auction id: %w", err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}

	return ids, nil
}

// MarkEnded closes an ACTIVE auction without a transfer
func (r *AuctionRepository) MarkEnded(ctx context.Context, id uuid.UUID, reason auction.EndReason, winnerID *string) error {
	query := `
		UPDATE auctions
		SET status = $2, end_reason = $3, winner_id = $4,
		    next_attempt_at = NULL, updated_at = now()
		WHERE id = $1 AND status = $5
	`
	return r.guardedUpdate(ctx, id, shared.ErrAuctionNotActive, query,
		id, auction.StatusEnded, reason, winnerID, auction.StatusActive)
}

// MarkSettling stores the prepared transaction and what it pays to whom before it is submitted
func (r *AuctionRepository) MarkSettling(ctx context.Context, id uuid.UUID, intent outbound.SettlementIntent) error {
	query := `
		UPDATE auctions
		SET status = $2, settlement_tx_id = $3, settlement_tx_expiry = $4,
		    settlement_bid_id = $5, settlement_bidder_id = $6, settlement_winner_wallet = $7,
		    settlement_seller_wallet = $8, settlement_amount = $9, updated_at = now()
		WHERE id = $1 AND status = $10
	`
	err := r.guardedUpdate(ctx, id, shared.ErrAuctionNotActive, query,
		id, auction.StatusSettling, intent.TransactionID, intent.ValidUntil,
		intent.BidID, intent.BidderID, intent.Winner.String(), intent.Seller.String(), intent.Amount,
		auction.StatusActive)
	if isUniqueViolation(err) {
		return fmt.Errorf("transaction id %s: %w", intent.TransactionID, shared.ErrPreparedTransferMixup)
	}
	return err
}

// RevertSettling returns a SETTLING auction to ACTIVE once its transaction is known dead
func (r *AuctionRepository) RevertSettling(ctx context.Context, id uuid.UUID, txID string) error {
	query := `
		UPDATE auctions
		SET status = $2, settlement_tx_id = NULL, settlement_tx_expiry = NULL,
		    settlement_bid_id = NULL, settlement_bidder_id = NULL, settlement_winner_wallet = NULL,
		    settlement_seller_wallet = NULL, settlement_amount = NULL, updated_at = now()
		WHERE id = $1 AND status = $3 AND ($4 = '' OR settlement_tx_id = $4)
	`
	return r.guardedUpdate(ctx, id, shared.ErrAuctionNotSettling, query,
		id, auction.StatusActive, auction.StatusSettling, txID)
}

// RecordFailure stores retry bookkeeping. Only ACTIVE rows are touched; a row another
// instance moved on keeps its state.
func (r *AuctionRepository) RecordFailure(ctx context.Context, id uuid.UUID, failure outbound.SettlementFailure) error {
	var deadAt *time.Time
	if failure.DeadLettered {
		deadAt = &failure.At
	}

	query := `
		UPDATE auctions
		SET settlement_attempts = $2, last_settlement_error = $3, next_attempt_at = $4,
		    dead_lettered_at = COALESCE(dead_lettered_at, $5), updated_at = now()
		WHERE id = $1 AND status = $6
	`
	result, err := r.conn.GetDB().ExecContext(ctx, query,
		id, failure.Attempts, failure.LastError, failure.NextAttemptAt, deadAt, auction.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to record settlement failure: %w", err)
	}

	return requireRow(result, shared.ErrAuctionNotActive)
}

func (r *AuctionRepository) guardedUpdate(ctx context.Context, id uuid.UUID, guardErr error, query string, args ...any) error {
	result, err := r.conn.GetDB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update auction %s: %w", id, err)
	}
	return requireRow(result, guardErr)
}

func requireRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return notFound
	}

	return nil
}
