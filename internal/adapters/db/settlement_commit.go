package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auction-settlement-service/internal/domain/asset"
	"auction-settlement-service/internal/domain/auction"
	"auction-settlement-service/internal/domain/shared"
	"auction-settlement-service/internal/domain/wallet"
	"auction-settlement-service/internal/ports/outbound"

	"github.com/google/uuid"
)

// commitAttempts bounds retries when a concurrent writer trips a unique constraint
const commitAttempts = 3

// SettlementStore commits confirmed settlements in one transaction
type SettlementStore struct {
	conn *Connection
}

// NewSettlementStore creates a new settlement store
func NewSettlementStore(conn *Connection) *SettlementStore {
	return &SettlementStore{conn: conn}
}

// CommitSettlement locks the auction row, marks it SETTLED, finds or creates the
// winner's business and user by wallet, and hands the asset over
func (s *SettlementStore) CommitSettlement(ctx context.Context, record outbound.SettlementRecord) (*shared.Identity, error) {
	var (
		identity *shared.Identity
		err      error
	)
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		err = s.conn.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
			var txErr error
			identity, txErr = commitSettlement(ctx, tx, record)
			return txErr
		})
		if !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return identity, nil
}

func commitSettlement(ctx context.Context, tx *sql.Tx, record outbound.SettlementRecord) (*shared.Identity, error) {
	var status auction.Status
	err := tx.QueryRowContext(ctx, `SELECT status FROM auctions WHERE id = $1 FOR UPDATE`, record.AuctionID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to lock auction: %w", err)
	}
	if status != auction.StatusActive && status != auction.StatusSettling {
		return nil, fmt.Errorf("auction %s is %s: %w", record.AuctionID, status, shared.ErrAlreadySettled)
	}

	identity, err := findOrCreateIdentity(ctx, tx, record.WinnerWallet)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE auctions
		SET status = $2, is_settled = TRUE, winner_id = $3,
		    settlement_tx_id = COALESCE($4, settlement_tx_id),
		    next_attempt_at = NULL, last_settlement_error = NULL, updated_at = $5
		WHERE id = $1
	`, record.AuctionID, auction.StatusSettled, record.WinnerID, record.TransactionID, record.SettledAt)
	if err != nil {
		return nil, fmt.Errorf("failed to mark auction settled: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE assets
		SET owner_id = $2, status = $3, last_sale_price = $4, auction_id = NULL, updated_at = $5
		WHERE id = $1
	`, record.AssetID, identity.BusinessID, asset.StatusSold, record.SalePrice, record.SettledAt)
	if err != nil {
		return nil, fmt.Errorf("failed to transfer asset ownership: %w", err)
	}
	if err := requireRow(result, shared.ErrAssetNotFound); err != nil {
		return nil, err
	}

	return identity, nil
}

// findOrCreateIdentity returns the business and user owning w, creating both when absent.
// Both inserts upsert on wallet_address so two committers racing on one wallet converge.
func findOrCreateIdentity(ctx context.Context, tx *sql.Tx, w wallet.AccountID) (*shared.Identity, error) {
	var (
		userID     uuid.UUID
		businessID *uuid.UUID
	)
	err := tx.QueryRowContext(ctx, `SELECT id, business_id FROM users WHERE wallet_address = $1 FOR UPDATE`, w.String()).
		Scan(&userID, &businessID)
	switch {
	case err == nil && businessID != nil:
		return &shared.Identity{BusinessID: *businessID, UserID: userID}, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to look up winner user: %w", err)
	}

	var (
		newBusinessID uuid.UUID
		created       bool
	)
	err = tx.QueryRowContext(ctx, `
		INSERT INTO businesses (id, name, wallet_address)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet_address) DO UPDATE SET updated_at = businesses.updated_at
		RETURNING id, (xmax = 0)
	`, uuid.New(), w.String(), w.String()).Scan(&newBusinessID, &created)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create winner business: %w", err)
	}

	var linkedBusiness uuid.UUID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (id, business_id, wallet_address)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet_address) DO UPDATE
		SET business_id = COALESCE(users.business_id, EXCLUDED.business_id), updated_at = now()
		RETURNING id, business_id
	`, uuid.New(), newBusinessID, w.String()).Scan(&userID, &linkedBusiness)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create winner user: %w", err)
	}

	return &shared.Identity{BusinessID: linkedBusiness, UserID: userID, Created: created}, nil
}
