package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auction-settlement-service/internal/domain/asset"
	"auction-settlement-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssetRepository implements the asset repository interface
type AssetRepository struct {
	conn *Connection
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(conn *Connection) *AssetRepository {
	return &AssetRepository{conn: conn}
}

// GetByID retrieves an asset by ID
func (r *AssetRepository) GetByID(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	query := `
		SELECT id, token_id, serial_number, creator_account, owner_id, status,
		       last_sale_price, auction_id, created_at, updated_at
		FROM assets
		WHERE id = $1
	`

	var (
		a         asset.Asset
		lastPrice decimal.NullDecimal
	)
	err := r.conn.GetDB().QueryRowContext(ctx, query, id).Scan(
		&a.ID,
		&a.TokenID,
		&a.SerialNumber,
		&a.CreatorAccount,
		&a.OwnerID,
		&a.Status,
		&lastPrice,
		&a.AuctionID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	if lastPrice.Valid {
		a.LastSalePrice = &lastPrice.Decimal
	}

	return &a, nil
}
