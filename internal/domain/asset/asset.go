package asset

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle status of a ledger-backed asset
type Status string

const (
	StatusMinted Status = "MINTED"
	StatusListed Status = "LISTED"
	StatusSold   Status = "SOLD"
)

// Asset is a ledger-backed unit (an NFT serial of a token)
type Asset struct {
	ID             uuid.UUID        `json:"id"`
	TokenID        string           `json:"token_id"`
	SerialNumber   int64            `json:"serial_number"`
	CreatorAccount *string          `json:"creator_account,omitempty"`
	OwnerID        uuid.UUID        `json:"owner_id"`
	Status         Status           `json:"status"`
	LastSalePrice  *decimal.Decimal `json:"last_sale_price,omitempty"`
	AuctionID      *uuid.UUID       `json:"auction_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsListedIn returns true if the asset is currently attached to the given auction
func (a *Asset) IsListedIn(auctionID uuid.UUID) bool {
	return a.AuctionID != nil && *a.AuctionID == auctionID
}
