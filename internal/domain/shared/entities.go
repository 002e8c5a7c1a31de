package shared

import (
	"time"

	"github.com/google/uuid"
)

// Business owns assets and takes part in auctions as seller
type Business struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	WalletAddress *string   `json:"wallet_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// User is a ledger-identity holder. WalletAddress is the canonical ledger account.
type User struct {
	ID            uuid.UUID  `json:"id"`
	BusinessID    *uuid.UUID `json:"business_id,omitempty"`
	ExternalRef   *string    `json:"external_ref,omitempty"`
	WalletAddress *string    `json:"wallet_address,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Identity is the Business/User pair that holds one wallet
type Identity struct {
	BusinessID uuid.UUID
	UserID     uuid.UUID
	Created    bool
}
