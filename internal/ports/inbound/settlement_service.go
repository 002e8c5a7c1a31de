package inbound

import (
	"context"

	"auction-settlement-service/internal/domain/shared"

	"github.com/google/uuid"
)

// SettlementService defines the interface for settlement operations
type SettlementService interface {
	// RunCycle scans for closed auctions and settles them one at a time
	RunCycle(ctx context.Context) (*shared.CycleReport, error)

	// SettleAuction runs the settlement pipeline for a single auction
	SettleAuction(ctx context.Context, auctionID uuid.UUID) shared.SettlementResult
}
