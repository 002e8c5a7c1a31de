package app

import (
	"context"
	"time"

	"auction-settlement-service/internal/domain/auction"
	"auction-settlement-service/internal/domain/shared"
	"auction-settlement-service/internal/ports/outbound"

	"github.com/rs/zerolog"
)

// StateCommitter persists terminal auction state
type StateCommitter struct {
	store       outbound.SettlementStore
	auctionRepo outbound.AuctionRepository
	logger      zerolog.Logger
}

type StateCommitterParams struct {
	Store       outbound.SettlementStore
	AuctionRepo outbound.AuctionRepository
	Logger      zerolog.Logger
}

// NewStateCommitter creates a new state committer
func NewStateCommitter(params StateCommitterParams) *StateCommitter {
	return &StateCommitter{
		store:       params.Store,
		auctionRepo: params.AuctionRepo,
		logger:      params.Logger.With().Str("component", "state_committer").Logger(),
	}
}

// Commit records a confirmed transfer: auction SETTLED, winner identity found or
// created, asset handed over. Runs in a single storage transaction.
func (c *StateCommitter) Commit(ctx context.Context, a *auction.Auction, d Decision, txID *string, at time.Time) (*shared.Identity, error) {
	identity, err := c.store.CommitSettlement(ctx, outbound.SettlementRecord{
		AuctionID:     a.ID,
		AssetID:       d.Asset.ID,
		WinnerID:      d.Highest.BidderID,
		WinnerWallet:  d.Winner,
		SalePrice:     d.Highest.AmountHbar,
		TransactionID: txID,
		SettledAt:     at,
	})
	if err != nil {
		c.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to commit settlement")
		return nil, shared.Wrap(shared.KindStorageCommit, "commit", err)
	}

	c.logger.Info().
		Str("auction_id", a.ID.String()).
		Str("winner_business_id", identity.BusinessID.String()).
		Bool("identity_created", identity.Created).
		Msg("Settlement committed")
	return identity, nil
}

// End closes an ACTIVE auction without a transfer
func (c *StateCommitter) End(ctx context.Context, a *auction.Auction, reason auction.EndReason, winnerID *string) error {
	if _, err := auction.Transition(a.Status, auction.EventEnd); err != nil {
		return shared.Wrap(shared.KindPreconditionNotMet, "end", err)
	}
	if err := c.auctionRepo.MarkEnded(ctx, a.ID, reason, winnerID); err != nil {
		c.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to mark auction ended")
		return shared.Wrap(shared.KindStorageCommit, "end", err)
	}
	c.logger.Info().Str("auction_id", a.ID.String()).Str("reason", string(reason)).Msg("Auction ended")
	return nil
}
