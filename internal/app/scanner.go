package app

import (
	"context"
	"time"

	"auction-settlement-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ScanResult lists the auctions one cycle has to look at
type ScanResult struct {
	// Expired are ACTIVE auctions whose bidding window closed
	Expired []uuid.UUID
	// Settling are auctions with a submitted, unconfirmed ledger transaction
	Settling []uuid.UUID
}

// Scanner finds auctions eligible for settlement. It never writes.
type Scanner struct {
	auctionRepo outbound.AuctionRepository
	logger      zerolog.Logger
}

type ScannerParams struct {
	AuctionRepo outbound.AuctionRepository
	Logger      zerolog.Logger
}

// NewScanner creates a new auction scanner
func NewScanner(params ScannerParams) *Scanner {
	return &Scanner{
		auctionRepo: params.AuctionRepo,
		logger:      params.Logger.With().Str("component", "auction_scanner").Logger(),
	}
}

// Scan returns every ACTIVE auction with end time at or before now, plus every
// SETTLING auction awaiting reconciliation
func (s *Scanner) Scan(ctx context.Context, now time.Time) (*ScanResult, error) {
	settling, err := s.auctionRepo.ListSettlingIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list settling auctions")
		return nil, err
	}

	expired, err := s.auctionRepo.ListExpiredActiveIDs(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list expired auctions")
		return nil, err
	}

	if len(expired) > 0 || len(settling) > 0 {
		s.logger.Debug().
			Int("expired", len(expired)).
			Int("settling", len(settling)).
			Time("now", now).
			Msg("Found auctions to settle")
	}

	return &ScanResult{Expired: expired, Settling: settling}, nil
}
