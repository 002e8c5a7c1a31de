package app

import (
	"context"
	"errors"
	"fmt"

	"auction-settlement-service/internal/domain/asset"
	"auction-settlement-service/internal/domain/auction"
	"auction-settlement-service/internal/domain/bid"
	"auction-settlement-service/internal/domain/shared"
	"auction-settlement-service/internal/domain/wallet"
	"auction-settlement-service/internal/ports/outbound"

	"github.com/rs/zerolog"
)

// DecisionKind is the terminal outcome class picked for an eligible auction
type DecisionKind string

const (
	DecisionProceed             DecisionKind = "proceed"
	DecisionEndAllowanceMissing DecisionKind = "end_allowance_missing"
	DecisionEndNoBids           DecisionKind = "end_no_bids"
	DecisionEndSelfBid          DecisionKind = "end_self_bid"
	DecisionEndReserveNotMet    DecisionKind = "end_reserve_not_met"
	DecisionDefer               DecisionKind = "defer"
)

// Decision is the validator's verdict
type Decision struct {
	Kind    DecisionKind
	Err     error
	Highest *bid.Bid
	Asset   *asset.Asset
	Seller  wallet.AccountID
	Winner  wallet.AccountID
}

// Ends reports whether the decision closes the auction without a transfer
func (d Decision) Ends() bool {
	switch d.Kind {
	case DecisionEndAllowanceMissing, DecisionEndNoBids, DecisionEndSelfBid, DecisionEndReserveNotMet:
		return true
	}
	return false
}

// EndReason maps an ending decision to the stored reason
func (d Decision) EndReason() auction.EndReason {
	switch d.Kind {
	case DecisionEndAllowanceMissing:
		return auction.EndReasonNoAllowance
	case DecisionEndNoBids:
		return auction.EndReasonNoBids
	case DecisionEndSelfBid:
		return auction.EndReasonSelfBid
	case DecisionEndReserveNotMet:
		return auction.EndReasonReserveNotMet
	}
	return ""
}

// WinnerID is the winning bidder identity, when there is one
func (d Decision) WinnerID() *string {
	if d.Highest == nil {
		return nil
	}
	id := d.Highest.BidderID
	return &id
}

func deferred(err error) Decision {
	return Decision{Kind: DecisionDefer, Err: shared.Wrap(shared.KindDataIntegrity, "validate", err)}
}

// Validator decides how an expired auction must be closed
type Validator struct {
	bidRepo   outbound.BidRepository
	assetRepo outbound.AssetRepository
	resolver  *WalletResolver
	// enforceReserve ends auctions whose highest bid is under the reserve price
	enforceReserve bool
	logger         zerolog.Logger
}

type ValidatorParams struct {
	BidRepo   outbound.BidRepository
	AssetRepo outbound.AssetRepository
	Resolver  *WalletResolver
	// EnforceReserve turns on the reserve price rule. Off by default.
	EnforceReserve bool
	Logger         zerolog.Logger
}

// NewValidator creates a new settlement validator
func NewValidator(params ValidatorParams) *Validator {
	return &Validator{
		bidRepo:        params.BidRepo,
		assetRepo:      params.AssetRepo,
		resolver:       params.Resolver,
		enforceReserve: params.EnforceReserve,
		logger:         params.Logger.With().Str("component", "settlement_validator").Logger(),
	}
}

// Validate applies the settlement rules in order:
// allowance, bids present, highest bid valid, asset and wallets, self-bid.
// With reserve enforcement on, the reserve check runs after the bid amount check.
func (v *Validator) Validate(ctx context.Context, a *auction.Auction) Decision {
	if !a.AllowanceGranted {
		return Decision{Kind: DecisionEndAllowanceMissing, Err: shared.Wrap(shared.KindPreconditionNotMet, "validate", shared.ErrAllowanceMissing)}
	}

	bids, err := v.bidRepo.GetByAuctionID(ctx, a.ID)
	if err != nil && !errors.Is(err, shared.ErrNoBidsFound) {
		v.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to load bids")
		return deferred(err)
	}

	highest := bid.Highest(bids)
	if highest == nil {
		return Decision{Kind: DecisionEndNoBids, Err: shared.Wrap(shared.KindPreconditionNotMet, "validate", shared.ErrNoBidsFound)}
	}

	if !highest.IsValid() {
		v.logger.Warn().
			Str("auction_id", a.ID.String()).
			Str("bid_id", highest.ID.String()).
			Str("amount_hbar", highest.AmountHbar.String()).
			Msg("Highest bid has invalid amount")
		d := deferred(fmt.Errorf("bid %s: %w", highest.ID, shared.ErrBidAmountInvalid))
		d.Highest = highest
		return d
	}

	if v.enforceReserve && a.HasReserve() && highest.AmountHbar.LessThan(a.ReservePrice) {
		return Decision{
			Kind:    DecisionEndReserveNotMet,
			Err:     shared.Wrap(shared.KindPreconditionNotMet, "validate", shared.ErrReserveNotReached),
			Highest: highest,
		}
	}

	parties, err := v.resolveParties(ctx, a, highest)
	if err != nil {
		d := deferred(err)
		d.Highest = highest
		return d
	}

	if parties.Seller == parties.Winner {
		parties.Kind = DecisionEndSelfBid
		parties.Err = shared.Wrap(shared.KindPreconditionNotMet, "validate", shared.ErrSelfBid)
		return parties
	}

	parties.Kind = DecisionProceed
	return parties
}

// signedDecision rebuilds the transfer recorded when the auction entered SETTLING.
// A confirmed transaction is committed with exactly the parties and amount it carried,
// whatever the bids or wallets say now.
func signedDecision(a *auction.Auction) (Decision, error) {
	if a.SettlementBidID == nil || a.SettlementBidderID == nil || a.SettlementWinner == nil ||
		a.SettlementSeller == nil || a.SettlementAmount == nil {
		return Decision{}, fmt.Errorf("auction %s: %w", a.ID, shared.ErrSettlementIntentGone)
	}
	return Decision{
		Kind: DecisionProceed,
		Highest: &bid.Bid{
			ID:         *a.SettlementBidID,
			AuctionID:  a.ID,
			BidderID:   *a.SettlementBidderID,
			AmountHbar: *a.SettlementAmount,
		},
		Asset:  &asset.Asset{ID: a.AssetID},
		Seller: wallet.AccountID(*a.SettlementSeller),
		Winner: wallet.AccountID(*a.SettlementWinner),
	}, nil
}

func (v *Validator) resolveParties(ctx context.Context, a *auction.Auction, highest *bid.Bid) (Decision, error) {
	as, err := v.assetRepo.GetByID(ctx, a.AssetID)
	if err != nil {
		return Decision{}, fmt.Errorf("load asset %s: %w", a.AssetID, err)
	}
	if as.TokenID == "" || as.SerialNumber <= 0 {
		return Decision{}, fmt.Errorf("asset %s: %w", as.ID, shared.ErrAssetNotOnChain)
	}

	seller, err := v.resolver.ResolveSeller(ctx, a, as)
	if err != nil {
		return Decision{}, err
	}
	winner, err := v.resolver.ResolveWinner(ctx, highest)
	if err != nil {
		return Decision{}, err
	}

	return Decision{Highest: highest, Asset: as, Seller: seller, Winner: winner}, nil
}
