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

// errTierMiss signals that a strategy does not apply; the chain moves on
var errTierMiss = errors.New("resolver tier miss")

// Subject is what a wallet strategy resolves against
type Subject struct {
	Auction *auction.Auction
	Asset   *asset.Asset
	Bid     *bid.Bid
}

// Strategy is one tier of a wallet resolution chain
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, subject Subject) (wallet.AccountID, error)
}

// Chain evaluates strategies in priority order and returns the first hit.
// Not-found style errors fall through to the next tier; anything else stops the chain.
type Chain struct {
	name       string
	strategies []Strategy
	logger     zerolog.Logger
}

// NewChain creates a resolution chain
func NewChain(name string, logger zerolog.Logger, strategies ...Strategy) *Chain {
	return &Chain{
		name:       name,
		strategies: strategies,
		logger:     logger.With().Str("chain", name).Logger(),
	}
}

// Resolve runs the chain
func (c *Chain) Resolve(ctx context.Context, subject Subject) (wallet.AccountID, error) {
	for _, strategy := range c.strategies {
		account, err := strategy.Resolve(ctx, subject)
		if err == nil && !account.IsZero() {
			c.logger.Debug().Str("tier", strategy.Name()).Str("wallet", account.String()).Msg("Wallet resolved")
			return account, nil
		}
		if err != nil && !isMiss(err) {
			c.logger.Error().Err(err).Str("tier", strategy.Name()).Msg("Wallet lookup failed")
			return "", fmt.Errorf("%s tier %s: %w", c.name, strategy.Name(), err)
		}
	}
	return "", fmt.Errorf("%s: %w", c.name, shared.ErrWalletUnresolved)
}

func isMiss(err error) bool {
	return errors.Is(err, errTierMiss) ||
		errors.Is(err, wallet.ErrNotAccountID) ||
		errors.Is(err, shared.ErrUserNotFound) ||
		errors.Is(err, shared.ErrBusinessNotFound)
}

func parseOptional(value *string) (wallet.AccountID, error) {
	if value == nil || *value == "" {
		return "", errTierMiss
	}
	return wallet.Parse(*value)
}

// CreatorAccountStrategy trusts the mint-time creator recorded on the asset
type CreatorAccountStrategy struct{}

func (CreatorAccountStrategy) Name() string { return "asset_creator" }

func (CreatorAccountStrategy) Resolve(_ context.Context, subject Subject) (wallet.AccountID, error) {
	if subject.Asset == nil {
		return "", errTierMiss
	}
	return parseOptional(subject.Asset.CreatorAccount)
}

// BusinessUserStrategy picks the first user of the seller business with a linked wallet
type BusinessUserStrategy struct {
	Identities outbound.IdentityRepository
}

func (BusinessUserStrategy) Name() string { return "business_user" }

func (s BusinessUserStrategy) Resolve(ctx context.Context, subject Subject) (wallet.AccountID, error) {
	if subject.Auction == nil {
		return "", errTierMiss
	}
	users, err := s.Identities.ListBusinessUsers(ctx, subject.Auction.BusinessID)
	if err != nil {
		return "", err
	}
	for _, user := range users {
		if account, err := parseOptional(user.WalletAddress); err == nil {
			return account, nil
		}
	}
	return "", errTierMiss
}

// BusinessWalletStrategy uses the wallet stored on the seller business itself
type BusinessWalletStrategy struct {
	Identities outbound.IdentityRepository
}

func (BusinessWalletStrategy) Name() string { return "business_wallet" }

func (s BusinessWalletStrategy) Resolve(ctx context.Context, subject Subject) (wallet.AccountID, error) {
	if subject.Auction == nil {
		return "", errTierMiss
	}
	business, err := s.Identities.GetBusiness(ctx, subject.Auction.BusinessID)
	if err != nil {
		return "", err
	}
	return parseOptional(business.WalletAddress)
}

// AssetOwnerStrategy falls back to the wallet of the business that owns the asset
type AssetOwnerStrategy struct {
	Identities outbound.IdentityRepository
}

func (AssetOwnerStrategy) Name() string { return "asset_owner" }

func (s AssetOwnerStrategy) Resolve(ctx context.Context, subject Subject) (wallet.AccountID, error) {
	if subject.Asset == nil {
		return "", errTierMiss
	}
	owner, err := s.Identities.GetBusiness(ctx, subject.Asset.OwnerID)
	if err != nil {
		return "", err
	}
	return parseOptional(owner.WalletAddress)
}

// BidderAccountStrategy accepts a bidder identity that already is a ledger account
type BidderAccountStrategy struct{}

func (BidderAccountStrategy) Name() string { return "bidder_account" }

func (BidderAccountStrategy) Resolve(_ context.Context, subject Subject) (wallet.AccountID, error) {
	if subject.Bid == nil {
		return "", errTierMiss
	}
	return wallet.Parse(subject.Bid.BidderID)
}

// BidderLookupStrategy looks the bidder identity up in the user table
type BidderLookupStrategy struct {
	Identities outbound.IdentityRepository
}

func (BidderLookupStrategy) Name() string { return "bidder_lookup" }

func (s BidderLookupStrategy) Resolve(ctx context.Context, subject Subject) (wallet.AccountID, error) {
	if subject.Bid == nil || subject.Bid.BidderID == "" {
		return "", errTierMiss
	}
	user, err := s.Identities.FindUserByIdentity(ctx, subject.Bid.BidderID)
	if err != nil {
		return "", err
	}
	return parseOptional(user.WalletAddress)
}

// WalletResolver maps auction records to ledger accounts for seller and winner
type WalletResolver struct {
	seller *Chain
	winner *Chain
}

type WalletResolverParams struct {
	Identities outbound.IdentityRepository
	Logger     zerolog.Logger
}

// NewWalletResolver builds the default seller and winner chains
func NewWalletResolver(params WalletResolverParams) *WalletResolver {
	logger := params.Logger.With().Str("component", "wallet_resolver").Logger()
	return &WalletResolver{
		seller: NewChain("seller", logger,
			CreatorAccountStrategy{},
			BusinessUserStrategy{Identities: params.Identities},
			BusinessWalletStrategy{Identities: params.Identities},
			AssetOwnerStrategy{Identities: params.Identities},
		),
		winner: NewChain("winner", logger,
			BidderAccountStrategy{},
			BidderLookupStrategy{Identities: params.Identities},
		),
	}
}

// NewWalletResolverWithChains allows custom chains
func NewWalletResolverWithChains(seller, winner *Chain) *WalletResolver {
	return &WalletResolver{seller: seller, winner: winner}
}

// ResolveSeller resolves the seller wallet for an auction and its asset
func (r *WalletResolver) ResolveSeller(ctx context.Context, a *auction.Auction, as *asset.Asset) (wallet.AccountID, error) {
	return r.seller.Resolve(ctx, Subject{Auction: a, Asset: as})
}

// ResolveWinner resolves the wallet of the winning bidder
func (r *WalletResolver) ResolveWinner(ctx context.Context, b *bid.Bid) (wallet.AccountID, error) {
	return r.winner.Resolve(ctx, Subject{Bid: b})
}
