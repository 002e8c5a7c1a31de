package db

import (
	"auction-settlement-service/internal/ports/outbound"
)

// RepositoryFactory creates and manages all database repositories
type RepositoryFactory struct {
	conn *Connection
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(conn *Connection) *RepositoryFactory {
	return &RepositoryFactory{conn: conn}
}

// Repositories groups every storage port the settlement service needs
type Repositories struct {
	Auctions   outbound.AuctionRepository
	Bids       outbound.BidRepository
	Assets     outbound.AssetRepository
	Identities outbound.IdentityRepository
	Settlement outbound.SettlementStore
}

// GetAuctionRepository returns the auction repository
func (f *RepositoryFactory) GetAuctionRepository() outbound.AuctionRepository {
	return NewAuctionRepository(f.conn)
}

// GetBidRepository returns the bid repository
func (f *RepositoryFactory) GetBidRepository() outbound.BidRepository {
	return NewBidRepository(f.conn)
}

// GetAssetRepository returns the asset repository
func (f *RepositoryFactory) GetAssetRepository() outbound.AssetRepository {
	return NewAssetRepository(f.conn)
}

// GetIdentityRepository returns the business/user repository
func (f *RepositoryFactory) GetIdentityRepository() outbound.IdentityRepository {
	return NewIdentityRepository(f.conn)
}

// GetSettlementStore returns the transactional settlement writer
func (f *RepositoryFactory) GetSettlementStore() outbound.SettlementStore {
	return NewSettlementStore(f.conn)
}

// GetAllRepositories returns all repositories for dependency injection
func (f *RepositoryFactory) GetAllRepositories() Repositories {
	return Repositories{
		Auctions:   f.GetAuctionRepository(),
		Bids:       f.GetBidRepository(),
		Assets:     f.GetAssetRepository(),
		Identities: f.GetIdentityRepository(),
		Settlement: f.GetSettlementStore(),
	}
}
