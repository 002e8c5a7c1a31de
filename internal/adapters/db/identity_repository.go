package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auction-settlement-service/internal/domain/shared"

	"github.com/google/uuid"
)

// IdentityRepository reads businesses and users that may hold ledger wallets
type IdentityRepository struct {
	conn *Connection
}

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(conn *Connection) *IdentityRepository {
	return &IdentityRepository{conn: conn}
}

// GetBusiness retrieves a business by ID
func (r *IdentityRepository) GetBusiness(ctx context.Context, id uuid.UUID) (*shared.Business, error) {
	query := `
		SELECT id, name, wallet_address, created_at, updated_at
		FROM businesses
		WHERE id = $1
	`

	var b shared.Business
	err := r.conn.GetDB().QueryRowContext(ctx, query, id).Scan(
		&b.ID,
		&b.Name,
		&b.WalletAddress,
		&b.CreatedAt,
		&b.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrBusinessNotFound
		}
		return nil, fmt.Errorf("failed to get business: %w", err)
	}

	return &b, nil
}

// ListBusinessUsers returns the users linked to a business, oldest first
func (r *IdentityRepository) ListBusinessUsers(ctx context.Context, businessID uuid.UUID) ([]*shared.User, error) {
	query := `
		SELECT id, business_id, external_ref, wallet_address, created_at, updated_at
		FROM users
		WHERE business_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list business users: %w", err)
	}
	defer rows.Close()

	var users []*shared.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// FindUserByIdentity matches a bidder identity against the user id, then the external reference
func (r *IdentityRepository) FindUserByIdentity(ctx context.Context, identity string) (*shared.User, error) {
	query := `
		SELECT id, business_id, external_ref, wallet_address, created_at, updated_at
		FROM users
		WHERE external_ref = $1
		ORDER BY created_at, id
		LIMIT 1
	`
	args := []any{identity}
	if id, err := uuid.Parse(identity); err == nil {
		query = `
			SELECT id, business_id, external_ref, wallet_address, created_at, updated_at
			FROM users
			WHERE id = $1 OR external_ref = $2
			ORDER BY (id = $1) DESC, created_at, id
			LIMIT 1
		`
		args = []any{id, identity}
	}

	u, err := scanUser(r.conn.GetDB().QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return u, nil
}

func scanUser(row rowScanner) (*shared.User, error) {
	var u shared.User
	err := row.Scan(
		&u.ID,
		&u.BusinessID,
		&u.ExternalRef,
		&u.WalletAddress,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
