package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docebrew/cupcakeria/internal/domain/auth"
)

const (
	findAPIKeyByHashSQL = `SELECT id, key_hash, customer_id, name
		FROM api_keys WHERE key_hash = $1`

	getCustomerSQL = `SELECT id, name, email, phone FROM customers WHERE id = $1`
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository implements auth.Repository backed by PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// FindByHash looks up an API key by its HMAC-SHA256 hash.
// Returns auth.ErrUnauthorized when no key matches.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.KeyInfo, error) {
	var info auth.KeyInfo
	err := r.pool.QueryRow(ctx, findAPIKeyByHashSQL, hash).
		Scan(&info.ID, &info.KeyHash, &info.CustomerID, &info.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUnauthorized
		}
		return nil, fmt.Errorf("finding api key: %w", err)
	}
	return &info, nil
}

// GetCustomer returns the customer an API key belongs to.
func (r *APIKeyRepository) GetCustomer(ctx context.Context, id string) (*auth.Customer, error) {
	var c auth.Customer
	err := r.pool.QueryRow(ctx, getCustomerSQL, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUnauthorized
		}
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}
	return &c, nil
}
