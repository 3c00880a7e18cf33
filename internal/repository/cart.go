package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docebrew/cupcakeria/internal/domain/cart"
)

const (
	upsertCartSQL = `INSERT INTO carts (id, customer_id)
		VALUES ($1, $2)
		ON CONFLICT (customer_id) DO UPDATE SET updated_at = now()
		RETURNING id, customer_id`

	listCartLinesSQL = `SELECT id, cart_id, product_id, quantity
		FROM cart_lines WHERE cart_id = $1 ORDER BY created_at`

	findCartLineSQL = `SELECT id, cart_id, product_id, quantity
		FROM cart_lines WHERE cart_id = $1 AND id = $2`

	findCartLineByProductSQL = `SELECT id, cart_id, product_id, quantity
		FROM cart_lines WHERE cart_id = $1 AND product_id = $2`

	insertCartLineSQL = `INSERT INTO cart_lines (id, cart_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)`

	updateCartLineQuantitySQL = `UPDATE cart_lines SET quantity = $2, updated_at = now()
		WHERE id = $1`

	deleteCartLineSQL = `DELETE FROM cart_lines WHERE id = $1`

	clearCartSQL = `DELETE FROM cart_lines WHERE cart_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetOrCreate returns the customer's cart, creating it on first use. The
// upsert keeps concurrent first requests from racing on the unique
// customer_id constraint.
func (r *CartRepository) GetOrCreate(ctx context.Context, customerID string) (*cart.Cart, error) {
	var c cart.Cart
	err := r.pool.QueryRow(ctx, upsertCartSQL, uuid.New().String(), customerID).
		Scan(&c.ID, &c.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("getting cart for customer %q: %w", customerID, err)
	}
	return &c, nil
}

// Lines returns the cart's lines in insertion order.
func (r *CartRepository) Lines(ctx context.Context, cartID string) ([]cart.Line, error) {
	rows, err := r.pool.Query(ctx, listCartLinesSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("listing cart lines: %w", err)
	}
	return pgx.CollectRows(rows, scanCartLine)
}

// FindLine returns one line by ID, scoped to the cart.
// Returns cart.ErrLineNotFound when the line does not exist.
func (r *CartRepository) FindLine(ctx context.Context, cartID, lineID string) (*cart.Line, error) {
	return r.findOne(ctx, findCartLineSQL, cartID, lineID)
}

// FindLineByProduct returns the cart's line for a product, if any.
// Returns cart.ErrLineNotFound when the product is not in the cart.
func (r *CartRepository) FindLineByProduct(ctx context.Context, cartID, productID string) (*cart.Line, error) {
	return r.findOne(ctx, findCartLineByProductSQL, cartID, productID)
}

// CreateLine inserts a new cart line.
func (r *CartRepository) CreateLine(ctx context.Context, line *cart.Line) error {
	_, err := r.pool.Exec(ctx, insertCartLineSQL, line.ID, line.CartID, line.ProductID, line.Quantity)
	if err != nil {
		return fmt.Errorf("creating cart line: %w", err)
	}
	return nil
}

// UpdateLineQuantity overwrites a line's quantity.
func (r *CartRepository) UpdateLineQuantity(ctx context.Context, lineID string, quantity int) error {
	_, err := r.pool.Exec(ctx, updateCartLineQuantitySQL, lineID, quantity)
	if err != nil {
		return fmt.Errorf("updating cart line %q: %w", lineID, err)
	}
	return nil
}

// DeleteLine removes a line from its cart.
func (r *CartRepository) DeleteLine(ctx context.Context, lineID string) error {
	_, err := r.pool.Exec(ctx, deleteCartLineSQL, lineID)
	if err != nil {
		return fmt.Errorf("deleting cart line %q: %w", lineID, err)
	}
	return nil
}

// Clear removes every line from the cart.
func (r *CartRepository) Clear(ctx context.Context, cartID string) error {
	_, err := r.pool.Exec(ctx, clearCartSQL, cartID)
	if err != nil {
		return fmt.Errorf("clearing cart %q: %w", cartID, err)
	}
	return nil
}

func (r *CartRepository) findOne(ctx context.Context, sql string, args ...any) (*cart.Line, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("finding cart line: %w", err)
	}

	line, err := pgx.CollectExactlyOneRow(rows, scanCartLine)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrLineNotFound
		}
		return nil, fmt.Errorf("finding cart line: %w", err)
	}
	return &line, nil
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var line cart.Line
	err := row.Scan(&line.ID, &line.CartID, &line.ProductID, &line.Quantity)
	return line, err
}
