package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docebrew/cupcakeria/internal/domain/coupon"
)

const (
	couponColumns = `code, description, kind, value, min_order_value,
		starts_at, ends_at, max_uses, used_count, active`

	getCouponByCodeSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE code = UPPER($1)`

	listActiveCouponsSQL = `SELECT ` + couponColumns + `
		FROM coupons
		WHERE active = TRUE
		AND starts_at <= $1 AND $1 < ends_at
		AND used_count < max_uses
		ORDER BY code`

	// Guarded increment: the predicate keeps used_count from ever passing
	// max_uses under concurrent redemption.
	consumeCouponSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE code = $1 AND used_count < max_uses`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by code. Codes are stored uppercase; the
// parameter is normalized in SQL so callers may pass any casing.
// Returns coupon.ErrNotFound when no such coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// ListActive returns coupons redeemable at the given instant.
func (r *CouponRepository) ListActive(ctx context.Context, now time.Time) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listActiveCouponsSQL, now)
	if err != nil {
		return nil, fmt.Errorf("listing active coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Consume increments the coupon's usage counter, guarded against exceeding
// the usage cap. Returns coupon.ErrExhausted when the guard fails.
func (r *CouponRepository) Consume(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, consumeCouponSQL, code)
	if err != nil {
		return fmt.Errorf("consuming coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrExhausted
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c    coupon.Coupon
		kind string
	)
	err := row.Scan(
		&c.Code, &c.Description, &kind, &c.Value, &c.MinOrderValue,
		&c.StartsAt, &c.EndsAt, &c.MaxUses, &c.UsedCount, &c.Active,
	)
	c.Kind = coupon.Kind(kind)
	return c, err
}
