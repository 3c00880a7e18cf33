package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validation is the outcome of checking a coupon code against an order value.
// Invalid coupons are an expected condition, reported through Valid/Reason
// rather than an error.
type Validation struct {
	Valid    bool
	Reason   string
	Discount decimal.Decimal
	Coupon   *Coupon
}

// Engine validates coupon codes and computes their discounts.
type Engine struct {
	repo Repository
	now  func() time.Time
}

// NewEngine creates an Engine backed by the given Repository.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// Validate checks the code against the activation flag, validity window,
// usage cap, and minimum order value, in that order. Codes are normalized to
// uppercase before lookup. The error return is reserved for store failures;
// every business outcome lands in the Validation.
func (e *Engine) Validate(ctx context.Context, code string, orderValue decimal.Decimal) (*Validation, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	c, err := e.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalid("coupon not found"), nil
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !c.Active {
		return invalid("coupon inactive"), nil
	}

	now := e.now()
	if now.Before(c.StartsAt) {
		return invalid("coupon not yet available"), nil
	}
	if !now.Before(c.EndsAt) {
		return invalid("coupon expired"), nil
	}

	if c.UsedCount >= c.MaxUses {
		return invalid("coupon exhausted"), nil
	}

	if orderValue.LessThan(c.MinOrderValue) {
		return invalid(fmt.Sprintf("minimum order of R$ %s not met", c.MinOrderValue.StringFixed(2))), nil
	}

	return &Validation{
		Valid:    true,
		Discount: c.DiscountFor(orderValue),
		Coupon:   c,
	}, nil
}

// Consume burns one use of the coupon. It must be called exactly once per
// successful order and never for a coupon that failed validation.
func (e *Engine) Consume(ctx context.Context, c *Coupon) error {
	if err := e.repo.Consume(ctx, c.Code); err != nil {
		return errors.Wrapf(err, "consume coupon %s", c.Code)
	}
	return nil
}

// ListActive returns coupons currently redeemable.
func (e *Engine) ListActive(ctx context.Context) ([]Coupon, error) {
	return e.repo.ListActive(ctx, e.now())
}

func invalid(reason string) *Validation {
	return &Validation{Valid: false, Reason: reason, Discount: decimal.Zero}
}
