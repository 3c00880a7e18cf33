package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported coupon discount strategies.
type Kind string

const (
	// KindPercentage applies a percentage of the order value.
	KindPercentage Kind = "percentage"
	// KindFixed applies a fixed monetary discount capped at the order value.
	KindFixed Kind = "fixed"
)

var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrExhausted is returned when a consume attempt would exceed the
	// coupon's usage cap.
	ErrExhausted = errors.New("coupon usage limit reached")
)

var hundred = decimal.NewFromInt(100)

// Coupon is a discount code with a validity window and a usage cap.
type Coupon struct {
	Code          string
	Description   string
	Kind          Kind
	Value         decimal.Decimal
	MinOrderValue decimal.Decimal
	StartsAt      time.Time
	EndsAt        time.Time
	MaxUses       int
	UsedCount     int
	Active        bool
}

// DiscountFor computes the discount this coupon grants on the given order
// value. The result is capped at the order value, never negative, and
// rounded to 2 decimal places. Validity is the caller's concern.
func (c Coupon) DiscountFor(orderValue decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch c.Kind {
	case KindPercentage:
		amount = orderValue.Mul(c.Value).Div(hundred)
	case KindFixed:
		amount = c.Value
	default:
		return decimal.Zero
	}

	amount = decimal.Min(amount, orderValue)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2)
}

// Repository provides lookup and mutation of coupons.
type Repository interface {
	// FindByCode looks up a coupon by its normalized (uppercase) code.
	// Returns ErrNotFound when no such coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// ListActive returns coupons redeemable at the given instant.
	ListActive(ctx context.Context, now time.Time) ([]Coupon, error)
	// Consume increments used_count, guarded against exceeding max_uses.
	// Returns ErrExhausted when the guard fails.
	Consume(ctx context.Context, code string) error
}
