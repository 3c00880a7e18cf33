package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for cart operations. All are expected business failures.
var (
	ErrEmpty        = errors.New("cart empty")
	ErrLineNotFound = errors.New("item not found in cart")
)

// UnavailableError indicates a product can no longer be sold.
type UnavailableError struct {
	ProductName string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s is not available", e.ProductName)
}

// InsufficientStockError reports how much stock remains for a product.
type InsufficientStockError struct {
	ProductName string
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: %d available", e.ProductName, e.Available)
}

// Cart is a customer's shopping cart. One per customer.
type Cart struct {
	ID         string
	CustomerID string
}

// Line is one product+quantity entry in a cart.
type Line struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
}

// LineView is a Line joined with its product for display and totals.
type LineView struct {
	Line
	ProductName string
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// View is a cart with its computed totals.
type View struct {
	Cart
	Lines     []LineView
	Subtotal  decimal.Decimal
	ItemCount int
}

// Totals is a checkout preview for a cart, optionally with a coupon applied.
type Totals struct {
	Subtotal  decimal.Decimal
	Discount  decimal.Decimal
	Total     decimal.Decimal
	ItemCount int
}

// Totals previews the cart's checkout math with the given discount applied.
// The discount never exceeds the subtotal.
func (v *View) Totals(discount decimal.Decimal) Totals {
	if discount.GreaterThan(v.Subtotal) {
		discount = v.Subtotal
	}
	return Totals{
		Subtotal:  v.Subtotal,
		Discount:  discount,
		Total:     v.Subtotal.Sub(discount).Round(2),
		ItemCount: v.ItemCount,
	}
}

// Repository defines persistence operations for carts and their lines.
type Repository interface {
	// GetOrCreate returns the customer's cart, creating it on first use.
	GetOrCreate(ctx context.Context, customerID string) (*Cart, error)
	Lines(ctx context.Context, cartID string) ([]Line, error)
	FindLine(ctx context.Context, cartID, lineID string) (*Line, error)
	FindLineByProduct(ctx context.Context, cartID, productID string) (*Line, error)
	CreateLine(ctx context.Context, line *Line) error
	UpdateLineQuantity(ctx context.Context, lineID string, quantity int) error
	DeleteLine(ctx context.Context, lineID string) error
	Clear(ctx context.Context, cartID string) error
}
