package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/docebrew/cupcakeria/internal/domain/payment"
	"github.com/docebrew/cupcakeria/internal/domain/shipping"
)

// Sentinel errors for order operations.
var (
	ErrNotFound     = errors.New("order not found")
	ErrCannotCancel = errors.New("cannot cancel this order")
)

// Order is the immutable-after-creation header of a placed order. The
// customer and address fields are snapshots taken at checkout time.
type Order struct {
	ID           string
	Number       string
	CustomerID   string
	Status       Status
	DeliveryMode shipping.DeliveryMode

	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Address       Address

	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	ShippingFee decimal.Decimal
	Total       decimal.Decimal

	CouponCode string
	Notes      string
	CreatedAt  time.Time
}

// Address is the delivery address snapshot on an order.
type Address struct {
	CEP        string
	Street     string
	Number     string
	Complement string
	District   string
	City       string
	State      string
}

// Line is a price-snapshotted line item on a placed order. The unit price is
// fixed at order time, decoupled from later catalog price changes.
type Line struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// NewNumber generates a short unique opaque order number in the store's
// CP######## format.
func NewNumber() string {
	return "CP" + strings.ToUpper(uuid.New().String()[:8])
}

// Stats summarizes placed orders for reporting.
type Stats struct {
	TotalOrders   int
	GrossRevenue  decimal.Decimal
	AverageTicket decimal.Decimal
	ByStatus      map[Status]int
}

// ListFilter narrows order listings.
type ListFilter struct {
	CustomerID string
	Status     Status
}

// Repository defines the read side of order persistence. Writes happen
// through the transactional Store during checkout and cancellation.
type Repository interface {
	GetByNumber(ctx context.Context, number string) (*Order, error)
	Lines(ctx context.Context, orderID string) ([]Line, error)
	GetPayment(ctx context.Context, orderID string) (*payment.Payment, error)
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	Stats(ctx context.Context, from, to *time.Time) (*Stats, error)
}
