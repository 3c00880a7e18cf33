package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/docebrew/cupcakeria/internal/domain/cart"
	"github.com/docebrew/cupcakeria/internal/domain/coupon"
	"github.com/docebrew/cupcakeria/internal/domain/payment"
	"github.com/docebrew/cupcakeria/internal/domain/shipping"
)

// ErrStockConflict is returned by Tx.DecrementStock when the guarded update
// finds less stock than requested.
var ErrStockConflict = errors.New("insufficient stock")

// StockConflictError is the business failure surfaced when a concurrent
// checkout drained a product's stock between cart validation and commit.
type StockConflictError struct {
	ProductName string
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for %s", e.ProductName)
}

// Tx is the write surface available inside a checkout or cancellation
// transaction. Every operation joins the same database transaction; an error
// from any of them rolls back all of them.
type Tx interface {
	CreateOrder(ctx context.Context, o *Order) error
	CreateLine(ctx context.Context, line *Line) error
	// DecrementStock subtracts qty from the product's stock, guarded so the
	// stock can never go negative. Returns ErrStockConflict when the guard
	// fails.
	DecrementStock(ctx context.Context, productID string, qty int) error
	RestoreStock(ctx context.Context, productID string, qty int) error
	CreatePayment(ctx context.Context, p *payment.Payment) error
	SetPaymentStatus(ctx context.Context, paymentID string, status payment.Status) error
	SetOrderStatus(ctx context.Context, orderID string, status Status) error
	// ConsumeCoupon burns one use, guarded against exceeding the usage cap.
	// Returns coupon.ErrExhausted when the guard fails.
	ConsumeCoupon(ctx context.Context, code string) error
	ClearCart(ctx context.Context, cartID string) error
}

// Store is order persistence plus transactional grouping.
type Store interface {
	Repository
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// EventPublisher receives order lifecycle notifications after commit.
// Implementations must be best-effort: publishing failures are theirs to log
// and must never affect the order.
type EventPublisher interface {
	OrderCreated(ctx context.Context, o *Order)
	OrderStatusChanged(ctx context.Context, o *Order, from, to Status)
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) OrderCreated(context.Context, *Order)                  {}
func (NopPublisher) OrderStatusChanged(context.Context, *Order, Status, Status) {}

// PlaceInput is the checkout form: delivery choice, customer/address
// snapshot, payment method, and an optional coupon code.
type PlaceInput struct {
	DeliveryMode  shipping.DeliveryMode
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Address       Address
	CouponCode    string
	PaymentMethod payment.Method
	PaidAmount    *decimal.Decimal
	Notes         string
}

// Result is a successfully placed order with its lines and payment record.
type Result struct {
	Order   *Order
	Lines   []Line
	Payment *payment.Payment
}

// Service orchestrates checkout: it turns a customer's cart into a persisted
// order with consistent pricing, inventory effects, coupon consumption, and
// a payment record, all inside a single transaction. It also owns order
// cancellation and fulfillment status updates.
type Service struct {
	carts    *cart.Service
	coupons  *coupon.Engine
	shipping *shipping.Calculator
	store    Store
	events   EventPublisher
	lg       *zap.Logger
}

// NewService creates the checkout orchestrator. A nil events publisher
// disables notifications.
func NewService(
	carts *cart.Service,
	coupons *coupon.Engine,
	calc *shipping.Calculator,
	store Store,
	events EventPublisher,
	lg *zap.Logger,
) *Service {
	if events == nil {
		events = NopPublisher{}
	}
	return &Service{
		carts:    carts,
		coupons:  coupons,
		shipping: calc,
		store:    store,
		events:   events,
		lg:       lg,
	}
}

// Place executes the checkout sequence. Cart validation and pricing run
// first; once the order is priced, every mutation (order, lines, stock,
// payment, coupon use, cart clear) commits atomically or not at all.
func (s *Service) Place(ctx context.Context, customerID string, input PlaceInput) (*Result, error) {
	v, err := s.carts.Get(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if err := s.carts.ValidateForCheckout(ctx, v); err != nil {
		return nil, err
	}

	subtotal := v.Subtotal

	// An invalid coupon does not fail the checkout: the order proceeds
	// without a discount. The storefront has always worked this way, so the
	// drop is logged rather than silent.
	discount := decimal.Zero
	couponCode := ""
	if input.CouponCode != "" {
		validation, err := s.coupons.Validate(ctx, input.CouponCode, subtotal)
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		if validation.Valid {
			discount = validation.Discount
			couponCode = validation.Coupon.Code
		} else {
			s.lg.Warn("ignoring invalid coupon at checkout",
				zap.String("code", input.CouponCode),
				zap.String("reason", validation.Reason),
			)
		}
	}

	quote := s.shipping.Quote(input.Address.State, input.DeliveryMode, subtotal)

	// Discount is capped at the subtotal and the fee is non-negative, so the
	// total cannot go below zero.
	total := subtotal.Sub(discount).Add(quote.Fee).Round(2)

	o := &Order{
		ID:            uuid.New().String(),
		Number:        NewNumber(),
		CustomerID:    customerID,
		Status:        StatusPending,
		DeliveryMode:  input.DeliveryMode,
		CustomerName:  input.CustomerName,
		CustomerEmail: input.CustomerEmail,
		CustomerPhone: input.CustomerPhone,
		Address:       input.Address,
		Subtotal:      subtotal,
		Discount:      discount,
		ShippingFee:   quote.Fee,
		Total:         total,
		CouponCode:    couponCode,
		Notes:         input.Notes,
		CreatedAt:     time.Now(),
	}

	pay := &payment.Payment{
		ID:      uuid.New().String(),
		OrderID: o.ID,
		Method:  input.PaymentMethod,
		Status:  payment.StatusPending,
		Amount:  total,
		// The simulated gateway approves instantly, so the transaction id is
		// known before the row is inserted and persists with it.
		TransactionID: uuid.New().String(),
	}
	if input.PaymentMethod == payment.MethodCash && input.PaidAmount != nil {
		paid := input.PaidAmount.Round(2)
		change := payment.ChangeFor(paid, total)
		pay.PaidAmount = &paid
		pay.Change = &change
	}

	var lines []Line
	err = s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		for _, lv := range v.Lines {
			line := Line{
				ID:        uuid.New().String(),
				OrderID:   o.ID,
				ProductID: lv.ProductID,
				Quantity:  lv.Quantity,
				UnitPrice: lv.UnitPrice,
				Subtotal:  lv.Subtotal,
			}
			if err := tx.CreateLine(ctx, &line); err != nil {
				return errors.Wrapf(err, "create order line for %s", lv.ProductID)
			}
			if err := tx.DecrementStock(ctx, lv.ProductID, lv.Quantity); err != nil {
				if errors.Is(err, ErrStockConflict) {
					return &StockConflictError{ProductName: lv.ProductName}
				}
				return errors.Wrapf(err, "decrement stock for %s", lv.ProductID)
			}
			lines = append(lines, line)
		}

		if err := tx.CreatePayment(ctx, pay); err != nil {
			return errors.Wrap(err, "create payment")
		}
		if err := s.processPayment(ctx, tx, pay); err != nil {
			return err
		}

		// An approved payment moves the order forward.
		if err := Transition(o.Status, StatusReceived); err != nil {
			return err
		}
		if err := tx.SetOrderStatus(ctx, o.ID, StatusReceived); err != nil {
			return errors.Wrap(err, "set order status")
		}
		o.Status = StatusReceived

		if couponCode != "" {
			if err := tx.ConsumeCoupon(ctx, couponCode); err != nil {
				return errors.Wrapf(err, "consume coupon %s", couponCode)
			}
		}

		if err := tx.ClearCart(ctx, v.Cart.ID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.lg.Info("order placed",
		zap.String("number", o.Number),
		zap.String("customer_id", customerID),
		zap.String("total", o.Total.StringFixed(2)),
	)
	s.events.OrderCreated(ctx, o)

	return &Result{Order: o, Lines: lines, Payment: pay}, nil
}

// processPayment runs the simulated gateway: the payment enters processing
// and is approved immediately. Each move goes through the payment state
// machine.
func (s *Service) processPayment(ctx context.Context, tx Tx, pay *payment.Payment) error {
	steps := []payment.Status{payment.StatusProcessing, payment.StatusApproved}
	for _, next := range steps {
		if err := payment.Transition(pay.Status, next); err != nil {
			return err
		}
		if err := tx.SetPaymentStatus(ctx, pay.ID, next); err != nil {
			return errors.Wrap(err, "set payment status")
		}
		pay.Status = next
	}
	return nil
}

// Cancel cancels an order still in a cancellable status: stock is restored
// for every line, the payment is cancelled, and the order moves to
// cancelado, atomically. When customerID is non-empty the order must belong
// to that customer.
func (s *Service) Cancel(ctx context.Context, customerID, number string) (*Order, error) {
	o, err := s.getOwned(ctx, customerID, number)
	if err != nil {
		return nil, err
	}
	if !o.Status.Cancellable() {
		return nil, ErrCannotCancel
	}

	lines, err := s.store.Lines(ctx, o.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load order lines")
	}
	pay, err := s.store.GetPayment(ctx, o.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load payment")
	}

	from := o.Status
	err = s.store.InTx(ctx, func(tx Tx) error {
		for _, line := range lines {
			if err := tx.RestoreStock(ctx, line.ProductID, line.Quantity); err != nil {
				return errors.Wrapf(err, "restore stock for %s", line.ProductID)
			}
		}

		if err := payment.Transition(pay.Status, payment.StatusCancelled); err != nil {
			return err
		}
		if err := tx.SetPaymentStatus(ctx, pay.ID, payment.StatusCancelled); err != nil {
			return errors.Wrap(err, "cancel payment")
		}

		if err := Transition(o.Status, StatusCancelled); err != nil {
			return err
		}
		if err := tx.SetOrderStatus(ctx, o.ID, StatusCancelled); err != nil {
			return errors.Wrap(err, "cancel order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.Status = StatusCancelled
	pay.Status = payment.StatusCancelled

	s.lg.Info("order cancelled", zap.String("number", o.Number))
	s.events.OrderStatusChanged(ctx, o, from, StatusCancelled)

	return o, nil
}

// UpdateStatus advances an order through the fulfillment state machine.
func (s *Service) UpdateStatus(ctx context.Context, number string, next Status) (*Order, error) {
	o, err := s.store.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	if err := Transition(o.Status, next); err != nil {
		return nil, err
	}

	from := o.Status
	err = s.store.InTx(ctx, func(tx Tx) error {
		return tx.SetOrderStatus(ctx, o.ID, next)
	})
	if err != nil {
		return nil, errors.Wrap(err, "set order status")
	}

	o.Status = next
	s.events.OrderStatusChanged(ctx, o, from, next)
	return o, nil
}

// Get returns one order with its lines and payment. When customerID is
// non-empty the order must belong to that customer.
func (s *Service) Get(ctx context.Context, customerID, number string) (*Result, error) {
	o, err := s.getOwned(ctx, customerID, number)
	if err != nil {
		return nil, err
	}

	lines, err := s.store.Lines(ctx, o.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load order lines")
	}
	pay, err := s.store.GetPayment(ctx, o.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load payment")
	}

	return &Result{Order: o, Lines: lines, Payment: pay}, nil
}

// List returns a customer's orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	return s.store.List(ctx, filter)
}

// Stats summarizes orders in the optional [from, to] window.
func (s *Service) Stats(ctx context.Context, from, to *time.Time) (*Stats, error) {
	return s.store.Stats(ctx, from, to)
}

func (s *Service) getOwned(ctx context.Context, customerID, number string) (*Order, error) {
	o, err := s.store.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if customerID != "" && o.CustomerID != customerID {
		return nil, ErrNotFound
	}
	return o, nil
}
