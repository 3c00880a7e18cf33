package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/docebrew/cupcakeria/internal/domain/coupon"
	"github.com/docebrew/cupcakeria/internal/domain/order"
	"github.com/docebrew/cupcakeria/internal/domain/payment"
	"github.com/docebrew/cupcakeria/internal/domain/shipping"
)

const (
	orderColumns = `id, number, customer_id, status, delivery_mode,
		customer_name, customer_email, customer_phone,
		cep, street, street_number, complement, district, city, state,
		subtotal, discount, shipping_fee, total,
		COALESCE(coupon_code, ''), notes, created_at`

	getOrderByNumberSQL = `SELECT ` + orderColumns + ` FROM orders WHERE number = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1 = '' OR customer_id::text = $1)
		AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC`

	listOrderLinesSQL = `SELECT id, order_id, product_id, quantity, unit_price, subtotal
		FROM order_lines WHERE order_id = $1`

	getPaymentSQL = `SELECT id, order_id, method, status, amount, paid_amount, change_amount,
		transaction_id, metadata
		FROM payments WHERE order_id = $1`

	orderStatsSQL = `SELECT COUNT(*),
		COALESCE(SUM(total), 0),
		COALESCE(AVG(total), 0)
		FROM orders
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		AND ($2::timestamptz IS NULL OR created_at <= $2)`

	orderStatsByStatusSQL = `SELECT status, COUNT(*)
		FROM orders
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		AND ($2::timestamptz IS NULL OR created_at <= $2)
		GROUP BY status`

	insertOrderSQL = `INSERT INTO orders (id, number, customer_id, status, delivery_mode,
		customer_name, customer_email, customer_phone,
		cep, street, street_number, complement, district, city, state,
		subtotal, discount, shipping_fee, total, coupon_code, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		$16, $17, $18, $19, NULLIF($20, ''), $21)`

	insertOrderLineSQL = `INSERT INTO order_lines (id, order_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)`

	// Guarded decrement: the predicate keeps stock from ever going negative
	// under concurrent checkouts.
	decrementStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`

	restoreStockSQL = `UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1`

	insertPaymentSQL = `INSERT INTO payments (id, order_id, method, status, amount,
		paid_amount, change_amount, transaction_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	setPaymentStatusSQL = `UPDATE payments SET status = $2, updated_at = now() WHERE id = $1`

	setOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL. Reads run on the
// pool; writes happen through InTx so checkout and cancellation stay
// all-or-nothing.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// GetByNumber returns one order by its public number.
// Returns order.ErrNotFound when no such order exists.
func (s *OrderStore) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderByNumberSQL, number)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", number, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", number, err)
	}
	return &o, nil
}

// List returns orders matching the filter, newest first.
func (s *OrderStore) List(ctx context.Context, filter order.ListFilter) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, listOrdersSQL, filter.CustomerID, string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Lines returns the order's line items.
func (s *OrderStore) Lines(ctx context.Context, orderID string) ([]order.Line, error) {
	rows, err := s.pool.Query(ctx, listOrderLinesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing order lines: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Line, error) {
		var line order.Line
		err := row.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Quantity,
			&line.UnitPrice, &line.Subtotal)
		return line, err
	})
}

// GetPayment returns the order's payment record.
func (s *OrderStore) GetPayment(ctx context.Context, orderID string) (*payment.Payment, error) {
	var (
		p        payment.Payment
		method   string
		status   string
		metadata []byte
	)
	err := s.pool.QueryRow(ctx, getPaymentSQL, orderID).Scan(
		&p.ID, &p.OrderID, &method, &status, &p.Amount,
		&p.PaidAmount, &p.Change, &p.TransactionID, &metadata,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting payment for order %q: %w", orderID, err)
	}
	p.Method = payment.Method(method)
	p.Status = payment.Status(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("decoding payment metadata: %w", err)
		}
	}
	return &p, nil
}

// Stats summarizes orders created in the optional [from, to] window.
func (s *OrderStore) Stats(ctx context.Context, from, to *time.Time) (*order.Stats, error) {
	stats := &order.Stats{ByStatus: make(map[order.Status]int)}

	err := s.pool.QueryRow(ctx, orderStatsSQL, from, to).
		Scan(&stats.TotalOrders, &stats.GrossRevenue, &stats.AverageTicket)
	if err != nil {
		return nil, fmt.Errorf("computing order stats: %w", err)
	}

	rows, err := s.pool.Query(ctx, orderStatsByStatusSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("computing order stats by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning order stats: %w", err)
		}
		stats.ByStatus[order.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("computing order stats by status: %w", err)
	}

	stats.GrossRevenue = stats.GrossRevenue.Round(2)
	stats.AverageTicket = stats.AverageTicket.Round(2)
	return stats, nil
}

// InTx runs fn inside a database transaction. Any error rolls everything
// back; the commit error surfaces otherwise.
func (s *OrderStore) InTx(ctx context.Context, fn func(tx order.Tx) error) error {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = pgTx.Rollback(ctx) }()

	if err := fn(&checkoutTx{tx: pgTx}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// checkoutTx implements order.Tx on a pgx transaction.
type checkoutTx struct {
	tx pgx.Tx
}

var _ order.Tx = (*checkoutTx)(nil)

func (t *checkoutTx) CreateOrder(ctx context.Context, o *order.Order) error {
	_, err := t.tx.Exec(ctx, insertOrderSQL,
		o.ID, o.Number, o.CustomerID, string(o.Status), string(o.DeliveryMode),
		o.CustomerName, o.CustomerEmail, o.CustomerPhone,
		o.Address.CEP, o.Address.Street, o.Address.Number, o.Address.Complement,
		o.Address.District, o.Address.City, o.Address.State,
		o.Subtotal, o.Discount, o.ShippingFee, o.Total, o.CouponCode, o.Notes,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.Number, err)
	}
	return nil
}

func (t *checkoutTx) CreateLine(ctx context.Context, line *order.Line) error {
	_, err := t.tx.Exec(ctx, insertOrderLineSQL,
		line.ID, line.OrderID, line.ProductID, line.Quantity, line.UnitPrice, line.Subtotal,
	)
	if err != nil {
		return fmt.Errorf("creating order line: %w", err)
	}
	return nil
}

func (t *checkoutTx) DecrementStock(ctx context.Context, productID string, qty int) error {
	tag, err := t.tx.Exec(ctx, decrementStockSQL, productID, qty)
	if err != nil {
		return fmt.Errorf("decrementing stock for %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrStockConflict
	}
	return nil
}

func (t *checkoutTx) RestoreStock(ctx context.Context, productID string, qty int) error {
	_, err := t.tx.Exec(ctx, restoreStockSQL, productID, qty)
	if err != nil {
		return fmt.Errorf("restoring stock for %q: %w", productID, err)
	}
	return nil
}

func (t *checkoutTx) CreatePayment(ctx context.Context, p *payment.Payment) error {
	var metadata []byte
	if len(p.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(p.Metadata)
		if err != nil {
			return fmt.Errorf("encoding payment metadata: %w", err)
		}
	}

	_, err := t.tx.Exec(ctx, insertPaymentSQL,
		p.ID, p.OrderID, string(p.Method), string(p.Status), p.Amount,
		decimalPtr(p.PaidAmount), decimalPtr(p.Change), p.TransactionID, metadata,
	)
	if err != nil {
		return fmt.Errorf("creating payment: %w", err)
	}
	return nil
}

func (t *checkoutTx) SetPaymentStatus(ctx context.Context, paymentID string, status payment.Status) error {
	_, err := t.tx.Exec(ctx, setPaymentStatusSQL, paymentID, string(status))
	if err != nil {
		return fmt.Errorf("setting payment status: %w", err)
	}
	return nil
}

func (t *checkoutTx) SetOrderStatus(ctx context.Context, orderID string, status order.Status) error {
	_, err := t.tx.Exec(ctx, setOrderStatusSQL, orderID, string(status))
	if err != nil {
		return fmt.Errorf("setting order status: %w", err)
	}
	return nil
}

func (t *checkoutTx) ConsumeCoupon(ctx context.Context, code string) error {
	tag, err := t.tx.Exec(ctx, consumeCouponSQL, code)
	if err != nil {
		return fmt.Errorf("consuming coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrExhausted
	}
	return nil
}

func (t *checkoutTx) ClearCart(ctx context.Context, cartID string) error {
	_, err := t.tx.Exec(ctx, clearCartSQL, cartID)
	if err != nil {
		return fmt.Errorf("clearing cart %q: %w", cartID, err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o            order.Order
		status       string
		deliveryMode string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &status, &deliveryMode,
		&o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.Address.CEP, &o.Address.Street, &o.Address.Number, &o.Address.Complement,
		&o.Address.District, &o.Address.City, &o.Address.State,
		&o.Subtotal, &o.Discount, &o.ShippingFee, &o.Total,
		&o.CouponCode, &o.Notes, &o.CreatedAt,
	)
	o.Status = order.Status(status)
	o.DeliveryMode = shipping.DeliveryMode(deliveryMode)
	return o, err
}

func decimalPtr(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}
