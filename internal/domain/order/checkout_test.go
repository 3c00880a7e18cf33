package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docebrew/cupcakeria/internal/domain/cart"
	"github.com/docebrew/cupcakeria/internal/domain/coupon"
	"github.com/docebrew/cupcakeria/internal/domain/payment"
	"github.com/docebrew/cupcakeria/internal/domain/product"
	"github.com/docebrew/cupcakeria/internal/domain/shipping"
)

// stubProductRepo is the catalog the cart service validates against.
type stubProductRepo struct {
	products map[string]*product.Product
}

func (m *stubProductRepo) List(context.Context, product.ListFilter) ([]product.Product, error) {
	return nil, nil
}

func (m *stubProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	if p, ok := m.products[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, product.ErrNotFound
}

func (m *stubProductRepo) GetBySlug(context.Context, string) (*product.Product, error) {
	return nil, product.ErrNotFound
}

func (m *stubProductRepo) ListCategories(context.Context) ([]product.Category, error) {
	return nil, nil
}

type stubCartRepo struct {
	carts map[string]*cart.Cart
	lines map[string]*cart.Line
}

func newStubCartRepo() *stubCartRepo {
	return &stubCartRepo{
		carts: make(map[string]*cart.Cart),
		lines: make(map[string]*cart.Line),
	}
}

func (m *stubCartRepo) GetOrCreate(_ context.Context, customerID string) (*cart.Cart, error) {
	if c, ok := m.carts[customerID]; ok {
		return c, nil
	}
	c := &cart.Cart{ID: uuid.New().String(), CustomerID: customerID}
	m.carts[customerID] = c
	return c, nil
}

func (m *stubCartRepo) Lines(_ context.Context, cartID string) ([]cart.Line, error) {
	var lines []cart.Line
	for _, l := range m.lines {
		if l.CartID == cartID {
			lines = append(lines, *l)
		}
	}
	return lines, nil
}

func (m *stubCartRepo) FindLine(_ context.Context, cartID, lineID string) (*cart.Line, error) {
	if l, ok := m.lines[lineID]; ok && l.CartID == cartID {
		cp := *l
		return &cp, nil
	}
	return nil, cart.ErrLineNotFound
}

func (m *stubCartRepo) FindLineByProduct(_ context.Context, cartID, productID string) (*cart.Line, error) {
	for _, l := range m.lines {
		if l.CartID == cartID && l.ProductID == productID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, cart.ErrLineNotFound
}

func (m *stubCartRepo) CreateLine(_ context.Context, line *cart.Line) error {
	cp := *line
	m.lines[line.ID] = &cp
	return nil
}

func (m *stubCartRepo) UpdateLineQuantity(_ context.Context, lineID string, quantity int) error {
	if l, ok := m.lines[lineID]; ok {
		l.Quantity = quantity
		return nil
	}
	return cart.ErrLineNotFound
}

func (m *stubCartRepo) DeleteLine(_ context.Context, lineID string) error {
	delete(m.lines, lineID)
	return nil
}

func (m *stubCartRepo) Clear(_ context.Context, cartID string) error {
	for id, l := range m.lines {
		if l.CartID == cartID {
			delete(m.lines, id)
		}
	}
	return nil
}

// memStore is an in-memory order.Store with snapshot-based transaction
// rollback: InTx copies the whole state up front and restores it when fn
// fails, mirroring how the real store's database transaction behaves.
type memStore struct {
	stock        map[string]int
	orders       map[string]*Order
	numbers      map[string]string
	lines        map[string][]Line
	payments     map[string]*payment.Payment
	orderPayment map[string]string
	couponUses   map[string]int
	couponMax    map[string]int
	clearedCarts []string

	failCreatePayment bool
}

func newMemStore() *memStore {
	return &memStore{
		stock:        make(map[string]int),
		orders:       make(map[string]*Order),
		numbers:      make(map[string]string),
		lines:        make(map[string][]Line),
		payments:     make(map[string]*payment.Payment),
		orderPayment: make(map[string]string),
		couponUses:   make(map[string]int),
		couponMax:    make(map[string]int),
	}
}

func (m *memStore) snapshot() *memStore {
	cp := newMemStore()
	for k, v := range m.stock {
		cp.stock[k] = v
	}
	for k, v := range m.orders {
		o := *v
		cp.orders[k] = &o
	}
	for k, v := range m.numbers {
		cp.numbers[k] = v
	}
	for k, v := range m.lines {
		cp.lines[k] = append([]Line(nil), v...)
	}
	for k, v := range m.payments {
		p := *v
		cp.payments[k] = &p
	}
	for k, v := range m.orderPayment {
		cp.orderPayment[k] = v
	}
	for k, v := range m.couponUses {
		cp.couponUses[k] = v
	}
	for k, v := range m.couponMax {
		cp.couponMax[k] = v
	}
	cp.clearedCarts = append([]string(nil), m.clearedCarts...)
	return cp
}

func (m *memStore) restore(snap *memStore) {
	m.stock = snap.stock
	m.orders = snap.orders
	m.numbers = snap.numbers
	m.lines = snap.lines
	m.payments = snap.payments
	m.orderPayment = snap.orderPayment
	m.couponUses = snap.couponUses
	m.couponMax = snap.couponMax
	m.clearedCarts = snap.clearedCarts
}

func (m *memStore) GetByNumber(_ context.Context, number string) (*Order, error) {
	id, ok := m.numbers[number]
	if !ok {
		return nil, ErrNotFound
	}
	o := *m.orders[id]
	return &o, nil
}

func (m *memStore) Lines(_ context.Context, orderID string) ([]Line, error) {
	return append([]Line(nil), m.lines[orderID]...), nil
}

func (m *memStore) GetPayment(_ context.Context, orderID string) (*payment.Payment, error) {
	id, ok := m.orderPayment[orderID]
	if !ok {
		return nil, errors.New("payment not found")
	}
	p := *m.payments[id]
	return &p, nil
}

func (m *memStore) List(_ context.Context, filter ListFilter) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *memStore) Stats(context.Context, *time.Time, *time.Time) (*Stats, error) {
	s := &Stats{ByStatus: make(map[Status]int), GrossRevenue: decimal.Zero}
	for _, o := range m.orders {
		s.TotalOrders++
		s.GrossRevenue = s.GrossRevenue.Add(o.Total)
		s.ByStatus[o.Status]++
	}
	return s, nil
}

func (m *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	snap := m.snapshot()
	if err := fn(&memTx{store: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memTx struct {
	store *memStore
}

func (t *memTx) CreateOrder(_ context.Context, o *Order) error {
	cp := *o
	t.store.orders[o.ID] = &cp
	t.store.numbers[o.Number] = o.ID
	return nil
}

func (t *memTx) CreateLine(_ context.Context, line *Line) error {
	t.store.lines[line.OrderID] = append(t.store.lines[line.OrderID], *line)
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, productID string, qty int) error {
	if t.store.stock[productID] < qty {
		return ErrStockConflict
	}
	t.store.stock[productID] -= qty
	return nil
}

func (t *memTx) RestoreStock(_ context.Context, productID string, qty int) error {
	t.store.stock[productID] += qty
	return nil
}

func (t *memTx) CreatePayment(_ context.Context, p *payment.Payment) error {
	if t.store.failCreatePayment {
		return errors.New("payment store down")
	}
	cp := *p
	t.store.payments[p.ID] = &cp
	t.store.orderPayment[p.OrderID] = p.ID
	return nil
}

func (t *memTx) SetPaymentStatus(_ context.Context, paymentID string, status payment.Status) error {
	p, ok := t.store.payments[paymentID]
	if !ok {
		return errors.New("payment not found")
	}
	p.Status = status
	return nil
}

func (t *memTx) SetOrderStatus(_ context.Context, orderID string, status Status) error {
	o, ok := t.store.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

func (t *memTx) ConsumeCoupon(_ context.Context, code string) error {
	if t.store.couponUses[code] >= t.store.couponMax[code] {
		return coupon.ErrExhausted
	}
	t.store.couponUses[code]++
	return nil
}

func (t *memTx) ClearCart(_ context.Context, cartID string) error {
	t.store.clearedCarts = append(t.store.clearedCarts, cartID)
	return nil
}

// stubCouponRepo serves validation reads; live usage counts come from the
// store so validation and consumption see the same numbers.
type stubCouponRepo struct {
	store   *memStore
	coupons map[string]coupon.Coupon
}

func (m *stubCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.coupons[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	c.UsedCount = m.store.couponUses[c.Code]
	return &c, nil
}

func (m *stubCouponRepo) ListActive(context.Context, time.Time) ([]coupon.Coupon, error) {
	return nil, nil
}

func (m *stubCouponRepo) Consume(_ context.Context, code string) error {
	return (&memTx{store: m.store}).ConsumeCoupon(context.Background(), code)
}

type recordedEvent struct {
	kind   string
	number string
	from   Status
	to     Status
}

type recordingPublisher struct {
	events []recordedEvent
}

func (r *recordingPublisher) OrderCreated(_ context.Context, o *Order) {
	r.events = append(r.events, recordedEvent{kind: "created", number: o.Number, to: o.Status})
}

func (r *recordingPublisher) OrderStatusChanged(_ context.Context, o *Order, from, to Status) {
	r.events = append(r.events, recordedEvent{kind: "status", number: o.Number, from: from, to: to})
}

type fixture struct {
	products *stubProductRepo
	cartRepo *stubCartRepo
	carts    *cart.Service
	store    *memStore
	events   *recordingPublisher
	svc      *Service
}

func newFixture() *fixture {
	products := &stubProductRepo{products: map[string]*product.Product{
		"p-brigadeiro": {
			ID:     "p-brigadeiro",
			Name:   "Cupcake de Brigadeiro",
			Price:  decimal.NewFromFloat(10.00),
			Active: true,
			Stock:  10,
		},
		"p-morango": {
			ID:     "p-morango",
			Name:   "Cupcake de Morango",
			Price:  decimal.NewFromFloat(11.75),
			Active: true,
			Stock:  10,
		},
	}}

	store := newMemStore()
	for id, p := range products.products {
		store.stock[id] = p.Stock
	}

	now := time.Now()
	store.couponMax["DESCONTO10"] = 2
	couponRepo := &stubCouponRepo{store: store, coupons: map[string]coupon.Coupon{
		"DESCONTO10": {
			Code:          "DESCONTO10",
			Kind:          coupon.KindPercentage,
			Value:         decimal.NewFromInt(10),
			MinOrderValue: decimal.NewFromInt(50),
			StartsAt:      now.Add(-time.Hour),
			EndsAt:        now.Add(24 * time.Hour),
			MaxUses:       2,
			Active:        true,
		},
	}}

	engine := coupon.NewEngine(couponRepo)

	cartRepo := newStubCartRepo()
	carts := cart.NewService(cartRepo, products)
	events := &recordingPublisher{}

	svc := NewService(
		carts,
		engine,
		shipping.NewCalculator(shipping.DefaultConfig()),
		store,
		events,
		zap.NewNop(),
	)

	return &fixture{
		products: products,
		cartRepo: cartRepo,
		carts:    carts,
		store:    store,
		events:   events,
		svc:      svc,
	}
}

func deliveryInput(couponCode string) PlaceInput {
	return PlaceInput{
		DeliveryMode:  shipping.ModeDelivery,
		CustomerName:  "Cliente Demo",
		CustomerEmail: "demo@cupcakeria.com.br",
		Address: Address{
			CEP:    "90010-000",
			Street: "Rua dos Andradas",
			City:   "Porto Alegre",
			State:  "RS",
		},
		CouponCode:    couponCode,
		PaymentMethod: payment.MethodPix,
	}
}

func TestPlace_DeliveryWithCoupon(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	// 6x brigadeiro = 60.00; 10% off = 6.00; RS under threshold = 8.00 fee.
	_, err := f.carts.AddItem(ctx, "cust-1", "p-brigadeiro", 6)
	require.NoError(t, err)

	result, err := f.svc.Place(ctx, "cust-1", deliveryInput("DESCONTO10"))
	require.NoError(t, err)

	o := result.Order
	assert.Equal(t, "60.00", o.Subtotal.StringFixed(2))
	assert.Equal(t, "6.00", o.Discount.StringFixed(2))
	assert.Equal(t, "8.00", o.ShippingFee.StringFixed(2))
	assert.Equal(t, "62.00", o.Total.StringFixed(2))
	assert.Equal(t, "DESCONTO10", o.CouponCode)
	assert.Equal(t, StatusReceived, o.Status)
	assert.Regexp(t, `^CP[0-9A-F]{8}$`, o.Number)

	require.Len(t, result.Lines, 1)
	assert.Equal(t, "10.00", result.Lines[0].UnitPrice.StringFixed(2))

	assert.Equal(t, payment.StatusApproved, result.Payment.Status)
	assert.NotEmpty(t, result.Payment.TransactionID)

	// Stock decremented, coupon consumed once, cart cleared.
	assert.Equal(t, 4, f.store.stock["p-brigadeiro"])
	assert.Equal(t, 1, f.store.couponUses["DESCONTO10"])
	assert.Len(t, f.store.clearedCarts, 1)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, "created", f.events.events[0].kind)
}

func TestPlace_PersistsPaymentTransactionID(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.carts.AddItem(ctx, "cust-1", "p-brigadeiro", 2)
	require.NoError(t, err)

	result, err := f.svc.Place(ctx, "cust-1", deliveryInput(""))
	require.NoError(t, err)
	require.NotEmpty(t, result.Payment.TransactionID)

	// The stored payment must match what the checkout response reported.
	stored, err := f.store.GetPayment(ctx, result.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Payment.TransactionID, stored.TransactionID)
	assert.Equal(t, result.Payment.Status, stored.Status)
}

func TestPlace_FreeShippingOverThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	// 10x brigadeiro = 100.00, at the free shipping threshold.
	_, err := f.carts.AddItem(ctx, "cust-1", "p-brigadeiro", 10)
	require.NoError(t, err)

	result, err := f.svc.Place(ctx, "cust-1", deliveryInput(""))
	require.NoError(t, err)

	assert.Equal(t, "0.00", result.Order.ShippingFee.StringFixed(2))
	assert.Equal(t, "100.00", result.Order.Total.StringFixed(2))
}

func TestPlace_PickupHasNoFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.carts.AddItem(ctx, "cust-1", "p-brigadeiro", 2)
	require.NoError(t, err)

	input := deliveryInput("")
	input.DeliveryMode = shipping.ModePickup
	input.Address = Address{}

	result, err := f.svc.Place(ctx, "cust-1", input)
	require.NoError(t, err)

	assert.Equal(t, "0.00", result.Order.ShippingFee.StringFixed(2))
	assert.Equal(t, "20.00", result.Order.Total.StringFixed(2))
}

func TestPlace_CashChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	tests := []struct {
		name       string
		paid       string
		wantChange string
	}{
		{name: "overpayment yields change", paid: "30.00", wantChange: "6.50"},
		{name: "underpayment yields zero change", paid: "20.00", wantChange: "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			customerID := uuid.New().String()
			// 2x morango = 23.50, picked up in store.
			_, err := f.carts.AddItem(ctx, customerID, "p-morango", 2)
			require.NoError(t, err)

			paid, err := decimal.NewFromString(tt.paid)
			require.NoError(t, err)

			input := deliveryInput("")
			input.DeliveryMode = shipping.ModePickup
			input.PaymentMethod = payment.MethodCash
			input.PaidAmount = &paid

			result, err := f.svc.Place(ctx, customerID, input)
			require.NoError(t, err)

			assert.Equal(t, "23.50", result.Order.Total.StringFixed(2))
			require.NotNil(t, result.Payment.Change)
			assert.Equal(t, tt.wantChange, result.Payment.Change.StringFixed(2))
		})
	}
}

func TestPlace_EmptyCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.svc.Place(ctx, "cust-1", deliveryInput(""))
	assert.ErrorIs(t, err, cart.ErrEmpty)
}

func TestPlace_InvalidCouponIsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	// 3x brigadeiro = 30.00, under the coupon's 50.00 minimum.
	_, err := f.carts.AddItem(ctx, "cust-1", "p-brigadeiro", 3)
	require.NoError(t, err)

	result, err := f.svc.Place(ctx, "cust-1", deliveryInput("DESCONTO10"))
	require.NoError(t, err)

	assert.Equal(t, "0.00", result.Order.Discount.StringFixed(2))
	assert.Empty(t, result.Order.CouponCode)
	assert.Equal(t, 0, f.store.couponUses["DESCONTO10"])
}

func TestPlace_StockConflictRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.carts.AddItem(ctx, "cust-1", "p-brigadeiro", 6)
	require.NoError(t, err)

	// A concurrent checkout drained the committed stock after this cart was
	// validated against the catalog.
	f.store.stock["p-brigadeiro"] = 2

	_, err = f.svc.Place(ctx, "cust-1", deliveryInput("DESCONTO10"))

	var conflict *StockConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Cupcake de Brigadeiro", conflict.ProductName)

	// Nothing committed: no order, stock untouched, coupon unused, cart kept.
	assert.Empty(t, f.store.orders)
	assert.Equal(t, 2, f.store.stock["p-brigadeiro"])
	assert.Equal(t, 0, f.store.couponUses["DESCONTO10"])
	assert.Empty(t, f.store.clearedCarts)
	assert.Empty(t, f.events.events)
}

func TestPlace_ExhaustedCouponFailsAtCommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	// Validation reads the catalog cap of 2; the guarded consume sees the
	// store's cap already spent.
	f.store.couponMax["DESCONTO10"] = 0

	_, err := f.carts.AddItem(ctx, "cust-1", "p-brigadeiro", 6)
	require.NoError(t, err)

	_, err = f.svc.Place(ctx, "cust-1", deliveryInput("DESCONTO10"))
	require.ErrorIs(t, err, coupon.ErrExhausted)

	// The whole checkout rolled back, including the stock decrement.
	assert.Empty(t, f.store.orders)
	assert.Equal(t, 10, f.store.stock["p-brigadeiro"])
}

func TestPlace_PaymentFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.store.failCreatePayment = true

	_, err := f.carts.AddItem(ctx, "cust-1", "p-brigadeiro", 2)
	require.NoError(t, err)

	_, err = f.svc.Place(ctx, "cust-1", deliveryInput(""))
	require.Error(t, err)

	assert.Empty(t, f.store.orders)
	assert.Equal(t, 10, f.store.stock["p-brigadeiro"])
	assert.Empty(t, f.store.clearedCarts)
}

func placeOrder(t *testing.T, f *fixture, customerID string) *Result {
	t.Helper()
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, customerID, "p-brigadeiro", 3)
	require.NoError(t, err)

	result, err := f.svc.Place(ctx, customerID, deliveryInput(""))
	require.NoError(t, err)
	return result
}

func TestCancel_RestoresStockAndPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	result := placeOrder(t, f, "cust-1")
	require.Equal(t, 7, f.store.stock["p-brigadeiro"])

	o, err := f.svc.Cancel(ctx, "cust-1", result.Order.Number)
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, 10, f.store.stock["p-brigadeiro"])

	pay, err := f.store.GetPayment(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCancelled, pay.Status)
}

func TestCancel_OnlyBeforePreparation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	result := placeOrder(t, f, "cust-1")
	number := result.Order.Number

	_, err := f.svc.UpdateStatus(ctx, number, StatusPreparing)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, number, StatusReady)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, "cust-1", number)
	assert.ErrorIs(t, err, ErrCannotCancel)

	// Stock stays consumed.
	assert.Equal(t, 7, f.store.stock["p-brigadeiro"])
}

func TestCancel_OwnershipEnforced(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	result := placeOrder(t, f, "cust-1")

	_, err := f.svc.Cancel(ctx, "cust-2", result.Order.Number)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	result := placeOrder(t, f, "cust-1")
	number := result.Order.Number

	o, err := f.svc.UpdateStatus(ctx, number, StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, StatusPreparing, o.Status)

	// Skipping ahead is rejected.
	_, err = f.svc.UpdateStatus(ctx, number, StatusDelivered)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)

	// Unrecognized target statuses never enter the machine.
	_, err = f.svc.UpdateStatus(ctx, number, Status("despachado"))
	assert.ErrorAs(t, err, &invalid)
}

func TestGetAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	result := placeOrder(t, f, "cust-1")

	got, err := f.svc.Get(ctx, "cust-1", result.Order.Number)
	require.NoError(t, err)
	assert.Equal(t, result.Order.ID, got.Order.ID)
	assert.Len(t, got.Lines, 1)
	require.NotNil(t, got.Payment)

	_, err = f.svc.Get(ctx, "cust-2", result.Order.Number)
	assert.ErrorIs(t, err, ErrNotFound)

	orders, err := f.svc.List(ctx, ListFilter{CustomerID: "cust-1"})
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	orders, err = f.svc.List(ctx, ListFilter{CustomerID: "cust-1", Status: StatusCancelled})
	require.NoError(t, err)
	assert.Empty(t, orders)
}
