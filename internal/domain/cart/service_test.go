package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docebrew/cupcakeria/internal/domain/product"
)

type memCartRepo struct {
	carts map[string]*Cart
	lines map[string]*Line
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{
		carts: make(map[string]*Cart),
		lines: make(map[string]*Line),
	}
}

func (m *memCartRepo) GetOrCreate(_ context.Context, customerID string) (*Cart, error) {
	if c, ok := m.carts[customerID]; ok {
		return c, nil
	}
	c := &Cart{ID: uuid.New().String(), CustomerID: customerID}
	m.carts[customerID] = c
	return c, nil
}

func (m *memCartRepo) Lines(_ context.Context, cartID string) ([]Line, error) {
	var lines []Line
	for _, l := range m.lines {
		if l.CartID == cartID {
			lines = append(lines, *l)
		}
	}
	return lines, nil
}

func (m *memCartRepo) FindLine(_ context.Context, cartID, lineID string) (*Line, error) {
	if l, ok := m.lines[lineID]; ok && l.CartID == cartID {
		cp := *l
		return &cp, nil
	}
	return nil, ErrLineNotFound
}

func (m *memCartRepo) FindLineByProduct(_ context.Context, cartID, productID string) (*Line, error) {
	for _, l := range m.lines {
		if l.CartID == cartID && l.ProductID == productID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, ErrLineNotFound
}

func (m *memCartRepo) CreateLine(_ context.Context, line *Line) error {
	cp := *line
	m.lines[line.ID] = &cp
	return nil
}

func (m *memCartRepo) UpdateLineQuantity(_ context.Context, lineID string, quantity int) error {
	if l, ok := m.lines[lineID]; ok {
		l.Quantity = quantity
		return nil
	}
	return ErrLineNotFound
}

func (m *memCartRepo) DeleteLine(_ context.Context, lineID string) error {
	delete(m.lines, lineID)
	return nil
}

func (m *memCartRepo) Clear(_ context.Context, cartID string) error {
	for id, l := range m.lines {
		if l.CartID == cartID {
			delete(m.lines, id)
		}
	}
	return nil
}

type memProductRepo struct {
	products map[string]*product.Product
}

func (m *memProductRepo) List(context.Context, product.ListFilter) ([]product.Product, error) {
	return nil, nil
}

func (m *memProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	if p, ok := m.products[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, product.ErrNotFound
}

func (m *memProductRepo) GetBySlug(context.Context, string) (*product.Product, error) {
	return nil, product.ErrNotFound
}

func (m *memProductRepo) ListCategories(context.Context) ([]product.Category, error) {
	return nil, nil
}

func testProducts() *memProductRepo {
	return &memProductRepo{products: map[string]*product.Product{
		"p-brigadeiro": {
			ID:     "p-brigadeiro",
			Name:   "Cupcake de Brigadeiro",
			Price:  decimal.NewFromFloat(10.00),
			Active: true,
			Stock:  5,
		},
		"p-morango": {
			ID:     "p-morango",
			Name:   "Cupcake de Morango",
			Price:  decimal.NewFromFloat(11.00),
			Active: true,
			Stock:  3,
		},
		"p-esgotado": {
			ID:     "p-esgotado",
			Name:   "Cupcake Esgotado",
			Price:  decimal.NewFromFloat(12.00),
			Active: true,
			Stock:  0,
		},
		"p-inativo": {
			ID:     "p-inativo",
			Name:   "Cupcake Inativo",
			Price:  decimal.NewFromFloat(12.00),
			Active: false,
			Stock:  10,
		},
	}}
}

func TestService_AddItem(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemCartRepo(), testProducts())

	v, err := svc.AddItem(ctx, "cust-1", "p-brigadeiro", 2)
	require.NoError(t, err)
	require.Len(t, v.Lines, 1)
	assert.Equal(t, 2, v.ItemCount)
	assert.Equal(t, "20.00", v.Subtotal.StringFixed(2))

	// Adding the same product merges into the existing line.
	v, err = svc.AddItem(ctx, "cust-1", "p-brigadeiro", 1)
	require.NoError(t, err)
	require.Len(t, v.Lines, 1)
	assert.Equal(t, 3, v.Lines[0].Quantity)
	assert.Equal(t, "30.00", v.Subtotal.StringFixed(2))
}

func TestService_AddItem_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown product", func(t *testing.T) {
		svc := NewService(newMemCartRepo(), testProducts())
		_, err := svc.AddItem(ctx, "cust-1", "p-bogus", 1)
		assert.ErrorIs(t, err, product.ErrNotFound)
	})

	t.Run("out of stock product", func(t *testing.T) {
		svc := NewService(newMemCartRepo(), testProducts())
		_, err := svc.AddItem(ctx, "cust-1", "p-esgotado", 1)
		var unavailable *UnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, "Cupcake Esgotado", unavailable.ProductName)
	})

	t.Run("inactive product", func(t *testing.T) {
		svc := NewService(newMemCartRepo(), testProducts())
		_, err := svc.AddItem(ctx, "cust-1", "p-inativo", 1)
		var unavailable *UnavailableError
		assert.ErrorAs(t, err, &unavailable)
	})

	t.Run("cumulative quantity over stock", func(t *testing.T) {
		svc := NewService(newMemCartRepo(), testProducts())
		_, err := svc.AddItem(ctx, "cust-1", "p-morango", 2)
		require.NoError(t, err)

		_, err = svc.AddItem(ctx, "cust-1", "p-morango", 2)
		var insufficient *InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, 3, insufficient.Available)
	})
}

func TestService_UpdateQuantity(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemCartRepo(), testProducts())

	v, err := svc.AddItem(ctx, "cust-1", "p-brigadeiro", 2)
	require.NoError(t, err)
	lineID := v.Lines[0].ID

	v, err = svc.UpdateQuantity(ctx, "cust-1", lineID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, v.Lines[0].Quantity)

	// Over stock.
	_, err = svc.UpdateQuantity(ctx, "cust-1", lineID, 6)
	var insufficient *InsufficientStockError
	assert.ErrorAs(t, err, &insufficient)

	// Below 1 removes the line.
	v, err = svc.UpdateQuantity(ctx, "cust-1", lineID, 0)
	require.NoError(t, err)
	assert.Empty(t, v.Lines)
}

func TestService_UpdateQuantity_UnknownLine(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemCartRepo(), testProducts())

	_, err := svc.UpdateQuantity(ctx, "cust-1", uuid.New().String(), 2)
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestService_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemCartRepo(), testProducts())

	v, err := svc.AddItem(ctx, "cust-1", "p-brigadeiro", 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "cust-1", "p-morango", 1)
	require.NoError(t, err)

	v, err = svc.RemoveItem(ctx, "cust-1", v.Lines[0].ID)
	require.NoError(t, err)
	assert.Len(t, v.Lines, 1)

	require.NoError(t, svc.Clear(ctx, "cust-1"))

	v, err = svc.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, v.Lines)
	assert.Equal(t, "0.00", v.Subtotal.StringFixed(2))
}

func TestService_ValidateForCheckout(t *testing.T) {
	ctx := context.Background()
	products := testProducts()
	svc := NewService(newMemCartRepo(), products)

	t.Run("empty cart", func(t *testing.T) {
		v, err := svc.Get(ctx, "cust-empty")
		require.NoError(t, err)
		assert.ErrorIs(t, svc.ValidateForCheckout(ctx, v), ErrEmpty)
	})

	t.Run("valid cart", func(t *testing.T) {
		v, err := svc.AddItem(ctx, "cust-1", "p-brigadeiro", 2)
		require.NoError(t, err)
		assert.NoError(t, svc.ValidateForCheckout(ctx, v))
	})

	t.Run("stock dropped since the item was added", func(t *testing.T) {
		v, err := svc.AddItem(ctx, "cust-2", "p-morango", 3)
		require.NoError(t, err)

		products.products["p-morango"].Stock = 1

		var insufficient *InsufficientStockError
		require.ErrorAs(t, svc.ValidateForCheckout(ctx, v), &insufficient)
		assert.Equal(t, 1, insufficient.Available)
	})

	t.Run("product deactivated since the item was added", func(t *testing.T) {
		v, err := svc.AddItem(ctx, "cust-3", "p-brigadeiro", 1)
		require.NoError(t, err)

		products.products["p-brigadeiro"].Active = false

		var unavailable *UnavailableError
		assert.ErrorAs(t, svc.ValidateForCheckout(ctx, v), &unavailable)
	})
}
