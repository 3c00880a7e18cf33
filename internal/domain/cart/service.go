package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/docebrew/cupcakeria/internal/domain/product"
)

// Service implements the cart aggregate operations. Stock is checked against
// the live catalog on every mutation and re-checked at checkout time.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{carts: carts, products: products}
}

// AddItem merges qty of the product into the customer's cart, creating a new
// line when none exists. Fails when the product is unavailable or the
// cumulative quantity would exceed current stock.
func (s *Service) AddItem(ctx context.Context, customerID, productID string, qty int) (*View, error) {
	if qty < 1 {
		qty = 1
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Available() {
		return nil, &UnavailableError{ProductName: p.Name}
	}

	c, err := s.carts.GetOrCreate(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	existing, err := s.carts.FindLineByProduct(ctx, c.ID, productID)
	if err != nil && !errors.Is(err, ErrLineNotFound) {
		return nil, errors.Wrap(err, "find cart line")
	}

	wanted := qty
	if existing != nil {
		wanted += existing.Quantity
	}
	if p.Stock < wanted {
		return nil, &InsufficientStockError{ProductName: p.Name, Available: p.Stock}
	}

	if existing != nil {
		if err := s.carts.UpdateLineQuantity(ctx, existing.ID, wanted); err != nil {
			return nil, errors.Wrap(err, "update cart line")
		}
	} else {
		line := &Line{
			ID:        uuid.New().String(),
			CartID:    c.ID,
			ProductID: productID,
			Quantity:  qty,
		}
		if err := s.carts.CreateLine(ctx, line); err != nil {
			return nil, errors.Wrap(err, "create cart line")
		}
	}

	return s.view(ctx, c)
}

// UpdateQuantity overwrites a line's quantity. Quantities below 1 remove the
// line instead.
func (s *Service) UpdateQuantity(ctx context.Context, customerID, lineID string, qty int) (*View, error) {
	if qty < 1 {
		return s.RemoveItem(ctx, customerID, lineID)
	}

	c, err := s.carts.GetOrCreate(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	line, err := s.carts.FindLine(ctx, c.ID, lineID)
	if err != nil {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}
	if p.Stock < qty {
		return nil, &InsufficientStockError{ProductName: p.Name, Available: p.Stock}
	}

	if err := s.carts.UpdateLineQuantity(ctx, line.ID, qty); err != nil {
		return nil, errors.Wrap(err, "update cart line")
	}

	return s.view(ctx, c)
}

// RemoveItem deletes a line from the customer's cart.
func (s *Service) RemoveItem(ctx context.Context, customerID, lineID string) (*View, error) {
	c, err := s.carts.GetOrCreate(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	line, err := s.carts.FindLine(ctx, c.ID, lineID)
	if err != nil {
		return nil, err
	}
	if err := s.carts.DeleteLine(ctx, line.ID); err != nil {
		return nil, errors.Wrap(err, "delete cart line")
	}

	return s.view(ctx, c)
}

// Clear empties the customer's cart.
func (s *Service) Clear(ctx context.Context, customerID string) error {
	c, err := s.carts.GetOrCreate(ctx, customerID)
	if err != nil {
		return errors.Wrap(err, "get cart")
	}
	return s.carts.Clear(ctx, c.ID)
}

// Get returns the customer's cart with computed totals.
func (s *Service) Get(ctx context.Context, customerID string) (*View, error) {
	c, err := s.carts.GetOrCreate(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return s.view(ctx, c)
}

// ValidateForCheckout re-validates every line against the live catalog:
// the cart must be non-empty, every product still available, and every
// quantity still covered by stock.
func (s *Service) ValidateForCheckout(ctx context.Context, v *View) error {
	if len(v.Lines) == 0 {
		return ErrEmpty
	}

	for _, line := range v.Lines {
		p, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			return err
		}
		if !p.Available() {
			return &UnavailableError{ProductName: p.Name}
		}
		if p.Stock < line.Quantity {
			return &InsufficientStockError{ProductName: p.Name, Available: p.Stock}
		}
	}

	return nil
}

func (s *Service) view(ctx context.Context, c *Cart) (*View, error) {
	lines, err := s.carts.Lines(ctx, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart lines")
	}

	v := &View{Cart: *c, Subtotal: decimal.Zero}
	for _, line := range lines {
		p, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}

		subtotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		v.Lines = append(v.Lines, LineView{
			Line:        line,
			ProductName: p.Name,
			UnitPrice:   p.Price,
			Subtotal:    subtotal,
		})
		v.Subtotal = v.Subtotal.Add(subtotal)
		v.ItemCount += line.Quantity
	}

	return v, nil
}
