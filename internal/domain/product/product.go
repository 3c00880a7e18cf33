package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Category groups cupcakes on the menu (Chocolate, Frutas, Especiais, ...).
type Category struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Active      bool
}

// Product represents a cupcake available in the store catalog.
type Product struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Price       decimal.Decimal
	CategoryID  string
	ImageURL    string
	Featured    bool
	Active      bool
	Stock       int
	UpdatedAt   time.Time
}

// Available reports whether the product can be sold right now.
func (p Product) Available() bool {
	return p.Active && p.Stock > 0
}

// ListFilter narrows catalog listings.
type ListFilter struct {
	CategorySlug string
	FeaturedOnly bool
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
}
