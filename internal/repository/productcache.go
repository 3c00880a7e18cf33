package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/docebrew/cupcakeria/internal/domain/product"
)

// CachedProductRepository is a read-through Redis cache in front of a
// product.Repository. Entries carry a short TTL because stock changes commit
// directly to the database; the checkout transaction's guarded stock
// decrement remains the source of truth, so a stale cached stock count can
// only produce a friendlier early failure, never an oversell.
type CachedProductRepository struct {
	inner  product.Repository
	client *redis.Client
	ttl    time.Duration
	lg     *zap.Logger
}

var _ product.Repository = (*CachedProductRepository)(nil)

// NewCachedProductRepository wraps inner with a Redis cache.
func NewCachedProductRepository(inner product.Repository, client *redis.Client, ttl time.Duration, lg *zap.Logger) *CachedProductRepository {
	return &CachedProductRepository{inner: inner, client: client, ttl: ttl, lg: lg}
}

// List returns products for the filter, cached per filter combination.
func (r *CachedProductRepository) List(ctx context.Context, filter product.ListFilter) ([]product.Product, error) {
	key := fmt.Sprintf("products:list:%s:%t", filter.CategorySlug, filter.FeaturedOnly)

	var cached []product.Product
	if r.load(ctx, key, &cached) {
		return cached, nil
	}

	products, err := r.inner.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	r.save(ctx, key, products)
	return products, nil
}

// GetByID returns one product, cached by ID.
func (r *CachedProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	return r.getOne(ctx, "products:id:"+id, func() (*product.Product, error) {
		return r.inner.GetByID(ctx, id)
	})
}

// GetBySlug returns one product, cached by slug.
func (r *CachedProductRepository) GetBySlug(ctx context.Context, slug string) (*product.Product, error) {
	return r.getOne(ctx, "products:slug:"+slug, func() (*product.Product, error) {
		return r.inner.GetBySlug(ctx, slug)
	})
}

// ListCategories returns the menu categories, cached under one key.
func (r *CachedProductRepository) ListCategories(ctx context.Context) ([]product.Category, error) {
	const key = "categories:list"

	var cached []product.Category
	if r.load(ctx, key, &cached) {
		return cached, nil
	}

	categories, err := r.inner.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	r.save(ctx, key, categories)
	return categories, nil
}

func (r *CachedProductRepository) getOne(ctx context.Context, key string, fetch func() (*product.Product, error)) (*product.Product, error) {
	var cached product.Product
	if r.load(ctx, key, &cached) {
		return &cached, nil
	}

	p, err := fetch()
	if err != nil {
		return nil, err
	}
	r.save(ctx, key, p)
	return p, nil
}

// load fills dest from the cache. Cache misses and errors both report false;
// errors other than a miss are logged since the database still answers.
func (r *CachedProductRepository) load(ctx context.Context, key string, dest any) bool {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.lg.Warn("product cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		r.lg.Warn("product cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (r *CachedProductRepository) save(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		r.lg.Warn("product cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.lg.Warn("product cache write failed", zap.String("key", key), zap.Error(err))
	}
}
