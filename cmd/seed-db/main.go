// Command seed-db loads the catalog, demo coupons, and a demo customer with
// its API key into the database. Safe to run repeatedly: every insert is an
// upsert.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/docebrew/cupcakeria/internal/domain/auth"
	"github.com/docebrew/cupcakeria/internal/repository"
)

type categoryJSON struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

type productJSON struct {
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
	Featured    bool            `json:"featured"`
	Stock       int             `json:"stock"`
}

type seedFile struct {
	Categories []categoryJSON `json:"categories"`
	Products   []productJSON  `json:"products"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to catalog JSON file")
	flag.StringVar(&apiKey, "api-key", "", "demo API key to seed (or CUPCAKE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CUPCAKE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("CUPCAKE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or CUPCAKE_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CUPCAKE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedDemoCustomer(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed demo customer")
	}

	return nil
}

const upsertCategorySQL = `
INSERT INTO categories (id, name, slug, description)
VALUES ($1, $2, $3, $4)
ON CONFLICT (slug) DO UPDATE SET
    name        = EXCLUDED.name,
    description = EXCLUDED.description
RETURNING id`

const upsertProductSQL = `
INSERT INTO products (id, name, slug, description, price, category_id, image_url, featured, stock)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (slug) DO UPDATE SET
    name        = EXCLUDED.name,
    description = EXCLUDED.description,
    price       = EXCLUDED.price,
    category_id = EXCLUDED.category_id,
    image_url   = EXCLUDED.image_url,
    featured    = EXCLUDED.featured,
    stock       = EXCLUDED.stock,
    updated_at  = now()`

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading catalog file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	categoryIDs := make(map[string]string, len(seed.Categories))
	for _, c := range seed.Categories {
		var id string
		err := pool.QueryRow(ctx, upsertCategorySQL, uuid.NewString(), c.Name, c.Slug, c.Description).Scan(&id)
		if err != nil {
			return errors.Wrapf(err, "upsert category %s", c.Slug)
		}
		categoryIDs[c.Slug] = id
	}

	slog.Info("upserting products", slog.Int("count", len(seed.Products)))

	for _, p := range seed.Products {
		categoryID, ok := categoryIDs[p.Category]
		if !ok {
			return errors.Errorf("product %s references unknown category %s", p.Slug, p.Category)
		}

		_, err := pool.Exec(ctx, upsertProductSQL,
			uuid.NewString(), p.Name, p.Slug, p.Description, p.Price,
			categoryID, p.ImageURL, p.Featured, p.Stock,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.Slug)
		}

		slog.Info("upserted product", slog.String("slug", p.Slug), slog.String("name", p.Name))
	}

	return nil
}

const upsertCouponSQL = `
INSERT INTO coupons (code, description, kind, value, min_order_value, starts_at, ends_at, max_uses, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
ON CONFLICT (code) DO UPDATE SET
    description     = EXCLUDED.description,
    kind            = EXCLUDED.kind,
    value           = EXCLUDED.value,
    min_order_value = EXCLUDED.min_order_value,
    starts_at       = EXCLUDED.starts_at,
    ends_at         = EXCLUDED.ends_at,
    max_uses        = EXCLUDED.max_uses,
    active          = TRUE`

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding store coupons")

	now := time.Now()
	coupons := []struct {
		code        string
		description string
		kind        string
		value       decimal.Decimal
		minOrder    decimal.Decimal
		maxUses     int
	}{
		{
			code:        "DESCONTO10",
			description: "10% de desconto em pedidos acima de R$ 50,00",
			kind:        "percentage",
			value:       decimal.NewFromInt(10),
			minOrder:    decimal.NewFromInt(50),
			maxUses:     1000,
		},
		{
			code:        "BEMVINDO15",
			description: "R$ 15,00 de desconto no primeiro pedido",
			kind:        "fixed",
			value:       decimal.NewFromInt(15),
			minOrder:    decimal.NewFromInt(60),
			maxUses:     500,
		},
		{
			code:        "FRETEGRATIS",
			description: "R$ 30,00 de desconto para compensar o frete",
			kind:        "fixed",
			value:       decimal.NewFromInt(30),
			minOrder:    decimal.NewFromInt(120),
			maxUses:     200,
		},
	}

	for _, c := range coupons {
		_, err := pool.Exec(ctx, upsertCouponSQL,
			c.code, c.description, c.kind, c.value, c.minOrder,
			now, now.AddDate(1, 0, 0), c.maxUses,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}

		slog.Info("upserted coupon", slog.String("code", c.code), slog.String("description", c.description))
	}

	return nil
}

const upsertCustomerSQL = `
INSERT INTO customers (id, name, email, phone)
VALUES ($1, $2, $3, $4)
ON CONFLICT (email) DO UPDATE SET
    name  = EXCLUDED.name,
    phone = EXCLUDED.phone
RETURNING id`

const upsertAPIKeySQL = `
INSERT INTO api_keys (id, key_hash, customer_id, name)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key_hash) DO UPDATE SET
    customer_id = EXCLUDED.customer_id,
    name        = EXCLUDED.name`

func seedDemoCustomer(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding demo customer and API key")

	var customerID string
	err := pool.QueryRow(ctx, upsertCustomerSQL,
		uuid.NewString(), "Cliente Demo", "demo@cupcakeria.com.br", "+55 51 99999-0000",
	).Scan(&customerID)
	if err != nil {
		return errors.Wrap(err, "upsert demo customer")
	}

	keyHash := auth.HashKey([]byte(pepper), apiKey)

	_, err = pool.Exec(ctx, upsertAPIKeySQL, uuid.NewString(), keyHash, customerID, "Demo key")
	if err != nil {
		return errors.Wrap(err, "upsert demo API key")
	}

	slog.Info("upserted demo customer", slog.String("email", "demo@cupcakeria.com.br"))

	return nil
}
