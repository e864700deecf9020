// Command seed-db applies migrations and loads an initial catalog
// (categories and products) from a JSON file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xeniko/shop-admin/internal/domain/product"
	"github.com/xeniko/shop-admin/internal/storage/postgres"
)

type catalogJSON struct {
	Categories []categoryJSON `json:"categories"`
	Products   []productJSON  `json:"products"`
}

type categoryJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CategoryID  string          `json:"category_id"`
}

func main() {
	var (
		databaseURL string
		catalogFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var catalog catalogJSON
	if err := json.Unmarshal(data, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	if err := seedCategories(ctx, pool, catalog.Categories); err != nil {
		return errors.Wrap(err, "seed categories")
	}
	if err := seedProducts(ctx, pool, catalog.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}

	return nil
}

const upsertCategorySQL = `INSERT INTO categories (id, name, slug, status)
	VALUES ($1, $2, $3, 'ACTIVE')
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, slug = EXCLUDED.slug`

const upsertProductSQL = `INSERT INTO products (id, name, description, price, stock, status, category_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		price = EXCLUDED.price,
		stock = EXCLUDED.stock,
		status = EXCLUDED.status,
		category_id = EXCLUDED.category_id,
		updated_at = now()`

func seedCategories(ctx context.Context, pool *pgxpool.Pool, categories []categoryJSON) error {
	slog.Info("upserting categories", slog.Int("count", len(categories)))

	for _, c := range categories {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if _, err := pool.Exec(ctx, upsertCategorySQL, c.ID, c.Name, slug.Make(c.Name)); err != nil {
			return errors.Wrapf(err, "upsert category %s", c.Name)
		}

		slog.Info("upserted category", slog.String("id", c.ID), slog.String("name", c.Name))
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []productJSON) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		status := product.StatusForStock(p.Stock)
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Description, p.Price, p.Stock, status, p.CategoryID,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}
