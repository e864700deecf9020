//go:build integration

// Package integration exercises the PostgreSQL repositories against a real
// database: transactional order creation under contention, cancellation
// stock restore, derived product status, and payment status propagation.
package integration

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/xeniko/shop-admin/internal/domain/product"
	"github.com/xeniko/shop-admin/internal/storage/postgres"
)

var (
	pool *pgxpool.Pool

	// testCategoryID is a shared category all seeded products hang off.
	testCategoryID string
)

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:17-alpine",
		tcpostgres.WithDatabase("shop"),
		tcpostgres.WithUsername("shop"),
		tcpostgres.WithPassword("shop"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}

	pool, err = postgres.NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	testCategoryID = uuid.New().String()
	_, err = pool.Exec(ctx,
		`INSERT INTO categories (id, name, slug) VALUES ($1, 'Desserts', 'desserts')`,
		testCategoryID,
	)
	if err != nil {
		log.Fatalf("seed category: %v", err)
	}

	return m.Run()
}

// seedProduct inserts a product row directly and returns its id.
func seedProduct(t *testing.T, price string, stock int) string {
	t.Helper()

	id := uuid.New().String()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO products (id, name, description, price, stock, status, category_id)
		 VALUES ($1, $2, '', $3, $4, $5, $6)`,
		id, "product-"+id[:8], decimal.RequireFromString(price), stock,
		product.StatusForStock(stock), testCategoryID,
	)
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return id
}

func productState(t *testing.T, id string) (stock int, status string) {
	t.Helper()

	err := pool.QueryRow(context.Background(),
		`SELECT stock, status FROM products WHERE id = $1`, id,
	).Scan(&stock, &status)
	if err != nil {
		t.Fatalf("query product %s: %v", id, err)
	}
	return stock, status
}

func orderState(t *testing.T, id string) (status, paymentStatus string, total decimal.Decimal) {
	t.Helper()

	err := pool.QueryRow(context.Background(),
		`SELECT status, payment_status, total_amount FROM orders WHERE id = $1`, id,
	).Scan(&status, &paymentStatus, &total)
	if err != nil {
		t.Fatalf("query order %s: %v", id, err)
	}
	return status, paymentStatus, total
}

func fmtUser() string {
	return fmt.Sprintf("user-%s", uuid.New().String()[:8])
}
