// Command catalog-ingest bulk-loads products from gzipped JSONL catalog
// dumps (one product object per line). Files are processed concurrently;
// rows are upserted by product id, so re-running an ingest is safe.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xeniko/shop-admin/internal/domain/product"
	"github.com/xeniko/shop-admin/internal/storage/postgres"
)

const progressEvery = 10_000

type productLine struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryID  string
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog*.jsonl.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "catalog*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob catalog files")
	}
	if len(files) == 0 {
		return errors.Errorf("no catalog*.jsonl.gz files in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("ingesting catalog files", slog.Int("files", len(files)))

	g, ctx := errgroup.WithContext(ctx)
	for _, f := range files {
		g.Go(func() error {
			return ingestFile(ctx, pool, f)
		})
	}
	return g.Wait()
}

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

// ingestFile streams one gzipped JSONL file line by line and upserts each
// product.
func ingestFile(ctx context.Context, pool *pgxpool.Pool, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var count uint64
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		p, err := parseLine(line)
		if err != nil {
			return errors.Wrapf(err, "parse line %d of %s", count+1, path)
		}

		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Description, p.Price, p.Stock,
			product.StatusForStock(p.Stock), p.CategoryID,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		count++
		if count%progressEvery == 0 {
			slog.Info("ingest progress",
				slog.String("file", filepath.Base(path)),
				slog.Uint64("products", count),
			)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("ingest complete",
		slog.String("file", filepath.Base(path)),
		slog.Uint64("products", count),
	)
	return nil
}

// parseLine decodes one JSONL product object.
func parseLine(line []byte) (productLine, error) {
	var p productLine
	d := jx.DecodeBytes(line)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			p.ID = v
			return err
		case "name":
			v, err := d.Str()
			p.Name = v
			return err
		case "description":
			v, err := d.Str()
			p.Description = v
			return err
		case "price":
			n, err := d.Num()
			if err != nil {
				return err
			}
			p.Price, err = decimal.NewFromString(n.String())
			return err
		case "stock":
			v, err := d.Int()
			p.Stock = v
			return err
		case "category_id":
			v, err := d.Str()
			p.CategoryID = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return p, err
	}
	if p.ID == "" {
		return p, errors.New("missing product id")
	}
	if p.CategoryID == "" {
		return p, errors.New("missing category id")
	}
	return p, nil
}
