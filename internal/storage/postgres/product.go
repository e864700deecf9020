package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xeniko/shop-admin/internal/domain/product"
)

const (
	productColumns = `id, name, description, price, stock, status, images, category_id, created_at, updated_at`

	insertProductSQL = `INSERT INTO products (id, name, description, price, stock, status, images, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	getProductSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
// Image references are serialized to JSON for storage in the JSONB column.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create persists a new product row.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	imagesJSON, err := marshalImages(p.Images)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx, insertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Status, imagesJSON, p.CategoryID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "creating product %q", p.ID)
	}
	return nil
}

// Update writes only the provided fields. A stock change recomputes the
// derived status in the same statement.
func (r *ProductRepository) Update(ctx context.Context, id string, params product.UpdateParams) (*product.Product, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Name != nil {
		set("name", *params.Name)
	}
	if params.Description != nil {
		set("description", *params.Description)
	}
	if params.Price != nil {
		set("price", *params.Price)
	}
	if params.Stock != nil {
		set("stock", *params.Stock)
		set("status", product.StatusForStock(*params.Stock))
	}
	if params.CategoryID != nil {
		set("category_id", *params.CategoryID)
	}
	if params.HasImages {
		imagesJSON, err := marshalImages(params.Images)
		if err != nil {
			return nil, err
		}
		set("images", imagesJSON)
	}

	query := fmt.Sprintf(`UPDATE products SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(sets, ", "), productColumns)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "updating product %q", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "updating product %q", id)
	}
	return &p, nil
}

// Delete removes the product row.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, deleteProductSQL, id); err != nil {
		return errors.Wrapf(err, "deleting product %q", id)
	}
	return nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting product %q", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting product %q", id)
	}
	return &p, nil
}

// List returns products matching the filter, newest first.
func (r *ProductRepository) List(ctx context.Context, f product.ListFilter) ([]product.Product, error) {
	var (
		conds []string
		args  []any
	)
	if f.CategoryID != "" {
		args = append(args, f.CategoryID)
		conds = append(conds, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

func marshalImages(refs []product.ImageRef) ([]byte, error) {
	if refs == nil {
		refs = []product.ImageRef{}
	}
	b, err := json.Marshal(refs)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling image refs")
	}
	return b, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p         product.Product
		imagesRaw []byte
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Status,
		&imagesRaw, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(imagesRaw, &p.Images); err != nil {
		return p, errors.Wrap(err, "unmarshaling image refs")
	}
	return p, nil
}
