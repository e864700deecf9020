package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xeniko/shop-admin/internal/domain/category"
	"github.com/xeniko/shop-admin/internal/domain/product"
)

const (
	insertCategorySQL = `INSERT INTO categories (id, name, slug, status)
		VALUES ($1, $2, $3, $4) RETURNING created_at`

	updateCategorySQL = `UPDATE categories SET name = $2, slug = $3 WHERE id = $1`

	setCategoryStatusSQL = `UPDATE categories SET status = $2 WHERE id = $1
		RETURNING id, name, slug, status, created_at`

	getCategorySQL = `SELECT id, name, slug, status, created_at FROM categories WHERE id = $1`

	listCategoriesSQL = `SELECT id, name, slug, status, created_at
		FROM categories ORDER BY created_at DESC`

	categoryExistsSQL = `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`

	countCategoryProductsSQL = `SELECT count(*) FROM products WHERE category_id = $1`
)

var (
	_ category.Repository     = (*CategoryRepository)(nil)
	_ product.CategoryChecker = (*CategoryRepository)(nil)
)

// CategoryRepository implements category.Repository backed by PostgreSQL.
// It also serves as the product coordinator's category existence check.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// Create persists a new category.
func (r *CategoryRepository) Create(ctx context.Context, c *category.Category) error {
	err := r.pool.QueryRow(ctx, insertCategorySQL, c.ID, c.Name, c.Slug, c.Status).Scan(&c.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "creating category %q", c.ID)
	}
	return nil
}

// Update writes the category's name and slug.
func (r *CategoryRepository) Update(ctx context.Context, c *category.Category) error {
	tag, err := r.pool.Exec(ctx, updateCategorySQL, c.ID, c.Name, c.Slug)
	if err != nil {
		return errors.Wrapf(err, "updating category %q", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return category.ErrNotFound
	}
	return nil
}

// SetStatus overwrites the category status.
func (r *CategoryRepository) SetStatus(ctx context.Context, id string, status category.Status) (*category.Category, error) {
	rows, err := r.pool.Query(ctx, setCategoryStatusSQL, id, status)
	if err != nil {
		return nil, errors.Wrapf(err, "setting status for category %q", id)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, category.ErrNotFound
		}
		return nil, errors.Wrapf(err, "setting status for category %q", id)
	}
	return &c, nil
}

// GetByID returns a single category.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*category.Category, error) {
	rows, err := r.pool.Query(ctx, getCategorySQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting category %q", id)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, category.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting category %q", id)
	}
	return &c, nil
}

// List returns all categories, newest first.
func (r *CategoryRepository) List(ctx context.Context) ([]category.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing categories")
	}
	return pgx.CollectRows(rows, scanCategory)
}

// Exists reports whether the category id resolves.
func (r *CategoryRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, categoryExistsSQL, id).Scan(&exists); err != nil {
		return false, errors.Wrapf(err, "checking category %q", id)
	}
	return exists, nil
}

// CountProducts returns how many products reference the category.
func (r *CategoryRepository) CountProducts(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, countCategoryProductsSQL, id).Scan(&count); err != nil {
		return 0, errors.Wrapf(err, "counting products in category %q", id)
	}
	return count, nil
}

func scanCategory(row pgx.CollectableRow) (category.Category, error) {
	var c category.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Status, &c.CreatedAt)
	return c, err
}
