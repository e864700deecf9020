package category

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for category operations.
var (
	ErrNotFound = errors.New("category not found")
	// ErrInUse is returned when a soft-delete is rejected because products
	// still reference the category.
	ErrInUse = errors.New("category has products assigned")
)

// Status is the category lifecycle state. Deletion is a soft transition to
// INACTIVE, never a row removal.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Category groups products. Slug is derived from the name and recomputed
// whenever the name changes.
type Category struct {
	ID        string
	Name      string
	Slug      string
	Status    Status
	CreatedAt time.Time
}

// Repository defines persistence operations for categories.
type Repository interface {
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) error
	SetStatus(ctx context.Context, id string, status Status) (*Category, error)
	GetByID(ctx context.Context, id string) (*Category, error)
	List(ctx context.Context) ([]Category, error)
	// CountProducts returns how many products currently reference the
	// category.
	CountProducts(ctx context.Context, id string) (int, error)
}
