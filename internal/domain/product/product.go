package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for product operations.
var (
	ErrNotFound        = errors.New("product not found")
	ErrInvalidCategory = errors.New("invalid category id")
)

// Status is derived from stock on every stock-affecting mutation and is
// never set independently.
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusOutOfStock Status = "OUT_OF_STOCK"
)

// StatusForStock returns the derived status for a stock level.
func StatusForStock(stock int) Status {
	if stock == 0 {
		return StatusOutOfStock
	}
	return StatusActive
}

// ImageRef points at one stored product image: the externally resolvable
// URL plus the storage path used for deletion.
type ImageRef struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// ImageFile is a binary image pending upload.
type ImageFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Product is a catalog item. The database row is the source of truth for
// which images are live; storage objects are reconciled against it.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Status      Status
	CategoryID  string
	Images      []ImageRef
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateParams is the input for creating a product. Images are attached
// separately as files to upload.
type CreateParams struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryID  string
}

// UpdateParams carries a partial update; nil fields are left untouched.
// Images, when present, is the complete new image set — the coordinator
// diffs it against the stored one.
type UpdateParams struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	CategoryID  *string
	Images      []ImageRef
	HasImages   bool
}

// ListFilter narrows List results.
type ListFilter struct {
	CategoryID string
	Status     Status
}

// Repository defines persistence operations for products.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, id string, params UpdateParams) (*Product, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, f ListFilter) ([]Product, error)
}

// ImageStore uploads and deletes product images in the external content
// store.
type ImageStore interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (path string, err error)
	PublicURL(path string) string
	Remove(ctx context.Context, paths []string) error
}

// CategoryChecker reports whether a category exists and is usable.
type CategoryChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}
