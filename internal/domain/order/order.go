package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is the order lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// statusRank orders the forward-only lifecycle states. CANCELLED sits
// outside the ranking and is handled separately.
var statusRank = map[Status]int{
	StatusPending:   0,
	StatusPaid:      1,
	StatusShipped:   2,
	StatusDelivered: 3,
}

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == StatusCancelled
}

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether an order in state s may move to state to.
// Transitions only move forward through the lifecycle; CANCELLED is
// reachable from any non-terminal state and is itself terminal.
func (s Status) CanTransition(to Status) bool {
	if s.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	next, ok := statusRank[to]
	if !ok {
		return false
	}
	return next > from
}

// PaymentStatus mirrors the latest terminal payment event for an order.
type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "INITIATED"
	PaymentSuccess   PaymentStatus = "SUCCESS"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Order is a customer order. Total is fixed at creation time as the sum of
// its items' price*quantity; only a full cancellation reverses its
// inventory effects.
type Order struct {
	ID            string
	UserID        string
	Total         decimal.Decimal
	Status        Status
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Item is a single order line. Price is snapshotted from the product at
// order time; items are never mutated after creation.
type Item struct {
	ID        string
	OrderID   string
	ProductID string
	Price     decimal.Decimal
	Quantity  int
}

// NewItem is the caller-supplied input for one order line.
type NewItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Repository defines persistence operations for orders.
//
// Create and Cancel are atomic units: stock checks, row writes and stock
// adjustments either all take effect or none do, and two concurrent calls
// cannot both consume the same stock.
type Repository interface {
	Create(ctx context.Context, userID string, items []NewItem) (*Order, []Item, error)
	// Cancel sets the order CANCELLED and restores the stock recorded in
	// its items. It returns the order and its status before cancellation.
	Cancel(ctx context.Context, orderID string) (*Order, Status, error)
	UpdateStatus(ctx context.Context, orderID string, status Status) (*Order, error)
	GetByID(ctx context.Context, id string) (*Order, []Item, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
}
