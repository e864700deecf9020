package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for payment operations.
var (
	ErrNotFound      = errors.New("payment not found")
	ErrInvalidStatus = errors.New("invalid payment status")
)

// InvalidAmountError indicates a payment amount outside the accepted range
// for the order.
type InvalidAmountError struct {
	Amount     decimal.Decimal
	OrderTotal decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("payment amount %s invalid for order total %s",
		e.Amount.String(), e.OrderTotal.String())
}

// Status is the payment attempt state. INITIATED is the creation state;
// the rest are set via explicit status updates.
type Status string

const (
	StatusInitiated Status = "INITIATED"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

// UpdatableStatus reports whether s is a legal target for a status update.
func UpdatableStatus(s Status) bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// Payment is one payment attempt against an order. Retries create new
// rows; an order may have many payments.
type Payment struct {
	ID        string
	OrderID   string
	Amount    decimal.Decimal
	Provider  string
	Status    Status
	CreatedAt time.Time
}

// Repository defines persistence operations for payments.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	// UpdateStatus overwrites the payment status and propagates it to the
	// owning order's payment_status within the same transaction.
	UpdateStatus(ctx context.Context, id string, status Status) (*Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]Payment, error)
}
