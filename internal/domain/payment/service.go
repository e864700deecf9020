package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xeniko/shop-admin/internal/audit"
	"github.com/xeniko/shop-admin/internal/domain/order"
)

// Orders is the narrow order lookup the payment service needs.
type Orders interface {
	GetByID(ctx context.Context, id string) (*order.Order, []order.Item, error)
}

// Service tracks payment attempts against orders.
type Service struct {
	payments Repository
	orders   Orders
	auditlog audit.Recorder
}

// NewService creates a payment Service.
func NewService(payments Repository, orders Orders, auditlog audit.Recorder) *Service {
	return &Service{
		payments: payments,
		orders:   orders,
		auditlog: auditlog,
	}
}

// Create records a new payment attempt in the INITIATED state. The amount
// must be positive and must not exceed the order total; retries after a
// failed attempt are legal and create additional rows.
func (s *Service) Create(ctx context.Context, orderID string, amount decimal.Decimal, provider string) (*Payment, error) {
	o, _, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() || amount.GreaterThan(o.Total) {
		return nil, &InvalidAmountError{Amount: amount, OrderTotal: o.Total}
	}

	p := &Payment{
		ID:       uuid.New().String(),
		OrderID:  orderID,
		Amount:   amount,
		Provider: provider,
		Status:   StatusInitiated,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create payment")
	}

	audit.Log(ctx, s.auditlog, audit.Entry{
		Entity:   audit.EntityPayment,
		EntityID: p.ID,
		Action:   audit.ActionPaymentInitiated,
		Metadata: map[string]any{
			"order_id": orderID,
			"amount":   amount.String(),
			"provider": provider,
		},
	})
	return p, nil
}

// UpdateStatus overwrites the payment status with a terminal or refund
// state and propagates it onto the owning order's payment status.
func (s *Service) UpdateStatus(ctx context.Context, paymentID string, status Status, actorID string) (*Payment, error) {
	if !UpdatableStatus(status) {
		return nil, ErrInvalidStatus
	}

	p, err := s.payments.UpdateStatus(ctx, paymentID, status)
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, s.auditlog, audit.Entry{
		Entity:   audit.EntityPayment,
		EntityID: p.ID,
		Action:   "PAYMENT_" + string(status),
		Metadata: map[string]any{
			"status":   string(status),
			"order_id": p.OrderID,
		},
		ActorID: actorID,
	})
	return p, nil
}

// ListByOrder returns all payment attempts for an order, newest first.
func (s *Service) ListByOrder(ctx context.Context, orderID string) ([]Payment, error) {
	return s.payments.ListByOrder(ctx, orderID)
}
