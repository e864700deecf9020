package order

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xeniko/shop-admin/internal/audit"
)

// Service encapsulates the order lifecycle: atomic creation with inventory
// reservation, and the status state machine including transactional
// cancellation.
type Service struct {
	orders   Repository
	auditlog audit.Recorder
}

// NewService creates an order Service with the required dependencies.
func NewService(orders Repository, auditlog audit.Recorder) *Service {
	return &Service{
		orders:   orders,
		auditlog: auditlog,
	}
}

// Create validates the request and persists the order, its items and the
// corresponding stock decrements as a single atomic unit. On success the
// order starts PENDING with payment status INITIATED.
func (s *Service) Create(ctx context.Context, userID string, items []NewItem) (*Order, []Item, error) {
	if len(items) == 0 {
		return nil, nil, ErrEmptyItems
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, nil, &InvalidQuantityError{ProductID: it.ProductID}
		}
	}

	o, lines, err := s.orders.Create(ctx, userID, items)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create order")
	}

	itemMeta := make([]map[string]any, len(items))
	for i, it := range items {
		itemMeta[i] = map[string]any{
			"product_id": it.ProductID,
			"quantity":   it.Quantity,
		}
	}
	audit.Log(ctx, s.auditlog, audit.Entry{
		Entity:   audit.EntityOrder,
		EntityID: o.ID,
		Action:   audit.ActionOrderCreated,
		Metadata: map[string]any{
			"total_amount": o.Total.String(),
			"items":        itemMeta,
		},
		ActorID: userID,
	})

	return o, lines, nil
}

// UpdateStatus transitions an order to next. Cancellation runs as a second
// atomic unit that restores the stock recorded in the order's items; every
// other permitted transition is a plain status write.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, next Status, actorID string) (*Order, error) {
	if !next.Valid() {
		return nil, &InvalidTransitionError{To: next}
	}

	current, _, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransition(next) {
		return nil, &InvalidTransitionError{From: current.Status, To: next}
	}

	if next == StatusCancelled {
		o, prev, err := s.orders.Cancel(ctx, orderID)
		if err != nil {
			return nil, errors.Wrap(err, "cancel order")
		}
		audit.Log(ctx, s.auditlog, audit.Entry{
			Entity:   audit.EntityOrder,
			EntityID: o.ID,
			Action:   audit.ActionOrderCancelled,
			Metadata: map[string]any{"previous_status": string(prev)},
			ActorID:  actorID,
		})
		return o, nil
	}

	o, err := s.orders.UpdateStatus(ctx, orderID, next)
	if err != nil {
		return nil, errors.Wrap(err, "update order status")
	}
	audit.Log(ctx, s.auditlog, audit.Entry{
		Entity:   audit.EntityOrder,
		EntityID: o.ID,
		Action:   audit.ActionOrderStatusChanged,
		Metadata: map[string]any{"new_status": string(next)},
		ActorID:  actorID,
	})
	return o, nil
}

// GetByID returns the order and its line items.
func (s *Service) GetByID(ctx context.Context, id string) (*Order, []Item, error) {
	return s.orders.GetByID(ctx, id)
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// ListAll returns every order, newest first.
func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.orders.ListAll(ctx)
}
