// Package audit defines the append-only audit trail written after every
// mutating business operation. Audit writes are strictly best-effort: a
// failed append is logged and dropped, it never changes the outcome of the
// operation that produced it.
package audit

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Entity kinds recorded in the trail.
const (
	EntityOrder    = "ORDER"
	EntityProduct  = "PRODUCT"
	EntityPayment  = "PAYMENT"
	EntityCategory = "CATEGORY"
)

// Action tags recorded in the trail.
const (
	ActionOrderCreated       = "ORDER_CREATED"
	ActionOrderCancelled     = "ORDER_CANCELLED"
	ActionOrderStatusChanged = "ORDER_STATUS_CHANGED"
	ActionPaymentInitiated   = "PAYMENT_INITIATED"
	ActionProductCreated     = "PRODUCT_CREATED"
	ActionProductUpdated     = "PRODUCT_UPDATED"
	ActionProductDeleted     = "PRODUCT_DELETED"
	ActionCategoryDeleted    = "CATEGORY_DELETED"
)

// Entry is a single immutable audit record.
type Entry struct {
	Entity   string
	EntityID string
	Action   string
	Metadata map[string]any
	// ActorID identifies the authenticated principal that performed the
	// action. Empty for system-initiated or unauthenticated operations.
	ActorID string
}

// Recorder appends entries to a durable audit sink.
type Recorder interface {
	Append(ctx context.Context, e Entry) error
}

// Log appends e through r, swallowing any failure. The only trace of a
// failed append is a warning on the context logger.
func Log(ctx context.Context, r Recorder, e Entry) {
	if err := r.Append(ctx, e); err != nil {
		zctx.From(ctx).Warn("Audit append failed",
			zap.String("entity", e.Entity),
			zap.String("entity_id", e.EntityID),
			zap.String("action", e.Action),
			zap.Error(err),
		)
	}
}
