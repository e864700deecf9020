package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeniko/shop-admin/internal/audit"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	created       *Order
	createdItems  []NewItem
	createErr     error
	cancelCalled  bool
	cancelErr     error
	updateCalled  bool
	updatedStatus Status
	current       *Order
	getErr        error
}

func (m *mockOrderRepo) Create(_ context.Context, userID string, items []NewItem) (*Order, []Item, error) {
	if m.createErr != nil {
		return nil, nil, m.createErr
	}
	m.createdItems = items
	m.created = &Order{
		ID:            "order-1",
		UserID:        userID,
		Total:         decimal.RequireFromString("29.97"),
		Status:        StatusPending,
		PaymentStatus: PaymentInitiated,
	}
	lines := make([]Item, len(items))
	for i, it := range items {
		lines[i] = Item{ID: "item", OrderID: "order-1", ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return m.created, lines, nil
}

func (m *mockOrderRepo) Cancel(_ context.Context, orderID string) (*Order, Status, error) {
	m.cancelCalled = true
	if m.cancelErr != nil {
		return nil, "", m.cancelErr
	}
	prev := m.current.Status
	o := *m.current
	o.Status = StatusCancelled
	return &o, prev, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, orderID string, status Status) (*Order, error) {
	m.updateCalled = true
	m.updatedStatus = status
	o := *m.current
	o.Status = status
	return &o, nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, []Item, error) {
	if m.getErr != nil {
		return nil, nil, m.getErr
	}
	if m.current == nil {
		return nil, nil, ErrNotFound
	}
	return m.current, nil, nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID string) ([]Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) ListAll(_ context.Context) ([]Order, error) {
	return nil, nil
}

type mockRecorder struct {
	entries []audit.Entry
	err     error
}

func (m *mockRecorder) Append(_ context.Context, e audit.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

// --- Tests ---

func TestCreate_EmptyItems(t *testing.T) {
	svc := NewService(&mockOrderRepo{}, &mockRecorder{})

	_, _, err := svc.Create(context.Background(), "user-1", nil)
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestCreate_InvalidQuantity(t *testing.T) {
	svc := NewService(&mockOrderRepo{}, &mockRecorder{})

	_, _, err := svc.Create(context.Background(), "user-1", []NewItem{
		{ProductID: "p1", Quantity: 0},
	})

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
}

func TestCreate_Success(t *testing.T) {
	repo := &mockOrderRepo{}
	rec := &mockRecorder{}
	svc := NewService(repo, rec)

	o, lines, err := svc.Create(context.Background(), "user-1", []NewItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentInitiated, o.PaymentStatus)
	assert.Len(t, lines, 2)

	require.Len(t, rec.entries, 1)
	e := rec.entries[0]
	assert.Equal(t, audit.EntityOrder, e.Entity)
	assert.Equal(t, audit.ActionOrderCreated, e.Action)
	assert.Equal(t, o.ID, e.EntityID)
	assert.Equal(t, "user-1", e.ActorID)
	assert.Equal(t, "29.97", e.Metadata["total_amount"])
}

func TestCreate_InsufficientStockPropagated(t *testing.T) {
	repo := &mockOrderRepo{createErr: &InsufficientStockError{ProductID: "p1", Requested: 2, Available: 1}}
	svc := NewService(repo, &mockRecorder{})

	_, _, err := svc.Create(context.Background(), "user-1", []NewItem{
		{ProductID: "p1", Quantity: 2},
	})

	var isErr *InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, "p1", isErr.ProductID)
	assert.Equal(t, 1, isErr.Available)
}

func TestCreate_AuditFailureSwallowed(t *testing.T) {
	repo := &mockOrderRepo{}
	rec := &mockRecorder{err: errors.New("audit sink down")}
	svc := NewService(repo, rec)

	o, _, err := svc.Create(context.Background(), "user-1", []NewItem{
		{ProductID: "p1", Quantity: 1},
	})

	require.NoError(t, err)
	assert.NotNil(t, o)
}

func TestUpdateStatus_OrderNotFound(t *testing.T) {
	svc := NewService(&mockOrderRepo{}, &mockRecorder{})

	_, err := svc.UpdateStatus(context.Background(), "missing", StatusPaid, "admin-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	repo := &mockOrderRepo{current: &Order{ID: "order-1", Status: StatusPending}}
	svc := NewService(repo, &mockRecorder{})

	_, err := svc.UpdateStatus(context.Background(), "order-1", Status("ARCHIVED"), "admin-1")

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.False(t, repo.updateCalled)
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	repo := &mockOrderRepo{current: &Order{ID: "order-1", Status: StatusDelivered}}
	svc := NewService(repo, &mockRecorder{})

	_, err := svc.UpdateStatus(context.Background(), "order-1", StatusPaid, "admin-1")

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, StatusDelivered, itErr.From)
	assert.Equal(t, StatusPaid, itErr.To)
	assert.False(t, repo.updateCalled)
	assert.False(t, repo.cancelCalled)
}

func TestUpdateStatus_PlainTransition(t *testing.T) {
	repo := &mockOrderRepo{current: &Order{ID: "order-1", Status: StatusPending}}
	rec := &mockRecorder{}
	svc := NewService(repo, rec)

	o, err := svc.UpdateStatus(context.Background(), "order-1", StatusPaid, "admin-1")

	require.NoError(t, err)
	assert.Equal(t, StatusPaid, o.Status)
	assert.True(t, repo.updateCalled)
	assert.False(t, repo.cancelCalled)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, audit.ActionOrderStatusChanged, rec.entries[0].Action)
	assert.Equal(t, "PAID", rec.entries[0].Metadata["new_status"])
}

func TestUpdateStatus_CancelRecordsPreviousStatus(t *testing.T) {
	repo := &mockOrderRepo{current: &Order{ID: "order-1", Status: StatusPaid}}
	rec := &mockRecorder{}
	svc := NewService(repo, rec)

	o, err := svc.UpdateStatus(context.Background(), "order-1", StatusCancelled, "admin-1")

	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.True(t, repo.cancelCalled)
	assert.False(t, repo.updateCalled)

	require.Len(t, rec.entries, 1)
	e := rec.entries[0]
	assert.Equal(t, audit.ActionOrderCancelled, e.Action)
	assert.Equal(t, "PAID", e.Metadata["previous_status"])
	assert.Equal(t, "admin-1", e.ActorID)
}

func TestUpdateStatus_AuditFailureSwallowed(t *testing.T) {
	repo := &mockOrderRepo{current: &Order{ID: "order-1", Status: StatusPending}}
	svc := NewService(repo, &mockRecorder{err: errors.New("audit sink down")})

	o, err := svc.UpdateStatus(context.Background(), "order-1", StatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
}
