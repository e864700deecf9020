package postgres

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xeniko/shop-admin/internal/domain/order"
)

const (
	// Products are locked in id order so that two concurrent orders over
	// the same set of products cannot deadlock, and neither can observe
	// stock the other is about to consume.
	lockProductsSQL = `SELECT id, price, stock FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	insertOrderSQL = `INSERT INTO orders (id, user_id, total_amount, status, payment_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id, price, quantity)
		VALUES ($1, $2, $3, $4, $5)`

	// Derived status is recomputed in the same statement that moves stock.
	adjustStockSQL = `UPDATE products
		SET stock = stock + $2,
		    status = CASE WHEN stock + $2 = 0 THEN 'OUT_OF_STOCK' ELSE 'ACTIVE' END,
		    updated_at = now()
		WHERE id = $1`

	lockOrderSQL = `SELECT id, user_id, total_amount, status, payment_status, created_at, updated_at
		FROM orders WHERE id = $1 FOR UPDATE`

	selectOrderItemsSQL = `SELECT id, order_id, product_id, price, quantity
		FROM order_items WHERE order_id = $1`

	markCancelledSQL = `UPDATE orders SET status = 'CANCELLED', updated_at = now()
		WHERE id = $1 RETURNING updated_at`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, user_id, total_amount, status, payment_status, created_at, updated_at`

	getOrderSQL = `SELECT id, user_id, total_amount, status, payment_status, created_at, updated_at
		FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT id, user_id, total_amount, status, payment_status, created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	listAllOrdersSQL = `SELECT id, user_id, total_amount, status, payment_status, created_at, updated_at
		FROM orders ORDER BY created_at DESC`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// lockedProduct is the price/stock snapshot read under FOR UPDATE.
type lockedProduct struct {
	price decimal.Decimal
	stock int
}

// Create inserts the order and its items and decrements product stock as a
// single transaction. Stock is re-read under row locks, so concurrent
// orders against the same product serialize and cannot oversubscribe it.
func (r *OrderRepository) Create(ctx context.Context, userID string, items []order.NewItem) (*order.Order, []order.Item, error) {
	// Aggregate requested quantity per product: the same product may appear
	// on several lines but its stock is checked once, against the sum.
	needed := make(map[string]int, len(items))
	for _, it := range items {
		needed[it.ProductID] += it.Quantity
	}
	ids := make([]string, 0, len(needed))
	for id := range needed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, lockProductsSQL, ids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "locking products")
	}
	locked := make(map[string]lockedProduct, len(ids))
	for rows.Next() {
		var (
			id    string
			price decimal.Decimal
			stock int
		)
		if err := rows.Scan(&id, &price, &stock); err != nil {
			rows.Close()
			return nil, nil, errors.Wrap(err, "scanning product row")
		}
		locked[id] = lockedProduct{price: price, stock: stock}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "reading product rows")
	}

	for _, id := range ids {
		p, ok := locked[id]
		if !ok {
			return nil, nil, &order.ProductNotFoundError{ProductID: id}
		}
		if p.stock < needed[id] {
			return nil, nil, &order.InsufficientStockError{
				ProductID: id,
				Requested: needed[id],
				Available: p.stock,
			}
		}
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(locked[it.ProductID].price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	total = total.Round(2)

	o := &order.Order{
		ID:            uuid.New().String(),
		UserID:        userID,
		Total:         total,
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentInitiated,
	}
	if err := tx.QueryRow(ctx, insertOrderSQL,
		o.ID, o.UserID, o.Total, o.Status, o.PaymentStatus,
	).Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, nil, errors.Wrap(err, "inserting order")
	}

	lines := make([]order.Item, len(items))
	for i, it := range items {
		lines[i] = order.Item{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			ProductID: it.ProductID,
			Price:     locked[it.ProductID].price,
			Quantity:  it.Quantity,
		}
		if _, err := tx.Exec(ctx, insertOrderItemSQL,
			lines[i].ID, lines[i].OrderID, lines[i].ProductID, lines[i].Price, lines[i].Quantity,
		); err != nil {
			return nil, nil, errors.Wrapf(err, "inserting order item for product %s", it.ProductID)
		}
	}

	for _, id := range ids {
		if _, err := tx.Exec(ctx, adjustStockSQL, id, -needed[id]); err != nil {
			return nil, nil, errors.Wrapf(err, "decrementing stock for product %s", id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "commit order")
	}
	return o, lines, nil
}

// Cancel marks the order CANCELLED and restores the stock recorded in its
// items, all within one transaction. The order's status before
// cancellation is returned for the audit trail.
func (r *OrderRepository) Cancel(ctx context.Context, orderID string) (*order.Order, order.Status, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, "", errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var o order.Order
	err = tx.QueryRow(ctx, lockOrderSQL, orderID).Scan(
		&o.ID, &o.UserID, &o.Total, &o.Status, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", order.ErrNotFound
		}
		return nil, "", errors.Wrapf(err, "locking order %q", orderID)
	}

	prev := o.Status
	if prev.Terminal() {
		return nil, "", &order.InvalidTransitionError{From: prev, To: order.StatusCancelled}
	}

	itemRows, err := tx.Query(ctx, selectOrderItemsSQL, orderID)
	if err != nil {
		return nil, "", errors.Wrap(err, "selecting order items")
	}
	items, err := pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, "", errors.Wrap(err, "scanning order items")
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, adjustStockSQL, it.ProductID, it.Quantity); err != nil {
			return nil, "", errors.Wrapf(err, "restoring stock for product %s", it.ProductID)
		}
	}

	if err := tx.QueryRow(ctx, markCancelledSQL, orderID).Scan(&o.UpdatedAt); err != nil {
		return nil, "", errors.Wrap(err, "marking order cancelled")
	}
	o.Status = order.StatusCancelled

	if err := tx.Commit(ctx); err != nil {
		return nil, "", errors.Wrap(err, "commit cancellation")
	}
	return &o, prev, nil
}

// UpdateStatus performs a plain status write; transition validity is the
// caller's responsibility.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status order.Status) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, updateOrderStatusSQL, orderID, status)
	if err != nil {
		return nil, errors.Wrapf(err, "updating order %q", orderID)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "updating order %q", orderID)
	}
	return &o, nil
}

// GetByID returns the order and its line items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, []order.Item, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "getting order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, order.ErrNotFound
		}
		return nil, nil, errors.Wrapf(err, "getting order %q", id)
	}

	itemRows, err := r.pool.Query(ctx, selectOrderItemsSQL, id)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "getting items for order %q", id)
	}
	items, err := pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "scanning items for order %q", id)
	}
	return &o, items, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing orders for user %q", userID)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListAll returns every order, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listAllOrdersSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Price, &it.Quantity)
	return it, err
}
