package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xeniko/shop-admin/internal/domain/payment"
)

const (
	insertPaymentSQL = `INSERT INTO payments (id, order_id, amount, provider, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`

	updatePaymentStatusSQL = `UPDATE payments SET status = $2 WHERE id = $1
		RETURNING id, order_id, amount, provider, status, created_at`

	syncOrderPaymentStatusSQL = `UPDATE orders SET payment_status = $2, updated_at = now()
		WHERE id = $1`

	listPaymentsByOrderSQL = `SELECT id, order_id, amount, provider, status, created_at
		FROM payments WHERE order_id = $1 ORDER BY created_at DESC`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Create persists a new payment attempt.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	err := r.pool.QueryRow(ctx, insertPaymentSQL,
		p.ID, p.OrderID, p.Amount, p.Provider, p.Status,
	).Scan(&p.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "creating payment %q", p.ID)
	}
	return nil
}

// UpdateStatus overwrites the payment status and mirrors it onto the
// owning order's payment_status. Both writes commit together so the two
// rows never disagree.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status payment.Status) (*payment.Payment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var p payment.Payment
	err = tx.QueryRow(ctx, updatePaymentStatusSQL, id, status).Scan(
		&p.ID, &p.OrderID, &p.Amount, &p.Provider, &p.Status, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, errors.Wrapf(err, "updating payment %q", id)
	}

	if _, err := tx.Exec(ctx, syncOrderPaymentStatusSQL, p.OrderID, string(status)); err != nil {
		return nil, errors.Wrapf(err, "syncing payment status to order %q", p.OrderID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit payment update")
	}
	return &p, nil
}

// ListByOrder returns all payment attempts for an order, newest first.
func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]payment.Payment, error) {
	rows, err := r.pool.Query(ctx, listPaymentsByOrderSQL, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing payments for order %q", orderID)
	}
	return pgx.CollectRows(rows, scanPayment)
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var p payment.Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Provider, &p.Status, &p.CreatedAt)
	return p, err
}
