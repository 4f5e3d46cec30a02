package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"formvault/internal/model"
	"formvault/internal/repository"
)

// OrderPostgres is a PostgreSQL implementation of repository.OrderRepository.
type OrderPostgres struct{}

// NewOrderPostgres creates a new OrderPostgres repository.
func NewOrderPostgres() *OrderPostgres {
	return &OrderPostgres{}
}

var _ repository.OrderRepository = (*OrderPostgres)(nil)

const orderColumns = "id, owner_id, status, payment_ref, payment_method, payment_details, total_cents, created_at, paid_at"

// Create inserts the order row and its items.
func (r *OrderPostgres) Create(ctx context.Context, q repository.Querier, o *model.Order) (*model.Order, error) {
	const query = `
		INSERT INTO orders (id, owner_id, status, total_cents, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := q.ExecContext(ctx, query, o.ID, o.OwnerID, o.Status, o.TotalCents, o.CreatedAt); err != nil {
		return nil, err
	}

	const itemQuery = `
		INSERT INTO order_items (id, order_id, template_id, title, price_cents)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, item := range o.Items {
		if _, err := q.ExecContext(ctx, itemQuery, item.ID, item.OrderID, item.TemplateID, item.Title, item.PriceCents); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// LockForUpdate loads the order with FOR UPDATE plus its items.
func (r *OrderPostgres) LockForUpdate(ctx context.Context, q repository.Querier, id string) (*model.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	var (
		o          model.Order
		detailsRaw []byte
		paidAt     sql.NullTime
	)
	if err := q.QueryRowContext(ctx, query, id).Scan(
		&o.ID,
		&o.OwnerID,
		&o.Status,
		&o.PaymentRef,
		&o.PaymentMethod,
		&detailsRaw,
		&o.TotalCents,
		&o.CreatedAt,
		&paidAt,
	); err != nil {
		return nil, err
	}
	if len(detailsRaw) > 0 {
		if err := json.Unmarshal(detailsRaw, &o.PaymentDetails); err != nil {
			return nil, err
		}
	}
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}

	const itemQuery = `
		SELECT id, order_id, template_id, title, price_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := q.QueryContext(ctx, itemQuery, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.TemplateID, &item.Title, &item.PriceCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

// MarkPaid transitions a pending order to paid. The WHERE clause makes the
// transition conditional, so a second completion attempt affects zero rows.
func (r *OrderPostgres) MarkPaid(ctx context.Context, q repository.Querier, id, paymentRef, method string, details map[string]any, paidAt time.Time) (bool, error) {
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return false, err
	}

	const query = `
		UPDATE orders
		SET status = 'paid', payment_ref = $2, payment_method = $3, payment_details = $4, paid_at = $5
		WHERE id = $1 AND status = 'pending'
	`
	res, err := q.ExecContext(ctx, query, id, paymentRef, method, detailsJSON, paidAt)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
