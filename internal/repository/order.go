package repository

import (
	"context"
	"time"

	"formvault/internal/model"
)

// OrderRepository defines persistence for orders and their items.
type OrderRepository interface {
	// Create inserts the order row and its items.
	Create(ctx context.Context, q Querier, o *model.Order) (*model.Order, error)

	// LockForUpdate loads the order and its items with FOR UPDATE on the
	// order row. Missing rows surface sql.ErrNoRows.
	LockForUpdate(ctx context.Context, q Querier, id string) (*model.Order, error)

	// MarkPaid transitions a pending order to paid, storing the payment
	// details alongside the reference. Returns false when the order was not
	// in pending (already paid), without error.
	MarkPaid(ctx context.Context, q Querier, id, paymentRef, method string, details map[string]any, paidAt time.Time) (bool, error)
}
