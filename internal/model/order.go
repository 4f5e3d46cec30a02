package model

import "time"

// OrderStatus is the payment state of an order.
type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderPaid    OrderStatus = "paid"
)

// Order is a purchase of one or more document templates.
type Order struct {
	ID            string      `json:"id"`
	OwnerID       string      `json:"owner_id"`
	Status        OrderStatus `json:"status"`
	PaymentRef    string      `json:"payment_ref,omitempty"`
	PaymentMethod string      `json:"payment_method,omitempty"`
	// PaymentDetails is the provider-specific metadata captured at
	// completion (card brand, transaction ids, ...), stored as-is.
	PaymentDetails map[string]any `json:"payment_details,omitempty"`
	TotalCents     int64          `json:"total_cents"`
	Items          []OrderItem    `json:"items,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	PaidAt         *time.Time     `json:"paid_at,omitempty"`
}

// OrderItem is a single purchased template within an order.
type OrderItem struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	TemplateID string `json:"template_id"`
	Title      string `json:"title"`
	PriceCents int64  `json:"price_cents"`
}
