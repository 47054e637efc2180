// Package notify publishes storefront events for downstream consumers
// (fulfillment, email). Publishing is best-effort: a failed publish is an
// operator problem, never a checkout failure.
package notify

import (
	"context"
	"time"
)

type OrderCreated struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id,omitempty"`
	TotalAmount string    `json:"total_amount"`
	ItemCount   int       `json:"item_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type Notifier interface {
	PublishOrderCreated(ctx context.Context, ev OrderCreated) error
}

// Nop is used in tests and when no broker is configured.
type Nop struct{}

func (Nop) PublishOrderCreated(context.Context, OrderCreated) error { return nil }
