package order

import "time"

// Order statuses. Transitions are driven by administrators after checkout;
// the orchestrator only ever creates pending orders.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCanceled   = "canceled"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCanceled:
		return true
	}
	return false
}

func ValidPaymentStatus(s string) bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Order is an immutable price record: amounts are snapshotted at creation
// and never recomputed from current product prices.
// totalAmount == subtotal + shippingAmount - discountAmount holds at creation.
type Order struct {
	ID            string `json:"id"`
	OrderNumber   string `json:"order_number"`
	UserID        string `json:"user_id,omitempty"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	// NUMERIC -> string
	Subtotal       string `json:"subtotal"`
	ShippingAmount string `json:"shipping_amount"`
	DiscountAmount string `json:"discount_amount"`
	TotalAmount    string `json:"total_amount"`
	// serialized shipping form
	ShippingAddress string    `json:"shipping_address"`
	VoucherID       string    `json:"voucher_id,omitempty"`
	VoucherCode     string    `json:"voucher_code,omitempty"`
	IdempotencyKey  string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Item denormalizes product and variant names so the order survives catalog
// edits.
type Item struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	ProductID   string `json:"product_id"`
	VariantID   string `json:"variant_id,omitempty"`
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name,omitempty"`
	Price       string `json:"price"`
	Quantity    int    `json:"quantity"`
	TotalPrice  string `json:"total_price"`
}
