package voucher

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypePercentage  = "percentage"
	TypeFixedAmount = "fixed_amount"
)

type Voucher struct {
	ID   string `json:"id"`
	Code string `json:"code"` // unique, looked up case-insensitively
	Type string `json:"type"` // percentage | fixed_amount
	// Percentage points for percentage vouchers, an amount for fixed ones.
	Value                 decimal.Decimal  `json:"value"`
	MinimumOrderAmount    *decimal.Decimal `json:"minimum_order_amount,omitempty"`
	MaximumDiscountAmount *decimal.Decimal `json:"maximum_discount_amount,omitempty"`
	UsageLimit            *int             `json:"usage_limit,omitempty"` // global cap
	UsedCount             int              `json:"used_count"`
	UserUsageLimit        int              `json:"user_usage_limit"` // per-user cap
	IsActive              bool             `json:"is_active"`
	StartsAt              time.Time        `json:"starts_at"`
	ExpiresAt             *time.Time       `json:"expires_at,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}
