package voucher

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Engine errors are plain return values so callers can branch on them; they
// never reach the persistence layer.
var (
	ErrInactive         = errors.New("voucher inactive")
	ErrNotValidNow      = errors.New("voucher not valid at this time")
	ErrMinimumNotMet    = errors.New("order does not meet minimum amount")
	ErrLimitReached     = errors.New("voucher usage limit reached")
	ErrUserLimitReached = errors.New("usage limit already reached for this user")
)

var hundred = decimal.NewFromInt(100)

// ComputeDiscount decides eligibility and computes the discount for a voucher
// against a subtotal. Pure: no clock access (now is a parameter), no I/O.
// A nil voucher means no discount and no error.
//
// The discount never exceeds the subtotal nor the configured cap, and a
// subtotal exactly at the minimum is eligible.
func ComputeDiscount(v *Voucher, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	if !v.IsActive {
		return decimal.Zero, ErrInactive
	}
	if now.Before(v.StartsAt) {
		return decimal.Zero, ErrNotValidNow
	}
	if v.ExpiresAt != nil && now.After(*v.ExpiresAt) {
		return decimal.Zero, ErrNotValidNow
	}
	if v.MinimumOrderAmount != nil && subtotal.LessThan(*v.MinimumOrderAmount) {
		return decimal.Zero, ErrMinimumNotMet
	}
	if v.UsageLimit != nil && v.UsedCount >= *v.UsageLimit {
		return decimal.Zero, ErrLimitReached
	}

	var discount decimal.Decimal
	switch v.Type {
	case TypePercentage:
		discount = subtotal.Mul(v.Value).Div(hundred).Round(2)
	case TypeFixedAmount:
		discount = v.Value
	default:
		return decimal.Zero, ErrInactive
	}

	if v.MaximumDiscountAmount != nil && discount.GreaterThan(*v.MaximumDiscountAmount) {
		discount = *v.MaximumDiscountAmount
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount, nil
}

// CheckUserEligibility applies the per-user cap given the user's prior
// successful uses. Callers re-check this at commit time through the
// conditional usage write; this form is for validation before checkout.
func CheckUserEligibility(v *Voucher, priorUses int) error {
	if v == nil {
		return nil
	}
	if v.UserUsageLimit > 0 && priorUses >= v.UserUsageLimit {
		return ErrUserLimitReached
	}
	return nil
}
