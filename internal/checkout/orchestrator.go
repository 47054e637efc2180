// Package checkout turns a cart snapshot, a shipping form and an optional
// voucher into a persisted order. The sequence is ordered so that every
// validation and catalog lookup happens before the first write, and the only
// write that can partially fail after the order exists is best-effort
// bookkeeping.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowmart/storefront/internal/cart"
	"github.com/glowmart/storefront/internal/catalog"
	"github.com/glowmart/storefront/internal/money"
	"github.com/glowmart/storefront/internal/notify"
	"github.com/glowmart/storefront/internal/order"
	"github.com/glowmart/storefront/internal/voucher"
)

var (
	ErrEmptyCart = errors.New("cart is empty")
	// ErrPriceChanged means a catalog price drifted from the cart's add-time
	// snapshot; the customer should review the cart before retrying.
	ErrPriceChanged = errors.New("product prices have changed, please review your cart")
)

// CatalogClient resolves names and current prices for order items.
type CatalogClient interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	GetVariant(ctx context.Context, id string) (*catalog.Variant, error)
}

// VoucherStore is the subset of the voucher repository the orchestrator needs.
type VoucherStore interface {
	GetByCode(ctx context.Context, code string) (*voucher.Voucher, error)
	CountUserUsage(ctx context.Context, voucherID, userID string) (int, error)
	Consume(ctx context.Context, voucherID string) error
	Release(ctx context.Context, voucherID string) error
	RecordUserUsage(ctx context.Context, voucherID, userID string, limit int) error
	ReleaseUserUsage(ctx context.Context, voucherID, userID string) error
}

type Request struct {
	UserID         string
	IdempotencyKey string
	Shipping       ShippingAddress
	ShippingAmount decimal.Decimal
	VoucherCode    string
}

type Orchestrator struct {
	orders   order.Repository
	vouchers VoucherStore
	catalog  CatalogClient
	notifier notify.Notifier
	now      func() time.Time
}

func New(orders order.Repository, vouchers VoucherStore, cat CatalogClient, notifier notify.Notifier) *Orchestrator {
	return &Orchestrator{
		orders:   orders,
		vouchers: vouchers,
		catalog:  cat,
		notifier: notifier,
		now:      time.Now,
	}
}

// ValidateVoucher recomputes the discount for a code against a subtotal,
// including the per-user history check. Used by the live validation endpoint;
// the same computation runs again inside Checkout, so a client-supplied
// discount number is never trusted.
func (o *Orchestrator) ValidateVoucher(ctx context.Context, code, userID string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	v, err := o.vouchers.GetByCode(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}
	discount, err := voucher.ComputeDiscount(v, subtotal, o.now())
	if err != nil {
		return decimal.Zero, err
	}
	if userID != "" {
		used, err := o.vouchers.CountUserUsage(ctx, v.ID, userID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("usage lookup: %w", err)
		}
		if err := voucher.CheckUserEligibility(v, used); err != nil {
			return decimal.Zero, err
		}
	}
	return discount, nil
}

// Checkout runs the full pipeline against the given cart. On success the
// cart has been cleared and the returned order is in pending/pending.
//
// Resubmitting with the same idempotency key returns the order created by
// the first submission instead of a second order.
func (o *Orchestrator) Checkout(ctx context.Context, c *cart.Store, req Request) (*order.Order, []order.Item, error) {
	lines := c.Items()
	if len(lines) == 0 {
		return nil, nil, ErrEmptyCart
	}
	if err := req.Shipping.Validate(); err != nil {
		return nil, nil, err
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}

	// Step 1: validate the voucher against the snapshot's subtotal. The number
	// the UI showed is recomputed here, never taken from the client. The store
	// is not re-read past this point: a concurrent mutation of the same cart
	// must not desynchronize the order's totals from its items.
	subtotal, err := subtotalOf(lines)
	if err != nil {
		return nil, nil, err
	}
	var v *voucher.Voucher
	discount := decimal.Zero
	if req.VoucherCode != "" {
		var err error
		v, err = o.vouchers.GetByCode(ctx, req.VoucherCode)
		if err != nil {
			return nil, nil, err
		}
		discount, err = voucher.ComputeDiscount(v, subtotal, o.now())
		if err != nil {
			return nil, nil, err
		}
		if req.UserID != "" {
			used, err := o.vouchers.CountUserUsage(ctx, v.ID, req.UserID)
			if err != nil {
				return nil, nil, fmt.Errorf("usage lookup: %w", err)
			}
			if err := voucher.CheckUserEligibility(v, used); err != nil {
				return nil, nil, err
			}
		}
	}

	// Step 2: resolve every line against the catalog before anything is
	// written, so an order row can never exist without valid items.
	items, err := o.priceLines(ctx, lines)
	if err != nil {
		return nil, nil, err
	}
	total := subtotal.Add(req.ShippingAmount).Sub(discount)

	// Step 3: consume the voucher with a conditional increment. Running this
	// before the order insert closes the race on the last remaining use: the
	// loser fails here cleanly, with nothing to roll back but a counter.
	if v != nil {
		if err := o.vouchers.Consume(ctx, v.ID); err != nil {
			return nil, nil, err
		}
		if req.UserID != "" {
			if err := o.vouchers.RecordUserUsage(ctx, v.ID, req.UserID, v.UserUsageLimit); err != nil {
				o.releaseVoucher(v.ID, "", err)
				return nil, nil, err
			}
		}
	}

	ord := &order.Order{
		ID:              uuid.NewString(),
		OrderNumber:     o.orderNumber(),
		UserID:          req.UserID,
		Status:          order.StatusPending,
		PaymentStatus:   order.PaymentPending,
		Subtotal:        money.Format(subtotal),
		ShippingAmount:  money.Format(req.ShippingAmount),
		DiscountAmount:  money.Format(discount),
		TotalAmount:     money.Format(total),
		ShippingAddress: req.Shipping.Encode(),
		IdempotencyKey:  req.IdempotencyKey,
	}
	if v != nil {
		ord.VoucherID = v.ID
		ord.VoucherCode = v.Code
	}
	for i := range items {
		items[i].OrderID = ord.ID
	}

	// Step 4: one transaction for the order and all items.
	if err := o.orders.Create(ctx, ord, items); err != nil {
		if v != nil {
			o.releaseVoucher(v.ID, req.UserID, err)
		}
		if errors.Is(err, order.ErrDuplicate) {
			existing, getErr := o.orders.GetByIdempotencyKey(ctx, req.IdempotencyKey)
			if getErr != nil {
				return nil, nil, fmt.Errorf("duplicate checkout, lookup failed: %w", getErr)
			}
			existingItems, itemsErr := o.orders.GetItems(ctx, existing.ID)
			if itemsErr != nil {
				log.Printf("[checkout] duplicate order %s found but item lookup failed: %v", existing.ID, itemsErr)
			}
			return existing, existingItems, nil
		}
		return nil, nil, fmt.Errorf("create order: %w", err)
	}

	// Step 5: best-effort side effects. The order exists; failures here are
	// an operator concern, not the customer's.
	if err := o.notifier.PublishOrderCreated(ctx, notify.OrderCreated{
		OrderID:     ord.ID,
		OrderNumber: ord.OrderNumber,
		UserID:      ord.UserID,
		TotalAmount: ord.TotalAmount,
		ItemCount:   len(items),
		CreatedAt:   o.now(),
	}); err != nil {
		log.Printf("[checkout] order %s created but event publish failed: %v", ord.OrderNumber, err)
	}

	// Step 6: finalize.
	if err := c.Clear(ctx); err != nil {
		log.Printf("[checkout] order %s created but cart clear failed: %v", ord.OrderNumber, err)
	}
	return ord, items, nil
}

// subtotalOf sums unit price times quantity over a line snapshot, so the
// subtotal always describes the same lines the order items are built from.
func subtotalOf(lines []cart.Line) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, l := range lines {
		price, err := money.Parse(l.UnitPrice)
		if err != nil {
			return decimal.Zero, fmt.Errorf("line %s: %w", l.ID, err)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total, nil
}

// priceLines builds order items from cart lines, snapshotting names and
// verifying that no catalog price drifted since add-time.
func (o *Orchestrator) priceLines(ctx context.Context, lines []cart.Line) ([]order.Item, error) {
	items := make([]order.Item, 0, len(lines))
	for _, l := range lines {
		unitPrice, err := money.Parse(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("line %s: %w", l.ID, err)
		}

		p, err := o.catalog.GetProduct(ctx, l.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", l.ProductID, err)
		}
		currentPrice, err := money.Parse(p.Price)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", l.ProductID, err)
		}

		variantName := ""
		if l.VariantID != "" {
			vr, err := o.catalog.GetVariant(ctx, l.VariantID)
			if err != nil {
				return nil, fmt.Errorf("variant %s: %w", l.VariantID, err)
			}
			variantName = vr.Name
			if currentPrice, err = money.Parse(vr.Price); err != nil {
				return nil, fmt.Errorf("variant %s: %w", l.VariantID, err)
			}
		}

		if !currentPrice.Equal(unitPrice) {
			return nil, ErrPriceChanged
		}

		qty := decimal.NewFromInt(int64(l.Quantity))
		items = append(items, order.Item{
			ID:          uuid.NewString(),
			ProductID:   l.ProductID,
			VariantID:   l.VariantID,
			ProductName: p.Name,
			VariantName: variantName,
			Price:       money.Format(unitPrice),
			Quantity:    l.Quantity,
			TotalPrice:  money.Format(unitPrice.Mul(qty)),
		})
	}
	return items, nil
}

// releaseVoucher compensates a consumed voucher after a failed order write.
// Best-effort: a failed release is logged for reconciliation.
func (o *Orchestrator) releaseVoucher(voucherID, userID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.vouchers.Release(ctx, voucherID); err != nil {
		log.Printf("[checkout] voucher %s release failed (after %v): %v", voucherID, cause, err)
	}
	if userID != "" {
		if err := o.vouchers.ReleaseUserUsage(ctx, voucherID, userID); err != nil {
			log.Printf("[checkout] voucher %s user usage release failed: %v", voucherID, err)
		}
	}
}

// orderNumber generates the human-readable identifier shown to customers,
// e.g. GM-20250601-4F2A1C.
func (o *Orchestrator) orderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("GM-%s-%s", o.now().Format("20060102"), suffix)
}
