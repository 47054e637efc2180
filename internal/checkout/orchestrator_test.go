package checkout

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowmart/storefront/internal/cart"
	"github.com/glowmart/storefront/internal/catalog"
	"github.com/glowmart/storefront/internal/notify"
	"github.com/glowmart/storefront/internal/order"
	"github.com/glowmart/storefront/internal/voucher"
)

func init() {
	log.SetOutput(io.Discard)
}

//
// ---------- STUBS ----------
//

// stubOrders implements order.Repository in memory.
type stubOrders struct {
	lastOrder  *order.Order
	lastItems  []order.Item
	created    int
	failCreate error
	failItems  error
}

func (s *stubOrders) Create(ctx context.Context, o *order.Order, items []order.Item) error {
	if s.failCreate != nil {
		return s.failCreate
	}
	if s.lastOrder != nil && s.lastOrder.IdempotencyKey == o.IdempotencyKey {
		return order.ErrDuplicate
	}
	cp := *o
	s.lastOrder = &cp
	s.lastItems = append([]order.Item(nil), items...)
	s.created++
	return nil
}

func (s *stubOrders) GetByID(ctx context.Context, id string) (*order.Order, []order.Item, error) {
	if s.lastOrder == nil || s.lastOrder.ID != id {
		return nil, nil, order.ErrNotFound
	}
	return s.lastOrder, s.lastItems, nil
}

func (s *stubOrders) GetByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	if s.lastOrder == nil || s.lastOrder.IdempotencyKey != key {
		return nil, order.ErrNotFound
	}
	return s.lastOrder, nil
}

func (s *stubOrders) GetItems(ctx context.Context, orderID string) ([]order.Item, error) {
	if s.failItems != nil {
		return nil, s.failItems
	}
	if s.lastOrder == nil || s.lastOrder.ID != orderID {
		return nil, order.ErrNotFound
	}
	return s.lastItems, nil
}

func (s *stubOrders) ListByUser(ctx context.Context, userID string, limit, offset int) ([]order.Order, error) {
	if s.lastOrder != nil && s.lastOrder.UserID == userID {
		return []order.Order{*s.lastOrder}, nil
	}
	return nil, nil
}

func (s *stubOrders) UpdateStatus(ctx context.Context, id, status string) error {
	if s.lastOrder == nil || s.lastOrder.ID != id {
		return order.ErrNotFound
	}
	s.lastOrder.Status = status
	return nil
}

func (s *stubOrders) UpdatePaymentStatus(ctx context.Context, id, status string) error {
	if s.lastOrder == nil || s.lastOrder.ID != id {
		return order.ErrNotFound
	}
	s.lastOrder.PaymentStatus = status
	return nil
}

// stubVouchers tracks consume/release calls against a single voucher.
type stubVouchers struct {
	v            *voucher.Voucher
	userUses     int
	consumeErr   error
	recordErr    error
	consumed     int
	released     int
	recorded     int
	userReleased int
}

func (s *stubVouchers) GetByCode(ctx context.Context, code string) (*voucher.Voucher, error) {
	if s.v == nil {
		return nil, voucher.ErrNotFound
	}
	return s.v, nil
}

func (s *stubVouchers) CountUserUsage(ctx context.Context, voucherID, userID string) (int, error) {
	return s.userUses, nil
}

func (s *stubVouchers) Consume(ctx context.Context, voucherID string) error {
	if s.consumeErr != nil {
		return s.consumeErr
	}
	s.consumed++
	return nil
}

func (s *stubVouchers) Release(ctx context.Context, voucherID string) error {
	s.released++
	return nil
}

func (s *stubVouchers) RecordUserUsage(ctx context.Context, voucherID, userID string, limit int) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.recorded++
	return nil
}

func (s *stubVouchers) ReleaseUserUsage(ctx context.Context, voucherID, userID string) error {
	s.userReleased++
	return nil
}

// stubCatalog serves fixed products and variants.
type stubCatalog struct {
	products map[string]*catalog.Product
	variants map[string]*catalog.Variant
}

func (s *stubCatalog) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

func (s *stubCatalog) GetVariant(ctx context.Context, id string) (*catalog.Variant, error) {
	v, ok := s.variants[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return v, nil
}

type recordingNotifier struct {
	events []notify.OrderCreated
	err    error
}

func (n *recordingNotifier) PublishOrderCreated(ctx context.Context, ev notify.OrderCreated) error {
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, ev)
	return nil
}

//
// ---------- FIXTURES ----------
//

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// twoLineCart: Product A $20 x2, Product B $15 x1 => subtotal $55.
func twoLineCart(t *testing.T) *cart.Store {
	t.Helper()
	c := cart.NewStore("")
	ctx := context.Background()
	if err := c.AddItem(ctx, cart.LineInput{
		ProductID: "prod-a", Name: "Velvet Lipstick", UnitPrice: "20.00", Quantity: 2,
	}); err != nil {
		t.Fatal(err)
	}
	if err := c.AddItem(ctx, cart.LineInput{
		ProductID: "prod-b", Name: "Night Serum", UnitPrice: "15.00", Quantity: 1,
	}); err != nil {
		t.Fatal(err)
	}
	return c
}

func twoProductCatalog() *stubCatalog {
	return &stubCatalog{
		products: map[string]*catalog.Product{
			"prod-a": {ID: "prod-a", Name: "Velvet Lipstick", Price: "20.00"},
			"prod-b": {ID: "prod-b", Name: "Night Serum", Price: "15.00"},
		},
		variants: map[string]*catalog.Variant{},
	}
}

func save10() *voucher.Voucher {
	return &voucher.Voucher{
		ID: "v-save10", Code: "SAVE10", Type: voucher.TypePercentage,
		Value: dec("10"), UserUsageLimit: 1, IsActive: true,
		StartsAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func shipping() ShippingAddress {
	return ShippingAddress{
		FullName: "Ana Reyes", Phone: "+1 555 0101",
		Line1: "12 Rose St", City: "Austin", Province: "TX",
		PostalCode: "78701", Country: "US",
	}
}

func newOrch(orders *stubOrders, vouchers *stubVouchers, cat *stubCatalog, n notify.Notifier) *Orchestrator {
	o := New(orders, vouchers, cat, n)
	o.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return o
}

//
// ---------- TESTS ----------
//

func TestCheckout_PercentageVoucher(t *testing.T) {
	t.Parallel()

	orders := &stubOrders{}
	vouchers := &stubVouchers{v: save10()}
	notifier := &recordingNotifier{}
	orch := newOrch(orders, vouchers, twoProductCatalog(), notifier)
	c := twoLineCart(t)

	ord, items, err := orch.Checkout(context.Background(), c, Request{
		UserID:         "user-1",
		Shipping:       shipping(),
		ShippingAmount: dec("10.00"),
		VoucherCode:    "SAVE10",
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if ord.Subtotal != "55.00" || ord.DiscountAmount != "5.50" || ord.TotalAmount != "59.50" {
		t.Fatalf("amounts: subtotal=%s discount=%s total=%s", ord.Subtotal, ord.DiscountAmount, ord.TotalAmount)
	}
	if ord.Status != order.StatusPending || ord.PaymentStatus != order.PaymentPending {
		t.Fatalf("status=%s/%s, want pending/pending", ord.Status, ord.PaymentStatus)
	}
	if ord.OrderNumber == "" || ord.ID == "" {
		t.Fatal("order identity missing")
	}
	if len(items) != 2 {
		t.Fatalf("items=%d, want 2", len(items))
	}
	for _, it := range items {
		if it.OrderID != ord.ID {
			t.Fatalf("item %s not linked to order", it.ID)
		}
	}
	if vouchers.consumed != 1 || vouchers.recorded != 1 {
		t.Fatalf("voucher bookkeeping: consumed=%d recorded=%d", vouchers.consumed, vouchers.recorded)
	}
	if c.ItemCount() != 0 {
		t.Fatalf("cart not cleared: %d items", c.ItemCount())
	}
	if len(notifier.events) != 1 || notifier.events[0].OrderNumber != ord.OrderNumber {
		t.Fatalf("notification missing or wrong: %+v", notifier.events)
	}
}

func TestCheckout_FixedVoucherCapped(t *testing.T) {
	t.Parallel()

	maxDiscount := dec("30.00")
	flat := &voucher.Voucher{
		ID: "v-flat100", Code: "FLAT100", Type: voucher.TypeFixedAmount,
		Value: dec("100"), MaximumDiscountAmount: &maxDiscount,
		UserUsageLimit: 1, IsActive: true,
		StartsAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	orders := &stubOrders{}
	orch := newOrch(orders, &stubVouchers{v: flat}, twoProductCatalog(), notify.Nop{})

	ord, _, err := orch.Checkout(context.Background(), twoLineCart(t), Request{
		UserID:         "user-1",
		Shipping:       shipping(),
		ShippingAmount: dec("10.00"),
		VoucherCode:    "FLAT100",
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if ord.DiscountAmount != "30.00" || ord.TotalAmount != "35.00" {
		t.Fatalf("discount=%s total=%s, want 30.00 / 35.00", ord.DiscountAmount, ord.TotalAmount)
	}
}

func TestCheckout_MinimumNotMet_NoWrites(t *testing.T) {
	t.Parallel()

	minAmount := dec("100.00")
	v := save10()
	v.MinimumOrderAmount = &minAmount
	orders := &stubOrders{}
	vouchers := &stubVouchers{v: v}
	orch := newOrch(orders, vouchers, twoProductCatalog(), notify.Nop{})

	_, _, err := orch.Checkout(context.Background(), twoLineCart(t), Request{
		Shipping:       shipping(),
		ShippingAmount: dec("10.00"),
		VoucherCode:    "SAVE10",
	})
	if !errors.Is(err, voucher.ErrMinimumNotMet) {
		t.Fatalf("err=%v, want ErrMinimumNotMet", err)
	}
	if orders.created != 0 || vouchers.consumed != 0 {
		t.Fatalf("writes happened: orders=%d consumed=%d", orders.created, vouchers.consumed)
	}
}

func TestCheckout_WithoutVoucher(t *testing.T) {
	t.Parallel()

	orders := &stubOrders{}
	orch := newOrch(orders, &stubVouchers{}, twoProductCatalog(), notify.Nop{})

	ord, _, err := orch.Checkout(context.Background(), twoLineCart(t), Request{
		Shipping:       shipping(),
		ShippingAmount: dec("10.00"),
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if ord.DiscountAmount != "0.00" || ord.TotalAmount != "65.00" {
		t.Fatalf("discount=%s total=%s, want 0.00 / 65.00", ord.DiscountAmount, ord.TotalAmount)
	}
}

func TestCheckout_GlobalCapRace_LoserFails(t *testing.T) {
	t.Parallel()

	orders := &stubOrders{}
	vouchers := &stubVouchers{v: save10(), consumeErr: voucher.ErrLimitReached}
	orch := newOrch(orders, vouchers, twoProductCatalog(), notify.Nop{})

	_, _, err := orch.Checkout(context.Background(), twoLineCart(t), Request{
		UserID:         "user-1",
		Shipping:       shipping(),
		ShippingAmount: dec("10.00"),
		VoucherCode:    "SAVE10",
	})
	if !errors.Is(err, voucher.ErrLimitReached) {
		t.Fatalf("err=%v, want ErrLimitReached", err)
	}
	if orders.created != 0 {
		t.Fatalf("order created despite exhausted voucher")
	}
}

func TestCheckout_PerUserCapAtCommit_ReleasesGlobal(t *testing.T) {
	t.Parallel()

	orders := &stubOrders{}
	vouchers := &stubVouchers{v: save10(), recordErr: voucher.ErrUserLimitReached}
	orch := newOrch(orders, vouchers, twoProductCatalog(), notify.Nop{})

	_, _, err := orch.Checkout(context.Background(), twoLineCart(t), Request{
		UserID:         "user-1",
		Shipping:       shipping(),
		ShippingAmount: dec("10.00"),
		VoucherCode:    "SAVE10",
	})
	if !errors.Is(err, voucher.ErrUserLimitReached) {
		t.Fatalf("err=%v, want ErrUserLimitReached", err)
	}
	if vouchers.consumed != 1 || vouchers.released != 1 {
		t.Fatalf("global counter not compensated: consumed=%d released=%d", vouchers.consumed, vouchers.released)
	}
	if orders.created != 0 {
		t.Fatal("order created despite per-user cap")
	}
}

func TestCheckout_PriceDrift_AbortsBeforeWrites(t *testing.T) {
	t.Parallel()

	cat := twoProductCatalog()
	cat.products["prod-a"].Price = "25.00" // changed since add-to-cart
	orders := &stubOrders{}
	vouchers := &stubVouchers{v: save10()}
	orch := newOrch(orders, vouchers, cat, notify.Nop{})
	c := twoLineCart(t)

	_, _, err := orch.Checkout(context.Background(), c, Request{
		Shipping:       shipping(),
		ShippingAmount: dec("10.00"),
		VoucherCode:    "SAVE10",
	})
	if !errors.Is(err, ErrPriceChanged) {
		t.Fatalf("err=%v, want ErrPriceChanged", err)
	}
	if orders.created != 0 || vouchers.consumed != 0 {
		t.Fatalf("writes happened: orders=%d consumed=%d", orders.created, vouchers.consumed)
	}
	if c.ItemCount() == 0 {
		t.Fatal("cart must stay intact so the customer can review it")
	}
}

func TestCheckout_OrderInsertFailure_ReleasesVoucher(t *testing.T) {
	t.Parallel()

	orders := &stubOrders{failCreate: errors.New("connection reset")}
	vouchers := &stubVouchers{v: save10()}
	orch := newOrch(orders, vouchers, twoProductCatalog(), notify.Nop{})

	_, _, err := orch.Checkout(context.Background(), twoLineCart(t), Request{
		UserID:         "user-1",
		Shipping:       shipping(),
		ShippingAmount: dec("10.00"),
		VoucherCode:    "SAVE10",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if vouchers.released != 1 || vouchers.userReleased != 1 {
		t.Fatalf("voucher not compensated: released=%d userReleased=%d", vouchers.released, vouchers.userReleased)
	}
}

func TestCheckout_DuplicateSubmission_ReturnsExistingOrder(t *testing.T) {
	t.Parallel()

	orders := &stubOrders{}
	vouchers := &stubVouchers{v: save10()}
	orch := newOrch(orders, vouchers, twoProductCatalog(), notify.Nop{})

	req := Request{
		UserID:         "user-1",
		IdempotencyKey: "idem-1",
		Shipping:       shipping(),
		ShippingAmount: dec("10.00"),
		VoucherCode:    "SAVE10",
	}

	first, _, err := orch.Checkout(context.Background(), twoLineCart(t), req)
	if err != nil {
		t.Fatalf("first checkout: %v", err)
	}

	// the double-click: same key, cart refilled
	second, _, err := orch.Checkout(context.Background(), twoLineCart(t), req)
	if err != nil {
		t.Fatalf("second checkout: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("two orders created: %s vs %s", first.ID, second.ID)
	}
	if orders.created != 1 {
		t.Fatalf("created=%d, want 1", orders.created)
	}
	// the second consume was compensated
	if vouchers.consumed != 2 || vouchers.released != 1 {
		t.Fatalf("voucher counters: consumed=%d released=%d", vouchers.consumed, vouchers.released)
	}
}

func TestCheckout_ConcurrentCartMutation_TotalsMatchItems(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for round := 0; round < 10; round++ {
		orders := &stubOrders{}
		orch := newOrch(orders, &stubVouchers{}, twoProductCatalog(), notify.Nop{})
		c := twoLineCart(t)

		// another request on the same cart token keeps mutating while the
		// checkout is in flight
		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = c.AddItem(ctx, cart.LineInput{
						ProductID: "prod-a", Name: "Velvet Lipstick", UnitPrice: "20.00", Quantity: 3,
					})
				}
			}
		}()

		ord, items, err := orch.Checkout(ctx, c, Request{
			Shipping:       shipping(),
			ShippingAmount: dec("10.00"),
		})
		close(stop)
		wg.Wait()
		if err != nil {
			t.Fatalf("round %d: Checkout: %v", round, err)
		}

		itemSum := decimal.Zero
		for _, it := range items {
			itemSum = itemSum.Add(dec(it.TotalPrice))
		}
		want := itemSum.Add(dec(ord.ShippingAmount)).Sub(dec(ord.DiscountAmount))
		if !dec(ord.TotalAmount).Equal(want) {
			t.Fatalf("round %d: total_amount=%s but sum(items)+shipping-discount=%s",
				round, ord.TotalAmount, want.StringFixed(2))
		}
		if !dec(ord.Subtotal).Equal(itemSum) {
			t.Fatalf("round %d: subtotal=%s but items sum to %s", round, ord.Subtotal, itemSum.StringFixed(2))
		}
	}
}

func TestCheckout_DuplicateSubmission_ItemLookupFailureStillReturnsOrder(t *testing.T) {
	t.Parallel()

	orders := &stubOrders{}
	orch := newOrch(orders, &stubVouchers{}, twoProductCatalog(), notify.Nop{})

	req := Request{
		IdempotencyKey: "idem-2",
		Shipping:       shipping(),
		ShippingAmount: dec("10.00"),
	}
	first, _, err := orch.Checkout(context.Background(), twoLineCart(t), req)
	if err != nil {
		t.Fatalf("first checkout: %v", err)
	}

	orders.failItems = errors.New("connection reset")
	second, items, err := orch.Checkout(context.Background(), twoLineCart(t), req)
	if err != nil {
		t.Fatalf("second checkout: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("order ids differ: %s vs %s", first.ID, second.ID)
	}
	if items != nil {
		t.Fatalf("items=%v, want nil when the lookup fails", items)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	t.Parallel()

	orch := newOrch(&stubOrders{}, &stubVouchers{}, twoProductCatalog(), notify.Nop{})
	_, _, err := orch.Checkout(context.Background(), cart.NewStore(""), Request{
		Shipping:       shipping(),
		ShippingAmount: dec("10.00"),
	})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("err=%v, want ErrEmptyCart", err)
	}
}

func TestCheckout_MissingShippingFields(t *testing.T) {
	t.Parallel()

	orders := &stubOrders{}
	orch := newOrch(orders, &stubVouchers{}, twoProductCatalog(), notify.Nop{})

	addr := shipping()
	addr.City = ""
	_, _, err := orch.Checkout(context.Background(), twoLineCart(t), Request{
		Shipping:       addr,
		ShippingAmount: dec("10.00"),
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if orders.created != 0 {
		t.Fatal("order created despite invalid shipping form")
	}
}

func TestValidateVoucher(t *testing.T) {
	t.Parallel()

	vouchers := &stubVouchers{v: save10(), userUses: 1}
	orch := newOrch(&stubOrders{}, vouchers, twoProductCatalog(), notify.Nop{})

	// per-user cap already reached for this user
	_, err := orch.ValidateVoucher(context.Background(), "SAVE10", "user-1", dec("55.00"))
	if !errors.Is(err, voucher.ErrUserLimitReached) {
		t.Fatalf("err=%v, want ErrUserLimitReached", err)
	}

	// guests skip the per-user history check
	d, err := orch.ValidateVoucher(context.Background(), "SAVE10", "", dec("55.00"))
	if err != nil {
		t.Fatalf("guest validate: %v", err)
	}
	if d.StringFixed(2) != "5.50" {
		t.Fatalf("discount=%s, want 5.50", d.StringFixed(2))
	}
}
