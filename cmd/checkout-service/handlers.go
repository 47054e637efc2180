package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowmart/storefront/internal/cart"
	"github.com/glowmart/storefront/internal/checkout"
	"github.com/glowmart/storefront/internal/httpx"
	"github.com/glowmart/storefront/internal/identity"
	"github.com/glowmart/storefront/internal/money"
	"github.com/glowmart/storefront/internal/order"
	"github.com/glowmart/storefront/internal/voucher"
)

// loginService verifies credentials and issues a session token.
type loginService interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// cartFor picks the store for this request: the explicit cart token wins,
// authenticated users fall back to their user id.
func cartFor(c *gin.Context, carts *cart.Manager) (*cart.Store, bool) {
	uid := httpx.UserID(c)
	token := c.GetHeader("X-Cart-Token")
	if token == "" {
		token = uid
	}
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Cart-Token header or session required"})
		return nil, false
	}
	return carts.Get(token, uid), true
}

func cartJSON(s *cart.Store) gin.H {
	return gin.H{
		"items":      s.Items(),
		"item_count": s.ItemCount(),
		"subtotal":   money.Format(s.Subtotal()),
	}
}

// CreateSessionRequest payload for login.
// swagger:model CreateSessionRequest
type CreateSessionRequest struct {
	Email    string `json:"email" binding:"required,email" example:"ana@example.com"`
	Password string `json:"password" binding:"required"`
}

// createSessionHandler godoc
// @Summary      Log in and obtain a session token
// @Accept       json
// @Produce      json
// @Param        body body CreateSessionRequest true "credentials"
// @Success      201 {object} map[string]string
// @Failure      401 {object} map[string]string
// @Router       /sessions [post]
func createSessionHandler(sessions loginService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		token, err := sessions.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidCredentials) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"token": token})
	}
}

// getCartHandler godoc
// @Summary      Current cart contents
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /cart [get]
func getCartHandler(carts *cart.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := cartFor(c, carts)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, cartJSON(s))
	}
}

// AddCartItemRequest payload for adding a line.
// swagger:model AddCartItemRequest
type AddCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required" example:"prod-lipstick"`
	VariantID string `json:"variant_id" example:"var-ruby"`
	Name      string `json:"name" binding:"required" example:"Velvet Lipstick"`
	Image     string `json:"image"`
	Color     string `json:"color" example:"Ruby"`
	Size      string `json:"size"`
	UnitPrice string `json:"unit_price" binding:"required" example:"20.00"`
	Quantity  int    `json:"quantity" binding:"required,gt=0" example:"2"`
}

// addCartItemHandler godoc
// @Summary      Add a line to the cart, merging duplicates
// @Accept       json
// @Produce      json
// @Param        body body AddCartItemRequest true "line"
// @Success      200 {object} map[string]interface{}
// @Router       /cart/items [post]
func addCartItemHandler(carts *cart.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := cartFor(c, carts)
		if !ok {
			return
		}
		var req AddCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := money.Parse(req.UnitPrice); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unit_price"})
			return
		}
		err := s.AddItem(c.Request.Context(), cart.LineInput{
			ProductID: req.ProductID,
			VariantID: req.VariantID,
			Name:      req.Name,
			Image:     req.Image,
			Color:     req.Color,
			Size:      req.Size,
			UnitPrice: req.UnitPrice,
			Quantity:  req.Quantity,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, cartJSON(s))
	}
}

// updateCartItemHandler godoc
// @Summary      Replace a line's quantity (quantities below 1 are ignored)
// @Accept       json
// @Produce      json
// @Param        id path string true "line id"
// @Success      200 {object} map[string]interface{}
// @Router       /cart/items/{id} [patch]
func updateCartItemHandler(carts *cart.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := cartFor(c, carts)
		if !ok {
			return
		}
		var req struct {
			Quantity int `json:"quantity"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		_ = s.UpdateQuantity(c.Request.Context(), c.Param("id"), req.Quantity)
		c.JSON(http.StatusOK, cartJSON(s))
	}
}

// removeCartItemHandler godoc
// @Summary      Remove a line from the cart
// @Produce      json
// @Param        id path string true "line id"
// @Success      200 {object} map[string]interface{}
// @Router       /cart/items/{id} [delete]
func removeCartItemHandler(carts *cart.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := cartFor(c, carts)
		if !ok {
			return
		}
		_ = s.RemoveItem(c.Request.Context(), c.Param("id"))
		c.JSON(http.StatusOK, cartJSON(s))
	}
}

// rehydrateCartHandler godoc
// @Summary      Restore the cart snapshot and reconcile with the remote copy
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /cart/rehydrate [post]
func rehydrateCartHandler(carts *cart.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := cartFor(c, carts)
		if !ok {
			return
		}
		if err := s.Rehydrate(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "rehydrate failed"})
			return
		}
		c.JSON(http.StatusOK, cartJSON(s))
	}
}

// ValidateVoucherRequest payload for live voucher validation.
// swagger:model ValidateVoucherRequest
type ValidateVoucherRequest struct {
	Code string `json:"code" binding:"required" example:"SAVE10"`
}

// validateVoucherHandler godoc
// @Summary      Check a voucher against the current cart subtotal
// @Accept       json
// @Produce      json
// @Param        body body ValidateVoucherRequest true "code"
// @Success      200 {object} map[string]string
// @Failure      422 {object} map[string]string
// @Router       /vouchers/validate [post]
func validateVoucherHandler(orch *checkout.Orchestrator, carts *cart.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := cartFor(c, carts)
		if !ok {
			return
		}
		var req ValidateVoucherRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		discount, err := orch.ValidateVoucher(c.Request.Context(), req.Code, httpx.UserID(c), s.Subtotal())
		if err != nil {
			c.JSON(voucherErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": req.Code, "discount": money.Format(discount)})
	}
}

// CheckoutRequest payload for order creation.
// swagger:model CheckoutRequest
type CheckoutRequest struct {
	Shipping    checkout.ShippingAddress `json:"shipping"`
	VoucherCode string                   `json:"voucher_code" example:"SAVE10"`
}

// checkoutHandler godoc
// @Summary      Turn the cart into an order
// @Description  Recomputes the discount server-side, snapshots prices and
// @Description  clears the cart. Resubmitting with the same Idempotency-Key
// @Description  returns the original order.
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "dedupe key for double submits"
// @Param        body body CheckoutRequest true "shipping and voucher"
// @Success      201 {object} map[string]interface{}
// @Failure      409 {object} map[string]string
// @Failure      422 {object} map[string]string
// @Router       /checkout [post]
func checkoutHandler(orch *checkout.Orchestrator, carts *cart.Manager, shippingRate decimal.Decimal) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := cartFor(c, carts)
		if !ok {
			return
		}
		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		key := c.GetHeader("Idempotency-Key")
		if key == "" {
			key = uuid.NewString()
		}

		ord, items, err := orch.Checkout(c.Request.Context(), s, checkout.Request{
			UserID:         httpx.UserID(c),
			IdempotencyKey: key,
			Shipping:       req.Shipping,
			ShippingAmount: shippingRate,
			VoucherCode:    req.VoucherCode,
		})
		if err != nil {
			c.JSON(checkoutErrorStatus(err), gin.H{"error": checkoutErrorMessage(err)})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"order": ord, "items": items})
	}
}

// getOrderHandler godoc
// @Summary      Fetch an order with its items
// @Produce      json
// @Param        id path string true "order id"
// @Success      200 {object} map[string]interface{}
// @Failure      404 {object} map[string]string
// @Router       /orders/{id} [get]
func getOrderHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ord, items, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, order.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": ord, "items": items})
	}
}

// getOrderItemsHandler godoc
// @Summary      Items of an order
// @Produce      json
// @Param        id path string true "order id"
// @Success      200 {object} map[string]interface{}
// @Router       /orders/{id}/items [get]
func getOrderItemsHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := repo.GetItems(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, order.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// listOrdersByUserHandler godoc
// @Summary      Orders of a user, newest first
// @Produce      json
// @Param        user_id path string true "user id"
// @Param        limit query int false "page size"
// @Param        offset query int false "page offset"
// @Success      200 {object} map[string]interface{}
// @Router       /orders/user/{user_id} [get]
func listOrdersByUserHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		orders, err := repo.ListByUser(c.Request.Context(), c.Param("user_id"), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
			return
		}
		if orders == nil {
			orders = []order.Order{}
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
	}
}

// UpdateStatusRequest payload for status transitions.
// swagger:model UpdateStatusRequest
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required" example:"shipped"`
}

// updateOrderStatusHandler godoc
// @Summary      Transition an order's status (admin)
// @Accept       json
// @Produce      json
// @Param        id path string true "order id"
// @Param        body body UpdateStatusRequest true "new status"
// @Success      200 {object} map[string]string
// @Failure      400 {object} map[string]string
// @Router       /orders/{id}/status [put]
func updateOrderStatusHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !order.ValidStatus(req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		if err := repo.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
			if errors.Is(err, order.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": req.Status})
	}
}

// updatePaymentStatusHandler godoc
// @Summary      Transition an order's payment status (admin)
// @Accept       json
// @Produce      json
// @Param        id path string true "order id"
// @Param        body body UpdateStatusRequest true "new payment status"
// @Success      200 {object} map[string]string
// @Router       /orders/{id}/payment-status [put]
func updatePaymentStatusHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !order.ValidPaymentStatus(req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment status"})
			return
		}
		if err := repo.UpdatePaymentStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
			if errors.Is(err, order.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "payment_status": req.Status})
	}
}

// CreateVoucherRequest payload for voucher creation (admin).
// swagger:model CreateVoucherRequest
type CreateVoucherRequest struct {
	Code                  string `json:"code" binding:"required" example:"SAVE10"`
	Type                  string `json:"type" binding:"required,oneof=percentage fixed_amount"`
	Value                 string `json:"value" binding:"required" example:"10"`
	MinimumOrderAmount    string `json:"minimum_order_amount"`
	MaximumDiscountAmount string `json:"maximum_discount_amount"`
	UsageLimit            *int   `json:"usage_limit"`
	UserUsageLimit        int    `json:"user_usage_limit" example:"1"`
	StartsAt              string `json:"starts_at" binding:"required" example:"2025-01-01T00:00:00Z"`
	ExpiresAt             string `json:"expires_at"`
}

// createVoucherHandler godoc
// @Summary      Create a voucher (admin)
// @Accept       json
// @Produce      json
// @Param        body body CreateVoucherRequest true "voucher"
// @Success      201 {object} voucher.Voucher
// @Router       /admin/vouchers [post]
func createVoucherHandler(repo voucher.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateVoucherRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		v := &voucher.Voucher{
			ID:             uuid.NewString(),
			Code:           req.Code,
			Type:           req.Type,
			UsageLimit:     req.UsageLimit,
			UserUsageLimit: req.UserUsageLimit,
			IsActive:       true,
		}
		if v.UserUsageLimit <= 0 {
			v.UserUsageLimit = 1
		}

		var err error
		if v.Value, err = money.Parse(req.Value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid value"})
			return
		}
		if req.MinimumOrderAmount != "" {
			d, err := money.Parse(req.MinimumOrderAmount)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid minimum_order_amount"})
				return
			}
			v.MinimumOrderAmount = &d
		}
		if req.MaximumDiscountAmount != "" {
			d, err := money.Parse(req.MaximumDiscountAmount)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid maximum_discount_amount"})
				return
			}
			v.MaximumDiscountAmount = &d
		}
		if v.StartsAt, err = time.Parse(time.RFC3339, req.StartsAt); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid starts_at"})
			return
		}
		if req.ExpiresAt != "" {
			t, err := time.Parse(time.RFC3339, req.ExpiresAt)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expires_at"})
				return
			}
			v.ExpiresAt = &t
		}

		if err := repo.Create(c.Request.Context(), v); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
			return
		}
		c.JSON(http.StatusCreated, v)
	}
}

// listVouchersHandler godoc
// @Summary      List vouchers (admin)
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /admin/vouchers [get]
func listVouchersHandler(repo voucher.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		vouchers, err := repo.List(c.Request.Context(), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
			return
		}
		if vouchers == nil {
			vouchers = []voucher.Voucher{}
		}
		c.JSON(http.StatusOK, gin.H{"vouchers": vouchers})
	}
}

func voucherErrorStatus(err error) int {
	switch {
	case errors.Is(err, voucher.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, voucher.ErrLimitReached), errors.Is(err, voucher.ErrUserLimitReached):
		return http.StatusConflict
	case errors.Is(err, voucher.ErrInactive), errors.Is(err, voucher.ErrNotValidNow), errors.Is(err, voucher.ErrMinimumNotMet):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func checkoutErrorStatus(err error) int {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrPriceChanged):
		return http.StatusConflict
	case errors.Is(err, voucher.ErrNotFound),
		errors.Is(err, voucher.ErrLimitReached),
		errors.Is(err, voucher.ErrUserLimitReached),
		errors.Is(err, voucher.ErrInactive),
		errors.Is(err, voucher.ErrNotValidNow),
		errors.Is(err, voucher.ErrMinimumNotMet):
		return voucherErrorStatus(err)
	default:
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}

func checkoutErrorMessage(err error) string {
	if checkoutErrorStatus(err) == http.StatusInternalServerError {
		// dependent-write faults are an operator concern; the customer gets
		// a generic message
		return "checkout failed"
	}
	return err.Error()
}
