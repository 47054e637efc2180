package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/glowmart/storefront/docs"
	"github.com/glowmart/storefront/internal/cart"
	"github.com/glowmart/storefront/internal/catalog"
	"github.com/glowmart/storefront/internal/checkout"
	"github.com/glowmart/storefront/internal/config"
	"github.com/glowmart/storefront/internal/db"
	"github.com/glowmart/storefront/internal/httpx"
	"github.com/glowmart/storefront/internal/identity"
	"github.com/glowmart/storefront/internal/money"
	"github.com/glowmart/storefront/internal/notify"
	"github.com/glowmart/storefront/internal/order"
	"github.com/glowmart/storefront/internal/voucher"
)

// @title           GlowMart Checkout API
// @version         1.0
// @description     Cart, voucher and checkout endpoints for the storefront.
// @BasePath        /
func main() {
	cfg := config.Load()

	if err := db.RunMigrations(cfg.PostgresDSN, cfg.MigrationsDir); err != nil {
		log.Fatalf("[checkout-service] migrations: %v", err)
	}

	pool, err := db.NewPool(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("[checkout-service] database: %v", err)
	}
	defer pool.Close()

	shippingRate, err := money.Parse(cfg.ShippingFlatRate)
	if err != nil {
		log.Fatalf("[checkout-service] SHIPPING_FLAT_RATE: %v", err)
	}
	if err := os.MkdirAll(cfg.CartDataDir, 0o755); err != nil {
		log.Fatalf("[checkout-service] cart data dir: %v", err)
	}

	orders := order.NewPGRepo(pool)
	vouchers := voucher.NewPGRepo(pool)
	sessions := identity.NewPGSessions(pool)
	carts := cart.NewManager(cfg.CartDataDir, cart.NewPGRepo(pool))
	catalogClient := catalog.NewClient(cfg.CatalogBaseURL)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.AMQPURL != "" {
		pub, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.OrderQueue)
		if err != nil {
			log.Fatalf("[checkout-service] amqp: %v", err)
		}
		defer pub.Close()
		notifier = pub
	} else {
		log.Printf("[checkout-service] AMQP_URL not set, order events disabled")
	}

	orch := checkout.New(orders, vouchers, catalogClient, notifier)

	r := gin.Default()
	r.Use(httpx.RequestID(), httpx.Logger(), httpx.CurrentUser(sessions))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.POST("/sessions", createSessionHandler(sessions))

	r.GET("/cart", getCartHandler(carts))
	r.POST("/cart/items", addCartItemHandler(carts))
	r.PATCH("/cart/items/:id", updateCartItemHandler(carts))
	r.DELETE("/cart/items/:id", removeCartItemHandler(carts))
	r.POST("/cart/rehydrate", rehydrateCartHandler(carts))

	r.POST("/vouchers/validate", validateVoucherHandler(orch, carts))
	r.POST("/checkout", checkoutHandler(orch, carts, shippingRate))

	r.GET("/orders/:id", getOrderHandler(orders))
	r.GET("/orders/:id/items", getOrderItemsHandler(orders))
	r.GET("/orders/user/:user_id", listOrdersByUserHandler(orders))
	r.PUT("/orders/:id/status", updateOrderStatusHandler(orders))
	r.PUT("/orders/:id/payment-status", updatePaymentStatusHandler(orders))

	r.POST("/admin/vouchers", createVoucherHandler(vouchers))
	r.GET("/admin/vouchers", listVouchersHandler(vouchers))

	log.Printf("[checkout-service] listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("[checkout-service] server: %v", err)
	}
}
