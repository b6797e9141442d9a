package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frescora/pedidos-api/internal/cart"
	"github.com/frescora/pedidos-api/internal/catalog"
	"github.com/frescora/pedidos-api/internal/delivery"
	"github.com/frescora/pedidos-api/internal/httpx"
	"github.com/frescora/pedidos-api/internal/order"
	"github.com/frescora/pedidos-api/internal/payment"
	"github.com/frescora/pedidos-api/internal/stock"
)

type app struct {
	carts    *cart.Service
	orders   *order.Service
	payments *payment.Service
	slots    *delivery.Service
	resolver *catalog.Resolver
	catalog  catalog.Repository
	ledger   stock.Ledger
}

func newRouter(a *app) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/cart", createCartHandler(a.carts))
	r.GET("/cart/:id", getCartHandler(a.carts))
	r.POST("/cart/items", addCartItemHandler(a.carts))
	r.PATCH("/cart/items/:id", updateCartItemHandler(a.carts))
	r.DELETE("/cart/items/:id", removeCartItemHandler(a.carts))

	r.POST("/orders", createOrderHandler(a.orders))
	r.GET("/orders/:number", getOrderHandler(a.orders))

	r.GET("/delivery/slots", listSlotsHandler(a.slots))
	r.POST("/delivery/slots", createSlotHandler(a.slots))
	r.POST("/delivery/weekday-slots", upsertWeekdaySlotsHandler(a.slots))
	r.GET("/delivery/weekday-slots/:weekday", weekdaySlotsHandler(a.slots))

	admin := r.Group("/admin")
	{
		admin.GET("/orders", listOrdersHandler(a.orders))
		admin.PATCH("/orders/:number/status", updateOrderStatusHandler(a.orders))
		admin.POST("/orders/:number/assign-driver", assignDriverHandler(a.orders))
		admin.POST("/orders/:number/delivered", markDeliveredHandler(a.orders))

		admin.GET("/stock", listStockHandler(a.ledger))
		admin.GET("/stock/:productId", getStockHandler(a.ledger))
		admin.POST("/stock/:productId/add", addStockHandler(a.ledger))

		admin.GET("/prices/lists", listPriceListsHandler(a.catalog))
		admin.POST("/prices/lists", createPriceListHandler(a.catalog))
		admin.PATCH("/prices/lists/:id", updatePriceListHandler(a.catalog))
		admin.DELETE("/prices/lists/:id", deletePriceListHandler(a.catalog))
		admin.POST("/prices/product-prices", setPriceHandler(a.resolver))
		admin.POST("/prices/product-prices/bulk", setPricesBulkHandler(a.resolver))
		admin.GET("/prices/products/:productId", listProductPricesHandler(a.catalog))

		admin.GET("/payments", listPaymentsHandler(a.payments))
		admin.GET("/payments/orders/:number", orderPaymentsHandler(a.payments))
		admin.PATCH("/payments/orders/:number", manualPaymentHandler(a.payments))
		admin.GET("/payments/webhooks/dead-letter", deadLettersHandler(a.payments))
	}

	r.POST("/payments/mercadopago/checkout", createCheckoutHandler(a.payments))
	r.POST("/payments/mercadopago/webhook", webhookHandler(a.payments))

	return r
}
