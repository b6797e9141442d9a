package main

import (
	"context"
	"log"

	"github.com/frescora/pedidos-api/internal/cart"
	"github.com/frescora/pedidos-api/internal/catalog"
	"github.com/frescora/pedidos-api/internal/config"
	"github.com/frescora/pedidos-api/internal/delivery"
	"github.com/frescora/pedidos-api/internal/order"
	"github.com/frescora/pedidos-api/internal/payment"
	"github.com/frescora/pedidos-api/internal/stock"
	"github.com/frescora/pedidos-api/internal/storage"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	pool, err := storage.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("[storage] %v", err)
	}
	defer pool.Close()

	txm := storage.NewPGTxManager(pool)

	catalogRepo := catalog.NewPGRepo(pool)
	resolver := catalog.NewResolver(catalogRepo, txm)
	ledger := stock.NewPGLedger(pool)
	slots := delivery.NewService(delivery.NewPGRepo(pool))
	carts := cart.NewService(cart.NewPGRepo(pool), catalogRepo, resolver, txm, cfg.DefaultPriceList, cfg.DefaultCurrency)
	orders := order.NewService(order.NewPGRepo(pool), ledger, slots, txm, cfg.DefaultCurrency)

	provider := payment.NewMercadoPago(cfg.MPBaseURL, cfg.MPAccessToken)
	payments := payment.NewService(payment.NewPGRepo(pool), provider, orders, payment.CheckoutConfig{
		NotificationURL: cfg.MPWebhookPubURL,
		BackURLSuccess:  cfg.MPBackURLOK,
		BackURLFailure:  cfg.MPBackURLFail,
		BackURLPending:  cfg.MPBackURLPend,
	})

	r := newRouter(&app{
		carts:    carts,
		orders:   orders,
		payments: payments,
		slots:    slots,
		resolver: resolver,
		catalog:  catalogRepo,
		ledger:   ledger,
	})

	log.Printf("[http] listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("[http] %v", err)
	}
}
