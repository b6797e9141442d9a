// Package stock tracks on-hand quantity per product/warehouse and the
// ephemeral reservations claimed by open orders.
package stock

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInsufficientStock = errors.New("insufficient stock")

type Current struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	WarehouseID *string         `json:"warehouse_id"`
	Qty         decimal.Decimal `json:"qty"`
}

// Reservation is a provisional claim on stock tied to an order. It
// lives between order creation and pack (or cancellation) only.
type Reservation struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Qty       decimal.Decimal `json:"qty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Availability is the read-only projection used by stock displays:
// what is on hand minus what open orders have already claimed.
type Availability struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	WarehouseID *string         `json:"warehouse_id"`
	OnHand      decimal.Decimal `json:"on_hand"`
	Reserved    decimal.Decimal `json:"reserved"`
	Available   decimal.Decimal `json:"available"`
}
