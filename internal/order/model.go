// Package order is the lifecycle core: it turns a priced cart into a
// durable order, drives the status state machine, and owns the
// append-only transition history.
package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("order not found")
	ErrNoItems  = errors.New("order needs at least one item")
	ErrItemRef  = errors.New("exactly one of productId or comboId must be set")
)

// Order snapshots names and prices at creation time so historical
// orders stay stable when the catalog changes.
type Order struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`

	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	CustomerName  string  `json:"customer_name"`
	CustomerPhone string  `json:"customer_phone"`
	CustomerEmail *string `json:"customer_email,omitempty"`

	AddressLine  string  `json:"address_line"`
	AddressCity  string  `json:"address_city"`
	AddressNotes *string `json:"address_notes,omitempty"`

	DeliveryDate string  `json:"delivery_date"` // YYYY-MM-DD
	SlotID       *string `json:"slot_id,omitempty"`

	Currency      string          `json:"currency"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	ShippingTotal decimal.Decimal `json:"shipping_total"`
	Total         decimal.Decimal `json:"total"`

	Items      []Item            `json:"items"`
	History    []StatusHistory   `json:"history,omitempty"`
	Assignment *DriverAssignment `json:"assignment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Item struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"order_id"`
	ProductID *string `json:"product_id,omitempty"`
	ComboID   *string `json:"combo_id,omitempty"`

	Name     string  `json:"name"`
	SKU      *string `json:"sku,omitempty"`
	UnitType string  `json:"unit_type"`

	Qty            decimal.Decimal  `json:"qty"`
	UnitPrice      decimal.Decimal  `json:"unit_price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price,omitempty"`
	Total          decimal.Decimal  `json:"total"`
}

// StatusHistory rows are append-only, one per transition.
type StatusHistory struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type DriverAssignment struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"order_id"`
	DriverName  string     `json:"driver_name"`
	DriverPhone *string    `json:"driver_phone,omitempty"`
	AssignedAt  time.Time  `json:"assigned_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ProofURL    *string    `json:"proof_url,omitempty"`
}
