// Package catalog holds the read surface of the product catalog that
// the order core needs: products with their packaging rule, combos,
// price lists and time-windowed product prices.
package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrComboNotFound     = errors.New("combo not found")
	ErrPriceListNotFound = errors.New("price list not found")
	ErrNoCurrentPrice    = errors.New("no current price for product")
	ErrQuantity          = errors.New("quantity violates packaging rule")
)

// qtyTolerance absorbs float noise when checking step multiples.
var qtyTolerance = decimal.New(1, -6) // 1e-6

type Product struct {
	ID       string          `json:"id"`
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	UnitType string          `json:"unit_type"` // kg, unit, bunch...
	Step     decimal.Decimal `json:"step"`
	MinQty   decimal.Decimal `json:"min_qty"`
	MaxQty   decimal.Decimal `json:"max_qty"`
	Active   bool            `json:"active"`
}

// ValidateQty checks qty against the packaging rule: within
// [MinQty, MaxQty] and equal to MinQty + k*Step for integer k >= 0.
func (p *Product) ValidateQty(qty decimal.Decimal) error {
	step := p.Step
	if step.IsZero() {
		step = decimal.NewFromInt(1)
	}
	min := p.MinQty
	if min.IsZero() {
		min = decimal.NewFromInt(1)
	}
	max := p.MaxQty
	if max.IsZero() {
		max = decimal.NewFromInt(999999)
	}

	if qty.LessThan(min) {
		return fmt.Errorf("%w: minimum quantity is %s", ErrQuantity, min)
	}
	if qty.GreaterThan(max) {
		return fmt.Errorf("%w: maximum quantity is %s", ErrQuantity, max)
	}
	rem := qty.Sub(min).Mod(step)
	if rem.GreaterThan(qtyTolerance) && step.Sub(rem).GreaterThan(qtyTolerance) {
		return fmt.Errorf("%w: quantity must be a multiple of step %s", ErrQuantity, step)
	}
	return nil
}

type Combo struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Active   bool            `json:"active"`
}

type PriceList struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	Priority  int       `json:"priority"` // lower = preferred default
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ProductPrice struct {
	ID             string           `json:"id"`
	ProductID      string           `json:"product_id"`
	PriceListID    string           `json:"price_list_id"`
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price,omitempty"`
	ValidFrom      time.Time        `json:"valid_from"`
	ValidTo        *time.Time       `json:"valid_to,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}
