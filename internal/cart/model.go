// Package cart is the mutable pre-order staging area. Items snapshot
// their unit price at insertion time; cart aggregates are derived and
// recomputed after every mutation, never edited directly.
package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("cart item not found")
	ErrLineRef      = errors.New("exactly one of productId or comboId must be set")
	ErrComboMinQty  = errors.New("minimum combo quantity is 1")
)

type RefKind string

const (
	RefProduct RefKind = "product"
	RefCombo   RefKind = "combo"
)

// LineRef is the tagged product-or-combo reference of a line item.
type LineRef struct {
	Kind RefKind `json:"kind"`
	ID   string  `json:"id"`
}

// NewLineRef builds the variant from the two optional ids of the wire
// format, requiring exactly one to be present.
func NewLineRef(productID, comboID string) (LineRef, error) {
	switch {
	case productID != "" && comboID == "":
		return LineRef{Kind: RefProduct, ID: productID}, nil
	case comboID != "" && productID == "":
		return LineRef{Kind: RefCombo, ID: comboID}, nil
	default:
		return LineRef{}, ErrLineRef
	}
}

type Cart struct {
	ID            string          `json:"id"`
	SessionID     *string         `json:"session_id,omitempty"`
	PriceListID   *string         `json:"price_list_id,omitempty"`
	PriceListName string          `json:"price_list_name,omitempty"`
	Currency      string          `json:"currency"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	Total         decimal.Decimal `json:"total"`
	Items         []Item          `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Item struct {
	ID             string           `json:"id"`
	CartID         string           `json:"cart_id"`
	Ref            LineRef          `json:"ref"`
	Name           string           `json:"name"`
	SKU            *string          `json:"sku,omitempty"`
	UnitType       string           `json:"unit_type"`
	Qty            decimal.Decimal  `json:"qty"`
	UnitPrice      decimal.Decimal  `json:"unit_price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price,omitempty"`
	Total          decimal.Decimal  `json:"total"`
}
