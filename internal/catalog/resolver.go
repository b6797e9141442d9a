package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/frescora/pedidos-api/internal/storage"
)

var ErrValidWindow = errors.New("valid_to must be greater than valid_from")

// Resolver picks the price that applies to a (product, price list)
// pair at a given instant, and maintains the non-overlap of validity
// windows when new prices are inserted.
type Resolver struct {
	repo Repository
	txm  storage.TxManager

	// Now is swappable in tests.
	Now func() time.Time
}

func NewResolver(repo Repository, txm storage.TxManager) *Resolver {
	return &Resolver{repo: repo, txm: txm, Now: time.Now}
}

// ResolveList resolves an explicit price list by id or name; with
// neither given it falls back to the active list with lowest priority.
func (r *Resolver) ResolveList(ctx context.Context, id, name string) (*PriceList, error) {
	if id != "" {
		return r.repo.GetPriceList(ctx, id)
	}
	if name != "" {
		return r.repo.GetPriceListByName(ctx, name)
	}
	return r.repo.DefaultPriceList(ctx)
}

// ResolveListLenient prefers the named list but falls back to the
// default instead of failing. Carts bind their list this way.
func (r *Resolver) ResolveListLenient(ctx context.Context, name string) (*PriceList, error) {
	if name != "" {
		if pl, err := r.repo.GetPriceListByName(ctx, name); err == nil {
			return pl, nil
		}
	}
	return r.repo.DefaultPriceList(ctx)
}

// Current returns the valid price for the product on the given list at
// instant at (zero value means now).
func (r *Resolver) Current(ctx context.Context, productID, priceListID string, at time.Time) (*ProductPrice, error) {
	if at.IsZero() {
		at = r.Now()
	}
	if priceListID == "" {
		pl, err := r.repo.DefaultPriceList(ctx)
		if err != nil {
			return nil, err
		}
		priceListID = pl.ID
	}
	return r.repo.CurrentPrice(ctx, productID, priceListID, at)
}

type SetPriceInput struct {
	ProductID      string           `json:"productId"`
	ProductSKU     string           `json:"productSku"`
	PriceListID    string           `json:"priceListId"`
	PriceListName  string           `json:"priceListName"`
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compareAtPrice"`
	ValidFrom      *time.Time       `json:"validFrom"`
	ValidTo        *time.Time       `json:"validTo"`
	ReplaceActive  *bool            `json:"replaceActive"` // nil means true
}

// SetPrice inserts a new validity window. With replaceActive (the
// default) it first closes every window of the pair still open at
// validFrom, in the same transaction as the insert: that closing is
// the sole overlap-prevention mechanism.
func (r *Resolver) SetPrice(ctx context.Context, in SetPriceInput) (*ProductPrice, error) {
	var product *Product
	var err error
	switch {
	case in.ProductID != "":
		product, err = r.repo.GetProduct(ctx, in.ProductID)
	case in.ProductSKU != "":
		product, err = r.repo.GetProductBySKU(ctx, in.ProductSKU)
	default:
		return nil, fmt.Errorf("productId or productSku is required")
	}
	if err != nil {
		return nil, err
	}

	pl, err := r.ResolveList(ctx, in.PriceListID, in.PriceListName)
	if err != nil {
		return nil, err
	}

	validFrom := r.Now()
	if in.ValidFrom != nil {
		validFrom = *in.ValidFrom
	}
	if in.ValidTo != nil && !in.ValidTo.After(validFrom) {
		return nil, ErrValidWindow
	}

	pp := &ProductPrice{
		ID:             uuid.NewString(),
		ProductID:      product.ID,
		PriceListID:    pl.ID,
		Price:          in.Price,
		CompareAtPrice: in.CompareAtPrice,
		ValidFrom:      validFrom,
		ValidTo:        in.ValidTo,
	}

	tx, err := r.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if in.ReplaceActive == nil || *in.ReplaceActive {
		if err := r.repo.CloseOpenWindows(ctx, tx, product.ID, pl.ID, validFrom); err != nil {
			return nil, err
		}
	}
	if err := r.repo.InsertPrice(ctx, tx, pp); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return pp, nil
}

// SetPrices applies a batch of upserts one by one; the first failure
// aborts the rest.
func (r *Resolver) SetPrices(ctx context.Context, items []SetPriceInput) ([]ProductPrice, error) {
	out := make([]ProductPrice, 0, len(items))
	for i, in := range items {
		pp, err := r.SetPrice(ctx, in)
		if err != nil {
			return out, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, *pp)
	}
	return out, nil
}
