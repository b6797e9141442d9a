package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/frescora/pedidos-api/internal/catalog"
	"github.com/frescora/pedidos-api/internal/storage"
)

// Service prices cart lines and keeps the aggregates consistent. A
// mutation and its recalculation always share one transaction, so a
// reader can never observe changed items with stale totals.
type Service struct {
	repo     Repository
	catalog  catalog.Repository
	resolver *catalog.Resolver
	txm      storage.TxManager

	defaultList     string
	defaultCurrency string

	// Now is swappable in tests.
	Now func() time.Time
}

func NewService(repo Repository, cat catalog.Repository, resolver *catalog.Resolver, txm storage.TxManager, defaultList, defaultCurrency string) *Service {
	return &Service{
		repo:            repo,
		catalog:         cat,
		resolver:        resolver,
		txm:             txm,
		defaultList:     defaultList,
		defaultCurrency: defaultCurrency,
		Now:             time.Now,
	}
}

type CreateCartInput struct {
	SessionID string `json:"sessionId"`
	PriceList string `json:"priceList"`
}

func (s *Service) CreateCart(ctx context.Context, in CreateCartInput) (*Cart, error) {
	c := &Cart{ID: uuid.NewString(), Currency: s.defaultCurrency}
	if in.SessionID != "" {
		c.SessionID = &in.SessionID
	}
	listName := in.PriceList
	if listName == "" {
		listName = s.defaultList
	}
	if pl, err := s.resolver.ResolveListLenient(ctx, listName); err == nil {
		c.PriceListID = &pl.ID
		c.PriceListName = pl.Name
		if pl.Currency != "" {
			c.Currency = pl.Currency
		}
	}
	if err := s.repo.CreateCart(ctx, c); err != nil {
		return nil, err
	}
	return s.repo.GetCart(ctx, c.ID)
}

func (s *Service) Get(ctx context.Context, id string) (*Cart, error) {
	return s.repo.GetCart(ctx, id)
}

type AddItemInput struct {
	CartID    string          `json:"cartId"`
	ProductID string          `json:"productId"`
	ComboID   string          `json:"comboId"`
	Qty       decimal.Decimal `json:"qty"`
	UnitType  string          `json:"unitType"`
}

func (s *Service) AddItem(ctx context.Context, in AddItemInput) (*Cart, error) {
	c, err := s.repo.GetCart(ctx, in.CartID)
	if err != nil {
		return nil, err
	}
	ref, err := NewLineRef(in.ProductID, in.ComboID)
	if err != nil {
		return nil, err
	}

	it := &Item{
		ID:     uuid.NewString(),
		CartID: c.ID,
		Ref:    ref,
		Qty:    in.Qty,
	}

	switch ref.Kind {
	case RefProduct:
		p, err := s.catalog.GetProduct(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, catalog.ErrProductNotFound
		}
		if err := p.ValidateQty(in.Qty); err != nil {
			return nil, err
		}
		listID := ""
		if c.PriceListID != nil {
			listID = *c.PriceListID
		}
		price, err := s.resolver.Current(ctx, p.ID, listID, s.Now())
		if err != nil {
			return nil, err
		}
		it.Name = p.Name
		if p.SKU != "" {
			sku := p.SKU
			it.SKU = &sku
		}
		it.UnitType = p.UnitType
		if in.UnitType != "" {
			it.UnitType = in.UnitType
		}
		it.UnitPrice = price.Price.Round(2)
		if price.CompareAtPrice != nil {
			d := price.CompareAtPrice.Round(2)
			it.CompareAtPrice = &d
		}
	case RefCombo:
		cb, err := s.catalog.GetCombo(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if !cb.Active {
			return nil, catalog.ErrComboNotFound
		}
		if in.Qty.LessThan(decimal.NewFromInt(1)) {
			return nil, ErrComboMinQty
		}
		it.Name = cb.Name
		it.UnitType = "combo"
		it.UnitPrice = cb.Price.Round(2)
	}

	it.Total = it.UnitPrice.Mul(it.Qty).Round(2)

	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.repo.InsertItem(ctx, tx, it); err != nil {
		return nil, err
	}
	if err := s.recalcTotals(ctx, tx, c.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetCart(ctx, c.ID)
}

func (s *Service) UpdateItem(ctx context.Context, itemID string, qty decimal.Decimal) (*Cart, error) {
	it, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	switch it.Ref.Kind {
	case RefProduct:
		p, err := s.catalog.GetProduct(ctx, it.Ref.ID)
		if err != nil {
			return nil, err
		}
		if err := p.ValidateQty(qty); err != nil {
			return nil, err
		}
	case RefCombo:
		if qty.LessThan(decimal.NewFromInt(1)) {
			return nil, ErrComboMinQty
		}
	}

	// Unit price stays as snapshotted at insertion time.
	total := it.UnitPrice.Mul(qty).Round(2)

	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.repo.UpdateItemQty(ctx, tx, itemID, qty, total); err != nil {
		return nil, err
	}
	if err := s.recalcTotals(ctx, tx, it.CartID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetCart(ctx, it.CartID)
}

func (s *Service) RemoveItem(ctx context.Context, itemID string) (*Cart, error) {
	it, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.repo.DeleteItem(ctx, tx, itemID); err != nil {
		return nil, err
	}
	if err := s.recalcTotals(ctx, tx, it.CartID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetCart(ctx, it.CartID)
}

// recalcTotals derives the cart aggregates from its items:
// subtotal = sum of line totals, discount = sum of positive
// (compare-at - unit) * qty, total = subtotal (shipping and taxes are
// added later at checkout). Everything rounded to 2 decimals.
func (s *Service) recalcTotals(ctx context.Context, tx storage.Tx, cartID string) error {
	items, err := s.repo.ItemsInTx(ctx, tx, cartID)
	if err != nil {
		return err
	}
	subtotal := decimal.Zero
	discount := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Total)
		if it.CompareAtPrice != nil {
			diff := it.CompareAtPrice.Sub(it.UnitPrice)
			if diff.IsPositive() {
				discount = discount.Add(diff.Mul(it.Qty))
			}
		}
	}
	subtotal = subtotal.Round(2)
	discount = discount.Round(2)
	total := subtotal
	return s.repo.UpdateTotals(ctx, tx, cartID, subtotal, discount, total)
}
