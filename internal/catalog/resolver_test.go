package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frescora/pedidos-api/internal/storage"
)

// ---------- in-memory fakes ----------

type fakeTx struct{}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type fakeTxManager struct{}

func (fakeTxManager) Begin(context.Context) (storage.Tx, error) { return fakeTx{}, nil }

type fakePriceRepo struct {
	products map[string]*Product
	lists    []PriceList
	prices   []*ProductPrice
	seq      int
}

func newFakePriceRepo() *fakePriceRepo {
	return &fakePriceRepo{products: map[string]*Product{}}
}

func (f *fakePriceRepo) GetProduct(_ context.Context, id string) (*Product, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return nil, ErrProductNotFound
}

func (f *fakePriceRepo) GetProductBySKU(_ context.Context, sku string) (*Product, error) {
	for _, p := range f.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return nil, ErrProductNotFound
}

func (f *fakePriceRepo) GetCombo(context.Context, string) (*Combo, error) {
	return nil, ErrComboNotFound
}

func (f *fakePriceRepo) GetPriceList(_ context.Context, id string) (*PriceList, error) {
	for i := range f.lists {
		if f.lists[i].ID == id {
			return &f.lists[i], nil
		}
	}
	return nil, ErrPriceListNotFound
}

func (f *fakePriceRepo) GetPriceListByName(_ context.Context, name string) (*PriceList, error) {
	for i := range f.lists {
		if f.lists[i].Name == name && f.lists[i].Active {
			return &f.lists[i], nil
		}
	}
	return nil, ErrPriceListNotFound
}

func (f *fakePriceRepo) DefaultPriceList(context.Context) (*PriceList, error) {
	var best *PriceList
	for i := range f.lists {
		pl := &f.lists[i]
		if !pl.Active {
			continue
		}
		if best == nil || pl.Priority < best.Priority {
			best = pl
		}
	}
	if best == nil {
		return nil, ErrPriceListNotFound
	}
	return best, nil
}

func (f *fakePriceRepo) ListPriceLists(context.Context) ([]PriceList, error) { return f.lists, nil }
func (f *fakePriceRepo) CreatePriceList(_ context.Context, pl *PriceList) error {
	f.lists = append(f.lists, *pl)
	return nil
}
func (f *fakePriceRepo) UpdatePriceList(context.Context, *PriceList) error { return nil }
func (f *fakePriceRepo) DeletePriceList(context.Context, string) error     { return nil }

func (f *fakePriceRepo) CurrentPrice(_ context.Context, productID, priceListID string, now time.Time) (*ProductPrice, error) {
	var best *ProductPrice
	for _, pp := range f.prices {
		if pp.ProductID != productID || pp.PriceListID != priceListID {
			continue
		}
		if pp.ValidFrom.After(now) {
			continue
		}
		if pp.ValidTo != nil && pp.ValidTo.Before(now) {
			continue
		}
		if best == nil || pp.CreatedAt.After(best.CreatedAt) {
			best = pp
		}
	}
	if best == nil {
		return nil, ErrNoCurrentPrice
	}
	return best, nil
}

func (f *fakePriceRepo) CloseOpenWindows(_ context.Context, _ storage.Tx, productID, priceListID string, from time.Time) error {
	for _, pp := range f.prices {
		if pp.ProductID != productID || pp.PriceListID != priceListID {
			continue
		}
		if pp.ValidTo == nil || pp.ValidTo.After(from) {
			end := from
			pp.ValidTo = &end
		}
	}
	return nil
}

func (f *fakePriceRepo) InsertPrice(_ context.Context, _ storage.Tx, pp *ProductPrice) error {
	f.seq++
	pp.CreatedAt = time.Unix(int64(f.seq), 0)
	f.prices = append(f.prices, pp)
	return nil
}

func (f *fakePriceRepo) ListPricesForProduct(_ context.Context, productID string) ([]ProductPrice, error) {
	var out []ProductPrice
	for _, pp := range f.prices {
		if pp.ProductID == productID {
			out = append(out, *pp)
		}
	}
	return out, nil
}

// ---------- tests ----------

func day(n int) time.Time {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func setupResolver(t *testing.T) (*Resolver, *fakePriceRepo, string, string) {
	t.Helper()
	repo := newFakePriceRepo()
	productID := uuid.NewString()
	repo.products[productID] = &Product{ID: productID, SKU: "PAP-001", Name: "Papa negra", Active: true}
	listID := uuid.NewString()
	repo.lists = append(repo.lists, PriceList{ID: listID, Name: "minorista", Priority: 10, Active: true})
	return NewResolver(repo, fakeTxManager{}), repo, productID, listID
}

func TestSetPrice_ReplaceActiveClosesWindow(t *testing.T) {
	r, repo, productID, listID := setupResolver(t)
	ctx := context.Background()

	from0 := day(0)
	_, err := r.SetPrice(ctx, SetPriceInput{
		ProductID: productID, PriceListID: listID,
		Price: dec("100"), ValidFrom: &from0,
	})
	require.NoError(t, err)

	from5 := day(5)
	_, err = r.SetPrice(ctx, SetPriceInput{
		ProductID: productID, PriceListID: listID,
		Price: dec("120"), ValidFrom: &from5,
	})
	require.NoError(t, err)

	// The first window must have been closed at day 5.
	first := repo.prices[0]
	require.NotNil(t, first.ValidTo)
	assert.True(t, first.ValidTo.Equal(day(5)))

	// Day 3 resolves to 100, day 6 to 120.
	pp, err := r.Current(ctx, productID, listID, day(3))
	require.NoError(t, err)
	assert.True(t, pp.Price.Equal(dec("100")), "got %s", pp.Price)

	pp, err = r.Current(ctx, productID, listID, day(6))
	require.NoError(t, err)
	assert.True(t, pp.Price.Equal(dec("120")), "got %s", pp.Price)
}

func TestSetPrice_NoOverlapAfterMany(t *testing.T) {
	r, repo, productID, listID := setupResolver(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		from := day(i * 2)
		_, err := r.SetPrice(ctx, SetPriceInput{
			ProductID: productID, PriceListID: listID,
			Price: dec("10").Add(dec("1").Mul(decimal.NewFromInt(int64(i)))), ValidFrom: &from,
		})
		require.NoError(t, err)
	}

	// At any instant at most one window is open.
	for n := 0; n < 12; n++ {
		at := day(n).Add(time.Hour)
		open := 0
		for _, pp := range repo.prices {
			if !pp.ValidFrom.After(at) && (pp.ValidTo == nil || pp.ValidTo.After(at)) {
				open++
			}
		}
		assert.LessOrEqual(t, open, 1, "instant day %d", n)
	}
}

func TestSetPrice_RejectsInvertedWindow(t *testing.T) {
	r, _, productID, listID := setupResolver(t)

	from := day(5)
	to := day(3)
	_, err := r.SetPrice(context.Background(), SetPriceInput{
		ProductID: productID, PriceListID: listID,
		Price: dec("100"), ValidFrom: &from, ValidTo: &to,
	})
	assert.ErrorIs(t, err, ErrValidWindow)
}

func TestCurrent_NoPrice(t *testing.T) {
	r, _, productID, listID := setupResolver(t)
	_, err := r.Current(context.Background(), productID, listID, day(1))
	assert.ErrorIs(t, err, ErrNoCurrentPrice)
}

func TestResolveListLenient_FallsBackToDefault(t *testing.T) {
	r, repo, _, _ := setupResolver(t)
	repo.lists = append(repo.lists, PriceList{ID: uuid.NewString(), Name: "mayorista", Priority: 20, Active: true})

	pl, err := r.ResolveListLenient(context.Background(), "no-such-list")
	require.NoError(t, err)
	assert.Equal(t, "minorista", pl.Name)

	pl, err = r.ResolveListLenient(context.Background(), "mayorista")
	require.NoError(t, err)
	assert.Equal(t, "mayorista", pl.Name)
}
