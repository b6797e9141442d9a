package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/frescora/pedidos-api/internal/storage"
)

type Repository interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*Product, error)
	GetCombo(ctx context.Context, id string) (*Combo, error)

	GetPriceList(ctx context.Context, id string) (*PriceList, error)
	GetPriceListByName(ctx context.Context, name string) (*PriceList, error)
	// DefaultPriceList returns the active list with the lowest priority.
	DefaultPriceList(ctx context.Context) (*PriceList, error)
	ListPriceLists(ctx context.Context) ([]PriceList, error)
	CreatePriceList(ctx context.Context, pl *PriceList) error
	UpdatePriceList(ctx context.Context, pl *PriceList) error
	// DeletePriceList deactivates the list. Price rows keep referencing
	// it, so removal is a soft one.
	DeletePriceList(ctx context.Context, id string) error

	// CurrentPrice returns the price row valid at now for the pair,
	// preferring the most recently created when several qualify.
	CurrentPrice(ctx context.Context, productID, priceListID string, now time.Time) (*ProductPrice, error)
	// CloseOpenWindows sets valid_to = from on every window of the pair
	// still open at from. Must run in the same tx as InsertPrice.
	CloseOpenWindows(ctx context.Context, tx storage.Tx, productID, priceListID string, from time.Time) error
	InsertPrice(ctx context.Context, tx storage.Tx, pp *ProductPrice) error
	ListPricesForProduct(ctx context.Context, productID string) ([]ProductPrice, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) GetProduct(ctx context.Context, id string) (*Product, error) {
	return r.scanProduct(ctx, `
		SELECT id, sku, name, unit_type, step::text, min_qty::text, max_qty::text, active
		FROM product WHERE id=$1 AND deleted_at IS NULL
	`, id)
}

func (r *PGRepo) GetProductBySKU(ctx context.Context, sku string) (*Product, error) {
	return r.scanProduct(ctx, `
		SELECT id, sku, name, unit_type, step::text, min_qty::text, max_qty::text, active
		FROM product WHERE sku=$1 AND deleted_at IS NULL
	`, sku)
}

func (r *PGRepo) scanProduct(ctx context.Context, sql string, arg any) (*Product, error) {
	var p Product
	var step, min, max string
	err := r.db.QueryRow(ctx, sql, arg).
		Scan(&p.ID, &p.SKU, &p.Name, &p.UnitType, &step, &min, &max, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Step, _ = decimal.NewFromString(step)
	p.MinQty, _ = decimal.NewFromString(min)
	p.MaxQty, _ = decimal.NewFromString(max)
	return &p, nil
}

func (r *PGRepo) GetCombo(ctx context.Context, id string) (*Combo, error) {
	var c Combo
	var price string
	err := r.db.QueryRow(ctx, `
		SELECT id, name, price::text, currency, active
		FROM combo WHERE id=$1 AND deleted_at IS NULL
	`, id).Scan(&c.ID, &c.Name, &price, &c.Currency, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrComboNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Price, _ = decimal.NewFromString(price)
	return &c, nil
}

const priceListCols = `id, name, currency, priority, active, created_at, updated_at`

func (r *PGRepo) GetPriceList(ctx context.Context, id string) (*PriceList, error) {
	return r.scanPriceList(r.db.QueryRow(ctx,
		`SELECT `+priceListCols+` FROM price_list WHERE id=$1`, id))
}

func (r *PGRepo) GetPriceListByName(ctx context.Context, name string) (*PriceList, error) {
	return r.scanPriceList(r.db.QueryRow(ctx,
		`SELECT `+priceListCols+` FROM price_list WHERE name=$1 AND active=true`, name))
}

func (r *PGRepo) DefaultPriceList(ctx context.Context) (*PriceList, error) {
	return r.scanPriceList(r.db.QueryRow(ctx,
		`SELECT `+priceListCols+` FROM price_list WHERE active=true ORDER BY priority ASC, name ASC LIMIT 1`))
}

func (r *PGRepo) scanPriceList(row pgx.Row) (*PriceList, error) {
	var pl PriceList
	err := row.Scan(&pl.ID, &pl.Name, &pl.Currency, &pl.Priority, &pl.Active, &pl.CreatedAt, &pl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPriceListNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pl, nil
}

func (r *PGRepo) ListPriceLists(ctx context.Context) ([]PriceList, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+priceListCols+` FROM price_list ORDER BY priority ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PriceList
	for rows.Next() {
		var pl PriceList
		if err := rows.Scan(&pl.ID, &pl.Name, &pl.Currency, &pl.Priority, &pl.Active, &pl.CreatedAt, &pl.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

func (r *PGRepo) CreatePriceList(ctx context.Context, pl *PriceList) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO price_list (id, name, currency, priority, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
	`, pl.ID, pl.Name, pl.Currency, pl.Priority, pl.Active)
	return err
}

func (r *PGRepo) UpdatePriceList(ctx context.Context, pl *PriceList) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE price_list
		SET name=$2, currency=$3, priority=$4, active=$5, updated_at=NOW()
		WHERE id=$1
	`, pl.ID, pl.Name, pl.Currency, pl.Priority, pl.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPriceListNotFound
	}
	return nil
}

func (r *PGRepo) DeletePriceList(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE price_list SET active=false, updated_at=NOW() WHERE id=$1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPriceListNotFound
	}
	return nil
}

func (r *PGRepo) CurrentPrice(ctx context.Context, productID, priceListID string, now time.Time) (*ProductPrice, error) {
	var pp ProductPrice
	var price string
	var compareAt *string
	err := r.db.QueryRow(ctx, `
		SELECT id, product_id, price_list_id, price::text, compare_at_price::text, valid_from, valid_to, created_at
		FROM product_price
		WHERE product_id=$1 AND price_list_id=$2
		  AND valid_from <= $3 AND (valid_to IS NULL OR valid_to >= $3)
		ORDER BY created_at DESC
		LIMIT 1
	`, productID, priceListID, now).
		Scan(&pp.ID, &pp.ProductID, &pp.PriceListID, &price, &compareAt, &pp.ValidFrom, &pp.ValidTo, &pp.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoCurrentPrice
	}
	if err != nil {
		return nil, err
	}
	pp.Price, _ = decimal.NewFromString(price)
	if compareAt != nil {
		d, _ := decimal.NewFromString(*compareAt)
		pp.CompareAtPrice = &d
	}
	return &pp, nil
}

func (r *PGRepo) CloseOpenWindows(ctx context.Context, tx storage.Tx, productID, priceListID string, from time.Time) error {
	pgTx := tx.(*storage.PGTx).Pgx()
	_, err := pgTx.Exec(ctx, `
		UPDATE product_price
		SET valid_to = $3, updated_at = NOW()
		WHERE product_id = $1 AND price_list_id = $2
		  AND (valid_to IS NULL OR valid_to > $3)
	`, productID, priceListID, from)
	return err
}

func (r *PGRepo) InsertPrice(ctx context.Context, tx storage.Tx, pp *ProductPrice) error {
	pgTx := tx.(*storage.PGTx).Pgx()
	var compareAt *string
	if pp.CompareAtPrice != nil {
		s := pp.CompareAtPrice.String()
		compareAt = &s
	}
	return pgTx.QueryRow(ctx, `
		INSERT INTO product_price (id, product_id, price_list_id, price, compare_at_price, valid_from, valid_to, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
		RETURNING created_at
	`, pp.ID, pp.ProductID, pp.PriceListID, pp.Price.String(), compareAt, pp.ValidFrom, pp.ValidTo).
		Scan(&pp.CreatedAt)
}

func (r *PGRepo) ListPricesForProduct(ctx context.Context, productID string) ([]ProductPrice, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, product_id, price_list_id, price::text, compare_at_price::text, valid_from, valid_to, created_at
		FROM product_price
		WHERE product_id=$1
		ORDER BY valid_from DESC
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProductPrice
	for rows.Next() {
		var pp ProductPrice
		var price string
		var compareAt *string
		if err := rows.Scan(&pp.ID, &pp.ProductID, &pp.PriceListID, &price, &compareAt, &pp.ValidFrom, &pp.ValidTo, &pp.CreatedAt); err != nil {
			return nil, err
		}
		pp.Price, _ = decimal.NewFromString(price)
		if compareAt != nil {
			d, _ := decimal.NewFromString(*compareAt)
			pp.CompareAtPrice = &d
		}
		out = append(out, pp)
	}
	return out, rows.Err()
}
