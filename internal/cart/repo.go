package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/frescora/pedidos-api/internal/storage"
)

type Repository interface {
	CreateCart(ctx context.Context, c *Cart) error
	// GetCart returns the full projection: items plus derived totals.
	GetCart(ctx context.Context, id string) (*Cart, error)
	GetItem(ctx context.Context, itemID string) (*Item, error)

	InsertItem(ctx context.Context, tx storage.Tx, it *Item) error
	UpdateItemQty(ctx context.Context, tx storage.Tx, itemID string, qty, total decimal.Decimal) error
	DeleteItem(ctx context.Context, tx storage.Tx, itemID string) error
	// ItemsInTx reads the cart's items through the mutation's own
	// transaction so the recalculation sees its writes.
	ItemsInTx(ctx context.Context, tx storage.Tx, cartID string) ([]Item, error)
	UpdateTotals(ctx context.Context, tx storage.Tx, cartID string, subtotal, discount, total decimal.Decimal) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) CreateCart(ctx context.Context, c *Cart) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO cart (id, session_id, price_list_id, currency, subtotal, discount_total, total, created_at, updated_at)
		VALUES ($1,$2,$3,$4,0,0,0,NOW(),NOW())
	`, c.ID, c.SessionID, c.PriceListID, c.Currency)
	return err
}

func (r *PGRepo) GetCart(ctx context.Context, id string) (*Cart, error) {
	var c Cart
	var subtotal, discount, total string
	err := r.db.QueryRow(ctx, `
		SELECT c.id, c.session_id, c.price_list_id, COALESCE(pl.name,''), c.currency,
		       c.subtotal::text, c.discount_total::text, c.total::text, c.created_at, c.updated_at
		FROM cart c
		LEFT JOIN price_list pl ON pl.id = c.price_list_id
		WHERE c.id = $1
	`, id).Scan(&c.ID, &c.SessionID, &c.PriceListID, &c.PriceListName, &c.Currency,
		&subtotal, &discount, &total, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Subtotal, _ = decimal.NewFromString(subtotal)
	c.DiscountTotal, _ = decimal.NewFromString(discount)
	c.Total, _ = decimal.NewFromString(total)

	rows, err := r.db.Query(ctx, itemSelect+` WHERE cart_id = $1 ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		c.Items = append(c.Items, *it)
	}
	return &c, rows.Err()
}

const itemSelect = `
	SELECT id, cart_id, product_id, combo_id, name_snapshot, sku_snapshot, unit_type,
	       qty::text, unit_price::text, compare_at_price::text, total::text
	FROM cart_item`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	var productID, comboID, compareAt *string
	var qty, unitPrice, total string
	if err := row.Scan(&it.ID, &it.CartID, &productID, &comboID, &it.Name, &it.SKU, &it.UnitType,
		&qty, &unitPrice, &compareAt, &total); err != nil {
		return nil, err
	}
	switch {
	case productID != nil:
		it.Ref = LineRef{Kind: RefProduct, ID: *productID}
	case comboID != nil:
		it.Ref = LineRef{Kind: RefCombo, ID: *comboID}
	}
	it.Qty, _ = decimal.NewFromString(qty)
	it.UnitPrice, _ = decimal.NewFromString(unitPrice)
	it.Total, _ = decimal.NewFromString(total)
	if compareAt != nil {
		d, _ := decimal.NewFromString(*compareAt)
		it.CompareAtPrice = &d
	}
	return &it, nil
}

func (r *PGRepo) GetItem(ctx context.Context, itemID string) (*Item, error) {
	it, err := scanItem(r.db.QueryRow(ctx, itemSelect+` WHERE id = $1`, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return it, nil
}

func (r *PGRepo) InsertItem(ctx context.Context, tx storage.Tx, it *Item) error {
	pgTx := tx.(*storage.PGTx).Pgx()
	var productID, comboID *string
	switch it.Ref.Kind {
	case RefProduct:
		productID = &it.Ref.ID
	case RefCombo:
		comboID = &it.Ref.ID
	}
	var compareAt *string
	if it.CompareAtPrice != nil {
		s := it.CompareAtPrice.String()
		compareAt = &s
	}
	_, err := pgTx.Exec(ctx, `
		INSERT INTO cart_item (id, cart_id, product_id, combo_id, name_snapshot, sku_snapshot, unit_type,
		                       qty, unit_price, compare_at_price, total, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW(),NOW())
	`, it.ID, it.CartID, productID, comboID, it.Name, it.SKU, it.UnitType,
		it.Qty.String(), it.UnitPrice.String(), compareAt, it.Total.String())
	return err
}

func (r *PGRepo) UpdateItemQty(ctx context.Context, tx storage.Tx, itemID string, qty, total decimal.Decimal) error {
	pgTx := tx.(*storage.PGTx).Pgx()
	tag, err := pgTx.Exec(ctx, `
		UPDATE cart_item SET qty = $2, total = $3, updated_at = NOW() WHERE id = $1
	`, itemID, qty.String(), total.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *PGRepo) DeleteItem(ctx context.Context, tx storage.Tx, itemID string) error {
	pgTx := tx.(*storage.PGTx).Pgx()
	tag, err := pgTx.Exec(ctx, `DELETE FROM cart_item WHERE id = $1`, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *PGRepo) ItemsInTx(ctx context.Context, tx storage.Tx, cartID string) ([]Item, error) {
	pgTx := tx.(*storage.PGTx).Pgx()
	rows, err := pgTx.Query(ctx, itemSelect+` WHERE cart_id = $1`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (r *PGRepo) UpdateTotals(ctx context.Context, tx storage.Tx, cartID string, subtotal, discount, total decimal.Decimal) error {
	pgTx := tx.(*storage.PGTx).Pgx()
	_, err := pgTx.Exec(ctx, `
		UPDATE cart SET subtotal = $2, discount_total = $3, total = $4, updated_at = NOW()
		WHERE id = $1
	`, cartID, subtotal.String(), discount.String(), total.String())
	return err
}
