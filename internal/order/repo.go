package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/frescora/pedidos-api/internal/storage"
)

type ListFilter struct {
	Status Status
	// Query matches the order number, case-insensitive substring.
	Query  string
	Limit  int
	Offset int
}

type Repository interface {
	// NextSeq increments and returns the per-day order counter.
	NextSeq(ctx context.Context, tx storage.Tx, day string) (int, error)

	Insert(ctx context.Context, tx storage.Tx, o *Order) error
	InsertItem(ctx context.Context, tx storage.Tx, it *Item) error
	InsertHistory(ctx context.Context, tx storage.Tx, h *StatusHistory) error

	GetByNumber(ctx context.Context, number string) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, int, error)

	UpdateStatus(ctx context.Context, tx storage.Tx, orderID string, st Status) error
	UpdatePaymentStatus(ctx context.Context, tx storage.Tx, orderID string, ps PaymentStatus) error

	InsertAssignment(ctx context.Context, tx storage.Tx, a *DriverAssignment) error
	MarkAssignmentDelivered(ctx context.Context, tx storage.Tx, orderID string, at time.Time, proofURL *string) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) NextSeq(ctx context.Context, tx storage.Tx, day string) (int, error) {
	pgTx := tx.(*storage.PGTx).Pgx()
	var n int
	err := pgTx.QueryRow(ctx, `
		INSERT INTO order_sequence (day, last) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last = order_sequence.last + 1
		RETURNING last
	`, day).Scan(&n)
	return n, err
}

func (r *PGRepo) Insert(ctx context.Context, tx storage.Tx, o *Order) error {
	pgTx := tx.(*storage.PGTx).Pgx()
	_, err := pgTx.Exec(ctx, `
		INSERT INTO "order" (id, order_number, status, payment_status,
		                     customer_name, customer_phone, customer_email,
		                     address_line, address_city, address_notes,
		                     delivery_date, slot_id, currency,
		                     subtotal, discount_total, shipping_total, total,
		                     created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,NOW(),NOW())
	`, o.ID, o.OrderNumber, o.Status, o.PaymentStatus,
		o.CustomerName, o.CustomerPhone, o.CustomerEmail,
		o.AddressLine, o.AddressCity, o.AddressNotes,
		o.DeliveryDate, o.SlotID, o.Currency,
		o.Subtotal.String(), o.DiscountTotal.String(), o.ShippingTotal.String(), o.Total.String())
	return err
}

func (r *PGRepo) InsertItem(ctx context.Context, tx storage.Tx, it *Item) error {
	pgTx := tx.(*storage.PGTx).Pgx()
	var compareAt *string
	if it.CompareAtPrice != nil {
		s := it.CompareAtPrice.String()
		compareAt = &s
	}
	_, err := pgTx.Exec(ctx, `
		INSERT INTO order_item (id, order_id, product_id, combo_id, name_snapshot, sku_snapshot,
		                        unit_type, qty, unit_price, compare_at_price, total)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, it.ID, it.OrderID, it.ProductID, it.ComboID, it.Name, it.SKU,
		it.UnitType, it.Qty.String(), it.UnitPrice.String(), compareAt, it.Total.String())
	return err
}

func (r *PGRepo) InsertHistory(ctx context.Context, tx storage.Tx, h *StatusHistory) error {
	pgTx := tx.(*storage.PGTx).Pgx()
	_, err := pgTx.Exec(ctx, `
		INSERT INTO order_status_history (id, order_id, from_status, to_status, note, created_at)
		VALUES ($1,$2,$3,$4,$5,NOW())
	`, h.ID, h.OrderID, h.FromStatus, h.ToStatus, h.Note)
	return err
}

const orderSelect = `
	SELECT id, order_number, status, payment_status,
	       customer_name, customer_phone, customer_email,
	       address_line, address_city, address_notes,
	       delivery_date, slot_id, currency,
	       subtotal::text, discount_total::text, shipping_total::text, total::text,
	       created_at, updated_at
	FROM "order"`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var subtotal, discount, shipping, total string
	err := row.Scan(&o.ID, &o.OrderNumber, &o.Status, &o.PaymentStatus,
		&o.CustomerName, &o.CustomerPhone, &o.CustomerEmail,
		&o.AddressLine, &o.AddressCity, &o.AddressNotes,
		&o.DeliveryDate, &o.SlotID, &o.Currency,
		&subtotal, &discount, &shipping, &total,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Subtotal, _ = decimal.NewFromString(subtotal)
	o.DiscountTotal, _ = decimal.NewFromString(discount)
	o.ShippingTotal, _ = decimal.NewFromString(shipping)
	o.Total, _ = decimal.NewFromString(total)
	return &o, nil
}

func (r *PGRepo) GetByNumber(ctx context.Context, number string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, orderSelect+` WHERE order_number = $1`, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, combo_id, name_snapshot, sku_snapshot,
		       unit_type, qty::text, unit_price::text, compare_at_price::text, total::text
		FROM order_item WHERE order_id = $1
	`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		var qty, unitPrice, total string
		var compareAt *string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ComboID, &it.Name, &it.SKU,
			&it.UnitType, &qty, &unitPrice, &compareAt, &total); err != nil {
			return nil, err
		}
		it.Qty, _ = decimal.NewFromString(qty)
		it.UnitPrice, _ = decimal.NewFromString(unitPrice)
		it.Total, _ = decimal.NewFromString(total)
		if compareAt != nil {
			d, _ := decimal.NewFromString(*compareAt)
			it.CompareAtPrice = &d
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hrows, err := r.db.Query(ctx, `
		SELECT id, order_id, from_status, to_status, note, created_at
		FROM order_status_history WHERE order_id = $1 ORDER BY created_at ASC
	`, o.ID)
	if err != nil {
		return nil, err
	}
	defer hrows.Close()
	for hrows.Next() {
		var h StatusHistory
		if err := hrows.Scan(&h.ID, &h.OrderID, &h.FromStatus, &h.ToStatus, &h.Note, &h.CreatedAt); err != nil {
			return nil, err
		}
		o.History = append(o.History, h)
	}
	if err := hrows.Err(); err != nil {
		return nil, err
	}

	var a DriverAssignment
	err = r.db.QueryRow(ctx, `
		SELECT id, order_id, driver_name, driver_phone, assigned_at, delivered_at, proof_url
		FROM driver_assignment WHERE order_id = $1
	`, o.ID).Scan(&a.ID, &a.OrderID, &a.DriverName, &a.DriverPhone, &a.AssignedAt, &a.DeliveredAt, &a.ProofURL)
	if err == nil {
		o.Assignment = &a
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return o, nil
}

func (r *PGRepo) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	where := ` WHERE 1=1`
	args := []any{}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		where += fmt.Sprintf(` AND order_number ILIKE $%d`, len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM "order"`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := r.db.Query(ctx,
		orderSelect+where+fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	return out, total, rows.Err()
}

func (r *PGRepo) UpdateStatus(ctx context.Context, tx storage.Tx, orderID string, st Status) error {
	pgTx := tx.(*storage.PGTx).Pgx()
	tag, err := pgTx.Exec(ctx, `UPDATE "order" SET status = $2, updated_at = NOW() WHERE id = $1`, orderID, st)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) UpdatePaymentStatus(ctx context.Context, tx storage.Tx, orderID string, ps PaymentStatus) error {
	pgTx := tx.(*storage.PGTx).Pgx()
	tag, err := pgTx.Exec(ctx, `UPDATE "order" SET payment_status = $2, updated_at = NOW() WHERE id = $1`, orderID, ps)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) InsertAssignment(ctx context.Context, tx storage.Tx, a *DriverAssignment) error {
	pgTx := tx.(*storage.PGTx).Pgx()
	_, err := pgTx.Exec(ctx, `
		INSERT INTO driver_assignment (id, order_id, driver_name, driver_phone, assigned_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (order_id) DO UPDATE
		SET driver_name = EXCLUDED.driver_name,
		    driver_phone = EXCLUDED.driver_phone,
		    assigned_at = EXCLUDED.assigned_at
	`, a.ID, a.OrderID, a.DriverName, a.DriverPhone, a.AssignedAt)
	return err
}

func (r *PGRepo) MarkAssignmentDelivered(ctx context.Context, tx storage.Tx, orderID string, at time.Time, proofURL *string) error {
	pgTx := tx.(*storage.PGTx).Pgx()
	_, err := pgTx.Exec(ctx, `
		UPDATE driver_assignment SET delivered_at = $2, proof_url = $3 WHERE order_id = $1
	`, orderID, at, proofURL)
	return err
}
