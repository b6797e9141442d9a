package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/frescora/pedidos-api/internal/storage"
)

// Ledger is the stock engine. Reserve and Commit take the caller's
// transaction: a reservation only exists if its order does, and a
// commit only happens together with the status change that packs it.
type Ledger interface {
	Reserve(ctx context.Context, tx storage.Tx, orderID, productID string, qty decimal.Decimal) error
	// Commit converts every reservation of the order into a permanent
	// deduction, all-or-nothing. Rows are locked for the duration of
	// the transaction so two concurrent packs cannot both pass the
	// availability check.
	Commit(ctx context.Context, tx storage.Tx, orderID string) error
	ReleaseForOrder(ctx context.Context, tx storage.Tx, orderID string) error

	Add(ctx context.Context, productID string, warehouseID *string, qty decimal.Decimal) (*Current, error)
	ListAvailable(ctx context.Context, warehouseID *string) ([]Availability, error)
	ForProduct(ctx context.Context, productID string, warehouseID *string) (*Current, error)
}

type PGLedger struct{ db *pgxpool.Pool }

func NewPGLedger(db *pgxpool.Pool) *PGLedger { return &PGLedger{db: db} }

func (l *PGLedger) Reserve(ctx context.Context, tx storage.Tx, orderID, productID string, qty decimal.Decimal) error {
	pgTx := tx.(*storage.PGTx).Pgx()
	_, err := pgTx.Exec(ctx, `
		INSERT INTO stock_reservation (id, order_id, product_id, qty, created_at)
		VALUES ($1,$2,$3,$4,NOW())
	`, uuid.NewString(), orderID, productID, qty.String())
	return err
}

func (l *PGLedger) Commit(ctx context.Context, tx storage.Tx, orderID string) error {
	pgTx := tx.(*storage.PGTx).Pgx()

	// Ordered by product id so concurrent commits lock rows in the
	// same order and cannot deadlock each other.
	rows, err := pgTx.Query(ctx, `
		SELECT r.product_id, r.qty::text, p.name
		FROM stock_reservation r
		JOIN product p ON p.id = r.product_id
		WHERE r.order_id = $1
		ORDER BY r.product_id
	`, orderID)
	if err != nil {
		return err
	}
	type claim struct {
		productID string
		qty       decimal.Decimal
		name      string
	}
	var claims []claim
	for rows.Next() {
		var c claim
		var qty string
		if err := rows.Scan(&c.productID, &qty, &c.name); err != nil {
			rows.Close()
			return err
		}
		if c.qty, err = decimal.NewFromString(qty); err != nil {
			rows.Close()
			return fmt.Errorf("reservation qty for %s: %w", c.productID, err)
		}
		claims = append(claims, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// Pass 1: lock and verify every row before mutating anything.
	for _, c := range claims {
		var qty string
		err := pgTx.QueryRow(ctx, `
			SELECT qty::text FROM stock_current
			WHERE product_id = $1 AND warehouse_id IS NULL
			FOR UPDATE
		`, c.productID).Scan(&qty)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w for %s: 0 < %s", ErrInsufficientStock, c.name, c.qty)
		}
		if err != nil {
			return err
		}
		cur, err := decimal.NewFromString(qty)
		if err != nil {
			return fmt.Errorf("on-hand qty for %s: %w", c.productID, err)
		}
		if cur.LessThan(c.qty) {
			return fmt.Errorf("%w for %s: %s < %s", ErrInsufficientStock, c.name, cur, c.qty)
		}
	}

	// Pass 2: decrement and drop the reservations.
	for _, c := range claims {
		if _, err := pgTx.Exec(ctx, `
			UPDATE stock_current SET qty = qty - $2
			WHERE product_id = $1 AND warehouse_id IS NULL
		`, c.productID, c.qty.String()); err != nil {
			return err
		}
	}
	_, err = pgTx.Exec(ctx, `DELETE FROM stock_reservation WHERE order_id = $1`, orderID)
	return err
}

func (l *PGLedger) ReleaseForOrder(ctx context.Context, tx storage.Tx, orderID string) error {
	pgTx := tx.(*storage.PGTx).Pgx()
	_, err := pgTx.Exec(ctx, `DELETE FROM stock_reservation WHERE order_id = $1`, orderID)
	return err
}

func (l *PGLedger) Add(ctx context.Context, productID string, warehouseID *string, qty decimal.Decimal) (*Current, error) {
	var c Current
	var q string
	err := l.db.QueryRow(ctx, `
		INSERT INTO stock_current (id, product_id, warehouse_id, qty)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, warehouse_id)
		DO UPDATE SET qty = stock_current.qty + EXCLUDED.qty
		RETURNING id, product_id, warehouse_id, qty::text
	`, uuid.NewString(), productID, warehouseID, qty.String()).
		Scan(&c.ID, &c.ProductID, &c.WarehouseID, &q)
	if err != nil {
		return nil, err
	}
	if c.Qty, err = decimal.NewFromString(q); err != nil {
		return nil, err
	}
	return &c, nil
}

func (l *PGLedger) ListAvailable(ctx context.Context, warehouseID *string) ([]Availability, error) {
	rows, err := l.db.Query(ctx, `
		SELECT sc.product_id, p.name, sc.warehouse_id, sc.qty::text,
		       COALESCE(SUM(r.qty), 0)::text AS reserved
		FROM stock_current sc
		JOIN product p ON p.id = sc.product_id
		LEFT JOIN stock_reservation r ON r.product_id = sc.product_id
		WHERE ($1::uuid IS NULL AND sc.warehouse_id IS NULL) OR sc.warehouse_id = $1
		GROUP BY sc.product_id, p.name, sc.warehouse_id, sc.qty
		ORDER BY sc.qty ASC
	`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Availability
	for rows.Next() {
		var a Availability
		var onHand, reserved string
		if err := rows.Scan(&a.ProductID, &a.ProductName, &a.WarehouseID, &onHand, &reserved); err != nil {
			return nil, err
		}
		if a.OnHand, err = decimal.NewFromString(onHand); err != nil {
			return nil, err
		}
		if a.Reserved, err = decimal.NewFromString(reserved); err != nil {
			return nil, err
		}
		a.Available = a.OnHand.Sub(a.Reserved)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ForProduct returns qty 0 instead of failing when no row exists yet.
func (l *PGLedger) ForProduct(ctx context.Context, productID string, warehouseID *string) (*Current, error) {
	var c Current
	var q string
	err := l.db.QueryRow(ctx, `
		SELECT sc.id, sc.product_id, p.name, sc.warehouse_id, sc.qty::text
		FROM stock_current sc
		JOIN product p ON p.id = sc.product_id
		WHERE sc.product_id = $1
		  AND (($2::uuid IS NULL AND sc.warehouse_id IS NULL) OR sc.warehouse_id = $2)
	`, productID, warehouseID).
		Scan(&c.ID, &c.ProductID, &c.ProductName, &c.WarehouseID, &q)
	if errors.Is(err, pgx.ErrNoRows) {
		return &Current{ProductID: productID, WarehouseID: warehouseID, Qty: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}
	if c.Qty, err = decimal.NewFromString(q); err != nil {
		return nil, err
	}
	return &c, nil
}
