package payment

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// InsertEvent relies on the unique (provider, event_id) index; the
	// caller turns a uniqueness violation into the idempotent no-op.
	InsertEvent(ctx context.Context, e *WebhookEvent) error
	MarkEventProcessed(ctx context.Context, eventID string, processError *string) error
	ListDeadLetters(ctx context.Context) ([]WebhookEvent, error)

	UpsertPayment(ctx context.Context, p *Payment) (*Payment, error)
	ListPayments(ctx context.Context, limit, offset int) ([]Payment, error)
	PaymentsForOrder(ctx context.Context, orderID string) ([]Payment, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) InsertEvent(ctx context.Context, e *WebhookEvent) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO webhook_event (id, provider, event_id, payload, processed, received_at)
		VALUES ($1,$2,$3,$4,false,NOW())
	`, e.ID, e.Provider, e.EventID, e.Payload)
	return err
}

func (r *PGRepo) MarkEventProcessed(ctx context.Context, eventID string, processError *string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE webhook_event SET processed = true, process_error = $2 WHERE id = $1
	`, eventID, processError)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *PGRepo) ListDeadLetters(ctx context.Context) ([]WebhookEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, provider, event_id, payload, processed, process_error, received_at
		FROM webhook_event
		WHERE process_error IS NOT NULL
		ORDER BY received_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WebhookEvent
	for rows.Next() {
		var e WebhookEvent
		if err := rows.Scan(&e.ID, &e.Provider, &e.EventID, &e.Payload, &e.Processed, &e.ProcessError, &e.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertPayment keys on (provider, provider_payment_id, order_id) and
// refreshes status fields in place on conflict.
func (r *PGRepo) UpsertPayment(ctx context.Context, p *Payment) (*Payment, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO payment (id, order_id, provider, provider_payment_id, status, status_detail,
		                     method, amount, currency, note, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW())
		ON CONFLICT (provider, provider_payment_id, order_id) DO UPDATE
		SET status = EXCLUDED.status,
		    status_detail = EXCLUDED.status_detail,
		    method = EXCLUDED.method,
		    amount = EXCLUDED.amount,
		    updated_at = NOW()
		RETURNING id, order_id, provider, provider_payment_id, status, status_detail,
		          method, amount::text, currency, note, created_at, updated_at
	`, p.ID, p.OrderID, p.Provider, p.ProviderPaymentID, p.Status, p.StatusDetail,
		p.Method, p.Amount.String(), p.Currency, p.Note)
	return scanPayment(row)
}

const paymentSelect = `
	SELECT id, order_id, provider, provider_payment_id, status, status_detail,
	       method, amount::text, currency, note, created_at, updated_at
	FROM payment`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var amount string
	err := row.Scan(&p.ID, &p.OrderID, &p.Provider, &p.ProviderPaymentID, &p.Status, &p.StatusDetail,
		&p.Method, &amount, &p.Currency, &p.Note, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Amount, _ = decimal.NewFromString(amount)
	return &p, nil
}

func (r *PGRepo) ListPayments(ctx context.Context, limit, offset int) ([]Payment, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, paymentSelect+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

func (r *PGRepo) PaymentsForOrder(ctx context.Context, orderID string) ([]Payment, error) {
	rows, err := r.db.Query(ctx, paymentSelect+` WHERE order_id = $1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]Payment, error) {
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
