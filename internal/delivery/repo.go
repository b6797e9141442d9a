package delivery

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frescora/pedidos-api/internal/storage"
)

type Repository interface {
	SlotCount(ctx context.Context, date string) (int, error)
	ListSlots(ctx context.Context, date string) ([]Slot, error)
	GetSlot(ctx context.Context, id string) (*Slot, error)
	InsertSlots(ctx context.Context, slots []Slot) error
	CreateSlot(ctx context.Context, s *Slot) error
	// Take atomically claims one unit of capacity; returns false when
	// the slot is full (or missing).
	Take(ctx context.Context, tx storage.Tx, slotID string) (bool, error)

	TemplatesFor(ctx context.Context, weekday int) ([]DayTemplate, error)
	ReplaceTemplates(ctx context.Context, weekday int, ts []DayTemplate) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) SlotCount(ctx context.Context, date string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM delivery_slot WHERE date=$1`, date).Scan(&n)
	return n, err
}

const slotCols = `id, date::text, start_time::text, end_time::text, capacity, taken, zone_id`

func (r *PGRepo) ListSlots(ctx context.Context, date string) ([]Slot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+slotCols+` FROM delivery_slot WHERE date=$1 ORDER BY start_time ASC`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Slot
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.ID, &s.Date, &s.StartTime, &s.EndTime, &s.Capacity, &s.Taken, &s.ZoneID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetSlot(ctx context.Context, id string) (*Slot, error) {
	var s Slot
	err := r.db.QueryRow(ctx,
		`SELECT `+slotCols+` FROM delivery_slot WHERE id=$1`, id).
		Scan(&s.ID, &s.Date, &s.StartTime, &s.EndTime, &s.Capacity, &s.Taken, &s.ZoneID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PGRepo) InsertSlots(ctx context.Context, slots []Slot) error {
	for _, s := range slots {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO delivery_slot (id, date, start_time, end_time, capacity, taken, zone_id)
			VALUES ($1,$2,$3,$4,$5,0,$6)
		`, s.ID, s.Date, s.StartTime, s.EndTime, s.Capacity, s.ZoneID); err != nil {
			return err
		}
	}
	return nil
}

func (r *PGRepo) CreateSlot(ctx context.Context, s *Slot) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO delivery_slot (id, date, start_time, end_time, capacity, taken, zone_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, s.ID, s.Date, s.StartTime, s.EndTime, s.Capacity, s.Taken, s.ZoneID)
	return err
}

// Take uses a conditional update so two concurrent claims on the last
// unit of capacity cannot both succeed.
func (r *PGRepo) Take(ctx context.Context, tx storage.Tx, slotID string) (bool, error) {
	pgTx := tx.(*storage.PGTx).Pgx()
	tag, err := pgTx.Exec(ctx, `
		UPDATE delivery_slot SET taken = taken + 1
		WHERE id = $1 AND taken < capacity
	`, slotID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PGRepo) TemplatesFor(ctx context.Context, weekday int) ([]DayTemplate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, weekday, start_time::text, end_time::text, capacity, zone_id, active
		FROM delivery_day_template
		WHERE weekday=$1 AND active=true
		ORDER BY start_time ASC
	`, weekday)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DayTemplate
	for rows.Next() {
		var t DayTemplate
		if err := rows.Scan(&t.ID, &t.Weekday, &t.StartTime, &t.EndTime, &t.Capacity, &t.ZoneID, &t.Active); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PGRepo) ReplaceTemplates(ctx context.Context, weekday int, ts []DayTemplate) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM delivery_day_template WHERE weekday=$1`, weekday); err != nil {
		return err
	}
	for _, t := range ts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO delivery_day_template (id, weekday, start_time, end_time, capacity, zone_id, active)
			VALUES ($1,$2,$3,$4,$5,$6,true)
		`, t.ID, t.Weekday, t.StartTime, t.EndTime, t.Capacity, t.ZoneID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
