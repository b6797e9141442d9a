package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tx is the transaction handle passed between repositories so that
// multi-step operations (order creation, status transition + stock
// commit) share one database transaction.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxManager begins transactions. Services depend on this interface so
// tests can substitute an in-memory fake.
type TxManager interface {
	Begin(ctx context.Context) (Tx, error)
}

type PGTx struct{ tx pgx.Tx }

func (t *PGTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *PGTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// Pgx exposes the underlying pgx transaction to the PG repositories.
func (t *PGTx) Pgx() pgx.Tx { return t.tx }

type PGTxManager struct{ db *pgxpool.Pool }

func NewPGTxManager(db *pgxpool.Pool) *PGTxManager { return &PGTxManager{db: db} }

func (m *PGTxManager) Begin(ctx context.Context) (Tx, error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &PGTx{tx: tx}, nil
}
