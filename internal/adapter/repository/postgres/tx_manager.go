package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/ledgercore/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgercore/internal/usecase"
)

type pgxPool interface {
	Begin(context.Context) (pgx.Tx, error)
}

// TxConfig bounds how long statements inside a transaction may wait.
type TxConfig struct {
	// LockTimeout is applied with SET LOCAL lock_timeout so a blocked
	// SELECT ... FOR UPDATE fails instead of waiting forever.
	LockTimeout      time.Duration
	StatementTimeout time.Duration
}

// TxManager implements usecase.TxManager.
type TxManager struct {
	pool pgxPool
	cfg  TxConfig
}

// NewTxManager creates a new TxManager.
func NewTxManager(pool *pgxpool.Pool, cfg TxConfig) *TxManager {
	return newTxManagerWithPool(pool, cfg)
}

func newTxManagerWithPool(pool pgxPool, cfg TxConfig) *TxManager {
	return &TxManager{pool: pool, cfg: cfg}
}

const setLocalConfig = "SELECT set_config($1, $2, true)"

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Tx, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	settings := []struct {
		name  string
		value time.Duration
	}{
		{"lock_timeout", m.cfg.LockTimeout},
		{"statement_timeout", m.cfg.StatementTimeout},
	}
	for _, s := range settings {
		if s.value <= 0 {
			continue
		}
		if _, err := tx.Exec(ctx, setLocalConfig, s.name, fmt.Sprintf("%dms", s.value.Milliseconds())); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("failed to set %s: %w", s.name, mapError(err))
		}
	}

	return &Tx{tx: tx}, nil
}

// Tx wraps a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	return mapError(t.tx.Commit(ctx))
}

// Rollback rolls back the transaction. Rolling back a finished transaction
// is not an error.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// PgxTx returns the underlying pgx.Tx.
func (t *Tx) PgxTx() pgx.Tx {
	return t.tx
}

var errForeignTx = errors.New("postgres: foreign or nil transaction")

func queriesFor(tx usecase.Tx) (*generated.Queries, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, errForeignTx
	}
	return generated.New(t.tx), nil
}
