package usecase

import "context"

// inTx runs fn in a bounded storage transaction and commits when it succeeds.
func inTx(ctx context.Context, m TxManager, fn func(ctx context.Context, tx Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := m.Begin(txCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := fn(txCtx, tx); err != nil {
		return err
	}

	return tx.Commit(txCtx)
}
