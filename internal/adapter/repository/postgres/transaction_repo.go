package postgres

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgercore/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	db      generated.DBTX
	queries *generated.Queries
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db generated.DBTX) *TransactionRepository {
	return &TransactionRepository{
		db:      db,
		queries: generated.New(db),
	}
}

// Append inserts a transaction into the log.
func (r *TransactionRepository) Append(ctx context.Context, tx usecase.Tx, t *domain.Transaction) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	err = queries.AppendTransaction(ctx, generated.AppendTransactionParams{
		ID:           t.ID,
		EntityID:     t.EntityID,
		Type:         string(t.Type),
		Amount:       decimalToNumeric(t.Amount),
		Status:       string(t.Status),
		RefNo:        t.RefNo,
		CorrectionOf: stringPtrToText(t.CorrectionOf),
		CreatedAt:    timeToPgTimestamptz(t.CreatedAt),
		UpdatedAt:    timeToPgTimestamptz(t.UpdatedAt),
		FinalizedAt:  timePtrToPgTimestamptz(t.FinalizedAt),
	})

	return mapError(err)
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.one(r.queries.GetTransactionByID(ctx, id))
}

// GetActiveByRef retrieves the non-cancelled transaction holding refNo.
func (r *TransactionRepository) GetActiveByRef(ctx context.Context, refNo string) (*domain.Transaction, error) {
	return r.one(r.queries.GetActiveTransactionByRef(ctx, refNo))
}

// GetByCorrectionOf retrieves the compensation of originalID.
func (r *TransactionRepository) GetByCorrectionOf(ctx context.Context, originalID string) (*domain.Transaction, error) {
	return r.one(r.queries.GetTransactionByCorrectionOf(ctx, stringPtrToText(&originalID)))
}

func (r *TransactionRepository) one(row generated.Transaction, err error) (*domain.Transaction, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}

		return nil, mapError(err)
	}

	return rowToTransaction(row), nil
}

// UpdateStatus persists a status change provided the row is still in from.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx usecase.Tx, t *domain.Transaction, from domain.Status) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	n, err := queries.UpdateTransactionStatus(ctx, generated.UpdateTransactionStatusParams{
		ID:          t.ID,
		Status:      string(t.Status),
		UpdatedAt:   timeToPgTimestamptz(t.UpdatedAt),
		FinalizedAt: timePtrToPgTimestamptz(t.FinalizedAt),
		Status_2:    string(from),
	})
	if err != nil {
		return mapError(err)
	}
	if n == 1 {
		return nil
	}

	return r.missed(ctx, queries, t.ID, from)
}

// UpdateDraft persists a draft's type and amount.
func (r *TransactionRepository) UpdateDraft(ctx context.Context, tx usecase.Tx, t *domain.Transaction) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	n, err := queries.UpdateDraftTransaction(ctx, generated.UpdateDraftTransactionParams{
		ID:        t.ID,
		Type:      string(t.Type),
		Amount:    decimalToNumeric(t.Amount),
		UpdatedAt: timeToPgTimestamptz(t.UpdatedAt),
	})
	if err != nil {
		return mapError(err)
	}
	if n == 1 {
		return nil
	}

	return r.missed(ctx, queries, t.ID, domain.StatusDraft)
}

// missed explains a conditional update that matched no row.
func (r *TransactionRepository) missed(ctx context.Context, queries *generated.Queries, id string, expected domain.Status) error {
	row, err := queries.GetTransactionByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTransactionNotFound
		}
		return mapError(err)
	}
	return fmt.Errorf("%w: transaction %s is %s, expected %s", domain.ErrConflict, id, row.Status, expected)
}

// SumFinal returns the signed sum of final transactions. A nil tx reads
// outside any transaction.
func (r *TransactionRepository) SumFinal(ctx context.Context, tx usecase.Tx, entityID string) (decimal.Decimal, error) {
	queries := r.queries
	if tx != nil {
		var err error
		if queries, err = queriesFor(tx); err != nil {
			return decimal.Zero, err
		}
	}

	total, err := queries.SumFinalTransactions(ctx, entityID)
	if err != nil {
		return decimal.Zero, mapError(err)
	}

	return numericToDecimal(total), nil
}

const queryTransactionsBase = `SELECT id, entity_id, type, amount, status, ref_no, correction_of, created_at, updated_at, finalized_at
FROM transactions
WHERE entity_id = $1`

func buildTransactionQuery(q domain.TransactionQuery) (string, []any) {
	var sb strings.Builder
	sb.WriteString(queryTransactionsBase)
	args := []any{q.EntityID}

	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		fmt.Fprintf(&sb, " AND status = ANY($%d::text[])", len(args))
	}
	if q.From != nil {
		args = append(args, timeToPgTimestamptz(*q.From))
		fmt.Fprintf(&sb, " AND created_at >= $%d", len(args))
	}
	if q.To != nil {
		args = append(args, timeToPgTimestamptz(*q.To))
		fmt.Fprintf(&sb, " AND created_at <= $%d", len(args))
	}
	sb.WriteString(" ORDER BY created_at, id")

	return sb.String(), args
}

// Query streams matching transactions from a server-side cursor. Each range
// over the sequence runs the query again.
func (r *TransactionRepository) Query(ctx context.Context, q domain.TransactionQuery) iter.Seq2[*domain.Transaction, error] {
	sql, args := buildTransactionQuery(q)

	return func(yield func(*domain.Transaction, error) bool) {
		rows, err := r.db.Query(ctx, sql, args...)
		if err != nil {
			yield(nil, mapError(err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var row generated.Transaction
			if err := rows.Scan(
				&row.ID,
				&row.EntityID,
				&row.Type,
				&row.Amount,
				&row.Status,
				&row.RefNo,
				&row.CorrectionOf,
				&row.CreatedAt,
				&row.UpdatedAt,
				&row.FinalizedAt,
			); err != nil {
				yield(nil, err)
				return
			}
			if !yield(rowToTransaction(row), nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(nil, mapError(err))
		}
	}
}
