package generated

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const appendTransaction = `-- name: AppendTransaction :exec
INSERT INTO transactions (id, entity_id, type, amount, status, ref_no, correction_of, created_at, updated_at, finalized_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

type AppendTransactionParams struct {
	ID           string             `json:"id"`
	EntityID     string             `json:"entity_id"`
	Type         string             `json:"type"`
	Amount       pgtype.Numeric     `json:"amount"`
	Status       string             `json:"status"`
	RefNo        string             `json:"ref_no"`
	CorrectionOf pgtype.Text        `json:"correction_of"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
	FinalizedAt  pgtype.Timestamptz `json:"finalized_at"`
}

func (q *Queries) AppendTransaction(ctx context.Context, arg AppendTransactionParams) error {
	_, err := q.db.Exec(ctx, appendTransaction,
		arg.ID,
		arg.EntityID,
		arg.Type,
		arg.Amount,
		arg.Status,
		arg.RefNo,
		arg.CorrectionOf,
		arg.CreatedAt,
		arg.UpdatedAt,
		arg.FinalizedAt,
	)
	return err
}

const getActiveTransactionByRef = `-- name: GetActiveTransactionByRef :one
SELECT id, entity_id, type, amount, status, ref_no, correction_of, created_at, updated_at, finalized_at FROM transactions
WHERE ref_no = $1 AND status <> 'cancelled'
`

func (q *Queries) GetActiveTransactionByRef(ctx context.Context, refNo string) (Transaction, error) {
	row := q.db.QueryRow(ctx, getActiveTransactionByRef, refNo)
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.EntityID,
		&i.Type,
		&i.Amount,
		&i.Status,
		&i.RefNo,
		&i.CorrectionOf,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.FinalizedAt,
	)
	return i, err
}

const getTransactionByCorrectionOf = `-- name: GetTransactionByCorrectionOf :one
SELECT id, entity_id, type, amount, status, ref_no, correction_of, created_at, updated_at, finalized_at FROM transactions
WHERE correction_of = $1
`

func (q *Queries) GetTransactionByCorrectionOf(ctx context.Context, correctionOf pgtype.Text) (Transaction, error) {
	row := q.db.QueryRow(ctx, getTransactionByCorrectionOf, correctionOf)
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.EntityID,
		&i.Type,
		&i.Amount,
		&i.Status,
		&i.RefNo,
		&i.CorrectionOf,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.FinalizedAt,
	)
	return i, err
}

const getTransactionByID = `-- name: GetTransactionByID :one
SELECT id, entity_id, type, amount, status, ref_no, correction_of, created_at, updated_at, finalized_at FROM transactions WHERE id = $1
`

func (q *Queries) GetTransactionByID(ctx context.Context, id string) (Transaction, error) {
	row := q.db.QueryRow(ctx, getTransactionByID, id)
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.EntityID,
		&i.Type,
		&i.Amount,
		&i.Status,
		&i.RefNo,
		&i.CorrectionOf,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.FinalizedAt,
	)
	return i, err
}

const sumFinalTransactions = `-- name: SumFinalTransactions :one
SELECT COALESCE(SUM(CASE WHEN type = 'IN' THEN amount ELSE -amount END), 0)::numeric AS total
FROM transactions
WHERE entity_id = $1 AND status = 'final'
`

func (q *Queries) SumFinalTransactions(ctx context.Context, entityID string) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, sumFinalTransactions, entityID)
	var total pgtype.Numeric
	err := row.Scan(&total)
	return total, err
}

const updateDraftTransaction = `-- name: UpdateDraftTransaction :execrows
UPDATE transactions SET type = $2, amount = $3, updated_at = $4
WHERE id = $1 AND status = 'draft'
`

type UpdateDraftTransactionParams struct {
	ID        string             `json:"id"`
	Type      string             `json:"type"`
	Amount    pgtype.Numeric     `json:"amount"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) UpdateDraftTransaction(ctx context.Context, arg UpdateDraftTransactionParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateDraftTransaction,
		arg.ID,
		arg.Type,
		arg.Amount,
		arg.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const updateTransactionStatus = `-- name: UpdateTransactionStatus :execrows
UPDATE transactions SET status = $2, updated_at = $3, finalized_at = $4
WHERE id = $1 AND status = $5
`

type UpdateTransactionStatusParams struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"`
	UpdatedAt   pgtype.Timestamptz `json:"updated_at"`
	FinalizedAt pgtype.Timestamptz `json:"finalized_at"`
	Status_2    string             `json:"status_2"`
}

func (q *Queries) UpdateTransactionStatus(ctx context.Context, arg UpdateTransactionStatusParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateTransactionStatus,
		arg.ID,
		arg.Status,
		arg.UpdatedAt,
		arg.FinalizedAt,
		arg.Status_2,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
