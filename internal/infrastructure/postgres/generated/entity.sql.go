package generated

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createEntity = `-- name: CreateEntity :exec
INSERT INTO entities (id, code, kind, allow_negative, cached_balance, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

type CreateEntityParams struct {
	ID            string             `json:"id"`
	Code          pgtype.Text        `json:"code"`
	Kind          string             `json:"kind"`
	AllowNegative bool               `json:"allow_negative"`
	CachedBalance pgtype.Numeric     `json:"cached_balance"`
	Version       int64              `json:"version"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
	UpdatedAt     pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) CreateEntity(ctx context.Context, arg CreateEntityParams) error {
	_, err := q.db.Exec(ctx, createEntity,
		arg.ID,
		arg.Code,
		arg.Kind,
		arg.AllowNegative,
		arg.CachedBalance,
		arg.Version,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getEntitiesByIDs = `-- name: GetEntitiesByIDs :many
SELECT id, code, kind, allow_negative, cached_balance, version, created_at, updated_at FROM entities
WHERE id = ANY($1::text[])
ORDER BY id
`

func (q *Queries) GetEntitiesByIDs(ctx context.Context, dollar_1 []string) ([]Entity, error) {
	rows, err := q.db.Query(ctx, getEntitiesByIDs, dollar_1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Entity
	for rows.Next() {
		var i Entity
		if err := rows.Scan(
			&i.ID,
			&i.Code,
			&i.Kind,
			&i.AllowNegative,
			&i.CachedBalance,
			&i.Version,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getEntitiesByIDsForUpdate = `-- name: GetEntitiesByIDsForUpdate :many
SELECT id, code, kind, allow_negative, cached_balance, version, created_at, updated_at FROM entities
WHERE id = ANY($1::text[])
ORDER BY id
FOR NO KEY UPDATE
`

func (q *Queries) GetEntitiesByIDsForUpdate(ctx context.Context, dollar_1 []string) ([]Entity, error) {
	rows, err := q.db.Query(ctx, getEntitiesByIDsForUpdate, dollar_1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Entity
	for rows.Next() {
		var i Entity
		if err := rows.Scan(
			&i.ID,
			&i.Code,
			&i.Kind,
			&i.AllowNegative,
			&i.CachedBalance,
			&i.Version,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getEntityByCode = `-- name: GetEntityByCode :one
SELECT id, code, kind, allow_negative, cached_balance, version, created_at, updated_at FROM entities WHERE code = $1
`

func (q *Queries) GetEntityByCode(ctx context.Context, code pgtype.Text) (Entity, error) {
	row := q.db.QueryRow(ctx, getEntityByCode, code)
	var i Entity
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.Kind,
		&i.AllowNegative,
		&i.CachedBalance,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getEntityByID = `-- name: GetEntityByID :one
SELECT id, code, kind, allow_negative, cached_balance, version, created_at, updated_at FROM entities WHERE id = $1
`

func (q *Queries) GetEntityByID(ctx context.Context, id string) (Entity, error) {
	row := q.db.QueryRow(ctx, getEntityByID, id)
	var i Entity
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.Kind,
		&i.AllowNegative,
		&i.CachedBalance,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listEntities = `-- name: ListEntities :many
SELECT id, code, kind, allow_negative, cached_balance, version, created_at, updated_at FROM entities
ORDER BY id
LIMIT $1 OFFSET $2
`

type ListEntitiesParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListEntities(ctx context.Context, arg ListEntitiesParams) ([]Entity, error) {
	rows, err := q.db.Query(ctx, listEntities, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Entity
	for rows.Next() {
		var i Entity
		if err := rows.Scan(
			&i.ID,
			&i.Code,
			&i.Kind,
			&i.AllowNegative,
			&i.CachedBalance,
			&i.Version,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateEntityBalance = `-- name: UpdateEntityBalance :execrows
UPDATE entities SET cached_balance = $2, version = version + 1, updated_at = $4
WHERE id = $1 AND version = $3
`

type UpdateEntityBalanceParams struct {
	ID            string             `json:"id"`
	CachedBalance pgtype.Numeric     `json:"cached_balance"`
	Version       int64              `json:"version"`
	UpdatedAt     pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) UpdateEntityBalance(ctx context.Context, arg UpdateEntityBalanceParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateEntityBalance,
		arg.ID,
		arg.CachedBalance,
		arg.Version,
		arg.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const updateEntityCode = `-- name: UpdateEntityCode :execrows
UPDATE entities SET code = $2, updated_at = $3 WHERE id = $1
`

type UpdateEntityCodeParams struct {
	ID        string             `json:"id"`
	Code      pgtype.Text        `json:"code"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) UpdateEntityCode(ctx context.Context, arg UpdateEntityCodeParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateEntityCode, arg.ID, arg.Code, arg.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
