package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
)

var entityColumns = []string{"id", "code", "kind", "allow_negative", "cached_balance", "version", "created_at", "updated_at"}

func TestEntityRepositoryGetByIDNotFound(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery(regexp.QuoteMeta("FROM entities WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	repo := NewEntityRepository(pool)
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}

	assertExpectations(t, pool)
}

func TestEntityRepositoryGetByID(t *testing.T) {
	pool := newMockPool(t)
	now := time.Now().UTC()
	pool.ExpectQuery(regexp.QuoteMeta("FROM entities WHERE id = $1")).
		WithArgs("e1").
		WillReturnRows(pgxmock.NewRows(entityColumns).
			AddRow("e1", "SKU-1", "item", false, "12.5", int64(4), now, now))

	repo := NewEntityRepository(pool)
	e, err := repo.GetByID(context.Background(), "e1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Code == nil || *e.Code != "SKU-1" {
		t.Fatalf("unexpected code %v", e.Code)
	}
	if !e.CachedBalance.Valid || !e.CachedBalance.Decimal.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected cached balance %v", e.CachedBalance)
	}
	if e.Version != 4 {
		t.Fatalf("unexpected version %d", e.Version)
	}

	assertExpectations(t, pool)
}

func TestEntityRepositoryCreateDuplicateCode(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)
	pool.ExpectExec(regexp.QuoteMeta("INSERT INTO entities")).
		WithArgs("e2", pgxmock.AnyArg(), "item", false, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: constraintEntityCode})

	repo := NewEntityRepository(pool)
	code := "SKU-1"
	err := repo.Create(context.Background(), tx, &domain.Entity{ID: "e2", Code: &code, Kind: domain.EntityKindItem})
	if !errors.Is(err, domain.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}

	assertExpectations(t, pool)
}

func TestEntityRepositoryUpdateBalance(t *testing.T) {
	balance := decimal.NewNullDecimal(decimal.NewFromInt(7))

	t.Run("version matches", func(t *testing.T) {
		pool := newMockPool(t)
		tx := beginMockTx(t, pool)
		pool.ExpectExec(regexp.QuoteMeta("UPDATE entities SET cached_balance")).
			WithArgs("e1", pgxmock.AnyArg(), int64(3), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewEntityRepository(pool)
		if err := repo.UpdateBalance(context.Background(), tx, "e1", balance, 3, time.Now()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		assertExpectations(t, pool)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		pool := newMockPool(t)
		tx := beginMockTx(t, pool)
		now := time.Now().UTC()
		pool.ExpectExec(regexp.QuoteMeta("UPDATE entities SET cached_balance")).
			WithArgs("e1", pgxmock.AnyArg(), int64(3), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		pool.ExpectQuery(regexp.QuoteMeta("FROM entities WHERE id = $1")).
			WithArgs("e1").
			WillReturnRows(pgxmock.NewRows(entityColumns).
				AddRow("e1", nil, "account", false, "9", int64(4), now, now))

		repo := NewEntityRepository(pool)
		err := repo.UpdateBalance(context.Background(), tx, "e1", balance, 3, time.Now())
		if !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}

		assertExpectations(t, pool)
	})

	t.Run("missing entity", func(t *testing.T) {
		pool := newMockPool(t)
		tx := beginMockTx(t, pool)
		pool.ExpectExec(regexp.QuoteMeta("UPDATE entities SET cached_balance")).
			WithArgs("e1", pgxmock.AnyArg(), int64(3), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		pool.ExpectQuery(regexp.QuoteMeta("FROM entities WHERE id = $1")).
			WithArgs("e1").
			WillReturnError(pgx.ErrNoRows)

		repo := NewEntityRepository(pool)
		err := repo.UpdateBalance(context.Background(), tx, "e1", balance, 3, time.Now())
		if !errors.Is(err, domain.ErrEntityNotFound) {
			t.Fatalf("expected ErrEntityNotFound, got %v", err)
		}

		assertExpectations(t, pool)
	})
}

func TestEntityRepositoryGetByIDsForUpdate(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)
	now := time.Now().UTC()
	pool.ExpectQuery(regexp.QuoteMeta("ORDER BY id\nFOR NO KEY UPDATE")).
		WithArgs([]string{"e1", "e2"}).
		WillReturnRows(pgxmock.NewRows(entityColumns).
			AddRow("e1", nil, "account", true, "0", int64(1), now, now).
			AddRow("e2", nil, "account", true, "5", int64(1), now, now))

	repo := NewEntityRepository(pool)
	entities, err := repo.GetByIDsForUpdate(context.Background(), tx, []string{"e1", "e2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entities) != 2 || entities[0].ID != "e1" || entities[1].ID != "e2" {
		t.Fatalf("unexpected entities %v", entities)
	}

	assertExpectations(t, pool)
}

func TestEntityRepositoryRejectsForeignTx(t *testing.T) {
	pool := newMockPool(t)
	repo := NewEntityRepository(pool)

	if err := repo.Create(context.Background(), nil, &domain.Entity{ID: "e1"}); !errors.Is(err, errForeignTx) {
		t.Fatalf("expected errForeignTx, got %v", err)
	}
}
