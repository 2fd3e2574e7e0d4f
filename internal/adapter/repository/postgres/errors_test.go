package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/ledgercore/internal/domain"
)

func TestMapError(t *testing.T) {
	plain := errors.New("plain")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"non pg", plain, plain},
		{"active ref", &pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: constraintActiveRefNo}, domain.ErrDuplicateRef},
		{"correction", &pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: constraintCorrectionOf}, domain.ErrAlreadyReversed},
		{"code", &pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: constraintEntityCode}, domain.ErrDuplicateCode},
		{"other unique", &pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "transactions_pkey"}, domain.ErrValidation},
		{"foreign key", &pgconn.PgError{Code: pgErrForeignKeyViolation}, domain.ErrUnknownReference},
		{"check", &pgconn.PgError{Code: pgErrCheckViolation}, domain.ErrValidation},
		{"lock not available", &pgconn.PgError{Code: pgErrLockNotAvailable}, domain.ErrLockTimeout},
		{"query canceled", &pgconn.PgError{Code: pgErrQueryCanceled}, domain.ErrLockTimeout},
		{"deadlock", &pgconn.PgError{Code: pgErrDeadlock}, domain.ErrConflict},
		{"serialization", &pgconn.PgError{Code: pgErrSerializationFailure}, domain.ErrConflict},
		{"immutable", &pgconn.PgError{Code: pgErrImmutableRecord}, domain.ErrInvalidStateTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMapErrorKeepsRetryability(t *testing.T) {
	if !domain.IsRetryable(mapError(&pgconn.PgError{Code: pgErrDeadlock})) {
		t.Fatalf("deadlocks must be retryable")
	}
	if domain.IsRetryable(mapError(&pgconn.PgError{Code: pgErrImmutableRecord})) {
		t.Fatalf("immutability violations must not be retryable")
	}
}
