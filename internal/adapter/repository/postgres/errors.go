package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/ledgercore/internal/domain"
)

// PostgreSQL error codes the ledger understands.
const (
	pgErrUniqueViolation      = "23505"
	pgErrForeignKeyViolation  = "23503"
	pgErrCheckViolation       = "23514"
	pgErrLockNotAvailable     = "55P03"
	pgErrQueryCanceled        = "57014"
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	// Raised by the transactions_guard trigger.
	pgErrImmutableRecord = "LG001"
)

// Unique constraints with a domain meaning.
const (
	constraintActiveRefNo  = "transactions_active_ref_no_key"
	constraintCorrectionOf = "transactions_correction_of_key"
	constraintEntityCode   = "entities_code_key"
)

// mapError translates a PostgreSQL error into the domain taxonomy. Other
// errors pass through unchanged.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if err == nil || !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgErrUniqueViolation:
		switch pgErr.ConstraintName {
		case constraintActiveRefNo:
			return fmt.Errorf("%w: %s", domain.ErrDuplicateRef, pgErr.Detail)
		case constraintCorrectionOf:
			return fmt.Errorf("%w: %s", domain.ErrAlreadyReversed, pgErr.Detail)
		case constraintEntityCode:
			return fmt.Errorf("%w: %s", domain.ErrDuplicateCode, pgErr.Detail)
		}
		return fmt.Errorf("%w: %s", domain.ErrValidation, pgErr.Message)
	case pgErrForeignKeyViolation:
		return fmt.Errorf("%w: %s", domain.ErrUnknownReference, pgErr.Detail)
	case pgErrCheckViolation:
		return fmt.Errorf("%w: %s", domain.ErrValidation, pgErr.Message)
	case pgErrLockNotAvailable, pgErrQueryCanceled:
		return fmt.Errorf("%w: %s", domain.ErrLockTimeout, pgErr.Message)
	case pgErrDeadlock, pgErrSerializationFailure:
		return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.Message)
	case pgErrImmutableRecord:
		return fmt.Errorf("%w: %s", domain.ErrInvalidStateTransition, pgErr.Message)
	}

	return err
}
