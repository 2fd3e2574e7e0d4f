package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the ledger wraps exactly one of these.
var (
	ErrValidation             = errors.New("validation error")
	ErrDuplicateRef           = errors.New("duplicate reference number")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConflict               = errors.New("concurrent modification conflict")
	ErrLockTimeout            = errors.New("lock timeout")
	ErrUnknownReference       = errors.New("unknown reference")
	ErrIntegrityDrift         = errors.New("integrity drift detected")
)

var (
	// Entity errors
	ErrEntityNotFound            = fmt.Errorf("%w: entity not found", ErrUnknownReference)
	ErrDuplicateCode             = errors.New("entity code already in use")
	ErrNegativeBalanceNotAllowed = fmt.Errorf("%w: entity does not allow negative balance", ErrValidation)

	// Transaction errors
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadyReversed     = fmt.Errorf("%w: transaction already reversed", ErrInvalidStateTransition)
	ErrSameEntity          = fmt.Errorf("%w: cannot transfer to same entity", ErrValidation)
)

// IsRetryable reports whether err is transient contention that a caller may
// retry after re-reading state.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrLockTimeout)
}
