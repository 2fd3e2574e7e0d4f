package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidAmount    = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrAmountTooLarge   = fmt.Errorf("%w: amount exceeds maximum allowed", ErrValidation)
	ErrAmountPrecision  = fmt.Errorf("%w: amount has too many decimal places", ErrValidation)
	ErrInvalidType      = fmt.Errorf("%w: type must be IN or OUT", ErrValidation)
	ErrMissingEntity    = fmt.Errorf("%w: entity is required", ErrValidation)
	ErrInvalidRefNo     = fmt.Errorf("%w: invalid reference number", ErrValidation)
	ErrInvalidCode      = fmt.Errorf("%w: invalid entity code", ErrValidation)
	ErrInvalidKind      = fmt.Errorf("%w: invalid entity kind", ErrValidation)
	ErrInvalidTimeRange = fmt.Errorf("%w: time range start is after end", ErrValidation)
)

// Validation constants
const (
	MaxAmount      = "1000000000000" // 1 trillion
	MaxAmountScale = 8
	MaxRefNoLength = 128
	MaxCodeLength  = 64

	// MaxClientRefNoLength leaves room for the prefixes of derived RefNos.
	MaxClientRefNoLength = 96
)

// DerivedRefPrefix starts every RefNo the ledger generates itself, such as
// reversal and transfer leg references. Client RefNos may not start with it.
const DerivedRefPrefix = "~"

var codeRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateAmount checks that a transaction amount is strictly positive and
// within bounds. The sign of a movement is carried by its type.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if -amount.Exponent() > MaxAmountScale {
		return fmt.Errorf("%w: at most %d decimal places", ErrAmountPrecision, MaxAmountScale)
	}

	maxAmount, _ := decimal.NewFromString(MaxAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxAmount)
	}

	return nil
}

// ValidateRefNo validates a business reference number.
func ValidateRefNo(refNo string) error {
	if strings.TrimSpace(refNo) == "" {
		return fmt.Errorf("%w: cannot be empty", ErrInvalidRefNo)
	}
	if refNo != strings.TrimSpace(refNo) {
		return fmt.Errorf("%w: leading or trailing whitespace", ErrInvalidRefNo)
	}
	if len(refNo) > MaxRefNoLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidRefNo, MaxRefNoLength)
	}
	return nil
}

// ValidateClientRefNo validates a RefNo supplied by a caller. Derived RefNos
// live in a namespace callers cannot reach, so a client submission can never
// occupy the RefNo a reversal or transfer leg will need.
func ValidateClientRefNo(refNo string) error {
	if err := ValidateRefNo(refNo); err != nil {
		return err
	}
	if strings.HasPrefix(refNo, DerivedRefPrefix) {
		return fmt.Errorf("%w: prefix %q is reserved", ErrInvalidRefNo, DerivedRefPrefix)
	}
	if len(refNo) > MaxClientRefNoLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidRefNo, MaxClientRefNoLength)
	}
	return nil
}

// ReversalRefNo is the RefNo of the compensation for originalID. An original
// has at most one compensation, so the value is unique.
func ReversalRefNo(originalID string) string {
	return DerivedRefPrefix + "reversal:" + originalID
}

// TransferLegRefNo is the RefNo of one leg of the transfer filed as refNo.
func TransferLegRefNo(leg TransactionType, refNo string) string {
	return DerivedRefPrefix + "transfer:" + strings.ToLower(string(leg)) + ":" + refNo
}

// ValidateCode validates an entity code.
func ValidateCode(code string) error {
	if len(code) == 0 || len(code) > MaxCodeLength {
		return fmt.Errorf("%w: length must be between 1 and %d", ErrInvalidCode, MaxCodeLength)
	}
	if !codeRegex.MatchString(code) {
		return fmt.Errorf("%w: %q contains forbidden characters", ErrInvalidCode, code)
	}
	return nil
}

// ValidateTimeRange checks an optional [from, to] window.
func ValidateTimeRange(from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return ErrInvalidTimeRange
	}
	return nil
}
