package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityKind distinguishes what an entity's value measures.
type EntityKind string

const (
	EntityKindAccount EntityKind = "account"
	EntityKindItem    EntityKind = "item"
)

// Valid reports whether k is a known kind.
func (k EntityKind) Valid() bool {
	return k == EntityKindAccount || k == EntityKindItem
}

// Entity is anything whose value is derived from the transaction log:
// a monetary account or a stocked item.
//
// ID is immutable and is the only key other records point at. Code is a
// human-facing alias that may change. CachedBalance is only maintained in
// running balance mode and is always the signed sum of the entity's final
// transactions.
type Entity struct {
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CachedBalance decimal.NullDecimal
	ID            string
	Code          *string
	Kind          EntityKind
	Version       int64
	AllowNegative bool
}

// Balance returns the cached value, or zero when nothing is cached.
func (e *Entity) Balance() decimal.Decimal {
	if !e.CachedBalance.Valid {
		return decimal.Zero
	}
	return e.CachedBalance.Decimal
}

// ValidateResult checks that the entity may hold the given value.
func (e *Entity) ValidateResult(value decimal.Decimal) error {
	if !e.AllowNegative && value.IsNegative() {
		return ErrNegativeBalanceNotAllowed
	}
	return nil
}
