package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceMode selects how an entity's value is derived.
type BalanceMode string

const (
	// BalanceModeRealTime aggregates the final transactions on every read.
	BalanceModeRealTime BalanceMode = "realtime"
	// BalanceModeRunning keeps a cached value on the entity, updated in the
	// same write as each finalization.
	BalanceModeRunning BalanceMode = "running"
)

// ParseBalanceMode validates a configured mode.
func ParseBalanceMode(s string) (BalanceMode, error) {
	switch m := BalanceMode(s); m {
	case BalanceModeRealTime, BalanceModeRunning:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown balance mode %q", ErrValidation, s)
}

// Balance is an entity's value as observed at a point in time.
type Balance struct {
	AsOf     time.Time
	EntityID string
	Mode     BalanceMode
	Value    decimal.Decimal
	Version  int64
}

// RebuildResult is the outcome of recomputing a value from the log.
type RebuildResult struct {
	CheckedAt     time.Time
	Cached        decimal.NullDecimal
	EntityID      string
	Value         decimal.Decimal
	DriftDetected bool
}

// Drift returns the cached value minus the recomputed one. It is zero when
// nothing is cached.
func (r *RebuildResult) Drift() decimal.Decimal {
	if !r.Cached.Valid {
		return decimal.Zero
	}
	return r.Cached.Decimal.Sub(r.Value)
}

// Err returns ErrIntegrityDrift when a mismatch was found.
func (r *RebuildResult) Err() error {
	if !r.DriftDetected {
		return nil
	}
	return fmt.Errorf("%w: entity %s cached %s, log %s", ErrIntegrityDrift, r.EntityID, r.Cached.Decimal, r.Value)
}
