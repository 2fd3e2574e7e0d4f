package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType carries the sign of a movement. Amounts are always positive.
type TransactionType string

const (
	TransactionTypeIn  TransactionType = "IN"
	TransactionTypeOut TransactionType = "OUT"
)

// Valid reports whether t is IN or OUT.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIn || t == TransactionTypeOut
}

// Opposite returns the type that offsets t.
func (t TransactionType) Opposite() TransactionType {
	if t == TransactionTypeIn {
		return TransactionTypeOut
	}
	return TransactionTypeIn
}

// Transaction is one entry in the transaction log.
type Transaction struct {
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FinalizedAt  *time.Time
	CorrectionOf *string
	ID           string
	EntityID     string
	Type         TransactionType
	Status       Status
	RefNo        string
	Amount       decimal.Decimal
}

// Validate checks the fields a transaction must carry before it is appended.
func (t *Transaction) Validate() error {
	if t.EntityID == "" {
		return ErrMissingEntity
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	return ValidateRefNo(t.RefNo)
}

// SignedAmount is the amount as it contributes to a balance.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TransactionTypeOut {
		return t.Amount.Neg()
	}
	return t.Amount
}

// IsActive reports whether the transaction still holds its RefNo.
func (t *Transaction) IsActive() bool {
	return t.Status != StatusCancelled
}

// NewCompensation builds the draft that offsets t: opposite type, same
// amount and entity, pointing back at t.
func (t *Transaction) NewCompensation(id, refNo string, now time.Time) *Transaction {
	original := t.ID
	return &Transaction{
		ID:           id,
		EntityID:     t.EntityID,
		Type:         t.Type.Opposite(),
		Amount:       t.Amount,
		Status:       StatusDraft,
		RefNo:        refNo,
		CorrectionOf: &original,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// TransactionQuery filters the transaction log of one entity. Empty
// Statuses matches every status; nil bounds leave the range open.
type TransactionQuery struct {
	From     *time.Time
	To       *time.Time
	EntityID string
	Statuses []Status
}

// Validate checks the query before it reaches storage.
func (q TransactionQuery) Validate() error {
	if q.EntityID == "" {
		return ErrMissingEntity
	}
	return ValidateTimeRange(q.From, q.To)
}

// Matches reports whether t satisfies the query.
func (q TransactionQuery) Matches(t *Transaction) bool {
	if t.EntityID != q.EntityID {
		return false
	}
	if q.From != nil && t.CreatedAt.Before(*q.From) {
		return false
	}
	if q.To != nil && t.CreatedAt.After(*q.To) {
		return false
	}
	if len(q.Statuses) == 0 {
		return true
	}
	for _, s := range q.Statuses {
		if t.Status == s {
			return true
		}
	}
	return false
}
