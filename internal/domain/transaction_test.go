package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransaction_Validate(t *testing.T) {
	tests := []struct {
		name        string
		tx          Transaction
		expectError error
	}{
		{
			name:        "valid",
			tx:          Transaction{EntityID: "e-1", Type: TransactionTypeIn, Amount: decimal.NewFromInt(10), RefNo: "R1"},
			expectError: nil,
		},
		{
			name:        "missing entity",
			tx:          Transaction{Type: TransactionTypeIn, Amount: decimal.NewFromInt(10), RefNo: "R1"},
			expectError: ErrMissingEntity,
		},
		{
			name:        "bad type",
			tx:          Transaction{EntityID: "e-1", Type: "SIDEWAYS", Amount: decimal.NewFromInt(10), RefNo: "R1"},
			expectError: ErrInvalidType,
		},
		{
			name:        "zero amount",
			tx:          Transaction{EntityID: "e-1", Type: TransactionTypeOut, Amount: decimal.Zero, RefNo: "R1"},
			expectError: ErrInvalidAmount,
		},
		{
			name:        "missing ref",
			tx:          Transaction{EntityID: "e-1", Type: TransactionTypeOut, Amount: decimal.NewFromInt(1)},
			expectError: ErrInvalidRefNo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.Validate()
			if tt.expectError == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.expectError != nil && !errors.Is(err, tt.expectError) {
				t.Fatalf("expected %v, got %v", tt.expectError, err)
			}
		})
	}
}

func TestTransaction_SignedAmount(t *testing.T) {
	in := Transaction{Type: TransactionTypeIn, Amount: decimal.NewFromInt(50)}
	out := Transaction{Type: TransactionTypeOut, Amount: decimal.NewFromInt(20)}

	if !in.SignedAmount().Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected +50, got %s", in.SignedAmount())
	}
	if !out.SignedAmount().Equal(decimal.NewFromInt(-20)) {
		t.Errorf("expected -20, got %s", out.SignedAmount())
	}
}

func TestTransaction_NewCompensation(t *testing.T) {
	now := time.Now()
	original := Transaction{
		ID:       "tx-1",
		EntityID: "e-1",
		Type:     TransactionTypeIn,
		Amount:   decimal.NewFromInt(50),
		Status:   StatusFinal,
		RefNo:    "R1",
	}

	comp := original.NewCompensation("tx-2", "R1#reversal", now)

	if comp.Type != TransactionTypeOut {
		t.Errorf("expected OUT, got %s", comp.Type)
	}
	if !comp.Amount.Equal(original.Amount) {
		t.Errorf("expected amount %s, got %s", original.Amount, comp.Amount)
	}
	if comp.CorrectionOf == nil || *comp.CorrectionOf != "tx-1" {
		t.Errorf("expected correction of tx-1, got %v", comp.CorrectionOf)
	}
	if comp.Status != StatusDraft {
		t.Errorf("expected draft, got %s", comp.Status)
	}
	if comp.EntityID != original.EntityID {
		t.Errorf("expected entity %s, got %s", original.EntityID, comp.EntityID)
	}
}

func TestEntity_ValidateResult(t *testing.T) {
	strict := Entity{AllowNegative: false}
	loose := Entity{AllowNegative: true}

	if err := strict.ValidateResult(decimal.NewFromInt(-1)); !errors.Is(err, ErrNegativeBalanceNotAllowed) {
		t.Errorf("expected ErrNegativeBalanceNotAllowed, got %v", err)
	}
	if err := strict.ValidateResult(decimal.Zero); err != nil {
		t.Errorf("zero should be allowed, got %v", err)
	}
	if err := loose.ValidateResult(decimal.NewFromInt(-20)); err != nil {
		t.Errorf("negative should be allowed, got %v", err)
	}
}

func TestTransactionQuery_Matches(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	before := base.Add(-time.Hour)
	after := base.Add(time.Hour)
	tx := &Transaction{EntityID: "e-1", Status: StatusFinal, CreatedAt: base}

	tests := []struct {
		name  string
		query TransactionQuery
		want  bool
	}{
		{name: "entity only", query: TransactionQuery{EntityID: "e-1"}, want: true},
		{name: "other entity", query: TransactionQuery{EntityID: "e-2"}, want: false},
		{name: "status match", query: TransactionQuery{EntityID: "e-1", Statuses: []Status{StatusDraft, StatusFinal}}, want: true},
		{name: "status miss", query: TransactionQuery{EntityID: "e-1", Statuses: []Status{StatusCancelled}}, want: false},
		{name: "inside range", query: TransactionQuery{EntityID: "e-1", From: &before, To: &after}, want: true},
		{name: "before range", query: TransactionQuery{EntityID: "e-1", From: &after}, want: false},
		{name: "after range", query: TransactionQuery{EntityID: "e-1", To: &before}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Matches(tx); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
