package dto

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

func TestEntityFromDomain(t *testing.T) {
	now := time.Now()
	entity := &domain.Entity{
		ID:            "e-1",
		Code:          ptr("SKU-1"),
		Kind:          domain.EntityKindItem,
		CachedBalance: decimal.NewNullDecimal(decimal.RequireFromString("123.45")),
		Version:       2,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	resp := EntityFromDomain(entity)
	if resp.ID != entity.ID || resp.CachedBalance == nil || resp.CachedBalance.String() != "123.45" || resp.Version != 2 {
		t.Fatalf("unexpected entity response: %+v", resp)
	}

	entity.CachedBalance = decimal.NullDecimal{}
	if resp := EntityFromDomain(entity); resp.CachedBalance != nil {
		t.Fatalf("expected no cached balance in realtime mode, got %v", resp.CachedBalance)
	}

	list := EntitiesFromDomain([]*domain.Entity{entity})
	if len(list) != 1 || list[0].ID != entity.ID {
		t.Fatalf("EntitiesFromDomain returned %+v", list)
	}
}

func TestTransactionFromDomain(t *testing.T) {
	now := time.Now()
	original := "t-0"
	tr := &domain.Transaction{
		ID:           "t-1",
		EntityID:     "e-1",
		Type:         domain.TransactionTypeOut,
		Amount:       decimal.NewFromInt(5),
		Status:       domain.StatusFinal,
		RefNo:        "R1#reversal",
		CorrectionOf: &original,
		CreatedAt:    now,
		FinalizedAt:  &now,
	}

	resp := TransactionFromDomain(tr)
	if resp.Type != "OUT" || resp.Status != "final" || resp.CorrectionOf == nil || *resp.CorrectionOf != "t-0" {
		t.Fatalf("unexpected transaction response: %+v", resp)
	}

	fin := FinalizeFromResult(&usecase.FinalizeResult{Transaction: tr, Balance: decimal.NewFromInt(-20)})
	if fin.Transaction.ID != "t-1" || !fin.Balance.Equal(decimal.NewFromInt(-20)) {
		t.Fatalf("unexpected finalize response: %+v", fin)
	}
}

func TestRebuildFromDomain(t *testing.T) {
	resp := RebuildFromDomain(&domain.RebuildResult{
		EntityID:      "e-1",
		Value:         decimal.NewFromInt(10),
		Cached:        decimal.NewNullDecimal(decimal.NewFromInt(11)),
		DriftDetected: true,
	})
	if !resp.DriftDetected || resp.Cached == nil || !resp.Cached.Equal(decimal.NewFromInt(11)) {
		t.Fatalf("unexpected rebuild response: %+v", resp)
	}
	if resp.Code != "integrity_drift" {
		t.Fatalf("expected integrity_drift code, got %q", resp.Code)
	}

	clean := RebuildFromDomain(&domain.RebuildResult{EntityID: "e-1", Value: decimal.NewFromInt(10)})
	if clean.Code != "" {
		t.Fatalf("expected no code without drift, got %q", clean.Code)
	}
}

func TestReportFromUseCase(t *testing.T) {
	resp := ReportFromUseCase(&usecase.ReconciliationReport{
		TotalEntities:      2,
		ReconciledEntities: 1,
		Discrepancies: []*usecase.ReconciliationResult{{
			EntityID:          "e-2",
			CalculatedBalance: decimal.NewFromInt(10),
			RecordedBalance:   decimal.NewNullDecimal(decimal.NewFromInt(11)),
			Difference:        decimal.NewFromInt(1),
		}},
	})
	if resp.TotalEntities != 2 || len(resp.Discrepancies) != 1 || resp.Discrepancies[0].EntityID != "e-2" {
		t.Fatalf("unexpected report: %+v", resp)
	}
	if resp.Code != "integrity_drift" {
		t.Fatalf("expected integrity_drift code, got %q", resp.Code)
	}

	clean := ReportFromUseCase(&usecase.ReconciliationReport{TotalEntities: 2, ReconciledEntities: 2})
	if clean.Code != "" || clean.Discrepancies == nil {
		t.Fatalf("unexpected clean report: %+v", clean)
	}
}
