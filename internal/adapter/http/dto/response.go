package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// EntityResponse represents an entity in API responses.
type EntityResponse struct {
	ID            string           `json:"id"`
	Code          *string          `json:"code"`
	Kind          string           `json:"kind"`
	AllowNegative bool             `json:"allow_negative"`
	CachedBalance *decimal.Decimal `json:"cached_balance,omitempty"`
	Version       int64            `json:"version"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// EntityFromDomain converts a domain entity to a response.
func EntityFromDomain(e *domain.Entity) *EntityResponse {
	resp := &EntityResponse{
		ID:            e.ID,
		Code:          e.Code,
		Kind:          string(e.Kind),
		AllowNegative: e.AllowNegative,
		Version:       e.Version,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	if e.CachedBalance.Valid {
		cached := e.CachedBalance.Decimal
		resp.CachedBalance = &cached
	}
	return resp
}

// EntitiesFromDomain converts domain entities to responses.
func EntitiesFromDomain(entities []*domain.Entity) []*EntityResponse {
	result := make([]*EntityResponse, len(entities))
	for i, e := range entities {
		result[i] = EntityFromDomain(e)
	}
	return result
}

// TransactionResponse represents a transaction in API responses.
type TransactionResponse struct {
	ID           string          `json:"id"`
	EntityID     string          `json:"entity_id"`
	Type         string          `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	RefNo        string          `json:"ref_no"`
	CorrectionOf *string         `json:"correction_of,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	FinalizedAt  *time.Time      `json:"finalized_at,omitempty"`
}

// TransactionFromDomain converts a domain transaction to a response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:           t.ID,
		EntityID:     t.EntityID,
		Type:         string(t.Type),
		Amount:       t.Amount,
		Status:       string(t.Status),
		RefNo:        t.RefNo,
		CorrectionOf: t.CorrectionOf,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		FinalizedAt:  t.FinalizedAt,
	}
}

// FinalizeResponse is returned by approve and reverse.
type FinalizeResponse struct {
	Transaction *TransactionResponse `json:"transaction"`
	Balance     decimal.Decimal      `json:"balance"`
}

// FinalizeFromResult converts a use case result to a response.
func FinalizeFromResult(r *usecase.FinalizeResult) *FinalizeResponse {
	return &FinalizeResponse{
		Transaction: TransactionFromDomain(r.Transaction),
		Balance:     r.Balance,
	}
}

// TransferResponse is returned by a transfer.
type TransferResponse struct {
	Out         *TransactionResponse `json:"out"`
	In          *TransactionResponse `json:"in"`
	FromBalance decimal.Decimal      `json:"from_balance"`
	ToBalance   decimal.Decimal      `json:"to_balance"`
}

// TransferFromResult converts a use case result to a response.
func TransferFromResult(r *usecase.TransferResult) *TransferResponse {
	return &TransferResponse{
		Out:         TransactionFromDomain(r.Out),
		In:          TransactionFromDomain(r.In),
		FromBalance: r.FromBalance,
		ToBalance:   r.ToBalance,
	}
}

// BalanceResponse represents a balance in API responses.
type BalanceResponse struct {
	EntityID string          `json:"entity_id"`
	Mode     string          `json:"mode"`
	Value    decimal.Decimal `json:"value"`
	Version  int64           `json:"version"`
	AsOf     time.Time       `json:"as_of"`
}

// BalanceFromDomain converts a domain balance to a response.
func BalanceFromDomain(b *domain.Balance) *BalanceResponse {
	return &BalanceResponse{
		EntityID: b.EntityID,
		Mode:     string(b.Mode),
		Value:    b.Value,
		Version:  b.Version,
		AsOf:     b.AsOf,
	}
}

// RebuildResponse reports a recomputed value and whether the cache drifted.
type RebuildResponse struct {
	EntityID      string           `json:"entity_id"`
	Value         decimal.Decimal  `json:"value"`
	Cached        *decimal.Decimal `json:"cached,omitempty"`
	DriftDetected bool             `json:"drift_detected"`
	CheckedAt     time.Time        `json:"checked_at"`
	Code          string           `json:"code,omitempty"`
}

// RebuildFromDomain converts a rebuild result to a response.
func RebuildFromDomain(r *domain.RebuildResult) *RebuildResponse {
	resp := &RebuildResponse{
		EntityID:      r.EntityID,
		Value:         r.Value,
		DriftDetected: r.DriftDetected,
		CheckedAt:     r.CheckedAt,
	}
	if r.Cached.Valid {
		cached := r.Cached.Decimal
		resp.Cached = &cached
	}
	if err := r.Err(); err != nil {
		resp.Code = usecase.ErrorKind(err)
	}
	return resp
}

// DiscrepancyResponse describes one drifted entity.
type DiscrepancyResponse struct {
	EntityID   string          `json:"entity_id"`
	Calculated decimal.Decimal `json:"calculated"`
	Recorded   decimal.Decimal `json:"recorded"`
	Difference decimal.Decimal `json:"difference"`
}

// ReconciliationReportResponse summarizes a reconciliation run.
type ReconciliationReportResponse struct {
	CheckedAt          time.Time              `json:"checked_at"`
	TotalEntities      int                    `json:"total_entities"`
	ReconciledEntities int                    `json:"reconciled_entities"`
	Discrepancies      []*DiscrepancyResponse `json:"discrepancies"`
	Code               string                 `json:"code,omitempty"`
}

// ReportFromUseCase converts a reconciliation report to a response.
func ReportFromUseCase(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	resp := &ReconciliationReportResponse{
		CheckedAt:          r.CheckedAt,
		TotalEntities:      r.TotalEntities,
		ReconciledEntities: r.ReconciledEntities,
		Discrepancies:      make([]*DiscrepancyResponse, 0, len(r.Discrepancies)),
	}
	for _, d := range r.Discrepancies {
		resp.Discrepancies = append(resp.Discrepancies, &DiscrepancyResponse{
			EntityID:   d.EntityID,
			Calculated: d.CalculatedBalance,
			Recorded:   d.RecordedBalance.Decimal,
			Difference: d.Difference,
		})
	}
	if err := r.Err(); err != nil {
		resp.Code = usecase.ErrorKind(err)
	}
	return resp
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}
