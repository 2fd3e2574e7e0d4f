package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/domain"
)

// BalanceService defines the behavior needed by BalanceHandler.
type BalanceService interface {
	GetBalance(ctx context.Context, entityRef string) (*domain.Balance, error)
	Rebuild(ctx context.Context, entityRef string) (*domain.RebuildResult, error)
}

// BalanceHandler serves balance reads and rebuilds.
type BalanceHandler struct {
	balanceUC BalanceService
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(balanceUC BalanceService) *BalanceHandler {
	return &BalanceHandler{balanceUC: balanceUC}
}

// Get returns the current balance of an entity.
func (h *BalanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	balance, err := h.balanceUC.GetBalance(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeDomainError(w, r, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromDomain(balance))
}

// Rebuild recomputes an entity's balance from the log and reports drift
// against the stored cache without writing it.
func (h *BalanceHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	result, err := h.balanceUC.Rebuild(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeDomainError(w, r, "failed to rebuild balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RebuildFromDomain(result))
}
