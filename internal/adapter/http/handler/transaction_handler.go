package handler

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// LedgerService defines the transaction behavior needed by TransactionHandler.
type LedgerService interface {
	Submit(ctx context.Context, input usecase.SubmitInput) (*domain.Transaction, error)
	Amend(ctx context.Context, input usecase.AmendInput) (*domain.Transaction, error)
	RequestApproval(ctx context.Context, id string) (*domain.Transaction, error)
	Approve(ctx context.Context, id string) (*usecase.FinalizeResult, error)
	Cancel(ctx context.Context, id string) (*domain.Transaction, error)
	Reverse(ctx context.Context, id string) (*usecase.FinalizeResult, error)
	Transfer(ctx context.Context, input usecase.TransferInput) (*usecase.TransferResult, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, input usecase.ListTransactionsInput) (iter.Seq2[*domain.Transaction, error], error)
}

// TransactionHandler handles transaction lifecycle HTTP requests.
type TransactionHandler struct {
	ledgerUC LedgerService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(ledgerUC LedgerService) *TransactionHandler {
	return &TransactionHandler{ledgerUC: ledgerUC}
}

// Submit records a new draft transaction.
func (h *TransactionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, r, "invalid request", err)
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, r, "invalid request", err)
		return
	}

	t, err := h.ledgerUC.Submit(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, "failed to submit transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(t))
}

// Get retrieves a transaction by ID.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.ledgerUC.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to get transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(t))
}

// Amend changes the type and amount of a draft.
func (h *TransactionHandler) Amend(w http.ResponseWriter, r *http.Request) {
	var req dto.AmendTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, r, "invalid request", err)
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "invalid request", err)
		return
	}

	t, err := h.ledgerUC.Amend(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, "failed to amend transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(t))
}

// RequestApproval moves a draft to pending.
func (h *TransactionHandler) RequestApproval(w http.ResponseWriter, r *http.Request) {
	t, err := h.ledgerUC.RequestApproval(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to request approval", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(t))
}

// Approve finalizes a transaction and applies it to the balance.
func (h *TransactionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	result, err := h.ledgerUC.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to approve transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.FinalizeFromResult(result))
}

// Cancel cancels a draft or pending transaction.
func (h *TransactionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	t, err := h.ledgerUC.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to cancel transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(t))
}

// Reverse records a compensating transaction for a final one.
func (h *TransactionHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	result, err := h.ledgerUC.Reverse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to reverse transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.FinalizeFromResult(result))
}

// Transfer moves value between two entities atomically.
func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, r, "invalid request", err)
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, r, "invalid request", err)
		return
	}

	result, err := h.ledgerUC.Transfer(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, "failed to transfer", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransferFromResult(result))
}

// List streams matching transactions as newline-delimited JSON. The entity
// comes from the route when nested under an entity, else from ?entity=.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	entityRef := chi.URLParam(r, "ref")
	if entityRef == "" {
		entityRef = r.URL.Query().Get("entity")
	}

	q := r.URL.Query()
	input, err := dto.ListTransactionsParams{
		Statuses: q["status"],
		From:     q.Get("from"),
		To:       q.Get("to"),
	}.ToUseCaseInput(entityRef)
	if err != nil {
		writeDomainError(w, r, "invalid query", err)
		return
	}

	seq, err := h.ledgerUC.ListTransactions(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, "failed to list transactions", err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	for t, err := range seq {
		if err != nil {
			// Headers are gone; the trailing line tells the client the stream is cut short.
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("transaction stream aborted")
			_ = enc.Encode(dto.ErrorResponse{Error: "stream aborted", Code: usecase.ErrorKind(err)})
			return
		}
		if err := enc.Encode(dto.TransactionFromDomain(t)); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
