package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

type ledgerServiceStub struct {
	submitFn  func(ctx context.Context, input usecase.SubmitInput) (*domain.Transaction, error)
	approveFn func(ctx context.Context, id string) (*usecase.FinalizeResult, error)
	reverseFn func(ctx context.Context, id string) (*usecase.FinalizeResult, error)
	listFn    func(ctx context.Context, input usecase.ListTransactionsInput) (iter.Seq2[*domain.Transaction, error], error)
}

func (s *ledgerServiceStub) Submit(ctx context.Context, input usecase.SubmitInput) (*domain.Transaction, error) {
	return s.submitFn(ctx, input)
}

func (s *ledgerServiceStub) Amend(ctx context.Context, input usecase.AmendInput) (*domain.Transaction, error) {
	return &domain.Transaction{ID: input.ID, Type: input.Type, Amount: input.Amount, Status: domain.StatusDraft}, nil
}

func (s *ledgerServiceStub) RequestApproval(ctx context.Context, id string) (*domain.Transaction, error) {
	return &domain.Transaction{ID: id, Status: domain.StatusPending}, nil
}

func (s *ledgerServiceStub) Approve(ctx context.Context, id string) (*usecase.FinalizeResult, error) {
	return s.approveFn(ctx, id)
}

func (s *ledgerServiceStub) Cancel(ctx context.Context, id string) (*domain.Transaction, error) {
	return nil, domain.ErrInvalidStateTransition
}

func (s *ledgerServiceStub) Reverse(ctx context.Context, id string) (*usecase.FinalizeResult, error) {
	return s.reverseFn(ctx, id)
}

func (s *ledgerServiceStub) Transfer(ctx context.Context, input usecase.TransferInput) (*usecase.TransferResult, error) {
	return &usecase.TransferResult{
		Out:         &domain.Transaction{ID: "out", EntityID: input.FromRef, Type: domain.TransactionTypeOut, Amount: input.Amount},
		In:          &domain.Transaction{ID: "in", EntityID: input.ToRef, Type: domain.TransactionTypeIn, Amount: input.Amount},
		FromBalance: input.Amount.Neg(),
		ToBalance:   input.Amount,
	}, nil
}

func (s *ledgerServiceStub) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return nil, domain.ErrTransactionNotFound
}

func (s *ledgerServiceStub) ListTransactions(ctx context.Context, input usecase.ListTransactionsInput) (iter.Seq2[*domain.Transaction, error], error) {
	return s.listFn(ctx, input)
}

func transactionRouter(h *TransactionHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/transactions", h.Submit)
	r.Get("/transactions", h.List)
	r.Get("/transactions/{id}", h.Get)
	r.Put("/transactions/{id}", h.Amend)
	r.Post("/transactions/{id}/request-approval", h.RequestApproval)
	r.Post("/transactions/{id}/approve", h.Approve)
	r.Post("/transactions/{id}/cancel", h.Cancel)
	r.Post("/transactions/{id}/reverse", h.Reverse)
	r.Post("/transfers", h.Transfer)
	r.Get("/entities/{ref}/transactions", h.List)
	return r
}

func serve(h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTransactionHandler_Submit(t *testing.T) {
	var captured usecase.SubmitInput
	router := transactionRouter(NewTransactionHandler(&ledgerServiceStub{
		submitFn: func(ctx context.Context, input usecase.SubmitInput) (*domain.Transaction, error) {
			captured = input
			return &domain.Transaction{ID: "t1", EntityID: "e1", Type: input.Type, Amount: input.Amount, Status: domain.StatusDraft, RefNo: input.RefNo}, nil
		},
	}))

	rec := serve(router, http.MethodPost, "/transactions", dto.SubmitTransactionRequest{
		EntityRef: "SKU-1",
		Type:      "IN",
		Amount:    "12.50",
		RefNo:     "R1",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.EntityRef != "SKU-1" || !captured.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected input %+v", captured)
	}

	var resp dto.TransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "t1" || resp.Status != "draft" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestTransactionHandler_SubmitRejectsInvalidBody(t *testing.T) {
	router := transactionRouter(NewTransactionHandler(&ledgerServiceStub{
		submitFn: func(context.Context, usecase.SubmitInput) (*domain.Transaction, error) {
			t.Fatal("use case must not be called")
			return nil, nil
		},
	}))

	tests := []struct {
		name string
		body any
	}{
		{"negative amount", dto.SubmitTransactionRequest{EntityRef: "e", Type: "IN", Amount: "-1", RefNo: "R"}},
		{"bad type", dto.SubmitTransactionRequest{EntityRef: "e", Type: "SIDEWAYS", Amount: "1", RefNo: "R"}},
		{"missing ref", dto.SubmitTransactionRequest{EntityRef: "e", Type: "OUT", Amount: "1"}},
		{"not json", "{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, http.MethodPost, "/transactions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if resp := decodeError(t, rec); resp.Code != "validation" {
				t.Fatalf("expected validation code, got %+v", resp)
			}
		})
	}
}

func TestTransactionHandler_Lifecycle(t *testing.T) {
	final := &domain.Transaction{ID: "t1", Status: domain.StatusFinal, Amount: decimal.NewFromInt(5)}
	router := transactionRouter(NewTransactionHandler(&ledgerServiceStub{
		approveFn: func(ctx context.Context, id string) (*usecase.FinalizeResult, error) {
			return &usecase.FinalizeResult{Transaction: final, Balance: decimal.NewFromInt(5)}, nil
		},
		reverseFn: func(ctx context.Context, id string) (*usecase.FinalizeResult, error) {
			return nil, domain.ErrAlreadyReversed
		},
	}))

	rec := serve(router, http.MethodPost, "/transactions/t1/approve", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d", rec.Code)
	}
	var fin dto.FinalizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &fin); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !fin.Balance.Equal(decimal.NewFromInt(5)) || fin.Transaction.Status != "final" {
		t.Fatalf("unexpected finalize response %+v", fin)
	}

	if rec := serve(router, http.MethodPost, "/transactions/t1/reverse", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("reverse twice: expected 422, got %d", rec.Code)
	}
	if rec := serve(router, http.MethodPost, "/transactions/t1/cancel", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("cancel final: expected 422, got %d", rec.Code)
	}
	if rec := serve(router, http.MethodPost, "/transactions/t1/request-approval", nil); rec.Code != http.StatusOK {
		t.Fatalf("request approval: expected 200, got %d", rec.Code)
	}
	if rec := serve(router, http.MethodGet, "/transactions/missing", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get missing: expected 404, got %d", rec.Code)
	}

	rec = serve(router, http.MethodPut, "/transactions/t2", dto.AmendTransactionRequest{Type: "OUT", Amount: "3"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"type":"OUT"`) {
		t.Fatalf("amend: unexpected %d %s", rec.Code, rec.Body.String())
	}
}

func TestTransactionHandler_Transfer(t *testing.T) {
	router := transactionRouter(NewTransactionHandler(&ledgerServiceStub{}))

	rec := serve(router, http.MethodPost, "/transfers", dto.TransferRequest{From: "A", To: "A", Amount: "1", RefNo: "R"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("same entity: expected 400, got %d", rec.Code)
	}

	rec = serve(router, http.MethodPost, "/transfers", dto.TransferRequest{From: "A", To: "B", Amount: "4", RefNo: "R"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dto.TransferResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Out.EntityID != "A" || resp.In.EntityID != "B" || !resp.FromBalance.Equal(decimal.NewFromInt(-4)) {
		t.Fatalf("unexpected transfer response %+v", resp)
	}
}

func TestTransactionHandler_ListStreamsNDJSON(t *testing.T) {
	var captured usecase.ListTransactionsInput
	boom := errors.New("boom")
	router := transactionRouter(NewTransactionHandler(&ledgerServiceStub{
		listFn: func(ctx context.Context, input usecase.ListTransactionsInput) (iter.Seq2[*domain.Transaction, error], error) {
			captured = input
			return func(yield func(*domain.Transaction, error) bool) {
				if !yield(&domain.Transaction{ID: "t1"}, nil) {
					return
				}
				if !yield(&domain.Transaction{ID: "t2"}, nil) {
					return
				}
				yield(nil, boom)
			}, nil
		},
	}))

	rec := serve(router, http.MethodGet, "/entities/SKU-1/transactions?status=final&status=pending&from=2026-01-01T00:00:00Z", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if captured.EntityRef != "SKU-1" || len(captured.Statuses) != 2 || captured.From == nil || captured.To != nil {
		t.Fatalf("unexpected list input %+v", captured)
	}

	var lines []string
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], `"id":"t1"`) || !strings.Contains(lines[2], "stream aborted") {
		t.Fatalf("unexpected stream %v", lines)
	}
}

func TestTransactionHandler_ListRejectsBadQuery(t *testing.T) {
	router := transactionRouter(NewTransactionHandler(&ledgerServiceStub{}))

	if rec := serve(router, http.MethodGet, "/transactions?status=lost", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status: expected 400, got %d", rec.Code)
	}
	if rec := serve(router, http.MethodGet, "/transactions?from=yesterday", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad time: expected 400, got %d", rec.Code)
	}
}

type entityServiceStub struct {
	registered usecase.RegisterEntityInput
	changed    *string
}

func (s *entityServiceStub) Register(ctx context.Context, input usecase.RegisterEntityInput) (*domain.Entity, error) {
	s.registered = input
	return &domain.Entity{ID: "e1", Code: input.Code, Kind: input.Kind}, nil
}

func (s *entityServiceStub) Get(ctx context.Context, ref string) (*domain.Entity, error) {
	if ref != "e1" {
		return nil, domain.ErrEntityNotFound
	}
	return &domain.Entity{ID: "e1", CachedBalance: decimal.NewNullDecimal(decimal.NewFromInt(7))}, nil
}

func (s *entityServiceStub) ChangeCode(ctx context.Context, ref string, code *string) (*domain.Entity, error) {
	s.changed = code
	return &domain.Entity{ID: ref, Code: code}, nil
}

func (s *entityServiceStub) List(ctx context.Context, input usecase.ListEntitiesInput) ([]*domain.Entity, error) {
	return []*domain.Entity{{ID: "e1"}, {ID: "e2"}}, nil
}

func TestEntityHandler(t *testing.T) {
	stub := &entityServiceStub{}
	h := NewEntityHandler(stub)
	r := chi.NewRouter()
	r.Post("/entities", h.Register)
	r.Get("/entities", h.List)
	r.Get("/entities/{ref}", h.Get)
	r.Put("/entities/{ref}/code", h.ChangeCode)

	code := "SKU-9"
	rec := serve(r, http.MethodPost, "/entities", dto.RegisterEntityRequest{Code: &code, Kind: "item"})
	if rec.Code != http.StatusCreated || stub.registered.Kind != domain.EntityKindItem {
		t.Fatalf("register: unexpected %d %+v", rec.Code, stub.registered)
	}

	if rec := serve(r, http.MethodPost, "/entities", dto.RegisterEntityRequest{Kind: "planet"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad kind: expected 400, got %d", rec.Code)
	}

	rec = serve(r, http.MethodGet, "/entities/e1", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"cached_balance":"7"`) {
		t.Fatalf("get: unexpected %d %s", rec.Code, rec.Body.String())
	}
	if rec := serve(r, http.MethodGet, "/entities/ghost", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get unknown: expected 404, got %d", rec.Code)
	}

	rec = serve(r, http.MethodPut, "/entities/e1/code", map[string]any{"code": nil})
	if rec.Code != http.StatusOK || stub.changed != nil {
		t.Fatalf("clear code: unexpected %d %v", rec.Code, stub.changed)
	}

	rec = serve(r, http.MethodGet, "/entities?limit=2", nil)
	var list []dto.EntityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list) != 2 {
		t.Fatalf("list: unexpected %v %s", err, rec.Body.String())
	}
}

type balanceServiceStub struct{}

func (balanceServiceStub) GetBalance(ctx context.Context, ref string) (*domain.Balance, error) {
	if ref == "busy" {
		return nil, domain.ErrLockTimeout
	}
	return &domain.Balance{EntityID: ref, Mode: domain.BalanceModeRealTime, Value: decimal.NewFromInt(3)}, nil
}

func (balanceServiceStub) Rebuild(ctx context.Context, ref string) (*domain.RebuildResult, error) {
	return &domain.RebuildResult{EntityID: ref, Value: decimal.NewFromInt(3), DriftDetected: true}, nil
}

func TestBalanceHandler(t *testing.T) {
	h := NewBalanceHandler(balanceServiceStub{})
	r := chi.NewRouter()
	r.Get("/entities/{ref}/balance", h.Get)
	r.Post("/entities/{ref}/rebuild", h.Rebuild)

	rec := serve(r, http.MethodGet, "/entities/e1/balance", nil)
	var bal dto.BalanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &bal); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusOK || bal.EntityID != "e1" || !bal.Value.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("balance: unexpected %d %+v", rec.Code, bal)
	}

	if rec := serve(r, http.MethodGet, "/entities/busy/balance", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("lock timeout: expected 503, got %d", rec.Code)
	}

	rec = serve(r, http.MethodPost, "/entities/e1/rebuild", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"drift_detected":true`) ||
		!strings.Contains(rec.Body.String(), `"code":"integrity_drift"`) {
		t.Fatalf("rebuild: unexpected %d %s", rec.Code, rec.Body.String())
	}
}

type reconciliationServiceStub struct {
	report *usecase.ReconciliationReport
	err    error
}

func (s reconciliationServiceStub) GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error) {
	return s.report, s.err
}

func TestReconciliationHandler(t *testing.T) {
	report := &usecase.ReconciliationReport{
		TotalEntities:      2,
		ReconciledEntities: 1,
		Discrepancies: []*usecase.ReconciliationResult{{
			EntityID:          "e2",
			CalculatedBalance: decimal.NewFromInt(10),
			RecordedBalance:   decimal.NewNullDecimal(decimal.NewFromInt(11)),
			Difference:        decimal.NewFromInt(1),
		}},
	}

	rec := httptest.NewRecorder()
	NewReconciliationHandler(reconciliationServiceStub{report: report}).
		Report(rec, httptest.NewRequest(http.MethodPost, "/reconcile", nil))

	var resp dto.ReconciliationReportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusOK || resp.TotalEntities != 2 || len(resp.Discrepancies) != 1 || resp.Code != "integrity_drift" {
		t.Fatalf("unexpected report %d %+v", rec.Code, resp)
	}

	rec = httptest.NewRecorder()
	NewReconciliationHandler(reconciliationServiceStub{err: errors.New("db down")}).
		Report(rec, httptest.NewRequest(http.MethodPost, "/reconcile", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	healthy := NewHealthHandler(map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
		"redis":    nil,
	})
	rec := httptest.NewRecorder()
	healthy.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"postgres":"ok"`) {
		t.Fatalf("ready: unexpected %d %s", rec.Code, rec.Body.String())
	}

	down := NewHealthHandler(map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("refused") }),
	})
	rec = httptest.NewRecorder()
	down.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	down.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("liveness: expected 200, got %d", rec.Code)
	}
}
