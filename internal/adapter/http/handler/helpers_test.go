package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/domain"
)

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/entities?limit=50", nil)
	if got := parseIntQuery(req, "limit", 10); got != 50 {
		t.Fatalf("expected limit=50, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/entities?limit=invalid", nil)
	if got := parseIntQuery(req, "limit", 10); got != 10 {
		t.Fatalf("expected fallback to default, got %d", got)
	}

	req.URL = &url.URL{RawQuery: ""}
	if got := parseIntQuery(req, "limit", 25); got != 25 {
		t.Fatalf("expected default when missing, got %d", got)
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", domain.ErrInvalidAmount, http.StatusBadRequest},
		{"negative balance", domain.ErrNegativeBalanceNotAllowed, http.StatusBadRequest},
		{"unknown reference", domain.ErrEntityNotFound, http.StatusNotFound},
		{"transaction not found", domain.ErrTransactionNotFound, http.StatusNotFound},
		{"duplicate ref", domain.ErrDuplicateRef, http.StatusConflict},
		{"duplicate code", domain.ErrDuplicateCode, http.StatusConflict},
		{"conflict", fmt.Errorf("approve: %w", domain.ErrConflict), http.StatusConflict},
		{"invalid transition", domain.ErrAlreadyReversed, http.StatusUnprocessableEntity},
		{"lock timeout", domain.ErrLockTimeout, http.StatusServiceUnavailable},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapDomainError(tt.err); got != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	payload := map[string]string{"status": "ok"}

	writeJSON(rr, http.StatusCreated, payload)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %s", ct)
	}

	var decoded map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if decoded["status"] != "ok" {
		t.Fatalf("expected payload to round-trip, got %+v", decoded)
	}
}

func TestWriteDomainError(t *testing.T) {
	t.Run("domain error carries kind", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", nil)

		writeDomainError(rr, req, "failed", domain.ErrDuplicateRef)

		resp := decodeError(t, rr)
		if rr.Code != http.StatusConflict || resp.Code != "duplicate_ref" || resp.Message == "" {
			t.Fatalf("unexpected response %d %+v", rr.Code, resp)
		}
	})

	t.Run("internal error hides details", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", nil)

		writeDomainError(rr, req, "failed", errors.New("dial tcp 10.0.0.5:5432"))

		resp := decodeError(t, rr)
		if rr.Code != http.StatusInternalServerError || resp.Message != "" || resp.Code != "internal" {
			t.Fatalf("unexpected response %d %+v", rr.Code, resp)
		}
	})
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}
