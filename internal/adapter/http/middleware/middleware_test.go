package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/infrastructure/metrics"
)

func TestRecoveryReturns500(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)

	Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "internal server error") {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestLoggingAttachesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities", nil)

	NewLoggingMiddleware(logger).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside handler")
		w.WriteHeader(http.StatusAccepted)
	})).ServeHTTP(rr, req)

	out := buf.String()
	if !strings.Contains(out, "inside handler") {
		t.Fatalf("expected handler log through the context logger, got %q", out)
	}
	if !strings.Contains(out, `"status":202`) || !strings.Contains(out, "request completed") {
		t.Fatalf("expected completion line with status, got %q", out)
	}
}

func TestRateLimiter(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	rl := NewRateLimiter(1, 2, m)
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/entities", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes %v", codes)
	}
	if got := testutil.ToFloat64(m.RateLimitHits.WithLabelValues("/api/v1/entities")); got != 1 {
		t.Fatalf("expected one rate limit hit, got %v", got)
	}

	other := httptest.NewRequest(http.MethodGet, "/api/v1/entities", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, other)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected another client to pass, got %d", rr.Code)
	}

	rl.CleanupLimiters(time.Hour)
	if rl.Len() != 2 {
		t.Fatalf("expected recent clients to stay, got %d", rl.Len())
	}
	rl.CleanupLimiters(-time.Second)
	if rl.Len() != 0 {
		t.Fatalf("expected idle clients to be dropped, got %d", rl.Len())
	}
}
