package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caldway/tradehelm/internal/models"
	"github.com/caldway/tradehelm/internal/recorder"
	"github.com/caldway/tradehelm/pkg/logger"
)

func TestHealthzEndpoint(t *testing.T) {
	rec := recorder.New(filepath.Join(t.TempDir(), "decisions.jsonl"), logger.Nop())
	srv := New(rec, logger.Nop(), WithAddr("127.0.0.1:0"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.echo.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, expected 200", w.Code)
	}

	var h recorder.Health
	if err := json.Unmarshal(w.Body.Bytes(), &h); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if h.Status != "cold" {
		t.Fatalf("status=%q, expected cold before any event", h.Status)
	}

	rec.Record(models.DecisionEvent{Symbol: "AAPL", Action: "BUY",
		Metadata: map[string]interface{}{"risk_decision": "APPROVE"}})

	w = httptest.NewRecorder()
	srv.echo.ServeHTTP(w, req)
	if err := json.Unmarshal(w.Body.Bytes(), &h); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if h.Status != "ok" || h.Total != 1 || h.Failures != 0 {
		t.Fatalf("unexpected health after event: %+v", h)
	}
	if h.LastDecision == nil || h.LastDecision.Symbol != "AAPL" {
		t.Fatalf("last decision missing: %+v", h)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := recorder.New(filepath.Join(t.TempDir(), "decisions.jsonl"), logger.Nop())
	rec.Record(models.DecisionEvent{Symbol: "AAPL",
		Metadata: map[string]interface{}{"risk_decision": "REJECT"}})

	srv := New(rec, logger.Nop(), WithAddr("127.0.0.1:0"))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.echo.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, expected 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "decisions_total 1") {
		t.Fatalf("missing total counter:\n%s", body)
	}
	if !strings.Contains(body, "decisions_failures_total 1") {
		t.Fatalf("missing failures counter:\n%s", body)
	}
}

func TestStartAndGracefulStop(t *testing.T) {
	rec := recorder.New(filepath.Join(t.TempDir(), "decisions.jsonl"), logger.Nop())
	srv := New(rec, logger.Nop(), WithAddr("127.0.0.1:0"), WithTimeouts(time.Second, time.Second))

	srv.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
