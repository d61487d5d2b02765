package recorder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/caldway/tradehelm/internal/models"
	"github.com/caldway/tradehelm/pkg/logger"
)

func newTestRecorder(t *testing.T) (*Recorder, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	return New(path, logger.Nop()), path
}

func TestRecordAppendsJSONL(t *testing.T) {
	rec, path := newTestRecorder(t)
	fixed := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	events := []models.DecisionEvent{
		{RunID: "run-1", Stage: "execution", Symbol: "AAPL", Action: "BUY", Confidence: 0.8,
			Metadata: map[string]interface{}{"risk_decision": "APPROVE"}},
		{RunID: "run-2", Stage: "finalize", Symbol: "MSFT", Action: "SELL", Confidence: 0.4,
			Metadata: map[string]interface{}{"risk_decision": "REVIEW"}},
	}
	for _, ev := range events {
		res := rec.Record(ev)
		if res.Status != models.LogStatusLogged {
			t.Fatalf("status=%q, expected logged", res.Status)
		}
		if !res.Timestamp.Equal(fixed) {
			t.Fatalf("timestamp=%v, expected %v", res.Timestamp, fixed)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines=%d, expected 2", len(lines))
	}

	var first models.DecisionEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal line: %v", err)
	}
	if first.RunID != "run-1" || first.Symbol != "AAPL" || first.Stage != "execution" {
		t.Fatalf("event mismatch: %+v", first)
	}
	if !first.Timestamp.Equal(fixed) {
		t.Fatalf("stored timestamp=%v, expected %v", first.Timestamp, fixed)
	}
}

func TestRecordFailureClassification(t *testing.T) {
	tests := []struct {
		name         string
		metadata     map[string]interface{}
		wantFailures int64
	}{
		{"approved trade", map[string]interface{}{"risk_decision": "APPROVE"}, 0},
		{"rejected trade", map[string]interface{}{"risk_decision": "REJECT"}, 1},
		{"reviewed trade", map[string]interface{}{"risk_decision": "REVIEW"}, 1},
		{"no metadata", nil, 0},
		{"metadata without decision", map[string]interface{}{"note": "manual"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := newTestRecorder(t)
			res := rec.Record(models.DecisionEvent{Symbol: "AAPL", Metadata: tt.metadata})
			if res.Status != models.LogStatusLogged {
				t.Fatalf("status=%q, expected logged", res.Status)
			}

			h := rec.Health()
			if h.Total != 1 {
				t.Fatalf("total=%d, expected 1", h.Total)
			}
			if h.Failures != tt.wantFailures {
				t.Fatalf("failures=%d, expected %d", h.Failures, tt.wantFailures)
			}
		})
	}
}

func TestRecordUnwritablePath(t *testing.T) {
	// The store path is a directory, so every append fails.
	dir := t.TempDir()
	rec := New(dir, logger.Nop())

	res := rec.Record(models.DecisionEvent{Symbol: "AAPL", Action: "BUY",
		Metadata: map[string]interface{}{"risk_decision": "APPROVE"}})
	if res.Status != models.LogStatusError {
		t.Fatalf("status=%q, expected error", res.Status)
	}
	if res.Error == "" {
		t.Fatal("expected error detail in result")
	}

	h := rec.Health()
	if h.Total != 1 || h.Failures != 1 {
		t.Fatalf("total=%d failures=%d, expected 1/1", h.Total, h.Failures)
	}

	// The recorder stays usable after the failure.
	if second := rec.Record(models.DecisionEvent{Symbol: "MSFT"}); second.Status != models.LogStatusError {
		t.Fatalf("second status=%q, expected error", second.Status)
	}
	if h := rec.Health(); h.Total != 2 || h.Failures != 2 {
		t.Fatalf("total=%d failures=%d, expected 2/2", h.Total, h.Failures)
	}
}

func TestHealthColdUntilFirstEvent(t *testing.T) {
	rec, _ := newTestRecorder(t)

	h := rec.Health()
	if h.Status != "cold" {
		t.Fatalf("status=%q, expected cold before any event", h.Status)
	}
	if h.Total != 0 || h.Failures != 0 || h.LastDecision != nil || h.LastUpdate != "" {
		t.Fatalf("expected empty health, got %+v", h)
	}

	rec.Record(models.DecisionEvent{Symbol: "AAPL", Action: "BUY"})

	h = rec.Health()
	if h.Status != "ok" {
		t.Fatalf("status=%q, expected ok", h.Status)
	}
	if h.LastDecision == nil || h.LastDecision.Symbol != "AAPL" {
		t.Fatalf("last decision missing: %+v", h)
	}
	if h.LastUpdate == "" {
		t.Fatal("expected last update to be set")
	}
}

func TestRecordConcurrent(t *testing.T) {
	rec, path := newTestRecorder(t)

	const workers = 20
	const perWorker = 10

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				rec.Record(models.DecisionEvent{Symbol: "AAPL", Action: "BUY",
					Metadata: map[string]interface{}{"risk_decision": "APPROVE"}})
			}
		}(w)
	}
	wg.Wait()

	h := rec.Health()
	if h.Total != workers*perWorker {
		t.Fatalf("total=%d, expected %d", h.Total, workers*perWorker)
	}
	if h.Failures != 0 {
		t.Fatalf("failures=%d, expected 0", h.Failures)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != workers*perWorker {
		t.Fatalf("lines=%d, expected %d", len(lines), workers*perWorker)
	}
	for _, line := range lines {
		var ev models.DecisionEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("interleaved write produced bad line %q: %v", line, err)
		}
	}
}

func TestMetricsExposition(t *testing.T) {
	rec, _ := newTestRecorder(t)
	rec.Record(models.DecisionEvent{Symbol: "AAPL", Metadata: map[string]interface{}{"risk_decision": "APPROVE"}})
	rec.Record(models.DecisionEvent{Symbol: "MSFT", Metadata: map[string]interface{}{"risk_decision": "REJECT"}})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	rec.MetricsHandler().ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "decisions_total 2") {
		t.Fatalf("missing total counter:\n%s", body)
	}
	if !strings.Contains(body, "decisions_failures_total 1") {
		t.Fatalf("missing failures counter:\n%s", body)
	}
	if !strings.Contains(body, "decisions_last_timestamp_seconds") {
		t.Fatalf("missing last timestamp gauge:\n%s", body)
	}
}

func TestEnsureStoreCreatesParent(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "nested", "deeper", "decisions.jsonl")
	rec := New(path, logger.Nop())

	if err := rec.EnsureStore(); err != nil {
		t.Fatalf("EnsureStore: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("parent not created: %v", err)
	}

	if res := rec.Record(models.DecisionEvent{Symbol: "AAPL"}); res.Status != models.LogStatusLogged {
		t.Fatalf("status=%q, expected logged after EnsureStore", res.Status)
	}
}

func TestCloseWaitsForWriters(t *testing.T) {
	rec, _ := newTestRecorder(t)
	rec.Record(models.DecisionEvent{Symbol: "AAPL"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rec.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
