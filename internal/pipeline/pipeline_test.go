package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caldway/tradehelm/consts"
	"github.com/caldway/tradehelm/internal/config"
	"github.com/caldway/tradehelm/internal/models"
	"github.com/caldway/tradehelm/internal/recorder"
	"github.com/caldway/tradehelm/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Offline = true
	cfg.DataDir = t.TempDir()
	cfg.BiasCachePath = filepath.Join(cfg.DataDir, "bias", "bias_snapshots.json")
	cfg.AuditLogPath = filepath.Join(cfg.DataDir, "decisions", "decisions.jsonl")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return cfg
}

func newTestPipeline(t *testing.T, cfg *config.Config) (*Pipeline, *recorder.Recorder) {
	t.Helper()
	rec := recorder.New(cfg.AuditLogPath, logger.Nop())
	p, err := New(context.Background(), cfg, rec, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, rec
}

// writeSeries stores one historical price file for symbol, one bar
// per close, dated consecutively.
func writeSeries(t *testing.T, cfg *config.Config, symbol string, closes []float64) {
	t.Helper()
	lines := []string{
		"symbol," + symbol,
		"interval,1d",
		"date,close,high,low,open,volume",
	}
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	var lastDate string
	for i, c := range closes {
		lastDate = base.AddDate(0, 0, i).Format("2006-01-02")
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		high := math.Max(open, c) * 1.01
		low := math.Min(open, c) * 0.99
		lines = append(lines, fmt.Sprintf("%s,%.4f,%.4f,%.4f,%.4f,1000",
			lastDate, c, high, low, open))
	}
	name := fmt.Sprintf("%s_%s.csv", symbol, lastDate)
	path := filepath.Join(cfg.PriceDataDir(), name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write price file: %v", err)
	}
}

// steadyRiser compounds 0.5% a day: near-zero volatility and a clear
// uptrend, which the offline reasoner turns into a high-conviction BUY.
func steadyRiser(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 * math.Pow(1.005, float64(i))
	}
	return closes
}

// violentChop alternates +25% and -20% days: flat trend, annualized
// volatility far above any approval threshold.
func violentChop(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 125
		}
	}
	return closes
}

func readAuditEvents(t *testing.T, path string) []models.DecisionEvent {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var events []models.DecisionEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev models.DecisionEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("bad audit line %q: %v", line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan audit log: %v", err)
	}
	return events
}

func TestRunApprovedBuy(t *testing.T) {
	cfg := testConfig(t)
	writeSeries(t, cfg, "AAPL", steadyRiser(60))
	p, rec := newTestPipeline(t, cfg)

	res := p.Run(context.Background(), "aapl")

	if res.Status != models.RunDone {
		t.Fatalf("status=%q (%s), expected done", res.Status, res.FailReason)
	}
	if res.Symbol != "AAPL" {
		t.Fatalf("symbol=%q, expected AAPL", res.Symbol)
	}
	wantStages := []string{consts.Research, consts.Signal, consts.Risk, consts.Execution, consts.Finalize}
	if len(res.Stages) != len(wantStages) {
		t.Fatalf("stages=%v, expected %v", res.Stages, wantStages)
	}
	for i, stage := range wantStages {
		if res.Stages[i] != stage {
			t.Fatalf("stages[%d]=%q, expected %q", i, res.Stages[i], stage)
		}
	}

	if res.Signal == nil || res.Signal.Action != models.ActionBuy {
		t.Fatalf("signal=%+v, expected a BUY", res.Signal)
	}
	if res.Risk == nil || res.Risk.Decision != models.DecisionApprove {
		t.Fatalf("risk=%+v, expected APPROVE", res.Risk)
	}
	if res.Risk.Reason != "within configured thresholds" {
		t.Fatalf("reason=%q", res.Risk.Reason)
	}
	if res.LogStatus != models.LogStatusLogged {
		t.Fatalf("log status=%q, expected logged", res.LogStatus)
	}
	if res.MarketReport == "" {
		t.Fatal("market report is empty")
	}
	if !strings.Contains(res.Summary, "approved") {
		t.Fatalf("summary=%q, expected an approval", res.Summary)
	}
	if !strings.Contains(res.NextSteps, "Monitor the position") {
		t.Fatalf("next steps=%q", res.NextSteps)
	}

	health := rec.Health()
	if health.Total != 1 || health.Failures != 0 {
		t.Fatalf("health=%+v, expected 1 decision, 0 failures", health)
	}

	events := readAuditEvents(t, cfg.AuditLogPath)
	if len(events) != 1 {
		t.Fatalf("audit events=%d, expected exactly 1", len(events))
	}
	ev := events[0]
	if ev.RunID != res.RunID {
		t.Fatalf("audit run_id=%q, result run_id=%q", ev.RunID, res.RunID)
	}
	if ev.Stage != consts.Execution {
		t.Fatalf("audit stage=%q, expected execution", ev.Stage)
	}
	if ev.Symbol != "AAPL" || ev.Action != models.ActionBuy {
		t.Fatalf("audit event=%+v", ev)
	}
	if got := ev.Metadata["risk_decision"]; got != models.DecisionApprove {
		t.Fatalf("audit risk_decision=%v, expected APPROVE", got)
	}
}

func TestRunRejectedOnVolatility(t *testing.T) {
	cfg := testConfig(t)
	writeSeries(t, cfg, "MEME", violentChop(40))
	p, rec := newTestPipeline(t, cfg)

	res := p.Run(context.Background(), "MEME")

	if res.Status != models.RunDone {
		t.Fatalf("status=%q (%s), expected done", res.Status, res.FailReason)
	}
	if res.Risk == nil || res.Risk.Decision != models.DecisionReject {
		t.Fatalf("risk=%+v, expected REJECT", res.Risk)
	}
	if !strings.Contains(res.Risk.Reason, "volatility too high") {
		t.Fatalf("reason=%q", res.Risk.Reason)
	}
	for _, stage := range res.Stages {
		if stage == consts.Execution {
			t.Fatalf("execution ran for a rejected trade: %v", res.Stages)
		}
	}
	if res.Stages[len(res.Stages)-1] != consts.Finalize {
		t.Fatalf("stages=%v, expected finalize last", res.Stages)
	}
	if res.LogStatus != models.LogStatusLogged {
		t.Fatalf("log status=%q: rejected runs are still audited", res.LogStatus)
	}
	if !strings.Contains(res.Summary, "held back by risk") {
		t.Fatalf("summary=%q", res.Summary)
	}
	if !strings.Contains(res.NextSteps, "Stand down") {
		t.Fatalf("next steps=%q", res.NextSteps)
	}

	events := readAuditEvents(t, cfg.AuditLogPath)
	if len(events) != 1 {
		t.Fatalf("audit events=%d, expected exactly 1", len(events))
	}
	if events[0].Stage != consts.Finalize {
		t.Fatalf("audit stage=%q, expected finalize", events[0].Stage)
	}
	if !strings.HasPrefix(events[0].Notes, "not executed:") {
		t.Fatalf("audit notes=%q", events[0].Notes)
	}

	// A non-APPROVE outcome counts as a decision failure even though
	// the write itself succeeded.
	health := rec.Health()
	if health.Total != 1 || health.Failures != 1 {
		t.Fatalf("health=%+v, expected 1 decision, 1 failure", health)
	}
}

func TestRunNoDataGoesToReview(t *testing.T) {
	cfg := testConfig(t)
	p, _ := newTestPipeline(t, cfg)

	res := p.Run(context.Background(), "ZZZZ")

	if res.Status != models.RunDone {
		t.Fatalf("status=%q (%s): missing data must degrade, not abort", res.Status, res.FailReason)
	}
	if !strings.Contains(res.MarketReport, "No price history") {
		t.Fatalf("market report=%q", res.MarketReport)
	}
	if res.Signal == nil || res.Signal.Action != models.ActionHold {
		t.Fatalf("signal=%+v, expected HOLD", res.Signal)
	}
	if !approxEq(res.Signal.Conviction, 0.2) {
		t.Fatalf("conviction=%v, expected 0.2", res.Signal.Conviction)
	}
	if res.Risk == nil || res.Risk.Decision != models.DecisionReview {
		t.Fatalf("risk=%+v, expected REVIEW", res.Risk)
	}
	if !strings.Contains(res.Risk.Reason, "confidence weak") {
		t.Fatalf("reason=%q", res.Risk.Reason)
	}
	for _, stage := range res.Stages {
		if stage == consts.Execution {
			t.Fatalf("execution ran under REVIEW: %v", res.Stages)
		}
	}
	if !strings.Contains(res.NextSteps, "human reviewer") {
		t.Fatalf("next steps=%q", res.NextSteps)
	}
}

func TestRunAuditFailureDoesNotAbort(t *testing.T) {
	cfg := testConfig(t)
	writeSeries(t, cfg, "AAPL", steadyRiser(60))
	// A directory at the audit path makes every append fail.
	cfg.AuditLogPath = t.TempDir()

	p, rec := newTestPipeline(t, cfg)
	res := p.Run(context.Background(), "AAPL")

	if res.Status != models.RunDone {
		t.Fatalf("status=%q (%s): a failed audit write must not abort the run", res.Status, res.FailReason)
	}
	if res.Risk == nil || res.Risk.Decision != models.DecisionApprove {
		t.Fatalf("risk=%+v, expected APPROVE", res.Risk)
	}
	if res.LogStatus != models.LogStatusError {
		t.Fatalf("log status=%q, expected error", res.LogStatus)
	}
	if !strings.Contains(res.Summary, "audit error") {
		t.Fatalf("summary=%q", res.Summary)
	}

	health := rec.Health()
	if health.Total != 1 || health.Failures != 1 {
		t.Fatalf("health=%+v, expected the failed write counted once", health)
	}
}

func TestRunBlankSymbolFails(t *testing.T) {
	cfg := testConfig(t)
	p, rec := newTestPipeline(t, cfg)

	res := p.Run(context.Background(), "   ")

	if res.Status != models.RunFailed {
		t.Fatalf("status=%q, expected failed", res.Status)
	}
	if res.FailReason != "symbol is required" {
		t.Fatalf("fail reason=%q", res.FailReason)
	}
	if res.RunID == "" {
		t.Fatal("failed result has no run id")
	}
	if health := rec.Health(); health.Total != 0 {
		t.Fatalf("health=%+v, expected no audit writes", health)
	}
}

func TestRunManySharesOnlyTheRecorder(t *testing.T) {
	cfg := testConfig(t)
	writeSeries(t, cfg, "AAPL", steadyRiser(60))
	writeSeries(t, cfg, "MEME", violentChop(40))
	p, rec := newTestPipeline(t, cfg)

	symbols := []string{"AAPL", "MEME", "ZZZZ"}
	results := p.RunMany(context.Background(), symbols)

	if len(results) != len(symbols) {
		t.Fatalf("results=%d, expected %d", len(results), len(symbols))
	}
	seen := make(map[string]bool)
	for i, res := range results {
		if res.Symbol != symbols[i] {
			t.Fatalf("results[%d].Symbol=%q, expected %q", i, res.Symbol, symbols[i])
		}
		if res.Status != models.RunDone {
			t.Fatalf("%s: status=%q (%s)", res.Symbol, res.Status, res.FailReason)
		}
		if seen[res.RunID] {
			t.Fatalf("run id %q reused across runs", res.RunID)
		}
		seen[res.RunID] = true
	}

	if results[0].Risk.Decision != models.DecisionApprove {
		t.Fatalf("AAPL decision=%q", results[0].Risk.Decision)
	}
	if results[1].Risk.Decision != models.DecisionReject {
		t.Fatalf("MEME decision=%q", results[1].Risk.Decision)
	}
	if results[2].Risk.Decision != models.DecisionReview {
		t.Fatalf("ZZZZ decision=%q", results[2].Risk.Decision)
	}

	if health := rec.Health(); health.Total != 3 {
		t.Fatalf("health=%+v, expected one audit record per run", health)
	}
	events := readAuditEvents(t, cfg.AuditLogPath)
	if len(events) != 3 {
		t.Fatalf("audit events=%d, expected 3", len(events))
	}
	byRun := make(map[string]int)
	for _, ev := range events {
		byRun[ev.RunID]++
	}
	for runID, n := range byRun {
		if n != 1 {
			t.Fatalf("run %q has %d audit records, expected 1", runID, n)
		}
		if !seen[runID] {
			t.Fatalf("audit run %q does not match any result", runID)
		}
	}
}

func TestRunIsRepeatable(t *testing.T) {
	cfg := testConfig(t)
	writeSeries(t, cfg, "AAPL", steadyRiser(60))
	p, _ := newTestPipeline(t, cfg)

	first := p.Run(context.Background(), "AAPL")
	second := p.Run(context.Background(), "AAPL")

	if first.Risk.Decision != second.Risk.Decision {
		t.Fatalf("decisions differ: %q vs %q", first.Risk.Decision, second.Risk.Decision)
	}
	if first.Signal.Action != second.Signal.Action {
		t.Fatalf("actions differ: %q vs %q", first.Signal.Action, second.Signal.Action)
	}
	if !approxEq(first.Risk.PositionSize, second.Risk.PositionSize) {
		t.Fatalf("position sizes differ: %v vs %v", first.Risk.PositionSize, second.Risk.PositionSize)
	}
}

func approxEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
