package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	"github.com/caldway/tradehelm/internal/agents"
	"github.com/caldway/tradehelm/internal/config"
	"github.com/caldway/tradehelm/internal/models"
	"github.com/caldway/tradehelm/internal/recorder"
	"github.com/caldway/tradehelm/internal/tools"
	"github.com/caldway/tradehelm/pkg/logger"
)

// Pipeline runs the research-to-execution chain for one symbol at a
// time. Concurrent runs are independent: each gets its own toolset
// and state, sharing only the recorder.
type Pipeline struct {
	cfg   *config.Config
	log   *logger.Logger
	rec   *recorder.Recorder
	model model.ToolCallingChatModel
}

// New prepares a pipeline. The chat model is built once here; a
// provider that cannot be reached fails fast instead of on the first
// run. Offline mode skips the model entirely.
func New(ctx context.Context, cfg *config.Config, rec *recorder.Recorder, log *logger.Logger) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg, log: log, rec: rec}
	if !cfg.Offline {
		m, err := agents.NewChatModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init chat model: %w", err)
		}
		p.model = m
	}
	return p, nil
}

// Run drives one symbol through the full chain and always returns a
// structured result. Unrecoverable stage errors surface as a failed
// run, never as a panic or a lost result.
func (p *Pipeline) Run(ctx context.Context, symbol string) (result *models.RunResult) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	started := time.Now()

	var state *models.RunState
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pipeline run panicked", logger.Any("panic", r), logger.String("symbol", symbol))
			result = p.failedResult(state, symbol, fmt.Sprintf("panic: %v", r), started)
		}
	}()

	if symbol == "" {
		return p.failedResult(nil, symbol, "symbol is required", started)
	}

	ts := tools.NewToolset(p.cfg, p.rec, p.log)
	deps := &agents.Deps{Cfg: p.cfg, Tools: ts, Model: p.model}

	genState := func(ctx context.Context) *models.RunState {
		state = models.NewRunState(symbol, p.cfg.Window)
		return state
	}

	runnable, err := newCoordinator(ctx, deps, genState)
	if err != nil {
		return p.failedResult(state, symbol, fmt.Sprintf("build pipeline: %v", err), started)
	}

	p.log.Info("pipeline run starting", logger.String("symbol", symbol))

	final, err := runnable.Invoke(ctx, symbol, compose.WithCallbacks(newStageObserver(p.log, symbol)))
	if err != nil {
		p.log.Error("pipeline run failed", logger.String("symbol", symbol), logger.Err(err))
		return p.failedResult(state, symbol, err.Error(), started)
	}

	result = resultFromState(final, started, time.Now())
	p.log.Info("pipeline run done",
		logger.String("symbol", symbol),
		logger.String("run_id", result.RunID),
		logger.String("decision", decisionOf(result)),
		logger.String("log_status", result.LogStatus))
	return result
}

// RunMany runs one pipeline per symbol concurrently and returns the
// results in input order.
func (p *Pipeline) RunMany(ctx context.Context, symbols []string) []*models.RunResult {
	results := make([]*models.RunResult, len(symbols))
	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			results[i] = p.Run(ctx, symbol)
		}(i, symbol)
	}
	wg.Wait()
	return results
}

func (p *Pipeline) failedResult(state *models.RunState, symbol, reason string, started time.Time) *models.RunResult {
	res := &models.RunResult{
		Symbol:     symbol,
		Status:     models.RunFailed,
		FailReason: reason,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Summary:    fmt.Sprintf("%s: run failed (%s)", symbol, reason),
		NextSteps:  "Check data availability and configuration, then rerun.",
	}
	if state != nil {
		res.RunID = state.RunID
		res.Stages = state.Stages
		res.MarketReport = state.MarketReport
		res.Signal = state.Signal
		res.Risk = state.Risk
		res.LogStatus = state.LogStatus
	}
	if res.RunID == "" {
		res.RunID = uuid.NewString()
	}
	return res
}

func resultFromState(state *models.RunState, started, finished time.Time) *models.RunResult {
	res := &models.RunResult{
		RunID:        state.RunID,
		Symbol:       state.Symbol,
		Status:       state.Status,
		Stages:       state.Stages,
		MarketReport: state.MarketReport,
		Signal:       state.Signal,
		Risk:         state.Risk,
		LogStatus:    state.LogStatus,
		StartedAt:    started,
		FinishedAt:   finished,
	}
	res.Summary = buildSummary(state)
	res.NextSteps = nextSteps(state)
	return res
}

func buildSummary(state *models.RunState) string {
	if state.Signal == nil || state.Risk == nil {
		return fmt.Sprintf("%s: run ended before a decision was reached", state.Symbol)
	}
	if state.Risk.Decision == models.DecisionApprove {
		return fmt.Sprintf("%s: %s approved, position %.2f against a %.2f risk budget, audit %s",
			state.Symbol, state.Signal.Action, state.Risk.PositionSize, state.Risk.RiskAmount, state.LogStatus)
	}
	return fmt.Sprintf("%s: %s held back by risk (%s): %s",
		state.Symbol, state.Signal.Action, state.Risk.Decision, state.Risk.Reason)
}

func nextSteps(state *models.RunState) string {
	if state.Risk == nil {
		return "Check data availability and configuration, then rerun."
	}
	switch state.Risk.Decision {
	case models.DecisionApprove:
		if state.Risk.ConstraintHit {
			return "Position was capped at the portfolio ceiling; monitor fills and consider staging the entry."
		}
		return "Monitor the position against the exit plan and re-run on the next data refresh."
	case models.DecisionReview:
		return "Escalate to a human reviewer before sizing up; conviction is below the desk floor."
	default:
		return "Stand down and revisit once volatility normalizes."
	}
}

func decisionOf(res *models.RunResult) string {
	if res.Risk == nil {
		return ""
	}
	return res.Risk.Decision
}
