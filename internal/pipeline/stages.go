package pipeline

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/caldway/tradehelm/consts"
	"github.com/caldway/tradehelm/internal/agents"
	"github.com/caldway/tradehelm/internal/models"
	"github.com/caldway/tradehelm/internal/tools"
)

// stages holds the deterministic pipeline stages. Unlike the
// reasoning stages these never consult a model: risk applies the
// budget calculator exactly once, execution and finalize handle the
// audit trail.
type stages struct {
	deps *agents.Deps
}

// risk gates the signal. It invokes the risk tool exactly once per
// run and records the verdict as-is: a non-APPROVE may be explained
// downstream but never overturned.
func (s *stages) risk(ctx context.Context, input string, opts ...any) (output string, err error) {
	err = compose.ProcessState[*models.RunState](ctx, func(_ context.Context, state *models.RunState) error {
		defer func() {
			output = state.Goto
		}()

		sig := state.Signal
		if sig == nil {
			return fmt.Errorf("risk stage reached without a signal")
		}

		volatility := 0.0
		if state.Snapshot != nil {
			volatility = state.Snapshot.Volatility
		}

		decision, derr := s.deps.Tools.Risk.Evaluate(ctx, &tools.RiskInput{
			Symbol:         state.Symbol,
			Action:         sig.Action,
			Confidence:     sig.Conviction,
			Volatility:     volatility,
			PortfolioValue: s.deps.Cfg.DefaultPortfolioValue,
			MaxRiskBps:     s.deps.Cfg.MaxRiskBps,
		})
		if derr != nil {
			return derr
		}
		state.Risk = decision

		state.MarkStage(consts.Risk)
		if decision.Decision == models.DecisionApprove {
			state.Goto = consts.Execution
		} else {
			state.Goto = consts.Finalize
		}
		return nil
	})
	return output, err
}

// execution runs only for approved trades. The audit write is
// synchronous: the stage does not conclude until the log result,
// success or failure, is in hand.
func (s *stages) execution(ctx context.Context, input string, opts ...any) (output string, err error) {
	err = compose.ProcessState[*models.RunState](ctx, func(_ context.Context, state *models.RunState) error {
		defer func() {
			output = state.Goto
		}()

		sig := state.Signal
		risk := state.Risk

		logRes, lerr := s.deps.Tools.Log.Log(ctx, &tools.LogInput{
			RunID:      state.RunID,
			Stage:      consts.Execution,
			Symbol:     state.Symbol,
			Action:     sig.Action,
			Confidence: sig.Conviction,
			Notes:      fmt.Sprintf("executing %s: %s", sig.Action, sig.Rationale),
			Metadata:   auditMetadata(risk),
		})
		if lerr != nil {
			return lerr
		}
		state.LogResult = logRes
		state.LogStatus = logRes.Status

		state.ExecutionNote = fmt.Sprintf("%s %s sized at %.2f (risk budget %.2f), audit %s",
			sig.Action, state.Symbol, risk.PositionSize, risk.RiskAmount, logRes.Status)

		state.MarkStage(consts.Execution)
		state.Goto = consts.Finalize
		return nil
	})
	return output, err
}

// finalize closes the run. Runs that skipped execution get their one
// audit record here, so every completed run is logged exactly once.
func (s *stages) finalize(ctx context.Context, input string, opts ...any) (output *models.RunState, err error) {
	err = compose.ProcessState[*models.RunState](ctx, func(_ context.Context, state *models.RunState) error {
		if state.LogResult == nil {
			sig := state.Signal
			logRes, lerr := s.deps.Tools.Log.Log(ctx, &tools.LogInput{
				RunID:      state.RunID,
				Stage:      consts.Finalize,
				Symbol:     state.Symbol,
				Action:     sig.Action,
				Confidence: sig.Conviction,
				Notes:      fmt.Sprintf("not executed: %s", state.Risk.Reason),
				Metadata:   auditMetadata(state.Risk),
			})
			if lerr != nil {
				return lerr
			}
			state.LogResult = logRes
			state.LogStatus = logRes.Status
		}

		state.MarkStage(consts.Finalize)
		state.Status = models.RunDone
		output = state
		return nil
	})
	return output, err
}

func auditMetadata(risk *models.RiskDecision) map[string]interface{} {
	return map[string]interface{}{
		"risk_decision":  risk.Decision,
		"risk_reason":    risk.Reason,
		"position_size":  risk.PositionSize,
		"risk_amount":    risk.RiskAmount,
		"constraint_hit": risk.ConstraintHit,
	}
}
