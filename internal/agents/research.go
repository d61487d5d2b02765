package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/caldway/tradehelm/consts"
	"github.com/caldway/tradehelm/internal/models"
	"github.com/caldway/tradehelm/internal/tools"
)

// NewResearchNode builds the research stage subgraph: load the
// market context, reason over it, then route forward. The stage owns
// the guarantee that market analytics ran at least once before it
// concludes.
func NewResearchNode(ctx context.Context, deps *Deps) (*compose.Graph[string, string], error) {
	g := compose.NewGraph[string, string]()

	agentLambda, err := deps.reasonerLambda(ctx, consts.Research)
	if err != nil {
		return nil, err
	}

	_ = g.AddLambdaNode("load", compose.InvokableLambdaWithOption(deps.loadResearchMessages))
	_ = g.AddLambdaNode("agent", agentLambda)
	_ = g.AddLambdaNode("router", compose.InvokableLambdaWithOption(deps.researchRouter))

	_ = g.AddEdge(compose.START, "load")
	_ = g.AddEdge("load", "agent")
	_ = g.AddEdge("agent", "router")
	_ = g.AddEdge("router", compose.END)

	return g, nil
}

// reasonerLambda picks the stage's reasoning engine: a react agent
// over the run's tools when a model is configured, otherwise the
// deterministic offline reasoner.
func (d *Deps) reasonerLambda(ctx context.Context, stage string) (*compose.Lambda, error) {
	if d.Model == nil {
		switch stage {
		case consts.Research:
			return compose.InvokableLambda(d.offlineResearch), nil
		default:
			return compose.InvokableLambda(d.offlineSignal), nil
		}
	}

	agent, err := react.NewAgent(ctx, &react.AgentConfig{
		MaxStep:          maxAgentSteps,
		ToolCallingModel: d.Model,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: d.Tools.AgentTools(),
		},
		StreamToolCallChecker: ToolCallChecker,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s agent: %w", stage, err)
	}
	return compose.AnyLambda(agent.Generate, agent.Stream, nil, nil)
}

func (d *Deps) loadResearchMessages(ctx context.Context, input string, opts ...any) (output []*schema.Message, err error) {
	err = compose.ProcessState[*models.RunState](ctx, func(_ context.Context, state *models.RunState) error {
		// Pull the snapshot and bias up front so the stage always has
		// hard numbers, whatever the reasoner decides to do with its
		// own tool calls.
		snap, aerr := d.Tools.Market.Analyze(ctx, &tools.MarketInput{Symbol: state.Symbol, Window: state.Window})
		if aerr != nil {
			return aerr
		}
		state.Snapshot = snap

		bias, berr := d.Tools.Bias.Lookup(ctx, &tools.BiasInput{Symbol: state.Symbol})
		if berr != nil {
			return berr
		}
		state.Bias = bias

		systemPrompt := `You are a senior market analyst on a trading desk.

Your responsibilities:
1. Characterize the current market regime for the symbol: trend, volatility, liquidity
2. Weigh the desk's cached directional bias against the measured data, noting staleness
3. Call out anything that should temper position sizing

You may call get_market_snapshot for different trailing windows and
get_bias_snapshot to re-check the cached view. Conclude with a concise
market-regime narrative in plain prose.

Current context:
- Symbol: ` + state.Symbol + `
- Trailing window: ` + fmt.Sprintf("%d bars", state.Window)

		output = []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(marketContext(snap) + "\n" + biasContext(bias)),
		}
		return nil
	})
	return output, err
}

func (d *Deps) researchRouter(ctx context.Context, input *schema.Message, opts ...any) (output string, err error) {
	err = compose.ProcessState[*models.RunState](ctx, func(_ context.Context, state *models.RunState) error {
		defer func() {
			output = state.Goto
		}()

		if input != nil {
			state.MarketReport = strings.TrimSpace(input.Content)
			state.Messages = append(state.Messages, input)
		}

		// The stage must not conclude without at least one market
		// analytics call.
		if d.Tools.Market.Calls() == 0 {
			snap, aerr := d.Tools.Market.Analyze(ctx, &tools.MarketInput{Symbol: state.Symbol, Window: state.Window})
			if aerr != nil {
				return aerr
			}
			state.Snapshot = snap
		}
		if state.MarketReport == "" {
			state.MarketReport = researchNarrative(state.Snapshot, state.Bias)
		}

		state.MarkStage(consts.Research)
		state.Goto = consts.Signal
		return nil
	})
	return output, err
}

func marketContext(snap *models.MarketSnapshot) string {
	if !snap.HasData() {
		return fmt.Sprintf("No price history is on file for %s.", snap.Symbol)
	}
	return fmt.Sprintf(
		"Market snapshot for %s as of %s over %d bars: close %.2f, annualized volatility %.3f, ATR %.2f, MA20 %.2f, MA50 %.2f, MA100 %.2f, volume ratio %.2f, trend strength %.4f.",
		snap.Symbol, snap.AsOf, snap.Bars, snap.Close, snap.Volatility, snap.ATR,
		snap.MA20, snap.MA50, snap.MA100, snap.VolumeRatio, snap.TrendStrength)
}

func biasContext(bias *models.BiasLookup) string {
	if bias == nil || !bias.Found {
		return "No cached directional bias is available."
	}
	freshness := "fresh"
	if !bias.Fresh {
		freshness = "stale, discount it"
	}
	return fmt.Sprintf("Cached bias: %s (score %.2f, conviction %.2f, age %.0f minutes, %s). Reason: %s",
		bias.Snapshot.Direction, bias.Snapshot.Score, bias.Snapshot.Conviction,
		bias.AgeMinutes, freshness, bias.Snapshot.Reason)
}
