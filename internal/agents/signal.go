package agents

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/caldway/tradehelm/consts"
	"github.com/caldway/tradehelm/internal/models"
)

// NewSignalNode builds the signal stage subgraph. It consumes the
// research narrative plus the measured context and emits a directional
// signal with an entry/exit plan.
func NewSignalNode(ctx context.Context, deps *Deps) (*compose.Graph[string, string], error) {
	g := compose.NewGraph[string, string]()

	agentLambda, err := deps.reasonerLambda(ctx, consts.Signal)
	if err != nil {
		return nil, err
	}

	_ = g.AddLambdaNode("load", compose.InvokableLambdaWithOption(deps.loadSignalMessages))
	_ = g.AddLambdaNode("agent", agentLambda)
	_ = g.AddLambdaNode("router", compose.InvokableLambdaWithOption(deps.signalRouter))

	_ = g.AddEdge(compose.START, "load")
	_ = g.AddEdge("load", "agent")
	_ = g.AddEdge("agent", "router")
	_ = g.AddEdge("router", compose.END)

	return g, nil
}

func (d *Deps) loadSignalMessages(ctx context.Context, input string, opts ...any) (output []*schema.Message, err error) {
	err = compose.ProcessState[*models.RunState](ctx, func(_ context.Context, state *models.RunState) error {
		systemPrompt := `You are the desk's signal trader. Turn the analyst's market-regime
narrative into one actionable decision.

Your responsibilities:
1. Decide a direction: BUY, SELL, or HOLD
2. Assign a conviction score between 0 and 1
3. Propose an entry zone and an exit plan anchored to the measured ATR

You may call get_market_snapshot or get_bias_snapshot if you need to
re-check the numbers. Finish your reply with exactly one fenced JSON
block of the form:

` + "```json" + `
{"action": "BUY", "conviction": 0.7, "entry": "near 101.20", "exit": "stop 98.40, target 106.10", "rationale": "one sentence"}
` + "```" + `

Current context:
- Symbol: ` + state.Symbol

		userMsg := "Analyst market-regime narrative:\n" + state.MarketReport +
			"\n\n" + marketContext(state.Snapshot) + "\n" + biasContext(state.Bias)

		output = []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(userMsg),
		}
		return nil
	})
	return output, err
}

func (d *Deps) signalRouter(ctx context.Context, input *schema.Message, opts ...any) (output string, err error) {
	err = compose.ProcessState[*models.RunState](ctx, func(_ context.Context, state *models.RunState) error {
		defer func() {
			output = state.Goto
		}()

		var content string
		if input != nil {
			content = input.Content
			state.Messages = append(state.Messages, input)
		}

		sig := ExtractSignal(content, state.Symbol)
		if sig.Rationale == "" {
			sig.Rationale = fmt.Sprintf("derived from market-regime read on %s", state.Symbol)
		}
		state.Signal = sig

		state.MarkStage(consts.Signal)
		state.Goto = consts.Risk
		return nil
	})
	return output, err
}
