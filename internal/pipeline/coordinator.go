package pipeline

import (
	"context"

	"github.com/cloudwego/eino/compose"

	"github.com/caldway/tradehelm/consts"
	"github.com/caldway/tradehelm/internal/agents"
	"github.com/caldway/tradehelm/internal/models"
)

// stageHandOff routes between stages by reading the Goto the
// finishing stage left in state.
func stageHandOff(ctx context.Context, input string) (next string, err error) {
	_ = compose.ProcessState[*models.RunState](ctx, func(_ context.Context, state *models.RunState) error {
		next = state.Goto
		return nil
	})
	return next, nil
}

// newCoordinator assembles the run graph:
//
//	START -> research -> signal -> risk -> execution -> finalize -> END
//	                                   \______________/^
//
// Risk branches straight to finalize when the trade is not approved,
// so execution is structurally unreachable for a REVIEW or REJECT.
func newCoordinator(ctx context.Context, deps *agents.Deps, genState func(ctx context.Context) *models.RunState) (compose.Runnable[string, *models.RunState], error) {
	g := compose.NewGraph[string, *models.RunState](
		compose.WithGenLocalState(genState),
	)

	outMap := map[string]bool{
		consts.Signal:    true,
		consts.Risk:      true,
		consts.Execution: true,
		consts.Finalize:  true,
	}

	researchGraph, err := agents.NewResearchNode(ctx, deps)
	if err != nil {
		return nil, err
	}
	signalGraph, err := agents.NewSignalNode(ctx, deps)
	if err != nil {
		return nil, err
	}

	st := &stages{deps: deps}

	_ = g.AddGraphNode(consts.Research, researchGraph, compose.WithNodeName(consts.Research))
	_ = g.AddGraphNode(consts.Signal, signalGraph, compose.WithNodeName(consts.Signal))
	_ = g.AddLambdaNode(consts.Risk, compose.InvokableLambdaWithOption(st.risk), compose.WithNodeName(consts.Risk))
	_ = g.AddLambdaNode(consts.Execution, compose.InvokableLambdaWithOption(st.execution), compose.WithNodeName(consts.Execution))
	_ = g.AddLambdaNode(consts.Finalize, compose.InvokableLambdaWithOption(st.finalize), compose.WithNodeName(consts.Finalize))

	_ = g.AddBranch(consts.Research, compose.NewGraphBranch(stageHandOff, outMap))
	_ = g.AddBranch(consts.Signal, compose.NewGraphBranch(stageHandOff, outMap))
	_ = g.AddBranch(consts.Risk, compose.NewGraphBranch(stageHandOff, outMap))

	_ = g.AddEdge(compose.START, consts.Research)
	_ = g.AddEdge(consts.Execution, consts.Finalize)
	_ = g.AddEdge(consts.Finalize, compose.END)

	return g.Compile(ctx,
		compose.WithGraphName("tradehelm-pipeline"),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
	)
}
