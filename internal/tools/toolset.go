package tools

import (
	"github.com/cloudwego/eino/components/tool"

	"github.com/caldway/tradehelm/internal/config"
	"github.com/caldway/tradehelm/pkg/logger"
)

// Toolset bundles the four tools one pipeline run works with. Market,
// Bias and Risk are private to the run so their call counters reflect
// that run alone; Log wraps the process-wide recorder.
type Toolset struct {
	Market *MarketTool
	Bias   *BiasTool
	Risk   *RiskTool
	Log    *LogTool
}

func NewToolset(cfg *config.Config, sink DecisionSink, log *logger.Logger) *Toolset {
	return &Toolset{
		Market: NewMarketTool(cfg.PriceDataDir(), cfg.Window, log),
		Bias:   NewBiasTool(cfg.BiasCachePath, log),
		Risk:   NewRiskTool(cfg.DefaultPortfolioValue),
		Log:    NewLogTool(sink, log),
	}
}

// AgentTools returns the bindings handed to the reasoning agents.
// Risk and Log stay out: the coordinator invokes them itself so the
// risk gate runs exactly once and every run is audited exactly once.
func (ts *Toolset) AgentTools() []tool.BaseTool {
	return []tool.BaseTool{
		ts.Market.Tool(),
		ts.Bias.Tool(),
	}
}

// CallCounts snapshots per-tool invocation counters.
type CallCounts struct {
	Market int64 `json:"market"`
	Bias   int64 `json:"bias"`
	Risk   int64 `json:"risk"`
	Log    int64 `json:"log"`
}

func (ts *Toolset) Counts() CallCounts {
	return CallCounts{
		Market: ts.Market.Calls(),
		Bias:   ts.Bias.Calls(),
		Risk:   ts.Risk.Calls(),
		Log:    ts.Log.Calls(),
	}
}
