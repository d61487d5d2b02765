package models

import (
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// RunState is the per-run local state threaded through the pipeline
// graph. Each stage reads what earlier stages wrote and appends its
// own output; the Goto field drives branch routing.
type RunState struct {
	RunID  string `json:"run_id"`
	Symbol string `json:"symbol"`
	Window int    `json:"window"`

	Messages []*schema.Message `json:"messages"`

	MarketReport string          `json:"market_report"`
	Snapshot     *MarketSnapshot `json:"snapshot"`
	Bias         *BiasLookup     `json:"bias"`
	Signal       *Signal         `json:"signal"`
	Risk         *RiskDecision   `json:"risk"`

	ExecutionNote string     `json:"execution_note"`
	LogStatus     string     `json:"log_status"`
	LogResult     *LogResult `json:"log_result,omitempty"`

	Stages     []string  `json:"stages"`
	Status     string    `json:"status"`
	FailReason string    `json:"fail_reason,omitempty"`
	Goto       string    `json:"goto"`
	StartedAt  time.Time `json:"started_at"`
}

// NewRunState seeds the state for one pipeline run. The run ID ties
// every audit record back to this invocation.
func NewRunState(symbol string, window int) *RunState {
	return &RunState{
		RunID:     uuid.NewString(),
		Symbol:    symbol,
		Window:    window,
		Messages:  make([]*schema.Message, 0, 8),
		Stages:    make([]string, 0, 5),
		Status:    "running",
		StartedAt: time.Now(),
	}
}

// MarkStage records that a stage ran, in order, exactly once.
func (s *RunState) MarkStage(stage string) {
	for _, seen := range s.Stages {
		if seen == stage {
			return
		}
	}
	s.Stages = append(s.Stages, stage)
}
