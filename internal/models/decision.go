package models

import "time"

// Directional actions a signal may carry.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// Risk decisions, in descending order of permissiveness. A REJECT is
// never upgraded by any later stage.
const (
	DecisionApprove = "APPROVE"
	DecisionReview  = "REVIEW"
	DecisionReject  = "REJECT"
)

// Signal is the structured output of the signal stage: a directional
// action with a conviction score and an entry/exit plan.
type Signal struct {
	Symbol     string  `json:"symbol"`
	Action     string  `json:"action"`
	Conviction float64 `json:"conviction"`
	Entry      string  `json:"entry,omitempty"`
	Exit       string  `json:"exit,omitempty"`
	Rationale  string  `json:"rationale,omitempty"`
}

// RiskDecision is the risk budget tool's verdict on a proposed trade.
// Recomputed per request, never cached.
type RiskDecision struct {
	Symbol        string  `json:"symbol"`
	Decision      string  `json:"decision"`
	Reason        string  `json:"reason"`
	PositionSize  float64 `json:"position_size"`
	RiskAmount    float64 `json:"risk_amount"`
	Confidence    float64 `json:"confidence"`
	Volatility    float64 `json:"volatility"`
	ConstraintHit bool    `json:"constraint_hit"`
}

// DecisionEvent is one audit record. Once written it is immutable;
// corrections are expressed as new events.
type DecisionEvent struct {
	Timestamp  time.Time              `json:"timestamp"`
	RunID      string                 `json:"run_id"`
	Stage      string                 `json:"stage"`
	Symbol     string                 `json:"symbol"`
	Action     string                 `json:"action"`
	Confidence float64                `json:"confidence"`
	Notes      string                 `json:"notes,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Log write statuses.
const (
	LogStatusLogged = "logged"
	LogStatusError  = "error"
)

// LogResult reports the outcome of one audit-log append.
type LogResult struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Run terminal statuses.
const (
	RunDone   = "done"
	RunFailed = "failed"
)

// RunResult is the pipeline's final structured output: enough detail
// to see which stages ran and why a trade was or wasn't executed,
// without reading raw logs.
type RunResult struct {
	RunID        string        `json:"run_id"`
	Symbol       string        `json:"symbol"`
	Status       string        `json:"status"`
	FailReason   string        `json:"fail_reason,omitempty"`
	Stages       []string      `json:"stages"`
	MarketReport string        `json:"market_report,omitempty"`
	Signal       *Signal       `json:"signal,omitempty"`
	Risk         *RiskDecision `json:"risk,omitempty"`
	LogStatus    string        `json:"log_status,omitempty"`
	Summary      string        `json:"summary"`
	NextSteps    string        `json:"next_steps"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
}
