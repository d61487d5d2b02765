package tools

import (
	"context"
	"math"
	"strings"
	"sync/atomic"

	"github.com/caldway/tradehelm/internal/models"
)

const (
	defaultMaxRiskBps = 50.0

	// Volatility floor keeps the position-size division bounded.
	volatilityFloor  = 0.01
	positionCapRatio = 0.10

	rejectVolatility    = 0.8
	reviewConfidence    = 0.35
	sellConfidenceFloor = 0.5
	sellVolatilityBar   = 0.4
)

// RiskInput carries a proposed trade into the risk gate.
type RiskInput struct {
	Symbol         string  `json:"symbol"`
	Action         string  `json:"action"`
	Confidence     float64 `json:"confidence"`
	Volatility     float64 `json:"volatility"`
	PortfolioValue float64 `json:"portfolio_value"`
	MaxRiskBps     float64 `json:"max_risk_bps"`
}

// RiskTool sizes positions against a volatility-adjusted risk budget
// and gates trades. Evaluate is a pure function of its inputs; the
// tool holds no state beyond the configured portfolio fallback.
type RiskTool struct {
	defaultPortfolio float64
	calls            atomic.Int64
}

func NewRiskTool(defaultPortfolio float64) *RiskTool {
	return &RiskTool{defaultPortfolio: defaultPortfolio}
}

// Calls reports how many evaluations this tool has served.
func (t *RiskTool) Calls() int64 { return t.calls.Load() }

// Evaluate computes a position size from the risk budget and applies
// the decision rules. Identical inputs always produce identical
// output. All triggered rules contribute to the reason; a REJECT is
// never softened by a later rule.
func (t *RiskTool) Evaluate(ctx context.Context, input *RiskInput) (*models.RiskDecision, error) {
	t.calls.Add(1)

	confidence := clamp01(input.Confidence)

	portfolio := input.PortfolioValue
	if portfolio <= 0 {
		portfolio = t.defaultPortfolio
	}
	bps := input.MaxRiskBps
	if bps <= 0 {
		bps = defaultMaxRiskBps
	}

	riskBudget := portfolio * bps / 10000
	effectiveVol := math.Max(input.Volatility, volatilityFloor)
	size := riskBudget / (effectiveVol * 10)

	maxSize := portfolio * positionCapRatio
	constraintHit := false
	if size > maxSize {
		size = maxSize
		constraintHit = true
	}

	decision := models.DecisionApprove
	var reasons []string

	if effectiveVol > rejectVolatility {
		decision = models.DecisionReject
		reasons = append(reasons, "volatility too high")
	}
	if confidence < reviewConfidence {
		if decision != models.DecisionReject {
			decision = models.DecisionReview
		}
		reasons = append(reasons, "confidence weak")
	}
	if strings.EqualFold(input.Action, models.ActionSell) &&
		confidence >= sellConfidenceFloor && input.Volatility > sellVolatilityBar {
		reasons = append(reasons, "elevated downside risk")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "within configured thresholds")
	}

	return &models.RiskDecision{
		Symbol:        strings.ToUpper(strings.TrimSpace(input.Symbol)),
		Decision:      decision,
		Reason:        strings.Join(reasons, "; "),
		PositionSize:  size,
		RiskAmount:    riskBudget,
		Confidence:    confidence,
		Volatility:    input.Volatility,
		ConstraintHit: constraintHit,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
