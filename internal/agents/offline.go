package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/caldway/tradehelm/internal/models"
)

// The offline reasoners stand in for the chat model when no provider
// is configured. They derive their conclusions from the same state the
// model-backed stages would see, so the surrounding pipeline behaves
// identically in both modes.

func (d *Deps) offlineResearch(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
	var report string
	err := compose.ProcessState[*models.RunState](ctx, func(_ context.Context, state *models.RunState) error {
		report = researchNarrative(state.Snapshot, state.Bias)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(report, nil), nil
}

func (d *Deps) offlineSignal(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
	var content string
	err := compose.ProcessState[*models.RunState](ctx, func(_ context.Context, state *models.RunState) error {
		sig := deterministicSignal(state)
		data, merr := json.Marshal(sig)
		if merr != nil {
			return merr
		}
		content = "```json\n" + string(data) + "\n```"
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(content, nil), nil
}

// researchNarrative classifies the market regime from the snapshot
// and folds in the cached bias verdict.
func researchNarrative(snap *models.MarketSnapshot, bias *models.BiasLookup) string {
	if !snap.HasData() {
		return fmt.Sprintf("No price history is available for %s, so the regime cannot be measured. Any position should be deferred until data arrives.", symbolOf(snap))
	}

	var parts []string

	trend := "range-bound"
	if snap.TrendStrength > 0.02 {
		trend = "trending higher"
	} else if snap.TrendStrength < -0.02 {
		trend = "trending lower"
	}
	parts = append(parts, fmt.Sprintf("%s is %s with MA20 at %.2f against MA100 at %.2f.",
		snap.Symbol, trend, snap.MA20, snap.MA100))

	vol := "subdued"
	if snap.Volatility > 0.6 {
		vol = "very high"
	} else if snap.Volatility > 0.3 {
		vol = "elevated"
	}
	parts = append(parts, fmt.Sprintf("Annualized volatility is %s at %.3f with an ATR of %.2f.",
		vol, snap.Volatility, snap.ATR))

	if snap.VolumeRatio > 1.5 {
		parts = append(parts, fmt.Sprintf("Turnover is heavy at %.2fx the trailing average.", snap.VolumeRatio))
	} else if snap.VolumeRatio < 0.7 {
		parts = append(parts, fmt.Sprintf("Participation is thin at %.2fx the trailing average.", snap.VolumeRatio))
	}

	switch {
	case bias != nil && bias.Found && bias.Fresh:
		parts = append(parts, fmt.Sprintf("The desk bias is %s (score %.2f) and fresh enough to lean on.",
			bias.Snapshot.Direction, bias.Snapshot.Score))
	case bias != nil && bias.Found:
		parts = append(parts, "A cached desk bias exists but is stale and should be discounted.")
	default:
		parts = append(parts, "No desk bias is on file for this symbol.")
	}

	return strings.Join(parts, " ")
}

// deterministicSignal maps the measured trend, tilted by any fresh
// bias, onto a direction and conviction.
func deterministicSignal(state *models.RunState) *models.Signal {
	snap := state.Snapshot
	if !snap.HasData() {
		return &models.Signal{
			Symbol:     state.Symbol,
			Action:     models.ActionHold,
			Conviction: 0.2,
			Rationale:  "no market data available to ground a direction",
		}
	}

	score := clampRange(snap.TrendStrength*10, -1, 1)
	if state.Bias != nil && state.Bias.Found && state.Bias.Fresh {
		score = 0.7*score + 0.3*clampRange(state.Bias.Snapshot.Score, -1, 1)
	}

	action := models.ActionHold
	switch {
	case score > 0.15:
		action = models.ActionBuy
	case score < -0.15:
		action = models.ActionSell
	}

	conviction := clampRange(0.4+0.5*math.Abs(score), 0, 1)

	sig := &models.Signal{
		Symbol:     state.Symbol,
		Action:     action,
		Conviction: conviction,
		Rationale: fmt.Sprintf("trend strength %.4f and volatility %.3f yield a %s stance",
			snap.TrendStrength, snap.Volatility, strings.ToLower(action)),
	}

	switch action {
	case models.ActionBuy:
		sig.Entry = fmt.Sprintf("near %.2f", snap.Close)
		sig.Exit = fmt.Sprintf("stop %.2f, target %.2f", snap.Close-1.5*snap.ATR, snap.Close+2.5*snap.ATR)
	case models.ActionSell:
		sig.Entry = fmt.Sprintf("near %.2f", snap.Close)
		sig.Exit = fmt.Sprintf("stop %.2f, target %.2f", snap.Close+1.5*snap.ATR, snap.Close-2.5*snap.ATR)
	}
	return sig
}

func symbolOf(snap *models.MarketSnapshot) string {
	if snap == nil {
		return "the symbol"
	}
	return snap.Symbol
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
