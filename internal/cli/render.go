package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/caldway/tradehelm/consts"
	"github.com/caldway/tradehelm/internal/fetch"
	"github.com/caldway/tradehelm/internal/models"
	"github.com/caldway/tradehelm/internal/recorder"
)

var (
	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#3B82F6"))

	labelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))

	approveStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#10B981"))

	reviewStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#F59E0B"))

	rejectStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#EF4444"))

	failStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#EF4444"))

	panelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#374151")).
		Padding(0, 1).
		Width(76)
)

func decisionStyle(decision string) lipgloss.Style {
	switch decision {
	case models.DecisionApprove:
		return approveStyle
	case models.DecisionReview:
		return reviewStyle
	case models.DecisionReject:
		return rejectStyle
	default:
		return labelStyle
	}
}

// renderResult renders one run result as a bordered panel.
func renderResult(res *models.RunResult) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("%s  run %s", res.Symbol, res.RunID)))
	b.WriteString("\n")

	if res.Status == models.RunFailed {
		b.WriteString(failStyle.Render("FAILED") + "  " + res.FailReason + "\n")
	}

	if len(res.Stages) > 0 {
		names := make([]string, len(res.Stages))
		for i, stage := range res.Stages {
			names[i] = stage
			if display, ok := consts.StageNames[stage]; ok {
				names[i] = display
			}
		}
		b.WriteString(labelStyle.Render("stages    ") + strings.Join(names, " > ") + "\n")
	}
	if res.Signal != nil {
		b.WriteString(labelStyle.Render("signal    ") +
			fmt.Sprintf("%s (conviction %.2f)", res.Signal.Action, res.Signal.Conviction))
		if res.Signal.Entry != "" {
			b.WriteString("  entry " + res.Signal.Entry)
		}
		if res.Signal.Exit != "" {
			b.WriteString("  exit " + res.Signal.Exit)
		}
		b.WriteString("\n")
	}
	if res.Risk != nil {
		b.WriteString(labelStyle.Render("risk      ") +
			decisionStyle(res.Risk.Decision).Render(res.Risk.Decision) +
			"  " + res.Risk.Reason + "\n")
		if res.Risk.Decision == models.DecisionApprove {
			b.WriteString(labelStyle.Render("sizing    ") +
				fmt.Sprintf("position %.2f, risk budget %.2f", res.Risk.PositionSize, res.Risk.RiskAmount))
			if res.Risk.ConstraintHit {
				b.WriteString("  (capped)")
			}
			b.WriteString("\n")
		}
	}
	if res.LogStatus != "" {
		status := res.LogStatus
		if status == models.LogStatusError {
			status = failStyle.Render(status)
		}
		b.WriteString(labelStyle.Render("audit     ") + status + "\n")
	}

	b.WriteString(labelStyle.Render("summary   ") + res.Summary + "\n")
	b.WriteString(labelStyle.Render("next      ") + res.NextSteps)

	return panelStyle.Render(b.String())
}

func renderHealth(h *recorder.Health) string {
	var b strings.Builder

	status := h.Status
	if status == "ok" {
		status = approveStyle.Render(status)
	} else {
		status = reviewStyle.Render(status)
	}
	b.WriteString(headerStyle.Render("decision log health") + "\n")
	b.WriteString(labelStyle.Render("status    ") + status + "\n")
	b.WriteString(labelStyle.Render("decisions ") + fmt.Sprintf("%d total, %d failures", h.Total, h.Failures))
	if h.LastUpdate != "" {
		b.WriteString("\n" + labelStyle.Render("updated   ") + h.LastUpdate)
	}
	if h.LastDecision != nil {
		b.WriteString("\n" + labelStyle.Render("last      ") +
			fmt.Sprintf("%s %s at stage %s", h.LastDecision.Action, h.LastDecision.Symbol, h.LastDecision.Stage))
	}

	return panelStyle.Render(b.String())
}

func renderBias(lookup *models.BiasLookup) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(lookup.Symbol+" directional bias") + "\n")

	if !lookup.Found {
		b.WriteString(labelStyle.Render("no cached bias snapshot"))
		return panelStyle.Render(b.String())
	}

	snap := lookup.Snapshot
	freshness := approveStyle.Render("fresh")
	if !lookup.Fresh {
		freshness = reviewStyle.Render("stale")
	}
	b.WriteString(labelStyle.Render("direction ") +
		fmt.Sprintf("%s (score %.2f, conviction %.2f)", snap.Direction, snap.Score, snap.Conviction) + "\n")
	b.WriteString(labelStyle.Render("age       ") +
		fmt.Sprintf("%.0f minutes, %s", lookup.AgeMinutes, freshness) + "\n")
	if snap.Reason != "" {
		b.WriteString(labelStyle.Render("reason    ") + snap.Reason + "\n")
	}
	b.WriteString(labelStyle.Render("model     ") + snap.Model)
	if len(snap.Sources) > 0 {
		b.WriteString("  sources " + strings.Join(snap.Sources, ", "))
	}

	return panelStyle.Render(b.String())
}

func renderQuote(q *fetch.Quote) string {
	change := fmt.Sprintf("%+.2f (%+.2f%%)", q.Change, q.ChangePct)
	if q.Change >= 0 {
		change = approveStyle.Render(change)
	} else {
		change = rejectStyle.Render(change)
	}
	return fmt.Sprintf("%s %s %.2f %s  [%s]",
		headerStyle.Render(q.Symbol), labelStyle.Render(q.Exchange), q.Price, change, q.State)
}
