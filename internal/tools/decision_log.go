package tools

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/caldway/tradehelm/internal/models"
	"github.com/caldway/tradehelm/pkg/logger"
)

// DecisionSink accepts audit events. Record must be safe for
// concurrent use; it stamps the event, persists it, and reports the
// outcome without ever panicking.
type DecisionSink interface {
	Record(event models.DecisionEvent) models.LogResult
}

// LogInput carries one audit record into the sink.
type LogInput struct {
	RunID      string                 `json:"run_id"`
	Stage      string                 `json:"stage"`
	Symbol     string                 `json:"symbol"`
	Action     string                 `json:"action"`
	Confidence float64                `json:"confidence"`
	Notes      string                 `json:"notes"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// LogTool forwards decision events to the shared recorder. A failed
// write comes back as a status, never as an error, so a logging
// problem cannot abort the trade that produced it.
type LogTool struct {
	sink  DecisionSink
	log   *logger.Logger
	calls atomic.Int64
}

func NewLogTool(sink DecisionSink, log *logger.Logger) *LogTool {
	return &LogTool{sink: sink, log: log}
}

// Calls reports how many events this tool has forwarded.
func (t *LogTool) Calls() int64 { return t.calls.Load() }

// Log appends one decision event and returns the recorder's verdict.
func (t *LogTool) Log(ctx context.Context, input *LogInput) (*models.LogResult, error) {
	t.calls.Add(1)

	event := models.DecisionEvent{
		RunID:      input.RunID,
		Stage:      input.Stage,
		Symbol:     strings.ToUpper(strings.TrimSpace(input.Symbol)),
		Action:     input.Action,
		Confidence: input.Confidence,
		Notes:      input.Notes,
		Metadata:   input.Metadata,
	}

	result := t.sink.Record(event)
	if result.Status == models.LogStatusError {
		t.log.Warn("decision log write failed",
			logger.String("symbol", event.Symbol),
			logger.String("error", result.Error))
	}
	return &result, nil
}
