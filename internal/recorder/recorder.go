package recorder

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caldway/tradehelm/internal/models"
	"github.com/caldway/tradehelm/pkg/logger"
)

// Recorder is the process-wide decision audit log: an append-only
// JSONL store plus in-memory aggregates. It is constructed once at
// boot and shared by every concurrent pipeline run. All writes go
// through one exclusive lock; health and metrics reads take the
// shared side.
type Recorder struct {
	path    string
	log     *logger.Logger
	metrics *metricsMirror
	now     func() time.Time

	mu        sync.RWMutex
	total     int64
	failures  int64
	lastEvent *models.DecisionEvent
	lastWrite time.Time
}

func New(path string, log *logger.Logger) *Recorder {
	return &Recorder{
		path:    path,
		log:     log,
		metrics: newMetricsMirror(),
		now:     time.Now,
	}
}

// Record appends one event and updates the aggregates. A write
// failure is reported in the result status, never as a panic or a
// crash: a broken audit log must not stop a trading decision from
// completing. An event whose metadata carries a non-APPROVE risk
// decision counts toward the failure aggregate even when the write
// itself succeeds.
func (r *Recorder) Record(event models.DecisionEvent) models.LogResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now().UTC()
	event.Timestamp = ts

	writeErr := r.append(event)

	failed := writeErr != nil || nonApprove(event.Metadata)
	r.total++
	if failed {
		r.failures++
	}
	r.lastEvent = &event
	r.lastWrite = ts

	r.metrics.observe(failed, ts)

	result := models.LogResult{Status: models.LogStatusLogged, Timestamp: ts}
	if writeErr != nil {
		result.Status = models.LogStatusError
		result.Error = writeErr.Error()
		r.log.Warn("audit append failed", logger.String("path", r.path), logger.Err(writeErr))
	}
	return result
}

// append opens the store fresh for each write so a rotated or
// repaired file is picked up without restarting the process.
func (r *Recorder) append(event models.DecisionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(data, '\n'))
	return err
}

// nonApprove reports whether event metadata carries a risk decision
// other than APPROVE. Absent metadata is not a failure.
func nonApprove(metadata map[string]interface{}) bool {
	if metadata == nil {
		return false
	}
	decision, ok := metadata["risk_decision"].(string)
	return ok && decision != models.DecisionApprove
}

// Health is the snapshot served on the health endpoint.
type Health struct {
	Status       string                `json:"status"`
	Total        int64                 `json:"total"`
	Failures     int64                 `json:"failures"`
	LastUpdate   string                `json:"last_update,omitempty"`
	LastDecision *models.DecisionEvent `json:"last_decision,omitempty"`
}

// Health reports the aggregates. Status is "cold" until the first
// event is recorded.
func (r *Recorder) Health() Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h := Health{
		Status:       "ok",
		Total:        r.total,
		Failures:     r.failures,
		LastDecision: r.lastEvent,
	}
	if r.total == 0 {
		h.Status = "cold"
	}
	if !r.lastWrite.IsZero() {
		h.LastUpdate = r.lastWrite.Format(time.RFC3339)
	}
	return h
}

// EnsureStore creates the store's parent directory. Called at boot so
// a misconfigured path fails fast instead of on the first trade.
func (r *Recorder) EnsureStore() error {
	return os.MkdirAll(filepath.Dir(r.path), 0o755)
}

// Close waits for any in-flight write to finish. The store handle is
// per-write, so there is nothing else to release.
func (r *Recorder) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
