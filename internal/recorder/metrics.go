package recorder

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsMirror keeps the recorder's aggregates visible to scrapers.
// Each recorder owns its registry so tests can build recorders freely
// without colliding on the global one.
type metricsMirror struct {
	registry *prometheus.Registry
	total    prometheus.Counter
	failures prometheus.Counter
	lastTS   prometheus.Gauge
}

func newMetricsMirror() *metricsMirror {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &metricsMirror{
		registry: registry,
		total: factory.NewCounter(prometheus.CounterOpts{
			Name: "decisions_total",
			Help: "Total number of decision events recorded",
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "decisions_failures_total",
			Help: "Decision events that failed to persist or carried a non-APPROVE risk decision",
		}),
		lastTS: factory.NewGauge(prometheus.GaugeOpts{
			Name: "decisions_last_timestamp_seconds",
			Help: "Unix timestamp of the most recent decision event",
		}),
	}
}

func (m *metricsMirror) observe(failed bool, ts time.Time) {
	m.total.Inc()
	if failed {
		m.failures.Inc()
	}
	m.lastTS.Set(float64(ts.Unix()))
}

// MetricsHandler serves this recorder's counters in the Prometheus
// exposition format.
func (r *Recorder) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(r.metrics.registry, promhttp.HandlerOpts{})
}
