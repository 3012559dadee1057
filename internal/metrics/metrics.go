// Package metrics mirrors the Tool Bus's ring-buffer telemetry into
// Prometheus gauges/counters via prometheus/client_golang. The ring buffer
// (toolbus.GetToolStats) stays the source of truth for `msgcode probe`/CLI
// output; this is a second, independent sink aimed at an operator's scrape
// target instead of a CLI call.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements toolbus.MetricsRecorder against its own registry, so
// a daemon with MSGCODE_METRICS_ADDR unset can simply never construct
// one and pay no cost.
type Collector struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New builds a Collector with its own registry (not the global default, so
// tests and multiple daemons in one process don't collide on registration).
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		calls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "msgcode_tool_calls_total",
			Help: "Total tool bus calls, labeled by tool/source/outcome.",
		}, []string{"tool", "source", "success"}),
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "msgcode_tool_duration_seconds",
			Help:    "Tool bus call duration in seconds, labeled by tool.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	return c
}

// ObserveToolCall implements toolbus.MetricsRecorder.
func (c *Collector) ObserveToolCall(tool, source string, success bool, durationMs int64) {
	successLabel := "true"
	if !success {
		successLabel = "false"
	}
	c.calls.WithLabelValues(tool, source, successLabel).Inc()
	c.duration.WithLabelValues(tool).Observe(float64(durationMs) / 1000.0)
}

// Handler returns the /metrics HTTP handler for this Collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
