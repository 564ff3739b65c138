// Package metrics exposes Prometheus collectors for the timesheet engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operations counts service operations by name and outcome (ok, rejected, error).
var Operations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tcn",
	Subsystem: "timesheet",
	Name:      "operations_total",
	Help:      "Timesheet operations by operation and outcome.",
}, []string{"operation", "outcome"})

// OperationLatency tracks how long each service operation takes.
var OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "tcn",
	Subsystem: "timesheet",
	Name:      "operation_duration_seconds",
	Help:      "Latency of timesheet operations.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10},
}, []string{"operation"})

// Transitions counts lifecycle status changes.
var Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tcn",
	Subsystem: "timesheet",
	Name:      "transitions_total",
	Help:      "Timesheet status transitions.",
}, []string{"from", "to"})

// PublishFailures counts lifecycle events that could not be published.
var PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tcn",
	Subsystem: "events",
	Name:      "publish_failures_total",
	Help:      "Lifecycle events that failed to publish.",
}, []string{"kind"})

// RateLimited counts requests refused by the daemon's rate limiter.
var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tcn",
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Requests rejected by the rate limiter.",
})

// Recorder feeds the package collectors from the timesheet service.
type Recorder struct{}

var _ timesheet.Recorder = Recorder{}

// ObserveOperation implements timesheet.Recorder.
func (Recorder) ObserveOperation(op, outcome string, d time.Duration) {
	Operations.WithLabelValues(op, outcome).Inc()
	OperationLatency.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveTransition implements timesheet.Recorder.
func (Recorder) ObserveTransition(from, to timesheet.Status) {
	Transitions.WithLabelValues(string(from), string(to)).Inc()
}

// ObservePublishFailure implements timesheet.Recorder.
func (Recorder) ObservePublishFailure(kind timesheet.EventKind) {
	PublishFailures.WithLabelValues(string(kind)).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
