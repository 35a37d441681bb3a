package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CourierMetrics records courier API calls and fulfillment outcomes.
type CourierMetrics struct {
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
	reauths  prometheus.Counter
	groups   *prometheus.CounterVec
}

// NewCourierMetrics registers the courier metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCourierMetrics(reg prometheus.Registerer) *CourierMetrics {
	if reg == nil {
		return &CourierMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courier_call_duration_seconds",
		Help:    "Duration of courier API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_call_failures_total",
		Help: "Courier API calls that returned an error.",
	}, []string{"operation", "code"})
	reauths := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "courier_reauthentications_total",
		Help: "Courier session refreshes triggered by a rejected token.",
	})
	groups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_groups_total",
		Help: "Branch groups processed by fulfillment, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, failures, reauths, groups)
	return &CourierMetrics{
		duration: duration,
		failures: failures,
		reauths:  reauths,
		groups:   groups,
	}
}

// ObserveCall records the duration of a courier call.
func (c *CourierMetrics) ObserveCall(operation string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncFailure counts a failed courier call.
func (c *CourierMetrics) IncFailure(operation, code string) {
	if c == nil || c.failures == nil {
		return
	}
	c.failures.WithLabelValues(normalizeLabel(operation), normalizeLabel(code)).Inc()
}

// IncReauth counts a session refresh after a 401.
func (c *CourierMetrics) IncReauth() {
	if c == nil || c.reauths == nil {
		return
	}
	c.reauths.Inc()
}

// IncGroup counts a fulfillment branch group by outcome: ready, created,
// failed, skipped or cancelled.
func (c *CourierMetrics) IncGroup(outcome string) {
	if c == nil || c.groups == nil {
		return
	}
	c.groups.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
