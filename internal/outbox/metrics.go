package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded per relay attempt.
const (
	outcomeProcessed   = "processed"
	outcomeRescheduled = "rescheduled"
	outcomeFailed      = "failed"
)

// Metrics holds the relay's prometheus instruments.
type Metrics struct {
	attempts     *prometheus.CounterVec
	applySeconds prometheus.Histogram
	pendingDepth prometheus.Gauge
}

// NewMetrics creates and registers the relay metrics.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outbox_relay_attempts_total",
				Help: "Relay delivery attempts by event type and outcome.",
			},
			[]string{"event_type", "outcome"},
		),
		applySeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "outbox_relay_apply_duration_seconds",
				Help:    "Time spent applying a single event to the external store.",
				Buckets: prometheus.DefBuckets,
			},
		),
		pendingDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "outbox_pending_events",
				Help: "Events waiting for delivery.",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.attempts, m.applySeconds, m.pendingDepth} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeAttempt(eventType, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(eventType, outcome).Inc()
	m.applySeconds.Observe(seconds)
}

func (m *Metrics) setPendingDepth(depth int) {
	if m == nil {
		return
	}
	m.pendingDepth.Set(float64(depth))
}
