package outbox

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	assert.NoError(t, err)

	m.observeAttempt("document.upserted", outcomeProcessed, 0.01)
	m.observeAttempt("document.upserted", outcomeProcessed, 0.02)
	m.observeAttempt("document.upserted", outcomeRescheduled, 0.5)
	m.setPendingDepth(7)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.attempts.WithLabelValues("document.upserted", outcomeProcessed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.attempts.WithLabelValues("document.upserted", outcomeRescheduled)))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.pendingDepth))

	t.Run("double registration fails", func(t *testing.T) {
		_, err := NewMetrics(reg)
		assert.Error(t, err)
	})

	t.Run("nil metrics are a no-op", func(t *testing.T) {
		var nilMetrics *Metrics
		nilMetrics.observeAttempt("x", outcomeFailed, 0)
		nilMetrics.setPendingDepth(1)
	})
}
