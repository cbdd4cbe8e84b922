package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CreatedTotal.Inc()
	m.Reject(ReasonNoCopies)
	m.Reject(ReasonNoCopies)
	m.Observe("create", time.Now())

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CreatedTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.RejectedTotal.WithLabelValues(ReasonNoCopies)))

	families, err := reg.Gather()
	assert.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "reservation_created_total")
	assert.Contains(t, names, "reservation_op_latency_ms")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Reject(ReasonLimitReached)
		m.Observe("get", time.Now())
	})
}
