package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Rejection reasons
const (
	ReasonBookNotFound = "book_not_found"
	ReasonNoCopies     = "no_copies"
	ReasonLimitReached = "limit_reached"
	ReasonBadStatus    = "invalid_status"
	ReasonNotFound     = "reservation_not_found"
	ReasonTerminal     = "already_terminal"
)

// Metrics holds the service collectors
type Metrics struct {
	CreatedTotal  prometheus.Counter
	RejectedTotal *prometheus.CounterVec // reason
	CanceledTotal prometheus.Counter
	ExpiredTotal  prometheus.Counter
	SweepRuns     *prometheus.CounterVec   // result=success|fail
	OpLatencyMS   *prometheus.HistogramVec // op=create|get|list|cancel|sweep
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_created_total",
			Help: "Reservations successfully created",
		}),
		RejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservation_rejected_total",
				Help: "Reservation operations rejected by a business rule",
			},
			[]string{"reason"},
		),
		CanceledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_canceled_total",
			Help: "Reservations canceled",
		}),
		ExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_expired_total",
			Help: "Rows moved to EXPIRED by the sweeper",
		}),
		SweepRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservation_sweep_runs_total",
				Help: "Expiration sweeper runs by result",
			},
			[]string{"result"},
		),
		OpLatencyMS: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reservation_op_latency_ms",
				Help:    "Latency of reservation operations (ms)",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"op"},
		),
	}

	reg.MustRegister(
		m.CreatedTotal,
		m.RejectedTotal,
		m.CanceledTotal,
		m.ExpiredTotal,
		m.SweepRuns,
		m.OpLatencyMS,
	)

	return m
}

// Observe records the latency of op since start. Safe on a nil receiver.
func (m *Metrics) Observe(op string, start time.Time) {
	if m == nil {
		return
	}
	m.OpLatencyMS.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000)
}

// Reject counts a rule violation. Safe on a nil receiver.
func (m *Metrics) Reject(reason string) {
	if m == nil {
		return
	}
	m.RejectedTotal.WithLabelValues(reason).Inc()
}
