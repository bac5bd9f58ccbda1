package jfy

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts exchanges with an inverter.
type Metrics struct {
	Exchanges *prometheus.CounterVec   // labels: op, result
	Duration  *prometheus.HistogramVec // labels: op
}

// NewMetrics registers and returns the exchange metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jfy_exchange_total",
			Help: "Inverter request/response exchanges by operation and result.",
		}, []string{"op", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jfy_exchange_duration_seconds",
			Help:    "Time spent in one exchange, including write pacing.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 5},
		}, []string{"op"}),
	}
	reg.MustRegister(m.Exchanges, m.Duration)
	return m
}

func (m *Metrics) observe(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.Exchanges.WithLabelValues(op, resultLabel(err)).Inc()
	m.Duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrReadTimeout):
		return "timeout"
	case errors.Is(err, ErrBadPacket):
		return "bad_packet"
	}
	return "error"
}
