package rpc

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	directionInbound  = "inbound"
	directionOutbound = "outbound"

	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeCanceled = "canceled"
)

// Metrics counts and times calls crossing the protocol.
type Metrics struct {
	side     string
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the call collectors on reg. When both sides of an
// in-process bridge share a registry the existing collectors are reused and
// the side label keeps them apart.
func NewMetrics(reg prometheus.Registerer, side Side) *Metrics {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exthost",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Calls crossing the extension host protocol.",
	}, []string{"side", "direction", "identifier", "method", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "exthost",
		Subsystem: "rpc",
		Name:      "call_duration_seconds",
		Help:      "Time spent serving or awaiting protocol calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"side", "direction", "identifier", "method"})

	return &Metrics{
		side:     side.String(),
		calls:    register(reg, calls).(*prometheus.CounterVec),
		duration: register(reg, duration).(*prometheus.HistogramVec),
	}
}

func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

func (m *Metrics) observe(direction, identifier, method string, err error, elapsed time.Duration) {
	outcome := outcomeOK
	switch {
	case err == nil:
	case errors.Is(err, ErrCanceled):
		outcome = outcomeCanceled
	default:
		outcome = outcomeError
	}
	m.calls.WithLabelValues(m.side, direction, identifier, method, outcome).Inc()
	if elapsed > 0 {
		m.duration.WithLabelValues(m.side, direction, identifier, method).Observe(elapsed.Seconds())
	}
}
