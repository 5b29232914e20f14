package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the Prometheus collectors for payment processing.
type Metrics struct {
	// CallbackTotal counts processed gateway callbacks by provider and
	// result (received, unresolved, rejected_info, rejected_error,
	// duplicate).
	CallbackTotal *prometheus.CounterVec
	// CallbackDuration tracks callback handling latency per provider.
	CallbackDuration *prometheus.HistogramVec
	// RedirectTotal counts outbound checkout redirects by provider and
	// result (success, error).
	RedirectTotal *prometheus.CounterVec
}

// NewMetrics registers and returns the payment metrics collectors.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		CallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Total number of gateway callbacks processed.",
		}, []string{"provider", "result"}),
		CallbackDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "callback_duration_ms",
			Help:      "Gateway callback handling latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"provider"}),
		RedirectTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Total number of checkout redirects built.",
		}, []string{"provider", "result"}),
	}
	m.CallbackTotal = registerCounter(reg, m.CallbackTotal)
	m.CallbackDuration = registerHistogram(reg, m.CallbackDuration)
	m.RedirectTotal = registerCounter(reg, m.RedirectTotal)
	return m
}

// DurationMillis converts a duration to milliseconds for observation.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func registerHistogram(reg prometheus.Registerer, h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return h
}
