package resilience

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// BreakerState is 0 closed, 1 open, 2 half-open.
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
)

// MustRegisterMetrics registers the breaker collectors. Safe to call twice.
func MustRegisterMetrics(namespace string, reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "breaker_state",
		Help:      "Current breaker state: 0=closed, 1=open, 2=half-open.",
	}, []string{"target"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "breaker_transitions_total",
		Help:      "Breaker state transitions.",
	}, []string{"target", "from", "to"})

	BreakerState = register(reg, state).(*prometheus.GaugeVec)
	BreakerTransitions = register(reg, transitions).(*prometheus.CounterVec)
}

func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector
		}
		panic(err)
	}
	return c
}
