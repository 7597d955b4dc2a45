package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingQuotesTotal counts breakdowns computed for sessions.
	PricingQuotesTotal prometheus.Counter
	// PricingMutationsTotal counts session mutations by operation and outcome.
	PricingMutationsTotal *prometheus.CounterVec
	// OrderSubmissionsTotal counts order submission outcomes.
	OrderSubmissionsTotal *prometheus.CounterVec
	// PricingDiscountAmount observes submitted discount amounts by discount type.
	PricingDiscountAmount *prometheus.HistogramVec
	// OrderEventsTotal counts order event publish outcomes.
	OrderEventsTotal *prometheus.CounterVec
	// SessionSubmitDuration observes end-to-end session submission latency.
	SessionSubmitDuration *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingQuotesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_quotes_total",
			Help:      "Number of price breakdowns computed.",
		})
		PricingMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_mutations_total",
			Help:      "Count of pricing session mutations by operation and result.",
		}, []string{"op", "result"})
		OrderSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_submissions_total",
			Help:      "Count of order submission outcomes.",
		}, []string{"result"})
		PricingDiscountAmount = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pricing_discount_amount",
			Help:      "Discount amount applied to submitted orders, in currency units.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}, []string{"type"})
		OrderEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_events_total",
			Help:      "Count of order event publish outcomes.",
		}, []string{"topic", "result"})
		SessionSubmitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_submit_duration_ms",
			Help:      "Latency of session submissions in milliseconds.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 5000, 30000},
		}, []string{"result"})

		PricingQuotesTotal = reuseCollector(reg, PricingQuotesTotal)
		PricingMutationsTotal = reuseCollector(reg, PricingMutationsTotal)
		OrderSubmissionsTotal = reuseCollector(reg, OrderSubmissionsTotal)
		PricingDiscountAmount = reuseCollector(reg, PricingDiscountAmount)
		OrderEventsTotal = reuseCollector(reg, OrderEventsTotal)
		SessionSubmitDuration = reuseCollector(reg, SessionSubmitDuration)
	})
}

// ObserveMutation records a session mutation outcome.
func ObserveMutation(op string, err error) {
	if PricingMutationsTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	PricingMutationsTotal.WithLabelValues(op, result).Inc()
}

// ObserveQuote records a computed breakdown.
func ObserveQuote() {
	if PricingQuotesTotal != nil {
		PricingQuotesTotal.Inc()
	}
}

// ObserveSubmit records how long a session submission took.
func ObserveSubmit(d time.Duration, err error) {
	if SessionSubmitDuration == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	SessionSubmitDuration.WithLabelValues(result).Observe(DurationMillis(d))
}
