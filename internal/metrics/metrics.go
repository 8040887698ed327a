package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rate_ingestion"

// Metrics holds the engine collectors. A nil *Metrics records nothing.
type Metrics struct {
	CyclesTotal           *prometheus.CounterVec
	CycleDuration         prometheus.Histogram
	ProviderAttemptsTotal *prometheus.CounterVec
	CircuitBreakerOpen    *prometheus.GaugeVec
	FallbackAppliedTotal  prometheus.Counter
	RatesUpdatedTotal     *prometheus.CounterVec
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Refresh cycles by outcome",
			},
			[]string{"status"},
		),
		CycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of refresh cycles",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		ProviderAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_attempts_total",
				Help:      "Provider attempts by outcome (success, failure, skipped)",
			},
			[]string{"provider", "outcome"},
		),
		CircuitBreakerOpen: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_open",
				Help:      "1 when the provider's circuit breaker is open",
			},
			[]string{"provider"},
		),
		FallbackAppliedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_entries_applied_total",
				Help:      "Fallback cache entries written to the rate store",
			},
		),
		RatesUpdatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rates_updated_total",
				Help:      "Live rates written to the rate store",
			},
			[]string{"category"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (m *Metrics) ObserveCycle(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(status).Inc()
	m.CycleDuration.Observe(duration.Seconds())
}

func (m *Metrics) ProviderAttempt(provider, outcome string) {
	if m == nil {
		return
	}
	m.ProviderAttemptsTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) SetBreakerOpen(provider string, open bool) {
	if m == nil {
		return
	}
	value := 0.0
	if open {
		value = 1
	}
	m.CircuitBreakerOpen.WithLabelValues(provider).Set(value)
}

func (m *Metrics) FallbackApplied(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.FallbackAppliedTotal.Add(float64(count))
}

func (m *Metrics) RatesUpdated(category string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.RatesUpdatedTotal.WithLabelValues(category).Add(float64(count))
}

func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
