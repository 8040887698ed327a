package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCycle("success", 2*time.Second)
	m.ObserveCycle("success", time.Second)
	m.ObserveCycle("failed", time.Second)
	m.ProviderAttempt("coingecko", "failure")
	m.SetBreakerOpen("coingecko", true)
	m.FallbackApplied(3)
	m.FallbackApplied(0)
	m.RatesUpdated("FIAT", 6)

	tests := []struct {
		name      string
		collector prometheus.Collector
		expected  float64
	}{
		{"successful cycles", m.CyclesTotal.WithLabelValues("success"), 2},
		{"failed cycles", m.CyclesTotal.WithLabelValues("failed"), 1},
		{"provider failures", m.ProviderAttemptsTotal.WithLabelValues("coingecko", "failure"), 1},
		{"breaker open", m.CircuitBreakerOpen.WithLabelValues("coingecko"), 1},
		{"fallback applied", m.FallbackAppliedTotal, 3},
		{"fiat rates updated", m.RatesUpdatedTotal.WithLabelValues("FIAT"), 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.collector); got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.expected)
			}
		})
	}

	m.SetBreakerOpen("coingecko", false)
	if got := testutil.ToFloat64(m.CircuitBreakerOpen.WithLabelValues("coingecko")); got != 0 {
		t.Errorf("breaker gauge after close = %v, want 0", got)
	}
}

func TestMetrics_ObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("GET", "/api/v1/rates", 200, time.Millisecond)
	m.ObserveRequest("GET", "/api/v1/rates", 404, time.Millisecond)
	m.ObserveRequest("GET", "/api/v1/rates", 503, time.Millisecond)

	for _, class := range []string{"2xx", "4xx", "5xx"} {
		if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/rates", class)); got != 1 {
			t.Errorf("requests[%s] = %v, want 1", class, got)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCycle("success", time.Second)
	m.ProviderAttempt("p", "success")
	m.SetBreakerOpen("p", true)
	m.FallbackApplied(1)
	m.RatesUpdated("FIAT", 1)
	m.ObserveRequest("GET", "/", 200, time.Millisecond)
}
