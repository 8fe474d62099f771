package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	syndicateMetricsOnce sync.Once
	syndicateRegistry    *SyndicateMetrics
)

// ModuleMetrics returns the lazily-initialised registry recording API activity
// per module and route.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "syndicate",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module and route.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "syndicate",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, route and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "syndicate",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "syndicate",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by rate limits, quotas or pauses.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. The status code should be the HTTP
// status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" or
// "quota_exceeded" so dashboards and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// SyndicateMetrics tracks pool lifecycle and value flows.
type SyndicateMetrics struct {
	events       *prometheus.CounterVec
	value        *prometheus.CounterVec
	tokens       prometheus.Counter
	utilization  *prometheus.GaugeVec
	pauseEngaged prometheus.Gauge
}

// Syndicate exposes the metrics registry for the crowd pools.
func Syndicate() *SyndicateMetrics {
	syndicateMetricsOnce.Do(func() {
		syndicateRegistry = &SyndicateMetrics{
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "syndicate",
				Subsystem: "ledger",
				Name:      "events_total",
				Help:      "Count of ledger events segmented by type.",
			}, []string{"type"}),
			value: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "syndicate",
				Subsystem: "ledger",
				Name:      "value_total",
				Help:      "Native value moved through pools segmented by flow (deposit, donation, refund, purchase, bounty).",
			}, []string{"flow"}),
			tokens: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "syndicate",
				Subsystem: "ledger",
				Name:      "tokens_distributed_total",
				Help:      "Token units transferred to depositors.",
			}),
			utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "syndicate",
				Subsystem: "ledger",
				Name:      "capacity_utilization",
				Help:      "Ratio of deposited value to pool capacity (0-1).",
			}, []string{"syndicate"}),
			pauseEngaged: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "syndicate",
				Subsystem: "ledger",
				Name:      "pause_engaged",
				Help:      "Indicates whether the syndicate pause guard is active (1) or not (0).",
			}),
		}
		prometheus.MustRegister(
			syndicateRegistry.events,
			syndicateRegistry.value,
			syndicateRegistry.tokens,
			syndicateRegistry.utilization,
			syndicateRegistry.pauseEngaged,
		)
	})
	return syndicateRegistry
}

// RecordEvent increments the event counter for the supplied type.
func (m *SyndicateMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType = strings.TrimSpace(eventType); eventType == "" {
		eventType = "unknown"
	}
	m.events.WithLabelValues(eventType).Inc()
}

// RecordValue adds amount to the counter for flow.
func (m *SyndicateMetrics) RecordValue(flow string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	m.value.WithLabelValues(flow).Add(bigToFloat(amount))
}

// RecordTokens adds distributed token units.
func (m *SyndicateMetrics) RecordTokens(units *big.Int) {
	if m == nil || units == nil || units.Sign() <= 0 {
		return
	}
	m.tokens.Add(bigToFloat(units))
}

// RecordCapacity updates the utilisation gauge for a pool.
func (m *SyndicateMetrics) RecordCapacity(syndicate string, deposited, capacity *big.Int) {
	if m == nil {
		return
	}
	total := bigToFloat(capacity)
	utilisation := 0.0
	if total > 0 {
		utilisation = bigToFloat(deposited) / total
		if utilisation > 1 {
			utilisation = 1
		}
	}
	m.utilization.WithLabelValues(syndicate).Set(utilisation)
}

// SetPause toggles the pause_engaged gauge.
func (m *SyndicateMetrics) SetPause(engaged bool) {
	if m == nil {
		return
	}
	if engaged {
		m.pauseEngaged.Set(1)
		return
	}
	m.pauseEngaged.Set(0)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
