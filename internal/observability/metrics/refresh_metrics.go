package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeRefreshed = "refreshed"
	OutcomeFresh     = "fresh"
	OutcomeFailed    = "failed"
)

const (
	ReasonProviderUnavailable = "provider_unavailable"
	ReasonInvalidResponse     = "invalid_response_shape"
	ReasonAuthentication      = "authentication_failed"
	ReasonTimeout             = "timeout"
	ReasonStore               = "store"
	ReasonUnknown             = "unknown"
)

// RefreshMetrics captures content refresh health signals.
type RefreshMetrics struct {
	refreshRuns     *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	refreshFailures *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	costUSD         *prometheus.CounterVec
	staleServed     *prometheus.CounterVec
	runLoopLag      prometheus.Observer
	httpDuration    *prometheus.HistogramVec
}

var (
	refreshMetricsOnce sync.Once
	refreshMetrics     *RefreshMetrics
)

// Refresh returns the singleton refresh metrics registry.
func Refresh() *RefreshMetrics {
	return RefreshWithConfig(Config{})
}

// RefreshWithConfig returns the singleton refresh metrics registry using config labels.
func RefreshWithConfig(cfg Config) *RefreshMetrics {
	refreshMetricsOnce.Do(func() {
		refreshMetrics = newRefreshMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return refreshMetrics
}

// ResetRefreshMetricsForTest resets the refresh metrics singleton for tests.
func ResetRefreshMetricsForTest() {
	refreshMetricsOnce = sync.Once{}
	refreshMetrics = nil
}

func newRefreshMetrics(registerer prometheus.Registerer, cfg Config) *RefreshMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "pulse"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	refreshRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "pulse_refresh_runs_total",
		Help:        "Content refresh attempts by category and outcome.",
		ConstLabels: constLabels,
	}, []string{"category", "outcome"})
	refreshDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "pulse_refresh_duration_seconds",
		Help:        "Content refresh latency per category, provider call included.",
		Buckets:     []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		ConstLabels: constLabels,
	}, []string{"category"})
	refreshFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "pulse_refresh_failures_total",
		Help:        "Content refresh failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"category", "reason"})
	tokensUsed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "pulse_provider_tokens_total",
		Help:        "Provider tokens consumed by category and direction.",
		ConstLabels: constLabels,
	}, []string{"category", "direction"})
	costUSD := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "pulse_provider_cost_usd_total",
		Help:        "Estimated provider spend in USD by category.",
		ConstLabels: constLabels,
	}, []string{"category"})
	staleServed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "pulse_stale_served_total",
		Help:        "Reads answered from an expired record instead of failing.",
		ConstLabels: constLabels,
	}, []string{"category"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "pulse_refresh_runloop_lag_seconds",
		Help:        "Refresh loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "pulse_http_request_duration_seconds",
		Help:        "HTTP request latency by route, method and status class.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"route", "method", "status"})

	registerer.MustRegister(
		refreshRuns,
		refreshDuration,
		refreshFailures,
		tokensUsed,
		costUSD,
		staleServed,
		runLoopLag,
		httpDuration,
	)

	return &RefreshMetrics{
		refreshRuns:     refreshRuns,
		refreshDuration: refreshDuration,
		refreshFailures: refreshFailures,
		tokensUsed:      tokensUsed,
		costUSD:         costUSD,
		staleServed:     staleServed,
		runLoopLag:      runLoopLag,
		httpDuration:    httpDuration,
	}
}

// IncRefreshRun increments the refresh attempt counter.
func (m *RefreshMetrics) IncRefreshRun(category, outcome string) {
	if m == nil || m.refreshRuns == nil {
		return
	}
	m.refreshRuns.WithLabelValues(category, outcome).Inc()
}

// ObserveRefreshDuration records refresh latency in seconds.
func (m *RefreshMetrics) ObserveRefreshDuration(category string, duration time.Duration) {
	if m == nil || m.refreshDuration == nil {
		return
	}
	m.refreshDuration.WithLabelValues(category).Observe(duration.Seconds())
}

// IncRefreshFailure increments the failure counter with a low-cardinality reason.
func (m *RefreshMetrics) IncRefreshFailure(category, reason string) {
	if m == nil || m.refreshFailures == nil {
		return
	}
	if strings.TrimSpace(reason) == "" {
		reason = ReasonUnknown
	}
	m.refreshFailures.WithLabelValues(category, reason).Inc()
}

// AddTokens records provider token consumption for a refresh.
func (m *RefreshMetrics) AddTokens(category string, input, output int64) {
	if m == nil || m.tokensUsed == nil {
		return
	}
	if input > 0 {
		m.tokensUsed.WithLabelValues(category, "input").Add(float64(input))
	}
	if output > 0 {
		m.tokensUsed.WithLabelValues(category, "output").Add(float64(output))
	}
}

// AddCostUSD records estimated provider spend for a refresh.
func (m *RefreshMetrics) AddCostUSD(category string, cost float64) {
	if m == nil || m.costUSD == nil || cost <= 0 {
		return
	}
	m.costUSD.WithLabelValues(category).Add(cost)
}

// IncStaleServed counts a read answered from an expired record.
func (m *RefreshMetrics) IncStaleServed(category string) {
	if m == nil || m.staleServed == nil {
		return
	}
	m.staleServed.WithLabelValues(category).Inc()
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *RefreshMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil || m.runLoopLag == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	m.runLoopLag.Observe(duration.Seconds())
}

// ObserveHTTPRequest records HTTP latency with a status class label.
func (m *RefreshMetrics) ObserveHTTPRequest(route, method string, status int, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, method, statusClass(status)).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
