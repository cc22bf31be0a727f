package middleware

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/tether/pkg/server"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "tether").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for callback duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "tether",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// metrics holds the dispatch metrics.
type metrics struct {
	callbacksTotal   *prometheus.CounterVec
	callbackDuration *prometheus.HistogramVec
	callbackErrors   *prometheus.CounterVec
	activeSessions   prometheus.Gauge
	sessionLifetime  prometheus.Histogram
}

// globalMetrics is created on the first call to Prometheus.
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		callbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_callbacks_total",
			Help:        "Total number of callbacks dispatched",
			ConstLabels: config.ConstLabels,
		}, []string{"handler", "status"}),

		callbackDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_duration_seconds",
			Help:        "Callback dispatch duration in seconds, including lock wait",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"handler"}),

		callbackErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_errors_total",
			Help:        "Total number of callback errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"handler", "error_type"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_active_sessions",
			Help:        "Number of sessions seen by the session hooks",
			ConstLabels: config.ConstLabels,
		}),

		sessionLifetime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "session_lifetime_seconds",
			Help:        "Session lifetime in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 10, 60, 300, 1800, 3600, 86400},
		}),
	}
}

// Prometheus creates middleware that collects Prometheus metrics for
// dispatched callbacks.
//
// Metrics collected:
//   - tether_dispatch_callbacks_total: callbacks by handler and status
//   - tether_dispatch_duration_seconds: dispatch duration histogram
//   - tether_dispatch_errors_total: errors by handler and error type
//   - tether_dispatch_active_sessions: live sessions (via RecordSessionCreate/Close)
//   - tether_session_lifetime_seconds: session lifetime histogram
//
// Example:
//
//	srv := server.New(cfg, app)
//	srv.Use(middleware.Prometheus(middleware.WithNamespace("myapp")))
//	srv.Sessions().SetOnSessionCreate(middleware.RecordSessionCreate)
//	srv.Sessions().SetOnSessionClose(middleware.RecordSessionClose)
func Prometheus(opts ...MetricsOption) server.Middleware {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return server.MiddlewareFunc(func(d *server.Dispatch, next func() error) error {
		handler := d.Call.Handler
		start := d.Start
		if start.IsZero() {
			start = time.Now()
		}

		err := next()

		m.callbackDuration.WithLabelValues(handler).Observe(time.Since(start).Seconds())

		status := "success"
		if err != nil {
			status = "error"
			m.callbackErrors.WithLabelValues(handler, categorizeError(err)).Inc()
		}
		m.callbacksTotal.WithLabelValues(handler, status).Inc()

		return err
	})
}

// categorizeError maps err to a low-cardinality label.
func categorizeError(err error) string {
	var panicErr *server.HandlerError
	switch {
	case errors.Is(err, server.ErrDispatchNotFound):
		return "not_found"
	case errors.As(err, &panicErr):
		return "panic"
	case errors.Is(err, server.ErrSessionClosed):
		return "session_closed"
	default:
		return "internal"
	}
}

// RecordSessionCreate records a new session. Its signature matches
// SessionManager.SetOnSessionCreate.
func RecordSessionCreate(*server.Session) {
	globalMetricsMu.Lock()
	m := globalMetrics
	globalMetricsMu.Unlock()
	if m != nil {
		m.activeSessions.Inc()
	}
}

// RecordSessionClose records a closed session and its lifetime. Its
// signature matches SessionManager.SetOnSessionClose.
func RecordSessionClose(s *server.Session) {
	globalMetricsMu.Lock()
	m := globalMetrics
	globalMetricsMu.Unlock()
	if m != nil {
		m.activeSessions.Dec()
		if s != nil {
			m.sessionLifetime.Observe(time.Since(s.CreatedAt).Seconds())
		}
	}
}

// Collector exposes the dispatch metrics for tests and custom registrations.
type Collector struct {
	CallbacksTotal   *prometheus.CounterVec
	CallbackDuration *prometheus.HistogramVec
	CallbackErrors   *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
	SessionLifetime  prometheus.Histogram
}

// GetMetrics returns the global metrics collector.
// Returns nil if Prometheus has not been called.
func GetMetrics() *Collector {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	if globalMetrics == nil {
		return nil
	}
	return &Collector{
		CallbacksTotal:   globalMetrics.callbacksTotal,
		CallbackDuration: globalMetrics.callbackDuration,
		CallbackErrors:   globalMetrics.callbackErrors,
		ActiveSessions:   globalMetrics.activeSessions,
		SessionLifetime:  globalMetrics.sessionLifetime,
	}
}
