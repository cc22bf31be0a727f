package server

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ServerMetrics is a point-in-time view of server activity.
type ServerMetrics struct {
	// Sessions
	ActiveSessions int64
	TotalSessions  int64
	SessionCloses  int64
	PeakSessions   int64
	ActiveSockets  int64

	// Callbacks
	CallbacksReceived   int64
	CallbacksDispatched int64
	CallbacksDropped    int64
	HandlerPanics       int64

	// Rendering
	Ticks               int64
	NotificationsSent   int64
	NotificationBytes   int64
	WindowReplacements  int64
	SocketsPruned       int64
	ReadErrors          int64
	CacheEntriesDropped int64

	// Timestamp
	CollectedAt time.Time
}

// Metrics collects and returns server metrics.
func (s *Server) Metrics() *ServerMetrics {
	m := s.metrics.Snapshot()
	stats := s.sessions.Stats()
	m.ActiveSessions = int64(stats.Active)
	m.TotalSessions = int64(stats.TotalCreated)
	m.SessionCloses = int64(stats.TotalClosed)
	m.PeakSessions = int64(stats.Peak)
	m.ActiveSockets = int64(stats.Sockets)
	return m
}

// MetricsCollector counts session activity. All methods are safe for
// concurrent use and are no-ops on a nil receiver.
type MetricsCollector struct {
	callbacksReceived   atomic.Int64
	callbacksDispatched atomic.Int64
	callbacksDropped    atomic.Int64
	handlerPanics       atomic.Int64
	ticks               atomic.Int64
	notificationsSent   atomic.Int64
	notificationBytes   atomic.Int64
	windowReplacements  atomic.Int64
	socketsPruned       atomic.Int64
	readErrors          atomic.Int64
	cacheEntriesDropped atomic.Int64
}

// NewMetricsCollector creates a new MetricsCollector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordCallbackReceived records an inbound callback message.
func (m *MetricsCollector) RecordCallbackReceived() {
	if m == nil {
		return
	}
	m.callbacksReceived.Add(1)
}

// RecordCallbackDispatched records a callback that reached its handler.
func (m *MetricsCollector) RecordCallbackDispatched() {
	if m == nil {
		return
	}
	m.callbacksDispatched.Add(1)
}

// RecordCallbackDropped records a malformed or unroutable callback.
func (m *MetricsCollector) RecordCallbackDropped() {
	if m == nil {
		return
	}
	m.callbacksDropped.Add(1)
}

// RecordHandlerPanic records a handler panic.
func (m *MetricsCollector) RecordHandlerPanic() {
	if m == nil {
		return
	}
	m.handlerPanics.Add(1)
}

// RecordTick records one diff pass.
func (m *MetricsCollector) RecordTick() {
	if m == nil {
		return
	}
	m.ticks.Add(1)
}

// RecordNotifications records messages written to one socket.
func (m *MetricsCollector) RecordNotifications(count, bytes int) {
	if m == nil {
		return
	}
	m.notificationsSent.Add(int64(count))
	m.notificationBytes.Add(int64(bytes))
}

// RecordWindowReplacement records a root replacement.
func (m *MetricsCollector) RecordWindowReplacement() {
	if m == nil {
		return
	}
	m.windowReplacements.Add(1)
}

// RecordSocketPruned records a socket dropped after a failed send.
func (m *MetricsCollector) RecordSocketPruned() {
	if m == nil {
		return
	}
	m.socketsPruned.Add(1)
}

// RecordReadError records a socket read that failed other than by close.
func (m *MetricsCollector) RecordReadError() {
	if m == nil {
		return
	}
	m.readErrors.Add(1)
}

// RecordCacheEntriesDropped records render cache entries forgotten by compaction.
func (m *MetricsCollector) RecordCacheEntriesDropped(n int) {
	if m == nil {
		return
	}
	m.cacheEntriesDropped.Add(int64(n))
}

// Snapshot returns current metrics.
func (m *MetricsCollector) Snapshot() *ServerMetrics {
	if m == nil {
		return &ServerMetrics{CollectedAt: time.Now()}
	}
	return &ServerMetrics{
		CallbacksReceived:   m.callbacksReceived.Load(),
		CallbacksDispatched: m.callbacksDispatched.Load(),
		CallbacksDropped:    m.callbacksDropped.Load(),
		HandlerPanics:       m.handlerPanics.Load(),
		Ticks:               m.ticks.Load(),
		NotificationsSent:   m.notificationsSent.Load(),
		NotificationBytes:   m.notificationBytes.Load(),
		WindowReplacements:  m.windowReplacements.Load(),
		SocketsPruned:       m.socketsPruned.Load(),
		ReadErrors:          m.readErrors.Load(),
		CacheEntriesDropped: m.cacheEntriesDropped.Load(),
		CollectedAt:         time.Now(),
	}
}

// Reset resets all counters.
func (m *MetricsCollector) Reset() {
	if m == nil {
		return
	}
	m.callbacksReceived.Store(0)
	m.callbacksDispatched.Store(0)
	m.callbacksDropped.Store(0)
	m.handlerPanics.Store(0)
	m.ticks.Store(0)
	m.notificationsSent.Store(0)
	m.notificationBytes.Store(0)
	m.windowReplacements.Store(0)
	m.socketsPruned.Store(0)
	m.readErrors.Store(0)
	m.cacheEntriesDropped.Store(0)
}

// metricDesc pairs a Prometheus description with the snapshot field it reads.
type metricDesc struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(*ServerMetrics) int64
}

func newMetricDescs(namespace string) []metricDesc {
	counter := func(name, help string, value func(*ServerMetrics) int64) metricDesc {
		return metricDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil),
			kind:  prometheus.CounterValue,
			value: value,
		}
	}
	gauge := func(name, help string, value func(*ServerMetrics) int64) metricDesc {
		d := counter(name, help, value)
		d.kind = prometheus.GaugeValue
		return d
	}

	return []metricDesc{
		gauge("active_sessions", "Number of live sessions",
			func(m *ServerMetrics) int64 { return m.ActiveSessions }),
		gauge("active_sockets", "Number of open browser sockets",
			func(m *ServerMetrics) int64 { return m.ActiveSockets }),
		counter("sessions_created_total", "Total sessions created",
			func(m *ServerMetrics) int64 { return m.TotalSessions }),
		counter("sessions_closed_total", "Total sessions closed",
			func(m *ServerMetrics) int64 { return m.SessionCloses }),
		counter("callbacks_received_total", "Total callback messages received",
			func(m *ServerMetrics) int64 { return m.CallbacksReceived }),
		counter("callbacks_dispatched_total", "Total callbacks that reached a handler",
			func(m *ServerMetrics) int64 { return m.CallbacksDispatched }),
		counter("callbacks_dropped_total", "Total malformed or unroutable callbacks",
			func(m *ServerMetrics) int64 { return m.CallbacksDropped }),
		counter("handler_panics_total", "Total handler panics",
			func(m *ServerMetrics) int64 { return m.HandlerPanics }),
		counter("ticks_total", "Total diff passes",
			func(m *ServerMetrics) int64 { return m.Ticks }),
		counter("notifications_sent_total", "Total messages written to sockets",
			func(m *ServerMetrics) int64 { return m.NotificationsSent }),
		counter("notification_bytes_total", "Total message bytes written to sockets",
			func(m *ServerMetrics) int64 { return m.NotificationBytes }),
		counter("window_replacements_total", "Total root replacements",
			func(m *ServerMetrics) int64 { return m.WindowReplacements }),
		counter("sockets_pruned_total", "Total sockets dropped after a failed send",
			func(m *ServerMetrics) int64 { return m.SocketsPruned }),
		counter("read_errors_total", "Total socket read errors",
			func(m *ServerMetrics) int64 { return m.ReadErrors }),
	}
}

// promCollector exposes Server.Metrics to a Prometheus registry.
type promCollector struct {
	server *Server
	descs  []metricDesc
}

func newPromCollector(s *Server, namespace string) *promCollector {
	return &promCollector{server: s, descs: newMetricDescs(namespace)}
}

// Describe implements prometheus.Collector.
func (c *promCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d.desc
	}
}

// Collect implements prometheus.Collector.
func (c *promCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.server.Metrics()
	for _, d := range c.descs {
		ch <- prometheus.MustNewConstMetric(d.desc, d.kind, float64(d.value(snap)))
	}
}
