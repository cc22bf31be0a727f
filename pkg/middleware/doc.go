// Package middleware provides callback dispatch middleware for tether
// servers.
//
// This package includes:
//   - OpenTelemetry tracing of dispatched callbacks
//   - Prometheus metrics for dispatched callbacks and session lifetimes
//
// # OpenTelemetry Middleware
//
// The OpenTelemetry middleware starts a span for every callback that
// reaches the dispatch chain. Spans carry the session id, node id and
// handler name.
//
//	srv := server.New(cfg, app)
//	srv.Use(middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-app"),
//	    middleware.WithDispatchFilter(func(d *server.Dispatch) bool {
//	        return d.Call.Handler != "mousemove"
//	    }),
//	))
//
// # Prometheus Metrics
//
// The Prometheus middleware counts callbacks by handler and status and
// observes dispatch duration. Session hooks track live sessions:
//
//	srv.Use(middleware.Prometheus(middleware.WithRegistry(srv.Registry())))
//	srv.Sessions().SetOnSessionCreate(middleware.RecordSessionCreate)
//	srv.Sessions().SetOnSessionClose(middleware.RecordSessionClose)
//
// # Context Propagation
//
// After OpenTelemetry runs, d.Context carries the span. Middleware added
// later can pass TraceContext(d) to outbound calls.
package middleware
