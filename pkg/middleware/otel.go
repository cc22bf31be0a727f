package middleware

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/tether/pkg/server"
)

// Default tracer name.
const defaultTracerName = "tether"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "tether").
	TracerName string

	// IncludeParams records callback parameter names as a span attribute.
	// Values are never recorded.
	IncludeParams bool

	// Filter determines which callbacks to trace.
	// Return true to trace the callback, false to skip.
	// If nil, all callbacks are traced.
	Filter func(d *server.Dispatch) bool

	// AttributeExtractor extracts custom attributes from the dispatch.
	AttributeExtractor func(d *server.Dispatch) []attribute.KeyValue

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithIncludeParams enables recording parameter names.
func WithIncludeParams(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeParams = include
	}
}

// WithDispatchFilter sets a filter function for callbacks.
func WithDispatchFilter(filter func(d *server.Dispatch) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(d *server.Dispatch) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// OpenTelemetry creates middleware that traces every dispatched callback.
//
// The middleware:
//   - Creates a span per callback with session, node and handler attributes
//   - Replaces d.Context with the span context for later middleware
//   - Records errors and sets span status
//   - Marks callbacks for vanished targets with tether.dropped and leaves
//     their status unset
//
// The tracer comes from the global provider; configure it with
// otel.SetTracerProvider before starting the server.
func OpenTelemetry(opts ...OTelOption) server.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	return server.MiddlewareFunc(func(d *server.Dispatch, next func() error) error {
		if config.Filter != nil && !config.Filter(d) {
			return next()
		}

		attrs := []attribute.KeyValue{
			attribute.String("tether.node_id", d.Call.NodeID),
			attribute.String("tether.handler", d.Call.Handler),
		}
		if d.Session != nil {
			attrs = append(attrs, attribute.String("tether.session_id", d.Session.ID))
		}
		if config.IncludeParams && len(d.Call.Params) > 0 {
			names := make([]string, 0, len(d.Call.Params))
			for name := range d.Call.Params {
				names = append(names, name)
			}
			attrs = append(attrs, attribute.StringSlice("tether.params", names))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(d)...)
		}

		parent := d.Context
		if parent == nil {
			parent = context.Background()
		}
		spanCtx, span := config.tracer.Start(
			parent,
			formatSpanName(d),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(d.Start),
		)
		defer span.End()

		d.Context = context.WithValue(spanCtx, tracedKey{}, true)

		err := next()

		switch {
		case errors.Is(err, server.ErrDispatchNotFound):
			// Stale callbacks after a re-render are routine, not failures.
			span.SetAttributes(attribute.Bool("tether.dropped", true))
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		default:
			span.SetStatus(codes.Ok, "")
		}

		return err
	})
}

// formatSpanName names the span after the handler.
func formatSpanName(d *server.Dispatch) string {
	if d.Call == nil || d.Call.Handler == "" {
		return "tether callback"
	}
	return fmt.Sprintf("tether.%s", d.Call.Handler)
}

// SpanFromDispatch returns the span started for d, or nil when the
// callback was not traced.
func SpanFromDispatch(d *server.Dispatch) trace.Span {
	if d == nil || d.Context == nil {
		return nil
	}
	if traced, _ := d.Context.Value(tracedKey{}).(bool); !traced {
		return nil
	}
	return trace.SpanFromContext(d.Context)
}

// TraceContext returns the context to propagate to external calls made
// while handling d.
func TraceContext(d *server.Dispatch) context.Context {
	if d == nil || d.Context == nil {
		return context.Background()
	}
	return d.Context
}

// tracedKey marks a dispatch context that carries a span.
type tracedKey struct{}
