package middleware

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/tether/pkg/protocol"
	"github.com/vango-dev/tether/pkg/server"
	"github.com/vango-dev/tether/pkg/vdom"
)

// newDispatch builds a dispatch for handler on a fresh, unstarted session.
func newDispatch(t *testing.T, handler string) *server.Dispatch {
	t.Helper()
	s := server.NewSession("sess-1", nil, nil)
	t.Cleanup(s.Close)
	return &server.Dispatch{
		Context: context.Background(),
		Session: s,
		Call: &protocol.Call{
			NodeID:  "7",
			Handler: handler,
			Params:  map[string]any{"value": "x"},
		},
		Start: time.Now(),
	}
}

// =============================================================================
// OpenTelemetry Tests
// =============================================================================

func TestOpenTelemetryConfig(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		config := defaultOTelConfig()
		if config.TracerName != defaultTracerName {
			t.Errorf("TracerName = %q, want %q", config.TracerName, defaultTracerName)
		}
		if config.IncludeParams {
			t.Error("IncludeParams should be false by default")
		}
	})

	t.Run("with options", func(t *testing.T) {
		config := defaultOTelConfig()
		WithTracerName("my-app")(&config)
		WithIncludeParams(true)(&config)
		WithDispatchFilter(func(*server.Dispatch) bool { return true })(&config)

		if config.TracerName != "my-app" {
			t.Errorf("TracerName = %q, want %q", config.TracerName, "my-app")
		}
		if !config.IncludeParams {
			t.Error("IncludeParams should be true")
		}
		if config.Filter == nil {
			t.Error("Filter should be set")
		}
	})
}

func TestFormatSpanName(t *testing.T) {
	tests := []struct {
		handler string
		want    string
	}{
		{"click", "tether.click"},
		{"onchange", "tether.onchange"},
		{"", "tether callback"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			d := &server.Dispatch{Call: &protocol.Call{Handler: tt.handler}}
			if got := formatSpanName(d); got != tt.want {
				t.Errorf("formatSpanName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTraceContext(t *testing.T) {
	if TraceContext(nil) == nil {
		t.Error("TraceContext(nil) should return non-nil context")
	}

	type key struct{}
	d := &server.Dispatch{Context: context.WithValue(context.Background(), key{}, "value")}
	if TraceContext(d).Value(key{}) != "value" {
		t.Error("TraceContext() should return the dispatch context")
	}
}

// =============================================================================
// Prometheus Config Tests
// =============================================================================

func TestMetricsConfig(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		config := defaultMetricsConfig()
		if config.Namespace != "tether" {
			t.Errorf("Namespace = %q, want %q", config.Namespace, "tether")
		}
		if config.Subsystem != "" {
			t.Errorf("Subsystem = %q, want empty", config.Subsystem)
		}
		if config.Registry != prometheus.DefaultRegisterer {
			t.Error("Registry should be DefaultRegisterer")
		}
	})

	t.Run("with options", func(t *testing.T) {
		config := defaultMetricsConfig()
		WithNamespace("myapp")(&config)
		WithSubsystem("ui")(&config)
		WithBuckets([]float64{0.1, 0.5, 1.0})(&config)
		WithConstLabels(prometheus.Labels{"env": "test"})(&config)

		if config.Namespace != "myapp" {
			t.Errorf("Namespace = %q, want %q", config.Namespace, "myapp")
		}
		if config.Subsystem != "ui" {
			t.Errorf("Subsystem = %q, want %q", config.Subsystem, "ui")
		}
		if len(config.Buckets) != 3 {
			t.Errorf("len(Buckets) = %d, want 3", len(config.Buckets))
		}
		if config.ConstLabels["env"] != "test" {
			t.Errorf("ConstLabels = %v, want env=test", config.ConstLabels)
		}
	})
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: %w", server.ErrDispatchNotFound, vdom.ErrNodeNotFound), "not_found"},
		{server.NewHandlerError("s", 1, "click", "boom", nil), "panic"},
		{fmt.Errorf("wrapped: %w", server.NewHandlerError("s", 1, "click", "boom", nil)), "panic"},
		{server.ErrSessionClosed, "session_closed"},
		{errors.New("some other error"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := categorizeError(tt.err); got != tt.want {
				t.Errorf("categorizeError(%q) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestMetricsRecordFunctions(t *testing.T) {
	// These functions should not panic when globalMetrics is nil.
	resetGlobalMetricsForTest()
	RecordSessionCreate(nil)
	RecordSessionClose(nil)

	if GetMetrics() != nil {
		t.Error("GetMetrics() should return nil when not initialized")
	}
}

// =============================================================================
// Integration Tests
// =============================================================================

func TestMiddlewareWithDispatcher(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	root := vdom.New("div")
	clicks := 0
	root.Handle("click", func(vdom.Args) error {
		clicks++
		return nil
	})
	s := server.NewSession("sess-2", nil, nil)
	s.SetRoot(root)
	defer s.Close()

	var traced bool
	d := server.NewDispatcher(nil, nil)
	d.Use(
		OpenTelemetry(),
		Prometheus(WithRegistry(reg)),
		server.MiddlewareFunc(func(dp *server.Dispatch, next func() error) error {
			traced = SpanFromDispatch(dp) != nil
			return next()
		}),
	)

	sock := &ackSocket{}
	if err := d.Dispatch(context.Background(), s, sock, protocol.EncodeCall(root.ID().String(), "click", nil)); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if clicks != 1 {
		t.Errorf("clicks = %d, want 1", clicks)
	}
	if !traced {
		t.Error("later middleware saw no span")
	}
	if sock.acks != 1 {
		t.Errorf("acks = %d, want 1", sock.acks)
	}
	c := GetMetrics()
	if got := metricCounterValue(t, c.CallbacksTotal.WithLabelValues("click", "success")); got != 1 {
		t.Errorf("callbacks_total(click,success) = %v, want 1", got)
	}
}

// ackSocket counts acknowledgements.
type ackSocket struct {
	acks int
}

func (a *ackSocket) WriteText(msg string) error {
	if msg == protocol.Ack {
		a.acks++
	}
	return nil
}

func (a *ackSocket) Close() error { return nil }
