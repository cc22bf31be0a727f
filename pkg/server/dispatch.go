package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vango-dev/tether/pkg/protocol"
)

// Dispatch is one inbound callback on its way to a node handler.
type Dispatch struct {
	// Context carries the socket's context; tracing middleware may replace it.
	Context context.Context

	Session *Session
	Call    *protocol.Call

	// Start is when the message was read.
	Start time.Time
}

// Middleware wraps callback dispatch.
type Middleware interface {
	// Handle processes the dispatch and optionally calls next.
	// Return an error to stop the chain and report an error.
	// Return nil without calling next to drop the callback silently.
	Handle(d *Dispatch, next func() error) error
}

// MiddlewareFunc is a function adapter for Middleware.
type MiddlewareFunc func(d *Dispatch, next func() error) error

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(d *Dispatch, next func() error) error {
	return f(d, next)
}

// Dispatcher decodes inbound socket messages and routes them to sessions
// through a middleware chain.
type Dispatcher struct {
	middleware []Middleware
	metrics    *MetricsCollector
	logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(logger *slog.Logger, metrics *MetricsCollector) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		metrics: metrics,
		logger:  logger.With("component", "dispatch"),
	}
}

// Use appends middleware. Middleware runs in the order added.
func (d *Dispatcher) Use(mw ...Middleware) {
	d.middleware = append(d.middleware, mw...)
}

// Dispatch handles one message read from `from`. Malformed callbacks and
// callbacks to missing nodes are logged and dropped. Handler failures are
// logged. Every message is acknowledged; the returned error is only ever
// the failure to write that acknowledgement.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, from Socket, msg string) error {
	start := time.Now()
	d.metrics.RecordCallbackReceived()

	call, err := protocol.ParseCall(msg)
	if err != nil {
		d.metrics.RecordCallbackDropped()
		s.Logger().Debug("dropping message", "error", err)
		return from.WriteText(protocol.Ack)
	}

	dispatch := &Dispatch{Context: ctx, Session: s, Call: call, Start: start}
	err = d.run(dispatch)

	switch {
	case err == nil:
		d.metrics.RecordCallbackDispatched()
	case errors.Is(err, ErrDispatchNotFound):
		d.metrics.RecordCallbackDropped()
		s.Logger().Debug("callback target not found",
			"node", call.NodeID,
			"handler", call.Handler,
			"error", err)
	case errors.Is(err, ErrSessionClosed):
		return err
	default:
		d.metrics.RecordCallbackDispatched()
		s.Logger().Error("handler failed",
			"node", call.NodeID,
			"handler", call.Handler,
			"error", err)
	}
	return from.WriteText(protocol.Ack)
}

func (d *Dispatcher) run(dispatch *Dispatch) error {
	var next func(i int) error
	next = func(i int) error {
		if i == len(d.middleware) {
			return dispatch.Session.Receive(dispatch.Call)
		}
		return d.middleware[i].Handle(dispatch, func() error {
			return next(i + 1)
		})
	}
	return next(0)
}
