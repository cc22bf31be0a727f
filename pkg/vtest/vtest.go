package vtest

import (
	"context"
	"strings"
	"testing"

	"github.com/vango-dev/tether/pkg/protocol"
	"github.com/vango-dev/tether/pkg/server"
	"github.com/vango-dev/tether/pkg/vdom"
)

// Harness drives a single session without its tick loop.
type Harness struct {
	tb         testing.TB
	Session    *server.Session
	Socket     *Recorder
	dispatcher *server.Dispatcher
}

// Option configures a Harness.
type Option func(*harnessConfig)

type harnessConfig struct {
	id         string
	session    *server.SessionConfig
	middleware []server.Middleware
}

// WithSessionID sets the session identity (default "vtest").
func WithSessionID(id string) Option {
	return func(c *harnessConfig) {
		c.id = id
	}
}

// WithSessionConfig sets the session configuration.
func WithSessionConfig(sc *server.SessionConfig) Option {
	return func(c *harnessConfig) {
		c.session = sc
	}
}

// WithMiddleware adds dispatch middleware.
func WithMiddleware(mw ...server.Middleware) Option {
	return func(c *harnessConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}

// New creates a harness around root and admits one socket, which receives
// the initial window.
func New(tb testing.TB, root *vdom.Node, opts ...Option) *Harness {
	tb.Helper()
	return NewWithFactory(tb, func(*server.Session) *vdom.Node { return root }, opts...)
}

// NewWithFactory is New for a RootFactory, which may register session hooks.
func NewWithFactory(tb testing.TB, factory server.RootFactory, opts ...Option) *Harness {
	tb.Helper()
	cfg := harnessConfig{id: "vtest"}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := server.NewSession(cfg.id, cfg.session, nil)
	tb.Cleanup(s.Close)
	s.SetRoot(factory(s))

	d := server.NewDispatcher(nil, nil)
	d.Use(cfg.middleware...)

	h := &Harness{tb: tb, Session: s, dispatcher: d}
	h.Socket = h.connect()
	return h
}

func (h *Harness) connect() *Recorder {
	h.tb.Helper()
	rec := NewRecorder()
	if err := h.Session.AddSocket(rec); err != nil {
		h.tb.Fatalf("AddSocket() error: %v", err)
	}
	return rec
}

// Call dispatches handler on node as a browser callback with params.
// It returns the dispatcher error; handler failures are logged, not returned.
func (h *Harness) Call(node *vdom.Node, handler string, params map[string]any) error {
	return h.CallID(node.ID().String(), handler, params)
}

// CallID is Call addressed by raw node id.
func (h *Harness) CallID(nodeID, handler string, params map[string]any) error {
	return h.dispatcher.Dispatch(context.Background(), h.Session, h.Socket, protocol.EncodeCall(nodeID, handler, params))
}

// Tick runs one tick and returns the messages the socket received since
// the previous Tick or Drain.
func (h *Harness) Tick() []protocol.Message {
	h.Session.Tick()
	return h.Socket.Drain()
}

// Drain returns and forgets the messages received so far.
func (h *Harness) Drain() []protocol.Message {
	return h.Socket.Drain()
}

// Reconnect drops the current socket and admits a new one, as a reloaded
// tab would.
func (h *Harness) Reconnect() *Recorder {
	h.tb.Helper()
	h.Session.RemoveSocket(h.Socket)
	h.Socket.Close()
	h.Socket = h.connect()
	return h.Socket
}

// ExpectContains asserts that markup contains want.
func ExpectContains(tb testing.TB, markup, want string) {
	tb.Helper()
	if !strings.Contains(markup, want) {
		tb.Errorf("expected markup to contain %q, got:\n%s", want, truncate(markup, 500))
	}
}

// ExpectNotContains asserts that markup does not contain unwanted.
func ExpectNotContains(tb testing.TB, markup, unwanted string) {
	tb.Helper()
	if strings.Contains(markup, unwanted) {
		tb.Errorf("expected markup to NOT contain %q, got:\n%s", unwanted, truncate(markup, 500))
	}
}

// ExpectUpdate asserts that some update or window message contains want
// and returns it.
func ExpectUpdate(tb testing.TB, msgs []protocol.Message, want string) protocol.Message {
	tb.Helper()
	for _, m := range msgs {
		if (m.Kind == protocol.KindUpdate || m.Kind == protocol.KindReplaceWindow) && strings.Contains(m.Markup, want) {
			return m
		}
	}
	tb.Errorf("no update contains %q in %d messages", want, len(msgs))
	return protocol.Message{}
}

// ExpectNoUpdates asserts that msgs carries no markup.
func ExpectNoUpdates(tb testing.TB, msgs []protocol.Message) {
	tb.Helper()
	for _, m := range msgs {
		if m.Kind == protocol.KindUpdate || m.Kind == protocol.KindReplaceWindow {
			tb.Errorf("unexpected %s for node %s: %s", m.Kind, m.ID, truncate(m.Markup, 200))
		}
	}
}

// ExpectScript asserts that an exec message contains want.
func ExpectScript(tb testing.TB, msgs []protocol.Message, want string) {
	tb.Helper()
	for _, m := range msgs {
		if m.Kind == protocol.KindExecJS && strings.Contains(m.Markup, want) {
			return
		}
	}
	tb.Errorf("no script contains %q in %d messages", want, len(msgs))
}

// Acks counts acknowledgements in msgs.
func Acks(msgs []protocol.Message) int {
	n := 0
	for _, m := range msgs {
		if m.Kind == protocol.KindAck {
			n++
		}
	}
	return n
}

// truncate truncates a string to max length with ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
