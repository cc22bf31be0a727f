package server

import (
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/tether/pkg/protocol"
	"github.com/vango-dev/tether/pkg/vdom"
)

// Socket is one browser connection subscribed to a session.
// *protocol.Conn implements it.
type Socket interface {
	WriteText(msg string) error
	Close() error
}

// Session is one logical application instance: one tree, one lock and the
// sockets of every tab viewing it.
//
// Node handlers run with the session lock held. From inside a handler use
// SetRoot, ExecuteJS and the tree itself; Update, Broadcast, Tick and Close
// would deadlock.
type Session struct {
	// Identity
	ID        string
	CreatedAt time.Time

	// mu guards the tree, the differ and sockets as one unit.
	mu      sync.Mutex
	root    atomic.Pointer[vdom.Node]
	differ  *vdom.Differ
	sockets []Socket

	// Scripts queued by ExecuteJS, flushed under mu.
	jsMu      sync.Mutex
	pendingJS []string

	lastActive atomic.Int64

	// Hooks
	onIdle  func(*Session)
	onClose func(*Session)

	// Lifecycle
	closed  atomic.Bool
	started atomic.Bool
	done    chan struct{}

	config  *SessionConfig
	metrics *MetricsCollector
	logger  *slog.Logger
}

// NewSession creates a session. The tick loop is not running until Start.
func NewSession(id string, config *SessionConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now()
	s := &Session{
		ID:        id,
		CreatedAt: now,
		differ:    vdom.NewDiffer(),
		done:      make(chan struct{}),
		config:    config.withDefaults(),
		logger:    logger.With("session_id", id),
	}
	s.lastActive.Store(now.UnixNano())
	return s
}

// SetMetrics attaches a metrics collector.
func (s *Session) SetMetrics(m *MetricsCollector) {
	s.metrics = m
}

// OnIdle sets a hook called at the start of every tick, with the lock held.
func (s *Session) OnIdle(fn func(*Session)) {
	s.mu.Lock()
	s.onIdle = fn
	s.mu.Unlock()
}

// OnClose sets a hook called once after the session closes.
func (s *Session) OnClose(fn func(*Session)) {
	s.mu.Lock()
	s.onClose = fn
	s.mu.Unlock()
}

// Root returns the current root node.
func (s *Session) Root() *vdom.Node {
	return s.root.Load()
}

// SetRoot replaces the root. The next tick sends the new tree as a window
// replacement. Safe to call from a handler.
func (s *Session) SetRoot(root *vdom.Node) {
	s.root.Store(root)
}

// Start runs the tick loop in a new goroutine. Calling it again has no effect.
func (s *Session) Start() {
	if s.started.Swap(true) {
		return
	}
	go s.tickLoop()
}

// tickLoop ticks every UpdateInterval until the session closes. The timer
// is re-armed after each tick so a slow tick never overlaps the next.
func (s *Session) tickLoop() {
	timer := time.NewTimer(s.config.UpdateInterval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.Tick()
			timer.Reset(s.config.UpdateInterval)
		case <-s.done:
			return
		}
	}
}

// Tick runs the idle hook, diffs the tree and broadcasts the result.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return
	}
	if s.onIdle != nil {
		s.runIdle()
	}

	s.flushLocked()
}

// flushLocked diffs the tree and sends the result, followed by any queued
// scripts, to every socket.
func (s *Session) flushLocked() {
	root := s.root.Load()
	notes := s.differ.Diff(root)
	s.metrics.RecordTick()
	msgs := encodeNotifications(notes)
	if len(notes) > 0 && notes[0].Kind == vdom.NotifyReplaceWindow {
		s.metrics.RecordWindowReplacement()
		// Prime the cache with exactly what was just sent.
		s.differ.Diff(root)
	}
	msgs = append(msgs, s.drainJS()...)
	s.broadcastLocked(msgs)
}

func (s *Session) runIdle() {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.RecordHandlerPanic()
			s.logger.Error("idle hook panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	s.onIdle(s)
}

// Broadcast sends notes to every socket. A socket whose write fails is
// closed and removed; the others still receive every message.
func (s *Session) Broadcast(notes []vdom.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(encodeNotifications(notes))
}

func encodeNotifications(notes []vdom.Notification) []string {
	msgs := make([]string, 0, len(notes))
	for _, n := range notes {
		switch n.Kind {
		case vdom.NotifyReplaceWindow:
			msgs = append(msgs, protocol.ReplaceWindow(n.ID.String(), n.Markup))
		default:
			msgs = append(msgs, protocol.Update(n.ID.String(), n.Markup))
		}
	}
	return msgs
}

func (s *Session) broadcastLocked(msgs []string) {
	if len(msgs) == 0 || len(s.sockets) == 0 {
		return
	}

	live := s.sockets[:0]
	for _, sock := range s.sockets {
		if err := s.writeAll(sock, msgs); err != nil {
			s.pruneSocket(sock, err)
			continue
		}
		live = append(live, sock)
	}
	clear(s.sockets[len(live):])
	s.sockets = live
}

func (s *Session) writeAll(sock Socket, msgs []string) error {
	bytes := 0
	for _, msg := range msgs {
		if err := sock.WriteText(msg); err != nil {
			return err
		}
		bytes += len(msg)
	}
	s.metrics.RecordNotifications(len(msgs), bytes)
	return nil
}

func (s *Session) pruneSocket(sock Socket, err error) {
	sendErr := &SendError{SessionID: s.ID, Remote: remoteOf(sock), Err: err}
	s.logger.Warn("pruning socket", "error", sendErr)
	sock.Close()
	s.metrics.RecordSocketPruned()
}

func remoteOf(sock Socket) string {
	if c, ok := sock.(interface{ RemoteAddr() net.Addr }); ok {
		if addr := c.RemoteAddr(); addr != nil {
			return addr.String()
		}
	}
	return ""
}

// ExecuteJS runs js in every tab. When the session is busy (for example
// when called from a handler) the script is queued and sent as soon as the
// current callback or tick completes. Safe to call from a handler.
func (s *Session) ExecuteJS(js string) {
	s.jsMu.Lock()
	s.pendingJS = append(s.pendingJS, protocol.ExecJS(js))
	s.jsMu.Unlock()

	if s.mu.TryLock() {
		defer s.mu.Unlock()
		if !s.closed.Load() {
			s.broadcastLocked(s.drainJS())
		}
	}
}

func (s *Session) drainJS() []string {
	s.jsMu.Lock()
	defer s.jsMu.Unlock()
	msgs := s.pendingJS
	s.pendingJS = nil
	return msgs
}

// Receive invokes the handler named by call on the node it addresses. A
// missing node or handler yields ErrDispatchNotFound and touches nothing.
// A panicking handler is recovered and reported as *HandlerError.
func (s *Session) Receive(call *protocol.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.Touch()

	err := s.receiveLocked(call)
	s.broadcastLocked(s.drainJS())
	return err
}

func (s *Session) receiveLocked(call *protocol.Call) error {
	node, err := s.findLocked(call.NodeID)
	if err != nil {
		return err
	}
	h, ok := node.Handler(call.Handler)
	if !ok {
		return fmt.Errorf("%w: %w: %d/%s", ErrDispatchNotFound, vdom.ErrHandlerNotFound, node.ID(), call.Handler)
	}
	return s.safeCall(node.ID(), call.Handler, func() error {
		return h(vdom.Args(call.Params))
	})
}

func (s *Session) findLocked(nodeID string) (*vdom.Node, error) {
	id, err := vdom.ParseID(nodeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %q", ErrDispatchNotFound, vdom.ErrNodeNotFound, nodeID)
	}
	node, err := vdom.Find(s.root.Load(), id, s.config.FindBudget)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %d", ErrDispatchNotFound, err, id)
	}
	return node, nil
}

// safeCall runs fn with panic recovery.
func (s *Session) safeCall(id vdom.ID, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			s.logger.Error("handler panic",
				"panic", r,
				"node", id,
				"handler", name,
				"stack", string(stack))
			s.metrics.RecordHandlerPanic()
			err = NewHandlerError(s.ID, id, name, r, stack)
		}
	}()
	return fn()
}

// Binary invokes a binary handler for the HTTP path and returns its payload
// and response headers.
func (s *Session) Binary(nodeID, name string, args vdom.Args) ([]byte, map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, nil, ErrSessionClosed
	}
	s.Touch()

	node, err := s.findLocked(nodeID)
	if err != nil {
		return nil, nil, err
	}
	h, ok := node.BinaryHandler(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %w: %d/%s", ErrDispatchNotFound, vdom.ErrHandlerNotFound, node.ID(), name)
	}

	var (
		data    []byte
		headers map[string]string
	)
	err = s.safeCall(node.ID(), name, func() error {
		var herr error
		data, headers, herr = h(args)
		return herr
	})
	return data, headers, err
}

// Update runs fn with the session lock held, for code outside handlers
// that mutates the tree (timers, background jobs).
func (s *Session) Update(fn func(root *vdom.Node)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return ErrSessionClosed
	}
	fn(s.root.Load())
	return nil
}

// AddSocket admits sock and immediately sends it the full current tree, so
// a reconnecting tab starts from a fresh render. Pending changes are first
// flushed to the existing sockets so every socket matches the render cache.
func (s *Session) AddSocket(sock Socket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.flushLocked()
	if root := s.differ.Root(); root != nil {
		msg := protocol.ReplaceWindow(root.ID().String(), root.RenderFull())
		if err := sock.WriteText(msg); err != nil {
			return &SendError{SessionID: s.ID, Remote: remoteOf(sock), Err: err}
		}
		s.metrics.RecordNotifications(1, len(msg))
	}
	s.sockets = append(s.sockets, sock)
	s.Touch()
	s.logger.Debug("socket added", "sockets", len(s.sockets))
	return nil
}

// RemoveSocket drops sock without closing it.
func (s *Session) RemoveSocket(sock Socket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.sockets {
		if existing == sock {
			s.sockets = append(s.sockets[:i], s.sockets[i+1:]...)
			break
		}
	}
	s.Touch()
}

// SocketCount returns the number of live sockets.
func (s *Session) SocketCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sockets)
}

// Render returns the root id and its full markup, for the page shell.
func (s *Session) Render() (vdom.ID, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	root := s.root.Load()
	if root == nil {
		return 0, ""
	}
	return root.ID(), root.RenderFull()
}

// CacheLen returns the number of render cache entries.
func (s *Session) CacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.differ.Len()
}

// Compact drops render cache entries for detached nodes and returns how
// many were removed.
func (s *Session) Compact() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.differ.Forget()
	s.metrics.RecordCacheEntriesDropped(n)
	return n
}

// Touch records activity for idle eviction.
func (s *Session) Touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns the time of the last recorded activity.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Close stops the tick loop and closes every socket. It must not be called
// from a handler.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	close(s.done)

	s.mu.Lock()
	sockets := s.sockets
	s.sockets = nil
	onClose := s.onClose
	s.mu.Unlock()

	for _, sock := range sockets {
		sock.Close()
	}
	if onClose != nil {
		onClose(s)
	}
	s.logger.Info("session closed", "sockets", len(sockets))
}

// IsClosed returns whether the session is closed.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done returns a channel that's closed when the session is done.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}
