package server

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/tether/pkg/vdom"
)

// RootFactory builds the tree of a new session. It runs once per session,
// before the session is visible to any socket.
type RootFactory func(s *Session) *vdom.Node

// SessionManager maps identities to sessions.
// It handles session creation, lookup, idle eviction and shutdown.
type SessionManager struct {
	// Sessions map protected by RWMutex
	sessions map[string]*Session
	pending  map[string]*pendingSession
	mu       sync.RWMutex
	closed   bool

	// Configuration
	config      *SessionConfig
	maxSessions int
	factory     RootFactory

	// Cleanup
	cleanupInterval time.Duration
	done            chan struct{}
	cleanupDone     chan struct{}
	shutdownOnce    sync.Once

	// Metrics
	metrics      *MetricsCollector
	totalCreated atomic.Uint64
	totalClosed  atomic.Uint64
	peakSessions int

	// Callbacks
	onSessionCreate func(*Session)
	onSessionClose  func(*Session)

	logger *slog.Logger
}

// SessionManagerOptions holds optional SessionManager settings.
type SessionManagerOptions struct {
	// MaxSessions is the maximum number of live sessions. 0 means no limit.
	MaxSessions int

	// CleanupInterval is how often idle sessions are evicted.
	// Default: 30 seconds.
	CleanupInterval time.Duration

	// Metrics receives session counters. May be nil.
	Metrics *MetricsCollector
}

// NewSessionManager creates a SessionManager and starts its cleanup loop.
func NewSessionManager(config *SessionConfig, factory RootFactory, logger *slog.Logger, opts *SessionManagerOptions) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}

	sm := &SessionManager{
		sessions:        make(map[string]*Session),
		pending:         make(map[string]*pendingSession),
		config:          config.withDefaults(),
		factory:         factory,
		cleanupInterval: 30 * time.Second,
		done:            make(chan struct{}),
		cleanupDone:     make(chan struct{}),
		logger:          logger.With("component", "session_manager"),
	}
	if opts != nil {
		sm.maxSessions = opts.MaxSessions
		sm.metrics = opts.Metrics
		if opts.CleanupInterval > 0 {
			sm.cleanupInterval = opts.CleanupInterval
		}
	}

	go sm.cleanupLoop()

	return sm
}

// SetRootFactory sets the factory used for new sessions.
func (sm *SessionManager) SetRootFactory(f RootFactory) {
	sm.mu.Lock()
	sm.factory = f
	sm.mu.Unlock()
}

// GetOrCreate returns the session for identity, creating and starting it
// on first use. The boolean reports whether the session was created.
//
// The factory runs without the registry lock, once per identity; concurrent
// callers for the same identity wait for it. A panicking factory yields
// ErrFactoryPanic and leaves no session behind.
func (sm *SessionManager) GetOrCreate(identity string) (*Session, bool, error) {
	sm.mu.RLock()
	s, ok := sm.sessions[identity]
	sm.mu.RUnlock()
	if ok {
		return s, false, nil
	}

	sm.mu.Lock()
	if s, ok := sm.sessions[identity]; ok {
		sm.mu.Unlock()
		return s, false, nil
	}
	if p, ok := sm.pending[identity]; ok {
		sm.mu.Unlock()
		<-p.done
		return p.session, false, p.err
	}
	if sm.closed {
		sm.mu.Unlock()
		return nil, false, ErrManagerClosed
	}
	factory := sm.factory
	if factory == nil {
		sm.mu.Unlock()
		return nil, false, ErrNoRootFactory
	}
	if sm.maxSessions > 0 && len(sm.sessions)+len(sm.pending) >= sm.maxSessions {
		sm.mu.Unlock()
		return nil, false, ErrMaxSessionsReached
	}
	p := &pendingSession{done: make(chan struct{})}
	sm.pending[identity] = p
	sm.mu.Unlock()

	s, err := sm.build(identity, factory)

	sm.mu.Lock()
	delete(sm.pending, identity)
	if err == nil && sm.closed {
		err = ErrManagerClosed
	}
	if err != nil {
		sm.mu.Unlock()
		if s != nil {
			s.Close()
		}
		p.err = err
		close(p.done)
		return nil, false, err
	}
	sm.sessions[identity] = s
	sm.totalCreated.Add(1)
	if len(sm.sessions) > sm.peakSessions {
		sm.peakSessions = len(sm.sessions)
	}
	active := len(sm.sessions)
	onCreate := sm.onSessionCreate
	sm.mu.Unlock()

	p.session = s
	close(p.done)

	s.Start()
	if onCreate != nil {
		onCreate(s)
	}

	sm.logger.Info("session created",
		"session_id", identity,
		"active_sessions", active)

	return s, true, nil
}

// pendingSession lets concurrent callers wait for one factory run.
type pendingSession struct {
	done    chan struct{}
	session *Session
	err     error
}

// build creates a session and runs factory on it, recovering panics.
func (sm *SessionManager) build(identity string, factory RootFactory) (s *Session, err error) {
	s = NewSession(identity, sm.config, sm.logger)
	s.SetMetrics(sm.metrics)
	defer func() {
		if r := recover(); r != nil {
			sm.logger.Error("root factory panic",
				"session_id", identity,
				"panic", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrFactoryPanic, r)
		}
	}()
	s.SetRoot(factory(s))
	return s, nil
}

// Get returns the session for identity, or nil.
func (sm *SessionManager) Get(identity string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[identity]
}

// Close closes and removes the session for identity.
func (sm *SessionManager) Close(identity string) {
	sm.mu.Lock()
	s, ok := sm.sessions[identity]
	if ok {
		delete(sm.sessions, identity)
	}
	sm.mu.Unlock()

	if ok {
		sm.closeSession(s)
	}
}

func (sm *SessionManager) closeSession(s *Session) {
	s.Close()
	sm.totalClosed.Add(1)
	if sm.onSessionClose != nil {
		sm.onSessionClose(s)
	}
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// cleanupLoop periodically evicts idle sessions.
func (sm *SessionManager) cleanupLoop() {
	defer close(sm.cleanupDone)

	ticker := time.NewTicker(sm.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.cleanupExpired()
		case <-sm.done:
			return
		}
	}
}

// cleanupExpired closes sessions with no sockets that have been idle past
// IdleTimeout and compacts the render cache of the rest. The shared
// session is never evicted. Sessions are inspected without the registry
// lock, so a busy session never stalls lookups for other identities.
func (sm *SessionManager) cleanupExpired() {
	timeout := sm.config.IdleTimeout
	now := time.Now()

	snapshot := sm.snapshot()

	var stale map[string]*Session
	for id, s := range snapshot {
		if timeout > 0 && id != SharedIdentity &&
			s.SocketCount() == 0 && now.Sub(s.LastActive()) > timeout {
			if stale == nil {
				stale = make(map[string]*Session)
			}
			stale[id] = s
		}
	}

	var expired []*Session
	if len(stale) > 0 {
		sm.mu.Lock()
		for id, s := range stale {
			if sm.sessions[id] == s {
				delete(sm.sessions, id)
				expired = append(expired, s)
			}
		}
		sm.mu.Unlock()
	}

	for _, s := range expired {
		sm.closeSession(s)
	}
	dropped := 0
	remaining := 0
	for id, s := range snapshot {
		if _, gone := stale[id]; gone {
			continue
		}
		dropped += s.Compact()
		remaining++
	}

	if len(expired) > 0 || dropped > 0 {
		sm.logger.Info("cleaned up sessions",
			"expired", len(expired),
			"cache_entries_dropped", dropped,
			"remaining", remaining)
	}
}

// snapshot copies the registry under the read lock.
func (sm *SessionManager) snapshot() map[string]*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make(map[string]*Session, len(sm.sessions))
	for id, s := range sm.sessions {
		out[id] = s
	}
	return out
}

// Shutdown stops the cleanup loop and closes every session concurrently.
// It returns ctx.Err() if ctx ends before all sessions have closed.
func (sm *SessionManager) Shutdown(ctx context.Context) error {
	var sessions []*Session
	sm.shutdownOnce.Do(func() {
		close(sm.done)
		<-sm.cleanupDone

		sm.mu.Lock()
		sm.closed = true
		sessions = make([]*Session, 0, len(sm.sessions))
		for _, s := range sm.sessions {
			sessions = append(sessions, s)
		}
		sm.sessions = make(map[string]*Session)
		sm.mu.Unlock()
	})

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			sm.closeSession(s)
		}(s)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		sm.logger.Info("session manager shutdown",
			"closed_sessions", len(sessions))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns session statistics.
func (sm *SessionManager) Stats() ManagerStats {
	sm.mu.RLock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		sessions = append(sessions, s)
	}
	peak := sm.peakSessions
	sm.mu.RUnlock()

	sockets := 0
	for _, s := range sessions {
		sockets += s.SocketCount()
	}

	return ManagerStats{
		Active:       len(sessions),
		TotalCreated: sm.totalCreated.Load(),
		TotalClosed:  sm.totalClosed.Load(),
		Peak:         peak,
		Sockets:      sockets,
	}
}

// ManagerStats contains session manager statistics.
type ManagerStats struct {
	Active       int
	TotalCreated uint64
	TotalClosed  uint64
	Peak         int
	Sockets      int
}

// ForEach iterates over a snapshot of all sessions until fn returns false.
// fn runs without the registry lock.
func (sm *SessionManager) ForEach(fn func(*Session) bool) {
	for _, s := range sm.snapshot() {
		if !fn(s) {
			return
		}
	}
}

// SetOnSessionCreate sets a callback for new sessions.
func (sm *SessionManager) SetOnSessionCreate(fn func(*Session)) {
	sm.onSessionCreate = fn
}

// SetOnSessionClose sets a callback for closed sessions.
func (sm *SessionManager) SetOnSessionClose(fn func(*Session)) {
	sm.onSessionClose = fn
}
