package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/tether/pkg/protocol"
	"github.com/vango-dev/tether/pkg/vdom"
)

// Server serves the page shell, the socket endpoint and binary handlers for
// a set of sessions.
type Server struct {
	// Session management
	sessions *SessionManager

	// Configuration
	config *ServerConfig

	// Callback dispatch
	dispatcher *Dispatcher
	metrics    *MetricsCollector
	registry   *prometheus.Registry

	// Routes
	router chi.Router

	// Lifetime of every socket read loop
	baseCtx    context.Context
	cancelBase context.CancelFunc

	// HTTP server
	httpServer *http.Server

	logger *slog.Logger
}

// New creates a Server. factory builds the tree of each new session.
func New(config *ServerConfig, factory RootFactory) *Server {
	config = config.withDefaults()
	logger := slog.Default().With("component", "server")
	metrics := NewMetricsCollector()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:     config,
		metrics:    metrics,
		dispatcher: NewDispatcher(logger, metrics),
		baseCtx:    ctx,
		cancelBase: cancel,
		logger:     logger,
	}
	s.sessions = NewSessionManager(config.SessionConfig, factory, logger, &SessionManagerOptions{
		MaxSessions:     config.MaxSessions,
		CleanupInterval: config.CleanupInterval,
		Metrics:         metrics,
	})

	if config.EnableMetrics {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(newPromCollector(s, "tether"))
	}
	s.router = s.routes()

	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if s.registry != nil {
		r.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	r.Get("/", s.handleRoot)
	r.Get("/{nodeID}/{handler}", s.handleBinary)

	return r
}

// Use adds callback middleware.
func (s *Server) Use(mw ...Middleware) {
	s.dispatcher.Use(mw...)
}

// Handler returns the server as an http.Handler for mounting in another
// router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if protocol.IsUpgradeRequest(r) {
		s.HandleWebSocket(w, r)
		return
	}

	id, minted := s.identity(r)
	sess, _, err := s.sessions.GetOrCreate(id)
	if err != nil {
		s.sessionError(w, err)
		return
	}
	if minted {
		http.SetCookie(w, s.identityCookie(r, id))
	}

	rootID, markup := sess.Render()
	if err := writeShell(w, s.config.Title, rootID, markup); err != nil {
		s.logger.Error("page render failed", "error", err, "session_id", id)
	}
}

// HandleWebSocket upgrades r and runs the socket until it closes.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	id, _ := s.identity(r)
	sess, _, err := s.sessions.GetOrCreate(id)
	if err != nil {
		s.sessionError(w, err)
		return
	}

	conn, err := protocol.Upgrade(w, r)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	stop := context.AfterFunc(s.baseCtx, cancel)
	defer stop()

	if err := ServeConn(ctx, sess, conn, s.dispatcher); err != nil {
		sess.Logger().Debug("socket ended", "error", err)
	}
}

func (s *Server) handleBinary(w http.ResponseWriter, r *http.Request) {
	id, minted := s.identity(r)
	sess := s.sessions.Get(id)
	if minted || sess == nil {
		http.NotFound(w, r)
		return
	}

	args := make(vdom.Args)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			args[k] = protocol.CoerceParam(v[0])
		}
	}

	body, headers, err := sess.Binary(chi.URLParam(r, "nodeID"), chi.URLParam(r, "handler"), args)
	switch {
	case errors.Is(err, ErrDispatchNotFound), errors.Is(err, ErrSessionClosed):
		http.NotFound(w, r)
		return
	case err != nil:
		sess.Logger().Error("binary handler failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.Write(body)
}

func (s *Server) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMaxSessionsReached), errors.Is(err, ErrManagerClosed):
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	default:
		s.logger.Error("session unavailable", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// Run starts the server and blocks until it fails or receives SIGINT or
// SIGTERM, then shuts down gracefully.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	// Set up graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			"address", s.config.Address,
			"mode", s.config.Mode.String())
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil

	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes every session and socket and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	// Hijacked sockets are invisible to http.Server.Shutdown.
	s.cancelBase()

	if err := s.sessions.Shutdown(ctx); err != nil {
		s.logger.Warn("session shutdown incomplete", "error", err)
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Config returns the server configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}

// Registry returns the Prometheus registry, or nil when metrics are off.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// SetLogger sets the server logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
}
