package server

import (
	"time"

	"github.com/vango-dev/tether/pkg/protocol"
	"github.com/vango-dev/tether/pkg/vdom"
)

// SessionMode selects how visitors are mapped to sessions.
type SessionMode int

const (
	// ModePerBrowser gives every browser its own session, keyed by cookie.
	ModePerBrowser SessionMode = iota

	// ModeShared gives every visitor the same session.
	ModeShared
)

// String returns the string representation of the mode.
func (m SessionMode) String() string {
	switch m {
	case ModePerBrowser:
		return "per-browser"
	case ModeShared:
		return "shared"
	default:
		return "unknown"
	}
}

// SharedIdentity is the registry key of the session in ModeShared.
const SharedIdentity = "shared"

// DefaultCookieName is the identity cookie used in ModePerBrowser.
const DefaultCookieName = "tether_session"

// SessionConfig holds configuration for individual sessions.
type SessionConfig struct {
	// UpdateInterval is the time between ticks.
	// Default: 100 milliseconds.
	UpdateInterval time.Duration

	// WriteTimeout is the maximum time to wait when sending a frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// IdleTimeout is the time after which a session with no sockets is
	// closed. Zero disables eviction. The shared session is never evicted.
	// Default: 5 minutes.
	IdleTimeout time.Duration

	// MaxMessageSize is the maximum size of an incoming WebSocket message.
	// Default: 64KB.
	MaxMessageSize int64

	// FindBudget bounds the node lookup for each callback.
	// Default: vdom.DefaultFindBudget.
	FindBudget int
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		UpdateInterval: 100 * time.Millisecond,
		WriteTimeout:   protocol.DefaultWriteTimeout,
		IdleTimeout:    5 * time.Minute,
		MaxMessageSize: 64 * 1024, // 64KB
		FindBudget:     vdom.DefaultFindBudget,
	}
}

// Clone returns a copy of the SessionConfig.
func (c *SessionConfig) Clone() *SessionConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// withDefaults fills zero fields from DefaultSessionConfig. IdleTimeout is
// left alone since zero is meaningful.
func (c *SessionConfig) withDefaults() *SessionConfig {
	if c == nil {
		return DefaultSessionConfig()
	}
	defaults := DefaultSessionConfig()
	out := c.Clone()
	if out.UpdateInterval <= 0 {
		out.UpdateInterval = defaults.UpdateInterval
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = defaults.WriteTimeout
	}
	if out.MaxMessageSize <= 0 {
		out.MaxMessageSize = defaults.MaxMessageSize
	}
	if out.FindBudget <= 0 {
		out.FindBudget = defaults.FindBudget
	}
	return out
}

// ServerConfig holds configuration for the HTTP/WebSocket server.
type ServerConfig struct {
	// Address is the address to listen on (e.g., ":8080" or "localhost:3000").
	// Default: ":8080".
	Address string

	// Title is the page title of the shell.
	// Default: "tether".
	Title string

	// Mode selects per-browser or shared sessions.
	// Default: ModePerBrowser.
	Mode SessionMode

	// CookieName is the identity cookie in ModePerBrowser.
	// Default: "tether_session".
	CookieName string

	// CookieSecure marks the identity cookie Secure.
	CookieSecure bool

	// SessionConfig is the configuration for individual sessions.
	// Default: DefaultSessionConfig().
	SessionConfig *SessionConfig

	// MaxSessions is the maximum number of concurrent sessions.
	// 0 means no limit.
	MaxSessions int

	// CleanupInterval is the interval for the session cleanup loop.
	// Default: 30 seconds.
	CleanupInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10 seconds.
	ReadHeaderTimeout time.Duration

	// EnableMetrics exposes Prometheus metrics at MetricsPath.
	EnableMetrics bool

	// MetricsPath is where metrics are served.
	// Default: "/metrics".
	MetricsPath string
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:           ":8080",
		Title:             "tether",
		Mode:              ModePerBrowser,
		CookieName:        DefaultCookieName,
		SessionConfig:     DefaultSessionConfig(),
		MaxSessions:       0, // No limit
		CleanupInterval:   30 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		EnableMetrics:     false,
		MetricsPath:       "/metrics",
	}
}

// Clone returns a copy of the ServerConfig.
func (c *ServerConfig) Clone() *ServerConfig {
	if c == nil {
		return nil
	}
	clone := *c
	if c.SessionConfig != nil {
		clone.SessionConfig = c.SessionConfig.Clone()
	}
	return &clone
}

// WithAddress sets the server address and returns the config for chaining.
func (c *ServerConfig) WithAddress(addr string) *ServerConfig {
	c.Address = addr
	return c
}

// WithTitle sets the page title and returns the config for chaining.
func (c *ServerConfig) WithTitle(title string) *ServerConfig {
	c.Title = title
	return c
}

// WithMode sets the session mode and returns the config for chaining.
func (c *ServerConfig) WithMode(mode SessionMode) *ServerConfig {
	c.Mode = mode
	return c
}

// WithSessionConfig sets the session configuration and returns the config for chaining.
func (c *ServerConfig) WithSessionConfig(sc *SessionConfig) *ServerConfig {
	c.SessionConfig = sc
	return c
}

// WithMaxSessions sets the maximum sessions and returns the config for chaining.
func (c *ServerConfig) WithMaxSessions(max int) *ServerConfig {
	c.MaxSessions = max
	return c
}

// WithMetrics enables the metrics endpoint and returns the config for chaining.
func (c *ServerConfig) WithMetrics(enabled bool) *ServerConfig {
	c.EnableMetrics = enabled
	return c
}

// withDefaults fills unset fields from DefaultServerConfig.
func (c *ServerConfig) withDefaults() *ServerConfig {
	if c == nil {
		return DefaultServerConfig()
	}
	defaults := DefaultServerConfig()
	out := c.Clone()
	if out.Address == "" {
		out.Address = defaults.Address
	}
	if out.Title == "" {
		out.Title = defaults.Title
	}
	if out.CookieName == "" {
		out.CookieName = defaults.CookieName
	}
	out.SessionConfig = out.SessionConfig.withDefaults()
	if out.CleanupInterval <= 0 {
		out.CleanupInterval = defaults.CleanupInterval
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if out.ReadHeaderTimeout <= 0 {
		out.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if out.MetricsPath == "" {
		out.MetricsPath = defaults.MetricsPath
	}
	return out
}
