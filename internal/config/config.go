package config

import (
	"encoding/json"
	stderrors "errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/tether/internal/errors"
	"github.com/vango-dev/tether/pkg/server"
)

// Config file names, in lookup order.
const (
	YAMLFileName    = "tether.yaml"
	YMLFileName     = "tether.yml"
	JSONFileName    = "tether.json"
	DefaultFileName = YAMLFileName
)

// Mode names accepted in the config file.
const (
	ModePerBrowser = "per-browser"
	ModeShared     = "shared"
)

const (
	// DefaultAddress is the default listen address.
	DefaultAddress = ":8080"

	// DefaultTitle is the default page title.
	DefaultTitle = "tether"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"
)

// Config represents a tether.yaml or tether.json file.
type Config struct {
	// Address is the address to listen on.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`

	// Title is the page title of the shell.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Mode is "per-browser" or "shared".
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// MaxSessions caps live sessions. Zero means no limit.
	MaxSessions int `json:"maxSessions,omitempty" yaml:"max_sessions,omitempty"`

	// CleanupInterval is the period of the idle session sweep.
	CleanupInterval Duration `json:"cleanupInterval,omitempty" yaml:"cleanup_interval,omitempty"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `json:"shutdownTimeout,omitempty" yaml:"shutdown_timeout,omitempty"`

	Session SessionConfig `json:"session,omitempty" yaml:"session,omitempty"`
	Cookie  CookieConfig  `json:"cookie,omitempty" yaml:"cookie,omitempty"`
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Log     LogConfig     `json:"log,omitempty" yaml:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// SessionConfig contains per-session settings.
type SessionConfig struct {
	// UpdateInterval is the tick period (e.g., "100ms").
	UpdateInterval Duration `json:"updateInterval,omitempty" yaml:"update_interval,omitempty"`

	// IdleTimeout evicts sessions without sockets. "0s" disables eviction;
	// leaving it out selects the default.
	IdleTimeout *Duration `json:"idleTimeout,omitempty" yaml:"idle_timeout,omitempty"`

	// WriteTimeout bounds each frame write.
	WriteTimeout Duration `json:"writeTimeout,omitempty" yaml:"write_timeout,omitempty"`

	// MaxMessageSize caps incoming WebSocket messages in bytes.
	MaxMessageSize int64 `json:"maxMessageSize,omitempty" yaml:"max_message_size,omitempty"`
}

// CookieConfig configures the identity cookie used in per-browser mode.
type CookieConfig struct {
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Secure bool   `json:"secure,omitempty" yaml:"secure,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// JSON switches the handler from text to JSON output.
	JSON bool `json:"json,omitempty" yaml:"json,omitempty"`
}

// New creates a Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load finds and loads the config file in dir. It tries tether.yaml,
// tether.yml and tether.json in that order.
func Load(dir string) (*Config, error) {
	for _, name := range []string{YAMLFileName, YMLFileName, JSONFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("T101").
		WithDetailf("no %s, %s or %s in %s", YAMLFileName, YMLFileName, JSONFileName, dir).
		WithSuggestion("Run 'tether init' to create one")
}

// LoadFile loads a config from a specific file. The format follows the
// file extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("T101").WithDetailf("%s does not exist", path)
		}
		return nil, errors.New("T102").Wrap(err)
	}

	cfg, err := Parse(data, formatOf(path))
	if err != nil {
		var te *errors.TetherError
		if stderrors.As(err, &te) && te.Location != nil {
			te.WithLocation(path, te.Location.Line, te.Location.Column)
		}
		return nil, err
	}
	cfg.configPath = path
	return cfg, nil
}

// Format is a config file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return Format(strings.TrimPrefix(filepath.Ext(path), "."))
	}
}

// Parse decodes data, applies defaults and validates the result.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := &Config{}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, yamlError(err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, jsonError(data, err)
		}
	default:
		return nil, errors.New("T103").WithDetailf("unknown format %q", format)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func yamlError(err error) error {
	var fe *fieldError
	if stderrors.As(err, &fe) {
		return errors.New(fe.code).
			WithDetail(fe.msg).
			WithLocation("", fe.line, fe.column)
	}
	te := errors.New("T102").Wrap(err)
	var typeErr *yaml.TypeError
	if stderrors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
		if line := lineOf(typeErr.Errors[0]); line > 0 {
			te.WithLocation("", line, 0)
		}
	}
	return te
}

// lineOf extracts N from yaml messages of the form "line N: ...".
func lineOf(msg string) int {
	rest, ok := strings.CutPrefix(msg, "line ")
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(rest[:strings.IndexByte(rest+":", ':')])
	return n
}

func jsonError(data []byte, err error) error {
	var fe *fieldError
	if stderrors.As(err, &fe) {
		return errors.New(fe.code).WithDetail(fe.msg)
	}
	te := errors.New("T102").Wrap(err)
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syntaxErr):
		line, col := position(data, syntaxErr.Offset)
		te.WithLocation("", line, col)
	case stderrors.As(err, &typeErr):
		line, col := position(data, typeErr.Offset)
		te.WithLocation("", line, col)
	}
	return te
}

// position converts a byte offset into a 1-based line and column.
func position(data []byte, offset int64) (line, col int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line, col = 1, 1
	for _, b := range data[:offset] {
		if b == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// Save writes the config back to the path it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the config to path in the format its extension selects.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	switch formatOf(path) {
	case FormatYAML:
		data, err = yaml.Marshal(c)
	case FormatJSON:
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	default:
		return errors.New("T103").WithDetailf("cannot write %s", path)
	}
	if err != nil {
		return errors.New("T102").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("T102").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Exists reports whether dir holds a config file.
func Exists(dir string) bool {
	for _, name := range []string{YAMLFileName, YMLFileName, JSONFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	sc := server.DefaultServerConfig()

	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	if c.Mode == "" {
		c.Mode = ModePerBrowser
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = Duration(sc.CleanupInterval)
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = Duration(sc.ShutdownTimeout)
	}

	if c.Session.UpdateInterval == 0 {
		c.Session.UpdateInterval = Duration(sc.SessionConfig.UpdateInterval)
	}
	if c.Session.IdleTimeout == nil {
		d := Duration(sc.SessionConfig.IdleTimeout)
		c.Session.IdleTimeout = &d
	}
	if c.Session.WriteTimeout == 0 {
		c.Session.WriteTimeout = Duration(sc.SessionConfig.WriteTimeout)
	}
	if c.Session.MaxMessageSize == 0 {
		c.Session.MaxMessageSize = sc.SessionConfig.MaxMessageSize
	}

	if c.Cookie.Name == "" {
		c.Cookie.Name = server.DefaultCookieName
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = sc.MetricsPath
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return errors.New("T104").
			WithDetailf("%q: %v", c.Address, err).
			WithExample("address: \":8080\"")
	}
	if _, err := c.SessionMode(); err != nil {
		return err
	}
	if c.MaxSessions < 0 {
		return errors.New("T107").WithDetailf("max sessions must be >= 0, got %d", c.MaxSessions)
	}
	if c.Session.UpdateInterval <= 0 {
		return errors.New("T105").
			WithDetailf("update interval must be positive, got %s", c.Session.UpdateInterval).
			WithExample("session:\n  update_interval: 100ms")
	}
	if c.Session.IdleTimeout != nil && *c.Session.IdleTimeout < 0 {
		return errors.New("T106").
			WithDetailf("idle timeout must be >= 0, got %s", *c.Session.IdleTimeout).
			WithSuggestion("Use 0s to disable eviction")
	}
	if c.CleanupInterval <= 0 || c.ShutdownTimeout <= 0 {
		return errors.New("T106").WithDetail("cleanup interval and shutdown timeout must be positive")
	}
	if c.Session.WriteTimeout <= 0 || c.Session.MaxMessageSize <= 0 {
		return errors.New("T110").WithDetail("write timeout and max message size must be positive")
	}
	if strings.ContainsAny(c.Cookie.Name, " ;,=\t\r\n") {
		return errors.New("T109").WithDetailf("cookie name %q contains invalid characters", c.Cookie.Name)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("T110").
			WithDetailf("metrics path %q must start with /", c.Metrics.Path)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// SessionMode returns the server mode named by Mode.
func (c *Config) SessionMode() (server.SessionMode, error) {
	switch c.Mode {
	case ModePerBrowser, "":
		return server.ModePerBrowser, nil
	case ModeShared:
		return server.ModeShared, nil
	default:
		return 0, errors.New("T108").
			WithDetailf(`got %q, want "per-browser" or "shared"`, c.Mode)
	}
}

// ToServerConfig converts the file config into a server configuration.
func (c *Config) ToServerConfig() (*server.ServerConfig, error) {
	mode, err := c.SessionMode()
	if err != nil {
		return nil, err
	}

	sc := server.DefaultServerConfig().
		WithAddress(c.Address).
		WithTitle(c.Title).
		WithMode(mode).
		WithMaxSessions(c.MaxSessions).
		WithMetrics(c.Metrics.Enabled)
	sc.CookieName = c.Cookie.Name
	sc.CookieSecure = c.Cookie.Secure
	sc.CleanupInterval = time.Duration(c.CleanupInterval)
	sc.ShutdownTimeout = time.Duration(c.ShutdownTimeout)
	sc.MetricsPath = c.Metrics.Path

	sess := sc.SessionConfig
	sess.UpdateInterval = time.Duration(c.Session.UpdateInterval)
	if c.Session.IdleTimeout != nil {
		sess.IdleTimeout = time.Duration(*c.Session.IdleTimeout)
	}
	sess.WriteTimeout = time.Duration(c.Session.WriteTimeout)
	sess.MaxMessageSize = c.Session.MaxMessageSize

	return sc, nil
}
