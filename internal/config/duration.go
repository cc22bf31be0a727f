package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/tether/internal/errors"
)

// Duration is a time.Duration written as a string such as "100ms" in both
// config formats. JSON also accepts a bare number of nanoseconds.
type Duration time.Duration

// String returns the duration in time.Duration notation.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*d = Duration(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &fieldError{code: "T102", msg: fmt.Sprintf("duration must be a string, got %s", data)}
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return &fieldError{code: "T102", msg: fmt.Sprintf("invalid duration %q", s)}
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return &fieldError{code: "T102", msg: "duration must be a scalar", line: node.Line, column: node.Column}
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return &fieldError{
			code:   "T102",
			msg:    fmt.Sprintf("invalid duration %q", node.Value),
			line:   node.Line,
			column: node.Column,
		}
	}
	*d = Duration(parsed)
	return nil
}

// fieldError is returned by custom unmarshalers so the loader can attach
// a code and file position.
type fieldError struct {
	code         string
	msg          string
	line, column int
}

func (e *fieldError) Error() string {
	if e.line > 0 {
		return fmt.Sprintf("line %d: %s", e.line, e.msg)
	}
	return e.msg
}

// LogLevel returns the slog level named by Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.New("T111").WithDetailf("got %q", c.Log.Level)
	}
}

// Logger builds the process logger described by Log, writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
