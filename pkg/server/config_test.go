package server

import (
	"testing"
	"time"

	"github.com/vango-dev/tether/pkg/vdom"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()

	if cfg.Address != ":8080" {
		t.Errorf("Address = %q, want :8080", cfg.Address)
	}
	if cfg.Mode != ModePerBrowser {
		t.Errorf("Mode = %v, want per-browser", cfg.Mode)
	}
	if cfg.CookieName != DefaultCookieName {
		t.Errorf("CookieName = %q, want %q", cfg.CookieName, DefaultCookieName)
	}
	if cfg.SessionConfig.UpdateInterval != 100*time.Millisecond {
		t.Errorf("UpdateInterval = %v, want 100ms", cfg.SessionConfig.UpdateInterval)
	}
	if cfg.SessionConfig.FindBudget != vdom.DefaultFindBudget {
		t.Errorf("FindBudget = %d, want %d", cfg.SessionConfig.FindBudget, vdom.DefaultFindBudget)
	}
	if cfg.EnableMetrics {
		t.Error("EnableMetrics = true, want false")
	}
}

func TestServerConfigChaining(t *testing.T) {
	sc := DefaultSessionConfig()
	cfg := DefaultServerConfig().
		WithAddress(":9000").
		WithTitle("demo").
		WithMode(ModeShared).
		WithSessionConfig(sc).
		WithMaxSessions(7).
		WithMetrics(true)

	if cfg.Address != ":9000" || cfg.Title != "demo" || cfg.Mode != ModeShared ||
		cfg.SessionConfig != sc || cfg.MaxSessions != 7 || !cfg.EnableMetrics {
		t.Errorf("chained config = %+v", cfg)
	}
}

func TestServerConfigClone(t *testing.T) {
	orig := DefaultServerConfig()
	clone := orig.Clone()
	clone.Address = ":1"
	clone.SessionConfig.UpdateInterval = time.Second

	if orig.Address == ":1" {
		t.Error("Clone shares Address")
	}
	if orig.SessionConfig.UpdateInterval == time.Second {
		t.Error("Clone shares SessionConfig")
	}

	var nilCfg *ServerConfig
	if nilCfg.Clone() != nil {
		t.Error("nil Clone() != nil")
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := (&ServerConfig{
		Address:       ":7000",
		SessionConfig: &SessionConfig{IdleTimeout: 0, UpdateInterval: -1},
	}).withDefaults()

	if cfg.Address != ":7000" {
		t.Errorf("Address = %q, want :7000", cfg.Address)
	}
	if cfg.Title != "tether" {
		t.Errorf("Title = %q, want tether", cfg.Title)
	}
	if cfg.MetricsPath != "/metrics" {
		t.Errorf("MetricsPath = %q, want /metrics", cfg.MetricsPath)
	}
	if cfg.SessionConfig.UpdateInterval != 100*time.Millisecond {
		t.Errorf("UpdateInterval = %v, want 100ms", cfg.SessionConfig.UpdateInterval)
	}
	if cfg.SessionConfig.IdleTimeout != 0 {
		t.Errorf("IdleTimeout = %v, want 0 kept", cfg.SessionConfig.IdleTimeout)
	}
	if cfg.SessionConfig.MaxMessageSize != 64*1024 {
		t.Errorf("MaxMessageSize = %d, want 65536", cfg.SessionConfig.MaxMessageSize)
	}

	var nilCfg *ServerConfig
	if got := nilCfg.withDefaults(); got.Address != ":8080" {
		t.Errorf("nil withDefaults().Address = %q, want :8080", got.Address)
	}
}

func TestSessionModeString(t *testing.T) {
	tests := []struct {
		mode SessionMode
		want string
	}{
		{ModePerBrowser, "per-browser"},
		{ModeShared, "shared"},
		{SessionMode(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("SessionMode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}
