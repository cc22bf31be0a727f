package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/tether/internal/config"
	"github.com/vango-dev/tether/internal/errors"
	"github.com/vango-dev/tether/pkg/middleware"
	"github.com/vango-dev/tether/pkg/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo application",
		Long: `Serve a small demo tree: a counter, a name field, a clock and a
server-rendered badge image.

Settings come from --config, else tether.yaml, tether.yml or tether.json
in the working directory, else defaults. Flags override the file.

Examples:
  tether serve
  tether serve --addr=:3000 --shared
  tether serve --config=deploy/tether.yaml --metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("config", "c", "", "Config file (default: tether.yaml in the working directory)")
	flags.StringP("addr", "a", "", "Address to listen on")
	flags.Bool("shared", false, "Serve one session to every visitor")
	flags.DurationP("interval", "i", 0, "Time between ticks")
	flags.Bool("metrics", false, "Expose Prometheus metrics")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")

	return cmd
}

// resolveConfig loads the config file and applies the flags that were set.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	var (
		cfg *config.Config
		err error
	)
	path, _ := flags.GetString("config")
	switch {
	case path != "":
		cfg, err = config.LoadFile(path)
	case config.Exists("."):
		cfg, err = config.Load(".")
	default:
		cfg = config.New()
	}
	if err != nil {
		return nil, err
	}

	if flags.Changed("addr") {
		cfg.Address, _ = flags.GetString("addr")
	}
	if flags.Changed("shared") {
		cfg.Mode = config.ModePerBrowser
		if shared, _ := flags.GetBool("shared"); shared {
			cfg.Mode = config.ModeShared
		}
	}
	if flags.Changed("interval") {
		interval, _ := flags.GetDuration("interval")
		if interval <= 0 {
			return nil, errors.New("T401").
				WithDetailf("--interval must be positive, got %s", interval)
		}
		cfg.Session.UpdateInterval = config.Duration(interval)
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled, _ = flags.GetBool("metrics")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newServer builds the demo server described by cfg.
func newServer(cfg *config.Config) (*server.Server, error) {
	sc, err := cfg.ToServerConfig()
	if err != nil {
		return nil, err
	}

	srv := server.New(sc, demoApp(time.Now))
	srv.Use(middleware.OpenTelemetry())

	if reg := srv.Registry(); reg != nil {
		srv.Use(middleware.Prometheus(middleware.WithRegistry(reg)))
		srv.Sessions().SetOnSessionCreate(middleware.RecordSessionCreate)
		srv.Sessions().SetOnSessionClose(middleware.RecordSessionClose)
	}
	return srv, nil
}

func runServe(cfg *config.Config) error {
	slog.SetDefault(cfg.Logger(os.Stderr))

	srv, err := newServer(cfg)
	if err != nil {
		return err
	}

	printBanner()
	info("Listening on %s (%s sessions)", cfg.Address, cfg.Mode)
	if cfg.Metrics.Enabled {
		info("Metrics at %s", cfg.Metrics.Path)
	}
	if path := cfg.Path(); path != "" {
		info("Config from %s", path)
	}
	info("")

	if err := srv.Run(); err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return errors.New("T305").Wrap(err)
		}
		return errors.New("T204").WithDetailf("listening on %s", cfg.Address).Wrap(err)
	}
	return nil
}
