package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/vango-dev/frp/internal/config"
	"github.com/vango-dev/frp/internal/errors"
	"github.com/vango-dev/frp/pkg/frp"
	"github.com/vango-dev/frp/pkg/server"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		demoName   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a demo graph over websockets",
		Long: `Serve a demo graph to websocket clients.

Configuration is read from --config, or from frp.json, frp.yaml or
frp.yml in the working directory. Without a file the defaults apply.

Endpoints:
  /ws          websocket bridge
  /graph       graph snapshot as JSON
  /graph.dot   graph snapshot as Graphviz
  /healthz     liveness
  /metrics     Prometheus metrics (when enabled)

Examples:
  frp serve
  frp serve --demo mouse --addr :9090
  frp serve --config deploy/frp.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			d, err := lookupDemo(demoName)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, d)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: frp.json, frp.yaml or frp.yml)")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides server.addr)")
	cmd.Flags().StringVarP(&demoName, "demo", "d", "counter", "Demo graph to serve")

	return cmd
}

// loadConfig reads path, or the working directory when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	dir, err := os.Getwd()
	if err != nil {
		return nil, errors.FromError(err, "E301")
	}
	return config.LoadFromDir(dir)
}

// serverOptions maps the server section of cfg onto server.Options.
func serverOptions(cfg *config.Config, logger *slog.Logger) server.Options {
	return server.Options{
		Addr:            cfg.Server.Addr,
		ReadBufferSize:  cfg.Server.ReadBufferSize,
		WriteBufferSize: cfg.Server.WriteBufferSize,
		ReadTimeout:     cfg.Server.ReadTimeoutDuration(),
		InputRate:       rate.Limit(cfg.Server.InputRate),
		InputBurst:      cfg.Server.InputBurst,
		Window:          cfg.Server.Window,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		MetricsPath:     cfg.Metrics.Path,
		Logger:          logger,
	}
}

func runServe(ctx context.Context, cfg *config.Config, d demo) error {
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	if cfg.Name != "" {
		logger = logger.With("service", cfg.Name)
	}

	rt := frp.NewRuntime(frp.WithLogger(logger), frp.WithBudget(cfg.Budget.Budget()))
	opts := serverOptions(cfg, logger)

	// The server does not exist yet when the metrics are registered, so
	// stats goes through srv once it is assigned.
	var srv *server.Server
	stats := func() (frp.Stats, error) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		var st frp.Stats
		err := srv.Loop().Do(ctx, func(rt *frp.Runtime) error {
			st = rt.Stats()
			return nil
		})
		if err != nil {
			logger.Debug("runtime stats unavailable", "error", err)
		}
		return st, err
	}

	tel, err := newTelemetry(cfg, logger, os.Stdout, stats)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()
	rt.Use(tel.middleware...)
	if tel.registry != nil {
		opts.Gatherer = tel.registry
		opts.Registerer = tel.registry
	}

	srv = server.New(rt, opts)
	d.install(srv)

	printBanner()
	info("demo     %s", d.Name)
	info("address  %s", cfg.Server.Addr)
	if cfg.Metrics.Enabled {
		info("metrics  %s", cfg.Metrics.Path)
	}
	fmt.Println()

	if err := srv.Run(ctx); err != nil {
		return errors.New("E404").Wrap(err)
	}
	success("Server stopped")
	return nil
}
