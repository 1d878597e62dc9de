// Command tsdpd runs a transport SDPD simulation headless.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pthm-cable/tsdpd/config"
	"github.com/pthm-cable/tsdpd/sim"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Uint64("seed", 0, "RNG seed (0 = use config)")
	steps := flag.Int("steps", -1, "Number of steps (-1 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, config and snapshots")
	restore := flag.String("restore", "", "Snapshot file to continue from")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (empty = use config)")
	logStats := flag.Bool("log-stats", true, "Output stats via slog")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}
	if *steps >= 0 {
		cfg.Simulation.Steps = *steps
	}
	if *metricsAddr != "" {
		cfg.Telemetry.MetricsAddr = *metricsAddr
	}

	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
		defer srv.Close()
		slog.Info("serving metrics", "addr", addr)
	}

	s, err := sim.New(cfg, sim.Options{
		OutputDir: *outputDir,
		Restore:   *restore,
		LogStats:  *logStats,
	})
	if err != nil {
		slog.Error("failed to set up simulation", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting simulation",
		"seed", cfg.Simulation.Seed,
		"steps", cfg.Simulation.Steps,
		"dt", cfg.Simulation.DT,
	)
	runErr := s.Run(ctx, cfg.Simulation.Steps)
	if err := s.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("simulation failed", "error", runErr)
		os.Exit(1)
	}
}
