// Command homewatchd runs the liveness monitoring daemon: the probe/monitor
// cycle, the notification delivery loop, the retention sweeper, and the admin
// HTTP surface (REST API, WebSocket event feed, Prometheus metrics).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/homewatch/homewatch/internal/api"
	"github.com/homewatch/homewatch/internal/config"
	"github.com/homewatch/homewatch/internal/maintenance"
	"github.com/homewatch/homewatch/internal/metrics"
	"github.com/homewatch/homewatch/internal/monitor"
	"github.com/homewatch/homewatch/internal/notify"
	"github.com/homewatch/homewatch/internal/probe"
	"github.com/homewatch/homewatch/internal/store"
	"github.com/homewatch/homewatch/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Log.Level))
	slog.SetDefault(newLogger(cfg.Log.Format, level))

	slog.Info("homewatchd starting",
		"config", *configPath,
		"http_port", cfg.HTTPPort,
		"probe_mode", cfg.Probe.Mode,
		"monitor_interval", cfg.Monitor.Interval.Std(),
		"delivery_interval", cfg.Delivery.Interval.Std(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Storage failures are not fatal: the daemon comes up degraded so the
	// health endpoint stays reachable while the operator fixes the disk.
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database, running degraded",
			"path", cfg.Database.Path, "err", err)
		st = nil
	}

	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		slog.Error("failed to register metrics", "err", err)
		os.Exit(1)
	}

	var pr probe.Probe
	switch cfg.Probe.Mode {
	case "static":
		pr = probe.NewStaticProbe(nil)
	default:
		pr = probe.NewDockerProbe(cfg.Probe.DockerHost, cfg.Probe.Timeout.Std())
	}

	tracker := monitor.NewMemoryTracker()
	driver := monitor.NewDriver(st, monitor.NewEvaluator(pr), tracker, cfg.Monitor.Interval.Std())
	go driver.Run(ctx)

	registry := notify.NewRegistry(cfg.Delivery.SendTimeout.Std())
	dispatcher := notify.NewDispatcher(st, registry, cfg.Delivery.BatchSize, cfg.Delivery.Interval.Std())
	go dispatcher.Run(ctx)

	sweeper := maintenance.NewSweeper(st, cfg.Retention.Days)
	go sweeper.Run(ctx)

	hub := ws.New(st, 5*time.Second)
	go hub.Run(ctx)

	// Live reload: interval and log level changes apply without a restart.
	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			driver.SetInterval(next.Monitor.Interval.Std())
			dispatcher.SetInterval(next.Delivery.Interval.Std())
			level.Set(parseLevel(next.Log.Level))
			slog.Info("config reloaded",
				"monitor_interval", next.Monitor.Interval.Std(),
				"delivery_interval", next.Delivery.Interval.Std(),
				"log_level", next.Log.Level,
			)
		})
		if err != nil {
			slog.Warn("config watch unavailable", "err", err)
		}
	}()

	root := mux.NewRouter()
	root.PathPrefix("/api/").Handler(api.New(st, driver))
	root.Handle("/ws/events", hub)
	root.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handlers.LoggingHandler(os.Stdout, root),
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("homewatchd shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

func newLogger(format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
