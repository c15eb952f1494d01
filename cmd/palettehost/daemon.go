package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1broseidon/palettehost/internal/config"
	"github.com/1broseidon/palettehost/internal/daemon"
	"github.com/1broseidon/palettehost/internal/host"
	"github.com/1broseidon/palettehost/internal/input"
	"github.com/1broseidon/palettehost/internal/ipc"
	"github.com/1broseidon/palettehost/internal/metrics"
	"github.com/1broseidon/palettehost/internal/palette"
	"github.com/1broseidon/palettehost/internal/platform"
)

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path (default: ~/.config/palettehost/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: palettehost daemon [--config PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run the palette host in the foreground.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	var level slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg := res.Config
	level.Set(parseLogLevel(cfg.LogLevel))
	logger.Info("configuration loaded", "files", len(res.Files), "palettes", len(cfg.Palettes))

	disp, err := openDisplay(cfg, logger)
	if err != nil {
		logger.Error("failed to open display", "error", err)
		return 1
	}
	defer disp.Close()
	go disp.Run()

	m, stopMetrics, err := startMetrics(cfg.Daemon.MetricsAddr, logger)
	if err != nil {
		logger.Error("failed to start metrics", "error", err)
		return 1
	}
	defer stopMetrics()

	h, err := host.New(disp.Bridge(),
		host.WithLogger(logger),
		host.WithMetrics(m),
		host.WithRouterOptions(
			input.WithClickDedup(cfg.ClickDedupWindow(), cfg.Input.ClickDedupDistancePx),
			input.WithShowGuardTTL(cfg.ShowGuardTTL()),
			input.WithRestoreMode(cfg.RestoreMode()),
		),
		host.WithPalettes(cfg.RuntimePalettes()),
	)
	if err != nil {
		logger.Error("failed to start host", "error", err)
		return 1
	}
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disp.EnableHotkeys(func(id platform.WindowID) {
		if _, err := h.Palette(id).Toggle(ctx, palette.ShowOptions{}); err != nil {
			logger.Warn("hotkey toggle failed", "palette", id, "error", err)
		}
	})

	cs := daemon.NewConfigSync(*path, h, logger)
	cs.OnReload(func(c *config.Config) {
		level.Set(parseLogLevel(c.LogLevel))
		if err := disp.BindHotkeys(c.Hotkeys()); err != nil {
			logger.Warn("some hotkeys were not bound", "error", err)
		}
	})
	if err := cs.Reload(); err != nil {
		logger.Error("initial config apply failed", "error", err)
		return 1
	}

	reconciler := daemon.NewReconciler(daemon.ReconcilerConfig{
		Interval: cfg.ReconcileInterval(),
		Logger:   logger,
	}, h)
	if cfg.Daemon.RecoverOnStart {
		// Adopt or clean up windows left behind by a previous daemon.
		if _, err := reconciler.ReconcileNow(ctx); err != nil {
			logger.Warn("startup recovery failed", "error", err)
		}
	}
	go reconciler.Run(ctx)

	if cfg.Daemon.WatchConfig {
		watcher, err := startWatcher(ctx, cs, logger)
		if err != nil {
			logger.Warn("config watching disabled", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	ipcServer, err := ipc.NewServer(h, cs.Reload, logger)
	if err != nil {
		logger.Error("failed to create IPC server", "error", err)
		return 1
	}
	if err := ipcServer.Start(); err != nil {
		logger.Error("failed to start IPC server", "error", err)
		return 1
	}
	defer ipcServer.Stop()

	logger.Info("palettehost daemon started", "socket", ipcServer.SocketPath())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			logger.Info("received SIGHUP, reloading config")
			_ = cs.Reload()
			continue
		}
		logger.Info("shutting down", "signal", sig.String())
		return 0
	}
	return 0
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startMetrics serves Prometheus metrics on addr. An empty addr disables the
// endpoint and returns nil metrics, which record nothing.
func startMetrics(addr string, logger *slog.Logger) (*metrics.Metrics, func(), error) {
	if addr == "" {
		return nil, func() {}, nil
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return m, stop, nil
}

// startWatcher reloads the config whenever one of its files changes. Newly
// included files are picked up after each reload.
func startWatcher(ctx context.Context, cs *daemon.ConfigSync, logger *slog.Logger) (*daemon.Watcher, error) {
	w, err := daemon.NewWatcher(func() { _ = cs.Reload() }, 0, logger)
	if err != nil {
		return nil, err
	}

	files := cs.Files()
	if p, err := cs.Path(); err == nil {
		files = append(files, p)
	}
	if err := w.Watch(files...); err != nil {
		w.Close()
		return nil, err
	}
	cs.OnReload(func(*config.Config) {
		if err := w.Watch(cs.Files()...); err != nil {
			logger.Warn("failed to watch config files", "error", err)
		}
	})

	go w.Run(ctx)
	return w, nil
}
