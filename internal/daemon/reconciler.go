package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/palettehost/internal/host"
)

// Recoverer reconciles palette controllers with the native windows.
type Recoverer interface {
	Recover(ctx context.Context) (host.RecoverReport, error)
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	// Interval between passes; zero or negative disables the periodic loop.
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically checks for drift between controllers and native
// windows and corrects it.
type Reconciler struct {
	interval  time.Duration
	recoverer Recoverer
	logger    *slog.Logger

	// mu serialises passes started by the loop and by ReconcileNow.
	mu sync.Mutex
}

// NewReconciler creates a new reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, recoverer Recoverer) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		interval:  cfg.Interval,
		recoverer: recoverer,
		logger:    logger,
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("periodic reconcile disabled")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.reconcile(ctx); err != nil {
				r.logger.Warn("reconcile pass failed", "error", err)
			}
		}
	}
}

// ReconcileNow runs a pass immediately.
func (r *Reconciler) ReconcileNow(ctx context.Context) (host.RecoverReport, error) {
	return r.reconcile(ctx)
}

func (r *Reconciler) reconcile(ctx context.Context) (report host.RecoverReport, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A panicking bridge must not take the daemon down.
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("reconciler panic recovered", "panic", p)
			err = fmt.Errorf("reconcile panicked: %v", p)
		}
	}()

	report, err = r.recoverer.Recover(ctx)
	if len(report.Destroyed) > 0 {
		r.logger.Info("reconciler destroyed orphan palettes", "palettes", report.Destroyed)
	}
	return report, err
}
