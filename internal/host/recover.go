package host

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/1broseidon/palettehost/internal/platform"
)

// RecoverReport summarises one Recover pass.
type RecoverReport struct {
	Synced    []platform.WindowID `json:"synced"`
	Destroyed []platform.WindowID `json:"destroyed"`
}

// Recover reconciles controllers with the native windows that exist right
// now. Windows with a known id are synced into their controller; windows no
// controller or declaration claims are orphans and get destroyed.
func (h *Host) Recover(ctx context.Context) (RecoverReport, error) {
	var report RecoverReport

	snapshot, err := h.bridge.Snapshot(ctx)
	if err != nil {
		return report, fmt.Errorf("snapshot native windows: %w", err)
	}

	ids := make([]platform.WindowID, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var errs []error
	for _, id := range ids {
		if !h.known(id) {
			if err := h.bridge.DestroyWindow(ctx, id); err != nil && !errors.Is(err, platform.ErrWindowNotFound) {
				errs = append(errs, fmt.Errorf("destroy orphan %s: %w", id, err))
				continue
			}
			h.logger.Info("destroyed orphan palette window", "palette", id)
			h.metrics.Recovered("orphan")
			report.Destroyed = append(report.Destroyed, id)
			continue
		}

		if err := h.Palette(id).SyncFromNative(ctx, snapshot[id]); err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", id, err))
			continue
		}
		h.metrics.Recovered("synced")
		report.Synced = append(report.Synced, id)
	}

	h.logger.Debug("recover finished", "synced", len(report.Synced), "destroyed", len(report.Destroyed))
	return report, errors.Join(errs...)
}
