package input

import (
	"log/slog"
	"sync"

	"github.com/1broseidon/palettehost/internal/platform"
)

// DismissCoordinator routes "please dismiss" requests to the callback
// registered for a window, falling back to a global callback when none is set.
type DismissCoordinator struct {
	mu        sync.Mutex
	callbacks map[platform.WindowID]func()
	fallback  func(platform.WindowID)
	logger    *slog.Logger
}

// NewDismissCoordinator creates an empty coordinator.
func NewDismissCoordinator(logger *slog.Logger) *DismissCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &DismissCoordinator{
		callbacks: make(map[platform.WindowID]func()),
		logger:    logger,
	}
}

// Register installs the dismiss callback for id, replacing any previous one.
func (d *DismissCoordinator) Register(id platform.WindowID, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks[id] = fn
}

// Unregister removes the callback for id.
func (d *DismissCoordinator) Unregister(id platform.WindowID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.callbacks, id)
}

// SetFallback installs the legacy global callback used for windows without a
// registered callback. Pass nil to remove it.
func (d *DismissCoordinator) SetFallback(fn func(platform.WindowID)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = fn
}

// Request asks the owner of id to dismiss it. It returns false when nobody
// handled the request; such requests are dropped.
func (d *DismissCoordinator) Request(id platform.WindowID) bool {
	d.mu.Lock()
	fn := d.callbacks[id]
	fallback := d.fallback
	d.mu.Unlock()

	switch {
	case fn != nil:
		fn()
		return true
	case fallback != nil:
		fallback(id)
		return true
	default:
		d.logger.Debug("dismiss request dropped", "window", id)
		return false
	}
}
