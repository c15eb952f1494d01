package input

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/1broseidon/palettehost/internal/platform"
)

// Two click-outside reports closer than both limits are one physical click.
const (
	DefaultClickDedupWindow   = 50 * time.Millisecond
	DefaultClickDedupDistance = 5.0 // pixels
)

// ClickOutcome is what the handler did with a click-outside notification.
type ClickOutcome string

// Outcomes, also used as the click metric label.
const (
	OutcomeSibling   ClickOutcome = "sibling"
	OutcomeDuplicate ClickOutcome = "duplicate"
	OutcomeDismiss   ClickOutcome = "dismiss"
	OutcomeUnfocus   ClickOutcome = "unfocus"
	OutcomeBlock     ClickOutcome = "block"
	OutcomeIgnored   ClickOutcome = "ignored"
)

type physicalClick struct {
	pos platform.Point
	at  time.Time
}

// ClickOutsideHandler turns one physical click, reported once per capturing
// window by the native layer, into at most one action per window.
type ClickOutsideHandler struct {
	mu       sync.Mutex
	last     *physicalClick
	notified map[platform.WindowID]struct{}

	window   time.Duration
	distance float64
	now      func() time.Time

	guard   *ShowGuard
	dismiss *DismissCoordinator
	unfocus func()
	logger  *slog.Logger
}

// ClickOutsideConfig tunes deduplication.
type ClickOutsideConfig struct {
	Window   time.Duration
	Distance float64
	Now      func() time.Time
	Logger   *slog.Logger
}

// NewClickOutsideHandler wires the handler to the guard, the dismiss
// coordinator, and an unfocus action (normally Router.SetFocus(HostFocused)).
func NewClickOutsideHandler(cfg ClickOutsideConfig, guard *ShowGuard, dismiss *DismissCoordinator, unfocus func()) *ClickOutsideHandler {
	if cfg.Window <= 0 {
		cfg.Window = DefaultClickDedupWindow
	}
	if cfg.Distance <= 0 {
		cfg.Distance = DefaultClickDedupDistance
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ClickOutsideHandler{
		notified: make(map[platform.WindowID]struct{}),
		window:   cfg.Window,
		distance: cfg.Distance,
		now:      cfg.Now,
		guard:    guard,
		dismiss:  dismiss,
		unfocus:  unfocus,
		logger:   cfg.Logger,
	}
}

// Handle processes one click-outside report for id and applies policy.
func (h *ClickOutsideHandler) Handle(id platform.WindowID, policy ClickPolicy, scope ClickScope, pos platform.Point, sibling platform.WindowID) ClickOutcome {
	if scope == ScopeNonPalette && sibling != "" {
		return OutcomeSibling
	}

	if !h.markNotified(id, pos) {
		h.logger.Debug("click-outside deduplicated", "window", id, "x", pos.X, "y", pos.Y)
		return OutcomeDuplicate
	}

	switch policy {
	case ClickDismiss:
		h.guard.MarkDismissed(id)
		h.dismiss.Request(id)
		return OutcomeDismiss
	case ClickUnfocus:
		if h.unfocus != nil {
			h.unfocus()
		}
		return OutcomeUnfocus
	case ClickBlock:
		return OutcomeBlock
	default:
		return OutcomeIgnored
	}
}

// markNotified records id for the click at pos and reports whether this is
// the first report for id of that physical click.
func (h *ClickOutsideHandler) markNotified(id platform.WindowID, pos platform.Point) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if h.sameClick(pos, now) {
		if _, seen := h.notified[id]; seen {
			return false
		}
	} else {
		h.last = &physicalClick{pos: pos, at: now}
		h.notified = make(map[platform.WindowID]struct{})
	}
	h.notified[id] = struct{}{}
	return true
}

func (h *ClickOutsideHandler) sameClick(pos platform.Point, now time.Time) bool {
	if h.last == nil {
		return false
	}
	dt := now.Sub(h.last.at)
	if dt < 0 {
		dt = -dt
	}
	dist := math.Hypot(float64(pos.X-h.last.pos.X), float64(pos.Y-h.last.pos.Y))
	return dt < h.window && dist < h.distance
}
