// Package host is the composition root of the palette coordinator. A Host owns
// the native bridge, the input router, and one palette controller per window id.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/1broseidon/palettehost/internal/input"
	"github.com/1broseidon/palettehost/internal/metrics"
	"github.com/1broseidon/palettehost/internal/notify"
	"github.com/1broseidon/palettehost/internal/palette"
	"github.com/1broseidon/palettehost/internal/platform"
	"github.com/1broseidon/palettehost/internal/position"
)

// Bridge protocol versions this host can drive.
const (
	MinProtocolVersion = 1
	MaxProtocolVersion = 1
)

var (
	// ErrUnknownPalette is returned when an operation names a palette that was
	// never declared or created.
	ErrUnknownPalette = errors.New("unknown palette")
	// ErrIncompatibleBridge is returned by New for bridges speaking an
	// unsupported protocol version.
	ErrIncompatibleBridge = errors.New("incompatible native bridge")
)

// Status is a point-in-time view of one palette.
type Status struct {
	ID      platform.WindowID `json:"id"`
	Visible bool              `json:"visible"`
	Warm    bool              `json:"warm"`
	Frozen  bool              `json:"frozen"`
	Group   string            `json:"group,omitempty"`
	Focused bool              `json:"focused"`
	Frame   platform.Rect     `json:"frame"`
}

// Host wires the coordinator together.
type Host struct {
	bridge   platform.Bridge
	router   *input.Router
	resolver *position.Resolver
	logger   *slog.Logger
	metrics  *metrics.Metrics
	caps     platform.Capabilities

	mu          sync.Mutex
	controllers map[platform.WindowID]*palette.Controller
	declared    map[platform.WindowID]palette.Config

	messages notify.Feed[Message]
	unwatch  func()
}

type options struct {
	logger     *slog.Logger
	metrics    *metrics.Metrics
	routerOpts []input.Option
	palettes   map[platform.WindowID]palette.Config
}

// Option configures a Host.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithMetrics attaches coordinator metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithRouterOptions passes extra options to the input router.
func WithRouterOptions(opts ...input.Option) Option {
	return func(o *options) { o.routerOpts = append(o.routerOpts, opts...) }
}

// WithPalettes declares palettes and their configurations up front.
func WithPalettes(p map[platform.WindowID]palette.Config) Option {
	return func(o *options) { o.palettes = p }
}

// New creates a host driving bridge. The bridge's protocol version must be in
// [MinProtocolVersion, MaxProtocolVersion].
func New(bridge platform.Bridge, opts ...Option) (*Host, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	caps := bridge.Capabilities()
	if caps.ProtocolVersion < MinProtocolVersion || caps.ProtocolVersion > MaxProtocolVersion {
		return nil, fmt.Errorf("%w: %s protocol %d (supported %d..%d)",
			ErrIncompatibleBridge, caps.Platform, caps.ProtocolVersion, MinProtocolVersion, MaxProtocolVersion)
	}

	routerOpts := append([]input.Option{input.WithLogger(o.logger), input.WithMetrics(o.metrics)}, o.routerOpts...)
	h := &Host{
		bridge:      bridge,
		router:      input.NewRouter(bridge, routerOpts...),
		resolver:    position.NewResolver(bridge, caps.YAxisUp, o.logger),
		logger:      o.logger,
		metrics:     o.metrics,
		caps:        caps,
		controllers: make(map[platform.WindowID]*palette.Controller),
		declared:    make(map[platform.WindowID]palette.Config),
	}
	for id, cfg := range o.palettes {
		h.declared[id] = cfg
	}
	h.unwatch = bridge.Watch(h.handleEvent)

	h.logger.Info("palette host ready", "platform", caps.Platform, "protocol", caps.ProtocolVersion,
		"declared", len(h.declared))
	return h, nil
}

// Close stops watching native events.
func (h *Host) Close() {
	if h.unwatch != nil {
		h.unwatch()
	}
}

// Router returns the host's input router.
func (h *Host) Router() *input.Router { return h.router }

// Capabilities returns the native bridge's capability descriptor.
func (h *Host) Capabilities() platform.Capabilities { return h.caps }

// Declare registers (or replaces) the configuration of id. An existing
// controller picks it up on its next show.
func (h *Host) Declare(id platform.WindowID, cfg palette.Config) {
	h.mu.Lock()
	h.declared[id] = cfg
	c := h.controllers[id]
	h.mu.Unlock()
	if c != nil {
		c.SetConfig(cfg)
	}
}

// Undeclare drops the declaration of id. A controller that already exists
// keeps its last configuration and stays known.
func (h *Host) Undeclare(id platform.WindowID) {
	h.mu.Lock()
	delete(h.declared, id)
	h.mu.Unlock()
}

// DeclaredIDs lists declared palettes in id order.
func (h *Host) DeclaredIDs() []platform.WindowID {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]platform.WindowID, 0, len(h.declared))
	for id := range h.declared {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Declared reports whether id was declared.
func (h *Host) Declared(id platform.WindowID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.declared[id]
	return ok
}

// Palette returns the controller for id, creating it on first access.
func (h *Host) Palette(id platform.WindowID) *palette.Controller {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.controllers[id]; ok {
		return c
	}
	cfg, ok := h.declared[id]
	if !ok {
		cfg = palette.DefaultConfig()
	}
	c := palette.NewController(id, palette.Deps{
		Native:   h.bridge,
		Router:   h.router,
		Resolver: h.resolver,
		Logger:   h.logger,
		Metrics:  h.metrics,
	}, cfg)
	h.controllers[id] = c
	return c
}

// Lookup returns the controller for id without creating one.
func (h *Host) Lookup(id platform.WindowID) (*palette.Controller, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.controllers[id]
	return c, ok
}

// IsVisible reports whether id has a controller and is visible.
func (h *Host) IsVisible(id platform.WindowID) bool {
	c, ok := h.Lookup(id)
	return ok && c.IsVisible()
}

func (h *Host) known(id platform.WindowID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, declared := h.declared[id]
	_, created := h.controllers[id]
	return declared || created
}

func (h *Host) snapshotControllers() []*palette.Controller {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*palette.Controller, 0, len(h.controllers))
	for _, c := range h.controllers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// FocusMainWindow gives keyboard focus back to the host application's main
// window.
func (h *Host) FocusMainWindow(ctx context.Context) error {
	if h.router.Focused() == input.HostFocused() {
		return h.bridge.ActivateMainWindow(ctx)
	}
	return h.router.SetFocus(ctx, input.HostFocused(), input.RestoreMainWindow)
}

// Dismiss hides id. Unlike lookups it fails for ids that were never declared
// or created.
func (h *Host) Dismiss(ctx context.Context, id platform.WindowID) error {
	if !h.known(id) {
		return fmt.Errorf("dismiss %s: %w", id, ErrUnknownPalette)
	}
	c, ok := h.Lookup(id)
	if !ok {
		return nil
	}
	return c.Hide(ctx, palette.HideOptions{})
}

// HideAll hides every visible palette except the listed ids. Excepted ids
// must be known.
func (h *Host) HideAll(ctx context.Context, except ...platform.WindowID) error {
	keep := make(map[platform.WindowID]struct{}, len(except))
	for _, id := range except {
		if !h.known(id) {
			return fmt.Errorf("hide all except %s: %w", id, ErrUnknownPalette)
		}
		keep[id] = struct{}{}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range h.snapshotControllers() {
		if _, skip := keep[c.ID()]; skip || !c.IsVisible() {
			continue
		}
		c := c
		g.Go(func() error {
			return c.Hide(gctx, palette.HideOptions{})
		})
	}
	return g.Wait()
}

// Status lists every created or declared palette in id order.
func (h *Host) Status() []Status {
	focus := h.router.Focused()

	h.mu.Lock()
	ids := make(map[platform.WindowID]struct{}, len(h.declared)+len(h.controllers))
	for id := range h.declared {
		ids[id] = struct{}{}
	}
	for id := range h.controllers {
		ids[id] = struct{}{}
	}
	h.mu.Unlock()

	out := make([]Status, 0, len(ids))
	for id := range ids {
		s := Status{ID: id, Focused: focus.IsPalette(id)}
		if c, ok := h.Lookup(id); ok {
			s.Visible = c.IsVisible()
			s.Warm = c.IsWarm()
			s.Frozen = c.IsFrozen()
			s.Group = c.Config().Behavior.Group
			s.Frame = c.Frame()
		} else {
			h.mu.Lock()
			s.Group = h.declared[id].Behavior.Group
			h.mu.Unlock()
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// handleEvent reacts to native lifecycle notifications. Work that takes a
// controller's slot runs on its own goroutine so the native event loop is
// never blocked.
func (h *Host) handleEvent(ev platform.Event) {
	c, ok := h.Lookup(ev.ID)
	if !ok {
		h.logger.Debug("native event for unknown palette", "kind", ev.Kind, "palette", ev.ID)
		return
	}

	switch ev.Kind {
	case platform.EventHidden:
		if !c.IsVisible() {
			return
		}
		go func() {
			if err := c.Hide(context.Background(), palette.HideOptions{}); err != nil {
				h.logger.Warn("hide after native hide failed", "palette", ev.ID, "error", err)
			}
		}()
	case platform.EventClosed:
		go func() {
			if err := c.NativeClosed(context.Background()); err != nil {
				h.logger.Warn("native close handling failed", "palette", ev.ID, "error", err)
			}
		}()
	case platform.EventShown, platform.EventContentReady, platform.EventKeyUp:
		h.logger.Debug("native event", "kind", ev.Kind, "palette", ev.ID)
	}
}
