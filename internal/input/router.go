// Package input is the process-wide authority over palette input: which
// window owns keyboard focus, which keys each window wants, and what a click
// outside a window does.
package input

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/palettehost/internal/metrics"
	"github.com/1broseidon/palettehost/internal/notify"
	"github.com/1broseidon/palettehost/internal/platform"
)

var (
	// ErrEmptyWindowID is returned when registering a window without an id.
	ErrEmptyWindowID = errors.New("window id is empty")
	// ErrNotRegistered is returned when focusing a window the router does not
	// track.
	ErrNotRegistered = errors.New("window is not registered")
)

// Native is the subset of the native bridge the router drives.
type Native interface {
	platform.InputCapture
	platform.Focuser
	platform.Events
}

type entry struct {
	id       platform.WindowID
	behavior Behavior
	frozen   bool
	cancels  []func()
}

func (e *entry) capturesPointer() bool {
	return e.behavior.ClickOutside != ClickPassthrough
}

func (e *entry) unsubscribe() {
	for _, cancel := range e.cancels {
		cancel()
	}
	e.cancels = nil
}

// Router tracks registered windows, the focused entity, and routes key events.
type Router struct {
	native  Native
	logger  *slog.Logger
	metrics *metrics.Metrics
	restore RestoreMode

	guard   *ShowGuard
	dismiss *DismissCoordinator
	clicks  *ClickOutsideHandler

	mu      sync.Mutex
	entries map[platform.WindowID]*entry
	order   []platform.WindowID
	focus   Focus

	focusFeed notify.Feed[Focus]
	keyFeed   notify.Feed[platform.KeyEvent]
}

type routerOptions struct {
	logger        *slog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
	guardTTL      time.Duration
	dedupWindow   time.Duration
	dedupDistance float64
	restore       RestoreMode
}

// Option configures a Router.
type Option func(*routerOptions)

// WithLogger sets the router's logger.
func WithLogger(l *slog.Logger) Option { return func(o *routerOptions) { o.logger = l } }

// WithMetrics attaches coordinator metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(o *routerOptions) { o.metrics = m } }

// WithClock overrides time.Now for the show guard and click deduplication.
func WithClock(now func() time.Time) Option { return func(o *routerOptions) { o.now = now } }

// WithShowGuardTTL sets how long a click-dismiss can block a re-show.
func WithShowGuardTTL(d time.Duration) Option { return func(o *routerOptions) { o.guardTTL = d } }

// WithClickDedup sets the window and distance under which two click-outside
// reports belong to the same physical click.
func WithClickDedup(window time.Duration, distance float64) Option {
	return func(o *routerOptions) {
		o.dedupWindow = window
		o.dedupDistance = distance
	}
}

// WithRestoreMode sets the restore mode used when focus returns to the host
// implicitly (a focused window unregisters, or a click unfocuses it).
func WithRestoreMode(m RestoreMode) Option { return func(o *routerOptions) { o.restore = m } }

// NewRouter creates a router driving native.
func NewRouter(native Native, opts ...Option) *Router {
	o := routerOptions{restore: RestoreMainWindow}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	r := &Router{
		native:  native,
		logger:  o.logger,
		metrics: o.metrics,
		restore: o.restore,
		entries: make(map[platform.WindowID]*entry),
		focus:   HostFocused(),
	}
	r.guard = NewShowGuard(o.guardTTL, o.now)
	r.dismiss = NewDismissCoordinator(o.logger)
	r.clicks = NewClickOutsideHandler(ClickOutsideConfig{
		Window:   o.dedupWindow,
		Distance: o.dedupDistance,
		Now:      o.now,
		Logger:   o.logger,
	}, r.guard, r.dismiss, func() {
		if err := r.SetFocus(context.Background(), HostFocused(), r.restore); err != nil {
			r.logger.Warn("unfocus after click-outside failed", "error", err)
		}
	})
	return r
}

// Dismissals returns the coordinator that routes dismiss requests.
func (r *Router) Dismissals() *DismissCoordinator { return r.dismiss }

// ShowGuard returns the router's show guard.
func (r *Router) ShowGuard() *ShowGuard { return r.guard }

// ConsumeShowGuard reports whether a show of id must be refused because a
// click just dismissed it, clearing the mark if so.
func (r *Router) ConsumeShowGuard(id platform.WindowID) bool {
	return r.guard.Consume(id)
}

// Register starts tracking id with behavior. It returns false without
// touching any state when the show guard refuses the window. Windows sharing
// behavior.Group are dismissed before id is inserted. Registering an id that
// is already registered replaces its entry.
//
// Register also returns false when a sibling's registration dismissed id
// before this one finished. Nothing stays captured for id in that case.
func (r *Router) Register(ctx context.Context, id platform.WindowID, behavior Behavior) (bool, error) {
	if id == "" {
		return false, ErrEmptyWindowID
	}
	if r.guard.Consume(id) {
		r.logger.Debug("registration refused by show guard", "window", id)
		return false, nil
	}

	behavior = behavior.clone()
	displacedFocus := false
	if behavior.Group != "" {
		displacedFocus = r.dismissGroup(ctx, behavior.Group, id)
	}

	e := &entry{id: id, behavior: behavior}

	r.mu.Lock()
	old := r.entries[id]
	r.entries[id] = e
	if old == nil {
		r.order = append(r.order, id)
	}
	r.mu.Unlock()

	if old != nil {
		old.unsubscribe()
		if len(old.behavior.CapturedKeys) > 0 && len(behavior.CapturedKeys) == 0 {
			if err := r.native.ReleaseKeys(ctx, id); err != nil {
				r.logger.Warn("release keys on re-register failed", "window", id, "error", err)
			}
		}
		if old.capturesPointer() && !e.capturesPointer() {
			if err := r.native.ReleasePointer(ctx, id); err != nil {
				r.logger.Warn("release pointer on re-register failed", "window", id, "error", err)
			}
		}
	}

	current, err := r.capture(ctx, e)
	if err != nil {
		if uerr := r.Unregister(ctx, id); uerr != nil {
			r.logger.Warn("rollback of failed registration", "window", id, "error", uerr)
		}
		return false, fmt.Errorf("register %s: %w", id, err)
	}
	if !current {
		r.logger.Debug("registration superseded while capturing", "window", id)
		return false, r.dropStaleFocus(ctx)
	}

	r.metrics.WindowRegistered(r.Len())
	r.logger.Debug("window registered", "window", id, "group", behavior.Group,
		"takes_focus", behavior.TakesFocus, "keys", len(behavior.CapturedKeys),
		"click_outside", behavior.ClickOutside)

	switch {
	case behavior.TakesFocus:
		err := r.SetFocus(ctx, PaletteFocused(id), RestoreNone)
		if errors.Is(err, ErrNotRegistered) {
			r.logger.Debug("registration superseded before focus", "window", id)
			return false, r.dropStaleFocus(ctx)
		}
		return true, err
	case displacedFocus:
		return true, r.SetFocus(ctx, HostFocused(), r.restore)
	}
	return true, nil
}

// capture installs native captures and event subscriptions for e. It reports
// false when e left the live map meanwhile; the captures it made are undone
// unless a newer entry for the same id owns them.
func (r *Router) capture(ctx context.Context, e *entry) (bool, error) {
	var cancels []func()

	if len(e.behavior.CapturedKeys) > 0 {
		if err := r.native.CaptureKeys(ctx, e.id, e.behavior.CapturedKeys); err != nil {
			return false, fmt.Errorf("capture keys: %w", err)
		}
	}
	if e.capturesPointer() {
		if err := r.native.CapturePointer(ctx, e.id); err != nil {
			return false, fmt.Errorf("capture pointer: %w", err)
		}
		cancels = append(cancels, r.native.OnClickOutside(e.id, func(ev platform.ClickOutside) {
			r.handleClickOutside(e.id, ev)
		}))
	}
	cancels = append(cancels, r.native.OnKeyDown(e.id, func(ev platform.KeyEvent) {
		r.routeKey(e.id, ev.Key, ev.Modifiers)
	}))

	r.mu.Lock()
	cur, tracked := r.entries[e.id]
	current := cur == e
	if current {
		e.cancels = cancels
	}
	r.mu.Unlock()

	if current {
		return true, nil
	}
	for _, cancel := range cancels {
		cancel()
	}
	if !tracked {
		if err := r.release(ctx, e); err != nil {
			r.logger.Warn("release of superseded captures failed", "window", e.id, "error", err)
		}
	}
	return false, nil
}

// dropStaleFocus returns focus to the host when it names a window that is no
// longer registered.
func (r *Router) dropStaleFocus(ctx context.Context) error {
	r.mu.Lock()
	f := r.focus
	_, tracked := r.entries[f.ID]
	r.mu.Unlock()
	if f.Kind != FocusPalette || tracked {
		return nil
	}
	return r.SetFocus(ctx, HostFocused(), r.restore)
}

// dismissGroup removes every other member of group from the live map, releases
// their captures, and requests their dismissal. It reports whether one of them
// held focus.
func (r *Router) dismissGroup(ctx context.Context, group string, except platform.WindowID) bool {
	r.mu.Lock()
	var removed []*entry
	displaced := false
	for _, id := range r.order {
		e := r.entries[id]
		if id == except || e.behavior.Group != group {
			continue
		}
		removed = append(removed, e)
		if r.focus.IsPalette(id) {
			displaced = true
		}
	}
	// Focus stays on the removed member until the new one is inserted; Register
	// then moves it to the new member or back to the host.
	for _, e := range removed {
		r.removeLocked(e.id)
	}
	r.mu.Unlock()

	for _, e := range removed {
		e.unsubscribe()
		if err := r.release(ctx, e); err != nil {
			r.logger.Warn("release of dismissed group member failed", "window", e.id, "error", err)
		}
		r.logger.Debug("dismissing group member", "window", e.id, "group", group, "for", except)
		r.dismiss.Request(e.id)
	}
	return displaced
}

// Unregister stops tracking id and releases its native captures. Focus returns
// to the host if id was focused. Unknown ids are ignored.
func (r *Router) Unregister(ctx context.Context, id platform.WindowID) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	r.removeLocked(id)
	wasFocused := r.focus.IsPalette(id)
	r.mu.Unlock()

	e.unsubscribe()
	err := r.release(ctx, e)
	r.metrics.WindowUnregistered(r.Len())
	r.logger.Debug("window unregistered", "window", id)

	if wasFocused {
		err = errors.Join(err, r.SetFocus(ctx, HostFocused(), r.restore))
	}
	return err
}

// UpdateBehavior replaces the behavior of a registered window. It is an
// unregister followed by a register; callers that serialize per window (the
// palette controller) observe it as one step.
func (r *Router) UpdateBehavior(ctx context.Context, id platform.WindowID, behavior Behavior) (bool, error) {
	if err := r.Unregister(ctx, id); err != nil {
		return false, err
	}
	return r.Register(ctx, id, behavior)
}

func (r *Router) release(ctx context.Context, e *entry) error {
	var errs []error
	if len(e.behavior.CapturedKeys) > 0 {
		if err := r.native.ReleaseKeys(ctx, e.id); err != nil {
			errs = append(errs, fmt.Errorf("release keys %s: %w", e.id, err))
		}
	}
	if e.capturesPointer() {
		if err := r.native.ReleasePointer(ctx, e.id); err != nil {
			errs = append(errs, fmt.Errorf("release pointer %s: %w", e.id, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Router) removeLocked(id platform.WindowID) {
	delete(r.entries, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// SetFocus moves the focused entity. It is a no-op when f is already current.
// Focusing a window that is not registered fails with ErrNotRegistered.
func (r *Router) SetFocus(ctx context.Context, f Focus, restore RestoreMode) error {
	r.mu.Lock()
	if r.focus == f {
		r.mu.Unlock()
		return nil
	}
	if _, ok := r.entries[f.ID]; f.Kind == FocusPalette && !ok {
		r.mu.Unlock()
		return fmt.Errorf("focus %s: %w", f.ID, ErrNotRegistered)
	}
	r.focus = f
	ids := append([]platform.WindowID(nil), r.order...)
	r.mu.Unlock()

	r.metrics.FocusChanged()
	r.logger.Debug("focus changed", "focus", f.String(), "restore", restore)
	r.focusFeed.Emit(f)

	switch f.Kind {
	case FocusHost:
		var errs []error
		for _, id := range ids {
			if err := r.native.UnfocusWindow(ctx, id); err != nil {
				errs = append(errs, fmt.Errorf("unfocus %s: %w", id, err))
			}
		}
		switch restore {
		case RestoreMainWindow:
			if err := r.native.ActivateMainWindow(ctx); err != nil {
				errs = append(errs, fmt.Errorf("activate main window: %w", err))
			}
		case RestorePreviousApp:
			if err := r.native.HideApplication(ctx); err != nil {
				errs = append(errs, fmt.Errorf("hide application: %w", err))
			}
		case RestoreNone:
		}
		return errors.Join(errs...)
	case FocusPalette:
		if err := r.native.FocusWindow(ctx, f.ID); err != nil {
			return fmt.Errorf("focus %s: %w", f.ID, err)
		}
	}
	return nil
}

// Focused returns the current focused entity.
func (r *Router) Focused() Focus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focus
}

// OnFocusChange subscribes to focus transitions.
func (r *Router) OnFocusChange(fn func(Focus)) (cancel func()) {
	return r.focusFeed.Subscribe(fn)
}

// OnKey subscribes to routed key events.
func (r *Router) OnKey(fn func(platform.KeyEvent)) (cancel func()) {
	return r.keyFeed.Subscribe(fn)
}

// SetFrozen disables (or re-enables) key routing and click-outside handling
// for a registered window without unregistering it.
func (r *Router) SetFrozen(id platform.WindowID, frozen bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.frozen = frozen
	return true
}

// Behavior returns the registered behavior of id.
func (r *Router) Behavior(id platform.WindowID) (Behavior, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Behavior{}, false
	}
	return e.behavior.clone(), true
}

// IsRegistered reports whether id is in the live map.
func (r *Router) IsRegistered(id platform.WindowID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// Registered returns the registered ids in registration order.
func (r *Router) Registered() []platform.WindowID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]platform.WindowID(nil), r.order...)
}

// GroupMembers returns the registered ids of group.
func (r *Router) GroupMembers(group string) []platform.WindowID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []platform.WindowID
	for _, id := range r.order {
		if r.entries[id].behavior.Group == group {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of registered windows.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// routeKey emits the event for its source, then once for every other
// unfrozen window that captured key, in registration order.
func (r *Router) routeKey(source platform.WindowID, key platform.Key, mods platform.Modifiers) {
	r.mu.Lock()
	if e, ok := r.entries[source]; ok && e.frozen {
		r.mu.Unlock()
		return
	}
	var targets []platform.WindowID
	for _, id := range r.order {
		e := r.entries[id]
		if id == source || e.frozen {
			continue
		}
		if e.behavior.Captures(key) {
			targets = append(targets, id)
		}
	}
	r.mu.Unlock()

	r.keyFeed.Emit(platform.KeyEvent{ID: source, Key: key, Modifiers: mods})
	for _, id := range targets {
		r.keyFeed.Emit(platform.KeyEvent{ID: id, Key: key, Modifiers: mods})
	}
}

func (r *Router) handleClickOutside(id platform.WindowID, ev platform.ClickOutside) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok || e.frozen {
		r.mu.Unlock()
		return
	}
	policy, scope := e.behavior.ClickOutside, e.behavior.ClickScope
	r.mu.Unlock()

	outcome := r.clicks.Handle(id, policy, scope, ev.Position, ev.Sibling)
	r.metrics.ClickOutside(string(outcome))
}

// HandleClickOutside feeds a click-outside report into the handler as if the
// native layer delivered it for id.
func (r *Router) HandleClickOutside(id platform.WindowID, pos platform.Point, sibling platform.WindowID) {
	r.handleClickOutside(id, platform.ClickOutside{ID: id, Position: pos, Sibling: sibling})
}
