// Package palette drives the lifecycle of a single floating palette window:
// creating the native window, showing and hiding it, and keeping the input
// router's registration in step with what is on screen.
package palette

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/palettehost/internal/input"
	"github.com/1broseidon/palettehost/internal/metrics"
	"github.com/1broseidon/palettehost/internal/notify"
	"github.com/1broseidon/palettehost/internal/platform"
	"github.com/1broseidon/palettehost/internal/position"
)

// Deps are the shared collaborators of every controller.
type Deps struct {
	Native   platform.WindowManager
	Router   *input.Router
	Resolver *position.Resolver
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Controller is the per-window facade. Show, Hide, WarmUp, CoolDown,
// SyncFromNative and UpdateBehavior run one at a time through a single-slot
// queue, so operations on the same window never interleave.
type Controller struct {
	id       platform.WindowID
	native   platform.WindowManager
	router   *input.Router
	resolver *position.Resolver
	logger   *slog.Logger
	metrics  *metrics.Metrics

	slot chan struct{}

	mu        sync.Mutex
	cfg       Config
	visible   bool
	warm      bool
	frozen    bool
	args      any
	frame     platform.Rect
	seq       uint64
	escCancel func()

	visibility notify.Feed[bool]
}

// NewController creates the controller for id and installs its dismiss
// callback with the router.
func NewController(id platform.WindowID, deps Deps, cfg Config) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		id:       id,
		native:   deps.Native,
		router:   deps.Router,
		resolver: deps.Resolver,
		logger:   logger.With("palette", string(id)),
		metrics:  deps.Metrics,
		slot:     make(chan struct{}, 1),
		cfg:      cfg,
	}
	c.router.Dismissals().Register(id, c.dismissAsync)
	return c
}

// ID returns the window id.
func (c *Controller) ID() platform.WindowID { return c.id }

// Config returns the current configuration.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// SetConfig replaces the configuration. It applies from the next Show.
func (c *Controller) SetConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

// IsVisible reports whether the window is shown.
func (c *Controller) IsVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// IsWarm reports whether the native window exists.
func (c *Controller) IsWarm() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warm
}

// IsFrozen reports whether input is disabled for the window.
func (c *Controller) IsFrozen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frozen
}

// Args returns the arguments of the current show, or nil when hidden.
func (c *Controller) Args() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.args
}

// Frame returns the last frame applied to the native window.
func (c *Controller) Frame() platform.Rect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// OnVisibilityChange subscribes to visibility transitions.
func (c *Controller) OnVisibilityChange(fn func(visible bool)) (cancel func()) {
	return c.visibility.Subscribe(fn)
}

func (c *Controller) acquire(ctx context.Context) error {
	select {
	case c.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) release() { <-c.slot }

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Show reveals the window and registers its input behavior. It returns false
// without error when the show guard or the router refuses the window.
func (c *Controller) Show(ctx context.Context, opts ShowOptions) (bool, error) {
	if c.router.ConsumeShowGuard(c.id) {
		c.logger.Debug("show refused by show guard")
		c.metrics.ShowAttempt("blocked")
		return false, nil
	}
	if err := sleep(ctx, opts.Delay); err != nil {
		return false, err
	}
	if err := c.acquire(ctx); err != nil {
		return false, err
	}
	defer c.release()

	shown, err := c.show(ctx, opts)
	switch {
	case err != nil:
		c.metrics.ShowAttempt("error")
	case !shown:
		c.metrics.ShowAttempt("refused")
	default:
		c.metrics.ShowAttempt("shown")
	}
	return shown, err
}

func (c *Controller) show(ctx context.Context, opts ShowOptions) (shown bool, err error) {
	c.mu.Lock()
	cfg := c.cfg
	prevArgs := c.args
	c.args = opts.Args
	c.mu.Unlock()
	p := cfg.merge(opts)

	// A failed show leaves the previous show's args, or none when hidden.
	defer func() {
		if shown {
			return
		}
		c.mu.Lock()
		if c.visible {
			c.args = prevArgs
		} else {
			c.args = nil
		}
		c.mu.Unlock()
	}()

	if err := c.ensureWarm(ctx, cfg); err != nil {
		return false, err
	}

	frame := c.resolver.Place(ctx, p.spec, p.size)
	if err := c.native.SetFrame(ctx, c.id, frame, false); err != nil {
		return false, fmt.Errorf("set frame %s: %w", c.id, err)
	}
	c.mu.Lock()
	c.frame = frame
	c.mu.Unlock()

	if err := c.native.Reveal(ctx, c.id, cfg.Animate, p.behavior.TakesFocus); err != nil {
		return false, fmt.Errorf("reveal %s: %w", c.id, err)
	}
	if cfg.AlwaysOnTop {
		if err := c.native.Pin(ctx, c.id, platform.LevelFloating); err != nil {
			return false, fmt.Errorf("pin %s: %w", c.id, err)
		}
	}

	ok, err := c.router.Register(ctx, c.id, p.behavior)
	if err != nil || !ok {
		c.removeEscape()
		if uerr := c.router.Unregister(ctx, c.id); uerr != nil {
			c.logger.Warn("unregister after refused registration failed", "error", uerr)
		}
		if cerr := c.native.Conceal(ctx, c.id, false); cerr != nil {
			c.logger.Warn("conceal after refused registration failed", "error", cerr)
		}
		c.setVisible(false)
		return false, err
	}

	c.mu.Lock()
	c.seq++
	seq := c.seq
	frozen := c.frozen
	c.mu.Unlock()
	if frozen {
		c.router.SetFrozen(c.id, true)
	}

	c.installEscape(cfg.HideOnEscape)
	c.setVisible(true)
	c.logger.Debug("palette shown", "x", frame.X, "y", frame.Y, "width", frame.Width, "height", frame.Height)

	if opts.AutoHideAfter > 0 {
		time.AfterFunc(opts.AutoHideAfter, func() {
			if err := c.hideIfCurrent(context.Background(), seq); err != nil {
				c.logger.Warn("auto-hide failed", "error", err)
			}
		})
	}
	return true, nil
}

func (c *Controller) ensureWarm(ctx context.Context, cfg Config) error {
	c.mu.Lock()
	warm := c.warm
	c.mu.Unlock()
	if warm {
		return nil
	}

	err := c.native.CreateWindow(ctx, c.id, cfg.Size, cfg.Appearance)
	switch {
	case errors.Is(err, platform.ErrWindowExists):
		c.logger.Debug("native window already exists, adopting it")
	case err != nil:
		return fmt.Errorf("create window %s: %w", c.id, err)
	}

	c.mu.Lock()
	c.warm = true
	c.mu.Unlock()
	return nil
}

// installEscape (re)subscribes the hide-on-escape handler.
func (c *Controller) installEscape(enabled bool) {
	c.mu.Lock()
	old := c.escCancel
	c.escCancel = nil
	c.mu.Unlock()
	if old != nil {
		old()
	}
	if !enabled {
		return
	}

	cancel := c.router.OnKey(func(ev platform.KeyEvent) {
		if ev.ID != c.id || ev.Key != platform.KeyEscape {
			return
		}
		go func() {
			if err := c.Hide(context.Background(), HideOptions{}); err != nil {
				c.logger.Warn("hide on escape failed", "error", err)
			}
		}()
	})
	c.mu.Lock()
	c.escCancel = cancel
	c.mu.Unlock()
}

func (c *Controller) removeEscape() {
	c.mu.Lock()
	cancel := c.escCancel
	c.escCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Controller) setVisible(v bool) {
	c.mu.Lock()
	changed := c.visible != v
	c.visible = v
	c.mu.Unlock()
	if changed {
		c.visibility.Emit(v)
	}
}

// Hide conceals the window and unregisters it from the router. Hiding a
// hidden window is a no-op.
func (c *Controller) Hide(ctx context.Context, opts HideOptions) error {
	if !c.IsVisible() {
		return nil
	}
	if err := sleep(ctx, opts.Delay); err != nil {
		return err
	}
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	if !c.IsVisible() {
		return nil
	}
	return c.hide(ctx)
}

// hideIfCurrent hides the window only if it is still showing the show
// identified by seq. Deferred hides use it so they never hide a later show.
func (c *Controller) hideIfCurrent(ctx context.Context, seq uint64) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	current := c.visible && c.seq == seq
	c.mu.Unlock()
	if !current {
		return nil
	}
	return c.hide(ctx)
}

func (c *Controller) hide(ctx context.Context) error {
	c.mu.Lock()
	c.args = nil
	animate := c.cfg.Animate
	c.mu.Unlock()

	c.removeEscape()
	uerr := c.router.Unregister(ctx, c.id)
	if err := c.native.Conceal(ctx, c.id, animate); err != nil {
		return errors.Join(uerr, fmt.Errorf("conceal %s: %w", c.id, err))
	}
	c.setVisible(false)
	c.metrics.Hidden()
	c.logger.Debug("palette hidden")
	return uerr
}

// dismissAsync is the router's dismiss callback. The hide runs on its own
// goroutine because the request may arrive while another controller holds
// its slot inside Router.Register.
func (c *Controller) dismissAsync() {
	c.mu.Lock()
	seq := c.seq
	c.mu.Unlock()
	go func() {
		if err := c.hideIfDismissed(context.Background(), seq); err != nil {
			c.logger.Warn("dismiss failed", "error", err)
		}
	}()
}

// hideIfDismissed hides the window for a dismiss requested during show seq.
// It waits for any show in progress. The hide applies while that show is
// still current, or whenever the router has already dropped the window (a
// group sibling displaced it, possibly mid-show). A later show that
// registered again is left alone.
func (c *Controller) hideIfDismissed(ctx context.Context, seq uint64) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	visible, current := c.visible, c.seq == seq
	c.mu.Unlock()
	if !visible || (!current && c.router.IsRegistered(c.id)) {
		return nil
	}
	return c.hide(ctx)
}

// Toggle hides the window when visible and shows it otherwise. It reports
// whether the window is visible afterwards.
func (c *Controller) Toggle(ctx context.Context, opts ShowOptions) (bool, error) {
	if c.IsVisible() {
		return false, c.Hide(ctx, HideOptions{Delay: opts.Delay})
	}
	return c.Show(ctx, opts)
}

// WarmUp creates the native window without showing it.
func (c *Controller) WarmUp(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()
	return c.ensureWarm(ctx, c.Config())
}

// CoolDown destroys the native window, hiding it first if needed. It is a
// no-op for a cold window.
func (c *Controller) CoolDown(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	warm, visible := c.warm, c.visible
	c.mu.Unlock()
	if !warm {
		return nil
	}
	if visible {
		if err := c.hide(ctx); err != nil {
			return err
		}
	}
	if err := c.native.DestroyWindow(ctx, c.id); err != nil && !errors.Is(err, platform.ErrWindowNotFound) {
		return fmt.Errorf("destroy window %s: %w", c.id, err)
	}
	c.mu.Lock()
	c.warm = false
	c.mu.Unlock()
	c.logger.Debug("palette cooled down")
	return nil
}

// SyncFromNative adopts the state of a native window that outlived the
// process state: the window is warm, and when it is visible it is registered
// with the router again. Repeated calls with the same state change nothing.
func (c *Controller) SyncFromNative(ctx context.Context, state platform.WindowState) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	c.warm = true
	c.frame = state.Bounds
	same := c.visible == state.Visible
	cfg := c.cfg
	c.mu.Unlock()
	if same {
		return nil
	}

	if !state.Visible {
		c.removeEscape()
		c.setVisible(false)
		return c.router.Unregister(ctx, c.id)
	}

	// Adopting a window must not move OS focus; only state.Focused does.
	behavior := cfg.Behavior
	behavior.TakesFocus = false
	ok, err := c.router.Register(ctx, c.id, behavior)
	if err != nil {
		return err
	}
	if !ok {
		c.logger.Debug("recovered palette refused by router")
		return nil
	}
	c.mu.Lock()
	c.seq++
	c.mu.Unlock()
	c.installEscape(cfg.HideOnEscape)
	c.setVisible(true)

	if state.Focused {
		return c.router.SetFocus(ctx, input.PaletteFocused(c.id), input.RestoreNone)
	}
	return nil
}

// NativeClosed records that the native window was destroyed outside the
// controller.
func (c *Controller) NativeClosed(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	c.removeEscape()
	err := c.router.Unregister(ctx, c.id)
	c.mu.Lock()
	c.warm = false
	c.args = nil
	c.mu.Unlock()
	c.setVisible(false)
	return err
}

// Move repositions the window keeping its size.
func (c *Controller) Move(ctx context.Context, to platform.Point, animated bool) error {
	c.mu.Lock()
	frame := c.frame
	c.mu.Unlock()
	frame.X, frame.Y = to.X, to.Y
	return c.applyFrame(ctx, frame, animated)
}

// Resize changes the window size keeping its origin.
func (c *Controller) Resize(ctx context.Context, size platform.Size, animated bool) error {
	c.mu.Lock()
	frame := c.frame
	c.mu.Unlock()
	frame.Width, frame.Height = size.Width, size.Height
	return c.applyFrame(ctx, frame, animated)
}

func (c *Controller) applyFrame(ctx context.Context, frame platform.Rect, animated bool) error {
	if err := c.native.SetFrame(ctx, c.id, frame, animated); err != nil {
		return fmt.Errorf("set frame %s: %w", c.id, err)
	}
	c.mu.Lock()
	c.frame = frame
	c.mu.Unlock()
	return nil
}

// Freeze disables (or restores) key routing and click-outside handling for
// the window while it stays registered.
func (c *Controller) Freeze(frozen bool) {
	c.mu.Lock()
	c.frozen = frozen
	c.mu.Unlock()
	c.router.SetFrozen(c.id, frozen)
}

// UpdateBehavior replaces the configured input behavior. A visible window is
// re-registered with the new behavior as one serialized step.
func (c *Controller) UpdateBehavior(ctx context.Context, b input.Behavior) (bool, error) {
	if err := c.acquire(ctx); err != nil {
		return false, err
	}
	defer c.release()

	c.mu.Lock()
	c.cfg.Behavior = b
	visible, frozen := c.visible, c.frozen
	c.mu.Unlock()
	if !visible {
		return true, nil
	}

	ok, err := c.router.UpdateBehavior(ctx, c.id, b)
	if err != nil {
		return false, err
	}
	if frozen {
		c.router.SetFrozen(c.id, true)
	}
	return ok, nil
}
