// Package platformtest provides an in-memory platform.Bridge for tests.
package platformtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/1broseidon/palettehost/internal/notify"
	"github.com/1broseidon/palettehost/internal/platform"
)

// Window is the fake native state of one window.
type Window struct {
	Frame   platform.Rect
	Visible bool
	Focused bool
	Pinned  platform.Level
	Keys    []platform.Key
	Pointer bool
}

// Bridge records every call and keeps a minimal window table. It is safe for
// concurrent use.
type Bridge struct {
	mu      sync.Mutex
	calls   []string
	windows map[platform.WindowID]*Window
	fail    map[string]error
	hooks   map[string]func()

	Cursor   platform.Point
	WorkArea *platform.Rect
	Caps     platform.Capabilities

	keyFeeds   map[platform.WindowID]*notify.Feed[platform.KeyEvent]
	clickFeeds map[platform.WindowID]*notify.Feed[platform.ClickOutside]
	watchers   notify.Feed[platform.Event]
}

var _ platform.Bridge = (*Bridge)(nil)

// New returns an empty fake bridge with a 1920x1080 work area.
func New() *Bridge {
	return &Bridge{
		windows:    make(map[platform.WindowID]*Window),
		fail:       make(map[string]error),
		hooks:      make(map[string]func()),
		WorkArea:   &platform.Rect{X: 0, Y: 0, Width: 1920, Height: 1080},
		Caps:       platform.Capabilities{Platform: "test", ProtocolVersion: 1, MultiMonitor: true},
		keyFeeds:   make(map[platform.WindowID]*notify.Feed[platform.KeyEvent]),
		clickFeeds: make(map[platform.WindowID]*notify.Feed[platform.ClickOutside]),
	}
}

// FailOn makes the named method ("Reveal", "CreateWindow", ...) return err.
// A nil err clears the failure.
func (b *Bridge) FailOn(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.fail, method)
		return
	}
	b.fail[method] = err
}

// OnCall runs fn (without holding the bridge lock) whenever method is called,
// before the call takes effect.
func (b *Bridge) OnCall(method string, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks[method] = fn
}

// Seed installs a pre-existing native window, as if it survived a restart.
func (b *Bridge) Seed(id platform.WindowID, w Window) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := w
	b.windows[id] = &cp
}

// Window returns a copy of the native state of id.
func (b *Bridge) Window(id platform.WindowID) (Window, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.windows[id]
	if !ok {
		return Window{}, false
	}
	return *w, true
}

// Calls returns the recorded calls as "Method(id)" strings.
func (b *Bridge) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// CallsTo returns how many recorded calls start with prefix.
func (b *Bridge) CallsTo(prefix string) int {
	n := 0
	for _, c := range b.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (b *Bridge) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

// PressKey fires a key-down event from window id.
func (b *Bridge) PressKey(id platform.WindowID, key platform.Key, mods platform.Modifiers) {
	b.mu.Lock()
	feed := b.keyFeeds[id]
	b.mu.Unlock()
	if feed != nil {
		feed.Emit(platform.KeyEvent{ID: id, Key: key, Modifiers: mods})
	}
}

// ClickOutside fires a click-outside event for window id.
func (b *Bridge) ClickOutside(id platform.WindowID, pos platform.Point, sibling platform.WindowID) {
	b.mu.Lock()
	feed := b.clickFeeds[id]
	b.mu.Unlock()
	if feed != nil {
		feed.Emit(platform.ClickOutside{ID: id, Position: pos, Sibling: sibling})
	}
}

// Emit fires a lifecycle event to watchers.
func (b *Bridge) Emit(ev platform.Event) {
	b.watchers.Emit(ev)
}

// KeySubscribers returns the number of key-down subscriptions for id.
func (b *Bridge) KeySubscribers(id platform.WindowID) int {
	b.mu.Lock()
	feed := b.keyFeeds[id]
	b.mu.Unlock()
	if feed == nil {
		return 0
	}
	return feed.Len()
}

// ClickSubscribers returns the number of click-outside subscriptions for id.
func (b *Bridge) ClickSubscribers(id platform.WindowID) int {
	b.mu.Lock()
	feed := b.clickFeeds[id]
	b.mu.Unlock()
	if feed == nil {
		return 0
	}
	return feed.Len()
}

func (b *Bridge) record(method string, id platform.WindowID) error {
	b.mu.Lock()
	hook := b.hooks[method]
	b.mu.Unlock()
	if hook != nil {
		hook()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if id == "" {
		b.calls = append(b.calls, method+"()")
	} else {
		b.calls = append(b.calls, fmt.Sprintf("%s(%s)", method, id))
	}
	return b.fail[method]
}

func (b *Bridge) window(id platform.WindowID) (*Window, error) {
	w, ok := b.windows[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, platform.ErrWindowNotFound)
	}
	return w, nil
}

func (b *Bridge) CreateWindow(_ context.Context, id platform.WindowID, size platform.Size, _ platform.Appearance) error {
	if err := b.record("CreateWindow", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.windows[id]; ok {
		return fmt.Errorf("create %s: %w", id, platform.ErrWindowExists)
	}
	b.windows[id] = &Window{Frame: platform.Rect{Width: size.Width, Height: size.Height}}
	return nil
}

func (b *Bridge) DestroyWindow(_ context.Context, id platform.WindowID) error {
	if err := b.record("DestroyWindow", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.windows, id)
	return nil
}

func (b *Bridge) SetFrame(_ context.Context, id platform.WindowID, frame platform.Rect, _ bool) error {
	if err := b.record("SetFrame", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	w, err := b.window(id)
	if err != nil {
		return err
	}
	w.Frame = frame
	return nil
}

func (b *Bridge) Reveal(_ context.Context, id platform.WindowID, _ bool, takeFocus bool) error {
	if err := b.record("Reveal", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	w, err := b.window(id)
	if err != nil {
		return err
	}
	w.Visible = true
	if takeFocus {
		w.Focused = true
	}
	return nil
}

func (b *Bridge) Conceal(_ context.Context, id platform.WindowID, _ bool) error {
	if err := b.record("Conceal", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	w, err := b.window(id)
	if err != nil {
		return err
	}
	w.Visible = false
	w.Focused = false
	return nil
}

func (b *Bridge) Pin(_ context.Context, id platform.WindowID, level platform.Level) error {
	if err := b.record("Pin", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.windows[id]; ok {
		w.Pinned = level
	}
	return nil
}

func (b *Bridge) Snapshot(_ context.Context) (map[platform.WindowID]platform.WindowState, error) {
	if err := b.record("Snapshot", ""); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[platform.WindowID]platform.WindowState, len(b.windows))
	for id, w := range b.windows {
		out[id] = platform.WindowState{Visible: w.Visible, Bounds: w.Frame, Focused: w.Focused}
	}
	return out, nil
}

func (b *Bridge) CaptureKeys(_ context.Context, id platform.WindowID, keys []platform.Key) error {
	if err := b.record("CaptureKeys", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.windows[id]; ok {
		w.Keys = append([]platform.Key(nil), keys...)
	}
	return nil
}

func (b *Bridge) ReleaseKeys(_ context.Context, id platform.WindowID) error {
	if err := b.record("ReleaseKeys", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.windows[id]; ok {
		w.Keys = nil
	}
	return nil
}

func (b *Bridge) CapturePointer(_ context.Context, id platform.WindowID) error {
	if err := b.record("CapturePointer", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.windows[id]; ok {
		w.Pointer = true
	}
	return nil
}

func (b *Bridge) ReleasePointer(_ context.Context, id platform.WindowID) error {
	if err := b.record("ReleasePointer", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.windows[id]; ok {
		w.Pointer = false
	}
	return nil
}

func (b *Bridge) FocusWindow(_ context.Context, id platform.WindowID) error {
	if err := b.record("FocusWindow", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for wid, w := range b.windows {
		w.Focused = wid == id
	}
	return nil
}

func (b *Bridge) UnfocusWindow(_ context.Context, id platform.WindowID) error {
	if err := b.record("UnfocusWindow", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.windows[id]; ok {
		w.Focused = false
	}
	return nil
}

func (b *Bridge) ActivateMainWindow(_ context.Context) error {
	return b.record("ActivateMainWindow", "")
}

func (b *Bridge) HideApplication(_ context.Context) error {
	return b.record("HideApplication", "")
}

func (b *Bridge) CursorPosition(_ context.Context) (platform.Point, error) {
	if err := b.record("CursorPosition", ""); err != nil {
		return platform.Point{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Cursor, nil
}

func (b *Bridge) PrimaryWorkArea(_ context.Context) (platform.Rect, error) {
	if err := b.record("PrimaryWorkArea", ""); err != nil {
		return platform.Rect{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.WorkArea == nil {
		return platform.Rect{}, fmt.Errorf("no screens")
	}
	return *b.WorkArea, nil
}

func (b *Bridge) OnKeyDown(id platform.WindowID, fn func(platform.KeyEvent)) func() {
	b.mu.Lock()
	feed, ok := b.keyFeeds[id]
	if !ok {
		feed = &notify.Feed[platform.KeyEvent]{}
		b.keyFeeds[id] = feed
	}
	b.mu.Unlock()
	return feed.Subscribe(fn)
}

func (b *Bridge) OnClickOutside(id platform.WindowID, fn func(platform.ClickOutside)) func() {
	b.mu.Lock()
	feed, ok := b.clickFeeds[id]
	if !ok {
		feed = &notify.Feed[platform.ClickOutside]{}
		b.clickFeeds[id] = feed
	}
	b.mu.Unlock()
	return feed.Subscribe(fn)
}

func (b *Bridge) Watch(fn func(platform.Event)) func() {
	return b.watchers.Subscribe(fn)
}

func (b *Bridge) Capabilities() platform.Capabilities {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Caps
}
