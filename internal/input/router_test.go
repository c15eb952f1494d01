package input

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/1broseidon/palettehost/internal/platform"
	"github.com/1broseidon/palettehost/internal/platform/platformtest"
)

func newTestRouter(t *testing.T, opts ...Option) (*Router, *platformtest.Bridge, *fakeClock) {
	t.Helper()
	b := platformtest.New()
	clock := newFakeClock()
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(clock.Now),
	}, opts...)
	return NewRouter(b, opts...), b, clock
}

func mustRegister(t *testing.T, r *Router, id platform.WindowID, b Behavior) {
	t.Helper()
	ok, err := r.Register(context.Background(), id, b)
	if err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	if !ok {
		t.Fatalf("register %s refused", id)
	}
}

type keyLog struct {
	events []platform.KeyEvent
}

func (l *keyLog) record(ev platform.KeyEvent) { l.events = append(l.events, ev) }

func (l *keyLog) reset() { l.events = nil }

func TestRegister_EmptyID(t *testing.T) {
	r, _, _ := newTestRouter(t)
	if _, err := r.Register(context.Background(), "", Behavior{}); !errors.Is(err, ErrEmptyWindowID) {
		t.Fatalf("err = %v, want ErrEmptyWindowID", err)
	}
}

func TestRegister_GroupExclusion(t *testing.T) {
	r, b, _ := newTestRouter(t)

	var dismissed []platform.WindowID
	r.Dismissals().Register("menu-a", func() { dismissed = append(dismissed, "menu-a") })

	mustRegister(t, r, "menu-a", Behavior{
		TakesFocus:   true,
		CapturedKeys: []platform.Key{platform.KeyEnter, platform.KeyEscape},
		Group:        "menu",
	})
	if got := r.Focused(); !got.IsPalette("menu-a") {
		t.Fatalf("focus = %s, want palette:menu-a", got)
	}

	mustRegister(t, r, "menu-b", Behavior{TakesFocus: true, Group: "menu"})

	if !reflect.DeepEqual(dismissed, []platform.WindowID{"menu-a"}) {
		t.Fatalf("dismissed = %v, want [menu-a]", dismissed)
	}
	if r.IsRegistered("menu-a") {
		t.Fatalf("menu-a still in the live map")
	}
	if got := r.GroupMembers("menu"); !reflect.DeepEqual(got, []platform.WindowID{"menu-b"}) {
		t.Fatalf("menu group = %v, want [menu-b]", got)
	}
	if got := r.Focused(); !got.IsPalette("menu-b") {
		t.Fatalf("focus = %s, want palette:menu-b", got)
	}
	if b.CallsTo("ReleaseKeys(menu-a)") != 1 {
		t.Fatalf("menu-a keys not released: %v", b.Calls())
	}
	if r.ShowGuard().IsBlocked("menu-a") {
		t.Fatalf("group dismissal must not mark the show guard")
	}
}

func TestRegister_DisplacedFocusReturnsToHost(t *testing.T) {
	r, b, _ := newTestRouter(t)

	mustRegister(t, r, "popup-a", Behavior{TakesFocus: true, Group: "popup"})
	b.ResetCalls()
	mustRegister(t, r, "popup-b", Behavior{Group: "popup"})

	if got := r.Focused(); got != HostFocused() {
		t.Fatalf("focus = %s, want host", got)
	}
	if b.CallsTo("ActivateMainWindow") != 1 {
		t.Fatalf("expected main window activation, calls: %v", b.Calls())
	}
}

func TestRegister_OtherGroupsUntouched(t *testing.T) {
	r, _, _ := newTestRouter(t)
	mustRegister(t, r, "menu", Behavior{Group: "menu"})
	mustRegister(t, r, "dialog", Behavior{Group: "dialog"})
	mustRegister(t, r, "free", Behavior{})
	mustRegister(t, r, "free-2", Behavior{})

	want := []platform.WindowID{"menu", "dialog", "free", "free-2"}
	if got := r.Registered(); !reflect.DeepEqual(got, want) {
		t.Fatalf("registered = %v, want %v", got, want)
	}
}

func TestRegister_CapturesOnlyConfiguredInput(t *testing.T) {
	tests := []struct {
		name        string
		behavior    Behavior
		wantKeys    int
		wantPointer int
	}{
		{name: "focus without keys captures no keys", behavior: Behavior{TakesFocus: true}, wantKeys: 0, wantPointer: 1},
		{name: "empty key set captures no keys", behavior: Behavior{CapturedKeys: []platform.Key{}}, wantKeys: 0, wantPointer: 1},
		{name: "keys captured", behavior: Behavior{CapturedKeys: []platform.Key{platform.KeyArrowDown}}, wantKeys: 1, wantPointer: 1},
		{name: "passthrough skips pointer", behavior: Behavior{ClickOutside: ClickPassthrough}, wantKeys: 0, wantPointer: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, b, _ := newTestRouter(t)
			mustRegister(t, r, "w", tt.behavior)
			if got := b.CallsTo("CaptureKeys(w)"); got != tt.wantKeys {
				t.Fatalf("CaptureKeys calls = %d, want %d", got, tt.wantKeys)
			}
			if got := b.CallsTo("CapturePointer(w)"); got != tt.wantPointer {
				t.Fatalf("CapturePointer calls = %d, want %d", got, tt.wantPointer)
			}
			if got := b.ClickSubscribers("w"); got != tt.wantPointer {
				t.Fatalf("click subscribers = %d, want %d", got, tt.wantPointer)
			}
			if got := b.KeySubscribers("w"); got != 1 {
				t.Fatalf("key subscribers = %d, want 1", got)
			}
		})
	}
}

func TestRegister_ReplaceKeepsSingleEntry(t *testing.T) {
	r, b, _ := newTestRouter(t)
	mustRegister(t, r, "w", Behavior{CapturedKeys: []platform.Key{platform.KeyEnter}})
	mustRegister(t, r, "w", Behavior{ClickOutside: ClickPassthrough})

	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
	if b.KeySubscribers("w") != 1 {
		t.Fatalf("key subscribers = %d, want 1", b.KeySubscribers("w"))
	}
	if b.ClickSubscribers("w") != 0 {
		t.Fatalf("click subscribers = %d, want 0", b.ClickSubscribers("w"))
	}
	if b.CallsTo("ReleaseKeys(w)") != 1 || b.CallsTo("ReleasePointer(w)") != 1 {
		t.Fatalf("stale captures not released: %v", b.Calls())
	}
}

func TestRegister_CaptureFailureRollsBack(t *testing.T) {
	r, b, _ := newTestRouter(t)
	b.FailOn("CapturePointer", errors.New("grab failed"))

	ok, err := r.Register(context.Background(), "w", Behavior{CapturedKeys: []platform.Key{platform.KeyEnter}})
	if err == nil || ok {
		t.Fatalf("expected failure, got ok=%v err=%v", ok, err)
	}
	if r.IsRegistered("w") {
		t.Fatalf("failed registration left an entry")
	}
	if b.CallsTo("ReleaseKeys(w)") != 1 {
		t.Fatalf("captured keys not released on rollback: %v", b.Calls())
	}
}

func TestRouteKey(t *testing.T) {
	r, b, _ := newTestRouter(t)
	var log keyLog
	r.OnKey(log.record)

	mustRegister(t, r, "editor", Behavior{TakesFocus: true})
	mustRegister(t, r, "slash", Behavior{CapturedKeys: []platform.Key{platform.KeyArrowDown}})

	b.PressKey("editor", platform.KeyArrowDown, 0)
	want := []platform.KeyEvent{
		{ID: "editor", Key: platform.KeyArrowDown},
		{ID: "slash", Key: platform.KeyArrowDown},
	}
	if !reflect.DeepEqual(log.events, want) {
		t.Fatalf("arrow down events = %v, want %v", log.events, want)
	}

	log.reset()
	b.PressKey("editor", platform.Key('a'), platform.ModShift)
	want = []platform.KeyEvent{{ID: "editor", Key: platform.Key('a'), Modifiers: platform.ModShift}}
	if !reflect.DeepEqual(log.events, want) {
		t.Fatalf("letter events = %v, want %v", log.events, want)
	}
}

func TestRouteKey_SourceIsNotDuplicated(t *testing.T) {
	r, b, _ := newTestRouter(t)
	var log keyLog
	r.OnKey(log.record)

	mustRegister(t, r, "menu", Behavior{TakesFocus: true, CapturedKeys: []platform.Key{platform.KeyEnter}})
	b.PressKey("menu", platform.KeyEnter, 0)

	if len(log.events) != 1 {
		t.Fatalf("events = %v, want a single event for the source", log.events)
	}
}

func TestRouteKey_FrozenWindowsSkipped(t *testing.T) {
	r, b, _ := newTestRouter(t)
	var log keyLog
	r.OnKey(log.record)

	mustRegister(t, r, "a", Behavior{TakesFocus: true})
	mustRegister(t, r, "b", Behavior{CapturedKeys: []platform.Key{platform.KeyTab}})
	r.SetFrozen("b", true)

	b.PressKey("a", platform.KeyTab, 0)
	if len(log.events) != 1 || log.events[0].ID != "a" {
		t.Fatalf("events = %v, want only a", log.events)
	}

	log.reset()
	b.PressKey("b", platform.KeyTab, 0)
	if len(log.events) != 0 {
		t.Fatalf("frozen source emitted %v", log.events)
	}
}

func TestUnregister_RestoresHostFocus(t *testing.T) {
	ctx := context.Background()
	r, b, _ := newTestRouter(t)
	var foci []Focus
	r.OnFocusChange(func(f Focus) { foci = append(foci, f) })

	mustRegister(t, r, "w", Behavior{TakesFocus: true})
	if err := r.Unregister(ctx, "w"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if r.IsRegistered("w") {
		t.Fatalf("w still registered")
	}
	if got := r.Focused(); got != HostFocused() {
		t.Fatalf("focus = %s, want host", got)
	}
	want := []Focus{PaletteFocused("w"), HostFocused()}
	if !reflect.DeepEqual(foci, want) {
		t.Fatalf("focus changes = %v, want %v", foci, want)
	}
	if b.KeySubscribers("w") != 0 || b.ClickSubscribers("w") != 0 {
		t.Fatalf("subscriptions leaked after unregister")
	}

	if err := r.Unregister(ctx, "unknown"); err != nil {
		t.Fatalf("unregister unknown: %v", err)
	}
}

func TestSetFocus_NoopAndRestoreModes(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		restore RestoreMode
		want    string
	}{
		{restore: RestoreNone, want: ""},
		{restore: RestoreMainWindow, want: "ActivateMainWindow()"},
		{restore: RestorePreviousApp, want: "HideApplication()"},
	}
	for _, tt := range tests {
		t.Run(string(tt.restore), func(t *testing.T) {
			r, b, _ := newTestRouter(t)
			var changes int
			r.OnFocusChange(func(Focus) { changes++ })

			if err := r.SetFocus(ctx, HostFocused(), tt.restore); err != nil {
				t.Fatalf("set focus: %v", err)
			}
			if changes != 0 || len(b.Calls()) != 0 {
				t.Fatalf("setting the current focus must be a no-op (changes=%d calls=%v)", changes, b.Calls())
			}

			mustRegister(t, r, "p", Behavior{TakesFocus: true})
			b.ResetCalls()
			if err := r.SetFocus(ctx, HostFocused(), tt.restore); err != nil {
				t.Fatalf("set focus: %v", err)
			}
			calls := b.Calls()
			if len(calls) == 0 || calls[0] != "UnfocusWindow(p)" {
				t.Fatalf("calls = %v, want UnfocusWindow(p) first", calls)
			}
			if tt.want == "" {
				if len(calls) != 1 {
					t.Fatalf("calls = %v, want only the unfocus", calls)
				}
				return
			}
			if len(calls) != 2 || calls[1] != tt.want {
				t.Fatalf("calls = %v, want %s after unfocus", calls, tt.want)
			}
		})
	}
}

func TestUpdateBehavior_SwapsCaptures(t *testing.T) {
	ctx := context.Background()
	r, b, _ := newTestRouter(t)
	mustRegister(t, r, "w", Behavior{CapturedKeys: []platform.Key{platform.KeyEnter}})

	ok, err := r.UpdateBehavior(ctx, "w", Behavior{CapturedKeys: []platform.Key{platform.KeyArrowUp}, Group: "g"})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	got, ok := r.Behavior("w")
	if !ok {
		t.Fatalf("w not registered after update")
	}
	if got.Captures(platform.KeyEnter) || !got.Captures(platform.KeyArrowUp) || got.Group != "g" {
		t.Fatalf("behavior = %+v", got)
	}
	if b.CallsTo("CaptureKeys(w)") != 2 {
		t.Fatalf("CaptureKeys calls = %d, want 2", b.CallsTo("CaptureKeys(w)"))
	}
}

func TestClickDismiss_BlocksImmediateReRegister(t *testing.T) {
	ctx := context.Background()
	r, b, clock := newTestRouter(t)

	var dismissed int
	r.Dismissals().Register("tooltip-1", func() {
		dismissed++
		_ = r.Unregister(ctx, "tooltip-1")
	})

	mustRegister(t, r, "tooltip-1", Behavior{})
	b.ClickOutside("tooltip-1", platform.Point{X: 100, Y: 100}, "")
	if dismissed != 1 {
		t.Fatalf("dismissed = %d, want 1", dismissed)
	}

	ok, err := r.Register(ctx, "tooltip-1", Behavior{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if ok {
		t.Fatalf("register right after click-dismiss should be refused")
	}
	if r.IsRegistered("tooltip-1") {
		t.Fatalf("refused registration mutated the live map")
	}

	clock.Advance(10 * time.Millisecond)
	mustRegister(t, r, "tooltip-1", Behavior{})
}

func TestClickOutside_UnfocusPolicyReturnsFocusToHost(t *testing.T) {
	r, b, _ := newTestRouter(t)
	mustRegister(t, r, "editor", Behavior{TakesFocus: true, ClickOutside: ClickUnfocus})

	b.ClickOutside("editor", platform.Point{X: 5, Y: 5}, "")
	if got := r.Focused(); got != HostFocused() {
		t.Fatalf("focus = %s, want host", got)
	}
	if !r.IsRegistered("editor") {
		t.Fatalf("unfocus policy must keep the window registered")
	}
}

func TestClickOutside_FrozenWindowIgnored(t *testing.T) {
	r, b, _ := newTestRouter(t)
	var dismissed int
	r.Dismissals().Register("w", func() { dismissed++ })

	mustRegister(t, r, "w", Behavior{})
	r.SetFrozen("w", true)
	b.ClickOutside("w", platform.Point{}, "")
	if dismissed != 0 {
		t.Fatalf("frozen window was dismissed")
	}
}

func TestRegister_RemovedWhileCapturing(t *testing.T) {
	ctx := context.Background()
	r, b, _ := newTestRouter(t)
	b.Seed("a", platformtest.Window{})
	b.OnCall("CaptureKeys", func() {
		if err := r.Unregister(ctx, "a"); err != nil {
			t.Errorf("unregister: %v", err)
		}
	})

	ok, err := r.Register(ctx, "a", Behavior{TakesFocus: true, CapturedKeys: []platform.Key{platform.KeyEnter}})
	if err != nil || ok {
		t.Fatalf("register = %v, %v; want false, nil", ok, err)
	}
	if r.IsRegistered("a") {
		t.Fatalf("a registered after removal")
	}
	if w, _ := b.Window("a"); len(w.Keys) != 0 || w.Pointer {
		t.Fatalf("captures leaked: keys=%v pointer=%v", w.Keys, w.Pointer)
	}
	if b.KeySubscribers("a") != 0 || b.ClickSubscribers("a") != 0 {
		t.Fatalf("subscriptions leaked")
	}
	if got := r.Focused(); got != HostFocused() {
		t.Fatalf("focus = %s, want host", got)
	}
}

func TestSetFocus_UnregisteredPalette(t *testing.T) {
	r, b, _ := newTestRouter(t)
	err := r.SetFocus(context.Background(), PaletteFocused("ghost"), RestoreNone)
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("err = %v, want ErrNotRegistered", err)
	}
	if got := r.Focused(); got != HostFocused() {
		t.Fatalf("focus = %s, want host", got)
	}
	if n := b.CallsTo("FocusWindow"); n != 0 {
		t.Fatalf("FocusWindow calls = %d, want 0", n)
	}
}
