//go:build linux

package platform

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/palettehost/internal/notify"
	"github.com/1broseidon/palettehost/internal/x11"
)

func newTestX11Bridge() *X11Bridge {
	return &X11Bridge{
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		windows:    make(map[WindowID]*x11Window),
		byXID:      make(map[xproto.Window]WindowID),
		keyRefs:    make(map[xproto.Keycode]int),
		keyFeeds:   make(map[WindowID]*notify.Feed[KeyEvent]),
		clickFeeds: make(map[WindowID]*notify.Feed[ClickOutside]),
	}
}

func TestKeysymRoundTrip(t *testing.T) {
	keys := []Key{
		KeySpace, KeyBackspace, KeyTab, KeyEnter, KeyEscape, KeyDelete,
		KeyArrowDown, KeyArrowLeft, KeyArrowRight, KeyArrowUp,
		KeyEnd, KeyHome, KeyPageDown, KeyPageUp,
		KeyF1, KeyF1 + 4, KeyF12,
		KeyShiftLeft, KeyControlLeft, KeyAltLeft, KeyMetaLeft,
		Key('a'), Key('z'), Key('0'), Key('/'), Key('.'), Key('\\'),
	}
	for _, k := range keys {
		names := keysymNames(k)
		if len(names) == 0 {
			t.Fatalf("no keysym for %s", k)
		}
		for _, name := range names {
			got, ok := keyFromKeysym(name)
			if !ok || got != k {
				t.Fatalf("keyFromKeysym(%q) = %s,%v want %s", name, got, ok, k)
			}
		}
	}
}

func TestKeyFromKeysym(t *testing.T) {
	tests := []struct {
		name string
		want Key
		ok   bool
	}{
		{name: "Return", want: KeyEnter, ok: true},
		{name: "KP_Enter", want: KeyEnter, ok: true},
		{name: "Next", want: KeyPageDown, ok: true},
		{name: "A", want: Key('a'), ok: true},
		{name: "/", want: Key('/'), ok: true},
		{name: "slash", want: Key('/'), ok: true},
		{name: "F10", want: KeyF1 + 9, ok: true},
		{name: "F13"},
		{name: "Find"},
		{name: "XF86AudioPlay"},
		{name: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := keyFromKeysym(tt.name)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("keyFromKeysym(%q) = %v,%v want %v,%v", tt.name, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestModifiersFromState(t *testing.T) {
	got := modifiersFromState(x11.ModifierState{Shift: true, Meta: true})
	if got != ModShift|ModMeta {
		t.Fatalf("modifiers = %b", got)
	}
	if modifiersFromState(x11.ModifierState{}) != 0 {
		t.Fatalf("empty state should have no modifiers")
	}
}

func TestX11Bridge_ClickOutside(t *testing.T) {
	b := newTestX11Bridge()
	b.windows["menu"] = &x11Window{xid: 1, visible: true, frame: Rect{X: 0, Y: 0, Width: 100, Height: 100}}
	b.windows["submenu"] = &x11Window{xid: 2, visible: true, frame: Rect{X: 100, Y: 0, Width: 100, Height: 100}}
	b.windows["hidden"] = &x11Window{xid: 3, frame: Rect{X: 500, Y: 500, Width: 100, Height: 100}}
	b.pointer = []WindowID{"menu", "submenu"}

	var got []ClickOutside
	b.OnClickOutside("menu", func(ev ClickOutside) { got = append(got, ev) })
	b.OnClickOutside("submenu", func(ev ClickOutside) { got = append(got, ev) })

	// Inside the submenu: only the menu hears about it, with the sibling set.
	b.handleButton(x11.ButtonInput{Window: 2, RootX: 150, RootY: 50})
	want := []ClickOutside{{ID: "menu", Position: Point{X: 150, Y: 50}, Sibling: "submenu"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("click in sibling = %+v, want %+v", got, want)
	}

	// Over a hidden palette the click is outside everything.
	got = nil
	b.handleButton(x11.ButtonInput{Window: 1, RootX: 550, RootY: 550})
	if len(got) != 2 || got[0].Sibling != "" || got[1].Sibling != "" {
		t.Fatalf("click on desktop = %+v", got)
	}

	// Inside the menu itself nothing is reported for the menu.
	got = nil
	b.handleButton(x11.ButtonInput{Window: 1, RootX: 10, RootY: 10})
	if len(got) != 1 || got[0].ID != "submenu" || got[0].Sibling != "menu" {
		t.Fatalf("click in menu = %+v", got)
	}
}

func TestX11Bridge_OwnUnmapIsNotReported(t *testing.T) {
	b := newTestX11Bridge()
	b.windows["p"] = &x11Window{xid: 1, visible: true, expectUnmap: 1}

	var events []Event
	b.Watch(func(ev Event) { events = append(events, ev) })

	b.handleUnmapped("p")
	if len(events) != 0 {
		t.Fatalf("requested unmap reported: %+v", events)
	}

	b.windows["p"].visible = true
	b.handleUnmapped("p")
	if len(events) != 1 || events[0].Kind != EventHidden || events[0].ID != "p" {
		t.Fatalf("external unmap = %+v", events)
	}
	if b.windows["p"].visible {
		t.Fatalf("window still marked visible")
	}
}

func TestX11Bridge_ContentReadyOnce(t *testing.T) {
	b := newTestX11Bridge()
	b.windows["p"] = &x11Window{xid: 1}

	n := 0
	b.Watch(func(ev Event) {
		if ev.Kind == EventContentReady {
			n++
		}
	})
	b.handleExposed("p")
	b.handleExposed("p")
	b.handleExposed("unknown")
	if n != 1 {
		t.Fatalf("content ready fired %d times", n)
	}
}

func TestX11Bridge_KeySource(t *testing.T) {
	b := newTestX11Bridge()
	b.windows["a"] = &x11Window{xid: 1, keys: []Key{KeyEscape, KeyEnter}}
	b.windows["b"] = &x11Window{xid: 2, keys: []Key{KeyEscape}}

	if got := b.keySource(KeyEnter); got != "a" {
		t.Fatalf("enter source = %q", got)
	}
	if got := b.keySource(KeyTab); got != "" {
		t.Fatalf("tab source = %q", got)
	}
	b.focused = "a"
	if got := b.keySource(KeyEscape); got != "a" {
		t.Fatalf("escape source with focus = %q", got)
	}
}

func TestRemoveID(t *testing.T) {
	got := removeID([]WindowID{"a", "b", "a", "c"}, "a")
	if !reflect.DeepEqual(got, []WindowID{"b", "c"}) {
		t.Fatalf("removeID = %v", got)
	}
}
