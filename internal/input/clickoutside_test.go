package input

import (
	"testing"
	"time"

	"github.com/1broseidon/palettehost/internal/platform"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type clickFixture struct {
	clock     *fakeClock
	guard     *ShowGuard
	dismiss   *DismissCoordinator
	handler   *ClickOutsideHandler
	dismissed map[platform.WindowID]int
	unfocused int
}

func newClickFixture(ids ...platform.WindowID) *clickFixture {
	f := &clickFixture{
		clock:     newFakeClock(),
		dismissed: make(map[platform.WindowID]int),
	}
	f.guard = NewShowGuard(0, f.clock.Now)
	f.dismiss = NewDismissCoordinator(nil)
	for _, id := range ids {
		id := id
		f.dismiss.Register(id, func() { f.dismissed[id]++ })
	}
	f.handler = NewClickOutsideHandler(ClickOutsideConfig{Now: f.clock.Now}, f.guard, f.dismiss, func() { f.unfocused++ })
	return f
}

func TestClickOutside_DismissMarksGuardAndRequests(t *testing.T) {
	f := newClickFixture("tooltip-1")

	got := f.handler.Handle("tooltip-1", ClickDismiss, ScopeAnywhere, platform.Point{X: 100, Y: 100}, "")
	if got != OutcomeDismiss {
		t.Fatalf("outcome = %q, want %q", got, OutcomeDismiss)
	}
	if f.dismissed["tooltip-1"] != 1 {
		t.Fatalf("dismissed = %d, want 1", f.dismissed["tooltip-1"])
	}
	if !f.guard.IsBlocked("tooltip-1") {
		t.Fatalf("expected show guard mark for tooltip-1")
	}

	// Duplicate report of the same physical click.
	f.clock.Advance(20 * time.Millisecond)
	got = f.handler.Handle("tooltip-1", ClickDismiss, ScopeAnywhere, platform.Point{X: 101, Y: 101}, "")
	if got != OutcomeDuplicate {
		t.Fatalf("second outcome = %q, want %q", got, OutcomeDuplicate)
	}
	if f.dismissed["tooltip-1"] != 1 {
		t.Fatalf("dismissed = %d after duplicate, want 1", f.dismissed["tooltip-1"])
	}
}

func TestClickOutside_OneDismissPerWindowPerClick(t *testing.T) {
	f := newClickFixture("a", "b", "c")
	pos := platform.Point{X: 300, Y: 200}

	for _, id := range []platform.WindowID{"a", "b", "c", "a", "b"} {
		f.handler.Handle(id, ClickDismiss, ScopeAnywhere, pos, "")
		f.clock.Advance(5 * time.Millisecond)
	}
	for _, id := range []platform.WindowID{"a", "b", "c"} {
		if f.dismissed[id] != 1 {
			t.Fatalf("dismissed[%s] = %d, want 1", id, f.dismissed[id])
		}
	}

	f.clock.Advance(200 * time.Millisecond)
	if got := f.handler.Handle("a", ClickDismiss, ScopeAnywhere, pos, ""); got != OutcomeDismiss {
		t.Fatalf("click 200ms later outcome = %q, want %q", got, OutcomeDismiss)
	}
	if f.dismissed["a"] != 2 {
		t.Fatalf("dismissed[a] = %d, want 2", f.dismissed["a"])
	}
}

func TestClickOutside_DedupBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		second  platform.Point
		want    ClickOutcome
	}{
		{name: "49ms same position", advance: 49 * time.Millisecond, second: platform.Point{X: 10, Y: 10}, want: OutcomeDuplicate},
		{name: "51ms same position", advance: 51 * time.Millisecond, second: platform.Point{X: 10, Y: 10}, want: OutcomeDismiss},
		{name: "4px apart", advance: time.Millisecond, second: platform.Point{X: 14, Y: 10}, want: OutcomeDuplicate},
		{name: "6px apart", advance: time.Millisecond, second: platform.Point{X: 16, Y: 10}, want: OutcomeDismiss},
		{name: "3-4-5 triangle is not under 5px", advance: time.Millisecond, second: platform.Point{X: 13, Y: 14}, want: OutcomeDismiss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newClickFixture("w")
			f.handler.Handle("w", ClickDismiss, ScopeAnywhere, platform.Point{X: 10, Y: 10}, "")
			f.clock.Advance(tt.advance)
			if got := f.handler.Handle("w", ClickDismiss, ScopeAnywhere, tt.second, ""); got != tt.want {
				t.Fatalf("outcome = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClickOutside_DedupMeasuredFromFirstReport(t *testing.T) {
	f := newClickFixture("a", "b")
	pos := platform.Point{X: 50, Y: 50}

	f.handler.Handle("a", ClickDismiss, ScopeAnywhere, pos, "")
	f.clock.Advance(40 * time.Millisecond)
	f.handler.Handle("b", ClickDismiss, ScopeAnywhere, pos, "")
	f.clock.Advance(20 * time.Millisecond)

	// 60ms after the first report: a new physical click even though b's report
	// was only 20ms ago.
	if got := f.handler.Handle("a", ClickDismiss, ScopeAnywhere, pos, ""); got != OutcomeDismiss {
		t.Fatalf("outcome = %q, want %q", got, OutcomeDismiss)
	}
}

func TestClickOutside_Policies(t *testing.T) {
	tests := []struct {
		policy       ClickPolicy
		want         ClickOutcome
		wantDismiss  int
		wantUnfocus  int
		wantGuardSet bool
	}{
		{policy: ClickDismiss, want: OutcomeDismiss, wantDismiss: 1, wantGuardSet: true},
		{policy: ClickUnfocus, want: OutcomeUnfocus, wantUnfocus: 1},
		{policy: ClickBlock, want: OutcomeBlock},
		{policy: ClickPassthrough, want: OutcomeIgnored},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			f := newClickFixture("w")
			got := f.handler.Handle("w", tt.policy, ScopeAnywhere, platform.Point{}, "")
			if got != tt.want {
				t.Fatalf("outcome = %q, want %q", got, tt.want)
			}
			if f.dismissed["w"] != tt.wantDismiss {
				t.Fatalf("dismissed = %d, want %d", f.dismissed["w"], tt.wantDismiss)
			}
			if f.unfocused != tt.wantUnfocus {
				t.Fatalf("unfocused = %d, want %d", f.unfocused, tt.wantUnfocus)
			}
			if f.guard.IsBlocked("w") != tt.wantGuardSet {
				t.Fatalf("guard blocked = %v, want %v", f.guard.IsBlocked("w"), tt.wantGuardSet)
			}
		})
	}
}

func TestClickOutside_NonPaletteScopeIgnoresSiblingClicks(t *testing.T) {
	f := newClickFixture("menu")

	got := f.handler.Handle("menu", ClickDismiss, ScopeNonPalette, platform.Point{X: 1, Y: 1}, "submenu")
	if got != OutcomeSibling {
		t.Fatalf("outcome = %q, want %q", got, OutcomeSibling)
	}
	if f.dismissed["menu"] != 0 {
		t.Fatalf("sibling click dismissed the window")
	}

	// The same click on the background does count.
	got = f.handler.Handle("menu", ClickDismiss, ScopeNonPalette, platform.Point{X: 1, Y: 1}, "")
	if got != OutcomeDismiss {
		t.Fatalf("outcome = %q, want %q", got, OutcomeDismiss)
	}

	// Anywhere scope treats a sibling click as outside.
	f.clock.Advance(time.Second)
	got = f.handler.Handle("menu", ClickDismiss, ScopeAnywhere, platform.Point{X: 1, Y: 1}, "submenu")
	if got != OutcomeDismiss {
		t.Fatalf("anywhere outcome = %q, want %q", got, OutcomeDismiss)
	}
}
