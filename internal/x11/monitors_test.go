package x11

import (
	"testing"

	"github.com/BurntSushi/xgbutil/ewmh"
)

func TestIntersect(t *testing.T) {
	tests := []struct {
		name string
		a, b Geometry
		want Geometry
	}{
		{
			name: "overlap",
			a:    Geometry{X: 0, Y: 0, Width: 100, Height: 100},
			b:    Geometry{X: 50, Y: 60, Width: 100, Height: 100},
			want: Geometry{X: 50, Y: 60, Width: 50, Height: 40},
		},
		{
			name: "contained",
			a:    Geometry{X: 0, Y: 0, Width: 1920, Height: 1080},
			b:    Geometry{X: 0, Y: 32, Width: 1920, Height: 1048},
			want: Geometry{X: 0, Y: 32, Width: 1920, Height: 1048},
		},
		{
			name: "touching edges",
			a:    Geometry{X: 0, Y: 0, Width: 100, Height: 100},
			b:    Geometry{X: 100, Y: 0, Width: 100, Height: 100},
		},
		{
			name: "disjoint",
			a:    Geometry{X: 0, Y: 0, Width: 10, Height: 10},
			b:    Geometry{X: 50, Y: 50, Width: 10, Height: 10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := intersect(tt.a, tt.b); got != tt.want {
				t.Fatalf("intersect = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestUpdateStrutsForMonitor(t *testing.T) {
	left := Geometry{X: 0, Y: 0, Width: 1920, Height: 1080}
	right := Geometry{X: 1920, Y: 0, Width: 1920, Height: 1080}
	const rootW, rootH = 3840, 1080

	// A 32px top panel spanning only the left monitor and a 48px bottom dock
	// spanning both.
	panel := &ewmh.WmStrutPartial{Top: 32, TopStartX: 0, TopEndX: 1919}
	dock := &ewmh.WmStrutPartial{Bottom: 48, BottomStartX: 0, BottomEndX: 3839}

	var accL, accR dockStruts
	for _, sp := range []*ewmh.WmStrutPartial{panel, dock} {
		updateStrutsForMonitor(left, rootW, rootH, sp, &accL)
		updateStrutsForMonitor(right, rootW, rootH, sp, &accR)
	}

	if accL != (dockStruts{top: 32, bottom: 48}) {
		t.Fatalf("left struts = %+v", accL)
	}
	if accR != (dockStruts{bottom: 48}) {
		t.Fatalf("right struts = %+v", accR)
	}

	got := shrink(left, accL)
	want := Geometry{X: 0, Y: 32, Width: 1920, Height: 1000}
	if got != want {
		t.Fatalf("shrink = %+v, want %+v", got, want)
	}
}

func TestUpdateStrutsForMonitor_SideStruts(t *testing.T) {
	mon := Geometry{X: 0, Y: 0, Width: 1000, Height: 800}
	var acc dockStruts
	updateStrutsForMonitor(mon, 1000, 800, &ewmh.WmStrutPartial{
		Left: 40, LeftStartY: 0, LeftEndY: 799,
		Right: 25, RightStartY: 100, RightEndY: 399,
	}, &acc)
	if acc != (dockStruts{left: 40, right: 25}) {
		t.Fatalf("struts = %+v", acc)
	}
}

func TestShrink_NeverBelowOnePixel(t *testing.T) {
	got := shrink(Geometry{Width: 10, Height: 10}, dockStruts{left: 8, right: 8, top: 20})
	if got.Width != 1 || got.Height != 1 {
		t.Fatalf("shrink = %+v", got)
	}
}

func TestPrimaryMonitor(t *testing.T) {
	if _, ok := primaryMonitor(nil); ok {
		t.Fatalf("expected no monitor")
	}
	mons := []Monitor{{ID: 0, Name: "DP-1"}, {ID: 1, Name: "HDMI-1", Primary: true}}
	if m, _ := primaryMonitor(mons); m.Name != "HDMI-1" {
		t.Fatalf("primary = %s", m.Name)
	}
	mons[1].Primary = false
	if m, _ := primaryMonitor(mons); m.Name != "DP-1" {
		t.Fatalf("fallback = %s", m.Name)
	}
}

func TestGeometryContains(t *testing.T) {
	g := Geometry{X: 10, Y: 10, Width: 20, Height: 20}
	tests := []struct {
		x, y int
		want bool
	}{
		{10, 10, true},
		{29, 29, true},
		{30, 10, false},
		{9, 15, false},
	}
	for _, tt := range tests {
		if got := g.Contains(tt.x, tt.y); got != tt.want {
			t.Fatalf("Contains(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}
