package position

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/1broseidon/palettehost/internal/platform"
	"github.com/1broseidon/palettehost/internal/platform/platformtest"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		yAxisUp bool
		spec    Spec
		want    platform.Point
	}{
		{
			name: "cursor offset, y down",
			spec: Spec{Anchor: AnchorCursor, Offset: platform.Point{X: 10, Y: 20}},
			want: platform.Point{X: 410, Y: 320},
		},
		{
			name:    "cursor offset, y up",
			yAxisUp: true,
			spec:    Spec{Anchor: AnchorCursor, Offset: platform.Point{X: 10, Y: 20}},
			want:    platform.Point{X: 410, Y: 280},
		},
		{
			name: "screen center",
			spec: Spec{Anchor: AnchorScreen},
			want: platform.Point{X: 960, Y: 540},
		},
		{
			name:    "screen center with offset, y up",
			yAxisUp: true,
			spec:    Spec{Anchor: AnchorScreen, Offset: platform.Point{X: 0, Y: 100}},
			want:    platform.Point{X: 960, Y: 440},
		},
		{
			name: "absolute ignores offset",
			spec: Spec{Anchor: AnchorAbsolute, Point: platform.Point{X: 7, Y: 9}, Offset: platform.Point{X: 100, Y: 100}},
			want: platform.Point{X: 7, Y: 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := platformtest.New()
			b.Cursor = platform.Point{X: 400, Y: 300}
			r := NewResolver(b, tt.yAxisUp, discard)
			if got := r.Resolve(context.Background(), tt.spec); got != tt.want {
				t.Fatalf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolve_FallsBackToRawOffset(t *testing.T) {
	b := platformtest.New()
	b.WorkArea = nil
	b.FailOn("CursorPosition", errors.New("no pointer"))
	r := NewResolver(b, false, discard)

	offset := platform.Point{X: 30, Y: 40}
	if got := r.Resolve(context.Background(), Spec{Anchor: AnchorScreen, Offset: offset}); got != offset {
		t.Fatalf("screen without work area = %+v, want %+v", got, offset)
	}
	if got := r.Resolve(context.Background(), Spec{Anchor: AnchorCursor, Offset: offset}); got != offset {
		t.Fatalf("cursor failure = %+v, want %+v", got, offset)
	}
}

func TestPlace(t *testing.T) {
	b := platformtest.New()
	b.Cursor = platform.Point{X: 1900, Y: 1000}
	r := NewResolver(b, false, discard)
	size := platform.Size{Width: 400, Height: 200}

	got := r.Place(context.Background(), Spec{Anchor: AnchorScreen}, size)
	want := platform.Rect{X: 760, Y: 440, Width: 400, Height: 200}
	if got != want {
		t.Fatalf("centered = %+v, want %+v", got, want)
	}

	got = r.Place(context.Background(), Spec{Anchor: AnchorCursor}, size)
	want = platform.Rect{X: 1900, Y: 1000, Width: 400, Height: 200}
	if got != want {
		t.Fatalf("cursor = %+v, want %+v", got, want)
	}

	got = r.Place(context.Background(), Spec{Anchor: AnchorCursor, KeepOnScreen: true}, size)
	want = platform.Rect{X: 1520, Y: 880, Width: 400, Height: 200}
	if got != want {
		t.Fatalf("cursor kept on screen = %+v, want %+v", got, want)
	}
}

func TestParseAnchor(t *testing.T) {
	for in, want := range map[string]Anchor{"": AnchorScreen, "Cursor": AnchorCursor, "centered": AnchorScreen, "absolute": AnchorAbsolute} {
		got, err := ParseAnchor(in)
		if err != nil || got != want {
			t.Fatalf("ParseAnchor(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseAnchor("top-left"); err == nil {
		t.Fatalf("expected error for unknown anchor")
	}
}
