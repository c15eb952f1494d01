// Package position turns abstract palette placements into screen coordinates.
package position

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/1broseidon/palettehost/internal/platform"
)

// Anchor selects what a Spec's offset is relative to.
type Anchor string

const (
	// AnchorCursor places the window's top-left corner at the cursor plus offset.
	AnchorCursor Anchor = "cursor"
	// AnchorScreen centers the window in the primary work area, moved by offset.
	AnchorScreen Anchor = "screen"
	// AnchorAbsolute uses Spec.Point unchanged as the top-left corner.
	AnchorAbsolute Anchor = "absolute"
)

// ParseAnchor validates a config value. Empty selects AnchorScreen.
func ParseAnchor(s string) (Anchor, error) {
	switch a := Anchor(strings.ToLower(strings.TrimSpace(s))); a {
	case "", "center", "centered":
		return AnchorScreen, nil
	case AnchorCursor, AnchorScreen, AnchorAbsolute:
		return a, nil
	default:
		return "", fmt.Errorf("invalid anchor %q (expected: cursor, screen, absolute)", s)
	}
}

// Spec is an abstract placement. Offsets use screen-down positive Y on every
// platform; the resolver translates them.
type Spec struct {
	Anchor Anchor
	Offset platform.Point
	Point  platform.Point
	// KeepOnScreen shifts a placed rect back inside the work area.
	KeepOnScreen bool
}

// Resolver maps Specs to points using the native screen queries.
type Resolver struct {
	screen  platform.Screen
	yAxisUp bool
	logger  *slog.Logger
}

// NewResolver creates a resolver for a platform whose Y axis grows upward
// when yAxisUp is set.
func NewResolver(screen platform.Screen, yAxisUp bool, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{screen: screen, yAxisUp: yAxisUp, logger: logger}
}

func (r *Resolver) yMultiplier() int {
	if r.yAxisUp {
		return -1
	}
	return 1
}

func (r *Resolver) translate(p, offset platform.Point) platform.Point {
	return platform.Point{X: p.X + offset.X, Y: p.Y + offset.Y*r.yMultiplier()}
}

// Resolve returns the anchor point of spec. When the screen cannot be queried
// the raw offset is returned.
func (r *Resolver) Resolve(ctx context.Context, spec Spec) platform.Point {
	switch spec.Anchor {
	case AnchorAbsolute:
		return spec.Point
	case AnchorCursor:
		cur, err := r.screen.CursorPosition(ctx)
		if err != nil {
			r.logger.Warn("cursor position unavailable, using raw offset", "error", err)
			return spec.Offset
		}
		return r.translate(cur, spec.Offset)
	default:
		area, err := r.screen.PrimaryWorkArea(ctx)
		if err != nil {
			r.logger.Warn("work area unavailable, using raw offset", "error", err)
			return spec.Offset
		}
		return r.translate(area.Center(), spec.Offset)
	}
}

// Place returns the frame of a window of the given size placed at spec.
func (r *Resolver) Place(ctx context.Context, spec Spec, size platform.Size) platform.Rect {
	p := r.Resolve(ctx, spec)
	rect := platform.Rect{X: p.X, Y: p.Y, Width: size.Width, Height: size.Height}
	if spec.Anchor != AnchorCursor && spec.Anchor != AnchorAbsolute {
		rect.X -= size.Width / 2
		rect.Y -= size.Height / 2
	}

	if !spec.KeepOnScreen {
		return rect
	}
	area, err := r.screen.PrimaryWorkArea(ctx)
	if err != nil {
		return rect
	}
	return clamp(rect, area)
}

// clamp moves rect inside area, preferring the top-left edge when rect is
// larger than area.
func clamp(rect, area platform.Rect) platform.Rect {
	if rect.X+rect.Width > area.X+area.Width {
		rect.X = area.X + area.Width - rect.Width
	}
	if rect.Y+rect.Height > area.Y+area.Height {
		rect.Y = area.Y + area.Height - rect.Height
	}
	if rect.X < area.X {
		rect.X = area.X
	}
	if rect.Y < area.Y {
		rect.Y = area.Y
	}
	return rect
}
