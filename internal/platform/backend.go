package platform

import (
	"context"
	"errors"
)

// WindowID is the opaque, stable identifier of a palette window. It is the join
// key across every component; no numeric native handles leak above this package.
type WindowID string

var (
	// ErrWindowExists is returned by CreateWindow when a native window with the
	// same id is already present (for example a survivor of a daemon restart).
	ErrWindowExists = errors.New("window already exists")
	// ErrWindowNotFound is returned by operations targeting an unknown window.
	ErrWindowNotFound = errors.New("window not found")
)

// Point is a screen coordinate.
type Point struct {
	X int
	Y int
}

// Size is a window size in screen units.
type Size struct {
	Width  int
	Height int
}

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Origin returns the top-left corner of r.
func (r Rect) Origin() Point { return Point{X: r.X, Y: r.Y} }

// Size returns the dimensions of r.
func (r Rect) Size() Size { return Size{Width: r.Width, Height: r.Height} }

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// Center returns the center point of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Appearance carries the creation-time look of a palette window.
type Appearance struct {
	Title       string
	Transparent bool
	Opacity     float64
}

// Level is a z-order band a window can be pinned to.
type Level int

// Stacking levels, lowest first.
const (
	LevelNormal Level = iota
	LevelFloating
	LevelStatus
)

// WindowState is one entry of a native snapshot.
type WindowState struct {
	Visible bool
	Bounds  Rect
	Focused bool
}

// Capabilities describes what a native bridge supports.
type Capabilities struct {
	Platform        string `json:"platform"`
	ProtocolVersion int    `json:"protocol_version"`
	Blur            bool   `json:"blur"`
	Transform       bool   `json:"transform"`
	GlobalHotkeys   bool   `json:"global_hotkeys"`
	GlassEffect     bool   `json:"glass_effect"`
	MultiMonitor    bool   `json:"multi_monitor"`
	ContentSizing   bool   `json:"content_sizing"`
	// YAxisUp is true on platforms whose screen Y coordinate grows upward.
	YAxisUp bool `json:"y_axis_up"`
}

// KeyEvent is a key press reported by the native layer for a window.
type KeyEvent struct {
	ID        WindowID
	Key       Key
	Modifiers Modifiers
}

// ClickOutside is reported when a pointer click lands outside a window that is
// capturing pointer events. Sibling is the palette the click landed on, if any.
type ClickOutside struct {
	ID       WindowID
	Position Point
	Sibling  WindowID
}

// EventKind identifies native lifecycle notifications.
type EventKind string

// Native lifecycle event kinds.
const (
	EventShown        EventKind = "shown"
	EventHidden       EventKind = "hidden"
	EventClosed       EventKind = "closed"
	EventContentReady EventKind = "content_ready"
	EventKeyUp        EventKind = "key_up"
)

// Event is a native lifecycle notification.
type Event struct {
	Kind EventKind
	ID   WindowID
	Key  Key
}

// WindowManager creates, positions and reveals native windows.
type WindowManager interface {
	CreateWindow(ctx context.Context, id WindowID, size Size, appearance Appearance) error
	DestroyWindow(ctx context.Context, id WindowID) error
	SetFrame(ctx context.Context, id WindowID, frame Rect, animated bool) error
	Reveal(ctx context.Context, id WindowID, animated, takeFocus bool) error
	Conceal(ctx context.Context, id WindowID, animated bool) error
	Pin(ctx context.Context, id WindowID, level Level) error
	Snapshot(ctx context.Context) (map[WindowID]WindowState, error)
}

// InputCapture grabs keyboard and pointer input on behalf of a window.
type InputCapture interface {
	CaptureKeys(ctx context.Context, id WindowID, keys []Key) error
	ReleaseKeys(ctx context.Context, id WindowID) error
	CapturePointer(ctx context.Context, id WindowID) error
	ReleasePointer(ctx context.Context, id WindowID) error
}

// Focuser moves OS keyboard focus between palettes and the host application.
type Focuser interface {
	FocusWindow(ctx context.Context, id WindowID) error
	UnfocusWindow(ctx context.Context, id WindowID) error
	ActivateMainWindow(ctx context.Context) error
	HideApplication(ctx context.Context) error
}

// Screen answers geometry queries.
type Screen interface {
	CursorPosition(ctx context.Context) (Point, error)
	PrimaryWorkArea(ctx context.Context) (Rect, error)
}

// Events delivers native notifications. Every subscription returns a cancel
// function that is safe to call more than once.
type Events interface {
	OnKeyDown(id WindowID, fn func(KeyEvent)) (cancel func())
	OnClickOutside(id WindowID, fn func(ClickOutside)) (cancel func())
	Watch(fn func(Event)) (cancel func())
}

// Bridge is the complete native collaborator used by the coordination core.
type Bridge interface {
	WindowManager
	InputCapture
	Focuser
	Screen
	Events
	Capabilities() Capabilities
}
