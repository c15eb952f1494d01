package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// TagProperty names the property carrying a palette's id.
const TagProperty = "_PALETTE_ID"

const paletteEventMask = xproto.EventMaskKeyPress |
	xproto.EventMaskKeyRelease |
	xproto.EventMaskButtonPress |
	xproto.EventMaskExposure |
	xproto.EventMaskStructureNotify

// Geometry is a window rectangle in root coordinates.
type Geometry struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Contains reports whether the root point (x, y) lies inside g.
func (g Geometry) Contains(x, y int) bool {
	return x >= g.X && x < g.X+g.Width && y >= g.Y && y < g.Y+g.Height
}

// WindowOptions describes a palette window at creation time.
type WindowOptions struct {
	Tag     string
	Width   int
	Height  int
	Title   string
	Opacity float64
}

// CreatePaletteWindow creates an unmapped, override-redirect top-level window
// tagged with opts.Tag.
func (c *Connection) CreatePaletteWindow(opts WindowOptions) (xproto.Window, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return 0, fmt.Errorf("invalid window size %dx%d", opts.Width, opts.Height)
	}

	win, err := xwindow.Generate(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate window id: %w", err)
	}
	err = win.CreateChecked(c.Root, 0, 0, opts.Width, opts.Height,
		xproto.CwBackPixel|xproto.CwOverrideRedirect|xproto.CwEventMask,
		0, 1, paletteEventMask)
	if err != nil {
		return 0, fmt.Errorf("failed to create window: %w", err)
	}

	if err := xprop.ChangeProp(c.XUtil, win.Id, 8, TagProperty, "UTF8_STRING", []byte(opts.Tag)); err != nil {
		win.Destroy()
		return 0, fmt.Errorf("failed to tag window: %w", err)
	}

	// Hints for compositors and pagers; failures are not fatal.
	_ = ewmh.WmWindowTypeSet(c.XUtil, win.Id, []string{"_NET_WM_WINDOW_TYPE_POPUP_MENU"})
	_ = ewmh.WmStateSet(c.XUtil, win.Id, []string{"_NET_WM_STATE_SKIP_TASKBAR", "_NET_WM_STATE_SKIP_PAGER"})
	if opts.Title != "" {
		_ = ewmh.WmNameSet(c.XUtil, win.Id, opts.Title)
	}
	if opts.Opacity > 0 && opts.Opacity < 1 {
		_ = xprop.ChangeProp32(c.XUtil, win.Id, "_NET_WM_WINDOW_OPACITY", "CARDINAL", opacityValue(opts.Opacity))
	}

	return win.Id, nil
}

func opacityValue(opacity float64) uint {
	if opacity <= 0 {
		return 0
	}
	if opacity >= 1 {
		return 0xffffffff
	}
	return uint(opacity * 0xffffffff)
}

// PaletteTag returns the tag of windowID, or "" for untagged windows.
func (c *Connection) PaletteTag(windowID xproto.Window) string {
	tag, err := xprop.PropValStr(xprop.GetProperty(c.XUtil, windowID, TagProperty))
	if err != nil {
		return ""
	}
	return tag
}

// TaggedWindows returns every top-level window carrying a palette tag, keyed by
// tag. Windows left behind by an earlier daemon are included.
func (c *Connection) TaggedWindows() (map[string]xproto.Window, error) {
	tree, err := xproto.QueryTree(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query window tree: %w", err)
	}
	out := make(map[string]xproto.Window)
	for _, child := range tree.Children {
		if tag := c.PaletteTag(child); tag != "" {
			out[tag] = child
		}
	}
	return out, nil
}

// DestroyWindow destroys windowID.
func (c *Connection) DestroyWindow(windowID xproto.Window) error {
	return xproto.DestroyWindowChecked(c.XUtil.Conn(), windowID).Check()
}

// MoveResizeWindow moves and resizes an override-redirect window.
func (c *Connection) MoveResizeWindow(windowID xproto.Window, g Geometry) error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("invalid window size %dx%d", g.Width, g.Height)
	}
	mask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY |
		xproto.ConfigWindowWidth | xproto.ConfigWindowHeight)
	values := []uint32{uint32(int32(g.X)), uint32(int32(g.Y)), uint32(g.Width), uint32(g.Height)}
	return xproto.ConfigureWindowChecked(c.XUtil.Conn(), windowID, mask, values).Check()
}

// MapWindow maps windowID and optionally raises it.
func (c *Connection) MapWindow(windowID xproto.Window, raise bool) error {
	if err := xproto.MapWindowChecked(c.XUtil.Conn(), windowID).Check(); err != nil {
		return err
	}
	if raise {
		return c.RaiseWindow(windowID)
	}
	return nil
}

// UnmapWindow unmaps windowID.
func (c *Connection) UnmapWindow(windowID xproto.Window) error {
	return xproto.UnmapWindowChecked(c.XUtil.Conn(), windowID).Check()
}

// RaiseWindow puts windowID on top of its siblings.
func (c *Connection) RaiseWindow(windowID xproto.Window) error {
	return xproto.ConfigureWindowChecked(c.XUtil.Conn(), windowID,
		xproto.ConfigWindowStackMode, []uint32{xproto.StackModeAbove}).Check()
}

// WindowGeometry returns the root-relative geometry of windowID.
func (c *Connection) WindowGeometry(windowID xproto.Window) (Geometry, error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return Geometry{}, err
	}

	translate, err := xproto.TranslateCoordinates(
		c.XUtil.Conn(),
		windowID,
		c.Root,
		0, 0,
	).Reply()
	if err != nil {
		return Geometry{}, err
	}

	return Geometry{
		X:      int(translate.DstX),
		Y:      int(translate.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, nil
}

// IsViewable reports whether windowID is mapped.
func (c *Connection) IsViewable(windowID xproto.Window) (bool, error) {
	attrs, err := xproto.GetWindowAttributes(c.XUtil.Conn(), windowID).Reply()
	if err != nil {
		return false, err
	}
	return attrs.MapState == xproto.MapStateViewable, nil
}

// InputFocus returns the window holding keyboard focus.
func (c *Connection) InputFocus() (xproto.Window, error) {
	reply, err := xproto.GetInputFocus(c.XUtil.Conn()).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Focus, nil
}

// SetInputFocus gives keyboard focus to windowID. Focus falls back to the
// pointer root when the window goes away.
func (c *Connection) SetInputFocus(windowID xproto.Window) error {
	return xproto.SetInputFocusChecked(c.XUtil.Conn(), xproto.InputFocusPointerRoot,
		windowID, xproto.TimeCurrentTime).Check()
}

// FocusPointerRoot lets keyboard focus follow the pointer again.
func (c *Connection) FocusPointerRoot() error {
	return xproto.SetInputFocusChecked(c.XUtil.Conn(), xproto.InputFocusPointerRoot,
		xproto.InputFocusPointerRoot, xproto.TimeCurrentTime).Check()
}

// GetActiveWindow returns the window the window manager considers active.
func (c *Connection) GetActiveWindow() (xproto.Window, error) {
	return ewmh.ActiveWindowGet(c.XUtil)
}
