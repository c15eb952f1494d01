package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Monitor represents a physical display
type Monitor struct {
	ID      int
	Name    string
	Primary bool
	Bounds  Geometry
}

// GetMonitors retrieves all active monitors using XRandR
func (c *Connection) GetMonitors() ([]Monitor, error) {
	if err := randr.Init(c.XUtil.Conn()); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var primary randr.Output
	if reply, err := randr.GetOutputPrimary(c.XUtil.Conn(), c.Root).Reply(); err == nil {
		primary = reply.Output
	}

	var monitors []Monitor
	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		outputName := fmt.Sprintf("Monitor%d", i)
		outputInfo, err := randr.GetOutputInfo(c.XUtil.Conn(), crtcInfo.Outputs[0], resources.ConfigTimestamp).Reply()
		if err == nil {
			outputName = string(outputInfo.Name)
		}

		isPrimary := false
		for _, out := range crtcInfo.Outputs {
			if primary != 0 && out == primary {
				isPrimary = true
			}
		}

		monitors = append(monitors, Monitor{
			ID:      i,
			Name:    outputName,
			Primary: isPrimary,
			Bounds: Geometry{
				X:      int(crtcInfo.X),
				Y:      int(crtcInfo.Y),
				Width:  int(crtcInfo.Width),
				Height: int(crtcInfo.Height),
			},
		})
	}

	return monitors, nil
}

// PrimaryWorkArea returns the usable area (without panels and docks) of the
// primary monitor, or of the first monitor when none is marked primary.
func (c *Connection) PrimaryWorkArea() (Geometry, error) {
	monitors, err := c.GetMonitors()
	if err != nil {
		return Geometry{}, err
	}
	mon, ok := primaryMonitor(monitors)
	if !ok {
		return Geometry{}, fmt.Errorf("no monitors found")
	}

	if area, ok := c.applyDockStruts(mon.Bounds); ok {
		return area, nil
	}

	// Fallback: intersect with _NET_WORKAREA of the current desktop.
	workArea, err := ewmh.WorkareaGet(c.XUtil)
	if err != nil || len(workArea) == 0 {
		return mon.Bounds, nil
	}
	desktopIndex := 0
	if current, err := ewmh.CurrentDesktopGet(c.XUtil); err == nil && int(current) < len(workArea) {
		desktopIndex = int(current)
	}
	wa := workArea[desktopIndex]
	isect := intersect(mon.Bounds, Geometry{X: wa.X, Y: wa.Y, Width: int(wa.Width), Height: int(wa.Height)})
	if isect.Width == 0 || isect.Height == 0 {
		return mon.Bounds, nil
	}
	return isect, nil
}

func primaryMonitor(monitors []Monitor) (Monitor, bool) {
	if len(monitors) == 0 {
		return Monitor{}, false
	}
	for _, m := range monitors {
		if m.Primary {
			return m, true
		}
	}
	return monitors[0], true
}

type dockStruts struct {
	left   int
	right  int
	top    int
	bottom int
}

func (c *Connection) applyDockStruts(monitor Geometry) (Geometry, bool) {
	rootGeom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return Geometry{}, false
	}
	rootWidth := int(rootGeom.Width)
	rootHeight := int(rootGeom.Height)

	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return Geometry{}, false
	}

	var struts dockStruts
	for _, windowID := range clients {
		if !c.isDock(windowID) {
			continue
		}

		if sp, err := ewmh.WmStrutPartialGet(c.XUtil, windowID); err == nil {
			updateStrutsForMonitor(monitor, rootWidth, rootHeight, sp, &struts)
			continue
		}

		// Some docks only set _NET_WM_STRUT (no partial ranges).
		if s, err := ewmh.WmStrutGet(c.XUtil, windowID); err == nil {
			sp := &ewmh.WmStrutPartial{
				Left:       s.Left,
				Right:      s.Right,
				Top:        s.Top,
				Bottom:     s.Bottom,
				LeftEndY:   uint(rootHeight - 1),
				RightEndY:  uint(rootHeight - 1),
				TopEndX:    uint(rootWidth - 1),
				BottomEndX: uint(rootWidth - 1),
			}
			updateStrutsForMonitor(monitor, rootWidth, rootHeight, sp, &struts)
		}
	}

	if struts == (dockStruts{}) {
		return Geometry{}, false
	}
	return shrink(monitor, struts), true
}

func (c *Connection) isDock(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		return false
	}
	for _, t := range types {
		if t == "_NET_WM_WINDOW_TYPE_DOCK" {
			return true
		}
	}
	return false
}

func shrink(g Geometry, s dockStruts) Geometry {
	g.X += s.left
	g.Y += s.top
	g.Width = max(g.Width-(s.left+s.right), 1)
	g.Height = max(g.Height-(s.top+s.bottom), 1)
	return g
}

func updateStrutsForMonitor(monitor Geometry, rootWidth, rootHeight int, sp *ewmh.WmStrutPartial, acc *dockStruts) {
	// Top strut: y=[0,Top), x=[TopStartX,TopEndX]
	if sp.Top > 0 {
		band := Geometry{X: int(sp.TopStartX), Y: 0, Width: int(sp.TopEndX) - int(sp.TopStartX) + 1, Height: int(sp.Top)}
		acc.top = max(acc.top, intersect(monitor, band).Height)
	}

	// Bottom strut: y=[rootHeight-Bottom,rootHeight), x=[BottomStartX,BottomEndX]
	if sp.Bottom > 0 {
		band := Geometry{X: int(sp.BottomStartX), Y: rootHeight - int(sp.Bottom), Width: int(sp.BottomEndX) - int(sp.BottomStartX) + 1, Height: int(sp.Bottom)}
		acc.bottom = max(acc.bottom, intersect(monitor, band).Height)
	}

	// Left strut: x=[0,Left), y=[LeftStartY,LeftEndY]
	if sp.Left > 0 {
		band := Geometry{X: 0, Y: int(sp.LeftStartY), Width: int(sp.Left), Height: int(sp.LeftEndY) - int(sp.LeftStartY) + 1}
		acc.left = max(acc.left, intersect(monitor, band).Width)
	}

	// Right strut: x=[rootWidth-Right,rootWidth), y=[RightStartY,RightEndY]
	if sp.Right > 0 {
		band := Geometry{X: rootWidth - int(sp.Right), Y: int(sp.RightStartY), Width: int(sp.Right), Height: int(sp.RightEndY) - int(sp.RightStartY) + 1}
		acc.right = max(acc.right, intersect(monitor, band).Width)
	}
}

// intersect returns the overlap of a and b, or the zero Geometry.
func intersect(a, b Geometry) Geometry {
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.X+a.Width, b.X+b.Width)
	y2 := min(a.Y+a.Height, b.Y+b.Height)

	if x2 <= x1 || y2 <= y1 {
		return Geometry{}
	}
	return Geometry{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}
