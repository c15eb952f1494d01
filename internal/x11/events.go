package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
)

// KeyInput is a key press or release delivered to a window.
type KeyInput struct {
	Window  xproto.Window
	Keycode xproto.Keycode
	State   uint16
}

// ButtonInput is a button press in root coordinates.
type ButtonInput struct {
	Window xproto.Window
	RootX  int
	RootY  int
}

// WindowHandlers are the per-window callbacks a palette window reports to.
// Nil fields are not connected.
type WindowHandlers struct {
	KeyPress    func(KeyInput)
	KeyRelease  func(KeyInput)
	ButtonPress func(ButtonInput)
	Mapped      func()
	Unmapped    func()
	Destroyed   func()
	Exposed     func()
}

// Listen connects h to windowID's events. Detach removes them again.
func (c *Connection) Listen(windowID xproto.Window, h WindowHandlers) {
	if h.KeyPress != nil {
		xevent.KeyPressFun(func(_ *xgbutil.XUtil, ev xevent.KeyPressEvent) {
			h.KeyPress(KeyInput{Window: ev.Event, Keycode: ev.Detail, State: ev.State})
		}).Connect(c.XUtil, windowID)
	}
	if h.KeyRelease != nil {
		xevent.KeyReleaseFun(func(_ *xgbutil.XUtil, ev xevent.KeyReleaseEvent) {
			h.KeyRelease(KeyInput{Window: ev.Event, Keycode: ev.Detail, State: ev.State})
		}).Connect(c.XUtil, windowID)
	}
	if h.ButtonPress != nil {
		xevent.ButtonPressFun(func(_ *xgbutil.XUtil, ev xevent.ButtonPressEvent) {
			h.ButtonPress(ButtonInput{Window: ev.Event, RootX: int(ev.RootX), RootY: int(ev.RootY)})
		}).Connect(c.XUtil, windowID)
	}
	if h.Mapped != nil {
		xevent.MapNotifyFun(func(_ *xgbutil.XUtil, ev xevent.MapNotifyEvent) {
			if ev.Window == windowID {
				h.Mapped()
			}
		}).Connect(c.XUtil, windowID)
	}
	if h.Unmapped != nil {
		xevent.UnmapNotifyFun(func(_ *xgbutil.XUtil, ev xevent.UnmapNotifyEvent) {
			if ev.Window == windowID {
				h.Unmapped()
			}
		}).Connect(c.XUtil, windowID)
	}
	if h.Destroyed != nil {
		xevent.DestroyNotifyFun(func(_ *xgbutil.XUtil, ev xevent.DestroyNotifyEvent) {
			if ev.Window == windowID {
				h.Destroyed()
			}
		}).Connect(c.XUtil, windowID)
	}
	if h.Exposed != nil {
		xevent.ExposeFun(func(_ *xgbutil.XUtil, ev xevent.ExposeEvent) {
			if ev.Count == 0 {
				h.Exposed()
			}
		}).Connect(c.XUtil, windowID)
	}
}

// SelectInput sets the event mask of a window this client did not create,
// such as a palette adopted from an earlier daemon.
func (c *Connection) SelectInput(windowID xproto.Window) error {
	return xproto.ChangeWindowAttributesChecked(c.XUtil.Conn(), windowID,
		xproto.CwEventMask, []uint32{paletteEventMask}).Check()
}

// ListenRoot connects key callbacks for grabs made by GrabKey.
func (c *Connection) ListenRoot(press, release func(KeyInput)) {
	c.Listen(c.Root, WindowHandlers{KeyPress: press, KeyRelease: release})
}

// Detach removes every callback connected to windowID.
func (c *Connection) Detach(windowID xproto.Window) {
	xevent.Detach(c.XUtil, windowID)
}
