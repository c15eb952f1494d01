package x11

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
)

// sendRootMessage sends a 32-bit client message about windowID to the root
// window, the way EWMH and ICCCM expect window manager requests.
// We build the message manually because some xgbutil ewmh request helpers
// panic on this library version (uint vs int type assertion).
func (c *Connection) sendRootMessage(windowID xproto.Window, atom string, data ...uint32) error {
	typ, err := c.internAtom(atom)
	if err != nil {
		return err
	}

	payload := make([]uint32, 5)
	copy(payload, data)
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: windowID,
		Type:   typ,
		Data:   xproto.ClientMessageDataUnionData32New(payload),
	}

	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}

// ActivateWindow activates and raises a managed window using
// _NET_ACTIVE_WINDOW.
func (c *Connection) ActivateWindow(windowID xproto.Window) error {
	const sourceIndication = 2 // pager/direct action
	return c.sendRootMessage(windowID, "_NET_ACTIVE_WINDOW", sourceIndication)
}

// IconifyWindow asks the window manager to minimize windowID via
// WM_CHANGE_STATE.
func (c *Connection) IconifyWindow(windowID xproto.Window) error {
	const iconicState = 3
	return c.sendRootMessage(windowID, "WM_CHANGE_STATE", iconicState)
}

// FindClientByClass searches the EWMH client list for the first window whose
// WM_CLASS class or instance equals class (case-insensitive).
func (c *Connection) FindClientByClass(class string) (xproto.Window, error) {
	class = strings.TrimSpace(class)
	if class == "" {
		return 0, fmt.Errorf("empty window class")
	}
	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get client list: %w", err)
	}
	for _, win := range clients {
		wmClass, err := icccm.WmClassGet(c.XUtil, win)
		if err != nil {
			continue
		}
		if matchesClass(wmClass.Class, wmClass.Instance, class) {
			return win, nil
		}
	}
	return 0, fmt.Errorf("no window found with class %q", class)
}

func matchesClass(class, instance, want string) bool {
	return strings.EqualFold(strings.TrimSpace(class), want) ||
		strings.EqualFold(strings.TrimSpace(instance), want)
}

// ClientWindows returns the windows of the EWMH client list whose WM_CLASS
// matches class.
func (c *Connection) ClientWindows(class string) ([]xproto.Window, error) {
	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to get client list: %w", err)
	}
	var out []xproto.Window
	for _, win := range clients {
		wmClass, err := icccm.WmClassGet(c.XUtil, win)
		if err != nil {
			continue
		}
		if matchesClass(wmClass.Class, wmClass.Instance, class) {
			out = append(out, win)
		}
	}
	return out, nil
}
