package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// ModifierState is the decoded modifier part of a key or button event state.
type ModifierState struct {
	Shift   bool
	Control bool
	Alt     bool
	Meta    bool
}

// DecodeModifiers decodes an X event state mask. Lock modifiers are ignored.
func DecodeModifiers(state uint16) ModifierState {
	return ModifierState{
		Shift:   state&xproto.ModMaskShift != 0,
		Control: state&xproto.ModMaskControl != 0,
		Alt:     state&xproto.ModMask1 != 0,
		Meta:    state&xproto.ModMask4 != 0,
	}
}

// Keycodes returns the keycodes producing keysym ("Escape", "Down", "a").
func (c *Connection) Keycodes(keysym string) []xproto.Keycode {
	return keybind.StrToKeycodes(c.XUtil, keysym)
}

// KeysymName returns the unshifted keysym name of keycode, "" when unmapped.
func (c *Connection) KeysymName(keycode xproto.Keycode) string {
	return keybind.LookupString(c.XUtil, 0, keycode)
}

// GrabKey grabs keycode on the root window under any modifier combination.
func (c *Connection) GrabKey(keycode xproto.Keycode) error {
	return xproto.GrabKeyChecked(c.XUtil.Conn(), true, c.Root, xproto.ModMaskAny, keycode,
		xproto.GrabModeAsync, xproto.GrabModeAsync).Check()
}

// UngrabKey releases a grab made by GrabKey.
func (c *Connection) UngrabKey(keycode xproto.Keycode) error {
	return xproto.UngrabKeyChecked(c.XUtil.Conn(), keycode, c.Root, xproto.ModMaskAny).Check()
}

// GrabPointer routes button presses outside this client's windows to
// windowID. Presses inside any of this client's windows are reported to that
// window as usual.
func (c *Connection) GrabPointer(windowID xproto.Window) error {
	reply, err := xproto.GrabPointer(c.XUtil.Conn(), true, windowID,
		xproto.EventMaskButtonPress,
		xproto.GrabModeAsync, xproto.GrabModeAsync,
		xproto.WindowNone, xproto.CursorNone, xproto.TimeCurrentTime).Reply()
	if err != nil {
		return fmt.Errorf("failed to grab pointer: %w", err)
	}
	if reply.Status != xproto.GrabStatusSuccess {
		return fmt.Errorf("pointer grab refused (status %d)", reply.Status)
	}
	return nil
}

// UngrabPointer releases the pointer grab.
func (c *Connection) UngrabPointer() error {
	return xproto.UngrabPointerChecked(c.XUtil.Conn(), xproto.TimeCurrentTime).Check()
}

// PointerPosition returns the pointer position in root coordinates.
func (c *Connection) PointerPosition() (int, int, error) {
	pointer, err := xproto.QueryPointer(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query pointer: %w", err)
	}
	return int(pointer.RootX), int(pointer.RootY), nil
}

// configureIgnoreMods makes callbacks fire regardless of CapsLock, NumLock and
// ScrollLock.
func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	xevent.IgnoreMods = ignoreMaskCombinations(base)
}

// ignoreMaskCombinations returns every OR-combination of base, including 0,
// without duplicates.
func ignoreMaskCombinations(base []uint16) []uint16 {
	unique := map[uint16]struct{}{0: {}}
	ignore := []uint16{0}
	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		if _, ok := unique[mask]; ok {
			continue
		}
		unique[mask] = struct{}{}
		ignore = append(ignore, mask)
	}
	return ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}

// ParseKeySequence parses a binding such as "Mod4-space" or "Control-Shift-p"
// into a modifier mask and the keycodes producing its key.
func (c *Connection) ParseKeySequence(seq string) (uint16, []xproto.Keycode, error) {
	return keybind.ParseString(c.XUtil, seq)
}

// GrabHotkey grabs keycode with exactly mods on the root window, tolerating
// lock modifiers.
func (c *Connection) GrabHotkey(mods uint16, keycode xproto.Keycode) error {
	return keybind.GrabChecked(c.XUtil, c.Root, mods, keycode)
}

// UngrabHotkey releases a grab made by GrabHotkey.
func (c *Connection) UngrabHotkey(mods uint16, keycode xproto.Keycode) {
	keybind.Ungrab(c.XUtil, c.Root, mods, keycode)
}

// HotkeyState strips lock modifiers from an event state so it compares equal
// to a mask returned by ParseKeySequence.
func HotkeyState(state uint16) uint16 {
	mods, _ := keybind.DeduceKeyInfo(state, 0)
	return mods
}
