package input

import (
	"fmt"
	"strings"

	"github.com/1broseidon/palettehost/internal/platform"
)

// ClickPolicy decides what a click outside a window does to it.
type ClickPolicy string

// Click-outside policies, named as in the config file.
const (
	ClickDismiss     ClickPolicy = "dismiss"
	ClickPassthrough ClickPolicy = "passthrough"
	ClickBlock       ClickPolicy = "block"
	ClickUnfocus     ClickPolicy = "unfocus"
)

// ParseClickPolicy validates a config value. Empty selects ClickDismiss.
func ParseClickPolicy(s string) (ClickPolicy, error) {
	switch p := ClickPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ClickDismiss, nil
	case ClickDismiss, ClickPassthrough, ClickBlock, ClickUnfocus:
		return p, nil
	default:
		return "", fmt.Errorf("invalid click_outside %q (expected: dismiss, passthrough, block, unfocus)", s)
	}
}

// ClickScope decides which clicks count as "outside".
type ClickScope string

const (
	// ScopeAnywhere counts clicks on sibling palettes as outside.
	ScopeAnywhere ClickScope = "anywhere"
	// ScopeNonPalette ignores clicks that land on sibling palettes.
	ScopeNonPalette ClickScope = "non_palette"
)

// ParseClickScope validates a config value. Empty selects ScopeAnywhere.
func ParseClickScope(s string) (ClickScope, error) {
	switch sc := ClickScope(strings.ToLower(strings.TrimSpace(s))); sc {
	case "":
		return ScopeAnywhere, nil
	case ScopeAnywhere, ScopeNonPalette:
		return sc, nil
	default:
		return "", fmt.Errorf("invalid click_outside_scope %q (expected: anywhere, non_palette)", s)
	}
}

// RestoreMode decides where OS focus goes when the host regains focus.
type RestoreMode string

// Restore modes, named as in the config file.
const (
	RestoreNone        RestoreMode = "none"
	RestoreMainWindow  RestoreMode = "main_window"
	RestorePreviousApp RestoreMode = "previous_app"
)

// ParseRestoreMode validates a config value. Empty selects RestoreMainWindow.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch m := RestoreMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return RestoreMainWindow, nil
	case RestoreNone, RestoreMainWindow, RestorePreviousApp:
		return m, nil
	default:
		return "", fmt.Errorf("invalid focus_restore %q (expected: none, main_window, previous_app)", s)
	}
}

// Behavior is the input configuration of a registered window. Treat it as an
// immutable value; Router copies it on registration.
type Behavior struct {
	TakesFocus bool
	// CapturedKeys are routed to the window regardless of focus. Nil or empty
	// captures nothing, even when TakesFocus is set.
	CapturedKeys []platform.Key
	ClickOutside ClickPolicy
	ClickScope   ClickScope
	Group        string
}

// Captures reports whether k is in the captured key set.
func (b Behavior) Captures(k platform.Key) bool {
	for _, c := range b.CapturedKeys {
		if c == k {
			return true
		}
	}
	return false
}

func (b Behavior) clone() Behavior {
	if b.CapturedKeys != nil {
		b.CapturedKeys = append([]platform.Key(nil), b.CapturedKeys...)
	}
	if b.ClickOutside == "" {
		b.ClickOutside = ClickDismiss
	}
	if b.ClickScope == "" {
		b.ClickScope = ScopeAnywhere
	}
	return b
}

// FocusKind tags a Focus value.
type FocusKind int

// Focus kinds.
const (
	FocusHost FocusKind = iota
	FocusPalette
)

// Focus is the process-wide focused entity: either the host application or
// one palette.
type Focus struct {
	Kind FocusKind
	ID   platform.WindowID
}

// HostFocused is the focus value meaning the main application owns the keyboard.
func HostFocused() Focus { return Focus{Kind: FocusHost} }

// PaletteFocused is the focus value for palette id.
func PaletteFocused(id platform.WindowID) Focus { return Focus{Kind: FocusPalette, ID: id} }

// IsPalette reports whether f is PaletteFocused(id).
func (f Focus) IsPalette(id platform.WindowID) bool {
	return f.Kind == FocusPalette && f.ID == id
}

func (f Focus) String() string {
	switch f.Kind {
	case FocusHost:
		return "host"
	case FocusPalette:
		return "palette:" + string(f.ID)
	default:
		return "unknown"
	}
}
