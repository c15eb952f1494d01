package platform

import (
	"fmt"
	"sort"
	"strings"
)

// Key is a logical key id. Printable keys use their lowercase code point,
// non-printable keys live in the 0x100000000 plane and modifiers in 0x200000000.
type Key int64

// Named keys. Letters and digits are their code points and need no constant.
const (
	KeySpace     Key = 0x00000020
	KeyBackspace Key = 0x100000008
	KeyTab       Key = 0x100000009
	KeyEnter     Key = 0x10000000d
	KeyEscape    Key = 0x10000001b
	KeyDelete    Key = 0x10000007f

	KeyArrowDown  Key = 0x100000301
	KeyArrowLeft  Key = 0x100000302
	KeyArrowRight Key = 0x100000303
	KeyArrowUp    Key = 0x100000304
	KeyEnd        Key = 0x100000305
	KeyHome       Key = 0x100000306
	KeyPageDown   Key = 0x100000307
	KeyPageUp     Key = 0x100000308

	KeyF1  Key = 0x100000801
	KeyF12 Key = 0x10000080c

	KeyShiftLeft   Key = 0x200000102
	KeyControlLeft Key = 0x200000104
	KeyAltLeft     Key = 0x200000106
	KeyMetaLeft    Key = 0x200000108
)

// Modifiers is a bitmask of held modifier keys.
type Modifiers uint8

// Modifier bits.
const (
	ModShift Modifiers = 1 << iota
	ModControl
	ModAlt
	ModMeta
)

var keyNames = map[string]Key{
	"space":       KeySpace,
	"backspace":   KeyBackspace,
	"tab":         KeyTab,
	"enter":       KeyEnter,
	"escape":      KeyEscape,
	"delete":      KeyDelete,
	"arrow_down":  KeyArrowDown,
	"arrow_left":  KeyArrowLeft,
	"arrow_right": KeyArrowRight,
	"arrow_up":    KeyArrowUp,
	"end":         KeyEnd,
	"home":        KeyHome,
	"page_down":   KeyPageDown,
	"page_up":     KeyPageUp,
}

var keyAliases = map[string]string{
	"esc":    "escape",
	"return": "enter",
	"down":   "arrow_down",
	"up":     "arrow_up",
	"left":   "arrow_left",
	"right":  "arrow_right",
}

// ParseKey converts a config-file key name ("escape", "arrow_down", "f5", "k")
// into a logical key id.
func ParseKey(name string) (Key, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := keyAliases[n]; ok {
		n = alias
	}
	if k, ok := keyNames[n]; ok {
		return k, nil
	}
	if len(n) >= 2 && n[0] == 'f' {
		var num int
		if _, err := fmt.Sscanf(n[1:], "%d", &num); err == nil && num >= 1 && num <= 12 {
			return KeyF1 + Key(num-1), nil
		}
	}
	if len(n) == 1 && n[0] >= 0x21 && n[0] <= 0x7e {
		return Key(n[0]), nil
	}
	return 0, fmt.Errorf("unknown key %q", name)
}

// ParseKeys parses a list of key names, rejecting unknown names.
func ParseKeys(names []string) ([]Key, error) {
	if names == nil {
		return nil, nil
	}
	keys := make([]Key, 0, len(names))
	for _, name := range names {
		k, err := ParseKey(name)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// String returns the config-file name of k.
func (k Key) String() string {
	for name, v := range keyNames {
		if v == k {
			return name
		}
	}
	if k >= KeyF1 && k <= KeyF12 {
		return fmt.Sprintf("f%d", int(k-KeyF1)+1)
	}
	if k >= 0x21 && k <= 0x7e {
		return string(rune(k))
	}
	return fmt.Sprintf("key(0x%x)", int64(k))
}

// KeyNames returns every named (non single character) key, sorted.
func KeyNames() []string {
	names := make([]string, 0, len(keyNames))
	for name := range keyNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
