package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/palettehost/internal/platform"
	"github.com/1broseidon/palettehost/internal/x11"
)

type binding struct {
	mods    uint16
	keycode xproto.Keycode
}

type parseFunc func(seq string) (uint16, []xproto.Keycode, error)

// Handler manages the global shortcuts that toggle palettes.
type Handler struct {
	conn   *x11.Connection
	logger *slog.Logger
	toggle func(platform.WindowID)

	mu     sync.Mutex
	active map[binding]platform.WindowID
}

// NewHandler creates a hotkey handler. toggle runs on its own goroutine for
// every matching key press.
func NewHandler(conn *x11.Connection, logger *slog.Logger, toggle func(platform.WindowID)) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		conn:   conn,
		logger: logger.With("component", "hotkeys"),
		toggle: toggle,
		active: make(map[binding]platform.WindowID),
	}
	conn.Listen(conn.Root, x11.WindowHandlers{KeyPress: h.handleKey})
	return h
}

// Bind replaces the current bindings with hotkeys (key sequence to palette).
// Sequences that fail to parse or grab are skipped and reported together.
func (h *Handler) Bind(hotkeys map[string]platform.WindowID) error {
	next, err := compile(hotkeys, h.conn.ParseKeySequence)

	h.mu.Lock()
	defer h.mu.Unlock()

	for b := range h.active {
		h.conn.UngrabHotkey(b.mods, b.keycode)
	}
	h.active = make(map[binding]platform.WindowID, len(next))

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	for b, id := range next {
		if gerr := h.conn.GrabHotkey(b.mods, b.keycode); gerr != nil {
			errs = append(errs, fmt.Errorf("palette %s: grab keycode %d: %w", id, b.keycode, gerr))
			continue
		}
		h.active[b] = id
	}
	h.logger.Debug("hotkeys bound", "count", len(h.active))
	return errors.Join(errs...)
}

// Close releases every grab.
func (h *Handler) Close() {
	_ = h.Bind(nil)
}

func (h *Handler) handleKey(ev x11.KeyInput) {
	id, ok := h.lookup(x11.HotkeyState(ev.State), ev.Keycode)
	if !ok {
		return
	}
	h.logger.Debug("hotkey triggered", "palette", id)
	go h.toggle(id)
}

func (h *Handler) lookup(mods uint16, keycode xproto.Keycode) (platform.WindowID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.active[binding{mods: mods, keycode: keycode}]
	return id, ok
}

// compile resolves key sequences into grab targets. Two sequences landing on
// the same modifiers and keycode conflict; the first in sorted order wins.
func compile(hotkeys map[string]platform.WindowID, parse parseFunc) (map[binding]platform.WindowID, error) {
	seqs := make([]string, 0, len(hotkeys))
	for seq := range hotkeys {
		seqs = append(seqs, seq)
	}
	sort.Strings(seqs)

	out := make(map[binding]platform.WindowID)
	var errs []error
	for _, seq := range seqs {
		id := hotkeys[seq]
		mods, codes, err := parse(seq)
		if err != nil {
			errs = append(errs, fmt.Errorf("palette %s: hotkey %q: %w", id, seq, err))
			continue
		}
		if len(codes) == 0 {
			errs = append(errs, fmt.Errorf("palette %s: hotkey %q has no keycode", id, seq))
			continue
		}
		for _, code := range codes {
			b := binding{mods: mods, keycode: code}
			if other, taken := out[b]; taken && other != id {
				errs = append(errs, fmt.Errorf("palette %s: hotkey %q conflicts with palette %s", id, seq, other))
				continue
			}
			out[b] = id
		}
	}
	return out, errors.Join(errs...)
}
