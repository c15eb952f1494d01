//go:build linux

package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/palettehost/internal/notify"
	"github.com/1broseidon/palettehost/internal/x11"
)

// X11ProtocolVersion is the bridge protocol spoken by X11Bridge.
const X11ProtocolVersion = 1

// X11Options configures an X11Bridge.
type X11Options struct {
	// MainWindowClass is the WM_CLASS of the application the palettes belong
	// to. Focus restoration to the main window is a no-op when empty.
	MainWindowClass string
	Logger          *slog.Logger
}

type x11Window struct {
	xid         xproto.Window
	frame       Rect
	level       Level
	visible     bool
	expectMap   int
	expectUnmap int
	exposed     bool
	keys        []Key
	keycodes    []xproto.Keycode
}

// X11Bridge implements Bridge on top of an X11 connection. Palette windows
// are override-redirect top-levels tagged with their WindowID, retained by the
// server across daemon restarts.
type X11Bridge struct {
	conn      *x11.Connection
	logger    *slog.Logger
	mainClass string

	mu        sync.Mutex
	windows   map[WindowID]*x11Window
	byXID     map[xproto.Window]WindowID
	keyRefs   map[xproto.Keycode]int
	pointer   []WindowID
	focused   WindowID
	prevFocus xproto.Window

	keyFeeds   map[WindowID]*notify.Feed[KeyEvent]
	clickFeeds map[WindowID]*notify.Feed[ClickOutside]
	watchers   notify.Feed[Event]
}

var _ Bridge = (*X11Bridge)(nil)

// NewX11Bridge creates a bridge on conn. Tagged windows left by an earlier
// daemon are adopted so they show up in Snapshot.
func NewX11Bridge(conn *x11.Connection, opts X11Options) (*X11Bridge, error) {
	if conn == nil {
		return nil, fmt.Errorf("x11 bridge connection is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &X11Bridge{
		conn:       conn,
		logger:     logger,
		mainClass:  strings.TrimSpace(opts.MainWindowClass),
		windows:    make(map[WindowID]*x11Window),
		byXID:      make(map[xproto.Window]WindowID),
		keyRefs:    make(map[xproto.Keycode]int),
		keyFeeds:   make(map[WindowID]*notify.Feed[KeyEvent]),
		clickFeeds: make(map[WindowID]*notify.Feed[ClickOutside]),
	}

	if err := conn.RetainWindows(); err != nil {
		logger.Warn("cannot retain palette windows across restarts", "error", err)
	}
	conn.ListenRoot(
		func(in x11.KeyInput) { b.handleKey(in, false) },
		func(in x11.KeyInput) { b.handleKey(in, true) },
	)

	if _, err := b.adoptTagged(); err != nil {
		logger.Warn("adopting existing palette windows failed", "error", err)
	}
	return b, nil
}

// EventLoop runs the X event loop until Close.
func (b *X11Bridge) EventLoop() {
	b.conn.EventLoop()
}

// Close stops the event loop and disconnects. Palette windows survive.
func (b *X11Bridge) Close() {
	b.conn.Quit()
	b.conn.Close()
}

func (b *X11Bridge) Capabilities() Capabilities {
	return Capabilities{
		Platform:        "x11",
		ProtocolVersion: X11ProtocolVersion,
		GlobalHotkeys:   true,
		MultiMonitor:    true,
	}
}

// adoptTagged registers tagged windows this bridge does not know yet and
// returns every tagged window by id.
func (b *X11Bridge) adoptTagged() (map[WindowID]xproto.Window, error) {
	tagged, err := b.conn.TaggedWindows()
	if err != nil {
		return nil, err
	}
	out := make(map[WindowID]xproto.Window, len(tagged))
	for tag, xid := range tagged {
		id := WindowID(tag)
		out[id] = xid

		b.mu.Lock()
		_, known := b.windows[id]
		b.mu.Unlock()
		if known {
			continue
		}

		w := &x11Window{xid: xid, exposed: true}
		if g, err := b.conn.WindowGeometry(xid); err == nil {
			w.frame = rectFromGeometry(g)
		}
		if viewable, err := b.conn.IsViewable(xid); err == nil {
			w.visible = viewable
		}
		if err := b.conn.SelectInput(xid); err != nil {
			b.logger.Debug("select input on adopted window failed", "window", id, "error", err)
		}
		b.track(id, w)
		b.logger.Info("adopted palette window", "window", id, "xid", uint32(xid), "visible", w.visible)
	}
	return out, nil
}

func (b *X11Bridge) track(id WindowID, w *x11Window) {
	b.mu.Lock()
	b.windows[id] = w
	b.byXID[w.xid] = id
	b.mu.Unlock()

	b.conn.Listen(w.xid, x11.WindowHandlers{
		KeyPress:    func(in x11.KeyInput) { b.handleKey(in, false) },
		KeyRelease:  func(in x11.KeyInput) { b.handleKey(in, true) },
		ButtonPress: b.handleButton,
		Mapped:      func() { b.handleMapped(id) },
		Unmapped:    func() { b.handleUnmapped(id) },
		Destroyed:   func() { b.handleDestroyed(id) },
		Exposed:     func() { b.handleExposed(id) },
	})
}

func (b *X11Bridge) lookup(id WindowID) (*x11Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.windows[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrWindowNotFound)
	}
	return w, nil
}

func (b *X11Bridge) CreateWindow(_ context.Context, id WindowID, size Size, appearance Appearance) error {
	b.mu.Lock()
	_, exists := b.windows[id]
	b.mu.Unlock()
	if exists {
		return fmt.Errorf("create %s: %w", id, ErrWindowExists)
	}

	xid, err := b.conn.CreatePaletteWindow(x11.WindowOptions{
		Tag:     string(id),
		Width:   size.Width,
		Height:  size.Height,
		Title:   appearance.Title,
		Opacity: appearance.Opacity,
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", id, err)
	}
	b.track(id, &x11Window{xid: xid, frame: Rect{Width: size.Width, Height: size.Height}})
	b.logger.Debug("palette window created", "window", id, "xid", uint32(xid))
	return nil
}

func (b *X11Bridge) DestroyWindow(ctx context.Context, id WindowID) error {
	w, err := b.lookup(id)
	if err != nil {
		return err
	}
	if err := b.ReleaseKeys(ctx, id); err != nil {
		b.logger.Debug("release keys before destroy failed", "window", id, "error", err)
	}
	if err := b.ReleasePointer(ctx, id); err != nil {
		b.logger.Debug("release pointer before destroy failed", "window", id, "error", err)
	}

	b.conn.Detach(w.xid)
	b.forget(id)
	if err := b.conn.DestroyWindow(w.xid); err != nil {
		return fmt.Errorf("destroy %s: %w", id, err)
	}
	return nil
}

func (b *X11Bridge) forget(id WindowID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.windows[id]; ok {
		delete(b.byXID, w.xid)
	}
	delete(b.windows, id)
	if b.focused == id {
		b.focused = ""
	}
}

func (b *X11Bridge) SetFrame(_ context.Context, id WindowID, frame Rect, _ bool) error {
	w, err := b.lookup(id)
	if err != nil {
		return err
	}
	if err := b.conn.MoveResizeWindow(w.xid, geometryFromRect(frame)); err != nil {
		return fmt.Errorf("set frame of %s: %w", id, err)
	}
	b.mu.Lock()
	w.frame = frame
	b.mu.Unlock()
	return nil
}

func (b *X11Bridge) Reveal(ctx context.Context, id WindowID, _ bool, takeFocus bool) error {
	w, err := b.lookup(id)
	if err != nil {
		return err
	}

	b.mu.Lock()
	wasVisible := w.visible
	if !wasVisible {
		w.expectMap++
	}
	w.visible = true
	b.mu.Unlock()

	if err := b.conn.MapWindow(w.xid, true); err != nil {
		b.mu.Lock()
		w.visible = wasVisible
		if !wasVisible {
			w.expectMap--
		}
		b.mu.Unlock()
		return fmt.Errorf("reveal %s: %w", id, err)
	}
	if takeFocus {
		return b.FocusWindow(ctx, id)
	}
	return nil
}

func (b *X11Bridge) Conceal(_ context.Context, id WindowID, _ bool) error {
	w, err := b.lookup(id)
	if err != nil {
		return err
	}

	b.mu.Lock()
	wasVisible := w.visible
	if wasVisible {
		w.expectUnmap++
	}
	w.visible = false
	hadFocus := b.focused == id
	if hadFocus {
		b.focused = ""
	}
	b.mu.Unlock()

	if !wasVisible {
		return nil
	}
	if err := b.conn.UnmapWindow(w.xid); err != nil {
		b.mu.Lock()
		w.visible = true
		w.expectUnmap--
		b.mu.Unlock()
		return fmt.Errorf("conceal %s: %w", id, err)
	}
	return nil
}

func (b *X11Bridge) Pin(_ context.Context, id WindowID, level Level) error {
	w, err := b.lookup(id)
	if err != nil {
		return err
	}
	b.mu.Lock()
	w.level = level
	visible := w.visible
	b.mu.Unlock()

	if visible && level != LevelNormal {
		return b.conn.RaiseWindow(w.xid)
	}
	return nil
}

func (b *X11Bridge) Snapshot(_ context.Context) (map[WindowID]WindowState, error) {
	tagged, err := b.adoptTagged()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	focus, _ := b.conn.InputFocus()

	out := make(map[WindowID]WindowState, len(tagged))
	for id, xid := range tagged {
		state := WindowState{Focused: xid == focus}
		if g, err := b.conn.WindowGeometry(xid); err == nil {
			state.Bounds = rectFromGeometry(g)
		}
		if viewable, err := b.conn.IsViewable(xid); err == nil {
			state.Visible = viewable
		}
		out[id] = state
	}
	return out, nil
}

func (b *X11Bridge) CaptureKeys(ctx context.Context, id WindowID, keys []Key) error {
	if _, err := b.lookup(id); err != nil {
		return err
	}
	if err := b.ReleaseKeys(ctx, id); err != nil {
		return err
	}

	var grabbed []xproto.Keycode
	for _, k := range keys {
		for _, name := range keysymNames(k) {
			for _, code := range b.conn.Keycodes(name) {
				if err := b.grabKeycode(code); err != nil {
					b.releaseKeycodes(grabbed)
					return fmt.Errorf("capture %s for %s: %w", k, id, err)
				}
				grabbed = append(grabbed, code)
			}
		}
	}

	b.mu.Lock()
	w, ok := b.windows[id]
	if ok {
		w.keys = append([]Key(nil), keys...)
		w.keycodes = grabbed
	}
	b.mu.Unlock()
	if !ok {
		// Destroyed while grabbing.
		b.releaseKeycodes(grabbed)
		return fmt.Errorf("%s: %w", id, ErrWindowNotFound)
	}
	return nil
}

func (b *X11Bridge) grabKeycode(code xproto.Keycode) error {
	b.mu.Lock()
	n := b.keyRefs[code]
	b.keyRefs[code] = n + 1
	b.mu.Unlock()
	if n > 0 {
		return nil
	}
	if err := b.conn.GrabKey(code); err != nil {
		b.mu.Lock()
		b.keyRefs[code]--
		if b.keyRefs[code] <= 0 {
			delete(b.keyRefs, code)
		}
		b.mu.Unlock()
		return err
	}
	return nil
}

func (b *X11Bridge) releaseKeycodes(codes []xproto.Keycode) {
	for _, code := range codes {
		b.mu.Lock()
		b.keyRefs[code]--
		last := b.keyRefs[code] <= 0
		if last {
			delete(b.keyRefs, code)
		}
		b.mu.Unlock()
		if last {
			if err := b.conn.UngrabKey(code); err != nil {
				b.logger.Debug("ungrab key failed", "keycode", code, "error", err)
			}
		}
	}
}

func (b *X11Bridge) ReleaseKeys(_ context.Context, id WindowID) error {
	b.mu.Lock()
	w, ok := b.windows[id]
	var codes []xproto.Keycode
	if ok {
		codes = w.keycodes
		w.keycodes = nil
		w.keys = nil
	}
	b.mu.Unlock()
	b.releaseKeycodes(codes)
	return nil
}

func (b *X11Bridge) CapturePointer(_ context.Context, id WindowID) error {
	w, err := b.lookup(id)
	if err != nil {
		return err
	}
	if err := b.conn.GrabPointer(w.xid); err != nil {
		return fmt.Errorf("capture pointer for %s: %w", id, err)
	}
	b.mu.Lock()
	b.pointer = append(removeID(b.pointer, id), id)
	b.mu.Unlock()
	return nil
}

func (b *X11Bridge) ReleasePointer(_ context.Context, id WindowID) error {
	b.mu.Lock()
	before := len(b.pointer)
	b.pointer = removeID(b.pointer, id)
	if len(b.pointer) == before {
		b.mu.Unlock()
		return nil
	}
	var next *x11Window
	if n := len(b.pointer); n > 0 {
		next = b.windows[b.pointer[n-1]]
	}
	b.mu.Unlock()

	if next != nil {
		return b.conn.GrabPointer(next.xid)
	}
	return b.conn.UngrabPointer()
}

func removeID(ids []WindowID, id WindowID) []WindowID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (b *X11Bridge) FocusWindow(_ context.Context, id WindowID) error {
	w, err := b.lookup(id)
	if err != nil {
		return err
	}
	if prev, err := b.conn.InputFocus(); err == nil {
		b.mu.Lock()
		if _, ours := b.byXID[prev]; !ours {
			b.prevFocus = prev
		}
		b.mu.Unlock()
	}
	if err := b.conn.SetInputFocus(w.xid); err != nil {
		return fmt.Errorf("focus %s: %w", id, err)
	}
	b.mu.Lock()
	b.focused = id
	b.mu.Unlock()
	return nil
}

func (b *X11Bridge) UnfocusWindow(_ context.Context, id WindowID) error {
	w, err := b.lookup(id)
	if err != nil {
		return err
	}
	b.mu.Lock()
	if b.focused == id {
		b.focused = ""
	}
	b.mu.Unlock()

	if focus, err := b.conn.InputFocus(); err == nil && focus == w.xid {
		return b.conn.FocusPointerRoot()
	}
	return nil
}

func (b *X11Bridge) ActivateMainWindow(_ context.Context) error {
	if b.mainClass == "" {
		b.logger.Debug("no main window class configured, leaving focus alone")
		return nil
	}
	win, err := b.conn.FindClientByClass(b.mainClass)
	if err != nil {
		return err
	}
	return b.conn.ActivateWindow(win)
}

// HideApplication iconifies the main application's windows so the window
// manager hands focus to the previous application. Without a main window
// class, focus goes back to the window that held it before a palette took it.
func (b *X11Bridge) HideApplication(_ context.Context) error {
	if b.mainClass == "" {
		b.mu.Lock()
		prev := b.prevFocus
		b.mu.Unlock()
		if prev == 0 {
			return b.conn.FocusPointerRoot()
		}
		return b.conn.SetInputFocus(prev)
	}

	wins, err := b.conn.ClientWindows(b.mainClass)
	if err != nil {
		return err
	}
	for _, win := range wins {
		if err := b.conn.IconifyWindow(win); err != nil {
			return fmt.Errorf("iconify %s window: %w", b.mainClass, err)
		}
	}
	return nil
}

func (b *X11Bridge) CursorPosition(_ context.Context) (Point, error) {
	x, y, err := b.conn.PointerPosition()
	if err != nil {
		return Point{}, err
	}
	return Point{X: x, Y: y}, nil
}

func (b *X11Bridge) PrimaryWorkArea(_ context.Context) (Rect, error) {
	g, err := b.conn.PrimaryWorkArea()
	if err != nil {
		return Rect{}, err
	}
	return rectFromGeometry(g), nil
}

func (b *X11Bridge) OnKeyDown(id WindowID, fn func(KeyEvent)) func() {
	b.mu.Lock()
	feed, ok := b.keyFeeds[id]
	if !ok {
		feed = &notify.Feed[KeyEvent]{}
		b.keyFeeds[id] = feed
	}
	b.mu.Unlock()
	return feed.Subscribe(fn)
}

func (b *X11Bridge) OnClickOutside(id WindowID, fn func(ClickOutside)) func() {
	b.mu.Lock()
	feed, ok := b.clickFeeds[id]
	if !ok {
		feed = &notify.Feed[ClickOutside]{}
		b.clickFeeds[id] = feed
	}
	b.mu.Unlock()
	return feed.Subscribe(fn)
}

func (b *X11Bridge) Watch(fn func(Event)) func() {
	return b.watchers.Subscribe(fn)
}

// handleKey runs on the X event loop. Keys pressed in a palette window come
// from that palette; keys caught by a root grab are attributed to the focused
// palette when it captured them, otherwise to the latest capturer.
func (b *X11Bridge) handleKey(in x11.KeyInput, release bool) {
	key, ok := keyFromKeysym(b.conn.KeysymName(in.Keycode))
	if !ok {
		return
	}

	b.mu.Lock()
	source, ours := b.byXID[in.Window]
	if !ours {
		source = b.keySource(key)
	}
	feed := b.keyFeeds[source]
	b.mu.Unlock()
	if source == "" {
		return
	}

	if release {
		b.watchers.Emit(Event{Kind: EventKeyUp, ID: source, Key: key})
		return
	}
	if feed != nil {
		feed.Emit(KeyEvent{ID: source, Key: key, Modifiers: modifiersFromState(x11.DecodeModifiers(in.State))})
	}
}

// keySource must be called with b.mu held.
func (b *X11Bridge) keySource(key Key) WindowID {
	if w, ok := b.windows[b.focused]; ok && containsKey(w.keys, key) {
		return b.focused
	}
	ids := make([]WindowID, 0, len(b.windows))
	for id, w := range b.windows {
		if containsKey(w.keys, key) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids[len(ids)-1]
}

func containsKey(keys []Key, k Key) bool {
	for _, v := range keys {
		if v == k {
			return true
		}
	}
	return false
}

// handleButton reports a click outside every pointer-capturing palette that
// does not contain the click position.
func (b *X11Bridge) handleButton(in x11.ButtonInput) {
	pos := Point{X: in.RootX, Y: in.RootY}

	b.mu.Lock()
	sibling := b.paletteAt(pos)
	type report struct {
		feed *notify.Feed[ClickOutside]
		ev   ClickOutside
	}
	var reports []report
	for _, id := range b.pointer {
		w, ok := b.windows[id]
		if !ok || id == sibling || w.frame.Contains(pos) {
			continue
		}
		if feed := b.clickFeeds[id]; feed != nil {
			reports = append(reports, report{feed: feed, ev: ClickOutside{ID: id, Position: pos, Sibling: sibling}})
		}
	}
	b.mu.Unlock()

	for _, r := range reports {
		r.feed.Emit(r.ev)
	}
}

// paletteAt must be called with b.mu held.
func (b *X11Bridge) paletteAt(p Point) WindowID {
	var hit WindowID
	for id, w := range b.windows {
		if w.visible && w.frame.Contains(p) && (hit == "" || id < hit) {
			hit = id
		}
	}
	return hit
}

func (b *X11Bridge) handleMapped(id WindowID) {
	b.mu.Lock()
	w, ok := b.windows[id]
	if ok {
		if w.expectMap > 0 {
			w.expectMap--
		}
		w.visible = true
	}
	b.mu.Unlock()
	if ok {
		b.watchers.Emit(Event{Kind: EventShown, ID: id})
	}
}

func (b *X11Bridge) handleUnmapped(id WindowID) {
	b.mu.Lock()
	w, ok := b.windows[id]
	external := false
	if ok {
		if w.expectUnmap > 0 {
			w.expectUnmap--
		} else {
			external = true
		}
		w.visible = false
	}
	b.mu.Unlock()
	if external {
		b.watchers.Emit(Event{Kind: EventHidden, ID: id})
	}
}

func (b *X11Bridge) handleDestroyed(id WindowID) {
	b.mu.Lock()
	w, ok := b.windows[id]
	b.mu.Unlock()
	if !ok {
		return
	}
	b.conn.Detach(w.xid)
	b.forget(id)
	b.releaseKeycodes(w.keycodes)
	b.mu.Lock()
	b.pointer = removeID(b.pointer, id)
	b.mu.Unlock()
	b.watchers.Emit(Event{Kind: EventClosed, ID: id})
}

func (b *X11Bridge) handleExposed(id WindowID) {
	b.mu.Lock()
	w, ok := b.windows[id]
	first := ok && !w.exposed
	if first {
		w.exposed = true
	}
	b.mu.Unlock()
	if first {
		b.watchers.Emit(Event{Kind: EventContentReady, ID: id})
	}
}

func rectFromGeometry(g x11.Geometry) Rect {
	return Rect{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height}
}

func geometryFromRect(r Rect) x11.Geometry {
	return x11.Geometry{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

func modifiersFromState(s x11.ModifierState) Modifiers {
	var m Modifiers
	if s.Shift {
		m |= ModShift
	}
	if s.Control {
		m |= ModControl
	}
	if s.Alt {
		m |= ModAlt
	}
	if s.Meta {
		m |= ModMeta
	}
	return m
}

var namedKeysyms = map[Key][]string{
	KeySpace:       {"space"},
	KeyBackspace:   {"BackSpace"},
	KeyTab:         {"Tab"},
	KeyEnter:       {"Return", "KP_Enter"},
	KeyEscape:      {"Escape"},
	KeyDelete:      {"Delete"},
	KeyArrowDown:   {"Down"},
	KeyArrowLeft:   {"Left"},
	KeyArrowRight:  {"Right"},
	KeyArrowUp:     {"Up"},
	KeyEnd:         {"End"},
	KeyHome:        {"Home"},
	KeyPageDown:    {"Next"},
	KeyPageUp:      {"Prior"},
	KeyShiftLeft:   {"Shift_L"},
	KeyControlLeft: {"Control_L"},
	KeyAltLeft:     {"Alt_L"},
	KeyMetaLeft:    {"Super_L"},
}

// punctuationKeysyms maps printable characters to keysym names where the two
// differ.
var punctuationKeysyms = map[byte]string{
	'/':  "slash",
	'.':  "period",
	',':  "comma",
	';':  "semicolon",
	'\'': "apostrophe",
	'-':  "minus",
	'=':  "equal",
	'[':  "bracketleft",
	']':  "bracketright",
	'\\': "backslash",
	'`':  "grave",
}

// keysymNames returns the keysym names that produce k.
func keysymNames(k Key) []string {
	if names, ok := namedKeysyms[k]; ok {
		return names
	}
	if k >= KeyF1 && k <= KeyF12 {
		return []string{fmt.Sprintf("F%d", int(k-KeyF1)+1)}
	}
	if k >= 0x21 && k <= 0x7e {
		c := byte(k)
		if name, ok := punctuationKeysyms[c]; ok {
			return []string{name}
		}
		return []string{string(rune(c))}
	}
	return nil
}

// keyFromKeysym converts an unshifted keysym name as reported by the keyboard
// mapping ("Return", "a", "/") into a logical key.
func keyFromKeysym(name string) (Key, bool) {
	if name == "" {
		return 0, false
	}
	for k, names := range namedKeysyms {
		for _, n := range names {
			if n == name {
				return k, true
			}
		}
	}
	if len(name) >= 2 && name[0] == 'F' {
		var num int
		if _, err := fmt.Sscanf(name[1:], "%d", &num); err == nil && num >= 1 && num <= 12 {
			return KeyF1 + Key(num-1), true
		}
	}
	for c, n := range punctuationKeysyms {
		if n == name {
			return Key(c), true
		}
	}
	if len(name) == 1 {
		c := name[0]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c >= 0x21 && c <= 0x7e {
			return Key(c), true
		}
	}
	return 0, false
}
