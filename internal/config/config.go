package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/1broseidon/palettehost/internal/input"
	"github.com/1broseidon/palettehost/internal/palette"
	"github.com/1broseidon/palettehost/internal/platform"
	"github.com/1broseidon/palettehost/internal/position"
)

// Defaults applied when the config file leaves a value unset.
const (
	DefaultClickDedupWindowMs       = 50
	DefaultClickDedupDistancePx     = 5.0
	DefaultShowGuardTTLMs           = 500
	DefaultReconcileIntervalSeconds = 30
	DefaultPaletteWidth             = 480
	DefaultPaletteHeight            = 320
)

// Config is the effective daemon configuration.
type Config struct {
	LogLevel string                   `yaml:"log_level"`
	Input    InputConfig              `yaml:"input"`
	Daemon   DaemonConfig             `yaml:"daemon"`
	Host     HostConfig               `yaml:"host"`
	Palettes map[string]PaletteConfig `yaml:"palettes"`
}

// InputConfig tunes the input router.
type InputConfig struct {
	ClickDedupWindowMs   int     `yaml:"click_dedup_window_ms"`
	ClickDedupDistancePx float64 `yaml:"click_dedup_distance_px"`
	ShowGuardTTLMs       int     `yaml:"show_guard_ttl_ms"`
	// FocusRestore is where focus goes when a focused palette disappears:
	// none, main_window, previous_app.
	FocusRestore string `yaml:"focus_restore"`
}

// DaemonConfig controls the long-running process.
type DaemonConfig struct {
	// ReconcileIntervalSeconds is the period of background recovery; 0 disables it.
	ReconcileIntervalSeconds int    `yaml:"reconcile_interval_seconds"`
	RecoverOnStart           bool   `yaml:"recover_on_start"`
	WatchConfig              bool   `yaml:"watch_config"`
	MetricsAddr              string `yaml:"metrics_addr"`
}

// HostConfig identifies the X display and the application palettes belong to.
type HostConfig struct {
	Display         string `yaml:"display"`
	XAuthority      string `yaml:"xauthority"`
	MainWindowClass string `yaml:"main_window_class"`
}

// PaletteConfig is the declared configuration of one palette.
type PaletteConfig struct {
	Width        int      `yaml:"width"`
	Height       int      `yaml:"height"`
	Anchor       string   `yaml:"anchor"`
	OffsetX      int      `yaml:"offset_x"`
	OffsetY      int      `yaml:"offset_y"`
	X            int      `yaml:"x"`
	Y            int      `yaml:"y"`
	KeepOnScreen bool     `yaml:"keep_on_screen"`
	TakesFocus   bool     `yaml:"takes_focus"`
	Keys         []string `yaml:"keys"`
	ClickOutside string   `yaml:"click_outside"`
	ClickScope   string   `yaml:"click_outside_scope"`
	Group        string   `yaml:"group"`
	HideOnEscape bool     `yaml:"hide_on_escape"`
	AlwaysOnTop  bool     `yaml:"always_on_top"`
	Animate      bool     `yaml:"animate"`
	Title        string   `yaml:"title"`
	Transparent  bool     `yaml:"transparent"`
	Opacity      float64  `yaml:"opacity"`
	// Hotkey is a global key sequence ("Mod4-space") that toggles the palette.
	// It is never inherited.
	Hotkey string `yaml:"hotkey"`
	// Inherits names the palette this one was built on, if any.
	Inherits string `yaml:"inherits,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Input: InputConfig{
			ClickDedupWindowMs:   DefaultClickDedupWindowMs,
			ClickDedupDistancePx: DefaultClickDedupDistancePx,
			ShowGuardTTLMs:       DefaultShowGuardTTLMs,
			FocusRestore:         string(input.RestoreMainWindow),
		},
		Daemon: DaemonConfig{
			ReconcileIntervalSeconds: DefaultReconcileIntervalSeconds,
			RecoverOnStart:           true,
			WatchConfig:              true,
		},
		Palettes: make(map[string]PaletteConfig),
	}
}

// DefaultPalette returns the values a declared palette starts from.
func DefaultPalette() PaletteConfig {
	return PaletteConfig{
		Width:        DefaultPaletteWidth,
		Height:       DefaultPaletteHeight,
		Anchor:       string(position.AnchorScreen),
		TakesFocus:   true,
		ClickOutside: string(input.ClickDismiss),
		ClickScope:   string(input.ScopeAnywhere),
		HideOnEscape: true,
		Opacity:      1,
	}
}

// ClickDedupWindow returns the dedup window as a duration.
func (c *Config) ClickDedupWindow() time.Duration {
	return time.Duration(c.Input.ClickDedupWindowMs) * time.Millisecond
}

// ShowGuardTTL returns the show guard TTL as a duration.
func (c *Config) ShowGuardTTL() time.Duration {
	return time.Duration(c.Input.ShowGuardTTLMs) * time.Millisecond
}

// ReconcileInterval returns the recovery period, zero when disabled.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Daemon.ReconcileIntervalSeconds) * time.Second
}

// RestoreMode returns the parsed focus restore mode.
func (c *Config) RestoreMode() input.RestoreMode {
	m, err := input.ParseRestoreMode(c.Input.FocusRestore)
	if err != nil {
		return input.RestoreMainWindow
	}
	return m
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warn, error")}
	}
	if c.Input.ClickDedupWindowMs <= 0 {
		return &ValidationError{Path: "input.click_dedup_window_ms", Err: fmt.Errorf("click_dedup_window_ms must be > 0")}
	}
	if c.Input.ClickDedupDistancePx <= 0 {
		return &ValidationError{Path: "input.click_dedup_distance_px", Err: fmt.Errorf("click_dedup_distance_px must be > 0")}
	}
	if c.Input.ShowGuardTTLMs <= 0 {
		return &ValidationError{Path: "input.show_guard_ttl_ms", Err: fmt.Errorf("show_guard_ttl_ms must be > 0")}
	}
	if _, err := input.ParseRestoreMode(c.Input.FocusRestore); err != nil {
		return &ValidationError{Path: "input.focus_restore", Err: err}
	}
	if c.Daemon.ReconcileIntervalSeconds < 0 {
		return &ValidationError{Path: "daemon.reconcile_interval_seconds", Err: fmt.Errorf("reconcile_interval_seconds must be >= 0")}
	}
	hotkeys := make(map[string]string)
	for _, id := range c.PaletteIDs() {
		p := c.Palettes[id]
		if strings.TrimSpace(id) == "" {
			return &ValidationError{Path: "palettes", Err: fmt.Errorf("palettes contains an empty id")}
		}
		if err := p.validate(); err != nil {
			err.Path = "palettes." + id + "." + err.Path
			return err
		}
		if p.Hotkey == "" {
			continue
		}
		if other, dup := hotkeys[p.Hotkey]; dup {
			return &ValidationError{Path: "palettes." + id + ".hotkey",
				Err: fmt.Errorf("hotkey %q already bound to palette %q", p.Hotkey, other)}
		}
		hotkeys[p.Hotkey] = id
	}
	return nil
}

// PaletteIDs returns the declared palette ids in order.
func (c *Config) PaletteIDs() []string {
	ids := make([]string, 0, len(c.Palettes))
	for id := range c.Palettes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Hotkeys maps each configured hotkey to the palette it toggles.
func (c *Config) Hotkeys() map[string]platform.WindowID {
	out := make(map[string]platform.WindowID)
	for id, p := range c.Palettes {
		if p.Hotkey != "" {
			out[p.Hotkey] = platform.WindowID(id)
		}
	}
	return out
}

func (p PaletteConfig) validate() *ValidationError {
	if p.Width <= 0 || p.Height <= 0 {
		return &ValidationError{Path: "width", Err: fmt.Errorf("width and height must be > 0")}
	}
	if _, err := position.ParseAnchor(p.Anchor); err != nil {
		return &ValidationError{Path: "anchor", Err: err}
	}
	if _, err := platform.ParseKeys(p.Keys); err != nil {
		return &ValidationError{Path: "keys", Err: err}
	}
	if _, err := input.ParseClickPolicy(p.ClickOutside); err != nil {
		return &ValidationError{Path: "click_outside", Err: err}
	}
	if _, err := input.ParseClickScope(p.ClickScope); err != nil {
		return &ValidationError{Path: "click_outside_scope", Err: err}
	}
	if p.Opacity < 0 || p.Opacity > 1 {
		return &ValidationError{Path: "opacity", Err: fmt.Errorf("opacity must be between 0 and 1")}
	}
	if strings.ContainsAny(p.Hotkey, " \t") {
		return &ValidationError{Path: "hotkey", Err: fmt.Errorf("hotkey %q must not contain spaces", p.Hotkey)}
	}
	return nil
}

// Runtime converts p into a controller configuration. Call Validate first;
// unparseable values fall back to their defaults.
func (p PaletteConfig) Runtime() palette.Config {
	anchor, _ := position.ParseAnchor(p.Anchor)
	keys, _ := platform.ParseKeys(p.Keys)
	policy, _ := input.ParseClickPolicy(p.ClickOutside)
	scope, _ := input.ParseClickScope(p.ClickScope)

	return palette.Config{
		Size: platform.Size{Width: p.Width, Height: p.Height},
		Position: position.Spec{
			Anchor:       anchor,
			Offset:       platform.Point{X: p.OffsetX, Y: p.OffsetY},
			Point:        platform.Point{X: p.X, Y: p.Y},
			KeepOnScreen: p.KeepOnScreen,
		},
		Behavior: input.Behavior{
			TakesFocus:   p.TakesFocus,
			CapturedKeys: keys,
			ClickOutside: policy,
			ClickScope:   scope,
			Group:        p.Group,
		},
		HideOnEscape: p.HideOnEscape,
		AlwaysOnTop:  p.AlwaysOnTop,
		Animate:      p.Animate,
		Appearance: platform.Appearance{
			Title:       p.Title,
			Transparent: p.Transparent,
			Opacity:     p.Opacity,
		},
	}
}

// RuntimePalettes converts every declared palette.
func (c *Config) RuntimePalettes() map[platform.WindowID]palette.Config {
	out := make(map[platform.WindowID]palette.Config, len(c.Palettes))
	for id, p := range c.Palettes {
		out[platform.WindowID(id)] = p.Runtime()
	}
	return out
}
