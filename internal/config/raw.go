package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		// Not present.
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawInputConfig struct {
	ClickDedupWindowMs   *int     `yaml:"click_dedup_window_ms"`
	ClickDedupDistancePx *float64 `yaml:"click_dedup_distance_px"`
	ShowGuardTTLMs       *int     `yaml:"show_guard_ttl_ms"`
	FocusRestore         *string  `yaml:"focus_restore"`
}

type RawDaemonConfig struct {
	ReconcileIntervalSeconds *int    `yaml:"reconcile_interval_seconds"`
	RecoverOnStart           *bool   `yaml:"recover_on_start"`
	WatchConfig              *bool   `yaml:"watch_config"`
	MetricsAddr              *string `yaml:"metrics_addr"`
}

type RawHostConfig struct {
	Display         *string `yaml:"display"`
	XAuthority      *string `yaml:"xauthority"`
	MainWindowClass *string `yaml:"main_window_class"`
}

type RawPalette struct {
	Inherits     *string   `yaml:"inherits"`
	Width        *int      `yaml:"width"`
	Height       *int      `yaml:"height"`
	Anchor       *string   `yaml:"anchor"`
	OffsetX      *int      `yaml:"offset_x"`
	OffsetY      *int      `yaml:"offset_y"`
	X            *int      `yaml:"x"`
	Y            *int      `yaml:"y"`
	KeepOnScreen *bool     `yaml:"keep_on_screen"`
	TakesFocus   *bool     `yaml:"takes_focus"`
	Keys         *[]string `yaml:"keys"`
	ClickOutside *string   `yaml:"click_outside"`
	ClickScope   *string   `yaml:"click_outside_scope"`
	Group        *string   `yaml:"group"`
	HideOnEscape *bool     `yaml:"hide_on_escape"`
	AlwaysOnTop  *bool     `yaml:"always_on_top"`
	Animate      *bool     `yaml:"animate"`
	Title        *string   `yaml:"title"`
	Transparent  *bool     `yaml:"transparent"`
	Opacity      *float64  `yaml:"opacity"`
	Hotkey       *string   `yaml:"hotkey"`
}

type RawConfig struct {
	Include  IncludeList           `yaml:"include"`
	LogLevel *string               `yaml:"log_level"`
	Input    *RawInputConfig       `yaml:"input"`
	Daemon   *RawDaemonConfig      `yaml:"daemon"`
	Host     *RawHostConfig        `yaml:"host"`
	Palettes map[string]RawPalette `yaml:"palettes"`
}

func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c

	if overlay.LogLevel != nil {
		out.LogLevel = overlay.LogLevel
	}
	if overlay.Input != nil {
		if out.Input == nil {
			out.Input = &RawInputConfig{}
		}
		in := *out.Input
		if overlay.Input.ClickDedupWindowMs != nil {
			in.ClickDedupWindowMs = overlay.Input.ClickDedupWindowMs
		}
		if overlay.Input.ClickDedupDistancePx != nil {
			in.ClickDedupDistancePx = overlay.Input.ClickDedupDistancePx
		}
		if overlay.Input.ShowGuardTTLMs != nil {
			in.ShowGuardTTLMs = overlay.Input.ShowGuardTTLMs
		}
		if overlay.Input.FocusRestore != nil {
			in.FocusRestore = overlay.Input.FocusRestore
		}
		out.Input = &in
	}
	if overlay.Daemon != nil {
		if out.Daemon == nil {
			out.Daemon = &RawDaemonConfig{}
		}
		d := *out.Daemon
		if overlay.Daemon.ReconcileIntervalSeconds != nil {
			d.ReconcileIntervalSeconds = overlay.Daemon.ReconcileIntervalSeconds
		}
		if overlay.Daemon.RecoverOnStart != nil {
			d.RecoverOnStart = overlay.Daemon.RecoverOnStart
		}
		if overlay.Daemon.WatchConfig != nil {
			d.WatchConfig = overlay.Daemon.WatchConfig
		}
		if overlay.Daemon.MetricsAddr != nil {
			d.MetricsAddr = overlay.Daemon.MetricsAddr
		}
		out.Daemon = &d
	}
	if overlay.Host != nil {
		if out.Host == nil {
			out.Host = &RawHostConfig{}
		}
		h := *out.Host
		if overlay.Host.Display != nil {
			h.Display = overlay.Host.Display
		}
		if overlay.Host.XAuthority != nil {
			h.XAuthority = overlay.Host.XAuthority
		}
		if overlay.Host.MainWindowClass != nil {
			h.MainWindowClass = overlay.Host.MainWindowClass
		}
		out.Host = &h
	}

	if overlay.Palettes != nil {
		merged := make(map[string]RawPalette, len(out.Palettes)+len(overlay.Palettes))
		for id, p := range out.Palettes {
			merged[id] = p
		}
		for id, p := range overlay.Palettes {
			base, ok := merged[id]
			if !ok {
				merged[id] = p
				continue
			}
			merged[id] = mergeRawPalette(base, p)
		}
		out.Palettes = merged
	}

	return out
}

func mergeRawPalette(base, patch RawPalette) RawPalette {
	out := base
	if patch.Inherits != nil {
		out.Inherits = patch.Inherits
	}
	if patch.Width != nil {
		out.Width = patch.Width
	}
	if patch.Height != nil {
		out.Height = patch.Height
	}
	if patch.Anchor != nil {
		out.Anchor = patch.Anchor
	}
	if patch.OffsetX != nil {
		out.OffsetX = patch.OffsetX
	}
	if patch.OffsetY != nil {
		out.OffsetY = patch.OffsetY
	}
	if patch.X != nil {
		out.X = patch.X
	}
	if patch.Y != nil {
		out.Y = patch.Y
	}
	if patch.KeepOnScreen != nil {
		out.KeepOnScreen = patch.KeepOnScreen
	}
	if patch.TakesFocus != nil {
		out.TakesFocus = patch.TakesFocus
	}
	if patch.Keys != nil {
		out.Keys = patch.Keys
	}
	if patch.ClickOutside != nil {
		out.ClickOutside = patch.ClickOutside
	}
	if patch.ClickScope != nil {
		out.ClickScope = patch.ClickScope
	}
	if patch.Group != nil {
		out.Group = patch.Group
	}
	if patch.HideOnEscape != nil {
		out.HideOnEscape = patch.HideOnEscape
	}
	if patch.AlwaysOnTop != nil {
		out.AlwaysOnTop = patch.AlwaysOnTop
	}
	if patch.Animate != nil {
		out.Animate = patch.Animate
	}
	if patch.Title != nil {
		out.Title = patch.Title
	}
	if patch.Transparent != nil {
		out.Transparent = patch.Transparent
	}
	if patch.Opacity != nil {
		out.Opacity = patch.Opacity
	}
	if patch.Hotkey != nil {
		out.Hotkey = patch.Hotkey
	}
	return out
}
