package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// BuildEffectiveConfig applies raw on top of the defaults and resolves palette
// inheritance.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.LogLevel != nil {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(*raw.LogLevel))
	}
	if in := raw.Input; in != nil {
		if in.ClickDedupWindowMs != nil {
			cfg.Input.ClickDedupWindowMs = *in.ClickDedupWindowMs
		}
		if in.ClickDedupDistancePx != nil {
			cfg.Input.ClickDedupDistancePx = *in.ClickDedupDistancePx
		}
		if in.ShowGuardTTLMs != nil {
			cfg.Input.ShowGuardTTLMs = *in.ShowGuardTTLMs
		}
		if in.FocusRestore != nil {
			cfg.Input.FocusRestore = *in.FocusRestore
		}
	}
	if d := raw.Daemon; d != nil {
		if d.ReconcileIntervalSeconds != nil {
			cfg.Daemon.ReconcileIntervalSeconds = *d.ReconcileIntervalSeconds
		}
		if d.RecoverOnStart != nil {
			cfg.Daemon.RecoverOnStart = *d.RecoverOnStart
		}
		if d.WatchConfig != nil {
			cfg.Daemon.WatchConfig = *d.WatchConfig
		}
		if d.MetricsAddr != nil {
			cfg.Daemon.MetricsAddr = *d.MetricsAddr
		}
	}
	if h := raw.Host; h != nil {
		if h.Display != nil {
			cfg.Host.Display = *h.Display
		}
		if h.XAuthority != nil {
			cfg.Host.XAuthority = *h.XAuthority
		}
		if h.MainWindowClass != nil {
			cfg.Host.MainWindowClass = *h.MainWindowClass
		}
	}

	for id := range raw.Palettes {
		p, err := resolvePalette(raw.Palettes, id, nil)
		if err != nil {
			return nil, err
		}
		cfg.Palettes[id] = p
	}
	return cfg, nil
}

// resolvePalette builds palette id, applying the palette it inherits from
// first. chain holds the ids being resolved, for cycle detection.
func resolvePalette(raws map[string]RawPalette, id string, chain []string) (PaletteConfig, error) {
	for _, seen := range chain {
		if seen == id {
			return PaletteConfig{}, &ValidationError{
				Path: "palettes." + chain[0] + ".inherits",
				Err:  fmt.Errorf("inheritance cycle: %s -> %s", strings.Join(chain, " -> "), id),
			}
		}
	}
	raw := raws[id]

	base := DefaultPalette()
	if raw.Inherits != nil {
		parent := strings.TrimSpace(*raw.Inherits)
		if _, ok := raws[parent]; !ok {
			return PaletteConfig{}, &ValidationError{
				Path: "palettes." + id + ".inherits",
				Err:  fmt.Errorf("unknown palette %q", parent),
			}
		}
		var err error
		base, err = resolvePalette(raws, parent, append(chain, id))
		if err != nil {
			return PaletteConfig{}, err
		}
		base.Hotkey = ""
		base.Inherits = parent
	}
	return applyRawPalette(base, raw), nil
}

func applyRawPalette(p PaletteConfig, raw RawPalette) PaletteConfig {
	if raw.Width != nil {
		p.Width = *raw.Width
	}
	if raw.Height != nil {
		p.Height = *raw.Height
	}
	if raw.Anchor != nil {
		p.Anchor = *raw.Anchor
	}
	if raw.OffsetX != nil {
		p.OffsetX = *raw.OffsetX
	}
	if raw.OffsetY != nil {
		p.OffsetY = *raw.OffsetY
	}
	if raw.X != nil {
		p.X = *raw.X
	}
	if raw.Y != nil {
		p.Y = *raw.Y
	}
	if raw.KeepOnScreen != nil {
		p.KeepOnScreen = *raw.KeepOnScreen
	}
	if raw.TakesFocus != nil {
		p.TakesFocus = *raw.TakesFocus
	}
	if raw.Keys != nil {
		p.Keys = append([]string{}, (*raw.Keys)...)
	}
	if raw.ClickOutside != nil {
		p.ClickOutside = *raw.ClickOutside
	}
	if raw.ClickScope != nil {
		p.ClickScope = *raw.ClickScope
	}
	if raw.Group != nil {
		p.Group = *raw.Group
	}
	if raw.HideOnEscape != nil {
		p.HideOnEscape = *raw.HideOnEscape
	}
	if raw.AlwaysOnTop != nil {
		p.AlwaysOnTop = *raw.AlwaysOnTop
	}
	if raw.Animate != nil {
		p.Animate = *raw.Animate
	}
	if raw.Title != nil {
		p.Title = *raw.Title
	}
	if raw.Transparent != nil {
		p.Transparent = *raw.Transparent
	}
	if raw.Opacity != nil {
		p.Opacity = *raw.Opacity
	}
	if raw.Hotkey != nil {
		p.Hotkey = strings.TrimSpace(*raw.Hotkey)
	}
	return p
}
