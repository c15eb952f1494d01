package palette

import (
	"time"

	"github.com/1broseidon/palettehost/internal/input"
	"github.com/1broseidon/palettehost/internal/platform"
	"github.com/1broseidon/palettehost/internal/position"
)

// Config is the effective configuration of one palette. Show options override
// it per call.
type Config struct {
	Size         platform.Size
	Position     position.Spec
	Behavior     input.Behavior
	HideOnEscape bool
	AlwaysOnTop  bool
	Animate      bool
	Appearance   platform.Appearance
}

// DefaultConfig returns the configuration used for palettes that were never
// declared.
func DefaultConfig() Config {
	return Config{
		Size:     platform.Size{Width: 480, Height: 320},
		Position: position.Spec{Anchor: position.AnchorScreen},
		Behavior: input.Behavior{
			TakesFocus:   true,
			ClickOutside: input.ClickDismiss,
			ClickScope:   input.ScopeAnywhere,
		},
		HideOnEscape: true,
	}
}

// ShowOptions are per-call overrides for Show. Zero values keep the config.
type ShowOptions struct {
	Args     any
	Position *position.Spec
	Size     *platform.Size
	Focus    *bool
	// Keys replaces the captured key set when non-nil.
	Keys         []platform.Key
	ClickOutside input.ClickPolicy
	Group        *string
	// Delay is waited before the show is queued.
	Delay         time.Duration
	AutoHideAfter time.Duration
}

// HideOptions are per-call options for Hide.
type HideOptions struct {
	Delay time.Duration
}

type plan struct {
	behavior input.Behavior
	spec     position.Spec
	size     platform.Size
}

func (c Config) merge(opts ShowOptions) plan {
	p := plan{
		behavior: c.Behavior,
		spec:     c.Position,
		size:     c.Size,
	}
	if opts.Position != nil {
		p.spec = *opts.Position
	}
	if opts.Size != nil {
		p.size = *opts.Size
	}
	if opts.Focus != nil {
		p.behavior.TakesFocus = *opts.Focus
	}
	if opts.Keys != nil {
		p.behavior.CapturedKeys = opts.Keys
	}
	if opts.ClickOutside != "" {
		p.behavior.ClickOutside = opts.ClickOutside
	}
	if opts.Group != nil {
		p.behavior.Group = *opts.Group
	}
	return p
}
