package mcp

import "encoding/json"

// ListPalettesInput is the input for the list_palettes tool.
type ListPalettesInput struct {
	VisibleOnly bool `json:"visible_only,omitempty" jsonschema:"When true, only list palettes that are currently visible"`
}

// PaletteInfo describes one palette.
type PaletteInfo struct {
	ID      string `json:"id"`
	Visible bool   `json:"visible"`
	Warm    bool   `json:"warm"`
	Frozen  bool   `json:"frozen"`
	Focused bool   `json:"focused"`
	Group   string `json:"group,omitempty"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// ListPalettesOutput is the output for the list_palettes tool.
type ListPalettesOutput struct {
	Palettes []PaletteInfo `json:"palettes"`
}

// ShowPaletteInput is the input for the show_palette and toggle_palette tools.
type ShowPaletteInput struct {
	ID           string          `json:"id" jsonschema:"required,Palette id"`
	Args         json.RawMessage `json:"args,omitempty" jsonschema:"Optional JSON value handed to the palette"`
	Anchor       string          `json:"anchor,omitempty" jsonschema:"Placement anchor: cursor, screen or absolute (default: the palette's configured anchor)"`
	OffsetX      int             `json:"offset_x,omitempty" jsonschema:"Horizontal offset from the anchor"`
	OffsetY      int             `json:"offset_y,omitempty" jsonschema:"Vertical offset from the anchor"`
	X            int             `json:"x,omitempty" jsonschema:"Absolute x position (anchor=absolute)"`
	Y            int             `json:"y,omitempty" jsonschema:"Absolute y position (anchor=absolute)"`
	Focus        *bool           `json:"focus,omitempty" jsonschema:"Override whether the palette takes keyboard focus"`
	Keys         []string        `json:"keys,omitempty" jsonschema:"Keys the palette captures while visible (e.g. arrow_up, enter, escape)"`
	ClickOutside string          `json:"click_outside,omitempty" jsonschema:"Click-outside policy: dismiss, passthrough, block or unfocus"`
	Group        *string         `json:"group,omitempty" jsonschema:"Exclusive group; showing hides other visible members"`
	AutoHideMs   int             `json:"auto_hide_ms,omitempty" jsonschema:"Hide automatically after this many milliseconds"`
}

// ShowPaletteOutput is the output for the show_palette and toggle_palette tools.
type ShowPaletteOutput struct {
	ID      string `json:"id"`
	Visible bool   `json:"visible"`
}

// HidePaletteInput is the input for the hide_palette tool.
type HidePaletteInput struct {
	ID      string `json:"id" jsonschema:"required,Palette id"`
	DelayMs int    `json:"delay_ms,omitempty" jsonschema:"Wait this many milliseconds before hiding"`
}

// HideAllInput is the input for the hide_all_palettes tool.
type HideAllInput struct {
	Except []string `json:"except,omitempty" jsonschema:"Palette ids to leave visible"`
}

// OKOutput is returned by tools without a result value.
type OKOutput struct {
	OK bool `json:"ok"`
}

// RecoverOutput is the output for the recover_palettes tool.
type RecoverOutput struct {
	Synced    []string `json:"synced"`
	Destroyed []string `json:"destroyed"`
}

// PromptPaletteInput is the input for the prompt_palette tool.
type PromptPaletteInput struct {
	ID      string          `json:"id" jsonschema:"required,Palette id"`
	Args    json.RawMessage `json:"args,omitempty" jsonschema:"Optional JSON value handed to the palette"`
	Anchor  string          `json:"anchor,omitempty" jsonschema:"Placement anchor: cursor, screen or absolute (default: the palette's configured anchor)"`
	OffsetX int             `json:"offset_x,omitempty" jsonschema:"Horizontal offset from the anchor"`
	OffsetY int             `json:"offset_y,omitempty" jsonschema:"Vertical offset from the anchor"`
	Focus   *bool           `json:"focus,omitempty" jsonschema:"Override whether the palette takes keyboard focus"`
	Keys    []string        `json:"keys,omitempty" jsonschema:"Keys the palette captures while visible"`
	Timeout int             `json:"timeout,omitempty" jsonschema:"Seconds to wait for an answer (default: 60)"`
}

// PromptPaletteOutput is the output for the prompt_palette tool.
type PromptPaletteOutput struct {
	ID        string          `json:"id"`
	Cancelled bool            `json:"cancelled"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
