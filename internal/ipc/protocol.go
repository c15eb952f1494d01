package ipc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/1broseidon/palettehost/internal/host"
	"github.com/1broseidon/palettehost/internal/input"
	"github.com/1broseidon/palettehost/internal/palette"
	"github.com/1broseidon/palettehost/internal/platform"
	"github.com/1broseidon/palettehost/internal/position"
)

// CommandType represents different IPC command types
type CommandType string

// Commands understood by the daemon.
const (
	CommandReload       CommandType = "RELOAD"
	CommandGetStatus    CommandType = "GET_STATUS"
	CommandListPalettes CommandType = "LIST_PALETTES"
	CommandShow         CommandType = "SHOW"
	CommandHide         CommandType = "HIDE"
	CommandToggle       CommandType = "TOGGLE"
	CommandHideAll      CommandType = "HIDE_ALL"
	CommandFocusMain    CommandType = "FOCUS_MAIN"
	CommandRecover      CommandType = "RECOVER"
	CommandSendMessage  CommandType = "SEND_MESSAGE"
	CommandShowAndWait  CommandType = "SHOW_AND_WAIT"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	DaemonRunning   bool   `json:"daemon_running"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	PaletteCount    int    `json:"palette_count"`
	VisibleCount    int    `json:"visible_count"`
	Focused         string `json:"focused"`
	ProtocolVersion int    `json:"protocol_version"`
}

// PalettesData represents the data returned by LIST_PALETTES
type PalettesData struct {
	Palettes []host.Status `json:"palettes"`
}

// ShowPayload carries SHOW, TOGGLE and SHOW_AND_WAIT arguments. Unset
// fields keep the palette's configured values.
type ShowPayload struct {
	ID           string          `json:"id"`
	Args         json.RawMessage `json:"args,omitempty"`
	Anchor       string          `json:"anchor,omitempty"`
	OffsetX      int             `json:"offset_x,omitempty"`
	OffsetY      int             `json:"offset_y,omitempty"`
	X            int             `json:"x,omitempty"`
	Y            int             `json:"y,omitempty"`
	Width        int             `json:"width,omitempty"`
	Height       int             `json:"height,omitempty"`
	Focus        *bool           `json:"focus,omitempty"`
	Keys         []string        `json:"keys,omitempty"`
	ClickOutside string          `json:"click_outside,omitempty"`
	Group        *string         `json:"group,omitempty"`
	DelayMs      int             `json:"delay_ms,omitempty"`
	AutoHideMs   int             `json:"auto_hide_ms,omitempty"`
	TimeoutMs    int             `json:"timeout_ms,omitempty"`
}

// ShowData is returned by SHOW and TOGGLE.
type ShowData struct {
	Visible bool `json:"visible"`
}

// HidePayload carries HIDE arguments.
type HidePayload struct {
	ID      string `json:"id"`
	DelayMs int    `json:"delay_ms,omitempty"`
}

// HideAllPayload carries HIDE_ALL arguments.
type HideAllPayload struct {
	Except []string `json:"except,omitempty"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Options converts p into show options.
func (p ShowPayload) Options() (palette.ShowOptions, error) {
	var opts palette.ShowOptions
	if len(p.Args) > 0 {
		opts.Args = p.Args
	}
	if p.Anchor != "" {
		anchor, err := position.ParseAnchor(p.Anchor)
		if err != nil {
			return opts, err
		}
		opts.Position = &position.Spec{
			Anchor: anchor,
			Offset: platform.Point{X: p.OffsetX, Y: p.OffsetY},
			Point:  platform.Point{X: p.X, Y: p.Y},
		}
	}
	if p.Width > 0 || p.Height > 0 {
		if p.Width <= 0 || p.Height <= 0 {
			return opts, fmt.Errorf("width and height must both be > 0")
		}
		opts.Size = &platform.Size{Width: p.Width, Height: p.Height}
	}
	opts.Focus = p.Focus
	if p.Keys != nil {
		keys, err := platform.ParseKeys(p.Keys)
		if err != nil {
			return opts, err
		}
		if keys == nil {
			keys = []platform.Key{}
		}
		opts.Keys = keys
	}
	if p.ClickOutside != "" {
		policy, err := input.ParseClickPolicy(p.ClickOutside)
		if err != nil {
			return opts, err
		}
		opts.ClickOutside = policy
	}
	opts.Group = p.Group
	if p.DelayMs < 0 || p.AutoHideMs < 0 {
		return opts, fmt.Errorf("delays must be >= 0")
	}
	opts.Delay = time.Duration(p.DelayMs) * time.Millisecond
	opts.AutoHideAfter = time.Duration(p.AutoHideMs) * time.Millisecond
	return opts, nil
}
