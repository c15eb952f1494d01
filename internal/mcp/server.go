package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/palettehost/internal/host"
	"github.com/1broseidon/palettehost/internal/ipc"
)

// Implementation identity reported to MCP clients.
const (
	ServerName    = "palettehost"
	ServerVersion = "0.1.0"
)

const (
	defaultPromptTimeoutSeconds = 60
	maxPromptTimeoutSeconds     = 600
)

// Daemon is the subset of the IPC client the tools use.
type Daemon interface {
	ListPalettes() ([]host.Status, error)
	Show(p ipc.ShowPayload) (bool, error)
	Toggle(p ipc.ShowPayload) (bool, error)
	Hide(id string, delayMs int) error
	HideAll(except ...string) error
	FocusMain() error
	Recover() (*host.RecoverReport, error)
	ShowAndWait(p ipc.ShowPayload) (*host.Message, error)
}

var _ Daemon = (*ipc.Client)(nil)

// Server exposes palette operations as MCP tools. It talks to a running
// daemon; it never opens the display itself.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
}

// NewServer creates a new MCP server backed by daemon.
func NewServer(daemon Daemon) *Server {
	s := &Server{daemon: daemon}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_palettes",
		Description: "List declared and created floating palettes with their visibility, focus, group and frame.",
	}, s.handleListPalettes)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "show_palette",
		Description: "Show a floating palette. Unset fields keep the palette's configured values. Returns visible=false when the show was suppressed, for example right after a click-outside dismissed the same palette.",
	}, s.handleShowPalette)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "toggle_palette",
		Description: "Hide the palette if it is visible, otherwise show it. Returns the resulting visibility.",
	}, s.handleTogglePalette)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "hide_palette",
		Description: "Hide a palette, optionally after a delay. Fails for palettes that were never declared or shown.",
	}, s.handleHidePalette)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "hide_all_palettes",
		Description: "Hide every visible palette except the listed ids.",
	}, s.handleHideAll)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "focus_main_window",
		Description: "Return keyboard focus to the host application's main window.",
	}, s.handleFocusMain)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "recover_palettes",
		Description: "Reconcile palettes with the native windows that exist now: surviving windows are adopted, orphans destroyed.",
	}, s.handleRecover)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "prompt_palette",
		Description: "Show a palette and wait until it answers with a result or cancel message, or the timeout (default 60s) elapses. The palette is hidden afterwards.",
	}, s.handlePromptPalette)
}

func (in ShowPaletteInput) payload() (ipc.ShowPayload, error) {
	if in.ID == "" {
		return ipc.ShowPayload{}, fmt.Errorf("id is required")
	}
	p := ipc.ShowPayload{
		ID:           in.ID,
		Args:         in.Args,
		Anchor:       in.Anchor,
		OffsetX:      in.OffsetX,
		OffsetY:      in.OffsetY,
		X:            in.X,
		Y:            in.Y,
		Focus:        in.Focus,
		Keys:         in.Keys,
		ClickOutside: in.ClickOutside,
		Group:        in.Group,
		AutoHideMs:   in.AutoHideMs,
	}
	// Validate locally so bad input fails without a round trip.
	if _, err := p.Options(); err != nil {
		return ipc.ShowPayload{}, err
	}
	return p, nil
}
