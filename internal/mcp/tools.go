package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/palettehost/internal/host"
)

func (s *Server) handleListPalettes(_ context.Context, _ *mcpsdk.CallToolRequest, args ListPalettesInput) (*mcpsdk.CallToolResult, ListPalettesOutput, error) {
	statuses, err := s.daemon.ListPalettes()
	if err != nil {
		return nil, ListPalettesOutput{}, err
	}

	out := ListPalettesOutput{Palettes: make([]PaletteInfo, 0, len(statuses))}
	for _, st := range statuses {
		if args.VisibleOnly && !st.Visible {
			continue
		}
		out.Palettes = append(out.Palettes, PaletteInfo{
			ID:      string(st.ID),
			Visible: st.Visible,
			Warm:    st.Warm,
			Frozen:  st.Frozen,
			Focused: st.Focused,
			Group:   st.Group,
			X:       st.Frame.X,
			Y:       st.Frame.Y,
			Width:   st.Frame.Width,
			Height:  st.Frame.Height,
		})
	}
	return nil, out, nil
}

func (s *Server) handleShowPalette(_ context.Context, _ *mcpsdk.CallToolRequest, args ShowPaletteInput) (*mcpsdk.CallToolResult, ShowPaletteOutput, error) {
	p, err := args.payload()
	if err != nil {
		return nil, ShowPaletteOutput{}, err
	}
	visible, err := s.daemon.Show(p)
	if err != nil {
		return nil, ShowPaletteOutput{}, err
	}
	return nil, ShowPaletteOutput{ID: args.ID, Visible: visible}, nil
}

func (s *Server) handleTogglePalette(_ context.Context, _ *mcpsdk.CallToolRequest, args ShowPaletteInput) (*mcpsdk.CallToolResult, ShowPaletteOutput, error) {
	p, err := args.payload()
	if err != nil {
		return nil, ShowPaletteOutput{}, err
	}
	visible, err := s.daemon.Toggle(p)
	if err != nil {
		return nil, ShowPaletteOutput{}, err
	}
	return nil, ShowPaletteOutput{ID: args.ID, Visible: visible}, nil
}

func (s *Server) handleHidePalette(_ context.Context, _ *mcpsdk.CallToolRequest, args HidePaletteInput) (*mcpsdk.CallToolResult, OKOutput, error) {
	if args.ID == "" {
		return nil, OKOutput{}, fmt.Errorf("id is required")
	}
	if args.DelayMs < 0 {
		return nil, OKOutput{}, fmt.Errorf("delay_ms must be >= 0")
	}
	if err := s.daemon.Hide(args.ID, args.DelayMs); err != nil {
		return nil, OKOutput{}, err
	}
	return nil, OKOutput{OK: true}, nil
}

func (s *Server) handleHideAll(_ context.Context, _ *mcpsdk.CallToolRequest, args HideAllInput) (*mcpsdk.CallToolResult, OKOutput, error) {
	if err := s.daemon.HideAll(args.Except...); err != nil {
		return nil, OKOutput{}, err
	}
	return nil, OKOutput{OK: true}, nil
}

func (s *Server) handleFocusMain(_ context.Context, _ *mcpsdk.CallToolRequest, _ struct{}) (*mcpsdk.CallToolResult, OKOutput, error) {
	if err := s.daemon.FocusMain(); err != nil {
		return nil, OKOutput{}, err
	}
	return nil, OKOutput{OK: true}, nil
}

func (s *Server) handleRecover(_ context.Context, _ *mcpsdk.CallToolRequest, _ struct{}) (*mcpsdk.CallToolResult, RecoverOutput, error) {
	report, err := s.daemon.Recover()
	if err != nil {
		return nil, RecoverOutput{}, err
	}
	out := RecoverOutput{Synced: []string{}, Destroyed: []string{}}
	for _, id := range report.Synced {
		out.Synced = append(out.Synced, string(id))
	}
	for _, id := range report.Destroyed {
		out.Destroyed = append(out.Destroyed, string(id))
	}
	return nil, out, nil
}

func (s *Server) handlePromptPalette(_ context.Context, _ *mcpsdk.CallToolRequest, args PromptPaletteInput) (*mcpsdk.CallToolResult, PromptPaletteOutput, error) {
	p, err := ShowPaletteInput{
		ID:      args.ID,
		Args:    args.Args,
		Anchor:  args.Anchor,
		OffsetX: args.OffsetX,
		OffsetY: args.OffsetY,
		Focus:   args.Focus,
		Keys:    args.Keys,
	}.payload()
	if err != nil {
		return nil, PromptPaletteOutput{}, err
	}

	timeout := args.Timeout
	if timeout <= 0 {
		timeout = defaultPromptTimeoutSeconds
	}
	if timeout > maxPromptTimeoutSeconds {
		timeout = maxPromptTimeoutSeconds
	}
	p.TimeoutMs = timeout * 1000

	msg, err := s.daemon.ShowAndWait(p)
	if err != nil {
		return nil, PromptPaletteOutput{}, err
	}
	return nil, PromptPaletteOutput{
		ID:        args.ID,
		Cancelled: msg.Kind == host.KindCancel,
		Payload:   msg.Payload,
	}, nil
}
