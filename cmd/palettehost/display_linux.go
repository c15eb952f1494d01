//go:build linux

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/1broseidon/palettehost/internal/config"
	"github.com/1broseidon/palettehost/internal/hotkeys"
	"github.com/1broseidon/palettehost/internal/platform"
	"github.com/1broseidon/palettehost/internal/x11"
)

// display owns the X connection, the palette bridge on top of it and the
// global hotkeys.
type display struct {
	conn    *x11.Connection
	bridge  *platform.X11Bridge
	hotkeys *hotkeys.Handler
	logger  *slog.Logger
}

func openDisplay(cfg *config.Config, logger *slog.Logger) (*display, error) {
	if cfg.Host.XAuthority != "" {
		os.Setenv("XAUTHORITY", cfg.Host.XAuthority)
	}

	conn, err := x11.NewConnection(cfg.Host.Display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X display: %w", err)
	}
	bridge, err := platform.NewX11Bridge(conn, platform.X11Options{
		MainWindowClass: cfg.Host.MainWindowClass,
		Logger:          logger,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &display{conn: conn, bridge: bridge, logger: logger}, nil
}

func (d *display) Bridge() platform.Bridge { return d.bridge }

// EnableHotkeys starts listening for palette hotkeys. Bindings are installed
// by BindHotkeys.
func (d *display) EnableHotkeys(toggle func(platform.WindowID)) {
	d.hotkeys = hotkeys.NewHandler(d.conn, d.logger, toggle)
}

func (d *display) BindHotkeys(bindings map[string]platform.WindowID) error {
	if d.hotkeys == nil {
		return nil
	}
	return d.hotkeys.Bind(bindings)
}

// Run processes X events until Close.
func (d *display) Run() {
	d.bridge.EventLoop()
}

func (d *display) Close() {
	if d.hotkeys != nil {
		d.hotkeys.Close()
	}
	d.bridge.Close()
}
