//go:build !linux

package main

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/1broseidon/palettehost/internal/config"
	"github.com/1broseidon/palettehost/internal/platform"
)

type display struct{}

func openDisplay(*config.Config, *slog.Logger) (*display, error) {
	return nil, fmt.Errorf("no native palette bridge for %s", runtime.GOOS)
}

func (d *display) Bridge() platform.Bridge                        { return nil }
func (d *display) EnableHotkeys(func(platform.WindowID))          {}
func (d *display) BindHotkeys(map[string]platform.WindowID) error { return nil }
func (d *display) Run()                                           {}
func (d *display) Close()                                         {}
