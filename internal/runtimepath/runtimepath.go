// Package runtimepath locates per-user runtime files such as the daemon socket.
package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// SocketEnv overrides the IPC socket location when set.
	SocketEnv = "PALETTEHOST_SOCKET"

	socketName = "palettehost.sock"
)

// resolver holds the process facts Dir depends on so tests can vary them.
type resolver struct {
	getenv func(string) string
	uid    int
	isDir  func(string) bool
	mkdir  func(string) error
}

var system = resolver{
	getenv: os.Getenv,
	uid:    os.Getuid(),
	isDir: func(p string) bool {
		info, err := os.Stat(p)
		return err == nil && info.IsDir()
	},
	mkdir: func(p string) error { return os.MkdirAll(p, 0o700) },
}

// dir prefers $XDG_RUNTIME_DIR, then /run/user/<uid>, then a private
// directory under /tmp which it creates.
func (r resolver) dir() (string, error) {
	if d := r.getenv("XDG_RUNTIME_DIR"); d != "" {
		return d, nil
	}
	if d := fmt.Sprintf("/run/user/%d", r.uid); r.isDir(d) {
		return d, nil
	}
	d := filepath.Join(os.TempDir(), fmt.Sprintf("palettehost-runtime-%d", r.uid))
	if err := r.mkdir(d); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	return d, nil
}

func (r resolver) socketPath() (string, error) {
	if p := r.getenv(SocketEnv); p != "" {
		return p, nil
	}
	return r.path(socketName)
}

func (r resolver) path(name string) (string, error) {
	d, err := r.dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, name), nil
}

// Dir returns the runtime directory for the current user.
func Dir() (string, error) { return system.dir() }

// SocketPath returns the daemon IPC socket path, honouring $PALETTEHOST_SOCKET.
func SocketPath() (string, error) { return system.socketPath() }
