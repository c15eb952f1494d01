package runtimepath

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func fakeResolver(env map[string]string, dirs ...string) (resolver, *[]string) {
	var made []string
	return resolver{
		getenv: func(k string) string { return env[k] },
		uid:    1000,
		isDir: func(p string) bool {
			for _, d := range dirs {
				if d == p {
					return true
				}
			}
			return false
		},
		mkdir: func(p string) error {
			made = append(made, p)
			return nil
		},
	}, &made
}

func TestResolverDir(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		dirs     []string
		want     string
		wantMade bool
	}{
		{
			name: "xdg runtime dir",
			env:  map[string]string{"XDG_RUNTIME_DIR": "/xdg"},
			dirs: []string{"/run/user/1000"},
			want: "/xdg",
		},
		{
			name: "run user",
			dirs: []string{"/run/user/1000"},
			want: "/run/user/1000",
		},
		{
			name:     "tmp fallback",
			want:     "palettehost-runtime-1000",
			wantMade: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, made := fakeResolver(tt.env, tt.dirs...)
			got, err := r.dir()
			if err != nil {
				t.Fatalf("dir: %v", err)
			}
			if !strings.HasSuffix(got, tt.want) {
				t.Fatalf("dir = %q, want suffix %q", got, tt.want)
			}
			if tt.wantMade != (len(*made) == 1) {
				t.Fatalf("created = %v", *made)
			}
		})
	}
}

func TestResolverDir_MkdirFails(t *testing.T) {
	r, _ := fakeResolver(nil)
	r.mkdir = func(string) error { return errors.New("read-only") }
	if _, err := r.dir(); err == nil || !strings.Contains(err.Error(), "read-only") {
		t.Fatalf("err = %v", err)
	}
}

func TestResolverSocketPath(t *testing.T) {
	r, _ := fakeResolver(map[string]string{"XDG_RUNTIME_DIR": "/xdg"})
	if got, err := r.socketPath(); err != nil || got != "/xdg/palettehost.sock" {
		t.Fatalf("socketPath = %q, %v", got, err)
	}

	r, _ = fakeResolver(map[string]string{"XDG_RUNTIME_DIR": "/xdg", SocketEnv: "/custom.sock"})
	if got, err := r.socketPath(); err != nil || got != "/custom.sock" {
		t.Fatalf("override = %q, %v", got, err)
	}
}

func TestSocketPath_EnvOverride(t *testing.T) {
	want := filepath.Join(t.TempDir(), "custom.sock")
	t.Setenv(SocketEnv, want)

	got, err := SocketPath()
	if err != nil {
		t.Fatalf("SocketPath() error: %v", err)
	}
	if got != want {
		t.Fatalf("SocketPath() = %q, want %q", got, want)
	}
}

func TestDir_UsesXDGRuntimeDir(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)
	if got, err := Dir(); err != nil || got != td {
		t.Fatalf("Dir() = %q, %v, want %q", got, err, td)
	}
}
