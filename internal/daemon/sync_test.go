package daemon

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/1broseidon/palettehost/internal/config"
	"github.com/1broseidon/palettehost/internal/palette"
	"github.com/1broseidon/palettehost/internal/platform"
)

type fakeDeclarer struct {
	mu       sync.Mutex
	declared map[platform.WindowID]palette.Config
}

func newFakeDeclarer() *fakeDeclarer {
	return &fakeDeclarer{declared: make(map[platform.WindowID]palette.Config)}
}

func (d *fakeDeclarer) Declare(id platform.WindowID, cfg palette.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.declared[id] = cfg
}

func (d *fakeDeclarer) Undeclare(id platform.WindowID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.declared, id)
}

func (d *fakeDeclarer) DeclaredIDs() []platform.WindowID {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]platform.WindowID, 0, len(d.declared))
	for id := range d.declared {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestConfigSync_ReloadDeclaresAndUndeclares(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "palettes:\n  a:\n    group: menu\n  b: {}\n")

	d := newFakeDeclarer()
	s := NewConfigSync(path, d, discardLogger())

	var reloaded int
	s.OnReload(func(*config.Config) { reloaded++ })

	if err := s.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := d.DeclaredIDs(); len(got) != 2 {
		t.Fatalf("declared = %v", got)
	}
	if d.declared["a"].Behavior.Group != "menu" {
		t.Fatalf("a config = %+v", d.declared["a"])
	}

	writeFile(t, path, "palettes:\n  a:\n    group: popup\n")
	if err := s.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := d.DeclaredIDs(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("declared after removal = %v", got)
	}
	if d.declared["a"].Behavior.Group != "popup" {
		t.Fatalf("a not redeclared: %+v", d.declared["a"])
	}
	if reloaded != 2 {
		t.Fatalf("reload hooks ran %d times, want 2", reloaded)
	}
	if files := s.Files(); len(files) != 1 {
		t.Fatalf("files = %v", files)
	}
}

func TestConfigSync_InvalidConfigKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "palettes:\n  a: {}\n")

	d := newFakeDeclarer()
	s := NewConfigSync(path, d, discardLogger())
	if err := s.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	before := s.Config()

	writeFile(t, path, "palettes:\n  a:\n    anchor: moon\n")
	if err := s.Reload(); err == nil {
		t.Fatalf("expected error for invalid anchor")
	}
	if s.Config() != before {
		t.Fatalf("config replaced by an invalid load")
	}
	if got := d.DeclaredIDs(); len(got) != 1 {
		t.Fatalf("declarations changed after failed reload: %v", got)
	}
}

func TestConfigSync_Path(t *testing.T) {
	s := NewConfigSync("/etc/ph.yaml", newFakeDeclarer(), nil)
	if p, err := s.Path(); err != nil || p != "/etc/ph.yaml" {
		t.Fatalf("path = %q err=%v", p, err)
	}
	if s.Config() != nil {
		t.Fatalf("config before first load should be nil")
	}
}
