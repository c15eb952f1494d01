package main

import (
	"bytes"
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/1broseidon/palettehost/internal/host"
	"github.com/1broseidon/palettehost/internal/platform"
)

func parseShowFlags(t *testing.T, prompt bool, args ...string) (*showFlags, *flag.FlagSet) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var f showFlags
	f.register(fs, prompt)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return &f, fs
}

func TestShowFlagsPayload(t *testing.T) {
	f, fs := parseShowFlags(t, true,
		"--x", "10", "--y", "20", "--no-focus", "--keys", "Escape, Enter",
		"--args", `{"q":"hi"}`, "--timeout-ms", "500")
	p, err := f.payload(fs, "launcher")
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.ID != "launcher" || p.Anchor != "absolute" || p.X != 10 || p.Y != 20 {
		t.Fatalf("position = %+v", p)
	}
	if p.Focus == nil || *p.Focus {
		t.Fatalf("focus = %v, want explicit false", p.Focus)
	}
	if !reflect.DeepEqual(p.Keys, []string{"Escape", "Enter"}) {
		t.Fatalf("keys = %v", p.Keys)
	}
	if string(p.Args) != `{"q":"hi"}` || p.TimeoutMs != 500 {
		t.Fatalf("args=%s timeout=%d", p.Args, p.TimeoutMs)
	}
}

func TestShowFlagsPayload_Defaults(t *testing.T) {
	f, fs := parseShowFlags(t, false)
	p, err := f.payload(fs, "launcher")
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Anchor != "" || p.Focus != nil || p.Keys != nil || p.Args != nil {
		t.Fatalf("unset flags leaked into payload: %+v", p)
	}

	f, fs = parseShowFlags(t, false, "--keys", "")
	p, err = f.payload(fs, "launcher")
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Keys == nil || len(p.Keys) != 0 {
		t.Fatalf("explicit empty keys = %#v, want empty non-nil", p.Keys)
	}
}

func TestShowFlagsPayload_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "bad json", args: []string{"--args", "{"}},
		{name: "bad anchor", args: []string{"--anchor", "sideways"}},
		{name: "half size", args: []string{"--width", "100"}},
		{name: "bad key", args: []string{"--keys", "NotAKey"}},
		{name: "bad policy", args: []string{"--click-outside", "explode"}},
		{name: "negative delay", args: []string{"--delay-ms", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, fs := parseShowFlags(t, false, tt.args...)
			if _, err := f.payload(fs, "launcher"); err == nil {
				t.Fatalf("payload(%v) succeeded", tt.args)
			}
		})
	}
}

func TestRunShowUsageErrors(t *testing.T) {
	stderr := os.Stderr
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open devnull: %v", err)
	}
	defer devnull.Close()
	os.Stderr = devnull
	defer func() { os.Stderr = stderr }()

	if rc := runShow("show", nil); rc != 2 {
		t.Fatalf("show without id rc=%d, want 2", rc)
	}
	if rc := runShow("show", []string{"--args", "nope", "launcher"}); rc != 2 {
		t.Fatalf("show with bad args rc=%d, want 2", rc)
	}
	if rc := runShow("show", []string{"--help"}); rc != 0 {
		t.Fatalf("show --help rc=%d, want 0", rc)
	}
}

func TestBuildMessage(t *testing.T) {
	msg, err := buildMessage("launcher", "result", `{"choice":1}`, "req-1")
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	if msg.From != "launcher" || msg.Kind != host.KindResult || msg.RequestID != "req-1" || string(msg.Payload) != `{"choice":1}` {
		t.Fatalf("message = %+v", msg)
	}

	if _, err := buildMessage("launcher", "shout", "", ""); err == nil {
		t.Fatalf("unknown kind accepted")
	}
	if _, err := buildMessage("launcher", "notify", "not json", ""); err == nil {
		t.Fatalf("invalid payload accepted")
	}
}

func TestWritePaletteTable(t *testing.T) {
	var buf bytes.Buffer
	writePaletteTable(&buf, []host.Status{
		{ID: "launcher", Visible: true, Warm: true, Focused: true, Group: "menus",
			Frame: platform.Rect{X: 10, Y: 20, Width: 300, Height: 200}},
		{ID: "picker", Warm: true, Frozen: true},
		{ID: "cold"},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("table lines = %d:\n%s", len(lines), buf.String())
	}
	want := [][]string{
		{"ID", "STATE", "GROUP", "FRAME"},
		{"launcher", "visible,focused", "menus", "300x200+10+20"},
		{"picker", "hidden,frozen", "-", "-"},
		{"cold", "cold", "-", "-"},
	}
	for i, line := range lines {
		if got := strings.Fields(line); !reflect.DeepEqual(got, want[i]) {
			t.Fatalf("line %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Fatalf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList(" a, b ,,c "); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitList = %v", got)
	}
	if got := splitList(""); got != nil {
		t.Fatalf("splitList(\"\") = %v, want nil", got)
	}
}

func TestJoinIDs(t *testing.T) {
	if got := joinIDs(nil); got != "-" {
		t.Fatalf("joinIDs(nil) = %q", got)
	}
	if got := joinIDs([]platform.WindowID{"a", "b"}); got != "a, b" {
		t.Fatalf("joinIDs = %q", got)
	}
}

func TestRunConfigValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(good, []byte("palettes:\n  launcher:\n    width: 300\n    height: 200\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(bad, []byte("palettes:\n  launcher:\n    anchor: sideways\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	stdout, stderr := os.Stdout, os.Stderr
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open devnull: %v", err)
	}
	defer devnull.Close()
	os.Stdout, os.Stderr = devnull, devnull
	defer func() { os.Stdout, os.Stderr = stdout, stderr }()

	if rc := runConfig([]string{"validate", "--path", good}); rc != 0 {
		t.Fatalf("validate good rc=%d, want 0", rc)
	}
	if rc := runConfig([]string{"validate", "--path", bad}); rc != 1 {
		t.Fatalf("validate bad rc=%d, want 1", rc)
	}
	if rc := runConfig([]string{"print", "--defaults"}); rc != 0 {
		t.Fatalf("print defaults rc=%d, want 0", rc)
	}
	if rc := runConfig([]string{"explain", "--path", good, "palettes.launcher.width"}); rc != 0 {
		t.Fatalf("explain rc=%d, want 0", rc)
	}
	if rc := runConfig([]string{"explain", "--path", good, "palettes.nope"}); rc != 1 {
		t.Fatalf("explain unknown path rc=%d, want 1", rc)
	}
	if rc := runConfig([]string{"explode"}); rc != 2 {
		t.Fatalf("unknown subcommand rc=%d, want 2", rc)
	}
}
