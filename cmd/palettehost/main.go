package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/1broseidon/palettehost/internal/config"
	"github.com/1broseidon/palettehost/internal/host"
	"github.com/1broseidon/palettehost/internal/ipc"
	"github.com/1broseidon/palettehost/internal/platform"
	"github.com/1broseidon/palettehost/internal/position"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "list":
		os.Exit(runList(os.Args[2:]))
	case "show":
		os.Exit(runShow("show", os.Args[2:]))
	case "toggle":
		os.Exit(runShow("toggle", os.Args[2:]))
	case "prompt":
		os.Exit(runShow("prompt", os.Args[2:]))
	case "hide":
		os.Exit(runHide(os.Args[2:]))
	case "hide-all":
		os.Exit(runHideAll(os.Args[2:]))
	case "focus-main":
		os.Exit(runSimple("focus-main", "Return keyboard focus to the host application.", os.Args[2:], func(c *ipc.Client) error {
			return c.FocusMain()
		}))
	case "reload":
		os.Exit(runSimple("reload", "Ask the daemon to reload its configuration.", os.Args[2:], func(c *ipc.Client) error {
			return c.Reload()
		}))
	case "recover":
		os.Exit(runRecover(os.Args[2:]))
	case "send":
		os.Exit(runSend(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: palettehost <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the palette host (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  list                List palettes")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  show <id>           Show a palette")
	fmt.Fprintln(w, "  toggle <id>         Show or hide a palette")
	fmt.Fprintln(w, "  prompt <id>         Show a palette and print its answer")
	fmt.Fprintln(w, "  hide <id>           Hide a palette")
	fmt.Fprintln(w, "  hide-all            Hide every palette")
	fmt.Fprintln(w, "  focus-main          Focus the host application")
	fmt.Fprintln(w, "  send <id> <kind>    Send a message on behalf of a palette")
	fmt.Fprintln(w, "  recover             Reconcile palettes with native windows")
	fmt.Fprintln(w, "  reload              Reload configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'palettehost <command> --help' for command-specific options.")
}

// parseFlags parses args and maps the outcome to an exit code; ok is false
// when the caller should return code.
func parseFlags(fs *flag.FlagSet, args []string) (code int, ok bool) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: palettehost status")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("daemon_running:   %v\n", status.DaemonRunning)
	fmt.Printf("uptime_seconds:   %d\n", status.UptimeSeconds)
	fmt.Printf("palette_count:    %d\n", status.PaletteCount)
	fmt.Printf("visible_count:    %d\n", status.VisibleCount)
	fmt.Printf("focused:          %s\n", status.Focused)
	fmt.Printf("protocol_version: %d\n", status.ProtocolVersion)
	return 0
}

func runList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print JSON (default when stdout is not a terminal)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: palettehost list [--json]")
		fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "list takes no arguments")
		fs.Usage()
		return 2
	}

	palettes, err := ipc.NewClient().ListPalettes()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if *asJSON || !term.IsTerminal(int(os.Stdout.Fd())) {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(palettes); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}
	writePaletteTable(os.Stdout, palettes)
	return 0
}

func writePaletteTable(w io.Writer, palettes []host.Status) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tGROUP\tFRAME")
	for _, p := range palettes {
		frame := "-"
		if p.Frame.Width > 0 && p.Frame.Height > 0 {
			frame = fmt.Sprintf("%dx%d+%d+%d", p.Frame.Width, p.Frame.Height, p.Frame.X, p.Frame.Y)
		}
		group := p.Group
		if group == "" {
			group = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, paletteState(p), group, frame)
	}
	tw.Flush()
}

func paletteState(p host.Status) string {
	var parts []string
	switch {
	case p.Visible:
		parts = append(parts, "visible")
	case p.Warm:
		parts = append(parts, "hidden")
	default:
		parts = append(parts, "cold")
	}
	if p.Focused {
		parts = append(parts, "focused")
	}
	if p.Frozen {
		parts = append(parts, "frozen")
	}
	return strings.Join(parts, ",")
}

// showFlags registers the options shared by show, toggle and prompt.
type showFlags struct {
	args         string
	anchor       string
	x, y         int
	offsetX      int
	offsetY      int
	width        int
	height       int
	noFocus      bool
	keys         string
	clickOutside string
	delayMs      int
	autoHideMs   int
	timeoutMs    int
}

func (f *showFlags) register(fs *flag.FlagSet, prompt bool) {
	fs.StringVar(&f.args, "args", "", "JSON arguments handed to the palette")
	fs.StringVar(&f.anchor, "anchor", "", "Position anchor: cursor, screen, absolute")
	fs.IntVar(&f.x, "x", 0, "Left edge for --anchor absolute (implies it)")
	fs.IntVar(&f.y, "y", 0, "Top edge for --anchor absolute (implies it)")
	fs.IntVar(&f.offsetX, "offset-x", 0, "Horizontal offset from the anchor")
	fs.IntVar(&f.offsetY, "offset-y", 0, "Vertical offset from the anchor")
	fs.IntVar(&f.width, "width", 0, "Override width")
	fs.IntVar(&f.height, "height", 0, "Override height")
	fs.BoolVar(&f.noFocus, "no-focus", false, "Show without taking keyboard focus")
	fs.StringVar(&f.keys, "keys", "", "Comma separated keys to capture (overrides config)")
	fs.StringVar(&f.clickOutside, "click-outside", "", "Click-outside policy: dismiss, passthrough, block, unfocus")
	fs.IntVar(&f.delayMs, "delay-ms", 0, "Wait before showing")
	fs.IntVar(&f.autoHideMs, "auto-hide-ms", 0, "Hide automatically after this long")
	if prompt {
		fs.IntVar(&f.timeoutMs, "timeout-ms", 0, "Give up waiting after this long (0 waits forever)")
	}
}

func (f *showFlags) payload(fs *flag.FlagSet, id string) (ipc.ShowPayload, error) {
	p := ipc.ShowPayload{
		ID:           id,
		Anchor:       f.anchor,
		X:            f.x,
		Y:            f.y,
		OffsetX:      f.offsetX,
		OffsetY:      f.offsetY,
		Width:        f.width,
		Height:       f.height,
		ClickOutside: f.clickOutside,
		DelayMs:      f.delayMs,
		AutoHideMs:   f.autoHideMs,
		TimeoutMs:    f.timeoutMs,
	}
	if f.args != "" {
		if !json.Valid([]byte(f.args)) {
			return p, fmt.Errorf("--args is not valid JSON")
		}
		p.Args = json.RawMessage(f.args)
	}

	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	if p.Anchor == "" && (set["x"] || set["y"]) {
		p.Anchor = string(position.AnchorAbsolute)
	}
	if set["no-focus"] {
		focus := !f.noFocus
		p.Focus = &focus
	}
	if set["keys"] {
		p.Keys = splitList(f.keys)
		if p.Keys == nil {
			p.Keys = []string{}
		}
	}

	// Catch bad values before they reach the daemon.
	if _, err := p.Options(); err != nil {
		return p, err
	}
	return p, nil
}

func runShow(cmd string, args []string) int {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var f showFlags
	f.register(fs, cmd == "prompt")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: palettehost %s [options] <id>\n", cmd)
		fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "%s requires exactly one palette id\n", cmd)
		fs.Usage()
		return 2
	}

	p, err := f.payload(fs, fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	client := ipc.NewClient()
	switch cmd {
	case "prompt":
		msg, err := client.ShowAndWait(p)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if len(msg.Payload) > 0 {
			fmt.Println(string(msg.Payload))
		}
		return 0
	case "toggle":
		visible, err := client.Toggle(p)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("visible: %v\n", visible)
		return 0
	default:
		visible, err := client.Show(p)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if !visible {
			fmt.Fprintln(os.Stderr, "palette was not shown")
			return 1
		}
		return 0
	}
}

func runHide(args []string) int {
	fs := flag.NewFlagSet("hide", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	delayMs := fs.Int("delay-ms", 0, "Wait before hiding")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: palettehost hide [--delay-ms N] <id>")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "hide requires exactly one palette id")
		fs.Usage()
		return 2
	}
	if err := ipc.NewClient().Hide(fs.Arg(0), *delayMs); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runHideAll(args []string) int {
	fs := flag.NewFlagSet("hide-all", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	except := fs.String("except", "", "Comma separated palette ids to leave visible")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: palettehost hide-all [--except a,b]")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "hide-all takes no arguments")
		fs.Usage()
		return 2
	}
	if err := ipc.NewClient().HideAll(splitList(*except)...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runSimple(name, help string, args []string, call func(*ipc.Client) error) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: palettehost %s\n\n%s\n", name, help)
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "%s takes no arguments\n", name)
		fs.Usage()
		return 2
	}
	if err := call(ipc.NewClient()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runRecover(args []string) int {
	fs := flag.NewFlagSet("recover", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: palettehost recover")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Sync palettes with surviving native windows and destroy orphans.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "recover takes no arguments")
		fs.Usage()
		return 2
	}

	report, err := ipc.NewClient().Recover()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("synced:    %s\n", joinIDs(report.Synced))
	fmt.Printf("destroyed: %s\n", joinIDs(report.Destroyed))
	return 0
}

func runSend(args []string) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	requestID := fs.String("request-id", "", "Request id being answered")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: palettehost send [--request-id ID] <id> <kind> [JSON]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Kinds: result, cancel, notify, requestHide")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() < 2 || fs.NArg() > 3 {
		fs.Usage()
		return 2
	}

	msg, err := buildMessage(fs.Arg(0), fs.Arg(1), fs.Arg(2), *requestID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err := ipc.NewClient().SendMessage(msg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func buildMessage(id, kind, payload, requestID string) (host.Message, error) {
	k, err := host.ParseMessageKind(kind)
	if err != nil {
		return host.Message{}, err
	}
	msg := host.Message{From: platform.WindowID(id), Kind: k, RequestID: requestID}
	if payload != "" {
		if !json.Valid([]byte(payload)) {
			return host.Message{}, fmt.Errorf("payload is not valid JSON")
		}
		msg.Payload = json.RawMessage(payload)
	}
	return msg, nil
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  palettehost config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  palettehost config print [--path PATH] [--defaults]")
		fmt.Fprintln(os.Stderr, "  palettehost config explain [--path PATH] <yaml.path>")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/palettehost/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if _, err := loadConfig(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/palettehost/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			cfg = res.Config
			for _, f := range res.Files {
				fmt.Printf("# source: %s\n", f)
			}
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		fs := flag.NewFlagSet("explain", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/palettehost/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "Usage: palettehost config explain [--path PATH] <yaml.path>")
			return 2
		}

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		value, src, err := config.Explain(res, fs.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("value: %v\n", value)
		fmt.Printf("source: %s\n", src)
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config command: %s\n", args[0])
		return 2
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func joinIDs(ids []platform.WindowID) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
