package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigEnv overrides the default config file location.
const ConfigEnv = "PALETTEHOST_CONFIG"

// SourceKind says whether a value came from a file or from defaults.
type SourceKind string

// Source kinds.
const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
)

// Source records where a config value came from.
type Source struct {
	Kind   SourceKind
	Name   string // set for defaults
	File   string
	Line   int
	Column int
}

func (s Source) String() string {
	if s.Kind == SourceFile {
		return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
	}
	return s.Name
}

func nodeSource(file string, n *yaml.Node) Source {
	return Source{Kind: SourceFile, File: file, Line: n.Line, Column: n.Column}
}

type LoadResult struct {
	Config  *Config
	Sources map[string]Source // dotted YAML path -> file that set it last
	Files   []string          // every file read, includes before includers
}

// DefaultConfigPath honours $PALETTEHOST_CONFIG, then $XDG_CONFIG_HOME, then
// ~/.config.
func DefaultConfigPath() (string, error) {
	if p := os.Getenv(ConfigEnv); p != "" {
		return p, nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "palettehost", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "palettehost", "config.yaml"), nil
}

// Load returns the effective config from the default location.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadWithSources is Load plus per-key provenance.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads path and its includes. A missing file yields the defaults.
func LoadFromPath(path string) (*LoadResult, error) {
	l := newLoader()
	if _, err := os.Stat(path); err == nil {
		if err := l.load(path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg, err := BuildEffectiveConfig(l.raw)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return nil, attachSourceContext(err, l.sources)
	}
	return &LoadResult{Config: cfg, Sources: l.sources, Files: l.files}, nil
}

// loader merges a config file tree depth-first. Included files are applied
// before the file that includes them, so the includer wins.
type loader struct {
	raw     RawConfig
	sources map[string]Source
	files   []string

	done  map[string]bool
	chain []string
}

func newLoader() *loader {
	return &loader{sources: map[string]Source{}, done: map[string]bool{}}
}

func (l *loader) load(path string) error {
	file := canonicalPath(path)
	if i := indexOf(l.chain, file); i >= 0 {
		cycle := append(append([]string{}, l.chain[i:]...), file)
		return fmt.Errorf("include cycle detected: %s", strings.Join(cycle, " -> "))
	}
	if l.done[file] {
		return nil
	}
	l.done[file] = true

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("%s: failed to read: %w", file, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%s: failed to parse yaml: %w", file, err)
	}
	var raw RawConfig
	if err := decodeStrict(data, &raw); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	root := documentRoot(&doc)

	l.chain = append(l.chain, file)
	for _, inc := range includeNodes(root) {
		targets, err := resolveInclude(file, inc.Value)
		if err != nil {
			src := nodeSource(file, inc)
			return fmt.Errorf("%s: include %q: %w", src, inc.Value, err)
		}
		for _, t := range targets {
			if err := l.load(t); err != nil {
				return err
			}
		}
	}
	l.chain = l.chain[:len(l.chain)-1]

	l.raw = l.raw.merge(raw)
	recordSources(root, file, "", l.sources)
	l.files = append(l.files, file)
	return nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// canonicalPath resolves symlinks when it can; cycle detection keys on it.
func canonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

// resolveInclude turns an include entry into the files it names. A directory
// expands to its *.yaml and *.yml files in lexical order.
func resolveInclude(from, include string) ([]string, error) {
	if include == "" {
		return nil, errors.New("path is empty")
	}
	target, err := expandHome(include)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(from), target)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{target}, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			out = append(out, filepath.Join(target, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(p[1:], "/")), nil
}

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}
	return doc
}

// mappingValue returns the value node for key in a mapping node.
func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// includeNodes accepts "include: path" as well as a list of paths.
func includeNodes(root *yaml.Node) []*yaml.Node {
	v := mappingValue(root, "include")
	if v == nil {
		return nil
	}
	switch v.Kind {
	case yaml.ScalarNode:
		return []*yaml.Node{v}
	case yaml.SequenceNode:
		var out []*yaml.Node
		for _, item := range v.Content {
			if item.Kind == yaml.ScalarNode {
				out = append(out, item)
			}
		}
		return out
	}
	return nil
}

// recordSources maps every dotted key path under n to its position in file.
// Sequences are recorded as a whole.
func recordSources(n *yaml.Node, file, prefix string, out map[string]Source) {
	if n == nil {
		return
	}
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i].Value, n.Content[i+1]
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			out[path] = nodeSource(file, val)
			recordSources(val, file, path, out)
		}
	case yaml.SequenceNode:
		if prefix != "" {
			out[prefix] = nodeSource(file, n)
		}
	}
}

// attachSourceContext points a validation error at the file position that
// produced the offending value.
func attachSourceContext(err error, sources map[string]Source) error {
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Path == "" {
		return err
	}
	if src, ok := sources[verr.Path]; ok {
		verr.Source = src
	}
	return err
}
