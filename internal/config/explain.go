package config

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Explain returns the effective value at a dotted config path and where it
// was set. Paths mirror the file layout: "log_level", "input.show_guard_ttl_ms",
// "palettes.<id>" or "palettes.<id>.anchor".
//
// A palette field that no file sets on the palette itself is traced through
// its inherits chain before falling back to the palette defaults.
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, errors.New("no config loaded")
	}
	if path == "" {
		return nil, Source{}, errors.New("path is empty")
	}

	value, err := valueAt(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}
	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}

	parts := strings.SplitN(path, ".", 3)
	if len(parts) == 3 && parts[0] == "palettes" {
		return value, inheritedSource(res, parts[1], parts[2]), nil
	}
	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

// inheritedSource walks the parents of palette id looking for a file that set
// field. Effective configs are cycle-free, but the walk is bounded anyway.
func inheritedSource(res *LoadResult, id, field string) Source {
	for i := 0; i <= len(res.Config.Palettes); i++ {
		p, ok := res.Config.Palettes[id]
		if !ok || p.Inherits == "" || field == "hotkey" {
			break
		}
		id = p.Inherits
		if src, ok := res.Sources["palettes."+id+"."+field]; ok {
			return src
		}
	}
	return Source{Kind: SourceDefault, Name: "palette defaults"}
}

// valueAt round-trips cfg through YAML so lookups use the file's key names.
func valueAt(cfg *Config, path string) (any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var node any
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	for _, key := range strings.Split(path, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		if node, ok = m[key]; !ok {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
	}
	return node, nil
}
