package daemon

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/1broseidon/palettehost/internal/config"
	"github.com/1broseidon/palettehost/internal/palette"
	"github.com/1broseidon/palettehost/internal/platform"
)

// Declarer receives palette declarations.
type Declarer interface {
	Declare(id platform.WindowID, cfg palette.Config)
	Undeclare(id platform.WindowID)
	DeclaredIDs() []platform.WindowID
}

// ConfigSync keeps the host's palette declarations in step with the config
// file.
type ConfigSync struct {
	path   string
	target Declarer
	logger *slog.Logger

	mu       sync.Mutex
	current  *config.Config
	files    []string
	onReload []func(*config.Config)
}

// NewConfigSync creates a synchronizer for path. An empty path means the
// default config location.
func NewConfigSync(path string, target Declarer, logger *slog.Logger) *ConfigSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigSync{path: path, target: target, logger: logger}
}

// OnReload registers fn to run after every successful load.
func (s *ConfigSync) OnReload(fn func(*config.Config)) {
	s.mu.Lock()
	s.onReload = append(s.onReload, fn)
	s.mu.Unlock()
}

// Reload reads the config and applies its palettes. On error the previous
// declarations stay in effect.
func (s *ConfigSync) Reload() error {
	var (
		res *config.LoadResult
		err error
	)
	if s.path == "" {
		res, err = config.LoadWithSources()
	} else {
		res, err = config.LoadFromPath(s.path)
	}
	if err != nil {
		s.logger.Warn("config reload failed", "error", err)
		return fmt.Errorf("load config: %w", err)
	}

	s.mu.Lock()
	s.current = res.Config
	s.files = res.Files
	hooks := append([]func(*config.Config){}, s.onReload...)
	s.mu.Unlock()

	s.apply(res.Config)
	for _, fn := range hooks {
		fn(res.Config)
	}
	return nil
}

func (s *ConfigSync) apply(cfg *config.Config) {
	want := cfg.RuntimePalettes()
	for _, id := range s.target.DeclaredIDs() {
		if _, ok := want[id]; !ok {
			s.logger.Info("palette removed from config", "palette", id)
			s.target.Undeclare(id)
		}
	}
	for id, pc := range want {
		s.target.Declare(id, pc)
	}
	s.logger.Info("config applied", "palettes", len(want))
}

// Config returns the last successfully loaded config, nil before the first
// load.
func (s *ConfigSync) Config() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Files lists the files that made up the last successful load.
func (s *ConfigSync) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files...)
}

// Path returns the config path, resolving the default location.
func (s *ConfigSync) Path() (string, error) {
	if s.path != "" {
		return s.path, nil
	}
	return config.DefaultConfigPath()
}
