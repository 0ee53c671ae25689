// Package config loads monoc.toml, the per-project settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"monoc/internal/trace"
)

// FileName is the name searched for when no explicit path is given.
const FileName = "monoc.toml"

// Config is the decoded monoc.toml. Zero values mean "use the default".
type Config struct {
	Project ProjectConfig `toml:"project"`
	Layout  LayoutConfig  `toml:"layout"`
	Build   BuildConfig   `toml:"build"`
	Trace   TraceConfig   `toml:"trace"`

	// Path is the file the config was read from, empty for defaults.
	Path string `toml:"-"`
}

type ProjectConfig struct {
	Name string `toml:"name"`
}

type LayoutConfig struct {
	// DefaultIntWidth is the bit width unresolved number variables get.
	DefaultIntWidth uint8 `toml:"default_int_width"`
}

type BuildConfig struct {
	Jobs  int   `toml:"jobs"`
	Cache *bool `toml:"cache"`
}

type TraceConfig struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
}

// Default returns the settings used when no monoc.toml exists.
func Default() Config {
	return Config{
		Layout: LayoutConfig{DefaultIntWidth: 64},
		Trace:  TraceConfig{Level: "off", Output: "stderr"},
	}
}

// Jobs returns the configured worker count, or the number of CPUs.
func (c *Config) Jobs() int {
	if c.Build.Jobs > 0 {
		return c.Build.Jobs
	}
	return runtime.NumCPU()
}

// CacheEnabled reports whether the result cache is on. It defaults to true.
func (c *Config) CacheEnabled() bool {
	return c.Build.Cache == nil || *c.Build.Cache
}

// Find walks up from startDir looking for monoc.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the monoc.toml governing startDir, or the defaults when
// there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Load decodes the file at path over the defaults and validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("project") && strings.TrimSpace(cfg.Project.Name) == "" {
		return Config{}, fmt.Errorf("%s: [project].name must not be empty", path)
	}
	switch cfg.Layout.DefaultIntWidth {
	case 8, 16, 32, 64:
	default:
		return Config{}, fmt.Errorf("%s: [layout].default_int_width must be 8, 16, 32 or 64, got %d", path, cfg.Layout.DefaultIntWidth)
	}
	if _, err := trace.ParseLevel(cfg.Trace.Level); err != nil {
		return Config{}, fmt.Errorf("%s: [trace].level: %w", path, err)
	}
	if cfg.Build.Jobs < 0 {
		return Config{}, fmt.Errorf("%s: [build].jobs must not be negative", path)
	}
	cfg.Path = path
	return cfg, nil
}
