package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), `
[project]
name = "demo"

[layout]
default_int_width = 32

[build]
jobs = 3
cache = false

[trace]
level = "phase"
output = "trace.log"
`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg, err := Discover(nested)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.Project.Name != "demo" || cfg.Layout.DefaultIntWidth != 32 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Jobs() != 3 || cfg.CacheEnabled() {
		t.Fatalf("build settings: jobs=%d cache=%v", cfg.Jobs(), cfg.CacheEnabled())
	}
	if cfg.Trace.Level != "phase" || cfg.Trace.Output != "trace.log" {
		t.Fatalf("trace settings: %+v", cfg.Trace)
	}
	if cfg.Path != filepath.Join(root, FileName) {
		t.Fatalf("path = %q", cfg.Path)
	}
}

func TestDiscoverDefaults(t *testing.T) {
	cfg, err := Discover(t.TempDir())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.Path != "" && !strings.HasSuffix(cfg.Path, FileName) {
		t.Fatalf("path = %q", cfg.Path)
	}
	def := Default()
	if def.Layout.DefaultIntWidth != 64 || !def.CacheEnabled() || def.Jobs() < 1 {
		t.Fatalf("bad defaults: %+v", def)
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[project\n", "failed to parse TOML"},
		{"unknown key", "[build]\nthreads = 4\n", "unknown keys: build.threads"},
		{"empty name", "[project]\nname = \" \"\n", "[project].name"},
		{"width", "[layout]\ndefault_int_width = 12\n", "default_int_width"},
		{"level", "[trace]\nlevel = \"loud\"\n", "invalid trace level"},
		{"jobs", "[build]\njobs = -1\n", "[build].jobs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			writeFile(t, path, tt.content)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}
