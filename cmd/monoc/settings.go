package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"monoc/internal/buildpipeline"
	"monoc/internal/config"
	"monoc/internal/observ"
)

// settings merges monoc.toml with the global flags; flags win.
type settings struct {
	cfg     config.Config
	jobs    int
	noCache bool
	timings bool
	ui      uiMode
	timer   *observ.Timer
}

func loadSettings(cmd *cobra.Command, bundlePath string) (*settings, error) {
	flags := cmd.Root().PersistentFlags()
	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	var cfg config.Config
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.Discover(filepath.Dir(bundlePath))
	}
	if err != nil {
		return nil, err
	}

	s := &settings{cfg: cfg}
	if s.jobs, err = flags.GetInt("jobs"); err != nil {
		return nil, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if s.jobs <= 0 {
		s.jobs = cfg.Jobs()
	}
	if s.noCache, err = flags.GetBool("no-cache"); err != nil {
		return nil, fmt.Errorf("failed to get no-cache flag: %w", err)
	}
	s.noCache = s.noCache || !cfg.CacheEnabled()
	if s.timings, err = flags.GetBool("timings"); err != nil {
		return nil, fmt.Errorf("failed to get timings flag: %w", err)
	}
	uiValue, err := flags.GetString("ui")
	if err != nil {
		return nil, fmt.Errorf("failed to get ui flag: %w", err)
	}
	if s.ui, err = readUIMode(uiValue); err != nil {
		return nil, err
	}
	if s.timings {
		s.timer = observ.NewTimer()
	}
	return s, nil
}

func (s *settings) compileRequest(bundlePath string) buildpipeline.CompileRequest {
	return buildpipeline.CompileRequest{
		BundlePath:      bundlePath,
		Jobs:            s.jobs,
		DefaultIntWidth: s.cfg.Layout.DefaultIntWidth,
		NoCache:         s.noCache,
		Timer:           s.timer,
	}
}
