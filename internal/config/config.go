// Package config loads the CLI host's own configuration: where to write
// trace files, where to look for .ska modules, and where to send log
// output. It has no bearing on the engine itself, which takes no
// configuration and no logger (spec §9/§11).
package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// Config captures the skald CLI host's tunable settings.
type Config struct {
	Trace  TraceConfig  `yaml:"trace"`
	Module ModuleConfig `yaml:"module"`
	Log    LogConfig    `yaml:"log"`
}

// TraceConfig controls internal/trace.Recorder.
type TraceConfig struct {
	// Dir is the directory trace files are written to.
	Dir string `yaml:"dir"`
	// Enable controls whether the host records a trace at all.
	Enable bool `yaml:"enable"`
}

// ModuleConfig controls how the host resolves GoModule transitions
// (spec §4.6 Response.GoModule) to files on disk.
type ModuleConfig struct {
	// SearchPaths are directories searched, in order, for a GoModule
	// response's ModulePath.
	SearchPaths []string `yaml:"search_paths"`
}

// LogConfig controls the host's own lifecycle logging, separate from
// trace recording.
type LogConfig struct {
	// File redirects log output from stderr to a file when set.
	File string `yaml:"file"`
}

// DefaultConfig provides reasonable defaults for running skald locally.
func DefaultConfig() Config {
	return Config{
		Trace: TraceConfig{
			Dir:    "traces",
			Enable: true,
		},
		Module: ModuleConfig{
			SearchPaths: []string{"."},
		},
		Log: LogConfig{
			File: "",
		},
	}
}

// Load reads YAML config from path and overlays it onto DefaultConfig.
// An empty path is valid and returns the defaults unchanged, so the CLI
// can run with no --config flag at all.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate ensures the config is usable as-is, with no further defaulting
// needed downstream.
func (c *Config) Validate() error {
	if c.Trace.Enable && c.Trace.Dir == "" {
		return errors.New("trace.dir is required when trace.enable is true")
	}
	if len(c.Module.SearchPaths) == 0 {
		return errors.New("module.search_paths must contain at least one entry")
	}
	return nil
}
