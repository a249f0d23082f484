package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file commitly looks for at the repo root.
const DefaultFileName = "commitly.yaml"

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses a commitly configuration from the given YAML file path.
// ${NAME} references anywhere in the file are expanded from the process
// environment before parsing; unset variables expand to the empty string.
// After parsing, defaults are applied to fields the file doesn't set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = expandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a config in standard locations relative to the
// workspace and loads the first one found. Search order:
// .commitly/config.yaml (override), then commitly.yaml at the root.
func LoadDefault(workspace string) (*Config, error) {
	candidates := []string{
		filepath.Join(workspace, ".commitly", "config.yaml"),
		filepath.Join(workspace, DefaultFileName),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return nil, fmt.Errorf("no commitly config found (searched: %v)", candidates)
}

// expandEnv replaces ${NAME} references with values from the process environment.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envRef.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// applyDefaults fills in values the config file doesn't set.
func applyDefaults(cfg *Config) {
	if cfg.Git.Remote == "" {
		cfg.Git.Remote = "origin"
	}
	if cfg.Execution.Timeout <= 0 {
		cfg.Execution.Timeout = 300
	}
	if cfg.Test.Timeout <= 0 {
		cfg.Test.Timeout = 300
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.Dialect == "" {
		cfg.Database.Dialect = "postgresql"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.Notify.WindowDays <= 0 {
		cfg.Notify.WindowDays = 7
	}
	if cfg.Report.Format == "" {
		cfg.Report.Format = "md"
	}
}
