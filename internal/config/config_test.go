package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validConfig = `
git:
  remote: upstream

execution:
  command: "python main.py"
  timeout: 120
  python_bin: /usr/bin/python3

test:
  command: "pytest -q"

database:
  host: localhost
  user: app
  password: ${COMMITLY_TEST_DB_PASSWORD}
  dbname: appdb

llm:
  enabled: true
  api_key: ${COMMITLY_TEST_API_KEY}

checks:
  lint:
    command: "ruff check ."
    parser: ruff
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "commitly.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv("COMMITLY_TEST_DB_PASSWORD", "s3cret")
	t.Setenv("COMMITLY_TEST_API_KEY", "key-123")

	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Git.Remote != "upstream" {
		t.Errorf("expected remote upstream, got %q", cfg.Git.Remote)
	}
	if cfg.Execution.Command != "python main.py" {
		t.Errorf("unexpected execution command %q", cfg.Execution.Command)
	}
	if cfg.Execution.Timeout != 120 {
		t.Errorf("expected timeout 120, got %d", cfg.Execution.Timeout)
	}
	if cfg.Database.Password != "s3cret" {
		t.Errorf("env reference not expanded, got %q", cfg.Database.Password)
	}
	if cfg.LLM.APIKey != "key-123" {
		t.Errorf("env reference not expanded, got %q", cfg.LLM.APIKey)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "execution:\n  command: \"python main.py\"\ntest:\n  command: \"pytest\"\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Git.Remote != "origin" {
		t.Errorf("expected default remote origin, got %q", cfg.Git.Remote)
	}
	if cfg.Execution.Timeout != 300 || cfg.Test.Timeout != 300 {
		t.Errorf("expected default timeouts 300, got %d/%d", cfg.Execution.Timeout, cfg.Test.Timeout)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("expected default port 5432, got %d", cfg.Database.Port)
	}
	if cfg.Database.Dialect != "postgresql" {
		t.Errorf("expected default dialect postgresql, got %q", cfg.Database.Dialect)
	}
	if cfg.Report.Format != "md" {
		t.Errorf("expected default format md, got %q", cfg.Report.Format)
	}
}

func TestLoad_UnsetEnvExpandsEmpty(t *testing.T) {
	cfg, err := Load(writeConfig(t, "execution:\n  command: ${COMMITLY_TEST_UNSET_VAR}\ntest:\n  command: pytest\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Execution.Command != "" {
		t.Errorf("expected empty expansion, got %q", cfg.Execution.Command)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing execution command",
			mutate:  func(c *Config) { c.Execution.Command = "" },
			wantErr: "execution.command is required",
		},
		{
			name:    "missing test command",
			mutate:  func(c *Config) { c.Test.Command = "" },
			wantErr: "test.command is required",
		},
		{
			name:    "llm enabled without key",
			mutate:  func(c *Config) { c.LLM.Enabled = true; c.LLM.APIKey = "" },
			wantErr: "llm.api_key is required",
		},
		{
			name:    "database host without dbname",
			mutate:  func(c *Config) { c.Database.Host = "db"; c.Database.DBName = "" },
			wantErr: "database.dbname is required",
		},
		{
			name:    "bad report format",
			mutate:  func(c *Config) { c.Report.Format = "docx" },
			wantErr: "report.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Execution: ExecutionConfig{Command: "python main.py"},
				Test:      TestConfig{Command: "pytest"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestOptimizerEnabled(t *testing.T) {
	cfg := &Config{}
	if cfg.OptimizerEnabled() {
		t.Error("optimizer should be disabled without a database")
	}
	cfg.Database.Host = "localhost"
	cfg.Database.DBName = "appdb"
	if !cfg.OptimizerEnabled() {
		t.Error("optimizer should be enabled with host and dbname")
	}
}
