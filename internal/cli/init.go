package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/commitly/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold the local state directory and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, err := os.Getwd()
		if err != nil {
			return err
		}
		return runInit(cmd, workspace)
	},
}

func runInit(cmd *cobra.Command, workspace string) error {
	for _, sub := range []string{"cache", "logs", "reports"} {
		dir := filepath.Join(workspace, ".commitly", sub)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	cmd.Println("created .commitly/{cache,logs,reports}")

	if err := updateGitignore(workspace); err != nil {
		return err
	}

	configPath := filepath.Join(workspace, config.DefaultFileName)
	if _, err := os.Stat(configPath); err == nil {
		cmd.Println("using existing " + config.DefaultFileName)
	} else {
		if err := os.WriteFile(configPath, []byte(defaultConfig(workspace)), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", configPath, err)
		}
		cmd.Println("wrote " + config.DefaultFileName + " — review the commands before the first run")
	}

	cmd.Println("\nnext steps:")
	cmd.Println("  1. check execution.command and test.command in " + config.DefaultFileName)
	cmd.Println("  2. put database and API credentials in .env (referenced as ${NAME})")
	cmd.Println("  3. run: commitly commit -m \"your change\"")
	return nil
}

// defaultConfig synthesizes a starter configuration, detecting the
// interpreter and entrypoint where possible.
func defaultConfig(workspace string) string {
	interpreter := "python"
	if path, err := exec.LookPath("python3"); err == nil {
		interpreter = path
	}
	entrypoint := "main.py"
	for _, candidate := range []string{"main.py", "app.py", "run.py"} {
		if _, err := os.Stat(filepath.Join(workspace, candidate)); err == nil {
			entrypoint = candidate
			break
		}
	}

	return fmt.Sprintf(`git:
  remote: origin

execution:
  command: "python %s"
  timeout: 300
  python_bin: %s

test:
  command: "pytest -q"
  timeout: 300

checks:
  lint:
    command: "ruff check ."
    parser: ruff
  typecheck:
    command: "mypy ."
    parser: mypy
  format:
    command: "ruff check --fix ."
    parser: ruff
    fix: true

database:
  host: ""
  port: 5432
  user: ${COMMITLY_DB_USER}
  password: ${COMMITLY_DB_PASSWORD}
  dbname: ""
  dialect: postgresql

llm:
  enabled: false
  model: gpt-4o-mini
  api_key: ${OPENAI_API_KEY}

pipeline:
  cleanup_hub_on_failure: false

notify:
  enabled: false
  channel: ""
  token: ${SLACK_BOT_TOKEN}
  window_days: 7

report:
  format: md
`, entrypoint, interpreter)
}

// updateGitignore appends the commitly block once.
func updateGitignore(workspace string) error {
	path := filepath.Join(workspace, ".gitignore")
	existing, _ := os.ReadFile(path)
	if strings.Contains(string(existing), "# commitly") {
		return nil
	}
	block := "\n# commitly\n.commitly/cache/\n.commitly/logs/\n.commitly/audit.db*\n.commitly/pipeline.lock\n.env\n"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open .gitignore: %w", err)
	}
	defer f.Close()
	_, err = f.WriteString(block)
	return err
}
