package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lucasnoah/commitly/internal/config"
	"github.com/lucasnoah/commitly/internal/gitx"
	"github.com/lucasnoah/commitly/internal/pipeline"
)

// BuildRunContext assembles the shared state for a fresh pipeline run from
// the workspace's current git state and the loaded configuration.
func BuildRunContext(cfg *config.Config, workspacePath string, git gitx.Runner, logs pipeline.LoggerFactory, llmClient any) (*pipeline.RunContext, error) {
	ws := gitx.NewRepo(git, workspacePath)

	branch, err := ws.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("detect working branch: %w", err)
	}

	commits, err := userCommits(ws, cfg.Git.Remote, branch)
	if err != nil {
		return nil, err
	}

	envFile := filepath.Join(workspacePath, ".env")
	if _, err := os.Stat(envFile); err != nil {
		envFile = ""
	}

	rc := &pipeline.RunContext{
		RunID:         uuid.NewString(),
		ProjectName:   filepath.Base(workspacePath),
		WorkspacePath: workspacePath,
		EnvFilePath:   envFile,
		RemoteName:    cfg.Git.Remote,
		WorkingBranch: branch,
		UserCommits:   commits,
		Exec: pipeline.ExecutionProfile{
			Command:     cfg.Execution.Command,
			Timeout:     cfg.Execution.Timeout,
			MaxMemory:   cfg.Execution.MaxMemory,
			Interpreter: detectInterpreter(cfg),
		},
		TestExec: pipeline.ExecutionProfile{
			Command: cfg.Test.Command,
			Timeout: cfg.Test.Timeout,
		},
		Outcomes: make(map[string]*pipeline.Outcome),
		Git:      git,
		Logs:     logs,
		Config:   cfg,
		LLM:      llmClient,
	}
	return rc, nil
}

// userCommits lists the commits the working branch carries past the remote
// tip, newest first.
func userCommits(ws *gitx.Repo, remote, branch string) ([]pipeline.CommitInfo, error) {
	lines, err := ws.Log(remote + "/" + branch + "..HEAD")
	if err != nil {
		return nil, fmt.Errorf("list user commits: %w", err)
	}
	var commits []pipeline.CommitInfo
	for _, line := range lines {
		fields := strings.Split(line, "\x1f")
		if len(fields) != 4 {
			continue
		}
		ts, _ := time.Parse(time.RFC3339, fields[3])
		commits = append(commits, pipeline.CommitInfo{
			SHA:       fields[0],
			Message:   fields[1],
			Author:    fields[2],
			Timestamp: ts,
		})
	}
	return commits, nil
}

// detectInterpreter resolves the interpreter binary in priority order:
// execution.python_bin, $COMMITLY_VENV, then plain "python" from PATH.
func detectInterpreter(cfg *config.Config) string {
	if cfg.Execution.PythonBin != "" {
		if _, err := os.Stat(cfg.Execution.PythonBin); err == nil {
			return cfg.Execution.PythonBin
		}
	}
	if venv := os.Getenv("COMMITLY_VENV"); venv != "" {
		candidate := filepath.Join(venv, "bin", "python")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "python"
}
