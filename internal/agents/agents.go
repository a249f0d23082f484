// Package agents implements the seven pipeline agents: clone, code, test,
// refactor, sync, notify, and report. Each one follows the agent contract
// and mutates the hub only through the git gateway.
package agents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lucasnoah/commitly/internal/execx"
	"github.com/lucasnoah/commitly/internal/llm"
	"github.com/lucasnoah/commitly/internal/pipeline"
)

// llmHandle pulls the typed language-model client out of the run context.
// Returns nil when no handle is attached.
func llmHandle(rc *pipeline.RunContext) llm.Client {
	if rc.LLM == nil {
		return nil
	}
	client, ok := rc.LLM.(llm.Client)
	if !ok {
		return nil
	}
	return client
}

// commandEnv builds the subprocess environment for hub commands: the .env
// file contents plus the interpreter directory prepended to PATH.
func commandEnv(rc *pipeline.RunContext) (map[string]string, error) {
	env, err := execx.LoadEnvFile(rc.EnvFilePath)
	if err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	if rc.Exec.Interpreter != "" {
		dir := filepath.Dir(rc.Exec.Interpreter)
		env["PATH"] = dir + string(os.PathListSeparator) + os.Getenv("PATH")
	}
	return env, nil
}

// runProfile executes one of the project's configured commands inside the hub.
func runProfile(ctx context.Context, cmd execx.Runner, rc *pipeline.RunContext, profile pipeline.ExecutionProfile) (*execx.Result, error) {
	env, err := commandEnv(rc)
	if err != nil {
		return nil, err
	}
	return cmd.Run(ctx, execx.Spec{
		Command: profile.Command,
		Dir:     rc.HubPath,
		Env:     env,
		Timeout: time.Duration(profile.Timeout) * time.Second,
	})
}

// truncate caps an error excerpt the way run summaries want it.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n... (truncated)"
}
