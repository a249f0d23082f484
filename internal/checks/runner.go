// Package checks runs the configured static-analysis and test tools inside
// the hub and parses their output into structured findings. A missing tool
// is a soft skip with a warning, never a pipeline failure.
package checks

import (
	"context"
	"strings"
	"time"

	"github.com/lucasnoah/commitly/internal/config"
	"github.com/lucasnoah/commitly/internal/execx"
)

// Finding represents a single lint/type/test finding.
type Finding struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Rule     string `json:"rule,omitempty"`
}

// Result holds the structured output of one check run.
type Result struct {
	Name       string    `json:"name"`
	Passed     bool      `json:"passed"`
	Skipped    bool      `json:"skipped,omitempty"`
	ExitCode   int       `json:"exit_code"`
	DurationMS int64     `json:"duration_ms"`
	Summary    string    `json:"summary"`
	Findings   []Finding `json:"findings,omitempty"`
	Output     string    `json:"output,omitempty"`
}

// Runner executes checks and parses their output.
type Runner struct {
	cmd     execx.Runner
	parsers map[string]Parser
}

// NewRunner creates a Runner with the built-in parser set.
func NewRunner(cmd execx.Runner) *Runner {
	r := &Runner{
		cmd:     cmd,
		parsers: make(map[string]Parser),
	}
	r.parsers["ruff"] = &RuffParser{}
	r.parsers["mypy"] = &MypyParser{}
	r.parsers["pytest"] = &PytestParser{}
	r.parsers["generic"] = &GenericParser{}
	return r
}

// Run executes a single check in the given directory. A command that cannot
// be started (missing binary) comes back skipped and passing.
func (r *Runner) Run(ctx context.Context, dir, name string, cfg config.Check, env map[string]string) (*Result, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	res, err := r.cmd.Run(ctx, execx.Spec{
		Command: cfg.Command,
		Dir:     dir,
		Env:     env,
		Timeout: timeout,
	})
	if err != nil {
		if strings.Contains(err.Error(), "executable file not found") {
			return &Result{
				Name:    name,
				Passed:  true,
				Skipped: true,
				Summary: "tool not found, skipped",
			}, nil
		}
		return nil, err
	}

	parser := r.parsers[cfg.Parser]
	if parser == nil {
		parser = r.parsers["generic"]
	}
	summary, findings := parser.Parse(res.Stdout, res.Stderr, res.ExitCode)

	return &Result{
		Name:       name,
		Passed:     res.ExitCode == 0 && !res.TimedOut,
		ExitCode:   res.ExitCode,
		DurationMS: res.Duration.Milliseconds(),
		Summary:    summary,
		Findings:   findings,
		Output:     res.Output(),
	}, nil
}
