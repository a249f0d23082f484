package agents

import (
	"context"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/lucasnoah/commitly/internal/checks"
	"github.com/lucasnoah/commitly/internal/execx"
	"github.com/lucasnoah/commitly/internal/hub"
	"github.com/lucasnoah/commitly/internal/pipeline"
	"github.com/lucasnoah/commitly/internal/sqlscan"
)

// codeCommitMessage is the fixed message for the code branch commit.
const codeCommitMessage = "commitly: validate snapshot"

// Code validates the snapshot syntactically and at runtime, and mines the
// changed files for embedded SQL sites.
type Code struct {
	Hub    *hub.Manager
	Cmd    execx.Runner
	Checks *checks.Runner
}

func (a *Code) Name() string { return "code" }

// CodeData is the code agent's structured output.
type CodeData struct {
	StaticChecks []*checks.Result     `json:"static_checks,omitempty"`
	ExitCode     int                  `json:"exit_code"`
	DurationMS   int64                `json:"duration_ms"`
	HasQueries   bool                 `json:"has_queries"`
	QuerySites   []pipeline.QuerySite `json:"query_sites,omitempty"`
	Warnings     []string             `json:"warnings,omitempty"`
}

func (a *Code) Execute(ctx context.Context, rc *pipeline.RunContext, log *zap.Logger) (any, error) {
	if err := a.Hub.CreateAgentBranch(rc.CloneBranch, rc.BranchFor("code")); err != nil {
		return nil, err
	}
	rc.CodeBranch = rc.BranchFor("code")

	data := &CodeData{}

	if err := a.verifyEnvironment(rc); err != nil {
		return nil, err
	}

	data.StaticChecks, data.Warnings = a.runStaticChecks(ctx, rc, log)

	result, err := runProfile(ctx, a.Cmd, rc, rc.Exec)
	if err != nil {
		return nil, pipeline.Wrap(pipeline.KindRuntimeFailed, "run primary command", err)
	}
	data.ExitCode = result.ExitCode
	data.DurationMS = result.Duration.Milliseconds()
	if result.TimedOut {
		return nil, pipeline.Errorf(pipeline.KindRuntimeFailed,
			"primary command timed out after %ds", rc.Exec.Timeout)
	}
	if result.ExitCode != 0 {
		return nil, pipeline.Errorf(pipeline.KindRuntimeFailed,
			"primary command exited %d:\n%s", result.ExitCode, truncate(result.Output(), 500))
	}
	log.Info("primary command passed", zap.Duration("elapsed", result.Duration))

	hasQueries, sites, err := sqlscan.ScanFiles(rc.ChangedFiles, rc.Config.Database.Dialect)
	if err != nil {
		// extraction failure is a soft skip
		log.Warn("query extraction failed", zap.Error(err))
		hasQueries, sites = false, nil
	}
	rc.HasEmbeddedQueries = hasQueries
	rc.QuerySites = sites
	data.HasQueries = hasQueries
	data.QuerySites = sites
	log.Info("query extraction finished", zap.Int("sites", len(sites)))

	if _, err := a.Hub.Hub().CommitAll(codeCommitMessage); err != nil {
		return nil, pipeline.Wrap(pipeline.KindHubUnavailable, "commit code branch", err)
	}
	return data, nil
}

// verifyEnvironment checks the interpreter and env file before anything runs.
func (a *Code) verifyEnvironment(rc *pipeline.RunContext) error {
	if rc.Exec.Interpreter != "" {
		if _, err := os.Stat(rc.Exec.Interpreter); err != nil {
			if _, lookErr := exec.LookPath(rc.Exec.Interpreter); lookErr != nil {
				return pipeline.Errorf(pipeline.KindEnvironmentBlocked,
					"interpreter %s not found", rc.Exec.Interpreter)
			}
		}
	}
	if _, err := execx.LoadEnvFile(rc.EnvFilePath); err != nil {
		return pipeline.Wrap(pipeline.KindEnvironmentBlocked, "env file unreadable", err)
	}
	return nil
}

// runStaticChecks invokes the configured linters and type checkers. Failures
// are warnings in the outcome, never pipeline failures; missing tools skip.
func (a *Code) runStaticChecks(ctx context.Context, rc *pipeline.RunContext, log *zap.Logger) ([]*checks.Result, []string) {
	var results []*checks.Result
	var warnings []string
	env, err := commandEnv(rc)
	if err != nil {
		return nil, []string{err.Error()}
	}
	for _, name := range sortedCheckNames(rc) {
		cfg := rc.Config.Checks[name]
		if cfg.Fix {
			continue // fixers belong to the refactor agent
		}
		result, err := a.Checks.Run(ctx, rc.HubPath, name, cfg, env)
		if err != nil {
			warnings = append(warnings, name+": "+err.Error())
			continue
		}
		results = append(results, result)
		switch {
		case result.Skipped:
			log.Warn("static check skipped", zap.String("check", name), zap.String("summary", result.Summary))
		case !result.Passed:
			warnings = append(warnings, name+": "+result.Summary)
			log.Warn("static check failed", zap.String("check", name), zap.String("summary", result.Summary))
		default:
			log.Info("static check passed", zap.String("check", name))
		}
	}
	return results, warnings
}
