package agents

import (
	"context"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/lucasnoah/commitly/internal/checks"
	"github.com/lucasnoah/commitly/internal/execx"
	"github.com/lucasnoah/commitly/internal/hub"
	"github.com/lucasnoah/commitly/internal/pipeline"
)

// refactorCommitMessage is the fixed message for the refactor branch commit.
const refactorCommitMessage = "commitly: improve code quality"

// Refactor asks the language model for a cleaned-up version of every changed
// file, keeping only rewrites the test suite accepts. It never blocks the
// sync gate on its own errors: a failing file is reverted and skipped.
type Refactor struct {
	Hub    *hub.Manager
	Cmd    execx.Runner
	Checks *checks.Runner
}

func (a *Refactor) Name() string { return "refactor" }

// FileResult records what happened to one candidate file.
type FileResult struct {
	File    string `json:"file"`
	Status  string `json:"status"` // refactored | reverted | unchanged
	Summary string `json:"summary,omitempty"`
}

// RefactorData is the refactor agent's structured output.
type RefactorData struct {
	Files      []FileResult `json:"files,omitempty"`
	Refactored int          `json:"refactored"`
	Reverted   int          `json:"reverted"`
}

func (a *Refactor) Execute(ctx context.Context, rc *pipeline.RunContext, log *zap.Logger) (any, error) {
	if err := a.Hub.CreateAgentBranch(rc.TestBranch, rc.BranchFor("refactor")); err != nil {
		return nil, err
	}
	rc.RefactorBranch = rc.BranchFor("refactor")

	data := &RefactorData{}

	client := llmHandle(rc)
	if client == nil {
		log.Warn("no language-model handle; refactor degraded to no-op")
		return data, nil
	}

	files := append([]string(nil), rc.ChangedFiles...)
	sort.Strings(files)

	for _, file := range files {
		if !strings.HasSuffix(file, ".py") {
			continue
		}
		result := a.refactorFile(ctx, rc, client, file, log.With(zap.String("file", file)))
		data.Files = append(data.Files, result)
		switch result.Status {
		case "refactored":
			data.Refactored++
		case "reverted":
			data.Reverted++
		}
	}

	if data.Refactored > 0 {
		if _, err := a.Hub.Hub().CommitAll(refactorCommitMessage); err != nil {
			return nil, pipeline.Wrap(pipeline.KindHubUnavailable, "commit refactor branch", err)
		}
	} else {
		log.Info("nothing refactored; commit skipped")
	}
	return data, nil
}

// refactorFile rewrites one file, formats it, and verifies the test suite.
// A failing test run restores the pre-refactor bytes and marks the file
// reverted; a file that cannot be read, suggested for, or written stays
// unchanged.
func (a *Refactor) refactorFile(ctx context.Context, rc *pipeline.RunContext, client llmClient, file string, log *zap.Logger) FileResult {
	original, err := os.ReadFile(file)
	if err != nil {
		log.Warn("unreadable file skipped", zap.Error(err))
		return FileResult{File: file, Status: "unchanged", Summary: err.Error()}
	}

	suggestion, err := client.SuggestRefactoring(ctx, string(original), file, rc.Config.Refactoring.Rules)
	if err != nil {
		log.Warn("suggestion failed; file skipped", zap.Error(err))
		return FileResult{File: file, Status: "unchanged", Summary: err.Error()}
	}
	if strings.TrimSpace(suggestion) == "" || suggestion == string(original) {
		return FileResult{File: file, Status: "unchanged"}
	}

	if err := os.WriteFile(file, []byte(suggestion), 0o644); err != nil {
		log.Warn("write failed; file skipped", zap.Error(err))
		return FileResult{File: file, Status: "unchanged", Summary: err.Error()}
	}

	a.runFixers(ctx, rc, log)

	result, err := runProfile(ctx, a.Cmd, rc, rc.TestExec)
	if err != nil || result.TimedOut || result.ExitCode != 0 {
		if revertErr := os.WriteFile(file, original, 0o644); revertErr != nil {
			log.Error("revert failed", zap.Error(revertErr))
			return FileResult{File: file, Status: "reverted", Summary: "revert failed: " + revertErr.Error()}
		}
		log.Warn("tests failed after refactor; file reverted")
		return FileResult{File: file, Status: "reverted", Summary: "tests failed after refactor"}
	}

	log.Info("file refactored")
	return FileResult{File: file, Status: "refactored"}
}

// runFixers applies the configured formatter/auto-fix checks over the hub.
// Fixer failures only warn; the test run decides whether the file survives.
func (a *Refactor) runFixers(ctx context.Context, rc *pipeline.RunContext, log *zap.Logger) {
	env, err := commandEnv(rc)
	if err != nil {
		log.Warn("fixer environment unavailable", zap.Error(err))
		return
	}
	for _, name := range sortedCheckNames(rc) {
		cfg := rc.Config.Checks[name]
		if !cfg.Fix {
			continue
		}
		if _, err := a.Checks.Run(ctx, rc.HubPath, name, cfg, env); err != nil {
			log.Warn("fixer failed", zap.String("check", name), zap.Error(err))
		}
	}
}

// llmClient is the slice of the language-model handle the refactor agent
// uses.
type llmClient interface {
	SuggestRefactoring(ctx context.Context, code, filePath, rules string) (string, error)
}
