package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/lucasnoah/commitly/internal/execx"
	"github.com/lucasnoah/commitly/internal/hub"
	"github.com/lucasnoah/commitly/internal/optimizer"
	"github.com/lucasnoah/commitly/internal/pipeline"
	"github.com/lucasnoah/commitly/internal/sqlscan"
)

// testCommitMessage is the fixed message for the test branch commit.
const testCommitMessage = "commitly: optimize embedded queries"

// candidateCount is how many rewrites the model is asked for per site.
const candidateCount = 3

// Test runs the project test command and optimizes every discovered
// embedded query against the live database.
type Test struct {
	Hub *hub.Manager
	Cmd execx.Runner
	// ConnectDB opens the optimizer's database connection. Nil or failing
	// degrades the subloop to a no-op.
	ConnectDB func(ctx context.Context) (optimizer.Explainer, error)
}

func (a *Test) Name() string { return "test" }

// TestData is the test agent's structured output.
type TestData struct {
	TestExitCode   int                     `json:"test_exit_code"`
	TestDurationMS int64                   `json:"test_duration_ms"`
	Sites          []*optimizer.SiteReport `json:"sites,omitempty"`
	SkipReason     string                  `json:"skip_reason,omitempty"`
}

func (a *Test) Execute(ctx context.Context, rc *pipeline.RunContext, log *zap.Logger) (any, error) {
	if err := a.Hub.CreateAgentBranch(rc.CodeBranch, rc.BranchFor("test")); err != nil {
		return nil, err
	}
	rc.TestBranch = rc.BranchFor("test")

	data := &TestData{}

	result, err := a.runTests(ctx, rc)
	if err != nil {
		return nil, err
	}
	data.TestExitCode = result.ExitCode
	data.TestDurationMS = result.Duration.Milliseconds()
	log.Info("test command passed", zap.Duration("elapsed", result.Duration))

	if rc.HasEmbeddedQueries && len(rc.QuerySites) > 0 {
		sites, skip, err := a.optimize(ctx, rc, log)
		if err != nil {
			return nil, err
		}
		data.Sites = sites
		data.SkipReason = skip
	} else {
		log.Info("no embedded queries; optimizer skipped")
	}

	if _, err := a.Hub.Hub().CommitAll(testCommitMessage); err != nil {
		return nil, pipeline.Wrap(pipeline.KindHubUnavailable, "commit test branch", err)
	}
	return data, nil
}

// runTests executes the project test command; a non-zero exit is terminal.
func (a *Test) runTests(ctx context.Context, rc *pipeline.RunContext) (*execx.Result, error) {
	result, err := runProfile(ctx, a.Cmd, rc, rc.TestExec)
	if err != nil {
		return nil, pipeline.Wrap(pipeline.KindTestFailed, "run test command", err)
	}
	if result.TimedOut {
		return nil, pipeline.Errorf(pipeline.KindTestFailed,
			"test command timed out after %ds", rc.TestExec.Timeout)
	}
	if result.ExitCode != 0 {
		return nil, pipeline.Errorf(pipeline.KindTestFailed,
			"test command exited %d:\n%s", result.ExitCode, truncate(result.Output(), 500))
	}
	return result, nil
}

// optimize walks every discovered site in stable order, measuring candidates
// and rewriting source in place. Per-site failures skip the site; a test
// failure after a replacement reverts the file and aborts the pipeline.
func (a *Test) optimize(ctx context.Context, rc *pipeline.RunContext, log *zap.Logger) ([]*optimizer.SiteReport, string, error) {
	client := llmHandle(rc)
	if client == nil {
		log.Warn("no language-model handle; optimizer degraded to no-op")
		return nil, "llm unavailable", nil
	}
	if a.ConnectDB == nil || !rc.Config.OptimizerEnabled() {
		log.Warn("no optimizer database configured; optimizer degraded to no-op")
		return nil, "database not configured", nil
	}
	ex, err := a.ConnectDB(ctx)
	if err != nil {
		log.Warn("optimizer database unavailable; degraded to no-op", zap.Error(err))
		return nil, "database unavailable", nil
	}
	defer ex.Close(ctx)

	var reports []*optimizer.SiteReport
	for i := range rc.QuerySites {
		site := &rc.QuerySites[i]
		siteLog := log.With(
			zap.String("file", site.FilePath),
			zap.Int("line", site.LineStart),
		)

		schema := optimizer.SchemaBrief(ctx, ex, site.Tables)
		candidates, err := client.SuggestQueries(ctx, schema, site.Query, site.Dialect, candidateCount)
		if err != nil || len(candidates) == 0 {
			siteLog.Warn("no candidates generated; site skipped", zap.Error(err))
			continue
		}

		report, err := optimizer.Evaluate(ctx, ex, site.Query, candidates)
		if err != nil {
			siteLog.Warn("baseline measurement failed; site skipped", zap.Error(err))
			continue
		}
		report.FilePath = site.FilePath
		report.Symbol = site.Symbol
		report.LineStart = site.LineStart
		report.LineEnd = site.LineEnd
		reports = append(reports, report)

		if !report.Improved {
			siteLog.Info("no improvement; original kept",
				zap.Float64("original_cost", report.OriginalCost))
			continue
		}

		if err := a.applySite(ctx, rc, site, report, siteLog); err != nil {
			return reports, "", err
		}
	}
	return reports, "", nil
}

// applySite splices the chosen query into the file, reindexes later sites,
// and verifies the test suite still passes. A failing verification reverts
// the file and is terminal.
func (a *Test) applySite(ctx context.Context, rc *pipeline.RunContext, site *pipeline.QuerySite, report *optimizer.SiteReport, log *zap.Logger) error {
	endBefore := site.LineEnd
	repl, err := sqlscan.Replace(site, report.ChosenQuery)
	if err != nil {
		return err
	}
	sqlscan.ShiftAfter(rc.QuerySites, site.FilePath, endBefore, repl.Delta)
	log.Info("query replaced",
		zap.Float64("original_cost", report.OriginalCost),
		zap.Float64("chosen_cost", report.ChosenCost),
		zap.Float64("improvement_rate", report.ImprovementRate),
	)

	result, err := runProfile(ctx, a.Cmd, rc, rc.TestExec)
	if err == nil && !result.TimedOut && result.ExitCode == 0 {
		return nil
	}

	if revertErr := repl.Revert(site.FilePath); revertErr != nil {
		return pipeline.Wrap(pipeline.KindInternalInvariantViolated,
			"revert after failed verification", revertErr)
	}
	log.Error("tests failed after replacement; file reverted")
	detail := "test command failed after query replacement"
	if err != nil {
		return pipeline.Wrap(pipeline.KindTestFailed, detail, err)
	}
	return pipeline.Errorf(pipeline.KindTestFailed, "%s (exit %d):\n%s",
		detail, result.ExitCode, truncate(result.Output(), 500))
}
