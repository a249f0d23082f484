package agents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/lucasnoah/commitly/internal/config"
	"github.com/lucasnoah/commitly/internal/execx"
	"github.com/lucasnoah/commitly/internal/optimizer"
	"github.com/lucasnoah/commitly/internal/pipeline"
	"github.com/lucasnoah/commitly/internal/sqlscan"
)

// fakeCmd replays scripted results for each Run call.
type fakeCmd struct {
	results []*execx.Result
	idx     int
	calls   []execx.Spec
}

func (f *fakeCmd) Run(_ context.Context, spec execx.Spec) (*execx.Result, error) {
	f.calls = append(f.calls, spec)
	if f.idx >= len(f.results) {
		return &execx.Result{ExitCode: 0}, nil
	}
	r := f.results[f.idx]
	f.idx++
	return r, nil
}

// fakeLLM answers SuggestQueries with fixed candidates.
type fakeLLM struct {
	candidates []string
	refactored string
	err        error
}

func (f *fakeLLM) Complete(context.Context, string, string) (string, error) {
	return "", f.err
}

func (f *fakeLLM) SuggestRefactoring(context.Context, string, string, string) (string, error) {
	return f.refactored, f.err
}

func (f *fakeLLM) SuggestQueries(context.Context, string, string, string, int) ([]string, error) {
	return f.candidates, f.err
}

// fakeExplainer maps query text to plans.
type fakeExplainer struct {
	plans map[string]*optimizer.Plan
}

func (f *fakeExplainer) Explain(_ context.Context, query string) (*optimizer.Plan, error) {
	plan, ok := f.plans[query]
	if !ok {
		return nil, fmt.Errorf("cannot plan %q", query)
	}
	return plan, nil
}

func (f *fakeExplainer) TableSchema(_ context.Context, table string) (string, error) {
	return "CREATE TABLE " + table + " (id integer);", nil
}

func (f *fakeExplainer) Close(context.Context) error { return nil }

// newSiteContext writes a python file with one embedded query and builds a
// run context around it.
func newSiteContext(t *testing.T) (*pipeline.RunContext, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "repo.py")
	content := "def active(conn):\n    q = \"SELECT * FROM users WHERE status='active'\"\n    return conn.execute(q)\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	sites, err := sqlscan.ScanFile(path, "postgresql")
	if err != nil || len(sites) != 1 {
		t.Fatalf("scan: %v (%d sites)", err, len(sites))
	}

	rc := &pipeline.RunContext{
		RunID:              "r1",
		WorkspacePath:      dir,
		HubPath:            dir,
		HasEmbeddedQueries: true,
		QuerySites:         sites,
		TestExec:           pipeline.ExecutionProfile{Command: "pytest -q", Timeout: 60},
		Config: &config.Config{
			Database: config.DatabaseConfig{Host: "localhost", DBName: "appdb"},
		},
	}
	return rc, path
}

func TestOptimize_ReplacesImprovedQuery(t *testing.T) {
	rc, path := newSiteContext(t)
	original := rc.QuerySites[0].Query
	chosen := "SELECT id, status FROM users WHERE status='active'"

	rc.LLM = &fakeLLM{candidates: []string{chosen, "SELECT 2"}}
	cmd := &fakeCmd{results: []*execx.Result{{ExitCode: 0}}} // post-replacement verification
	a := &Test{
		Cmd: cmd,
		ConnectDB: func(context.Context) (optimizer.Explainer, error) {
			return &fakeExplainer{plans: map[string]*optimizer.Plan{
				original:   {TotalCost: 37.8, TimeMS: 4},
				chosen:     {TotalCost: 12.4, TimeMS: 2},
				"SELECT 2": {TotalCost: 99, TimeMS: 9},
			}}, nil
		},
	}

	reports, skip, err := a.optimize(context.Background(), rc, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if skip != "" {
		t.Fatalf("unexpected skip reason %q", skip)
	}
	if len(reports) != 1 || !reports[0].Improved {
		t.Fatalf("reports = %+v", reports)
	}
	if reports[0].ChosenQuery != chosen {
		t.Errorf("chosen = %q", reports[0].ChosenQuery)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), chosen) {
		t.Errorf("file not rewritten:\n%s", data)
	}
	if !strings.Contains(string(data), "    q = \"") {
		t.Errorf("indentation lost:\n%s", data)
	}
}

func TestOptimize_FailedVerificationRevertsAndAborts(t *testing.T) {
	rc, path := newSiteContext(t)
	original := rc.QuerySites[0].Query
	before, _ := os.ReadFile(path)

	rc.LLM = &fakeLLM{candidates: []string{"SELECT id FROM users"}}
	cmd := &fakeCmd{results: []*execx.Result{{ExitCode: 1, Stderr: "1 failed"}}}
	a := &Test{
		Cmd: cmd,
		ConnectDB: func(context.Context) (optimizer.Explainer, error) {
			return &fakeExplainer{plans: map[string]*optimizer.Plan{
				original:               {TotalCost: 30},
				"SELECT id FROM users": {TotalCost: 5},
			}}, nil
		},
	}

	_, _, err := a.optimize(context.Background(), rc, zap.NewNop())
	if err == nil {
		t.Fatal("expected terminal error")
	}
	pipeErr, ok := err.(*pipeline.Error)
	if !ok || pipeErr.Kind != pipeline.KindTestFailed {
		t.Fatalf("expected TestFailed, got %v", err)
	}

	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("file not reverted to its pre-replacement bytes")
	}
}

func TestOptimize_NoCandidatesSkipsSite(t *testing.T) {
	rc, path := newSiteContext(t)
	before, _ := os.ReadFile(path)

	rc.LLM = &fakeLLM{candidates: nil}
	a := &Test{
		Cmd: &fakeCmd{},
		ConnectDB: func(context.Context) (optimizer.Explainer, error) {
			return &fakeExplainer{plans: map[string]*optimizer.Plan{}}, nil
		},
	}

	reports, _, err := a.optimize(context.Background(), rc, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("reports = %+v", reports)
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("skipped site must leave the file untouched")
	}
}

func TestOptimize_DatabaseUnavailableDegrades(t *testing.T) {
	rc, _ := newSiteContext(t)
	rc.LLM = &fakeLLM{candidates: []string{"SELECT 1"}}
	a := &Test{
		Cmd: &fakeCmd{},
		ConnectDB: func(context.Context) (optimizer.Explainer, error) {
			return nil, pipeline.Errorf(pipeline.KindDatabaseUnavailable, "connection refused")
		},
	}

	reports, skip, err := a.optimize(context.Background(), rc, zap.NewNop())
	if err != nil {
		t.Fatalf("degrade must not fail the pipeline: %v", err)
	}
	if len(reports) != 0 || skip != "database unavailable" {
		t.Errorf("reports=%v skip=%q", reports, skip)
	}
}

func TestOptimize_NoLLMDegrades(t *testing.T) {
	rc, _ := newSiteContext(t)
	a := &Test{Cmd: &fakeCmd{}}

	reports, skip, err := a.optimize(context.Background(), rc, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 0 || skip != "llm unavailable" {
		t.Errorf("reports=%v skip=%q", reports, skip)
	}
}

func TestRunTests_NonZeroExitIsTerminal(t *testing.T) {
	rc, _ := newSiteContext(t)
	a := &Test{Cmd: &fakeCmd{results: []*execx.Result{{ExitCode: 2, Stdout: "2 failed"}}}}

	_, err := a.runTests(context.Background(), rc)
	pipeErr, ok := err.(*pipeline.Error)
	if !ok || pipeErr.Kind != pipeline.KindTestFailed {
		t.Fatalf("expected TestFailed, got %v", err)
	}
	if !strings.Contains(pipeErr.Message, "2 failed") {
		t.Errorf("captured output missing: %v", pipeErr.Message)
	}
}
