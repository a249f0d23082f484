package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/lucasnoah/commitly/internal/agent"
	"github.com/lucasnoah/commitly/internal/agents"
	"github.com/lucasnoah/commitly/internal/pipeline"
)

type nopFactory struct{ dir string }

func (f *nopFactory) Open(name string) (*zap.Logger, string, func() error, error) {
	return zap.NewNop(), filepath.Join(f.dir, name+".log"), func() error { return nil }, nil
}

func (f *nopFactory) LogsDir() string { return f.dir }

type stubAgent struct {
	name string
	data any
	err  error
	ran  bool
}

func (s *stubAgent) Name() string { return s.name }

func (s *stubAgent) Execute(ctx context.Context, rc *pipeline.RunContext, log *zap.Logger) (any, error) {
	s.ran = true
	return s.data, s.err
}

func newTestContext(t *testing.T) *pipeline.RunContext {
	t.Helper()
	return &pipeline.RunContext{
		RunID:         "r1",
		WorkspacePath: t.TempDir(),
		WorkingBranch: "main",
		Logs:          &nopFactory{dir: t.TempDir()},
		Outcomes:      map[string]*pipeline.Outcome{},
	}
}

// stubSet builds a full agent roster with the given overrides.
func stubSet(overrides map[string]*stubAgent) []agent.Agent {
	var set []agent.Agent
	for _, name := range []string{"clone", "code", "test", "refactor", "sync", "notify", "report"} {
		if s, ok := overrides[name]; ok {
			set = append(set, s)
			continue
		}
		data := any(nil)
		if name == "sync" {
			data = &agents.SyncData{Approved: true, Pushed: true}
		}
		set = append(set, &stubAgent{name: name, data: data})
	}
	return set
}

func newOrchestrator(t *testing.T, rc *pipeline.RunContext, set []agent.Agent) *Orchestrator {
	t.Helper()
	store := pipeline.NewStore(rc.WorkspacePath)
	return New(store, agent.NewBase(store), nil, &Rollback{}, nil, set...)
}

func TestRun_HappyPath(t *testing.T) {
	rc := newTestContext(t)
	set := stubSet(nil)
	orc := newOrchestrator(t, rc, set)

	run, err := orc.Run(context.Background(), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != pipeline.RunSucceeded {
		t.Fatalf("status = %s", run.Status)
	}
	for _, a := range set {
		if !a.(*stubAgent).ran {
			t.Errorf("agent %s never ran", a.Name())
		}
	}
	if run.ExitCode() != 0 {
		t.Errorf("exit code = %d", run.ExitCode())
	}
}

func TestRun_SyncDeclinedIsApprovedNoPush(t *testing.T) {
	rc := newTestContext(t)
	set := stubSet(map[string]*stubAgent{
		"sync": {name: "sync", data: &agents.SyncData{Approved: false}},
	})
	orc := newOrchestrator(t, rc, set)

	run, err := orc.Run(context.Background(), rc)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != pipeline.RunApprovedNoPush {
		t.Fatalf("status = %s", run.Status)
	}
	if run.ExitCode() != 2 {
		t.Errorf("exit code = %d", run.ExitCode())
	}
	// notify and report still execute after a decline
	for _, a := range set {
		if !a.(*stubAgent).ran {
			t.Errorf("agent %s never ran", a.Name())
		}
	}
}

func TestRun_BlockingFailureStopsPipeline(t *testing.T) {
	rc := newTestContext(t)
	set := stubSet(map[string]*stubAgent{
		"test": {name: "test", err: pipeline.Errorf(pipeline.KindTestFailed, "2 failed")},
	})
	orc := newOrchestrator(t, rc, set)

	run, err := orc.Run(context.Background(), rc)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != pipeline.RunFailed {
		t.Fatalf("status = %s", run.Status)
	}
	byName := make(map[string]*stubAgent)
	for _, a := range set {
		byName[a.Name()] = a.(*stubAgent)
	}
	if !byName["clone"].ran || !byName["code"].ran || !byName["test"].ran {
		t.Error("agents before the failure must run")
	}
	for _, name := range []string{"refactor", "sync", "notify", "report"} {
		if byName[name].ran {
			t.Errorf("agent %s ran after a blocking failure", name)
		}
	}
}

func TestRun_NonBlockingFailureDoesNotDowngrade(t *testing.T) {
	rc := newTestContext(t)
	set := stubSet(map[string]*stubAgent{
		"notify": {name: "notify", err: pipeline.Errorf(pipeline.KindInternalInvariantViolated, "chat unreachable")},
	})
	orc := newOrchestrator(t, rc, set)

	run, err := orc.Run(context.Background(), rc)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != pipeline.RunSucceeded {
		t.Fatalf("status = %s", run.Status)
	}
	if run.Outcomes["notify"].Status != pipeline.StatusFailed {
		t.Error("notify failure must still be recorded")
	}
	byName := make(map[string]*stubAgent)
	for _, a := range set {
		byName[a.Name()] = a.(*stubAgent)
	}
	if !byName["report"].ran {
		t.Error("report must run after a notify failure")
	}
}

func TestRun_LockHeldFailsFast(t *testing.T) {
	rc := newTestContext(t)
	release, err := pipeline.NewLock(rc.WorkspacePath).Acquire("other")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	set := stubSet(nil)
	orc := newOrchestrator(t, rc, set)
	if _, err := orc.Run(context.Background(), rc); err != pipeline.ErrLockHeld {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
	for _, a := range set {
		if a.(*stubAgent).ran {
			t.Errorf("agent %s ran while the lock was held", a.Name())
		}
	}
}

func TestRollback_LastSuccessfulBranch(t *testing.T) {
	rc := &pipeline.RunContext{
		WorkingBranch: "main",
		CloneBranch:   "commitly/clone/r",
		CodeBranch:    "commitly/code/r",
	}
	r := &Rollback{}

	if got := r.lastSuccessfulBranch(rc, "test"); got != "commitly/code/r" {
		t.Errorf("got %q", got)
	}
	if got := r.lastSuccessfulBranch(rc, "clone"); got != "main" {
		t.Errorf("got %q", got)
	}
	if got := r.lastSuccessfulBranch(rc, "code"); got != "commitly/clone/r" {
		t.Errorf("got %q", got)
	}
}
