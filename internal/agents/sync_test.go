package agents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/commitly/internal/config"
	"github.com/lucasnoah/commitly/internal/hub"
	"github.com/lucasnoah/commitly/internal/pipeline"
)

type scriptedGit struct {
	calls   []string
	results map[string]struct {
		out string
		err error
	}
}

func newScriptedGit() *scriptedGit {
	return &scriptedGit{results: make(map[string]struct {
		out string
		err error
	})}
}

func (g *scriptedGit) set(prefix, out string, err error) {
	g.results[prefix] = struct {
		out string
		err error
	}{out, err}
}

func (g *scriptedGit) Run(dir string, args ...string) (string, error) {
	joined := strings.Join(args, " ")
	g.calls = append(g.calls, joined)
	for prefix, r := range g.results {
		if strings.HasPrefix(joined, prefix) {
			return r.out, r.err
		}
	}
	return "", nil
}

func (g *scriptedGit) count(prefix string) int {
	n := 0
	for _, call := range g.calls {
		if strings.HasPrefix(call, prefix) {
			n++
		}
	}
	return n
}

func newSyncContext(t *testing.T, git *scriptedGit) (*Sync, *pipeline.RunContext) {
	t.Helper()
	parent := t.TempDir()
	workspace := filepath.Join(parent, "proj")
	if err := os.MkdirAll(filepath.Join(hub.Path(workspace), ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		t.Fatal(err)
	}

	mgr := hub.NewManager(git, workspace, "origin", "main", nil)
	mgr.SetSleep(func(time.Duration) {})
	if _, err := mgr.Ensure(); err != nil {
		t.Fatal(err)
	}

	rc := &pipeline.RunContext{
		RunID:          "r1",
		WorkspacePath:  workspace,
		HubPath:        hub.Path(workspace),
		RemoteName:     "origin",
		WorkingBranch:  "main",
		RefactorBranch: "commitly/refactor/r1",
		CloneBranch:    "commitly/clone/r1",
		CodeBranch:     "commitly/code/r1",
		TestBranch:     "commitly/test/r1",
		UserCommits:    []pipeline.CommitInfo{{Message: "fix login"}},
		Config:         &config.Config{},
	}
	a := &Sync{
		Hub:   mgr,
		Store: pipeline.NewStore(workspace),
		Sleep: func(time.Duration) {},
	}
	return a, rc
}

type approveFn func(string) (bool, error)

func (f approveFn) Approve(summary string) (bool, error) { return f(summary) }

func TestSync_DeclinedLeavesHubAlone(t *testing.T) {
	git := newScriptedGit()
	git.set("diff --shortstat", "2 files changed, 10 insertions(+), 3 deletions(-)", nil)

	a, rc := newSyncContext(t, git)
	var seenSummary string
	a.Approver = approveFn(func(summary string) (bool, error) {
		seenSummary = summary
		return false, nil
	})

	out, err := a.Execute(context.Background(), rc, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data := out.(*SyncData)
	if data.Approved || data.Pushed {
		t.Fatalf("declined gate must not push: %+v", data)
	}
	if !strings.Contains(seenSummary, "fix login") {
		t.Errorf("summary missing the commit message:\n%s", seenSummary)
	}
	if git.count("push") != 0 {
		t.Error("push attempted after decline")
	}
	if git.count("branch -D") != 0 {
		t.Error("branches deleted after decline")
	}
}

func TestSync_ApprovedPushesAndCleans(t *testing.T) {
	git := newScriptedGit()
	git.set("rev-parse HEAD", "abcdef12", nil)
	git.set("rev-parse --verify", "abc", nil)

	a, rc := newSyncContext(t, git)
	a.Approver = approveFn(func(string) (bool, error) { return true, nil })

	out, err := a.Execute(context.Background(), rc, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data := out.(*SyncData)
	if !data.Pushed || data.CommitSHA != "abcdef12" {
		t.Fatalf("data = %+v", data)
	}
	if git.count("push origin main:main") != 1 {
		t.Errorf("push calls: %v", git.calls)
	}
	if git.count("branch -D") != 4 {
		t.Errorf("expected all 4 derivative branches deleted, calls: %v", git.calls)
	}
	if len(data.BranchesDeleted) != 4 {
		t.Errorf("branches deleted = %v", data.BranchesDeleted)
	}
}

func TestSync_PushRetriesThenFails(t *testing.T) {
	git := newScriptedGit()
	git.set("rev-parse HEAD", "abcdef12", nil)
	git.set("push", "remote hung up", fmt.Errorf("exit status 128"))

	a, rc := newSyncContext(t, git)
	a.Approver = approveFn(func(string) (bool, error) { return true, nil })

	_, err := a.Execute(context.Background(), rc, zap.NewNop())
	pipeErr, ok := err.(*pipeline.Error)
	if !ok || pipeErr.Kind != pipeline.KindPushFailed {
		t.Fatalf("expected PushFailed, got %v", err)
	}
	if git.count("push") != 3 {
		t.Errorf("expected 3 push attempts, got %d", git.count("push"))
	}
	if !strings.Contains(pipeErr.Message, "git push origin main") {
		t.Errorf("manual push command missing: %s", pipeErr.Message)
	}
	if git.count("branch -D") != 0 {
		t.Error("no branches may be deleted after a failed push")
	}
}
