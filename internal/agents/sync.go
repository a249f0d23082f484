package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/commitly/internal/hub"
	"github.com/lucasnoah/commitly/internal/pipeline"
)

// Approver answers the single yes/no question of the pipeline. The source is
// pluggable so the gate is testable: interactive terminal, scripted answer,
// or file-based.
type Approver interface {
	Approve(summary string) (bool, error)
}

// Sync is the only agent that may solicit human input. On approval it
// fast-forwards the user's working branch to the refactor tip, pushes, and
// cleans the hub's derivative branches.
type Sync struct {
	Hub      *hub.Manager
	Store    *pipeline.Store
	Approver Approver
	Sleep    func(time.Duration)
}

func (a *Sync) Name() string { return "sync" }

// SyncData is the sync agent's structured output.
type SyncData struct {
	Approved        bool     `json:"approved"`
	Pushed          bool     `json:"pushed"`
	CommitSHA       string   `json:"commit_sha,omitempty"`
	RemoteBranch    string   `json:"remote_branch,omitempty"`
	BranchesDeleted []string `json:"branches_deleted,omitempty"`
	Summary         string   `json:"summary"`
}

func (a *Sync) Execute(ctx context.Context, rc *pipeline.RunContext, log *zap.Logger) (any, error) {
	summary, err := a.buildSummary(rc)
	if err != nil {
		return nil, err
	}

	approved, err := a.Approver.Approve(summary)
	if err != nil {
		return nil, pipeline.Wrap(pipeline.KindInternalInvariantViolated, "approval prompt", err)
	}

	data := &SyncData{Approved: approved, Summary: summary}
	if !approved {
		log.Info("push declined; hub left on refactor branch for inspection")
		return data, nil
	}

	sha, err := a.fastForwardWorkspace(rc, log)
	if err != nil {
		return nil, err
	}
	data.CommitSHA = sha

	if err := a.push(rc, log); err != nil {
		return nil, err
	}
	data.Pushed = true
	data.RemoteBranch = rc.RemoteName + "/" + rc.WorkingBranch

	deleted, err := a.cleanupHub(rc, log)
	if err != nil {
		log.Warn("branch cleanup incomplete", zap.Error(err))
	}
	data.BranchesDeleted = deleted
	return data, nil
}

// fastForwardWorkspace brings the user's working branch to the refactor
// branch tip by fetching from the hub.
func (a *Sync) fastForwardWorkspace(rc *pipeline.RunContext, log *zap.Logger) (string, error) {
	ws := a.Hub.Workspace()
	if err := ws.FetchFrom(rc.HubPath, rc.RefactorBranch); err != nil {
		return "", pipeline.Wrap(pipeline.KindPushFailed, "fetch refactor branch from hub", err)
	}
	if err := ws.Merge("FETCH_HEAD"); err != nil {
		// the hub rebuilt the user's commits as its own, so the histories can
		// diverge; the approved result replaces the local tip
		if err := ws.ResetHard("FETCH_HEAD"); err != nil {
			return "", pipeline.Wrap(pipeline.KindPushFailed, "advance working branch", err)
		}
	}
	sha, err := ws.Head()
	if err != nil {
		return "", pipeline.Wrap(pipeline.KindPushFailed, "read workspace head", err)
	}
	log.Info("workspace advanced", zap.String("sha", sha))
	return sha, nil
}

// push publishes the working branch, retrying transient failures.
func (a *Sync) push(rc *pipeline.RunContext, log *zap.Logger) error {
	sleep := a.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		lastErr = a.Hub.Workspace().Push(rc.RemoteName, rc.WorkingBranch, rc.WorkingBranch)
		if lastErr == nil {
			log.Info("pushed", zap.String("remote", rc.RemoteName), zap.String("branch", rc.WorkingBranch))
			return nil
		}
		log.Warn("push failed", zap.Int("attempt", attempt), zap.Error(lastErr))
		if attempt < 3 {
			sleep(time.Duration(attempt) * time.Second)
		}
	}
	return pipeline.Errorf(pipeline.KindPushFailed,
		"push failed after 3 attempts (%v); push manually with: git push %s %s",
		lastErr, rc.RemoteName, rc.WorkingBranch)
}

// cleanupHub deletes the four derivative branches after a successful push.
func (a *Sync) cleanupHub(rc *pipeline.RunContext, log *zap.Logger) ([]string, error) {
	if err := a.Hub.Hub().Checkout(rc.WorkingBranch); err != nil {
		return nil, err
	}
	branches := rc.AgentBranches()
	if err := a.Hub.Cleanup(branches); err != nil {
		return nil, err
	}
	log.Info("derivative branches deleted", zap.Strings("branches", branches))
	return branches, nil
}

// buildSummary renders the human-readable approval summary: diff stats plus
// highlights from the earlier agents' caches.
func (a *Sync) buildSummary(rc *pipeline.RunContext) (string, error) {
	base := rc.RemoteName + "/" + rc.WorkingBranch
	stat, err := a.Hub.Hub().DiffShortstat(base, rc.RefactorBranch)
	if err != nil {
		return "", pipeline.Wrap(pipeline.KindHubUnavailable, "diff stats", err)
	}

	message := ""
	if len(rc.UserCommits) > 0 {
		message = rc.UserCommits[0].Message
	}

	var b strings.Builder
	fmt.Fprintf(&b, "commit: %s\n", message)
	fmt.Fprintf(&b, "changes: %s\n", strings.TrimSpace(stat))
	fmt.Fprintf(&b, "files: %d changed\n", len(rc.ChangedFiles))

	if raw := a.loadCacheData("test"); raw != nil {
		var test TestData
		if json.Unmarshal(raw, &test) == nil && len(test.Sites) > 0 {
			improved := 0
			var bestRate float64
			for _, site := range test.Sites {
				if site.Improved {
					improved++
					if site.ImprovementRate > bestRate {
						bestRate = site.ImprovementRate
					}
				}
			}
			fmt.Fprintf(&b, "queries: %d measured, %d improved (best %.1f%%)\n",
				len(test.Sites), improved, bestRate)
		}
	}
	if raw := a.loadCacheData("refactor"); raw != nil {
		var ref RefactorData
		if json.Unmarshal(raw, &ref) == nil && (ref.Refactored > 0 || ref.Reverted > 0) {
			fmt.Fprintf(&b, "refactored: %d files (%d reverted)\n", ref.Refactored, ref.Reverted)
		}
	}
	return b.String(), nil
}

// loadCacheData reads one agent's cache payload, tolerating absence.
func (a *Sync) loadCacheData(agent string) json.RawMessage {
	_, raw, err := a.Store.LoadAgentCache(agent)
	if err != nil {
		return nil
	}
	return raw
}
