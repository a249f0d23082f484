package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/commitly/internal/hub"
	"github.com/lucasnoah/commitly/internal/pipeline"
)

// branchAgents are the agents that create derivative branches, in order.
var branchAgents = []string{"clone", "code", "test", "refactor"}

// Rollback rewinds the hub after a blocking agent fails: reset to the last
// successful branch, delete every branch created by or after the failing
// agent, and persist the error record to both log directories. It never
// retries the failed agent; recovery is user-initiated via a fresh commit.
type Rollback struct {
	Hub        *hub.Manager
	CleanupHub bool
	Log        *zap.Logger
}

// Run performs the rollback. Best-effort throughout: a rollback must never
// mask the original failure.
func (r *Rollback) Run(rc *pipeline.RunContext, failedAgent string) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	if r.Hub == nil || r.Hub.Hub() == nil {
		// failure before the hub existed; nothing to rewind
		r.persistError(rc, failedAgent, log)
		return
	}

	target := r.lastSuccessfulBranch(rc, failedAgent)
	if err := r.Hub.ResetTo(target); err != nil {
		log.Warn("hub reset failed", zap.String("target", target), zap.Error(err))
	} else {
		log.Info("hub reset", zap.String("target", target))
	}

	var doomed []string
	deleting := false
	for _, name := range branchAgents {
		if name == failedAgent {
			deleting = true
		}
		if deleting {
			if branch := agentBranch(rc, name); branch != "" {
				doomed = append(doomed, branch)
			}
		}
	}
	if err := r.Hub.Cleanup(doomed); err != nil {
		log.Warn("branch cleanup failed", zap.Error(err))
	} else if len(doomed) > 0 {
		log.Info("derivative branches deleted", zap.Strings("branches", doomed))
	}

	r.persistError(rc, failedAgent, log)

	if r.CleanupHub {
		if err := r.Hub.Destroy(); err != nil {
			log.Warn("hub removal failed", zap.Error(err))
		} else {
			log.Info("hub removed")
		}
	}
}

// lastSuccessfulBranch finds the newest branch an agent before the failing
// one created, falling back to the working branch.
func (r *Rollback) lastSuccessfulBranch(rc *pipeline.RunContext, failedAgent string) string {
	last := rc.WorkingBranch
	for _, name := range branchAgents {
		if name == failedAgent {
			break
		}
		if branch := agentBranch(rc, name); branch != "" {
			last = branch
		}
	}
	return last
}

// persistError writes the error record next to the hub logs and the local
// logs so a post-mortem can start from either side.
func (r *Rollback) persistError(rc *pipeline.RunContext, failedAgent string, log *zap.Logger) {
	if rc.Err == nil {
		return
	}
	record := struct {
		RunID       string          `json:"run_id"`
		FailedAgent string          `json:"failed_agent"`
		Error       *pipeline.Error `json:"error"`
		Timestamp   string          `json:"timestamp"`
	}{
		RunID:       rc.RunID,
		FailedAgent: failedAgent,
		Error:       rc.Err,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return
	}

	name := "rollback-" + rc.RunID + ".json"
	local := filepath.Join(rc.WorkspacePath, ".commitly", "logs", name)
	writeErrorFile(local, data, log)
	if rc.HubPath != "" {
		writeErrorFile(filepath.Join(rc.HubPath, "logs", name), data, log)
	}
}

func writeErrorFile(path string, data []byte, log *zap.Logger) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Warn("error record dir not created", zap.String("path", path), zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn("error record not written", zap.String("path", path), zap.Error(err))
	}
}

// agentBranch maps an agent name to the branch it recorded in the context.
func agentBranch(rc *pipeline.RunContext, name string) string {
	switch name {
	case "clone":
		return rc.CloneBranch
	case "code":
		return rc.CodeBranch
	case "test":
		return rc.TestBranch
	case "refactor":
		return rc.RefactorBranch
	}
	return ""
}
