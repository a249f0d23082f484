// Package orchestrator runs the seven agents in their fixed order and
// translates their outcomes into the run's terminal status. The flow is a
// straight line with one approval branch; there is no speculative execution,
// and no agent begins until the previous outcome is persisted.
package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/commitly/internal/agent"
	"github.com/lucasnoah/commitly/internal/agents"
	"github.com/lucasnoah/commitly/internal/audit"
	"github.com/lucasnoah/commitly/internal/pipeline"
)

// agentOrder is the fixed schedule. Clone through sync are blocking; notify
// and report are not.
var agentOrder = []string{"clone", "code", "test", "refactor", "sync", "notify", "report"}

// Orchestrator owns the run context and dispatches agents through the base
// wrapper.
type Orchestrator struct {
	store    *pipeline.Store
	base     *agent.Base
	auditDB  *audit.DB
	rollback *Rollback
	registry map[string]agent.Agent
	log      *zap.Logger
}

// New creates an Orchestrator. The audit database may be nil; audit writes
// are then skipped.
func New(store *pipeline.Store, base *agent.Base, auditDB *audit.DB, rollback *Rollback, log *zap.Logger, agentSet ...agent.Agent) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	registry := make(map[string]agent.Agent, len(agentSet))
	for _, a := range agentSet {
		registry[a.Name()] = a
	}
	return &Orchestrator{
		store:    store,
		base:     base,
		auditDB:  auditDB,
		rollback: rollback,
		registry: registry,
		log:      log,
	}
}

// Run executes the pipeline against a prepared run context. It acquires the
// repository lock for the whole run and releases it on every exit path.
// A held lock returns pipeline.ErrLockHeld without touching the hub.
func (o *Orchestrator) Run(ctx context.Context, rc *pipeline.RunContext) (*pipeline.Run, error) {
	lock := pipeline.NewLock(rc.WorkspacePath)
	release, err := lock.Acquire(rc.RunID)
	if err != nil {
		return nil, err
	}
	defer release()

	run := &pipeline.Run{
		ID:        rc.RunID,
		StartedAt: time.Now(),
	}
	o.auditEvent(rc.RunID, "created", "", "")
	if o.auditDB != nil {
		_ = o.auditDB.RecordRunStarted(rc.RunID, rc.ProjectName, rc.WorkingBranch, run.StartedAt)
	}

	for _, name := range agentOrder {
		a, ok := o.registry[name]
		if !ok {
			run.Status = pipeline.RunFailed
			rc.Err = pipeline.Errorf(pipeline.KindInternalInvariantViolated, "agent %s not registered", name)
			break
		}

		o.log.Info("agent dispatched", zap.String("agent", name))
		out := o.base.Run(ctx, a, rc)
		if o.auditDB != nil {
			_ = o.auditDB.RecordOutcome(rc.RunID, out)
		}
		o.auditEvent(rc.RunID, "agent_"+string(out.Status), name, "")

		if out.Status == pipeline.StatusFailed {
			if !agent.Blocking(name) {
				o.log.Warn("non-blocking agent failed; pipeline continues",
					zap.String("agent", name), zap.String("error", out.Error.Message))
				continue
			}
			o.log.Error("blocking agent failed; rolling back",
				zap.String("agent", name), zap.String("error", out.Error.Message))
			o.rollback.Run(rc, name)
			if out.Error != nil && out.Error.Kind == pipeline.KindCancelled {
				run.Status = pipeline.RunAborted
			} else {
				run.Status = pipeline.RunFailed
			}
			break
		}
	}

	if run.Status == "" {
		run.Status = o.terminalStatus(rc)
	}
	run.EndedAt = time.Now()
	run.Outcomes = rc.Outcomes

	if err := o.store.SaveRun(run); err != nil {
		o.log.Warn("run record not persisted", zap.Error(err))
	}
	if o.auditDB != nil {
		_ = o.auditDB.RecordRunFinished(rc.RunID, run.Status, run.EndedAt)
	}
	o.auditEvent(rc.RunID, "completed", "", string(run.Status))
	return run, nil
}

// terminalStatus derives the run's status when no blocking agent failed: a
// declined sync gate is approved_no_push, everything else succeeded.
func (o *Orchestrator) terminalStatus(rc *pipeline.RunContext) pipeline.RunStatus {
	out, ok := rc.Outcomes["sync"]
	if ok && out.Data != nil {
		if data, ok := out.Data.(*agents.SyncData); ok && !data.Approved {
			return pipeline.RunApprovedNoPush
		}
	}
	return pipeline.RunSucceeded
}

func (o *Orchestrator) auditEvent(runID, event, agentName, detail string) {
	if o.auditDB == nil {
		return
	}
	_ = o.auditDB.LogEvent(runID, event, agentName, detail)
}
