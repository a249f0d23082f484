// Package agent defines the uniform contract every pipeline agent follows
// and the base wrapper that invokes them. Agents return errors; the wrapper
// turns them into outcome records — nothing propagates to the orchestrator
// as a panic or raw error.
package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/commitly/internal/pipeline"
)

// Agent is one step of the pipeline.
type Agent interface {
	// Name is the short agent name used for branches, caches, and logs.
	Name() string
	// Execute does the agent's work and returns its structured output.
	Execute(ctx context.Context, rc *pipeline.RunContext, log *zap.Logger) (any, error)
}

// Blocking reports whether a failure of the named agent aborts the pipeline.
// Notify and Report are non-blocking: their failures are recorded only.
func Blocking(name string) bool {
	switch name {
	case "notify", "report":
		return false
	}
	return true
}

// Base wraps agent execution with timestamps, log sinks, output caching, and
// uniform error capture.
type Base struct {
	store *pipeline.Store
	clock func() time.Time
}

// NewBase creates a Base persisting through the given store.
func NewBase(store *pipeline.Store) *Base {
	return &Base{store: store, clock: time.Now}
}

// SetClock overrides the timestamp source (for testing).
func (b *Base) SetClock(clock func() time.Time) {
	b.clock = clock
}

// Run invokes one agent and returns its outcome. Failure is a return value,
// never a raised error: panics are captured as InternalInvariantViolated.
// On return the agent's cache file and the run context are reserialized so
// the next agent's first read observes this agent's writes.
func (b *Base) Run(ctx context.Context, a Agent, rc *pipeline.RunContext) *pipeline.Outcome {
	name := a.Name()
	out := &pipeline.Outcome{
		Agent:     name,
		Status:    pipeline.StatusRunning,
		StartedAt: b.clock(),
	}
	if rc.Outcomes == nil {
		rc.Outcomes = make(map[string]*pipeline.Outcome)
	}
	rc.Outcomes[name] = out

	log, logPath, closeLog, err := rc.Logs.Open(name)
	if err != nil {
		out.Status = pipeline.StatusFailed
		out.EndedAt = b.clock()
		out.Error = pipeline.Wrap(pipeline.KindInternalInvariantViolated, "open log sink", err)
		b.persist(rc, out)
		return out
	}
	out.LogPath = logPath
	defer closeLog()

	log.Info("agent started", zap.String("run_id", rc.RunID))

	data, execErr := b.execute(ctx, a, rc, log)

	out.EndedAt = b.clock()
	out.Branch = branchFor(rc, name)
	out.Data = data

	if execErr != nil {
		out.Status = pipeline.StatusFailed
		out.Error = pipeline.AsError(execErr)
		out.Error.LogPath = logPath
		rc.Err = out.Error
		log.Error("agent failed",
			zap.String("kind", string(out.Error.Kind)),
			zap.String("message", out.Error.Message),
			zap.String("cause", out.Error.Cause),
		)
	} else {
		out.Status = pipeline.StatusSucceeded
		log.Info("agent finished", zap.Duration("elapsed", out.EndedAt.Sub(out.StartedAt)))
	}

	b.persist(rc, out)
	return out
}

// execute calls the agent, converting panics into errors.
func (b *Base) execute(ctx context.Context, a Agent, rc *pipeline.RunContext, log *zap.Logger) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pipeline.Errorf(pipeline.KindInternalInvariantViolated,
				"panic in %s agent: %v\n%s", a.Name(), r, debug.Stack())
		}
	}()
	if ctx.Err() != nil {
		return nil, pipeline.Wrap(pipeline.KindCancelled, "pipeline cancelled", ctx.Err())
	}
	return a.Execute(ctx, rc, log)
}

// persist writes the cache file and run context; persistence failures are
// folded into the outcome rather than dropped.
func (b *Base) persist(rc *pipeline.RunContext, out *pipeline.Outcome) {
	if err := b.store.SaveAgentCache(rc.RunID, out); err != nil && out.Error == nil {
		out.Status = pipeline.StatusFailed
		out.Error = pipeline.Wrap(pipeline.KindInternalInvariantViolated,
			fmt.Sprintf("persist %s cache", out.Agent), err)
	}
	if err := b.store.SaveContext(rc); err != nil && out.Error == nil {
		out.Status = pipeline.StatusFailed
		out.Error = pipeline.Wrap(pipeline.KindInternalInvariantViolated, "persist run context", err)
	}
}

// branchFor returns the branch the named agent created during this run, if
// any.
func branchFor(rc *pipeline.RunContext, name string) string {
	switch name {
	case "clone":
		return rc.CloneBranch
	case "code":
		return rc.CodeBranch
	case "test":
		return rc.TestBranch
	case "refactor":
		return rc.RefactorBranch
	case "sync":
		return rc.SyncBranch
	}
	return ""
}
