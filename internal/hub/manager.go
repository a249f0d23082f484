// Package hub owns the lifecycle of the shadow working tree in which all
// pipeline mutations occur. The hub lives next to the user repo, shares its
// remote, and never shares filesystem writes with the user's working tree
// while a pipeline is active.
package hub

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/commitly/internal/gitx"
	"github.com/lucasnoah/commitly/internal/pipeline"
)

// Path returns the hub location for a project: a sibling of the user repo
// named .commitly_hub_<repo_name>.
func Path(workspacePath string) string {
	parent := filepath.Dir(workspacePath)
	name := filepath.Base(workspacePath)
	return filepath.Join(parent, ".commitly_hub_"+name)
}

// Manager locates, refreshes, branches, and destroys the hub. All git
// operations go through the gateway so the run log stays complete.
type Manager struct {
	git       gitx.Runner
	workspace *gitx.Repo
	hub       *gitx.Repo
	remote    string
	branch    string
	log       *zap.Logger
	sleep     func(time.Duration)
}

// NewManager creates a Manager for the given workspace.
func NewManager(git gitx.Runner, workspacePath, remote, branch string, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		git:       git,
		workspace: gitx.NewRepo(git, workspacePath),
		remote:    remote,
		branch:    branch,
		log:       log,
		sleep:     time.Sleep,
	}
}

// SetSleep overrides the retry backoff sleep (for testing).
func (m *Manager) SetSleep(sleep func(time.Duration)) {
	m.sleep = sleep
}

// Hub returns the hub repo handle. Valid after Ensure.
func (m *Manager) Hub() *gitx.Repo {
	return m.hub
}

// Workspace returns the user repo handle.
func (m *Manager) Workspace() *gitx.Repo {
	return m.workspace
}

// Ensure locates or creates the hub and brings its working branch up to the
// remote tip. A missing hub is shallow-cloned from the user repo's remote.
// Transient failures are retried up to three times with exponential backoff;
// exhaustion surfaces as HubUnavailable.
func (m *Manager) Ensure() (string, error) {
	hubPath := Path(m.workspace.Dir())

	if _, err := os.Stat(filepath.Join(hubPath, ".git")); os.IsNotExist(err) {
		url, err := m.workspace.RemoteURL(m.remote)
		if err != nil || url == "" {
			return "", pipeline.Wrap(pipeline.KindHubUnavailable,
				fmt.Sprintf("remote %q has no URL", m.remote), err)
		}
		if err := m.withRetry("clone", func() error {
			return m.workspace.CloneShallow(url, hubPath)
		}); err != nil {
			return "", pipeline.Wrap(pipeline.KindHubUnavailable, "shallow clone failed", err)
		}
		m.log.Info("hub created", zap.String("path", hubPath))
	}

	m.hub = gitx.NewRepo(m.git, hubPath)

	if err := m.withRetry("refresh", func() error {
		if err := m.hub.Fetch(m.remote); err != nil {
			return err
		}
		if err := m.hub.Checkout(m.branch); err != nil {
			// shallow clones of non-default branches may lack a local head
			if err := m.hub.CheckoutNew(m.branch, m.remote+"/"+m.branch); err != nil {
				return err
			}
		}
		return m.hub.ResetHard(m.remote + "/" + m.branch)
	}); err != nil {
		return "", pipeline.Wrap(pipeline.KindHubUnavailable, "hub refresh failed", err)
	}

	m.log.Info("hub refreshed", zap.String("path", hubPath), zap.String("branch", m.branch))
	return hubPath, nil
}

// CreateAgentBranch checks out parent, creates name from it, and checks out
// name. An existing branch of the same name means a run-id collision and
// aborts the pipeline.
func (m *Manager) CreateAgentBranch(parent, name string) error {
	if m.hub.BranchExists(name) {
		return pipeline.Errorf(pipeline.KindBranchExists, "branch %s already exists", name)
	}
	if err := m.hub.Checkout(parent); err != nil {
		return pipeline.Wrap(pipeline.KindHubUnavailable,
			fmt.Sprintf("checkout parent %s", parent), err)
	}
	if err := m.hub.CheckoutNew(name, ""); err != nil {
		return pipeline.Wrap(pipeline.KindHubUnavailable,
			fmt.Sprintf("create branch %s", name), err)
	}
	return nil
}

// ApplyUserDiff computes the patch between the hub's upstream tip and the
// user's local tip and applies it to the current hub branch. Returns false
// when there is nothing to apply. Rejected hunks surface as PatchConflict.
func (m *Manager) ApplyUserDiff() (bool, error) {
	base := m.remote + "/" + m.branch
	patch, err := m.workspace.Diff(base, "HEAD")
	if err != nil {
		return false, pipeline.Wrap(pipeline.KindHubUnavailable, "compute user diff", err)
	}
	if strings.TrimSpace(patch) == "" {
		return false, nil
	}

	patchFile, err := os.CreateTemp("", "commitly-*.patch")
	if err != nil {
		return false, pipeline.Wrap(pipeline.KindHubUnavailable, "create patch file", err)
	}
	defer os.Remove(patchFile.Name())
	if _, err := patchFile.WriteString(patch + "\n"); err != nil {
		patchFile.Close()
		return false, pipeline.Wrap(pipeline.KindHubUnavailable, "write patch file", err)
	}
	patchFile.Close()

	if out, err := m.hub.Apply(patchFile.Name()); err != nil {
		return false, pipeline.Errorf(pipeline.KindPatchConflict,
			"patch does not apply: %s", rejectedHunks(out))
	}
	return true, nil
}

// ResetTo hard-resets the hub's current branch pointer and working tree to a
// named branch.
func (m *Manager) ResetTo(branch string) error {
	if err := m.hub.Checkout(branch); err != nil {
		return err
	}
	return m.hub.ResetHard(branch)
}

// Cleanup deletes the given derivative branches. Non-existence is not an
// error.
func (m *Manager) Cleanup(branches []string) error {
	for _, branch := range branches {
		if err := m.hub.DeleteBranch(branch); err != nil {
			return fmt.Errorf("delete branch %s: %w", branch, err)
		}
	}
	return nil
}

// Destroy removes the hub directory entirely. Used only when
// pipeline.cleanup_hub_on_failure is set.
func (m *Manager) Destroy() error {
	if m.hub == nil {
		return nil
	}
	return os.RemoveAll(m.hub.Dir())
}

// withRetry runs op up to three times with exponential backoff.
func (m *Manager) withRetry(what string, op func() error) error {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		m.log.Warn("hub operation failed",
			zap.String("op", what), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < 3 {
			m.sleep(time.Duration(attempt) * time.Second)
		}
	}
	return err
}

// rejectedHunks extracts the informative lines from git apply output.
func rejectedHunks(out string) string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "error:") || strings.HasPrefix(line, "Falling back") {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return strings.TrimSpace(out)
	}
	return strings.Join(lines, "; ")
}
