package agents

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/lucasnoah/commitly/internal/hub"
	"github.com/lucasnoah/commitly/internal/pipeline"
)

// cloneCommitMessage is the fixed message for the clone branch commit.
const cloneCommitMessage = "commitly: apply user commits"

// Clone produces an isolated snapshot of the user's just-committed state on
// the hub, ready for validation.
type Clone struct {
	Hub *hub.Manager
}

func (a *Clone) Name() string { return "clone" }

// CloneData is the clone agent's structured output.
type CloneData struct {
	HubHead      string   `json:"hub_head"`
	AppliedSHAs  []string `json:"applied_shas"`
	ChangedFiles []string `json:"changed_files"`
	PatchEmpty   bool     `json:"patch_empty"`
}

func (a *Clone) Execute(ctx context.Context, rc *pipeline.RunContext, log *zap.Logger) (any, error) {
	hubPath, err := a.Hub.Ensure()
	if err != nil {
		return nil, err
	}
	rc.HubPath = hubPath
	log.Info("hub ready", zap.String("path", hubPath))

	branch := rc.BranchFor("clone")
	if err := a.Hub.CreateAgentBranch(rc.WorkingBranch, branch); err != nil {
		return nil, err
	}
	rc.CloneBranch = branch

	anchor, err := a.Hub.Hub().Head()
	if err != nil {
		return nil, pipeline.Wrap(pipeline.KindHubUnavailable, "read rollback anchor", err)
	}
	rc.RollbackAnchor = anchor

	applied, err := a.Hub.ApplyUserDiff()
	if err != nil {
		return nil, err
	}
	if !applied {
		log.Info("no patch to apply; upstream already has the local tip")
	}

	changed, err := a.changedFiles(rc)
	if err != nil {
		return nil, err
	}
	rc.ChangedFiles = changed
	log.Info("changed files collected", zap.Int("count", len(changed)))

	if err := a.verifyStatus(rc, changed); err != nil {
		return nil, err
	}

	head, err := a.Hub.Hub().CommitAll(cloneCommitMessage)
	if err != nil {
		return nil, pipeline.Wrap(pipeline.KindHubUnavailable, "commit clone branch", err)
	}

	var shas []string
	for _, c := range rc.UserCommits {
		shas = append(shas, c.SHA)
	}
	return &CloneData{
		HubHead:      head,
		AppliedSHAs:  shas,
		ChangedFiles: changed,
		PatchEmpty:   !applied,
	}, nil
}

// changedFiles lists the files the user's commits touched, as absolute hub
// paths.
func (a *Clone) changedFiles(rc *pipeline.RunContext) ([]string, error) {
	base := rc.RemoteName + "/" + rc.WorkingBranch
	relative, err := a.Hub.Workspace().DiffNameOnly(base, "HEAD")
	if err != nil {
		return nil, pipeline.Wrap(pipeline.KindHubUnavailable, "list changed files", err)
	}
	files := make([]string, 0, len(relative))
	for _, rel := range relative {
		files = append(files, filepath.Join(rc.HubPath, rel))
	}
	return files, nil
}

// verifyStatus confirms the hub's working tree contains no changes outside
// the expected set.
func (a *Clone) verifyStatus(rc *pipeline.RunContext, expected []string) error {
	entries, err := a.Hub.Hub().StatusPorcelain()
	if err != nil {
		return pipeline.Wrap(pipeline.KindHubUnavailable, "hub status", err)
	}
	allowed := make(map[string]bool, len(expected))
	for _, abs := range expected {
		rel, err := filepath.Rel(rc.HubPath, abs)
		if err == nil {
			allowed[rel] = true
		}
	}
	var unexpected []string
	for _, entry := range entries {
		fields := strings.Fields(entry)
		if len(fields) < 2 {
			continue
		}
		path := fields[len(fields)-1]
		if !allowed[path] {
			unexpected = append(unexpected, path)
		}
	}
	if len(unexpected) > 0 {
		return pipeline.Errorf(pipeline.KindVerificationMismatch,
			"unexpected files in hub status: %s", strings.Join(unexpected, ", "))
	}
	return nil
}
