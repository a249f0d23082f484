package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/commitly/internal/config"
	"github.com/lucasnoah/commitly/internal/gitx"
)

// CommitInfo describes one commit introduced by the user action that
// triggered the pipeline.
type CommitInfo struct {
	SHA       string    `json:"sha"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// QuerySite is a located SQL literal inside a source file. Created by the
// Code agent's extraction pass, consumed and possibly replaced by the Test
// agent's optimizer. Invariant: LineStart <= LineEnd, and the slice
// [LineStart, LineEnd] of the file equals OriginalText at discovery time.
type QuerySite struct {
	FilePath     string   `json:"file_path"`
	Symbol       string   `json:"symbol"`
	LineStart    int      `json:"line_start"`
	LineEnd      int      `json:"line_end"`
	OriginalText string   `json:"original_text"`
	Query        string   `json:"query"`
	Dialect      string   `json:"dialect"`
	Tables       []string `json:"referenced_tables"`
}

// ExecutionProfile describes how one of the project's commands is run.
type ExecutionProfile struct {
	Command     string `json:"command"`
	Timeout     int    `json:"timeout"` // seconds
	MaxMemory   int    `json:"max_memory"`
	Interpreter string `json:"interpreter"`
}

// LoggerFactory creates per-agent log sinks. Satisfied by logging.Factory.
type LoggerFactory interface {
	Open(name string) (*zap.Logger, string, func() error, error)
	LogsDir() string
}

// RunContext is the typed shared state threaded through all agents. It is
// exclusively owned by the orchestrator; agents read and mutate it only
// through the agent base wrapper, which reserializes it to disk on every
// return.
type RunContext struct {
	RunID       string `json:"run_id"`
	ProjectName string `json:"project_name"`

	WorkspacePath string `json:"workspace_path"`
	HubPath       string `json:"hub_path"`
	EnvFilePath   string `json:"env_file_path"`

	RemoteName    string       `json:"remote_name"`
	WorkingBranch string       `json:"working_branch"`
	UserCommits   []CommitInfo `json:"user_commits"`

	CloneBranch    string `json:"clone_branch,omitempty"`
	CodeBranch     string `json:"code_branch,omitempty"`
	TestBranch     string `json:"test_branch,omitempty"`
	RefactorBranch string `json:"refactor_branch,omitempty"`
	SyncBranch     string `json:"sync_branch,omitempty"`

	ChangedFiles       []string    `json:"changed_files"`
	HasEmbeddedQueries bool        `json:"has_embedded_queries"`
	QuerySites         []QuerySite `json:"embedded_query_sites,omitempty"`

	Exec     ExecutionProfile `json:"execution_profile"`
	TestExec ExecutionProfile `json:"test_profile"`

	Err            *Error              `json:"error,omitempty"`
	RollbackAnchor string              `json:"rollback_anchor,omitempty"`
	Outcomes       map[string]*Outcome `json:"outcomes"`

	// Collaborators, injected by the orchestrator. Not serialized.
	Git    gitx.Runner    `json:"-"`
	Logs   LoggerFactory  `json:"-"`
	Config *config.Config `json:"-"`
	LLM    any            `json:"-"` // llm.Client; any avoids the import here
}

// BranchFor returns the derivative branch name for an agent in this run.
func (rc *RunContext) BranchFor(agent string) string {
	return "commitly/" + agent + "/" + rc.RunID
}

// AgentBranches lists the derivative branches recorded so far, in creation
// order.
func (rc *RunContext) AgentBranches() []string {
	var branches []string
	for _, b := range []string{rc.CloneBranch, rc.CodeBranch, rc.TestBranch, rc.RefactorBranch} {
		if b != "" {
			branches = append(branches, b)
		}
	}
	return branches
}
