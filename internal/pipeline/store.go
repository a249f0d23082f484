package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store persists run state under <workspace>/.commitly. The run context is
// rewritten after every agent so a partial run is inspectable post-mortem,
// and each agent's output lands in its own cache file.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at the workspace's .commitly directory.
func NewStore(workspace string) *Store {
	return &Store{baseDir: filepath.Join(workspace, ".commitly")}
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// CacheDir returns the agent cache directory.
func (s *Store) CacheDir() string {
	return filepath.Join(s.baseDir, "cache")
}

// ReportsDir returns the rendered-report directory.
func (s *Store) ReportsDir() string {
	return filepath.Join(s.baseDir, "reports")
}

// contextPath is where the run context JSON lives.
func (s *Store) contextPath() string {
	return filepath.Join(s.CacheDir(), "run_context.json")
}

// agentCachePath is where one agent's output JSON lives.
func (s *Store) agentCachePath(agent string) string {
	return filepath.Join(s.CacheDir(), agent+".json")
}

// SaveContext serializes the run context atomically.
func (s *Store) SaveContext(rc *RunContext) error {
	return s.writeJSON(s.contextPath(), rc)
}

// LoadContext reads the persisted run context. Collaborator handles are not
// restored; the caller reinjects them.
func (s *Store) LoadContext() (*RunContext, error) {
	data, err := os.ReadFile(s.contextPath())
	if err != nil {
		return nil, fmt.Errorf("read run context: %w", err)
	}
	var rc RunContext
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("parse run context: %w", err)
	}
	return &rc, nil
}

// AgentCache is the on-disk shape of one agent's cache file.
type AgentCache struct {
	RunID     string    `json:"run_id"`
	AgentName string    `json:"agent_name"`
	Branch    string    `json:"branch,omitempty"`
	Status    Status    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Data      any       `json:"data"`
}

// SaveAgentCache writes one agent's cache file from its outcome.
func (s *Store) SaveAgentCache(runID string, out *Outcome) error {
	cache := AgentCache{
		RunID:     runID,
		AgentName: out.Agent,
		Branch:    out.Branch,
		Status:    out.Status,
		StartedAt: out.StartedAt,
		EndedAt:   out.EndedAt,
		Data:      out.Data,
	}
	return s.writeJSON(s.agentCachePath(out.Agent), cache)
}

// LoadAgentCache reads one agent's cache file. The Data field is returned as
// raw JSON for the caller to decode into its own type.
func (s *Store) LoadAgentCache(agent string) (*AgentCache, json.RawMessage, error) {
	data, err := os.ReadFile(s.agentCachePath(agent))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s cache: %w", agent, err)
	}
	var envelope struct {
		AgentCache
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, nil, fmt.Errorf("parse %s cache: %w", agent, err)
	}
	return &envelope.AgentCache, envelope.Data, nil
}

// SaveRun persists the final run record.
func (s *Store) SaveRun(run *Run) error {
	return s.writeJSON(filepath.Join(s.CacheDir(), "run.json"), run)
}

// LoadRun reads the last persisted run record.
func (s *Store) LoadRun() (*Run, error) {
	data, err := os.ReadFile(filepath.Join(s.CacheDir(), "run.json"))
	if err != nil {
		return nil, fmt.Errorf("read run record: %w", err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parse run record: %w", err)
	}
	return &run, nil
}

// writeJSON writes indented JSON via a temp file and rename so readers never
// observe a partial file.
func (s *Store) writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
