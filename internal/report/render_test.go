package report

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lucasnoah/commitly/internal/pipeline"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Fix the login timeout!", "fix-the-login-timeout"},
		{"", "run"},
		{"___", "run"},
		{strings.Repeat("a", 60), strings.Repeat("a", 40)},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeFormat_Degrades(t *testing.T) {
	for _, format := range []string{"md", "pdf", "html", "docx", ""} {
		if got := NormalizeFormat(format); got != "md" {
			t.Errorf("NormalizeFormat(%q) = %q", format, got)
		}
	}
}

func TestRunReport(t *testing.T) {
	workspace := t.TempDir()
	store := pipeline.NewStore(workspace)

	started := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)
	rc := &pipeline.RunContext{
		RunID:         "r1",
		ProjectName:   "proj",
		WorkingBranch: "main",
		UserCommits:   []pipeline.CommitInfo{{Message: "Fix login timeout"}},
		Outcomes: map[string]*pipeline.Outcome{
			"clone": {Agent: "clone", Status: pipeline.StatusSucceeded, Branch: "commitly/clone/r1",
				StartedAt: started, EndedAt: started.Add(2 * time.Second)},
			"test": {Agent: "test", Status: pipeline.StatusSucceeded, Branch: "commitly/test/r1",
				StartedAt: started, EndedAt: started.Add(9 * time.Second)},
		},
	}

	// seed a test cache with one improved site
	if err := store.SaveAgentCache("r1", &pipeline.Outcome{
		Agent:  "test",
		Status: pipeline.StatusSucceeded,
		Data: map[string]any{
			"sites": []map[string]any{{
				"file_path":        "/hub/app/repo.py",
				"line_start":       25,
				"original_cost":    37.8,
				"chosen_cost":      12.4,
				"improvement_rate": 67.2,
				"improved":         true,
			}},
		},
	}); err != nil {
		t.Fatal(err)
	}

	path, err := RunReport(store, rc, started)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(path, "2026-08-06-fix-login-timeout.md") {
		t.Errorf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		"# Commitly run r1",
		"| clone | succeeded |",
		"## Query optimization",
		"repo.py:25",
		"67.2%",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}
