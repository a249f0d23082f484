// Package report renders run summaries to markdown and answers the
// date-range queries behind the report subcommand. Requested pdf or html
// output degrades to markdown.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/lucasnoah/commitly/internal/audit"
	"github.com/lucasnoah/commitly/internal/pipeline"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug reduces a commit message to a filename-safe fragment.
func Slug(message string) string {
	s := slugRe.ReplaceAllString(strings.ToLower(message), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "run"
	}
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}

// NormalizeFormat degrades unsupported formats to markdown.
func NormalizeFormat(format string) string {
	switch format {
	case "md":
		return "md"
	case "pdf", "html":
		return "md" // renderers for these are not wired; degrade
	default:
		return "md"
	}
}

// RunReport renders the current run's agent caches into one markdown
// document and writes it under the reports directory. Returns the file path.
func RunReport(store *pipeline.Store, rc *pipeline.RunContext, now time.Time) (string, error) {
	var b strings.Builder

	message := ""
	if len(rc.UserCommits) > 0 {
		message = rc.UserCommits[0].Message
	}

	fmt.Fprintf(&b, "# Commitly run %s\n\n", rc.RunID)
	fmt.Fprintf(&b, "- project: %s\n", rc.ProjectName)
	fmt.Fprintf(&b, "- branch: %s\n", rc.WorkingBranch)
	fmt.Fprintf(&b, "- commit: %s\n", message)
	fmt.Fprintf(&b, "- date: %s\n\n", now.Format("2006-01-02 15:04"))

	b.WriteString("## Agents\n\n")
	b.WriteString("| agent | status | branch | elapsed |\n")
	b.WriteString("|-------|--------|--------|---------|\n")
	for _, name := range []string{"clone", "code", "test", "refactor", "sync", "notify", "report"} {
		out, ok := rc.Outcomes[name]
		if !ok {
			continue
		}
		elapsed := ""
		if !out.EndedAt.IsZero() {
			elapsed = out.EndedAt.Sub(out.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", name, out.Status, out.Branch, elapsed)
	}
	b.WriteString("\n")

	writeQuerySection(&b, store)
	writeRefactorSection(&b, store)

	dir := store.ReportsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.md", now.Format("2006-01-02"), Slug(message)))
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// writeQuerySection summarizes the optimizer's site reports, if any.
func writeQuerySection(b *strings.Builder, store *pipeline.Store) {
	_, raw, err := store.LoadAgentCache("test")
	if err != nil {
		return
	}
	var data struct {
		Sites []struct {
			FilePath        string  `json:"file_path"`
			LineStart       int     `json:"line_start"`
			OriginalCost    float64 `json:"original_cost"`
			ChosenCost      float64 `json:"chosen_cost"`
			ImprovementRate float64 `json:"improvement_rate"`
			Improved        bool    `json:"improved"`
		} `json:"sites"`
	}
	if json.Unmarshal(raw, &data) != nil || len(data.Sites) == 0 {
		return
	}
	b.WriteString("## Query optimization\n\n")
	b.WriteString("| site | original cost | chosen cost | improvement |\n")
	b.WriteString("|------|---------------|-------------|-------------|\n")
	for _, s := range data.Sites {
		improvement := "kept original"
		if s.Improved {
			improvement = fmt.Sprintf("%.1f%%", s.ImprovementRate)
		}
		fmt.Fprintf(b, "| %s:%d | %.1f | %.1f | %s |\n",
			filepath.Base(s.FilePath), s.LineStart, s.OriginalCost, s.ChosenCost, improvement)
	}
	b.WriteString("\n")
}

// writeRefactorSection summarizes the per-file refactor results, if any.
func writeRefactorSection(b *strings.Builder, store *pipeline.Store) {
	_, raw, err := store.LoadAgentCache("refactor")
	if err != nil {
		return
	}
	var data struct {
		Files []struct {
			File   string `json:"file"`
			Status string `json:"status"`
		} `json:"files"`
	}
	if json.Unmarshal(raw, &data) != nil || len(data.Files) == 0 {
		return
	}
	b.WriteString("## Refactoring\n\n")
	for _, f := range data.Files {
		fmt.Fprintf(b, "- %s: %s\n", filepath.Base(f.File), f.Status)
	}
	b.WriteString("\n")
}

// RangeReport renders the audit trail for runs started inside [from, to].
func RangeReport(db *audit.DB, from, to time.Time) (string, error) {
	runs, err := db.RunsBetween(from, to)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Commitly report %s — %s\n\n", from.Format("2006-01-02"), to.Format("2006-01-02"))
	if len(runs) == 0 {
		b.WriteString("No runs in this period.\n")
		return b.String(), nil
	}

	for _, run := range runs {
		fmt.Fprintf(&b, "## %s (%s)\n\n", run.RunID, run.Status)
		fmt.Fprintf(&b, "- project: %s, branch: %s\n", run.Project, run.Branch)
		fmt.Fprintf(&b, "- started: %s\n", run.StartedAt)
		outcomes, err := db.OutcomesForRun(run.RunID)
		if err != nil {
			return "", err
		}
		for _, out := range outcomes {
			line := fmt.Sprintf("- %s: %s", out.Agent, out.Status)
			if out.ErrorKind != "" {
				line += fmt.Sprintf(" (%s: %s)", out.ErrorKind, out.ErrorMsg)
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
