// Package llm is the language-model handle consumed by the Test and Refactor
// agents. Callers must treat an unavailable handle as a degrade to
// no-op, never as a pipeline failure.
package llm

import (
	"context"
	"strconv"
	"strings"

	"github.com/lucasnoah/commitly/internal/prompt"
)

// Client is the language-model handle threaded through the run context.
type Client interface {
	// Complete returns the model's answer to a prompt.
	Complete(ctx context.Context, promptText, system string) (string, error)
	// SuggestRefactoring returns a refactored version of a whole file.
	SuggestRefactoring(ctx context.Context, code, filePath, rules string) (string, error)
	// SuggestQueries returns up to n functionally identical rewrites of a
	// query. A malformed model response yields an empty slice.
	SuggestQueries(ctx context.Context, schema, query, dialect string, n int) ([]string, error)
}

// suggestQueries renders the candidate prompt and parses the response into a
// list of queries. Shared by every Client implementation built on Complete.
func suggestQueries(ctx context.Context, c Client, schema, query, dialect string, n int) ([]string, error) {
	userPrompt, err := prompt.Render(prompt.SQLCandidates, prompt.Vars{
		"schema":  schema,
		"query":   query,
		"dialect": dialect,
		"count":   strconv.Itoa(n),
	})
	if err != nil {
		return nil, err
	}
	system, err := prompt.Render(prompt.SQLCandidatesSystem, prompt.Vars{"dialect": dialect})
	if err != nil {
		return nil, err
	}
	answer, err := c.Complete(ctx, userPrompt, system)
	if err != nil {
		return nil, err
	}
	return ParseQueryList(answer, n), nil
}

// ParseQueryList extracts at most n SQL statements from a model answer, one
// per line. Fences, blank lines, and chatter are dropped; anything that does
// not read as SQL is skipped.
func ParseQueryList(answer string, n int) []string {
	var queries []string
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		// drop "1. " style numbering
		if idx := strings.Index(line, ". "); idx > 0 && idx <= 3 {
			if _, err := strconv.Atoi(line[:idx]); err == nil {
				line = strings.TrimSpace(line[idx+2:])
			}
		}
		upper := strings.ToUpper(line)
		if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") &&
			!strings.HasPrefix(upper, "INSERT") && !strings.HasPrefix(upper, "UPDATE") &&
			!strings.HasPrefix(upper, "DELETE") {
			continue
		}
		queries = append(queries, strings.TrimSuffix(line, ";"))
		if len(queries) == n {
			break
		}
	}
	return queries
}
