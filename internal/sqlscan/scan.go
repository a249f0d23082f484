// Package sqlscan finds SQL literals embedded in Python source and rewrites
// them in place. Sites are located by line span; a replacement preserves the
// indentation of the first line and reports the line-count delta so later
// sites in the same file can be reindexed.
package sqlscan

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/lucasnoah/commitly/internal/pipeline"
)

var (
	sqlKeywords = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "WITH"}
	defRe       = regexp.MustCompile(`^\s*(?:async\s+)?def\s+([A-Za-z_]\w*)`)
	tableRe     = regexp.MustCompile(`(?i)(?:FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

// looksLikeSQL reports whether a string literal's content reads as a query.
func looksLikeSQL(text string) bool {
	upper := strings.ToUpper(strings.TrimSpace(text))
	for _, kw := range sqlKeywords {
		if strings.HasPrefix(upper, kw+" ") || strings.HasPrefix(upper, kw+"\n") {
			return true
		}
	}
	return false
}

// Tables extracts the table names a query references, in first-appearance
// order with duplicates removed.
func Tables(query string) []string {
	seen := make(map[string]bool)
	var tables []string
	for _, m := range tableRe.FindAllStringSubmatch(query, -1) {
		name := strings.ToLower(m[1])
		if !seen[name] {
			seen[name] = true
			tables = append(tables, name)
		}
	}
	return tables
}

// ScanFiles walks the given changed files and collects every embedded query
// site from the Python sources among them. Sites come back in a stable order:
// by file path, then by line.
func ScanFiles(paths []string, dialect string) (bool, []pipeline.QuerySite, error) {
	var sites []pipeline.QuerySite
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	for _, path := range sorted {
		if !strings.HasSuffix(path, ".py") {
			continue
		}
		fileSites, err := ScanFile(path, dialect)
		if err != nil {
			// a file that cannot be scanned is a soft skip, not a failure
			continue
		}
		sites = append(sites, fileSites...)
	}
	return len(sites) > 0, sites, nil
}

// ScanFile extracts the query sites from one Python file.
func ScanFile(path, dialect string) ([]pipeline.QuerySite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	lines := strings.Split(string(data), "\n")

	var sites []pipeline.QuerySite
	symbol := ""

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if m := defRe.FindStringSubmatch(line); m != nil {
			symbol = m[1]
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}

		query, endLine, ok := literalAt(lines, i)
		if !ok || !looksLikeSQL(query) {
			continue
		}

		sites = append(sites, pipeline.QuerySite{
			FilePath:     path,
			Symbol:       symbol,
			LineStart:    i + 1,
			LineEnd:      endLine + 1,
			OriginalText: strings.Join(lines[i:endLine+1], "\n"),
			Query:        strings.TrimSpace(query),
			Dialect:      dialect,
			Tables:       Tables(query),
		})
		i = endLine
	}
	return sites, nil
}

// literalAt finds the first string literal starting on lines[i] and returns
// its content and the index of the line it closes on. Triple-quoted literals
// may span lines; plain literals must close on the same line.
func literalAt(lines []string, i int) (string, int, bool) {
	line := lines[i]
	for _, delim := range []string{`"""`, `'''`} {
		start := strings.Index(line, delim)
		if start < 0 {
			continue
		}
		rest := line[start+3:]
		if end := strings.Index(rest, delim); end >= 0 {
			return rest[:end], i, true
		}
		var parts []string
		parts = append(parts, rest)
		for j := i + 1; j < len(lines); j++ {
			if end := strings.Index(lines[j], delim); end >= 0 {
				parts = append(parts, lines[j][:end])
				return strings.Join(parts, "\n"), j, true
			}
			parts = append(parts, lines[j])
		}
		return "", i, false // unterminated
	}
	for _, delim := range []string{`"`, `'`} {
		start := strings.Index(line, delim)
		if start < 0 {
			continue
		}
		rest := line[start+1:]
		if end := indexUnescaped(rest, delim[0]); end >= 0 {
			return rest[:end], i, true
		}
	}
	return "", i, false
}

// indexUnescaped finds the first unescaped occurrence of quote in s.
func indexUnescaped(s string, quote byte) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return -1
}
