package sqlscan

import (
	"fmt"
	"os"
	"strings"

	"github.com/lucasnoah/commitly/internal/pipeline"
)

// Replacement is the result of splicing a chosen query into a file.
type Replacement struct {
	// Delta is the line-count change; later sites in the same file must be
	// shifted by it.
	Delta int
	// Previous holds the file bytes before the splice, for revert.
	Previous []byte
}

// Replace splices the chosen query into the site's line span. The site's
// original text must still match the file — the span is verified before any
// write. Every line of the chosen query after the first inherits the
// indentation prefix of the site's first line. When chosen equals the site's
// query the file is left byte-identical.
func Replace(site *pipeline.QuerySite, chosen string) (*Replacement, error) {
	data, err := os.ReadFile(site.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", site.FilePath, err)
	}
	lines := strings.Split(string(data), "\n")

	if site.LineStart < 1 || site.LineEnd > len(lines) || site.LineStart > site.LineEnd {
		return nil, pipeline.Errorf(pipeline.KindInternalInvariantViolated,
			"site span %d-%d out of range for %s", site.LineStart, site.LineEnd, site.FilePath)
	}
	block := strings.Join(lines[site.LineStart-1:site.LineEnd], "\n")
	if block != site.OriginalText {
		return nil, pipeline.Errorf(pipeline.KindInternalInvariantViolated,
			"site %s:%d no longer matches its recorded text", site.FilePath, site.LineStart)
	}

	if chosen == site.Query {
		return &Replacement{Delta: 0, Previous: data}, nil
	}

	indent := indentOf(lines[site.LineStart-1])
	newBlock := strings.Replace(block, site.Query, reindent(chosen, indent), 1)
	if newBlock == block {
		return nil, pipeline.Errorf(pipeline.KindQueryParseFailed,
			"query text not found inside site %s:%d", site.FilePath, site.LineStart)
	}

	newLines := append([]string{}, lines[:site.LineStart-1]...)
	blockLines := strings.Split(newBlock, "\n")
	newLines = append(newLines, blockLines...)
	newLines = append(newLines, lines[site.LineEnd:]...)

	if err := os.WriteFile(site.FilePath, []byte(strings.Join(newLines, "\n")), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", site.FilePath, err)
	}

	delta := len(blockLines) - (site.LineEnd - site.LineStart + 1)
	site.LineEnd += delta
	return &Replacement{Delta: delta, Previous: data}, nil
}

// Revert restores the file to its pre-replacement bytes.
func (r *Replacement) Revert(path string) error {
	return os.WriteFile(path, r.Previous, 0o644)
}

// ShiftAfter reindexes sites in the same file that start after the given
// line, moving their span by delta lines.
func ShiftAfter(sites []pipeline.QuerySite, file string, afterLine, delta int) {
	if delta == 0 {
		return
	}
	for i := range sites {
		if sites[i].FilePath == file && sites[i].LineStart > afterLine {
			sites[i].LineStart += delta
			sites[i].LineEnd += delta
		}
	}
}

// indentOf returns the leading whitespace of a line.
func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// reindent prefixes every continuation line of text with indent.
func reindent(text, indent string) string {
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = indent + strings.TrimLeft(lines[i], " \t")
	}
	return strings.Join(lines, "\n")
}
