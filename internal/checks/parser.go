package checks

import (
	"fmt"
	"strings"
)

// Parser turns raw tool output into a summary line and findings.
type Parser interface {
	Parse(stdout, stderr string, exitCode int) (string, []Finding)
}

// GenericParser reports pass/fail with the first line of output as summary.
type GenericParser struct{}

func (p *GenericParser) Parse(stdout, stderr string, exitCode int) (string, []Finding) {
	if exitCode == 0 {
		return "passed", nil
	}
	out := strings.TrimSpace(stdout + stderr)
	first := out
	if idx := strings.IndexByte(out, '\n'); idx >= 0 {
		first = out[:idx]
	}
	if first == "" {
		first = fmt.Sprintf("exited with code %d", exitCode)
	}
	return first, nil
}
