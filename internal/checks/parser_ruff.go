package checks

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RuffParser parses ruff's default "path:line:col: CODE message" output.
type RuffParser struct{}

var ruffLine = regexp.MustCompile(`^(.+?):(\d+):\d+:\s+([A-Z]+\d+)\s+(.*)$`)

func (p *RuffParser) Parse(stdout, stderr string, exitCode int) (string, []Finding) {
	if exitCode == 0 {
		return "passed", nil
	}
	var findings []Finding
	for _, line := range strings.Split(stdout, "\n") {
		m := ruffLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		findings = append(findings, Finding{
			File:     m[1],
			Line:     lineNo,
			Severity: "warning",
			Message:  m[4],
			Rule:     m[3],
		})
	}
	return fmt.Sprintf("%d lint findings", len(findings)), findings
}
