package checks

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MypyParser parses mypy's "path:line: severity: message" output.
type MypyParser struct{}

var mypyLine = regexp.MustCompile(`^(.+?):(\d+):\s+(error|warning|note):\s+(.*)$`)

func (p *MypyParser) Parse(stdout, stderr string, exitCode int) (string, []Finding) {
	if exitCode == 0 {
		return "passed", nil
	}
	var findings []Finding
	for _, line := range strings.Split(stdout, "\n") {
		m := mypyLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil || m[3] == "note" {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		findings = append(findings, Finding{
			File:     m[1],
			Line:     lineNo,
			Severity: m[3],
			Message:  m[4],
		})
	}
	return fmt.Sprintf("%d type findings", len(findings)), findings
}
