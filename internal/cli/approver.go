package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// TerminalApprover asks the yes/no question on an interactive terminal.
type TerminalApprover struct {
	In  io.Reader
	Out io.Writer
}

// Approve prints the summary and reads a y/n answer. Anything but "y" or
// "yes" declines.
func (t *TerminalApprover) Approve(summary string) (bool, error) {
	fmt.Fprintln(t.Out, strings.Repeat("=", 60))
	fmt.Fprintln(t.Out, "commitly change summary")
	fmt.Fprintln(t.Out, strings.Repeat("=", 60))
	fmt.Fprint(t.Out, summary)
	fmt.Fprint(t.Out, "\npush the approved result? (y/n): ")

	reader := bufio.NewReader(t.In)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// ScriptedApprover answers the gate without prompting.
type ScriptedApprover bool

func (s ScriptedApprover) Approve(string) (bool, error) {
	return bool(s), nil
}
