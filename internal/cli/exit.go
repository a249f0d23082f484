package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/lucasnoah/commitly/internal/pipeline"
)

// Exit code contract of the command surface.
const (
	ExitOK           = 0
	ExitPipelineFail = 1
	ExitDeclined     = 2
	ExitConfig       = 3
	ExitLockHeld     = 4
)

// ExitError carries a specific process exit code out of a command.
type ExitError struct {
	Code int
	Msg  string
}

func (e *ExitError) Error() string {
	return e.Msg
}

// exitCodeFor prints the error and maps it to the process exit code.
func exitCodeFor(err error) int {
	fmt.Fprintln(os.Stderr, err)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var pipeErr *pipeline.Error
	if errors.As(err, &pipeErr) && pipeErr.Kind == pipeline.KindLockHeld {
		return ExitLockHeld
	}
	return ExitPipelineFail
}

// configError wraps a configuration problem with exit code 3.
func configError(err error) error {
	return &ExitError{Code: ExitConfig, Msg: err.Error()}
}
