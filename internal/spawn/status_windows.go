//go:build windows

package spawn

import (
	"errors"
	"os"
	"os/exec"

	"github.com/Paintersrp/proclet/internal/exitcode"
)

func decodeStatus(state *os.ProcessState, waitErr error) Status {
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return Status{Code: exitcode.FatalError, Err: waitErr}
	}
	if state == nil {
		return Status{Code: exitcode.FatalError, Err: waitErr}
	}
	code := state.ExitCode()
	if code < 0 {
		return Status{Code: exitcode.FatalError, Err: waitErr}
	}
	return Status{Code: exitcode.Code(code)}
}
