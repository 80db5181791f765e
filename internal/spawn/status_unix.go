//go:build !windows

package spawn

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/Paintersrp/proclet/internal/exitcode"
	"github.com/Paintersrp/proclet/internal/signals"
)

func decodeStatus(state *os.ProcessState, waitErr error) Status {
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return Status{Code: exitcode.FatalError, Err: waitErr}
	}
	if state == nil {
		return Status{Code: exitcode.FatalError, Err: waitErr}
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		sig := ws.Signal()
		return Status{
			Code:   exitcode.FromSignal(int(sig)),
			Signal: signals.Name(sig),
		}
	}
	code := state.ExitCode()
	if code < 0 {
		return Status{Code: exitcode.FatalError, Err: waitErr}
	}
	return Status{Code: exitcode.Code(code)}
}
