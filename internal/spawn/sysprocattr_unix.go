//go:build !windows

package spawn

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the guest in its own process group so that
// signals can be delivered to the whole tree.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
