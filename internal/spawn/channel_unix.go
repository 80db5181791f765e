//go:build !windows

package spawn

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/Paintersrp/proclet/internal/ipc"
)

// attachChannel inherits the guest half of an IPC pair into the child and
// tells the guest which descriptor carries it. Extra files begin at fd 3.
func attachChannel(cmd *exec.Cmd, f *os.File) error {
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.ExtraFiles = append(cmd.ExtraFiles, f)
	fd := 3 + len(cmd.ExtraFiles) - 1
	cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%d", ipc.EnvChannelFD, fd))
	return nil
}
