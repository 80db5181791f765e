//go:build windows

package spawn

import (
	"errors"
	"os"
	"os/exec"
)

func attachChannel(cmd *exec.Cmd, f *os.File) error {
	return errors.New("spawn: inherited channels are not supported on windows")
}
