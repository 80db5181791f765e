//go:build windows

package spawn

import "os/exec"

func configureSysProcAttr(cmd *exec.Cmd) {}
