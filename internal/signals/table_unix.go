//go:build !windows

package signals

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func signalNum(name string) syscall.Signal {
	return unix.SignalNum(name)
}

func signalName(sig syscall.Signal) string {
	return unix.SignalName(sig)
}

func unblockable(sig syscall.Signal) bool {
	return sig == unix.SIGKILL || sig == unix.SIGSTOP
}
