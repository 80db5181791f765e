//go:build !windows

package ipc

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Pair creates a connected channel pair. The returned channel is the
// local end; the file is the peer end, meant to be inherited by a
// spawned child and reopened there with FromEnv.
func Pair(opts ...Option) (*Channel, *os.File, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	local := os.NewFile(uintptr(fds[0]), "ipc-local")
	peer := os.NewFile(uintptr(fds[1]), "ipc-peer")
	return New(local, opts...), peer, nil
}
