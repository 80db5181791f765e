//go:build windows

package ipc

import (
	"errors"
	"os"
)

// Pair is unavailable on Windows: os/exec cannot inherit extra
// descriptors there, so spawned children never receive a channel.
func Pair(opts ...Option) (*Channel, *os.File, error) {
	return nil, nil, errors.New("ipc pair is not supported on windows")
}
