//go:build !windows

package signals

import (
	"errors"
	"fmt"
	"syscall"
)

// Kill sends the named signal to pid. The name "0" performs the
// conventional existence probe without delivering anything.
func Kill(pid int, name string) error {
	sig, canonical, err := Lookup(name)
	if err != nil {
		return err
	}
	if err := syscall.Kill(pid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("signal %s pid %d: %w", canonical, pid, ErrNoProcess)
		}
		return fmt.Errorf("signal %s pid %d: %w", canonical, pid, err)
	}
	return nil
}

// Alive reports whether pid refers to a live process. A process owned
// by another user counts as alive.
func Alive(pid int) (bool, error) {
	err := syscall.Kill(pid, 0)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, syscall.ESRCH):
		return false, nil
	case errors.Is(err, syscall.EPERM):
		return true, nil
	default:
		return false, err
	}
}
