//go:build windows

package signals

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

// Kill emulates signal delivery on Windows. Only termination is
// expressible: SIGKILL and SIGTERM end the target outright, "0" probes
// for existence, and everything else reports ErrUnsupported.
func Kill(pid int, name string) error {
	sig, canonical, err := Lookup(name)
	if err != nil {
		return err
	}
	if canonical == "0" {
		alive, err := Alive(pid)
		if err != nil {
			return err
		}
		if !alive {
			return fmt.Errorf("probe pid %d: %w", pid, ErrNoProcess)
		}
		return nil
	}
	switch sig {
	case syscall.SIGKILL, syscall.SIGTERM:
		proc, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("signal %s pid %d: %w", canonical, pid, ErrNoProcess)
		}
		if err := proc.Kill(); err != nil {
			return fmt.Errorf("signal %s pid %d: %w", canonical, pid, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, canonical)
	}
}

// Alive reports whether pid refers to a live process.
func Alive(pid int) (bool, error) {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			return false, nil
		}
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return true, nil
		}
		return false, err
	}
	defer windows.CloseHandle(handle)

	var code uint32
	if err := windows.GetExitCodeProcess(handle, &code); err != nil {
		return false, err
	}
	return code == uint32(windows.STILL_ACTIVE), nil
}
