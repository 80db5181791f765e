// Package signals resolves portable signal names, relays delivered
// signals onto the scheduler, and probes or signals other processes.
//
// Name resolution accepts the canonical SIG-prefixed form ("SIGTERM"),
// the bare form ("TERM"), and decimal numbers ("15"). The number 0 is
// the conventional existence probe and resolves, but it is not a
// deliverable signal and cannot be listened for.
package signals

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

var (
	// ErrUnknown reports a name or number with no signal on this
	// platform.
	ErrUnknown = errors.New("unknown signal")
	// ErrUnblockable reports an attempt to listen for a signal whose
	// default action cannot be replaced.
	ErrUnblockable = errors.New("signal cannot be trapped")
	// ErrNotDeliverable reports an attempt to listen for the probe
	// pseudo-signal 0.
	ErrNotDeliverable = errors.New("signal 0 is a probe, not a deliverable signal")
	// ErrNoProcess reports a probe or kill aimed at a PID that does
	// not exist.
	ErrNoProcess = errors.New("no such process")
	// ErrUnsupported reports a signal the platform cannot deliver to
	// another process.
	ErrUnsupported = errors.New("signal delivery unsupported on this platform")
)

// Lookup resolves name to its signal value and canonical name.
func Lookup(name string) (syscall.Signal, string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(name))
	if trimmed == "" {
		return 0, "", fmt.Errorf("%w: empty name", ErrUnknown)
	}
	if num, err := strconv.Atoi(trimmed); err == nil {
		if num == 0 {
			return 0, "0", nil
		}
		if num < 0 {
			return 0, "", fmt.Errorf("%w: %d", ErrUnknown, num)
		}
		sig := syscall.Signal(num)
		canonical := signalName(sig)
		if canonical == "" {
			return 0, "", fmt.Errorf("%w: %d", ErrUnknown, num)
		}
		return sig, canonical, nil
	}
	if !strings.HasPrefix(trimmed, "SIG") {
		trimmed = "SIG" + trimmed
	}
	sig := signalNum(trimmed)
	if sig == 0 {
		return 0, "", fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	return sig, trimmed, nil
}

// Name returns the canonical name for sig, or its decimal form when
// the platform has no name for it.
func Name(sig os.Signal) string {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return sig.String()
	}
	if name := signalName(s); name != "" {
		return name
	}
	return strconv.Itoa(int(s))
}

// Unblockable reports whether the platform refuses to replace the
// default action for sig.
func Unblockable(sig syscall.Signal) bool {
	return unblockable(sig)
}
