// Package exitcode defines the process exit-code contract shared by the
// host, the spawner, and the CLI.
package exitcode

import "fmt"

// Code is a process exit status.
//
// Codes 0 through 9 carry host-assigned meanings; codes above 128
// encode death by signal as 128 plus the signal number, matching shell
// convention. Codes 3, 4, and 10 are reserved for bootstrap failures
// and are never produced here.
type Code int

const (
	// OK is a successful exit.
	OK Code = 0
	// UncaughtFailure is the default code when a failure reaches the
	// top of the loop with no interceptor installed.
	UncaughtFailure Code = 1
	// FatalError marks an unrecoverable internal error.
	FatalError Code = 5
	// HandlerFailure is forced when an exit handler itself fails, so a
	// broken handler cannot re-enter the failure path forever.
	HandlerFailure Code = 7
	// InvalidArgument reports unusable command-line input.
	InvalidArgument Code = 9
)

// signalBase offsets signal deaths per shell convention.
const signalBase = 128

// FromSignal returns the exit code conventionally reported for a
// process killed by signal number num.
func FromSignal(num int) Code {
	return Code(signalBase + num)
}

// SignalNumber extracts the killing signal from a signal-death code.
// The second return is false for ordinary codes.
func (c Code) SignalNumber() (int, bool) {
	if c > signalBase {
		return int(c - signalBase), true
	}
	return 0, false
}

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case UncaughtFailure:
		return "uncaught failure"
	case FatalError:
		return "fatal error"
	case HandlerFailure:
		return "exit handler failure"
	case InvalidArgument:
		return "invalid argument"
	}
	if num, ok := c.SignalNumber(); ok {
		return fmt.Sprintf("killed by signal %d", num)
	}
	return fmt.Sprintf("exit code %d", int(c))
}
