//go:build windows

package signals

import "syscall"

// SIGBREAK is delivered for Ctrl+Break on Windows consoles and has no
// syscall constant.
const sigBreak = syscall.Signal(21)

var winNames = map[string]syscall.Signal{
	"SIGHUP":   syscall.SIGHUP,
	"SIGINT":   syscall.SIGINT,
	"SIGQUIT":  syscall.SIGQUIT,
	"SIGILL":   syscall.SIGILL,
	"SIGTRAP":  syscall.SIGTRAP,
	"SIGABRT":  syscall.SIGABRT,
	"SIGBUS":   syscall.SIGBUS,
	"SIGFPE":   syscall.SIGFPE,
	"SIGKILL":  syscall.SIGKILL,
	"SIGSEGV":  syscall.SIGSEGV,
	"SIGPIPE":  syscall.SIGPIPE,
	"SIGALRM":  syscall.SIGALRM,
	"SIGTERM":  syscall.SIGTERM,
	"SIGBREAK": sigBreak,
}

var winNumbers = func() map[syscall.Signal]string {
	m := make(map[syscall.Signal]string, len(winNames))
	for name, sig := range winNames {
		m[sig] = name
	}
	return m
}()

func signalNum(name string) syscall.Signal {
	return winNames[name]
}

func signalName(sig syscall.Signal) string {
	return winNumbers[sig]
}

func unblockable(sig syscall.Signal) bool {
	return sig == syscall.SIGKILL
}
