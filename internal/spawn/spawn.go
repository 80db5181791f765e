package spawn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/Paintersrp/proclet/internal/exitcode"
)

// Log stream identifiers for captured guest output.
const (
	LogSourceStdout = "stdout"
	LogSourceStderr = "stderr"
)

const defaultGrace = 2 * time.Second

// Log is a single line read from one of the guest's output streams while
// capture mode is enabled.
type Log struct {
	Source  string
	Message string
}

// Status reports how a guest finished. Signal carries the canonical name of
// the terminating signal when the guest was killed rather than exiting;
// Code folds signal deaths into the 128+N convention. Err is set only for
// wait failures that are not ordinary non-zero exits.
type Status struct {
	Code   exitcode.Code
	Signal string
	Err    error
}

// Spec describes a guest process to launch.
type Spec struct {
	// Command is the argv to execute. Command[0] is resolved via PATH.
	Command []string

	// Dir is the working directory for the guest. Empty inherits the
	// host's current directory.
	Dir string

	// Env is the complete environment for the guest, one "KEY=value" entry
	// per element. Nil inherits the host environment unchanged.
	Env []string

	// Stdin is wired to the guest's standard input when non-nil.
	Stdin io.Reader

	// Stdout and Stderr receive guest output when Capture is false. When
	// Capture is true both streams are scanned line by line and published
	// on the Logs channel instead.
	Stdout  io.Writer
	Stderr  io.Writer
	Capture bool

	// Channel, when non-nil, is the guest half of an IPC socket pair. It
	// is inherited as an extra file descriptor and advertised to the guest
	// through the channel environment variable. Unix only.
	Channel *os.File

	// Grace bounds how long Stop waits between the polite termination
	// request and the forced kill. Zero selects the default.
	Grace time.Duration
}

// Guest is a running child process started from a Spec.
type Guest struct {
	cmd     *exec.Cmd
	grace   time.Duration
	logs    chan Log
	done    chan struct{}
	status  Status
	started time.Time
}

// Start launches the guest described by spec. The returned Guest is already
// running; callers observe its lifetime through Wait, Done, and Logs.
func Start(ctx context.Context, spec Spec) (*Guest, error) {
	if len(spec.Command) == 0 {
		return nil, errors.New("spawn: guest requires a command")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cmd := exec.CommandContext(ctx, spec.Command[0], spec.Command[1:]...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if spec.Env != nil {
		cmd.Env = spec.Env
	}
	cmd.Stdin = spec.Stdin

	g := &Guest{
		cmd:   cmd,
		grace: spec.Grace,
		done:  make(chan struct{}),
	}
	if g.grace <= 0 {
		g.grace = defaultGrace
	}

	var wg sync.WaitGroup
	if spec.Capture {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("guest stdout: %w", err)
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, fmt.Errorf("guest stderr: %w", err)
		}
		g.logs = make(chan Log, 64)
		wg.Add(2)
		go g.streamLogs(stdout, LogSourceStdout, &wg)
		go g.streamLogs(stderr, LogSourceStderr, &wg)
	} else {
		cmd.Stdout = spec.Stdout
		cmd.Stderr = spec.Stderr
	}

	if spec.Channel != nil {
		if err := attachChannel(cmd, spec.Channel); err != nil {
			return nil, err
		}
	}

	configureSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start guest: %w", err)
	}
	g.started = time.Now()

	go g.reap(&wg)

	return g, nil
}

// reap drains the capture streams, then collects the guest's exit status.
// The pipes must be fully read before Wait releases them.
func (g *Guest) reap(wg *sync.WaitGroup) {
	wg.Wait()
	if g.logs != nil {
		close(g.logs)
	}
	err := g.cmd.Wait()
	g.status = decodeStatus(g.cmd.ProcessState, err)
	close(g.done)
}

// PID returns the guest's operating-system process id.
func (g *Guest) PID() int {
	if g.cmd.Process == nil {
		return 0
	}
	return g.cmd.Process.Pid
}

// StartedAt reports when the guest process was launched.
func (g *Guest) StartedAt() time.Time {
	return g.started
}

// Logs returns the captured output stream. It is nil unless the guest was
// started with Capture set, and is closed once both streams hit EOF.
func (g *Guest) Logs() <-chan Log {
	return g.logs
}

// Done is closed after the guest has exited and its status is available.
func (g *Guest) Done() <-chan struct{} {
	return g.done
}

// Wait blocks until the guest exits and reports how it finished.
func (g *Guest) Wait(ctx context.Context) (Status, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-g.done:
		return g.status, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (g *Guest) streamLogs(r io.Reader, source string, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\n")
		g.logs <- Log{Source: source, Message: line}
	}
}
