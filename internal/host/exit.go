package host

import (
	"fmt"

	"github.com/Paintersrp/proclet/internal/exitcode"
	"github.com/Paintersrp/proclet/internal/sched"
)

// Phase is the host lifecycle state.
type Phase int32

const (
	// PhaseRunning is the normal dispatching state.
	PhaseRunning Phase = iota
	// PhaseDraining means exit handlers are running; the provisional
	// exit code is frozen.
	PhaseDraining
	// PhaseExited is terminal.
	PhaseExited
)

func (ph Phase) String() string {
	switch ph {
	case PhaseRunning:
		return "running"
	case PhaseDraining:
		return "draining"
	case PhaseExited:
		return "exited"
	default:
		return "unknown"
	}
}

// BeforeExitEvent announces a natural drain. Handlers may schedule new
// work, which returns the host to running instead of exiting.
type BeforeExitEvent struct {
	Code exitcode.Code
}

// ExitEvent announces the final exit code. Handlers run synchronously
// and are the last code to execute; scheduling work from them has no
// effect.
type ExitEvent struct {
	Code exitcode.Code
}

// Phase returns the current lifecycle phase.
func (p *Proc) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// ExitCode returns the provisional exit code, the value a natural exit
// would report.
func (p *Proc) ExitCode() exitcode.Code {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code
}

// SetExitCode updates the provisional exit code. Once an exit is in
// progress the code is frozen and later writes are dropped.
func (p *Proc) SetExitCode(code exitcode.Code) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != PhaseRunning {
		return
	}
	p.code = code
}

// Exit performs a terminal exit with code: the pre-exit notification is
// skipped, exit handlers run synchronously, and no queued work runs
// afterward. It never returns when called from a scheduler task. Exit
// is loop-affine; use RequestExit from other goroutines. Calling Exit
// while an exit is already in progress is a no-op.
func (p *Proc) Exit(code exitcode.Code) {
	p.mu.Lock()
	if p.phase != PhaseRunning {
		p.mu.Unlock()
		return
	}
	p.phase = PhaseDraining
	p.code = code
	p.mu.Unlock()

	p.dispatchExit(code)

	p.mu.Lock()
	p.phase = PhaseExited
	p.mu.Unlock()

	if p.loop.Running() {
		panic(sched.Terminate{})
	}
	p.exitFunc(int(code))
}

// RequestExit schedules a terminal exit from any goroutine. Tasks
// already queued ahead of the request still run first.
func (p *Proc) RequestExit(code exitcode.Code) {
	p.loop.Post(func() { p.Exit(code) })
}

// idle runs when the scheduler has fully drained. It emits the
// pre-exit notification; if handlers schedule nothing the loop returns
// and finalize completes the natural exit.
func (p *Proc) idle() {
	if p.Phase() != PhaseRunning {
		return
	}
	p.beforeExit.Emit(BeforeExitEvent{Code: p.ExitCode()})
}

// finalize completes a natural exit after the loop drains for good.
func (p *Proc) finalize() exitcode.Code {
	p.mu.Lock()
	if p.phase == PhaseExited {
		code := p.code
		p.mu.Unlock()
		return code
	}
	p.phase = PhaseDraining
	code := p.code
	p.mu.Unlock()

	p.dispatchExit(code)

	p.mu.Lock()
	p.phase = PhaseExited
	p.mu.Unlock()
	return code
}

// dispatchExit emits the exit notification. A panicking exit handler
// must not re-enter the failure path, so it forces an unconditional
// HandlerFailure termination instead.
func (p *Proc) dispatchExit(code exitcode.Code) {
	defer func() {
		if v := recover(); v != nil {
			if _, ok := v.(sched.Terminate); ok {
				panic(v)
			}
			fmt.Fprintf(p.stdio.err, "proclet: exit handler failure: %v\n", v)
			p.exitFunc(int(exitcode.HandlerFailure))
		}
	}()
	p.exitFeed.Emit(ExitEvent{Code: code})
}
