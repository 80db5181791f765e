package host

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Paintersrp/proclet/internal/exitcode"
	"github.com/Paintersrp/proclet/internal/sched"
)

// Failure is a panic that escaped a scheduler task.
type Failure struct {
	// Value is the raw panic value.
	Value any
	// Err is Value when it is an error, otherwise a synthesized one.
	Err error
	// Stack is the goroutine stack at the point of capture.
	Stack []byte
}

// Rejection identifies a rejected future for the unhandled and
// handled notification pair.
type Rejection struct {
	ID     uuid.UUID
	Reason error
	Future *sched.Future
}

// Raise reports err as an uncaught failure from the current task. It
// unwinds the task, so code after Raise does not run. Loop-affine.
func (p *Proc) Raise(err error) {
	if err == nil {
		return
	}
	panic(err)
}

// trapPanic is the scheduler trap. With interceptors installed the
// failure is dispatched to them and the loop keeps running; without
// any, the default action prints the failure and exits with
// UncaughtFailure. A panicking interceptor forces HandlerFailure so
// the failure path cannot recurse.
func (p *Proc) trapPanic(v any, stack []byte) {
	failure := Failure{Value: v, Err: errFromPanic(v), Stack: stack}

	p.fatalOnPanic("failure observer", func() { p.failureObs.Emit(failure) })
	if p.failures.Len() > 0 {
		p.dispatchFailure(failure)
		return
	}

	fmt.Fprintf(p.stdio.err, "proclet: uncaught failure: %v\n\n%s", v, stack)
	p.Exit(exitcode.UncaughtFailure)
}

func (p *Proc) dispatchFailure(failure Failure) {
	p.fatalOnPanic("failure handler", func() { p.failures.Emit(failure) })
}

// onRejectionUnhandled forwards the scheduler's unhandled report to
// subscribers, or prints an advisory when nobody listens. The report
// is observational: the host keeps running either way. Bookkeeping
// stops once an exit is in progress.
func (p *Proc) onRejectionUnhandled(f *sched.Future) {
	if p.Phase() != PhaseRunning {
		return
	}
	rec := Rejection{ID: f.ID(), Reason: f.Reason(), Future: f}
	p.fatalOnPanic("rejection observer", func() { p.unhandledObs.Emit(rec) })
	if p.unhandledRej.Len() > 0 {
		p.fatalOnPanic("rejection handler", func() { p.unhandledRej.Emit(rec) })
		return
	}
	fmt.Fprintf(p.stdio.err, "proclet: unhandled rejection %s: %v\n", rec.ID, rec.Reason)
}

// onRejectionHandled forwards the retraction for a previously reported
// rejection. No default output; retractions only matter to observers.
func (p *Proc) onRejectionHandled(f *sched.Future) {
	if p.Phase() != PhaseRunning {
		return
	}
	rec := Rejection{ID: f.ID(), Reason: f.Reason(), Future: f}
	p.fatalOnPanic("rejection handler", func() { p.handledRej.Emit(rec) })
}

// fatalOnPanic runs fn and forces HandlerFailure if it panics. Failure
// and rejection subscribers sit past the last interception point, so a
// panic there has no further handler to go to. A Terminate unwind from
// a subscriber calling Exit passes through untouched.
func (p *Proc) fatalOnPanic(label string, fn func()) {
	defer func() {
		if v := recover(); v != nil {
			if _, ok := v.(sched.Terminate); ok {
				panic(v)
			}
			fmt.Fprintf(p.stdio.err, "proclet: %s failure: %v\n", label, v)
			p.exitFunc(int(exitcode.HandlerFailure))
		}
	}()
	fn()
}

func errFromPanic(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", v)
}
