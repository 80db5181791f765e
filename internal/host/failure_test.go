package host

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Paintersrp/proclet/internal/exitcode"
	"github.com/Paintersrp/proclet/internal/sched"
)

func TestUncaughtFailureDefaultPrintsAndExitsOne(t *testing.T) {
	p, errBuf := newTestProc(t)
	exitCodes := []exitcode.Code{}
	p.OnExit(func(ev ExitEvent) { exitCodes = append(exitCodes, ev.Code) })
	p.Loop().Post(func() { panic("boom") })

	code := p.Run(context.Background())

	if code != exitcode.UncaughtFailure {
		t.Fatalf("Run = %d, want 1", code)
	}
	if !strings.Contains(errBuf.String(), "uncaught failure: boom") {
		t.Fatalf("stderr = %q", errBuf.String())
	}
	if !strings.Contains(errBuf.String(), "goroutine") {
		t.Fatal("stderr missing stack trace")
	}
	if len(exitCodes) != 1 || exitCodes[0] != exitcode.UncaughtFailure {
		t.Fatalf("exit events = %v, want [1]", exitCodes)
	}
}

func TestFailureInterceptorSuppressesDefault(t *testing.T) {
	p, errBuf := newTestProc(t)
	cause := errors.New("bad state")
	var got Failure
	continued := false
	p.OnFailure(func(f Failure) { got = f })
	p.Loop().Post(func() { p.Raise(cause) })
	p.Loop().Post(func() { continued = true })

	code := p.Run(context.Background())

	if code != exitcode.OK {
		t.Fatalf("Run = %d, want 0", code)
	}
	if got.Err != cause {
		t.Fatalf("interceptor saw %v, want original error", got.Err)
	}
	if len(got.Stack) == 0 {
		t.Fatal("interceptor saw no stack")
	}
	if !continued {
		t.Fatal("loop did not continue after intercepted failure")
	}
	if strings.Contains(errBuf.String(), "uncaught failure") {
		t.Fatalf("default action ran despite interceptor: %q", errBuf.String())
	}
}

func TestFailureInterceptorMayExit(t *testing.T) {
	p, _ := newTestProc(t)
	p.OnFailure(func(Failure) { p.Exit(exitcode.FatalError) })
	p.Loop().Post(func() { panic("fatal") })
	laterRan := false
	p.Loop().Post(func() { laterRan = true })

	code := p.Run(context.Background())

	if code != exitcode.FatalError {
		t.Fatalf("Run = %d, want 5", code)
	}
	if laterRan {
		t.Fatal("work ran after interceptor exited")
	}
}

func TestFailureObserverKeepsDefaultAction(t *testing.T) {
	p, errBuf := newTestProc(t)
	var seen []Failure
	p.ObserveFailures(func(f Failure) { seen = append(seen, f) })
	p.Loop().Post(func() { panic("boom") })

	code := p.Run(context.Background())

	if code != exitcode.UncaughtFailure {
		t.Fatalf("Run = %d, want 1; observers must not intercept", code)
	}
	if len(seen) != 1 || seen[0].Err == nil {
		t.Fatalf("observer saw %+v", seen)
	}
	if !strings.Contains(errBuf.String(), "uncaught failure: boom") {
		t.Fatalf("stderr = %q", errBuf.String())
	}
}

func TestFailureHandlerPanicForcesHandlerFailure(t *testing.T) {
	var forced []int
	errSink := &strings.Builder{}
	p := New(
		WithEnv(NewEnvFrom(nil)),
		WithStderr(errSink),
		WithExitFunc(func(code int) { forced = append(forced, code) }),
	)
	p.OnFailure(func(Failure) { panic("broken interceptor") })
	p.Loop().Post(func() { panic("original") })

	p.Run(context.Background())

	if len(forced) != 1 || forced[0] != int(exitcode.HandlerFailure) {
		t.Fatalf("forced exits = %v, want [7]", forced)
	}
	if !strings.Contains(errSink.String(), "failure handler failure") {
		t.Fatalf("stderr = %q", errSink.String())
	}
}

func TestRejectionHandlerPanicForcesHandlerFailure(t *testing.T) {
	var forced []int
	errSink := &strings.Builder{}
	p := New(
		WithEnv(NewEnvFrom(nil)),
		WithStderr(errSink),
		WithExitFunc(func(code int) { forced = append(forced, code) }),
	)
	p.OnUnhandledRejection(func(Rejection) { panic("broken listener") })

	f := sched.NewFuture(p.Loop())
	f.Reject(errors.New("boom"))

	p.Run(context.Background())

	if len(forced) != 1 || forced[0] != int(exitcode.HandlerFailure) {
		t.Fatalf("forced exits = %v, want [7]", forced)
	}
	if !strings.Contains(errSink.String(), "rejection handler failure") {
		t.Fatalf("stderr = %q", errSink.String())
	}
}

func TestUnhandledRejectionIsObservational(t *testing.T) {
	p, _ := newTestProc(t)
	var seen []Rejection
	p.OnUnhandledRejection(func(r Rejection) { seen = append(seen, r) })

	f := sched.NewFuture(p.Loop())
	f.Reject(errors.New("boom"))

	code := p.Run(context.Background())

	if code != exitcode.OK {
		t.Fatalf("Run = %d, want 0; rejections must not kill the host", code)
	}
	if len(seen) != 1 {
		t.Fatalf("unhandled notifications = %d, want 1", len(seen))
	}
	if seen[0].ID != f.ID() || seen[0].Reason.Error() != "boom" {
		t.Fatalf("notification = %+v", seen[0])
	}
}

func TestUnhandledRejectionDefaultAdvisory(t *testing.T) {
	p, errBuf := newTestProc(t)
	f := sched.NewFuture(p.Loop())
	f.Reject(errors.New("boom"))

	code := p.Run(context.Background())

	if code != exitcode.OK {
		t.Fatalf("Run = %d, want 0", code)
	}
	if !strings.Contains(errBuf.String(), "unhandled rejection") {
		t.Fatalf("stderr = %q", errBuf.String())
	}
	_ = f
}

func TestRejectionHandledPair(t *testing.T) {
	p, _ := newTestProc(t)
	var order []string
	var handledID string
	var lateReason error

	p.OnUnhandledRejection(func(r Rejection) {
		order = append(order, "unhandled")
		p.Loop().Post(func() {
			r.Future.OnReject(func(err error) { lateReason = err })
		})
	})
	p.OnRejectionHandled(func(r Rejection) {
		order = append(order, "handled")
		handledID = r.ID.String()
	})

	f := sched.NewFuture(p.Loop())
	f.Reject(errors.New("boom"))

	code := p.Run(context.Background())

	if code != exitcode.OK {
		t.Fatalf("Run = %d, want 0", code)
	}
	if len(order) != 2 || order[0] != "unhandled" || order[1] != "handled" {
		t.Fatalf("order = %v, want [unhandled handled]", order)
	}
	if handledID != f.ID().String() {
		t.Fatalf("handled id = %s, want %s", handledID, f.ID())
	}
	if lateReason == nil || lateReason.Error() != "boom" {
		t.Fatalf("late handler saw %v, want boom", lateReason)
	}
}

func TestRaiseNilIsNoop(t *testing.T) {
	p, _ := newTestProc(t)
	p.Loop().Post(func() { p.Raise(nil) })
	if code := p.Run(context.Background()); code != exitcode.OK {
		t.Fatalf("Run = %d, want 0", code)
	}
}
