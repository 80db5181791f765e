// Package sched implements the cooperative scheduler that gives the
// host its single-threaded execution model. One goroutine owns the
// loop; every callback the host dispatches (signals, warnings,
// lifecycle notifications, future settlements) runs as a task on that
// goroutine, in turns. External goroutines hand work in with Post and
// keep the loop alive with Hold.
package sched

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Task is one unit of scheduled work.
type Task func()

// Terminate is the panic value used to unwind out of a task when a
// terminal exit has been requested. The loop recognizes it, stops
// draining, and returns from Run without treating it as a failure.
type Terminate struct{}

// Loop is a single-goroutine task scheduler. Construct with New, start
// with Run, and feed it from any goroutine with Post.
type Loop struct {
	mu    sync.Mutex
	ready []Task
	holds int
	turn  uint64

	wake    chan struct{}
	stopped atomic.Bool
	running atomic.Bool

	// trap receives panics that escape a task. It runs on the loop
	// goroutine; if it returns, the loop keeps draining.
	trap func(v any, stack []byte)

	ledger rejectionLedger
}

// New returns a stopped loop ready for Run.
func New() *Loop {
	l := &Loop{wake: make(chan struct{}, 1)}
	l.ledger.init(l)
	return l
}

// SetTrap installs the panic handler for task failures. Without a trap
// an escaping panic crashes Run. Must be called before Run.
func (l *Loop) SetTrap(fn func(v any, stack []byte)) {
	l.trap = fn
}

// Post queues fn to run on the loop goroutine in an upcoming turn.
// Safe from any goroutine. Posting to a stopped loop is a no-op beyond
// queueing; the task will simply never run.
func (l *Loop) Post(fn Task) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.ready = append(l.ready, fn)
	l.mu.Unlock()
	l.signal()
}

// Hold marks an outstanding external work source (a running child, an
// open channel) that should keep the loop from draining to completion.
// The returned release is idempotent.
func (l *Loop) Hold() (release func()) {
	l.mu.Lock()
	l.holds++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.holds--
			l.mu.Unlock()
			l.signal()
		})
	}
}

// After runs fn on the loop once d has elapsed, holding the loop open
// until delivery. The returned cancel drops the timer; fn never runs
// after a cancel that wins the race.
func (l *Loop) After(d time.Duration, fn Task) (cancel func()) {
	release := l.Hold()
	timer := time.AfterFunc(d, func() {
		l.Post(func() {
			defer release()
			fn()
		})
	})
	return func() {
		if timer.Stop() {
			release()
		}
	}
}

// Go runs fn on its own goroutine while holding the loop open and
// settles the returned future with fn's outcome.
func (l *Loop) Go(fn func() (any, error)) *Future {
	f := NewFuture(l)
	release := l.Hold()
	go func() {
		defer release()
		v, err := fn()
		if err != nil {
			f.Reject(err)
		} else {
			f.Resolve(v)
		}
	}()
	return f
}

// Stop asks Run to return after the task in flight. Safe from any
// goroutine.
func (l *Loop) Stop() {
	l.stopped.Store(true)
	l.signal()
}

// Running reports whether Run is currently draining turns.
func (l *Loop) Running() bool { return l.running.Load() }

// Turn returns the number of completed turns.
func (l *Loop) Turn() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.turn
}

// Run drains turns until Stop is called or the loop runs out of work.
// A turn executes the tasks that were ready when it began; work posted
// mid-turn lands in the next one. When the queue is empty and no holds
// remain, idle is invoked (the host emits its pre-exit notification
// there); if idle produces no new work Run returns.
func (l *Loop) Run(idle func()) {
	if !l.running.CompareAndSwap(false, true) {
		panic("sched: Run reentered")
	}
	defer l.running.Store(false)

	for {
		if l.stopped.Load() {
			return
		}
		batch := l.takeBatch()
		if len(batch) > 0 {
			for _, task := range batch {
				if l.stopped.Load() {
					return
				}
				l.runProtected(task)
			}
			l.runProtected(l.ledger.sweep)
			continue
		}
		if l.holding() {
			l.await()
			continue
		}
		if l.stopped.Load() || idle == nil {
			return
		}
		l.runProtected(idle)
		if l.stopped.Load() {
			return
		}
		if !l.pendingWork() {
			return
		}
	}
}

func (l *Loop) takeBatch() []Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.ready) == 0 {
		return nil
	}
	batch := l.ready
	l.ready = nil
	l.turn++
	return batch
}

func (l *Loop) holding() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holds > 0
}

func (l *Loop) pendingWork() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ready) > 0 || l.holds > 0
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) await() {
	<-l.wake
}

// runProtected executes fn, routing an escaping panic to the trap. A
// Terminate panic, from fn or from the trap itself, converts into a
// stop request instead.
func (l *Loop) runProtected(fn Task) {
	v, stack, panicked := capture(fn)
	if !panicked {
		return
	}
	if _, ok := v.(Terminate); ok {
		l.Stop()
		return
	}
	if l.trap == nil {
		panic(v)
	}
	v2, _, panicked := capture(func() { l.trap(v, stack) })
	if !panicked {
		return
	}
	if _, ok := v2.(Terminate); ok {
		l.Stop()
		return
	}
	// The trap failed on its own; nothing left to hand the panic to.
	panic(v2)
}

func capture(fn Task) (v any, stack []byte, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			v = r
			stack = debug.Stack()
			panicked = true
		}
	}()
	fn()
	return nil, nil, false
}
