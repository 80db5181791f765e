package sched

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// State is a future's settlement state.
type State int32

const (
	Pending State = iota
	Fulfilled
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

const (
	trackNone = iota
	trackObserved
	trackPending
)

// Future is a single-settlement asynchronous result bound to a loop.
// Settlement may happen on any goroutine; callbacks always run as loop
// tasks. A rejected future with no rejection handler by the end of the
// turn that observed the rejection is reported through the loop's
// unhandled-rejection hook, keyed by the future's identity.
type Future struct {
	loop *Loop
	id   uuid.UUID

	mu         sync.Mutex
	state      State
	value      any
	reason     error
	onResolve  []func(any)
	onReject   []func(error)
	hasHandler bool

	// track is the ledger membership state, guarded by the ledger
	// mutex rather than f.mu.
	track int8
}

// NewFuture returns a pending future bound to l.
func NewFuture(l *Loop) *Future {
	return &Future{loop: l, id: uuid.New()}
}

// ID returns the future's stable identity.
func (f *Future) ID() uuid.UUID { return f.id }

// State returns the current settlement state.
func (f *Future) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Reason returns the rejection reason, or nil while unsettled or
// fulfilled.
func (f *Future) Reason() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reason
}

// Value returns the fulfillment value, or nil while unsettled or
// rejected.
func (f *Future) Value() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Resolve settles the future with v. Later settlements are ignored.
func (f *Future) Resolve(v any) {
	f.mu.Lock()
	if f.state != Pending {
		f.mu.Unlock()
		return
	}
	f.state = Fulfilled
	f.value = v
	callbacks := f.onResolve
	f.onResolve, f.onReject = nil, nil
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn := fn
		f.loop.Post(func() { fn(v) })
	}
}

// Reject settles the future with err. A nil err is normalized so the
// reason is always observable. Later settlements are ignored.
func (f *Future) Reject(err error) {
	if err == nil {
		err = errors.New("future rejected")
	}
	f.mu.Lock()
	if f.state != Pending {
		f.mu.Unlock()
		return
	}
	f.state = Rejected
	f.reason = err
	callbacks := f.onReject
	f.onResolve, f.onReject = nil, nil
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn := fn
		f.loop.Post(func() { fn(err) })
	}
	// The rejection is observed in the turn that runs this task; the
	// end-of-turn sweep decides whether anyone handled it.
	f.loop.Post(func() { f.loop.ledger.observe(f) })
}

// OnResolve runs fn as a loop task once the future is fulfilled.
func (f *Future) OnResolve(fn func(any)) {
	f.mu.Lock()
	switch f.state {
	case Pending:
		f.onResolve = append(f.onResolve, fn)
		f.mu.Unlock()
	case Fulfilled:
		v := f.value
		f.mu.Unlock()
		f.loop.Post(func() { fn(v) })
	default:
		f.mu.Unlock()
	}
}

// OnReject runs fn as a loop task once the future is rejected, and
// marks the rejection handled. Attaching after an unhandled report has
// gone out retracts it through the loop's rejection-handled hook.
func (f *Future) OnReject(fn func(error)) {
	f.mu.Lock()
	f.hasHandler = true
	switch f.state {
	case Pending:
		f.onReject = append(f.onReject, fn)
		f.mu.Unlock()
	case Rejected:
		err := f.reason
		f.mu.Unlock()
		f.loop.Post(func() { fn(err) })
	default:
		f.mu.Unlock()
	}
	f.loop.ledger.attach(f)
}

func (f *Future) handled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasHandler
}

// rejectionLedger tracks rejected futures between observation and the
// end-of-turn sweep, then holds the ones reported unhandled so a late
// handler can retract the report.
type rejectionLedger struct {
	loop *Loop

	mu          sync.Mutex
	observed    []*Future
	pending     []*Future
	onUnhandled func(*Future)
	onHandled   func(*Future)
}

func (g *rejectionLedger) init(l *Loop) { g.loop = l }

// OnRejectionUnhandled installs the hook invoked, on the loop, for each
// rejection left unhandled at the end of its observing turn. Install
// before Run.
func (l *Loop) OnRejectionUnhandled(fn func(*Future)) { l.ledger.onUnhandled = fn }

// OnRejectionHandled installs the hook invoked, on the loop, when a
// previously reported rejection gains a handler. Install before Run.
func (l *Loop) OnRejectionHandled(fn func(*Future)) { l.ledger.onHandled = fn }

// UnhandledRejections snapshots the futures currently reported
// unhandled, oldest first.
func (l *Loop) UnhandledRejections() []*Future {
	g := &l.ledger
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Future, len(g.pending))
	copy(out, g.pending)
	return out
}

func (g *rejectionLedger) observe(f *Future) {
	if f.handled() {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if f.track != trackNone {
		return
	}
	f.track = trackObserved
	g.observed = append(g.observed, f)
}

// sweep runs at the end of every turn on the loop goroutine.
func (g *rejectionLedger) sweep() {
	g.mu.Lock()
	batch := g.observed
	g.observed = nil
	g.mu.Unlock()

	for _, f := range batch {
		if f.handled() {
			g.mu.Lock()
			f.track = trackNone
			g.mu.Unlock()
			continue
		}
		g.mu.Lock()
		f.track = trackPending
		g.pending = append(g.pending, f)
		fn := g.onUnhandled
		g.mu.Unlock()
		if fn != nil {
			fn(f)
		}
	}
}

// attach records that f gained a rejection handler.
func (g *rejectionLedger) attach(f *Future) {
	g.mu.Lock()
	switch f.track {
	case trackObserved:
		f.track = trackNone
		g.observed = removeFuture(g.observed, f)
		g.mu.Unlock()
	case trackPending:
		f.track = trackNone
		g.pending = removeFuture(g.pending, f)
		fn := g.onHandled
		g.mu.Unlock()
		if fn != nil {
			g.loop.Post(func() { fn(f) })
		}
	default:
		g.mu.Unlock()
	}
}

func removeFuture(futures []*Future, f *Future) []*Future {
	for i, other := range futures {
		if other == f {
			return append(futures[:i], futures[i+1:]...)
		}
	}
	return futures
}
