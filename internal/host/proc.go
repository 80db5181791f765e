// Package host implements the process-global control surface: the
// environment snapshot, signal dispatch, warning emission, failure
// interception, rejection tracking, and the exit lifecycle. One Proc
// represents the current OS process; all of its callbacks run on a
// single scheduler goroutine.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Paintersrp/proclet/internal/events"
	"github.com/Paintersrp/proclet/internal/exitcode"
	"github.com/Paintersrp/proclet/internal/ipc"
	"github.com/Paintersrp/proclet/internal/sched"
	"github.com/Paintersrp/proclet/internal/signals"
)

// ErrNoChannel reports message operations without an attached IPC
// channel.
var ErrNoChannel = errors.New("no ipc channel attached")

// Proc is the host-side process handle. Construct with New, register
// listeners, then drive it with Run; Run returns the final exit code
// once the lifecycle reaches Exited.
type Proc struct {
	loop  *sched.Loop
	env   *Env
	relay *signals.Relay
	stdio stdio

	pid     int
	ppid    int
	started time.Time

	// exitFunc is the unconditional termination seam, used when a
	// handler failure makes orderly unwinding impossible. os.Exit in
	// production.
	exitFunc func(int)

	mu     sync.Mutex
	phase  Phase
	code   exitcode.Code
	policy WarningPolicy
	warned map[string]struct{}

	beforeExit   *events.Feed[BeforeExitEvent]
	exitFeed     *events.Feed[ExitEvent]
	warnings     *events.Feed[WarningRecord]
	failures     *events.Feed[Failure]
	unhandledRej *events.Feed[Rejection]
	handledRej   *events.Feed[Rejection]
	messages     *events.Feed[json.RawMessage]
	disconnects  *events.Feed[struct{}]

	// Observer feeds mirror the three notification kinds that carry a
	// default action. Observers see every dispatch but are not
	// subscribers: the default rendering, printing, and terminating
	// behaviors key off the subscriber feeds alone.
	warningObs   *events.Feed[WarningRecord]
	failureObs   *events.Feed[Failure]
	unhandledObs *events.Feed[Rejection]

	channel        *ipc.Channel
	channelRelease func()
}

// Option configures a Proc at construction.
type Option func(*Proc)

// WithEnv replaces the ambient environment snapshot.
func WithEnv(env *Env) Option {
	return func(p *Proc) { p.env = env }
}

// WithStdin replaces the input stream.
func WithStdin(r io.Reader) Option {
	return func(p *Proc) { p.stdio.in = r }
}

// WithStdout replaces the output stream.
func WithStdout(w io.Writer) Option {
	return func(p *Proc) { p.stdio.out = w }
}

// WithStderr replaces the diagnostic stream.
func WithStderr(w io.Writer) Option {
	return func(p *Proc) { p.stdio.err = w }
}

// WithExitFunc replaces the unconditional termination seam.
func WithExitFunc(fn func(int)) Option {
	return func(p *Proc) { p.exitFunc = fn }
}

// WithWarningPolicy sets the initial warning policy.
func WithWarningPolicy(policy WarningPolicy) Option {
	return func(p *Proc) { p.policy = policy }
}

// New builds a Proc around the current OS process.
func New(opts ...Option) *Proc {
	p := &Proc{
		loop:         sched.New(),
		stdio:        defaultStdio(),
		pid:          os.Getpid(),
		ppid:         os.Getppid(),
		started:      time.Now(),
		exitFunc:     os.Exit,
		phase:        PhaseRunning,
		code:         exitcode.OK,
		warned:       make(map[string]struct{}),
		beforeExit:   events.NewFeed[BeforeExitEvent](),
		exitFeed:     events.NewFeed[ExitEvent](),
		warnings:     events.NewFeed[WarningRecord](),
		failures:     events.NewFeed[Failure](),
		unhandledRej: events.NewFeed[Rejection](),
		handledRej:   events.NewFeed[Rejection](),
		messages:     events.NewFeed[json.RawMessage](),
		disconnects:  events.NewFeed[struct{}](),
		warningObs:   events.NewFeed[WarningRecord](),
		failureObs:   events.NewFeed[Failure](),
		unhandledObs: events.NewFeed[Rejection](),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.env == nil {
		p.env = NewEnv()
	}
	p.relay = signals.NewRelay(func(fn func()) { p.loop.Post(fn) })
	p.loop.SetTrap(p.trapPanic)
	p.loop.OnRejectionUnhandled(p.onRejectionUnhandled)
	p.loop.OnRejectionHandled(p.onRejectionHandled)
	return p
}

// Run drives the scheduler until the lifecycle reaches Exited and
// returns the final code. Cancelling ctx requests a terminal exit with
// the provisional code, after work already queued.
func (p *Proc) Run(ctx context.Context) exitcode.Code {
	if ctx != nil {
		watchDone := make(chan struct{})
		defer close(watchDone)
		go func() {
			select {
			case <-ctx.Done():
				p.RequestExit(p.ExitCode())
			case <-watchDone:
			}
		}()
	}

	p.loop.Run(p.idle)
	code := p.finalize()

	p.relay.Close()
	if ch := p.Channel(); ch != nil {
		ch.Close()
	}
	return code
}

// Pid returns the OS process id.
func (p *Proc) Pid() int { return p.pid }

// PPid returns the parent process id as captured at construction.
func (p *Proc) PPid() int { return p.ppid }

// StartTime returns when the Proc was constructed.
func (p *Proc) StartTime() time.Time { return p.started }

// Uptime returns the time elapsed since construction.
func (p *Proc) Uptime() time.Duration { return time.Since(p.started) }

// Cwd returns the working directory.
func (p *Proc) Cwd() (string, error) { return os.Getwd() }

// Chdir changes the working directory.
func (p *Proc) Chdir(dir string) error { return os.Chdir(dir) }

// Env returns the environment snapshot.
func (p *Proc) Env() *Env { return p.env }

// Loop returns the scheduler; guests post callbacks and futures
// through it.
func (p *Proc) Loop() *sched.Loop { return p.loop }

// Relay returns the signal relay.
func (p *Proc) Relay() *signals.Relay { return p.relay }

// OnBeforeExit registers a natural-drain listener.
func (p *Proc) OnBeforeExit(fn func(BeforeExitEvent)) *events.Subscription[BeforeExitEvent] {
	return p.beforeExit.Subscribe(fn)
}

// OnExit registers an exit listener. Exit listeners must be
// synchronous; they are the last code to run.
func (p *Proc) OnExit(fn func(ExitEvent)) *events.Subscription[ExitEvent] {
	return p.exitFeed.Subscribe(fn)
}

// OnWarning registers a warning listener.
func (p *Proc) OnWarning(fn func(WarningRecord)) *events.Subscription[WarningRecord] {
	return p.warnings.Subscribe(fn)
}

// OnFailure registers an uncaught-failure interceptor. While at least
// one is registered the default print-and-exit action is suppressed.
func (p *Proc) OnFailure(fn func(Failure)) *events.Subscription[Failure] {
	return p.failures.Subscribe(fn)
}

// OnUnhandledRejection registers a listener for rejections nobody
// handled by the end of their observing turn.
func (p *Proc) OnUnhandledRejection(fn func(Rejection)) *events.Subscription[Rejection] {
	return p.unhandledRej.Subscribe(fn)
}

// OnRejectionHandled registers a listener for late-handled
// retractions.
func (p *Proc) OnRejectionHandled(fn func(Rejection)) *events.Subscription[Rejection] {
	return p.handledRej.Subscribe(fn)
}

// OnSignal registers a handler for the named signal through the relay.
// The first handler for a signal replaces its default action; closing
// the last restores it.
func (p *Proc) OnSignal(name string, fn func(signals.Delivery)) (*signals.Listener, error) {
	return p.relay.Listen(name, fn)
}

// ObserveWarnings registers an infrastructure tap on warning dispatch.
// Unlike OnWarning subscribers, observers do not suppress the default
// stderr rendering.
func (p *Proc) ObserveWarnings(fn func(WarningRecord)) *events.Subscription[WarningRecord] {
	return p.warningObs.Subscribe(fn)
}

// ObserveFailures registers an infrastructure tap on uncaught failures.
// Unlike OnFailure interceptors, observers do not suppress the default
// print-and-exit action; a panic inside an observer is fatal.
func (p *Proc) ObserveFailures(fn func(Failure)) *events.Subscription[Failure] {
	return p.failureObs.Subscribe(fn)
}

// ObserveUnhandledRejections registers an infrastructure tap on
// unhandled-rejection reports without suppressing the default advisory.
func (p *Proc) ObserveUnhandledRejections(fn func(Rejection)) *events.Subscription[Rejection] {
	return p.unhandledObs.Subscribe(fn)
}

// OnMessage registers a listener for inbound IPC messages.
func (p *Proc) OnMessage(fn func(json.RawMessage)) *events.Subscription[json.RawMessage] {
	return p.messages.Subscribe(fn)
}

// OnDisconnect registers a listener for IPC channel teardown.
func (p *Proc) OnDisconnect(fn func()) *events.Subscription[struct{}] {
	return p.disconnects.Subscribe(func(struct{}) { fn() })
}

// AttachChannel wires an IPC channel into the host: inbound messages
// dispatch on the loop, and the channel holds the loop open until it
// disconnects.
func (p *Proc) AttachChannel(ch *ipc.Channel) {
	p.mu.Lock()
	p.channel = ch
	p.channelRelease = p.loop.Hold()
	p.mu.Unlock()

	ch.Start(
		func(raw json.RawMessage) {
			p.loop.Post(func() { p.messages.Emit(raw) })
		},
		func() {
			p.loop.Post(func() { p.disconnects.Emit(struct{}{}) })
			p.mu.Lock()
			release := p.channelRelease
			p.channelRelease = nil
			p.mu.Unlock()
			if release != nil {
				release()
			}
		},
	)
}

// Channel returns the attached IPC channel, or nil.
func (p *Proc) Channel() *ipc.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel
}

// Send writes v to the attached channel.
func (p *Proc) Send(v any) error {
	ch := p.Channel()
	if ch == nil {
		return ErrNoChannel
	}
	return ch.Send(v)
}

// Disconnect closes the attached channel.
func (p *Proc) Disconnect() error {
	ch := p.Channel()
	if ch == nil {
		return ErrNoChannel
	}
	return ch.Close()
}

// Connected reports whether an attached channel is open.
func (p *Proc) Connected() bool {
	ch := p.Channel()
	return ch != nil && ch.Connected()
}

// Status is a point-in-time lifecycle snapshot for the status API and
// the watch UI.
type Status struct {
	Pid               int       `json:"pid"`
	PPid              int       `json:"ppid"`
	Phase             string    `json:"phase"`
	ExitCode          int       `json:"exitCode"`
	StartedAt         time.Time `json:"startedAt"`
	UptimeSeconds     float64   `json:"uptimeSeconds"`
	ActiveSignals     []string  `json:"activeSignals"`
	PendingRejections int       `json:"pendingRejections"`
	IPCConnected      bool      `json:"ipcConnected"`
	NoWarnings        bool      `json:"noWarnings"`
	DeprecationMode   string    `json:"deprecationMode"`
}

// Status snapshots the host lifecycle.
func (p *Proc) Status() Status {
	policy := p.WarningPolicy()
	return Status{
		Pid:               p.pid,
		PPid:              p.ppid,
		Phase:             p.Phase().String(),
		ExitCode:          int(p.ExitCode()),
		StartedAt:         p.started,
		UptimeSeconds:     time.Since(p.started).Seconds(),
		ActiveSignals:     p.relay.Active(),
		PendingRejections: len(p.loop.UnhandledRejections()),
		IPCConnected:      p.Connected(),
		NoWarnings:        policy.NoWarnings,
		DeprecationMode:   policy.Deprecation.String(),
	}
}
