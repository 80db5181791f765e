package signals

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/Paintersrp/proclet/internal/events"
)

// Delivery describes one relayed signal.
type Delivery struct {
	Name string
	Sig  os.Signal
}

// Relay owns the process-level signal registrations. The first listener
// for a signal replaces its default action with relayed dispatch; when
// the last listener for that signal is closed the registration is torn
// down and the default action applies again.
type Relay struct {
	post func(func())

	mu      sync.Mutex
	entries map[string]*relayEntry
	closed  bool
}

type relayEntry struct {
	name string
	sig  syscall.Signal
	feed *events.Feed[Delivery]
	ch   chan os.Signal
	done chan struct{}
}

// Listener is one registered signal handler. Closing it detaches the
// handler and, if it was the signal's last, restores the default
// action.
type Listener struct {
	relay *Relay
	name  string
	sub   *events.Subscription[Delivery]
	once  sync.Once
}

// NewRelay returns a relay that dispatches deliveries through post,
// normally the scheduler's Post.
func NewRelay(post func(func())) *Relay {
	if post == nil {
		panic("signals: nil post")
	}
	return &Relay{post: post, entries: make(map[string]*relayEntry)}
}

// Listen registers fn for the named signal. Listeners for one signal
// run in registration order per delivery. SIGKILL and SIGSTOP are
// refused, as is the probe pseudo-signal 0.
func (r *Relay) Listen(name string, fn func(Delivery)) (*Listener, error) {
	sig, canonical, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if canonical == "0" {
		return nil, ErrNotDeliverable
	}
	if Unblockable(sig) {
		return nil, fmt.Errorf("%w: %s", ErrUnblockable, canonical)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("signal relay closed")
	}
	entry, ok := r.entries[canonical]
	if !ok {
		entry = &relayEntry{
			name: canonical,
			sig:  sig,
			feed: events.NewFeed[Delivery](),
			ch:   make(chan os.Signal, 8),
			done: make(chan struct{}),
		}
		signal.Notify(entry.ch, sig)
		go r.forward(entry)
		r.entries[canonical] = entry
	}
	sub := entry.feed.Subscribe(fn)
	return &Listener{relay: r, name: canonical, sub: sub}, nil
}

func (r *Relay) forward(entry *relayEntry) {
	for {
		select {
		case sig := <-entry.ch:
			r.post(func() {
				entry.feed.Emit(Delivery{Name: entry.name, Sig: sig})
			})
		case <-entry.done:
			return
		}
	}
}

// Close detaches the listener.
func (l *Listener) Close() {
	l.once.Do(func() {
		l.sub.Close()
		l.relay.release(l.name)
	})
}

// Signal returns the canonical name the listener is registered for.
func (l *Listener) Signal() string { return l.name }

func (r *Relay) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[name]
	if !ok || entry.feed.Len() > 0 {
		return
	}
	signal.Stop(entry.ch)
	close(entry.done)
	delete(r.entries, name)
}

// ListenerCount reports the live listeners for the named signal.
func (r *Relay) ListenerCount(name string) int {
	_, canonical, err := Lookup(name)
	if err != nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[canonical]
	if !ok {
		return 0
	}
	return entry.feed.Len()
}

// Active returns the canonical names currently relayed, sorted.
func (r *Relay) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close tears down every registration, restoring default actions.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for name, entry := range r.entries {
		signal.Stop(entry.ch)
		close(entry.done)
		delete(r.entries, name)
	}
}
