// Package events provides the ordered publish/subscribe primitive the
// host uses for every notification kind. A Feed delivers each published
// value synchronously to its listeners in registration order, which is
// what lets listener code observe and react to lifecycle transitions
// before the host moves on.
package events

import "sync"

// Handler consumes one published value.
type Handler[T any] func(T)

// Feed is an ordered registry of handlers for a single notification
// kind. Registration and removal are safe from any goroutine; Emit is
// expected to run on the scheduler goroutine so handlers observe a
// consistent single-threaded view.
type Feed[T any] struct {
	mu     sync.Mutex
	subs   []*Subscription[T]
	nextID uint64
}

// Subscription is a handle to a registered handler. Closing it removes
// the handler; closing twice is harmless.
type Subscription[T any] struct {
	feed *Feed[T]
	id   uint64
	fn   Handler[T]
	once bool
	done bool
}

// NewFeed returns an empty feed.
func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{}
}

// Subscribe registers fn to run for every value published after this
// call. Handlers run in registration order.
func (f *Feed[T]) Subscribe(fn Handler[T]) *Subscription[T] {
	return f.add(fn, false)
}

// SubscribeOnce registers fn to run for the next published value only.
// The subscription removes itself after the first delivery.
func (f *Feed[T]) SubscribeOnce(fn Handler[T]) *Subscription[T] {
	return f.add(fn, true)
}

func (f *Feed[T]) add(fn Handler[T], once bool) *Subscription[T] {
	if fn == nil {
		panic("events: nil handler")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sub := &Subscription[T]{feed: f, id: f.nextID, fn: fn, once: once}
	f.subs = append(f.subs, sub)
	return sub
}

// Emit delivers v to every live subscription in registration order.
// The listener set is snapshotted first: handlers added during delivery
// see only later emissions, and a handler removed mid-delivery by an
// earlier handler is skipped.
func (f *Feed[T]) Emit(v T) {
	f.mu.Lock()
	snapshot := make([]*Subscription[T], len(f.subs))
	copy(snapshot, f.subs)
	f.mu.Unlock()

	for _, sub := range snapshot {
		fn, ok := sub.claim()
		if !ok {
			continue
		}
		fn(v)
	}
}

// claim returns the handler if the subscription is still live, marking
// once-subscriptions consumed before the handler runs so a re-entrant
// Emit cannot fire them twice.
func (s *Subscription[T]) claim() (Handler[T], bool) {
	s.feed.mu.Lock()
	if s.done {
		s.feed.mu.Unlock()
		return nil, false
	}
	fn := s.fn
	if s.once {
		s.markDoneLocked()
	}
	s.feed.mu.Unlock()
	return fn, true
}

// Close removes the subscription from its feed.
func (s *Subscription[T]) Close() {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	if s.done {
		return
	}
	s.markDoneLocked()
}

func (s *Subscription[T]) markDoneLocked() {
	s.done = true
	s.fn = nil
	subs := s.feed.subs
	for i, other := range subs {
		if other == s {
			s.feed.subs = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Len reports the number of live subscriptions. Lifecycle decisions
// such as restoring a signal's default disposition key off this count.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Clear removes every subscription.
func (f *Feed[T]) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		sub.done = true
		sub.fn = nil
	}
	f.subs = nil
}
