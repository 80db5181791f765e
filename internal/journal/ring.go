package journal

import "sync"

// Ring keeps the most recent entries in memory for status endpoints and
// interactive views. It is safe for concurrent use and never fails a write.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	cap     int
	next    int
	full    bool
}

var _ Writer = (*Ring)(nil)

// NewRing creates a ring that retains up to capacity entries.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 256
	}
	return &Ring{entries: make([]Entry, capacity), cap: capacity}
}

func (r *Ring) Write(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = e
	r.next++
	if r.next == r.cap {
		r.next = 0
		r.full = true
	}
	return nil
}

// Len reports how many entries are currently retained.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.full {
		return r.cap
	}
	return r.next
}

// Tail returns up to n of the most recent entries, oldest first. n <= 0
// returns everything retained.
func (r *Ring) Tail(n int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ordered []Entry
	if r.full {
		ordered = make([]Entry, 0, r.cap)
		ordered = append(ordered, r.entries[r.next:]...)
		ordered = append(ordered, r.entries[:r.next]...)
	} else {
		ordered = append(ordered, r.entries[:r.next]...)
	}

	if n > 0 && n < len(ordered) {
		ordered = ordered[len(ordered)-n:]
	}
	return ordered
}
