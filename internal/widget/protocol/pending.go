package protocol

import (
	"sync"
	"time"
)

// DefaultRequestTimeout bounds how long a widget request may stay
// unanswered before it is rejected locally.
const DefaultRequestTimeout = 30 * time.Second

type pendingEntry struct {
	ch    chan Response
	timer *time.Timer
}

// PendingTracker keys outstanding widget requests by id. A request that
// receives no response within the timeout is rejected locally so the
// widget never hangs forever. This is a detected timeout, not a true
// cancellation: the underlying server operation keeps running.
type PendingTracker struct {
	timeout time.Duration

	mu      sync.Mutex
	pending map[int64]*pendingEntry
}

// NewPendingTracker creates a tracker. timeout <= 0 selects the default.
func NewPendingTracker(timeout time.Duration) *PendingTracker {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &PendingTracker{
		timeout: timeout,
		pending: make(map[int64]*pendingEntry),
	}
}

// Track registers an outstanding request and returns the channel its
// response (or local timeout rejection) arrives on. Exactly one
// Response is ever delivered per tracked id.
func (t *PendingTracker) Track(id int64) <-chan Response {
	entry := &pendingEntry{ch: make(chan Response, 1)}
	entry.timer = time.AfterFunc(t.timeout, func() {
		t.expire(id, entry)
	})

	t.mu.Lock()
	// A reused id replaces the stale entry; the old waiter is rejected.
	if old, ok := t.pending[id]; ok {
		old.timer.Stop()
		old.ch <- Response{Type: TypeResponse, ID: id, Error: "request id reused"}
	}
	t.pending[id] = entry
	t.mu.Unlock()

	return entry.ch
}

// Resolve delivers a response to the tracked request. Returns false if
// the request is unknown or already timed out.
func (t *PendingTracker) Resolve(id int64, resp Response) bool {
	t.mu.Lock()
	entry, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
		entry.timer.Stop()
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	entry.ch <- resp
	return true
}

// expire rejects one request if it is still the tracked waiter.
func (t *PendingTracker) expire(id int64, entry *pendingEntry) {
	t.mu.Lock()
	current, ok := t.pending[id]
	if ok && current == entry {
		delete(t.pending, id)
	} else {
		ok = false
	}
	t.mu.Unlock()

	if ok {
		entry.ch <- Response{Type: TypeResponse, ID: id, Error: "Request timeout after 30s"}
	}
}

// Outstanding returns the number of requests still awaiting a response.
func (t *PendingTracker) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
