// Package frontier provides the crawl work queue and its visited set.
//
// The queue, the set of URLs ever queued and the set of URLs dispatched for
// fetching live behind one mutex, so the check-then-insert done by Push and
// the check-then-mark done by Claim are each a single critical section.
// Two workers that discover the same link from different pages therefore
// cannot both enqueue it, and a URL can be claimed for fetching only once.
package frontier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

var (
	// ErrEmpty is returned by Pop when no entry arrived before the timeout.
	ErrEmpty = errors.New("frontier empty")

	// ErrClosed is returned by Pop once the frontier has been closed.
	ErrClosed = errors.New("frontier closed")
)

// Frontier is a multi-producer, multi-consumer FIFO of model.FrontierEntry.
//
// Besides the queue it tracks how many popped entries are still being
// processed (in flight). An empty queue with nothing in flight cannot grow
// again, which lets workers tell a quiet moment from a finished crawl.
type Frontier struct {
	mu sync.Mutex

	queue   []model.FrontierEntry
	seen    map[string]struct{}
	claimed map[string]struct{}

	inFlight int
	popped   int
	closed   bool

	// wake is closed and replaced on every push or close so blocked
	// Pop calls re-check the queue.
	wake chan struct{}
}

// New returns an empty Frontier.
func New() *Frontier {
	return &Frontier{
		seen:    make(map[string]struct{}),
		claimed: make(map[string]struct{}),
		wake:    make(chan struct{}),
	}
}

// Push enqueues entry unless its fragment-stripped URL was queued before.
// It reports whether the entry was added.
func (f *Frontier) Push(entry model.FrontierEntry) bool {
	entry.URL = model.StripFragment(entry.URL)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	if _, ok := f.seen[entry.URL]; ok {
		return false
	}
	f.seen[entry.URL] = struct{}{}
	f.queue = append(f.queue, entry)
	f.broadcastLocked()
	return true
}

// Pop removes the oldest entry, waiting up to timeout for one to arrive.
// It returns ErrEmpty on timeout, ErrClosed after Close, or the context
// error when ctx is done. A successful Pop must be paired with Done.
func (f *Frontier) Pop(ctx context.Context, timeout time.Duration) (model.FrontierEntry, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return model.FrontierEntry{}, ErrClosed
		}
		if len(f.queue) > 0 {
			entry := f.queue[0]
			f.queue[0] = model.FrontierEntry{}
			f.queue = f.queue[1:]
			f.inFlight++
			f.popped++
			f.mu.Unlock()
			return entry, nil
		}
		wake := f.wake
		f.mu.Unlock()

		select {
		case <-wake:
		case <-timer.C:
			return model.FrontierEntry{}, ErrEmpty
		case <-ctx.Done():
			return model.FrontierEntry{}, ctx.Err()
		}
	}
}

// Done marks one popped entry as fully processed. Links discovered while
// processing it must be pushed before Done is called.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight > 0 {
		f.inFlight--
	}
}

// Claim marks rawURL as dispatched for fetching. It reports false when the
// URL was already claimed, so at most one fetch happens per URL.
func (f *Frontier) Claim(rawURL string) bool {
	key := model.StripFragment(rawURL)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.claimed[key]; ok {
		return false
	}
	f.claimed[key] = struct{}{}
	f.seen[key] = struct{}{}
	return true
}

// Visited reports whether rawURL was already claimed for fetching.
func (f *Frontier) Visited(rawURL string) bool {
	key := model.StripFragment(rawURL)

	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.claimed[key]
	return ok
}

// Seen reports whether rawURL was ever queued or claimed.
func (f *Frontier) Seen(rawURL string) bool {
	key := model.StripFragment(rawURL)

	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[key]
	return ok
}

// Len returns the number of queued entries.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// InFlight returns the number of popped entries not yet marked Done.
func (f *Frontier) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// Idle reports whether the queue is empty and nothing is in flight.
func (f *Frontier) Idle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) == 0 && f.inFlight == 0
}

// Drained reports whether at least one entry was popped and the frontier
// has since become idle. A drained frontier cannot receive new work.
func (f *Frontier) Drained() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.popped > 0 && len(f.queue) == 0 && f.inFlight == 0
}

// Close wakes every blocked Pop and rejects further pushes.
// Queued entries are abandoned. Close is idempotent.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.broadcastLocked()
}

func (f *Frontier) broadcastLocked() {
	close(f.wake)
	f.wake = make(chan struct{})
}
