package crawler

import (
	"sync"

	"github.com/nao1215/sitecrawl/internal/model"
)

// State is the lifecycle stage of a crawl.
type State string

// Crawl lifecycle: RUNNING until a stop reason is raised, STOPPING while
// workers drain, STOPPED once every worker has returned.
const (
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING"
	StateStopped  State = "STOPPED"
)

// CrawlState holds the page budget counter and the stop flag of one run.
// Both are guarded by one mutex so the budget check and the increment
// happen in the same critical section.
type CrawlState struct {
	mu       sync.Mutex
	maxPages int
	fetched  int
	state    State
	reason   model.StopReason
}

// NewCrawlState returns a running state with the given page budget.
func NewCrawlState(maxPages int) *CrawlState {
	return &CrawlState{maxPages: maxPages, state: StateRunning}
}

// Reserve claims one fetch from the budget. It returns the new fetch count,
// or false when the crawl is stopping or the budget is already spent.
func (s *CrawlState) Reserve() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning || s.fetched >= s.maxPages {
		return s.fetched, false
	}
	s.fetched++
	return s.fetched, true
}

// Release returns a reservation whose fetch was never dispatched.
func (s *CrawlState) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetched > 0 {
		s.fetched--
	}
}

// Exhausted reports whether the budget has been spent.
func (s *CrawlState) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetched >= s.maxPages
}

// Stop raises the stop flag. Only the first reason is kept; Stop reports
// whether this call raised the flag.
func (s *CrawlState) Stop(reason model.StopReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return false
	}
	s.state = StateStopping
	s.reason = reason
	return true
}

// Stopped reports whether the stop flag is raised.
func (s *CrawlState) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateRunning
}

// finish marks the run as STOPPED after all workers returned.
func (s *CrawlState) finish(fallback model.StopReason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reason == model.StopReasonNone {
		s.reason = fallback
	}
	s.state = StateStopped
}

// Fetched returns how many fetches were reserved and not released.
func (s *CrawlState) Fetched() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetched
}

// State returns the lifecycle stage.
func (s *CrawlState) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reason returns why the crawl stopped, or StopReasonNone while running.
func (s *CrawlState) Reason() model.StopReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}
