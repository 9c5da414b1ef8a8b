package model

import "time"

// StopReason explains why a crawl ended.
type StopReason string

const (
	// StopReasonNone means the crawl has not stopped yet.
	StopReasonNone StopReason = ""

	// StopReasonBudget means the page budget was exhausted.
	StopReasonBudget StopReason = "budget"

	// StopReasonIdle means the workers found the frontier empty and idle.
	StopReasonIdle StopReason = "idle"

	// StopReasonCancelled means the caller's context was cancelled.
	StopReasonCancelled StopReason = "cancelled"
)

// CrawlResult is everything a finished crawl produced.
// It is the input for report writers and the archive database.
type CrawlResult struct {
	// Site is the short site identifier used in report file names.
	Site string `json:"site"`

	// SeedURL is the address the crawl started from.
	SeedURL string `json:"seed_url"`

	// Domain is the registrable domain that defines the crawl scope.
	Domain string `json:"domain"`

	// Workers is the number of concurrent workers used.
	Workers int `json:"workers"`

	// MaxPages and MaxDepth are the budget the crawl ran with.
	MaxPages int `json:"max_pages"`
	MaxDepth int `json:"max_depth"`

	// PagesFetched is the number of fetches dispatched against the budget.
	PagesFetched int `json:"pages_fetched"`

	// RobotsLoaded is false when robots.txt could not be loaded and the
	// crawl fell back to permissive filtering.
	RobotsLoaded bool `json:"robots_loaded"`

	// StopReason is why the crawl ended.
	StopReason StopReason `json:"stop_reason"`

	// StartedAt and FinishedAt bracket the crawl.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Snapshot is the final statistics snapshot.
	Snapshot Snapshot `json:"statistics"`

	// Fetches, Visits and Discoveries are the raw records in the order
	// they were recorded.
	Fetches     []FetchRecord     `json:"fetches"`
	Visits      []VisitRecord     `json:"visits"`
	Discoveries []DiscoveryRecord `json:"discoveries"`
}

// Elapsed returns how long the crawl ran.
func (r *CrawlResult) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
