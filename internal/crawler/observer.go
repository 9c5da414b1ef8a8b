package crawler

import "github.com/nao1215/sitecrawl/internal/model"

// Observer receives crawl events as they happen. Implementations must be
// safe for concurrent use; the metrics package provides one.
type Observer interface {
	// FetchCompleted is called once per dispatched fetch with its
	// (possibly synthetic) status code.
	FetchCompleted(site string, statusCode int)

	// PageVisited is called for each accepted page.
	PageVisited(site, contentType string, sizeBytes int64)

	// LinkDiscovered is called for each extracted link.
	LinkDiscovered(site string, withinSite bool)

	// URLQueued is called when a link enters the frontier.
	URLQueued(site string)

	// URLRejected is called when a popped entry is dropped before fetching.
	URLRejected(site, reason string)

	// CrawlStopped is called once when a run ends.
	CrawlStopped(site string, reason model.StopReason)
}

type nopObserver struct{}

func (nopObserver) FetchCompleted(string, int)            {}
func (nopObserver) PageVisited(string, string, int64)     {}
func (nopObserver) LinkDiscovered(string, bool)           {}
func (nopObserver) URLQueued(string)                      {}
func (nopObserver) URLRejected(string, string)            {}
func (nopObserver) CrawlStopped(string, model.StopReason) {}
