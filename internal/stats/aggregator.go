// Package stats records what a crawl fetched and discovered.
//
// All mutations go through one mutex. The workload is dominated by network
// waits, so a single lock is not a point of contention.
package stats

import (
	"maps"
	"slices"
	"sync"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Aggregator is a thread-safe accumulator of crawl records and histograms.
type Aggregator struct {
	mu sync.Mutex

	fetches     []model.FetchRecord
	visits      []model.VisitRecord
	discoveries []model.DiscoveryRecord

	statusCodes  map[int]int
	fileSizes    map[model.SizeBucket]int
	contentTypes map[string]int

	uniqueExtracted map[string]struct{}
	uniqueWithin    map[string]struct{}
	uniqueOutside   map[string]struct{}
	visited         map[string]struct{}
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	a := &Aggregator{
		statusCodes:     make(map[int]int),
		fileSizes:       make(map[model.SizeBucket]int),
		contentTypes:    make(map[string]int),
		uniqueExtracted: make(map[string]struct{}),
		uniqueWithin:    make(map[string]struct{}),
		uniqueOutside:   make(map[string]struct{}),
		visited:         make(map[string]struct{}),
	}
	for _, b := range model.SizeBuckets {
		a.fileSizes[b] = 0
	}
	return a
}

// RecordFetchAttempt records one dispatched fetch and its status code.
func (a *Aggregator) RecordFetchAttempt(url string, statusCode int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.fetches = append(a.fetches, model.FetchRecord{URL: url, StatusCode: statusCode})
	a.statusCodes[statusCode]++
}

// RecordVisit records a successfully fetched and accepted page.
// The content type is stored without MIME parameters.
func (a *Aggregator) RecordVisit(url string, sizeBytes int64, outlinks int, contentType string) {
	contentType = model.NormalizeContentType(contentType)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.visits = append(a.visits, model.VisitRecord{
		URL:          url,
		SizeBytes:    sizeBytes,
		OutlinkCount: outlinks,
		ContentType:  contentType,
	})
	a.contentTypes[contentType]++
	a.fileSizes[model.BucketForSize(sizeBytes)]++
	a.visited[url] = struct{}{}
}

// RecordDiscovery records a link extracted from a page.
func (a *Aggregator) RecordDiscovery(url string, withinSite bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.discoveries = append(a.discoveries, model.DiscoveryRecord{URL: url, WithinSite: withinSite})
	a.uniqueExtracted[url] = struct{}{}
	if withinSite {
		a.uniqueWithin[url] = struct{}{}
	} else {
		a.uniqueOutside[url] = struct{}{}
	}
}

// IsVisited reports whether url has a visit record.
func (a *Aggregator) IsVisited(url string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.visited[url]
	return ok
}

// Snapshot computes the current statistics. Calling it twice with no
// writes in between returns equal snapshots.
func (a *Aggregator) Snapshot() model.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	succeeded := 0
	for _, f := range a.fetches {
		if f.Succeeded() {
			succeeded++
		}
	}

	return model.Snapshot{
		FetchAttempts:         len(a.fetches),
		FetchesSucceeded:      succeeded,
		FetchesFailed:         len(a.fetches) - succeeded,
		TotalURLsExtracted:    len(a.discoveries),
		UniqueURLsExtracted:   len(a.uniqueExtracted),
		UniqueURLsWithinSite:  len(a.uniqueWithin),
		UniqueURLsOutsideSite: len(a.uniqueOutside),
		StatusCodes:           maps.Clone(a.statusCodes),
		FileSizes:             maps.Clone(a.fileSizes),
		ContentTypes:          maps.Clone(a.contentTypes),
	}
}

// Fetches returns a copy of the fetch records in recording order.
func (a *Aggregator) Fetches() []model.FetchRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.fetches)
}

// Visits returns a copy of the visit records in recording order.
func (a *Aggregator) Visits() []model.VisitRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.visits)
}

// Discoveries returns a copy of the discovery records in recording order.
func (a *Aggregator) Discoveries() []model.DiscoveryRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.discoveries)
}
