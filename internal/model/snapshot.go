package model

import (
	"maps"
	"slices"
)

// Snapshot is a point-in-time read of the crawl statistics.
// A Snapshot owns its maps; mutating them does not affect the aggregator.
type Snapshot struct {
	// FetchAttempts is the number of dispatched fetches.
	FetchAttempts int `json:"fetch_attempts"`

	// FetchesSucceeded counts fetches with a 2xx status.
	FetchesSucceeded int `json:"fetches_succeeded"`

	// FetchesFailed counts every other fetch, including synthetic codes.
	FetchesFailed int `json:"fetches_failed"`

	// TotalURLsExtracted counts every discovered link, duplicates included.
	TotalURLsExtracted int `json:"total_urls_extracted"`

	// UniqueURLsExtracted counts distinct discovered links.
	UniqueURLsExtracted int `json:"unique_urls_extracted"`

	// UniqueURLsWithinSite counts distinct in-scope links.
	UniqueURLsWithinSite int `json:"unique_urls_within_site"`

	// UniqueURLsOutsideSite counts distinct out-of-scope links.
	UniqueURLsOutsideSite int `json:"unique_urls_outside_site"`

	// StatusCodes maps each status code to its number of fetches.
	StatusCodes map[int]int `json:"status_codes"`

	// FileSizes maps each size bucket to its number of visits.
	FileSizes map[SizeBucket]int `json:"file_sizes"`

	// ContentTypes maps each parameter-free MIME type to its number of visits.
	ContentTypes map[string]int `json:"content_types"`
}

// SortedStatusCodes returns the status codes present in the histogram in
// ascending order.
func (s Snapshot) SortedStatusCodes() []int {
	return slices.Sorted(maps.Keys(s.StatusCodes))
}

// SortedContentTypes returns the content types present in the histogram in
// lexical order.
func (s Snapshot) SortedContentTypes() []string {
	return slices.Sorted(maps.Keys(s.ContentTypes))
}

// Visits returns the number of visit records the histogram was built from.
func (s Snapshot) Visits() int {
	total := 0
	for _, n := range s.FileSizes {
		total += n
	}
	return total
}
