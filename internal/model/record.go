package model

import (
	"net/url"
	"strings"
)

// Discovery indicators written to the discovered URL list.
const (
	// IndicatorWithinSite marks a link whose host is inside the crawl scope.
	IndicatorWithinSite = "OK"

	// IndicatorOutsideSite marks a link outside the crawl scope.
	IndicatorOutsideSite = "N_OK"
)

// FrontierEntry is a URL waiting to be fetched together with its
// seed-relative hop count. The seed has depth 0.
type FrontierEntry struct {
	// URL is the fragment-stripped absolute URL.
	URL string `json:"url"`

	// Depth is the number of links followed from the seed.
	Depth int `json:"depth"`
}

// FetchRecord is written once per dispatched fetch, successful or not.
type FetchRecord struct {
	// URL is the fetched URL.
	URL string `json:"url"`

	// StatusCode is the HTTP status, or a synthetic code for transport
	// failures (408 timeout, 503 connection failure, 500 other).
	StatusCode int `json:"status_code"`
}

// Succeeded reports whether the status code is in the 2xx range.
func (f FetchRecord) Succeeded() bool {
	return IsSuccess(f.StatusCode)
}

// VisitRecord is written once per successfully fetched and accepted page.
type VisitRecord struct {
	// URL is the visited URL.
	URL string `json:"url"`

	// SizeBytes is the size of the (decoded) response body.
	SizeBytes int64 `json:"size_bytes"`

	// OutlinkCount is the number of links extracted from the page.
	// Always 0 for non-HTML content.
	OutlinkCount int `json:"outlink_count"`

	// ContentType is the MIME type with parameters stripped.
	ContentType string `json:"content_type"`
}

// DiscoveryRecord is written once per link extracted from a parsed page,
// including links that were never queued.
type DiscoveryRecord struct {
	// URL is the extracted link with its fragment removed.
	URL string `json:"url"`

	// WithinSite reports whether the link is inside the crawl scope.
	WithinSite bool `json:"within_site"`
}

// Indicator returns OK for in-scope links and N_OK otherwise.
func (d DiscoveryRecord) Indicator() string {
	if d.WithinSite {
		return IndicatorWithinSite
	}
	return IndicatorOutsideSite
}

// IsSuccess reports whether code is a 2xx status.
func IsSuccess(code int) bool {
	return code >= 200 && code < 300
}

// StripFragment removes the #fragment part of a URL.
// Unparseable input is cut at the first '#'.
func StripFragment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		before, _, _ := strings.Cut(rawURL, "#")
		return before
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// NormalizeContentType strips MIME parameters such as charset and
// lower-cases the result: "text/HTML; charset=utf-8" becomes "text/html".
func NormalizeContentType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}
