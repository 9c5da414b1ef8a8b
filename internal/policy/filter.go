package policy

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/gobwas/glob"
	"github.com/nao1215/sitecrawl/internal/model"
)

// DefaultExcludedExtensions matches URL paths of stylesheets, scripts,
// data files, archives, executables and media outside the accepted image set.
const DefaultExcludedExtensions = `(?i)\.(css|js|json|xml|bmp|mp3|mp4|wav|avi|mov|mpeg|ram|m4v|` +
	`wmv|rm|smil|swf|wma|zip|rar|gz|tar|7z|exe|bin|dmg|iso)$`

// VisitedSet answers whether a URL was already dispatched for fetching.
type VisitedSet interface {
	Visited(rawURL string) bool
}

// RobotsPolicy answers whether robots.txt allows a user agent to fetch a URL.
type RobotsPolicy interface {
	CanFetch(userAgent, rawURL string) bool
}

// Rejection names the rule that refused a URL.
type Rejection string

// Rejection reasons returned by Filter.Check.
const (
	Admitted          Rejection = ""
	RejectedInvalid   Rejection = "invalid"
	RejectedVisited   Rejection = "visited"
	RejectedExtension Rejection = "extension"
	RejectedIgnored   Rejection = "ignored"
	RejectedRobots    Rejection = "robots"
)

// Filter is the URL admission predicate.
// A Filter is immutable after construction and safe for concurrent use.
type Filter struct {
	userAgent string
	excluded  *regexp.Regexp
	ignore    []glob.Glob
	robots    RobotsPolicy
}

// FilterOption configures a Filter.
type FilterOption func(*filterOptions)

type filterOptions struct {
	excluded       string
	ignorePatterns []string
	robots         RobotsPolicy
}

// WithExcludedExtensions replaces the extension denylist pattern.
// An empty pattern disables extension filtering.
func WithExcludedExtensions(pattern string) FilterOption {
	return func(o *filterOptions) {
		o.excluded = pattern
	}
}

// WithIgnorePatterns adds glob patterns matched against the URL path
// (e.g. "/login*", "/tag/**").
func WithIgnorePatterns(patterns []string) FilterOption {
	return func(o *filterOptions) {
		o.ignorePatterns = patterns
	}
}

// WithRobotsPolicy sets the robots policy. A nil policy admits everything.
func WithRobotsPolicy(robots RobotsPolicy) FilterOption {
	return func(o *filterOptions) {
		o.robots = robots
	}
}

// NewFilter builds a Filter for the given user agent.
func NewFilter(userAgent string, opts ...FilterOption) (*Filter, error) {
	o := filterOptions{excluded: DefaultExcludedExtensions}
	for _, opt := range opts {
		opt(&o)
	}

	f := &Filter{userAgent: userAgent, robots: o.robots}

	if o.excluded != "" {
		re, err := regexp.Compile(o.excluded)
		if err != nil {
			return nil, fmt.Errorf("invalid excluded extension pattern: %w", err)
		}
		f.excluded = re
	}

	for _, pattern := range o.ignorePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		f.ignore = append(f.ignore, g)
	}

	return f, nil
}

// Admit reports whether rawURL may be queued or fetched.
func (f *Filter) Admit(rawURL string, visited VisitedSet) bool {
	return f.Check(rawURL, visited) == Admitted
}

// Check returns the first rule that rejects rawURL, or Admitted.
// The rules are evaluated in the order visited, extension, ignore, robots.
func (f *Filter) Check(rawURL string, visited VisitedSet) Rejection {
	normalized := model.StripFragment(rawURL)
	u, err := url.Parse(normalized)
	if err != nil {
		return RejectedInvalid
	}

	if visited != nil && visited.Visited(normalized) {
		return RejectedVisited
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	if f.excluded != nil && f.excluded.MatchString(path) {
		return RejectedExtension
	}

	for _, g := range f.ignore {
		if g.Match(path) {
			return RejectedIgnored
		}
	}

	if f.robots != nil && !f.robots.CanFetch(f.userAgent, normalized) {
		return RejectedRobots
	}

	return Admitted
}
