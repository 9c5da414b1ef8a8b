// Package robots loads a site's robots.txt once at crawl start and answers
// whether the crawler's user agent may fetch a URL.
package robots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
)

// maxRobotsSize caps how much of robots.txt is read.
const maxRobotsSize = 512 * 1024

// ErrUnavailable is returned when robots.txt could not be fetched or parsed.
// The policy returned alongside it is permissive.
var ErrUnavailable = errors.New("robots.txt unavailable")

// Policy is a parsed robots.txt.
// The zero value and a nil *Policy allow everything.
type Policy struct {
	data *robotstxt.RobotsData
}

// Permissive returns a policy that allows every URL.
func Permissive() *Policy {
	return &Policy{}
}

// Parse builds a policy from the body of a robots.txt file.
func Parse(body []byte) (*Policy, error) {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return &Policy{data: data}, nil
}

// CanFetch reports whether userAgent may fetch rawURL.
// URLs that cannot be parsed are allowed; they are rejected elsewhere.
func (p *Policy) CanFetch(userAgent, rawURL string) bool {
	if p == nil || p.data == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return p.data.TestAgent(path, userAgent)
}

// Loader fetches robots.txt for a site.
type Loader struct {
	client    *http.Client
	userAgent string
}

// NewLoader creates a Loader. A nil client gets a 10 second timeout.
func NewLoader(client *http.Client, userAgent string) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Loader{client: client, userAgent: userAgent}
}

// Load fetches <scheme>://<host>/robots.txt for siteURL.
//
// A 4xx response means the site has no robots.txt and yields an allow-all
// policy with a nil error. Transport failures, 5xx responses and unparseable
// files yield a permissive policy together with an error wrapping
// ErrUnavailable so the caller can log the fail-open decision.
func (l *Loader) Load(ctx context.Context, siteURL string) (*Policy, error) {
	u, err := url.Parse(siteURL)
	if err != nil {
		return Permissive(), fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return Permissive(), fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return Permissive(), fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Permissive(), nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Permissive(), fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return Permissive(), fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	policy, err := Parse(body)
	if err != nil {
		return Permissive(), fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return policy, nil
}
