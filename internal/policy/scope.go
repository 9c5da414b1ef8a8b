package policy

import (
	"errors"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrInvalidSeed is returned when a seed URL is not an absolute http(s) URL.
var ErrInvalidSeed = errors.New("seed must be an absolute http or https URL")

// Scope describes the set of hosts a crawl may fetch from.
type Scope struct {
	domain string
}

// NewScope derives the crawl scope from the seed URL.
// "https://www.example.co.uk/news" yields the scope "example.co.uk".
func NewScope(seedURL string) (Scope, error) {
	u, err := url.Parse(seedURL)
	if err != nil {
		return Scope{}, errors.Join(ErrInvalidSeed, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return Scope{}, ErrInvalidSeed
	}
	return Scope{domain: RegistrableDomain(u.Hostname())}, nil
}

// Domain returns the registrable domain that bounds the scope.
func (s Scope) Domain() string {
	return s.domain
}

// Contains reports whether rawURL is inside the scope.
func (s Scope) Contains(rawURL string) bool {
	return IsWithinScope(rawURL, s.domain)
}

// IsWithinScope reports whether the host of rawURL equals siteDomain or is
// a subdomain of it. Comparison is case-insensitive and ignores the port.
func IsWithinScope(rawURL, siteDomain string) bool {
	if siteDomain == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	domain := strings.TrimSuffix(strings.ToLower(siteDomain), ".")
	if host == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// RegistrableDomain returns the eTLD+1 of host ("news.bbc.co.uk" -> "bbc.co.uk").
// IP addresses, single-label hosts such as "localhost" and hosts the public
// suffix list cannot resolve are returned unchanged (lower-cased).
func RegistrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" || net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
