package config

import (
	"maps"
	"slices"
	"time"
)

// SiteConfig holds the settings for one named site in the configuration
// file. Zero values mean "not set"; MaxDepth and Delay are pointers because
// 0 is a meaningful value for both.
type SiteConfig struct {
	// Seed is the URL the crawl of this site starts from.
	Seed string `yaml:"seed,omitempty"`

	// MaxPages overrides the page budget.
	MaxPages int `yaml:"maxPages,omitempty"`

	// MaxDepth overrides the depth limit.
	MaxDepth *int `yaml:"maxDepth,omitempty"`

	// Workers overrides the worker count.
	Workers int `yaml:"workers,omitempty"`

	// Delay overrides the politeness delay, e.g. "500ms".
	Delay *time.Duration `yaml:"delay,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Timeout overrides the per-request timeout.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// RateLimit caps requests per second to this site.
	RateLimit float64 `yaml:"rateLimit,omitempty"`

	// Cookie is an HTTP cookie to send with every request to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// AllowedContentTypes replaces the list of content types that count as visits.
	AllowedContentTypes []string `yaml:"allowedContentTypes,omitempty"`

	// ExcludedExtensions replaces the excluded extension regular expression.
	ExcludedExtensions string `yaml:"excludedExtensions,omitempty"`

	// IgnorePatterns are glob patterns for URL paths to skip.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`
}

// File represents the structure of the .sitecrawl configuration file.
type File struct {
	// Defaults apply to every site unless the site overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps site names to their settings.
	// Site names appear in report file names.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// SiteNames returns the configured site names in sorted order.
func (cf *File) SiteNames() []string {
	return slices.Sorted(maps.Keys(cf.Sites))
}

// HasSite reports whether name is configured.
func (cf *File) HasSite(name string) bool {
	_, ok := cf.Sites[name]
	return ok
}

// GetSiteConfig returns the configuration for a named site merged over
// the defaults. Unknown names get the defaults alone.
func (cf *File) GetSiteConfig(name string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	siteConfig, ok := cf.Sites[name]
	if !ok {
		return result
	}

	if siteConfig.Seed != "" {
		result.Seed = siteConfig.Seed
	}
	if siteConfig.MaxPages != 0 {
		result.MaxPages = siteConfig.MaxPages
	}
	if siteConfig.MaxDepth != nil {
		result.MaxDepth = siteConfig.MaxDepth
	}
	if siteConfig.Workers != 0 {
		result.Workers = siteConfig.Workers
	}
	if siteConfig.Delay != nil {
		result.Delay = siteConfig.Delay
	}
	if siteConfig.UserAgent != "" {
		result.UserAgent = siteConfig.UserAgent
	}
	if siteConfig.Timeout != 0 {
		result.Timeout = siteConfig.Timeout
	}
	if siteConfig.RateLimit != 0 {
		result.RateLimit = siteConfig.RateLimit
	}
	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	if len(siteConfig.AllowedContentTypes) > 0 {
		result.AllowedContentTypes = siteConfig.AllowedContentTypes
	}
	if siteConfig.ExcludedExtensions != "" {
		result.ExcludedExtensions = siteConfig.ExcludedExtensions
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}

	return result
}
