package config

import (
	"maps"
	"net/url"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitecrawl/internal/socks"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitecrawl"

	// DefaultMaxPages is the page budget: the number of fetches dispatched
	// before the crawl stops.
	DefaultMaxPages = 10000

	// DefaultMaxDepth is the maximum number of links followed from the seed.
	DefaultMaxDepth = 16

	// DefaultWorkers is the number of concurrent crawl workers per site.
	DefaultWorkers = 7

	// DefaultPolitenessDelay is the pause each worker takes before every fetch.
	// With 7 workers this keeps a site at roughly 3.5 requests per second.
	DefaultPolitenessDelay = 2 * time.Second

	// DefaultPollTimeout is how long a worker waits on an empty frontier.
	DefaultPollTimeout = 2 * time.Second

	// DefaultIdlePolls is how many consecutive empty polls end a worker.
	DefaultIdlePolls = 5

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultUserAgent identifies sitecrawl in HTTP requests and is the
	// agent matched against robots.txt groups.
	DefaultUserAgent = "sitecrawl/1.0 (+https://github.com/nao1215/sitecrawl)"

	// DefaultOutputDir is where report files are written.
	DefaultOutputDir = "."

	// DefaultConcurrency is the number of sites crawled at the same time.
	DefaultConcurrency = 2
)

// DefaultReportFormats are the report formats written when none are requested.
var DefaultReportFormats = []string{"csv", "text"}

// siteNamePattern restricts site names to characters safe in file names.
var siteNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Config holds all configuration options for one crawl.
// It is populated from defaults, the configuration file and CLI flags, in
// that order, and passed through the application rather than kept in
// global state.
//
// Design decision: a single flat struct. Per-site settings from the
// configuration file are applied onto a copy with ApplySite.
type Config struct {
	// SeedURL is the absolute http(s) URL the crawl starts from.
	SeedURL string

	// SiteName is the short identifier used in report file names and the
	// archive. Derived from the seed host when empty.
	SiteName string

	// MaxPages is the page budget.
	MaxPages int

	// MaxDepth is the maximum link depth. 0 fetches the seed only.
	MaxDepth int

	// Workers is the number of concurrent workers.
	Workers int

	// PolitenessDelay is the pause before every fetch, per worker.
	PolitenessDelay time.Duration

	// PollTimeout is how long a worker waits on an empty frontier.
	PollTimeout time.Duration

	// IdlePolls is how many consecutive empty polls end a worker.
	IdlePolls int

	// UserAgent is the User-Agent header and robots.txt agent.
	UserAgent string

	// AllowedContentTypes are the content types that count as visits.
	// Empty means the built-in list.
	AllowedContentTypes []string

	// ExcludedExtensions is a regular expression matched against URL paths.
	// Empty means the built-in pattern.
	ExcludedExtensions string

	// IgnorePatterns are glob patterns matched against URL paths.
	IgnorePatterns []string

	// Headers are extra request headers sent with every fetch.
	Headers map[string]string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxBodySize is the maximum response body size in bytes to read.
	// 0 uses the default.
	MaxBodySize int64

	// RateLimit caps requests per second across all workers. 0 disables it.
	RateLimit float64

	// SOCKS5Proxy, when set, is the host:port of a SOCKS5 proxy every
	// request goes through.
	SOCKS5Proxy string

	// OutputDir is where report files are written.
	OutputDir string

	// ReportFormats lists the report formats to write.
	ReportFormats []string

	// SaveToDB archives the finished crawl in the SQLite database.
	SaveToDB bool

	// DBDir is the directory holding the archive database.
	// Defaults to the XDG data directory (~/.local/share/sitecrawl on Linux).
	DBDir string

	// MetricsAddr is the listen address for the Prometheus endpoint.
	// Empty disables it.
	MetricsAddr string

	// LogFile, when set, receives log output with size-based rotation.
	LogFile string

	// JSONLog switches log output to JSON.
	JSONLog bool

	// Verbose enables debug logging.
	Verbose bool

	// Concurrency is the number of sites crawled at the same time.
	Concurrency int

	// ConfigFilePath is the path to the configuration file.
	// If empty, .sitecrawl is searched in the current and home directories.
	ConfigFilePath string

	// Sites are the names of configured sites to crawl.
	Sites []string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxPages:        DefaultMaxPages,
		MaxDepth:        DefaultMaxDepth,
		Workers:         DefaultWorkers,
		PolitenessDelay: DefaultPolitenessDelay,
		PollTimeout:     DefaultPollTimeout,
		IdlePolls:       DefaultIdlePolls,
		UserAgent:       DefaultUserAgent,
		Timeout:         DefaultTimeout,
		MaxBodySize:     DefaultMaxBodySize,
		OutputDir:       DefaultOutputDir,
		ReportFormats:   slices.Clone(DefaultReportFormats),
		DBDir:           XDGDataDir(),
		Concurrency:     DefaultConcurrency,
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	dup := *c
	dup.AllowedContentTypes = slices.Clone(c.AllowedContentTypes)
	dup.IgnorePatterns = slices.Clone(c.IgnorePatterns)
	dup.ReportFormats = slices.Clone(c.ReportFormats)
	dup.Sites = slices.Clone(c.Sites)
	dup.Headers = maps.Clone(c.Headers)
	return &dup
}

// ApplySite overlays the non-zero settings of sc onto c.
// The cookie, when set, becomes a Cookie request header.
func (c *Config) ApplySite(sc SiteConfig) {
	if sc.Seed != "" {
		c.SeedURL = sc.Seed
	}
	if sc.MaxPages != 0 {
		c.MaxPages = sc.MaxPages
	}
	if sc.MaxDepth != nil {
		c.MaxDepth = *sc.MaxDepth
	}
	if sc.Workers != 0 {
		c.Workers = sc.Workers
	}
	if sc.Delay != nil {
		c.PolitenessDelay = *sc.Delay
	}
	if sc.UserAgent != "" {
		c.UserAgent = sc.UserAgent
	}
	if sc.Timeout != 0 {
		c.Timeout = sc.Timeout
	}
	if sc.RateLimit != 0 {
		c.RateLimit = sc.RateLimit
	}
	if len(sc.AllowedContentTypes) > 0 {
		c.AllowedContentTypes = slices.Clone(sc.AllowedContentTypes)
	}
	if sc.ExcludedExtensions != "" {
		c.ExcludedExtensions = sc.ExcludedExtensions
	}
	if len(sc.IgnorePatterns) > 0 {
		c.IgnorePatterns = slices.Clone(sc.IgnorePatterns)
	}
	if len(sc.Headers) > 0 || sc.Cookie != "" {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		maps.Copy(c.Headers, sc.Headers)
		if sc.Cookie != "" {
			c.Headers["Cookie"] = sc.Cookie
		}
	}
}

// XDGDataDir returns the XDG data directory for sitecrawl.
// On Linux: ~/.local/share/sitecrawl
// On macOS: ~/Library/Application Support/sitecrawl
// On Windows: %LOCALAPPDATA%\sitecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitecrawl.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// SiteNameFromSeed derives a site name from the seed host, dropping a
// leading "www." and any port. It returns "" if the seed has no host.
func SiteNameFromSeed(seed string) string {
	u, err := url.Parse(seed)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	return host
}

// ValidSiteName reports whether name can be used in report file names.
func ValidSiteName(name string) bool {
	return siteNamePattern.MatchString(name)
}

// Validate checks if the configuration is valid for a single crawl.
// It fills in SiteName from the seed when empty and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.SeedURL == "" {
		return ErrNoTarget
	}
	u, err := url.Parse(c.SeedURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidSeed
	}

	if c.SiteName == "" {
		c.SiteName = SiteNameFromSeed(c.SeedURL)
	}
	if !ValidSiteName(c.SiteName) {
		return ErrInvalidSiteName
	}

	switch {
	case c.MaxPages <= 0:
		return ErrInvalidMaxPages
	case c.MaxDepth < 0:
		return ErrInvalidMaxDepth
	case c.Workers <= 0:
		return ErrInvalidWorkers
	case c.PolitenessDelay < 0:
		return ErrInvalidPolitenessDelay
	case c.PollTimeout <= 0:
		return ErrInvalidPollTimeout
	case c.IdlePolls <= 0:
		return ErrInvalidIdlePolls
	case c.Timeout <= 0:
		return ErrInvalidTimeout
	case c.MaxBodySize < 0:
		return ErrInvalidMaxBodySize
	case c.RateLimit < 0:
		return ErrInvalidRateLimit
	case c.SOCKS5Proxy != "" && !socks.ValidAddress(c.SOCKS5Proxy):
		return ErrInvalidProxy
	case c.Concurrency <= 0:
		return ErrInvalidConcurrency
	case len(c.ReportFormats) == 0:
		return ErrNoReportFormat
	}

	return nil
}
