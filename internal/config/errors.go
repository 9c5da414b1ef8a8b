package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can match them
// with errors.Is().
var (
	// ErrNoTarget is returned when neither a seed URL nor a configured site
	// name was given.
	ErrNoTarget = errors.New("no target specified: use --seed or name a site from the config file")

	// ErrInvalidSeed is returned when the seed is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("invalid seed URL: must be an absolute http or https URL")

	// ErrInvalidMaxPages is returned when the page budget is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidMaxDepth is returned when the depth limit is negative.
	// Depth 0 is valid and fetches the seed only.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidPolitenessDelay is returned when the delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidPolitenessDelay = errors.New("invalid politeness delay: must be non-negative")

	// ErrInvalidPollTimeout is returned when the frontier poll timeout is not positive.
	ErrInvalidPollTimeout = errors.New("invalid poll timeout: must be positive")

	// ErrInvalidIdlePolls is returned when the idle poll threshold is not positive.
	ErrInvalidIdlePolls = errors.New("invalid idle polls: must be positive")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidRateLimit is returned when the site-wide rate cap is negative.
	// Use 0 to disable it.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidProxy is returned when the SOCKS5 proxy address is not host:port.
	ErrInvalidProxy = errors.New("invalid SOCKS5 proxy: expected host:port")

	// ErrInvalidConcurrency is returned when the batch concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidSiteName is returned when a site name cannot be used in a file name.
	ErrInvalidSiteName = errors.New("invalid site name: use letters, digits, '.', '-' or '_'")

	// ErrNoReportFormat is returned when the report format list is empty.
	ErrNoReportFormat = errors.New("no report format specified")

	// ErrUnknownSite is returned when a named site is missing from the config file.
	ErrUnknownSite = errors.New("site not found in configuration file")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
