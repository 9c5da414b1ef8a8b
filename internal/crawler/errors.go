package crawler

import "errors"

// Sentinel errors returned by New.
var (
	// ErrNilFetcher is returned when no Fetcher is supplied.
	ErrNilFetcher = errors.New("fetcher must not be nil")

	// ErrInvalidWorkers is returned when the worker count is below 1.
	ErrInvalidWorkers = errors.New("workers must be at least 1")

	// ErrInvalidMaxPages is returned when the page budget is below 1.
	ErrInvalidMaxPages = errors.New("max pages must be at least 1")

	// ErrInvalidMaxDepth is returned for a negative depth limit.
	ErrInvalidMaxDepth = errors.New("max depth must not be negative")

	// ErrInvalidDelay is returned for a negative politeness delay.
	ErrInvalidDelay = errors.New("politeness delay must not be negative")

	// ErrInvalidPollTimeout is returned when the frontier poll timeout is not positive.
	ErrInvalidPollTimeout = errors.New("poll timeout must be positive")

	// ErrInvalidIdlePolls is returned when the idle threshold is below 1.
	ErrInvalidIdlePolls = errors.New("idle polls must be at least 1")

	// ErrInvalidRateLimit is returned for a negative rate limit.
	ErrInvalidRateLimit = errors.New("rate limit must not be negative")
)
