package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nao1215/sitecrawl/internal/fetcher"
	"github.com/nao1215/sitecrawl/internal/frontier"
	logpkg "github.com/nao1215/sitecrawl/internal/log"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/policy"
	"github.com/nao1215/sitecrawl/internal/robots"
	"github.com/nao1215/sitecrawl/internal/stats"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Default crawl settings applied by New.
const (
	DefaultMaxPages        = 10000
	DefaultMaxDepth        = 16
	DefaultWorkers         = 7
	DefaultPolitenessDelay = 2 * time.Second
	DefaultPollTimeout     = 2 * time.Second
	DefaultIdlePolls       = 5
	DefaultUserAgent       = "sitecrawl/1.0 (+https://github.com/nao1215/sitecrawl)"
)

// progressInterval is how many fetches pass between progress log lines.
const progressInterval = 100

// Reasons reported to Observer.URLRejected besides the policy.Rejection values.
const (
	rejectedDepth  = "depth"
	rejectedScope  = "scope"
	rejectedBudget = "budget"
)

// Fetcher retrieves one URL. A returned error means no HTTP response was
// obtained; the crawler turns it into a synthetic status code.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Response, error)
}

// RobotsLoader loads the robots policy of a site. On failure it returns a
// usable (permissive) policy together with the error.
type RobotsLoader interface {
	Load(ctx context.Context, siteURL string) (*robots.Policy, error)
}

// Crawler crawls one site within a page and depth budget.
// A Crawler may run several crawls one after another; each Run starts from
// an empty frontier and empty statistics.
type Crawler struct {
	fetcher      Fetcher
	extractor    LinkExtractor
	robotsLoader RobotsLoader
	logger       *slog.Logger
	observer     Observer

	site                string
	maxPages            int
	maxDepth            int
	workers             int
	delay               time.Duration
	userAgent           string
	allowedContentTypes []string
	excludedExtensions  string
	ignorePatterns      []string
	rateLimit           float64
	pollTimeout         time.Duration
	idlePolls           int

	current atomic.Pointer[CrawlState]
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithSite names the crawl in logs, metrics and reports.
func WithSite(name string) Option {
	return func(c *Crawler) {
		c.site = name
	}
}

// WithMaxPages sets the maximum number of fetches dispatched.
func WithMaxPages(n int) Option {
	return func(c *Crawler) {
		c.maxPages = n
	}
}

// WithMaxDepth sets the maximum link depth from the seed.
// 0 = only the seed, 1 = the seed and the pages it links to, etc.
func WithMaxDepth(depth int) Option {
	return func(c *Crawler) {
		c.maxDepth = depth
	}
}

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(c *Crawler) {
		c.workers = n
	}
}

// WithPolitenessDelay sets the sleep each worker takes before every fetch.
// With W workers the site sees up to W requests per delay.
func WithPolitenessDelay(d time.Duration) Option {
	return func(c *Crawler) {
		c.delay = d
	}
}

// WithUserAgent sets the user agent matched against robots.txt.
// The fetcher sends its own User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Crawler) {
		c.userAgent = ua
	}
}

// WithAllowedContentTypes sets the content types recorded as visits.
// An empty list accepts every type.
func WithAllowedContentTypes(types []string) Option {
	return func(c *Crawler) {
		c.allowedContentTypes = types
	}
}

// WithExcludedExtensions replaces the regular expression of URL paths that
// are never fetched. An empty pattern disables the check.
func WithExcludedExtensions(pattern string) Option {
	return func(c *Crawler) {
		c.excludedExtensions = pattern
	}
}

// WithIgnorePatterns sets glob patterns of URL paths that are never fetched.
func WithIgnorePatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.ignorePatterns = patterns
	}
}

// WithRobotsLoader sets how robots.txt is loaded. Without a loader the
// crawl is unrestricted.
func WithRobotsLoader(loader RobotsLoader) Option {
	return func(c *Crawler) {
		c.robotsLoader = loader
	}
}

// WithLinkExtractor replaces the HTML link extractor.
func WithLinkExtractor(extractor LinkExtractor) Option {
	return func(c *Crawler) {
		c.extractor = extractor
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithObserver registers an Observer for crawl events.
func WithObserver(observer Observer) Option {
	return func(c *Crawler) {
		c.observer = observer
	}
}

// WithRateLimit caps the site-wide request rate in requests per second,
// on top of the per-worker politeness delay. 0 disables the cap.
func WithRateLimit(perSecond float64) Option {
	return func(c *Crawler) {
		c.rateLimit = perSecond
	}
}

// WithPollTimeout sets how long a worker waits on an empty frontier per poll.
func WithPollTimeout(d time.Duration) Option {
	return func(c *Crawler) {
		c.pollTimeout = d
	}
}

// WithIdlePolls sets how many consecutive empty polls end a worker.
func WithIdlePolls(n int) Option {
	return func(c *Crawler) {
		c.idlePolls = n
	}
}

// New creates a Crawler that fetches through f.
func New(f Fetcher, opts ...Option) (*Crawler, error) {
	if f == nil {
		return nil, ErrNilFetcher
	}

	c := &Crawler{
		fetcher:             f,
		extractor:           HTMLLinkExtractor{},
		maxPages:            DefaultMaxPages,
		maxDepth:            DefaultMaxDepth,
		workers:             DefaultWorkers,
		delay:               DefaultPolitenessDelay,
		userAgent:           DefaultUserAgent,
		allowedContentTypes: policy.DefaultAllowedContentTypes,
		excludedExtensions:  policy.DefaultExcludedExtensions,
		pollTimeout:         DefaultPollTimeout,
		idlePolls:           DefaultIdlePolls,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logpkg.Discard()
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	if c.extractor == nil {
		c.extractor = HTMLLinkExtractor{}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Crawler) validate() error {
	switch {
	case c.workers < 1:
		return ErrInvalidWorkers
	case c.maxPages < 1:
		return ErrInvalidMaxPages
	case c.maxDepth < 0:
		return ErrInvalidMaxDepth
	case c.delay < 0:
		return ErrInvalidDelay
	case c.pollTimeout <= 0:
		return ErrInvalidPollTimeout
	case c.idlePolls < 1:
		return ErrInvalidIdlePolls
	case c.rateLimit < 0:
		return ErrInvalidRateLimit
	}

	// Compile the patterns once so a bad pattern fails here, not in Run.
	_, err := c.newFilter(nil)
	return err
}

func (c *Crawler) newFilter(robotsPolicy policy.RobotsPolicy) (*policy.Filter, error) {
	return policy.NewFilter(c.userAgent,
		policy.WithExcludedExtensions(c.excludedExtensions),
		policy.WithIgnorePatterns(c.ignorePatterns),
		policy.WithRobotsPolicy(robotsPolicy),
	)
}

// State returns the lifecycle stage of the latest run, or StateStopped
// when no run has started.
func (c *Crawler) State() State {
	if s := c.current.Load(); s != nil {
		return s.State()
	}
	return StateStopped
}

// Run crawls the site of seedURL until the budget is spent, the site is
// exhausted or ctx is cancelled.
//
// Per-URL failures are recorded in the result, never returned. Run returns
// an error for an invalid seed, and the context error after cancellation;
// in the latter case the partial result is returned as well.
func (c *Crawler) Run(ctx context.Context, seedURL string) (*model.CrawlResult, error) {
	scope, err := policy.NewScope(seedURL)
	if err != nil {
		return nil, err
	}
	seedURL = model.StripFragment(seedURL)

	site := c.site
	if site == "" {
		site = scope.Domain()
	}

	result := &model.CrawlResult{
		Site:      site,
		SeedURL:   seedURL,
		Domain:    scope.Domain(),
		Workers:   c.workers,
		MaxPages:  c.maxPages,
		MaxDepth:  c.maxDepth,
		StartedAt: time.Now(),
	}

	var robotsPolicy policy.RobotsPolicy
	if c.robotsLoader != nil {
		p, err := c.robotsLoader.Load(ctx, seedURL)
		if err != nil {
			c.logger.Warn("robots.txt unavailable, crawling without restrictions",
				"site", site,
				"error", err,
			)
		} else {
			result.RobotsLoaded = true
		}
		if p != nil {
			robotsPolicy = p
		}
	}

	filter, err := c.newFilter(robotsPolicy)
	if err != nil {
		return nil, fmt.Errorf("build url filter: %w", err)
	}

	r := &run{
		Crawler:  c,
		site:     site,
		scope:    scope,
		filter:   filter,
		frontier: frontier.New(),
		stats:    stats.NewAggregator(),
		state:    NewCrawlState(c.maxPages),
		started:  result.StartedAt,
	}
	if c.rateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(c.rateLimit), 1)
	}
	c.current.Store(r.state)

	c.logger.Info("crawl started",
		"site", site,
		"seed", seedURL,
		"domain", scope.Domain(),
		"workers", c.workers,
		"max_pages", c.maxPages,
		"max_depth", c.maxDepth,
	)

	r.frontier.Push(model.FrontierEntry{URL: seedURL, Depth: 0})

	stopOnCancel := context.AfterFunc(ctx, func() {
		r.stop(model.StopReasonCancelled)
	})
	defer stopOnCancel()

	var g errgroup.Group
	for id := range c.workers {
		g.Go(func() error {
			r.work(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	r.state.finish(model.StopReasonIdle)
	r.frontier.Close()

	result.FinishedAt = time.Now()
	result.StopReason = r.state.Reason()
	result.Fetches = r.stats.Fetches()
	result.Visits = r.stats.Visits()
	result.Discoveries = r.stats.Discoveries()
	result.Snapshot = r.stats.Snapshot()
	result.PagesFetched = len(result.Fetches)

	c.observer.CrawlStopped(site, result.StopReason)
	c.logger.Info("crawl finished",
		"site", site,
		"reason", result.StopReason,
		"fetched", result.PagesFetched,
		"visited", len(result.Visits),
		"discovered", len(result.Discoveries),
		"elapsed", result.Elapsed().Round(time.Millisecond),
	)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// run is the shared state of one Run call.
type run struct {
	*Crawler

	site     string
	scope    policy.Scope
	filter   *policy.Filter
	frontier *frontier.Frontier
	stats    *stats.Aggregator
	state    *CrawlState
	limiter  *rate.Limiter
	started  time.Time
}

// stop raises the stop flag and wakes workers blocked on the frontier.
func (r *run) stop(reason model.StopReason) {
	if r.state.Stop(reason) {
		r.logger.Info("crawl stopping", "site", r.site, "reason", reason)
		r.frontier.Close()
	}
}

// work is the worker loop. It returns when the stop flag is raised or the
// frontier stayed idle for idlePolls consecutive polls.
func (r *run) work(ctx context.Context, id int) {
	r.logger.Debug("worker started", "site", r.site, "worker", id)
	defer r.logger.Debug("worker finished", "site", r.site, "worker", id)

	idle := 0
	for {
		if r.state.Stopped() {
			return
		}
		if r.state.Exhausted() {
			r.stop(model.StopReasonBudget)
			return
		}

		entry, err := r.frontier.Pop(ctx, r.pollTimeout)
		if err != nil {
			if !errors.Is(err, frontier.ErrEmpty) {
				return
			}
			// Another worker still holds an entry that may produce links.
			if !r.frontier.Idle() {
				idle = 0
				continue
			}
			idle++
			if idle >= r.idlePolls && (r.state.Fetched() > 0 || r.frontier.Drained()) {
				return
			}
			continue
		}

		idle = 0
		r.process(ctx, entry)
		r.frontier.Done()
	}
}

// process handles one popped entry: admission, budget, delay, fetch and
// recording. Links found on the page are pushed before it returns.
func (r *run) process(ctx context.Context, entry model.FrontierEntry) {
	if entry.Depth > r.maxDepth {
		r.reject(entry, rejectedDepth)
		return
	}
	if !r.scope.Contains(entry.URL) {
		r.reject(entry, rejectedScope)
		return
	}
	if reason := r.filter.Check(entry.URL, r.frontier); reason != policy.Admitted {
		r.reject(entry, string(reason))
		return
	}
	if !r.frontier.Claim(entry.URL) {
		r.reject(entry, string(policy.RejectedVisited))
		return
	}

	n, ok := r.state.Reserve()
	if !ok {
		r.stop(model.StopReasonBudget)
		r.reject(entry, rejectedBudget)
		return
	}

	if !sleepContext(ctx, r.delay) {
		r.state.Release()
		return
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			r.state.Release()
			return
		}
	}

	// An in-flight fetch is never interrupted; its own timeout bounds it.
	resp, err := r.fetcher.Fetch(context.WithoutCancel(ctx), entry.URL)
	if err != nil {
		code := fetcher.StatusFromError(err)
		r.stats.RecordFetchAttempt(entry.URL, code)
		r.observer.FetchCompleted(r.site, code)
		r.logger.Debug("fetch failed",
			"url", entry.URL,
			"status", code,
			"error", err,
		)
		r.logProgress(n)
		return
	}

	r.stats.RecordFetchAttempt(entry.URL, resp.StatusCode)
	r.observer.FetchCompleted(r.site, resp.StatusCode)
	r.logProgress(n)

	if !model.IsSuccess(resp.StatusCode) || len(resp.Body) == 0 ||
		!policy.AcceptsContentType(resp.ContentType, r.allowedContentTypes) {
		return
	}

	outlinks := 0
	if policy.IsHTML(resp.ContentType) {
		links, err := r.extractor.ExtractLinks(resp.Body, entry.URL)
		if err != nil {
			r.logger.Debug("link extraction failed", "url", entry.URL, "error", err)
			links = nil
		}
		outlinks = len(links)
		for _, link := range links {
			r.discover(link, entry.Depth+1)
		}
	}

	r.stats.RecordVisit(entry.URL, resp.SizeBytes, outlinks, resp.ContentType)
	r.observer.PageVisited(r.site, model.NormalizeContentType(resp.ContentType), resp.SizeBytes)
}

// discover records an extracted link and queues it when it is within the
// site, within the depth limit and admitted by the filter.
func (r *run) discover(link string, depth int) {
	link = model.StripFragment(link)
	within := r.scope.Contains(link)

	r.stats.RecordDiscovery(link, within)
	r.observer.LinkDiscovered(r.site, within)

	if !within || depth > r.maxDepth || r.frontier.Seen(link) {
		return
	}
	if r.stats.IsVisited(link) || !r.filter.Admit(link, r.frontier) {
		return
	}
	if r.frontier.Push(model.FrontierEntry{URL: link, Depth: depth}) {
		r.observer.URLQueued(r.site)
	}
}

func (r *run) reject(entry model.FrontierEntry, reason string) {
	r.observer.URLRejected(r.site, reason)
	r.logger.Debug("url rejected",
		"url", entry.URL,
		"depth", entry.Depth,
		"reason", reason,
	)
}

func (r *run) logProgress(n int) {
	if n%progressInterval != 0 {
		return
	}
	r.logger.Info("crawl progress",
		"site", r.site,
		"fetched", n,
		"queued", r.frontier.Len(),
		"elapsed", time.Since(r.started).Round(time.Second),
	)
}

// sleepContext waits for d and reports false if ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
