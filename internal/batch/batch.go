// Package batch crawls several sites concurrently.
//
// Each site gets its own crawl run, and therefore its own frontier and
// statistics aggregator. A failed site never aborts the others; its error
// is returned in the site's Outcome.
package batch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	logpkg "github.com/nao1215/sitecrawl/internal/log"
	"github.com/nao1215/sitecrawl/internal/model"
)

// DefaultConcurrency is the number of sites crawled at the same time
// when no limit is configured.
const DefaultConcurrency = 2

// CrawlFunc crawls one named site.
// It is called once per site from its own goroutine.
type CrawlFunc func(ctx context.Context, site string) (*model.CrawlResult, error)

// Outcome is the result of crawling one site.
type Outcome struct {
	// Site is the site name passed to the processor.
	Site string

	// Result is the crawl result. It may be non-nil even when Err is set,
	// because a cancelled crawl still returns its partial result.
	Result *model.CrawlResult

	// Err is the error the crawl returned, if any.
	Err error
}

// Processor runs crawls for multiple sites with a concurrency limit.
//
// Design decision: errgroup.SetLimit instead of a worker pool. Each site
// gets its own goroutine and errgroup bounds how many run at once.
type Processor struct {
	// crawl runs one site.
	crawl CrawlFunc

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets a custom logger for batch processing.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Non-positive values keep the default.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// NewProcessor creates a Processor that calls crawl for every site.
func NewProcessor(crawl CrawlFunc, opts ...Option) *Processor {
	p := &Processor{
		crawl:       crawl,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = logpkg.Discard()
	}

	return p
}

// Concurrency returns the configured concurrency limit.
func (p *Processor) Concurrency() int {
	return p.concurrency
}

// Process crawls every site and returns one Outcome per site in input order.
// The returned error is non-nil only when ctx was cancelled. Outcomes of
// sites that never started then have a nil Result and the context error.
func (p *Processor) Process(ctx context.Context, sites []string) ([]Outcome, error) {
	p.logger.Info("starting batch crawl",
		"total_sites", len(sites),
		"concurrency", p.concurrency,
	)

	startTime := time.Now()
	outcomes := make([]Outcome, len(sites))
	started := make([]bool, len(sites))

	// Each goroutine writes only its own index, so no lock is needed.
	err := p.ProcessWithCallback(ctx, sites, func(o Outcome, i int) {
		outcomes[i] = o
		started[i] = true
	})

	for i, site := range sites {
		if !started[i] {
			outcomes[i] = Outcome{Site: site, Err: err}
		}
	}

	p.logger.Info("batch crawl complete",
		"total_sites", len(sites),
		"elapsed", time.Since(startTime),
	)

	return outcomes, err
}

// ProcessWithCallback crawls every site and calls callback as each one
// finishes. The callback runs on the crawl's goroutine and must be safe
// for concurrent use. It is not called for sites that never started
// because ctx was cancelled, in which case the context error is returned.
func (p *Processor) ProcessWithCallback(ctx context.Context, sites []string, callback func(o Outcome, index int)) error {
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i, site := range sites {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			p.logger.Info("crawling site",
				"site", site,
				"index", i+1,
				"total", len(sites),
			)

			result, err := p.crawl(ctx, site)
			if err != nil {
				p.logger.Warn("crawl failed",
					"site", site,
					"error", err,
				)
			} else {
				p.logger.Info("crawl completed",
					"site", site,
				)
			}

			// A failed site is recorded, not propagated, so the others keep going.
			callback(Outcome{Site: site, Result: result, Err: err}, i)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
