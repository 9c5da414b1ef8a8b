// Package crawler runs a bounded, polite crawl of a single site.
//
// # Architecture
//
// A Crawler owns the configuration of a crawl. Each call to Run builds a
// fresh run: one Frontier, one statistics Aggregator, one URL Filter and a
// CrawlState holding the fetch budget and the stop flag. A fixed pool of
// workers shares these and loops until the stop flag is raised.
//
// # Worker loop
//
// Each worker pops an entry, drops it when it is deeper than the depth
// limit, outside the site's registrable domain or refused by the Filter,
// reserves one unit of the page budget, sleeps the politeness delay and
// fetches. Every attempt becomes a FetchRecord. Successful responses with
// an accepted content type become VisitRecords, and HTML pages have their
// links extracted, recorded as DiscoveryRecords and pushed to the Frontier
// when they are within the site.
//
// # Termination
//
// A crawl stops when the page budget is spent, when the context is
// cancelled, or when every worker has seen the Frontier empty with no entry
// in flight for IdlePolls consecutive polls. The idle rule is best effort:
// it is the only signal that the site has been exhausted.
//
// # Failures
//
// Per-URL failures never abort the crawl. Transport errors are recorded
// with synthetic status codes (408, 503, 500), unreadable HTML yields zero
// links, and an unavailable robots.txt leaves the crawl unrestricted.
//
// # Usage
//
//	c, err := crawler.New(fetcher.NewHTTPFetcher(fetcher.Options{}),
//		crawler.WithMaxPages(500),
//		crawler.WithWorkers(4),
//	)
//	result, err := c.Run(ctx, "https://example.com/")
package crawler
