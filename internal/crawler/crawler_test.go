package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/fetcher"
	logpkg "github.com/nao1215/sitecrawl/internal/log"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/policy"
	"github.com/nao1215/sitecrawl/internal/robots"
)

const testSite = "https://example.com/"

// fakePage is a canned response of fakeFetcher.
type fakePage struct {
	status      int
	contentType string
	body        string
	err         error
}

// fakeFetcher serves pages from a map and counts requests per URL.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]fakePage
	calls map[string]int
	delay time.Duration
}

func newFakeFetcher(pages map[string]fakePage) *fakeFetcher {
	return &fakeFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*fetcher.Response, error) {
	f.mu.Lock()
	f.calls[rawURL]++
	page, ok := f.pages[rawURL]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if !ok {
		return &fetcher.Response{StatusCode: 404, ContentType: "text/html", Body: []byte("not found"), SizeBytes: 9}, nil
	}
	if page.err != nil {
		return nil, page.err
	}

	status := page.status
	if status == 0 {
		status = 200
	}
	contentType := page.contentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	return &fetcher.Response{
		StatusCode:  status,
		ContentType: contentType,
		Body:        []byte(page.body),
		SizeBytes:   int64(len(page.body)),
	}, nil
}

func (f *fakeFetcher) callCount(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// staticRobots returns a fixed policy.
type staticRobots struct {
	policy *robots.Policy
	err    error
}

func (s staticRobots) Load(context.Context, string) (*robots.Policy, error) {
	return s.policy, s.err
}

// timeoutError is a net.Error that reports a timeout.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// linkPage renders an HTML page linking to every href.
func linkPage(hrefs ...string) fakePage {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, h)
	}
	b.WriteString("</body></html>")
	return fakePage{body: b.String()}
}

func discardLogger() *slog.Logger {
	return logpkg.Discard()
}

// newTestCrawler builds a fast crawler: no politeness delay, short polls.
func newTestCrawler(t *testing.T, f Fetcher, opts ...Option) *Crawler {
	t.Helper()

	base := []Option{
		WithPolitenessDelay(0),
		WithPollTimeout(10 * time.Millisecond),
		WithIdlePolls(3),
		WithWorkers(4),
		WithLogger(discardLogger()),
	}
	c, err := New(f, append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to create crawler: %v", err)
	}
	return c
}

func runCrawl(t *testing.T, c *Crawler, seed string) *model.CrawlResult {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := c.Run(ctx, seed)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	return result
}

func fetchedURLs(result *model.CrawlResult) map[string]int {
	m := make(map[string]int)
	for _, f := range result.Fetches {
		m[f.URL]++
	}
	return m
}

// TestCrawlerLinearSite tests a seed linking to three in-scope pages and one
// out-of-scope page.
func TestCrawlerLinearSite(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]fakePage{
		testSite:                     linkPage("/a", "/b", "https://blog.example.com/c", "https://other.org/x"),
		"https://example.com/a":      {body: "<html>a</html>"},
		"https://example.com/b":      {body: "<html>b</html>"},
		"https://blog.example.com/c": {body: "<html>c</html>"},
		"https://other.org/x":        {body: "<html>x</html>"},
	})

	result := runCrawl(t, newTestCrawler(t, f, WithMaxDepth(1)), testSite)

	if len(result.Visits) != 4 {
		t.Errorf("expected 4 visits, got %d: %+v", len(result.Visits), result.Visits)
	}
	if len(result.Discoveries) != 4 {
		t.Fatalf("expected 4 discoveries, got %d", len(result.Discoveries))
	}

	within := 0
	for _, d := range result.Discoveries {
		if d.WithinSite {
			within++
		}
		if d.WithinSite != policy.IsWithinScope(d.URL, result.Domain) {
			t.Errorf("discovery %s misclassified", d.URL)
		}
	}
	if within != 3 {
		t.Errorf("expected 3 within-site discoveries, got %d", within)
	}

	if f.callCount("https://other.org/x") != 0 {
		t.Error("out-of-scope page was fetched")
	}
	for _, v := range result.Visits {
		if !policy.IsWithinScope(v.URL, result.Domain) {
			t.Errorf("visit %s is outside the site", v.URL)
		}
	}

	seed := result.Visits[0]
	for _, v := range result.Visits {
		if v.URL == testSite {
			seed = v
		}
	}
	if seed.OutlinkCount != 4 {
		t.Errorf("expected seed outlink count 4, got %d", seed.OutlinkCount)
	}
	if result.StopReason != model.StopReasonIdle {
		t.Errorf("expected idle stop, got %q", result.StopReason)
	}
	if result.Domain != "example.com" {
		t.Errorf("expected domain example.com, got %q", result.Domain)
	}
}

// TestCrawlerBudgetCutoff tests that no more than maxPages fetches are dispatched.
func TestCrawlerBudgetCutoff(t *testing.T) {
	t.Parallel()

	pages := map[string]fakePage{}
	hrefs := make([]string, 0, 50)
	for i := range 50 {
		href := fmt.Sprintf("/p%d", i)
		hrefs = append(hrefs, href)
		pages["https://example.com"+href] = fakePage{body: "<html>leaf</html>"}
	}
	pages[testSite] = linkPage(hrefs...)
	f := newFakeFetcher(pages)

	c := newTestCrawler(t, f, WithMaxPages(10), WithWorkers(6))
	result := runCrawl(t, c, testSite)

	if len(result.Fetches) != 10 {
		t.Errorf("expected exactly 10 fetches, got %d", len(result.Fetches))
	}
	if f.totalCalls() != 10 {
		t.Errorf("expected 10 fetcher calls, got %d", f.totalCalls())
	}
	if result.StopReason != model.StopReasonBudget {
		t.Errorf("expected budget stop, got %q", result.StopReason)
	}
	if c.State() != StateStopped {
		t.Errorf("expected STOPPED after Run, got %s", c.State())
	}
}

// TestCrawlerExcludedExtension tests that denylisted links are discovered but not fetched.
func TestCrawlerExcludedExtension(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]fakePage{
		testSite:                          linkPage("/archive.zip", "/style.css", "/page"),
		"https://example.com/page":        {body: "<html>page</html>"},
		"https://example.com/archive.zip": {contentType: "application/zip", body: "PK"},
	})

	result := runCrawl(t, newTestCrawler(t, f), testSite)

	fetched := fetchedURLs(result)
	if fetched["https://example.com/archive.zip"] != 0 || f.callCount("https://example.com/archive.zip") != 0 {
		t.Error("excluded .zip link was fetched")
	}
	if fetched["https://example.com/style.css"] != 0 {
		t.Error("excluded .css link was fetched")
	}
	if fetched["https://example.com/page"] != 1 {
		t.Error("expected /page to be fetched once")
	}

	found := false
	for _, d := range result.Discoveries {
		if d.URL == "https://example.com/archive.zip" {
			found = true
		}
	}
	if !found {
		t.Error("expected .zip link to be recorded as discovered")
	}
}

// TestCrawlerRobotsDisallow tests that robots.txt rules block fetches.
func TestCrawlerRobotsDisallow(t *testing.T) {
	t.Parallel()

	rules, err := robots.Parse([]byte("User-agent: *\nDisallow: /private\n"))
	if err != nil {
		t.Fatalf("failed to parse robots.txt: %v", err)
	}

	f := newFakeFetcher(map[string]fakePage{
		testSite:                             linkPage("/private/secret", "/public"),
		"https://example.com/public":         {body: "<html>public</html>"},
		"https://example.com/private/secret": {body: "<html>secret</html>"},
	})

	c := newTestCrawler(t, f, WithRobotsLoader(staticRobots{policy: rules}))
	result := runCrawl(t, c, testSite)

	if !result.RobotsLoaded {
		t.Error("expected RobotsLoaded to be true")
	}
	if f.callCount("https://example.com/private/secret") != 0 {
		t.Error("robots-disallowed page was fetched")
	}
	if f.callCount("https://example.com/public") != 1 {
		t.Error("expected allowed page to be fetched")
	}
	for _, rec := range result.Fetches {
		if rec.URL == "https://example.com/private/secret" {
			t.Errorf("unexpected fetch record for disallowed url: %+v", rec)
		}
	}
	if len(result.Discoveries) != 2 {
		t.Errorf("expected 2 discoveries, got %d", len(result.Discoveries))
	}
}

// TestCrawlerRobotsUnavailable tests that a robots.txt failure fails open.
func TestCrawlerRobotsUnavailable(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]fakePage{
		testSite:                      linkPage("/private"),
		"https://example.com/private": {body: "<html>ok</html>"},
	})

	loader := staticRobots{policy: robots.Permissive(), err: robots.ErrUnavailable}
	result := runCrawl(t, newTestCrawler(t, f, WithRobotsLoader(loader)), testSite)

	if result.RobotsLoaded {
		t.Error("expected RobotsLoaded to be false")
	}
	if f.callCount("https://example.com/private") != 1 {
		t.Error("expected the crawl to continue unrestricted")
	}
}

// TestCrawlerNoDoubleFetch tests that every URL is fetched at most once
// when all pages link to each other.
func TestCrawlerNoDoubleFetch(t *testing.T) {
	t.Parallel()

	const n = 25
	hrefs := make([]string, 0, n*2)
	for i := range n {
		hrefs = append(hrefs, fmt.Sprintf("/n%d", i), fmt.Sprintf("/n%d#section", i))
	}
	hrefs = append(hrefs, "/", "/#top")

	pages := map[string]fakePage{testSite: linkPage(hrefs...)}
	for i := range n {
		pages[fmt.Sprintf("https://example.com/n%d", i)] = linkPage(hrefs...)
	}
	f := newFakeFetcher(pages)

	result := runCrawl(t, newTestCrawler(t, f, WithWorkers(8)), testSite)

	for u, count := range fetchedURLs(result) {
		if count != 1 {
			t.Errorf("%s has %d fetch records", u, count)
		}
	}
	for u, count := range f.calls {
		if count != 1 {
			t.Errorf("%s fetched %d times", u, count)
		}
	}
	if len(result.Fetches) != n+1 {
		t.Errorf("expected %d fetches, got %d", n+1, len(result.Fetches))
	}
}

// TestCrawlerDepthLimit tests that pages beyond maxDepth are never fetched.
func TestCrawlerDepthLimit(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]fakePage{
		testSite:                linkPage("/1"),
		"https://example.com/1": linkPage("/2"),
		"https://example.com/2": linkPage("/3"),
		"https://example.com/3": linkPage("/4"),
	})

	t.Run("limit 2", func(t *testing.T) {
		t.Parallel()

		result := runCrawl(t, newTestCrawler(t, f, WithMaxDepth(2)), testSite)

		fetched := fetchedURLs(result)
		if len(fetched) != 3 {
			t.Errorf("expected 3 fetched urls, got %v", fetched)
		}
		if fetched["https://example.com/3"] != 0 {
			t.Error("page at depth 3 was fetched")
		}
	})

	t.Run("limit 0", func(t *testing.T) {
		t.Parallel()

		g := newFakeFetcher(f.pages)
		result := runCrawl(t, newTestCrawler(t, g, WithMaxDepth(0)), testSite)

		if len(result.Fetches) != 1 {
			t.Errorf("expected only the seed to be fetched, got %d", len(result.Fetches))
		}
		if len(result.Discoveries) != 1 {
			t.Errorf("expected seed links to be discovered, got %d", len(result.Discoveries))
		}
	})
}

// TestCrawlerSeedRejected tests that a crawl whose seed is filtered ends.
func TestCrawlerSeedRejected(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]fakePage{})
	result := runCrawl(t, newTestCrawler(t, f), "https://example.com/download.zip")

	if len(result.Fetches) != 0 {
		t.Errorf("expected no fetches, got %d", len(result.Fetches))
	}
	if result.StopReason != model.StopReasonIdle {
		t.Errorf("expected idle stop, got %q", result.StopReason)
	}
}

// TestCrawlerTransportFailures tests synthetic status codes for fetch errors.
func TestCrawlerTransportFailures(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]fakePage{
		testSite:                   linkPage("/slow", "/down", "/odd", "/missing"),
		"https://example.com/slow": {err: fmt.Errorf("http fetch failed: %w", timeoutError{})},
		"https://example.com/down": {err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}},
		"https://example.com/odd":  {err: errors.New("read body: unexpected EOF")},
	})

	result := runCrawl(t, newTestCrawler(t, f), testSite)

	codes := make(map[string]int)
	for _, rec := range result.Fetches {
		codes[rec.URL] = rec.StatusCode
	}
	want := map[string]int{
		testSite:                    200,
		"https://example.com/slow":    408,
		"https://example.com/down":    503,
		"https://example.com/odd":     500,
		"https://example.com/missing": 404,
	}
	for u, code := range want {
		if codes[u] != code {
			t.Errorf("%s: expected status %d, got %d", u, code, codes[u])
		}
	}

	if len(result.Visits) != 1 {
		t.Errorf("expected only the seed as visit, got %d", len(result.Visits))
	}
	if result.Snapshot.FetchesFailed != 4 {
		t.Errorf("expected 4 failed fetches, got %d", result.Snapshot.FetchesFailed)
	}
	if f.callCount("https://example.com/slow") != 1 {
		t.Error("failed fetches must not be retried")
	}
}

// TestCrawlerContentTypes tests which responses become visits.
func TestCrawlerContentTypes(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]fakePage{
		testSite:                       linkPage("/logo.png", "/blob", "/empty", "/doc.pdf"),
		"https://example.com/logo.png": {contentType: "image/png", body: strings.Repeat("x", 2048)},
		"https://example.com/blob":     {contentType: "application/octet-stream", body: "data"},
		"https://example.com/empty":    {body: ""},
		"https://example.com/doc.pdf":  {contentType: "application/pdf", body: `<a href="/never">x</a>`},
	})

	result := runCrawl(t, newTestCrawler(t, f), testSite)

	visits := make(map[string]model.VisitRecord)
	for _, v := range result.Visits {
		visits[v.URL] = v
	}

	if v, ok := visits["https://example.com/logo.png"]; !ok || v.OutlinkCount != 0 || v.ContentType != "image/png" {
		t.Errorf("unexpected image visit: %+v (present %v)", v, ok)
	}
	if _, ok := visits["https://example.com/blob"]; ok {
		t.Error("disallowed content type recorded as visit")
	}
	if _, ok := visits["https://example.com/empty"]; ok {
		t.Error("empty body recorded as visit")
	}
	if f.callCount("https://example.com/never") != 0 {
		t.Error("links were extracted from a non-HTML page")
	}
	if len(result.Fetches) != 5 {
		t.Errorf("expected 5 fetch records, got %d", len(result.Fetches))
	}
	if result.Snapshot.FileSizes[model.Size1KBTo10KB] != 1 {
		t.Errorf("expected one 1KB~<10KB visit, got %v", result.Snapshot.FileSizes)
	}
}

// TestCrawlerCancellation tests that cancelling the context stops the crawl
// and still returns the partial result.
func TestCrawlerCancellation(t *testing.T) {
	t.Parallel()

	pages := map[string]fakePage{}
	hrefs := make([]string, 0, 200)
	for i := range 200 {
		href := fmt.Sprintf("/p%d", i)
		hrefs = append(hrefs, href)
		pages["https://example.com"+href] = fakePage{body: "<html>leaf</html>"}
	}
	pages[testSite] = linkPage(hrefs...)
	f := newFakeFetcher(pages)
	f.delay = 20 * time.Millisecond

	c := newTestCrawler(t, f, WithWorkers(2))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	result, err := c.Run(ctx, testSite)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result == nil {
		t.Fatal("expected a partial result")
	}
	if result.StopReason != model.StopReasonCancelled {
		t.Errorf("expected cancelled stop, got %q", result.StopReason)
	}
	if len(result.Fetches) == 0 || len(result.Fetches) >= 201 {
		t.Errorf("expected a partial crawl, got %d fetches", len(result.Fetches))
	}
	if len(result.Fetches) != f.totalCalls() {
		t.Errorf("every dispatched fetch must be recorded: %d records, %d calls", len(result.Fetches), f.totalCalls())
	}
}

// TestCrawlerCancelDuringDelay tests that a fetch cancelled before dispatch
// does not count against the budget.
func TestCrawlerCancelDuringDelay(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]fakePage{testSite: linkPage("/a")})
	c := newTestCrawler(t, f, WithPolitenessDelay(time.Second), WithWorkers(2))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	result, err := c.Run(ctx, testSite)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if f.totalCalls() != 0 {
		t.Errorf("expected no dispatched fetch, got %d", f.totalCalls())
	}
	if len(result.Fetches) != 0 {
		t.Errorf("expected no fetch records, got %d", len(result.Fetches))
	}
	if got := c.current.Load().Fetched(); got != len(result.Fetches) {
		t.Errorf("expected budget count %d, got %d", len(result.Fetches), got)
	}
}

// TestCrawlerInvalidSeed tests seed validation.
func TestCrawlerInvalidSeed(t *testing.T) {
	t.Parallel()

	c := newTestCrawler(t, newFakeFetcher(nil))
	for _, seed := range []string{"", "example.com", "ftp://example.com/", "http://"} {
		if _, err := c.Run(context.Background(), seed); !errors.Is(err, policy.ErrInvalidSeed) {
			t.Errorf("seed %q: expected ErrInvalidSeed, got %v", seed, err)
		}
	}
}

// TestCrawlerIgnorePatterns tests glob ignore patterns.
func TestCrawlerIgnorePatterns(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]fakePage{
		testSite:                        linkPage("/admin/panel", "/blog/post"),
		"https://example.com/blog/post": {body: "<html>post</html>"},
	})

	result := runCrawl(t, newTestCrawler(t, f, WithIgnorePatterns([]string{"/admin/*"})), testSite)

	if f.callCount("https://example.com/admin/panel") != 0 {
		t.Error("ignored path was fetched")
	}
	if f.callCount("https://example.com/blog/post") != 1 {
		t.Error("expected /blog/post to be fetched")
	}
	if len(result.Fetches) != 2 {
		t.Errorf("expected 2 fetches, got %d", len(result.Fetches))
	}
}

// TestCrawlerRateLimit tests that a rate cap still completes the crawl.
func TestCrawlerRateLimit(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]fakePage{
		testSite:                linkPage("/a", "/b"),
		"https://example.com/a": {body: "<html>a</html>"},
		"https://example.com/b": {body: "<html>b</html>"},
	})

	start := time.Now()
	result := runCrawl(t, newTestCrawler(t, f, WithRateLimit(20)), testSite)

	if len(result.Fetches) != 3 {
		t.Errorf("expected 3 fetches, got %d", len(result.Fetches))
	}
	// Three requests at 20/s with a burst of one need at least 100ms.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("rate limit not applied, crawl took %v", elapsed)
	}
}

// recordingObserver counts crawl events.
type recordingObserver struct {
	mu         sync.Mutex
	fetches    int
	visits     int
	discovered int
	queued     int
	rejected   map[string]int
	stopped    []model.StopReason
}

func (o *recordingObserver) FetchCompleted(string, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fetches++
}

func (o *recordingObserver) PageVisited(string, string, int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.visits++
}

func (o *recordingObserver) LinkDiscovered(string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.discovered++
}

func (o *recordingObserver) URLQueued(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queued++
}

func (o *recordingObserver) URLRejected(_ string, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rejected == nil {
		o.rejected = make(map[string]int)
	}
	o.rejected[reason]++
}

func (o *recordingObserver) CrawlStopped(_ string, reason model.StopReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = append(o.stopped, reason)
}

// TestCrawlerObserver tests that observer events mirror the result.
func TestCrawlerObserver(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]fakePage{
		testSite:                linkPage("/a", "/b", "https://other.org/"),
		"https://example.com/a": {body: "<html>a</html>"},
	})
	obs := &recordingObserver{}

	result := runCrawl(t, newTestCrawler(t, f, WithObserver(obs), WithSite("example")), testSite)

	if result.Site != "example" {
		t.Errorf("expected site name example, got %q", result.Site)
	}
	if obs.fetches != len(result.Fetches) {
		t.Errorf("observer saw %d fetches, result has %d", obs.fetches, len(result.Fetches))
	}
	if obs.visits != len(result.Visits) {
		t.Errorf("observer saw %d visits, result has %d", obs.visits, len(result.Visits))
	}
	if obs.discovered != len(result.Discoveries) {
		t.Errorf("observer saw %d discoveries, result has %d", obs.discovered, len(result.Discoveries))
	}
	if obs.queued != 2 {
		t.Errorf("expected 2 queued urls, got %d", obs.queued)
	}
	if len(obs.stopped) != 1 || obs.stopped[0] != model.StopReasonIdle {
		t.Errorf("expected one idle stop event, got %v", obs.stopped)
	}
}

// TestNew tests option validation.
func TestNew(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(nil)

	tests := []struct {
		name    string
		fetcher Fetcher
		opts    []Option
		wantErr error
	}{
		{"nil fetcher", nil, nil, ErrNilFetcher},
		{"zero workers", f, []Option{WithWorkers(0)}, ErrInvalidWorkers},
		{"zero pages", f, []Option{WithMaxPages(0)}, ErrInvalidMaxPages},
		{"negative depth", f, []Option{WithMaxDepth(-1)}, ErrInvalidMaxDepth},
		{"negative delay", f, []Option{WithPolitenessDelay(-time.Second)}, ErrInvalidDelay},
		{"zero poll timeout", f, []Option{WithPollTimeout(0)}, ErrInvalidPollTimeout},
		{"zero idle polls", f, []Option{WithIdlePolls(0)}, ErrInvalidIdlePolls},
		{"negative rate", f, []Option{WithRateLimit(-1)}, ErrInvalidRateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.fetcher, tt.opts...); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	t.Run("invalid patterns", func(t *testing.T) {
		t.Parallel()
		if _, err := New(f, WithExcludedExtensions("(")); err == nil {
			t.Error("expected error for invalid extension pattern")
		}
		if _, err := New(f, WithIgnorePatterns([]string{"[a"})); err == nil {
			t.Error("expected error for invalid glob")
		}
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		c, err := New(f)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.workers != DefaultWorkers || c.maxPages != DefaultMaxPages || c.maxDepth != DefaultMaxDepth {
			t.Errorf("unexpected defaults: workers=%d pages=%d depth=%d", c.workers, c.maxPages, c.maxDepth)
		}
		if c.State() != StateStopped {
			t.Errorf("expected STOPPED before any run, got %s", c.State())
		}
	})
}
