package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/batch"
	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/fetcher"
	logpkg "github.com/nao1215/sitecrawl/internal/log"
	"github.com/nao1215/sitecrawl/internal/metrics"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/report"
	"github.com/nao1215/sitecrawl/internal/robots"
	"github.com/nao1215/sitecrawl/internal/socks"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [site...]",
		Short: "Crawl a website and write statistics",
		Long: `Crawl fetches pages starting from a seed URL and follows links that stay
inside the seed's registrable domain.

Each fetch is recorded with its status code, each accepted page with its
size, outlink count and content type, and each extracted link with whether
it points inside the site. The crawl stops when the page budget is spent,
when the workers find nothing left to do, or on Ctrl-C.

Sites can be given directly with --seed, or by name from the .sitecrawl
configuration file. Without arguments or --seed, every configured site is
crawled.

Examples:
  # Crawl a site with the defaults (10000 pages, depth 16, 7 workers)
  sitecrawl crawl --seed https://www.example.com/

  # Small, fast crawl into ./out with a Markdown report
  sitecrawl crawl --seed https://www.example.com/ -p 100 --delay 500ms -o out -f csv,markdown

  # Crawl two configured sites at the same time and archive the results
  sitecrawl crawl docs blog --save

  # Expose Prometheus metrics while crawling
  sitecrawl crawl --seed https://www.example.com/ --metrics-addr :9090`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Target flags
	cmd.Flags().StringP("seed", "s", "",
		"Seed URL to start crawling from")
	cmd.Flags().String("site", "",
		"Site name used in report file names (default: seed host)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitecrawl in current or home directory)")

	// Budget flags
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of fetches")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum link depth from the seed (0 fetches the seed only)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent workers")

	// Politeness flags
	cmd.Flags().Duration("delay", config.DefaultPolitenessDelay,
		"Pause each worker takes before every request")
	cmd.Flags().Float64("rate-limit", 0,
		"Site-wide cap in requests per second (0 disables it)")
	cmd.Flags().Duration("poll-timeout", config.DefaultPollTimeout,
		"How long a worker waits for new URLs")
	cmd.Flags().Int("idle-polls", config.DefaultIdlePolls,
		"Consecutive empty polls before a worker stops")

	// Request flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header and robots.txt agent")
	cmd.Flags().StringArrayP("header", "H", nil,
		`Extra request header as "Name: value" (repeatable)`)
	cmd.Flags().StringSlice("ignore", nil,
		"Glob patterns for URL paths to skip")
	cmd.Flags().StringSlice("content-types", nil,
		"Content types that count as visited pages (default: built-in list)")
	cmd.Flags().String("socks5", "",
		"Send every request through this SOCKS5 proxy (e.g. 127.0.0.1:9050)")

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Directory for report files")
	cmd.Flags().StringSliceP("format", "f", config.DefaultReportFormats,
		"Report formats: csv, text, markdown, json")
	cmd.Flags().Bool("save", false,
		"Archive the crawl in the SQLite database")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Number of sites crawled at the same time")

	// Observability flags
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().String("log-file", "",
		"Also write logs to this file, rotated by size")
	cmd.Flags().Bool("json-log", false,
		"Write logs as JSON")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	base, targets, err := buildConfigs(cmd, args)
	if err != nil {
		return err
	}

	formats, err := parseFormats(base.ReportFormats)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closer, err := logpkg.New(logpkg.Options{
		Verbose: base.Verbose,
		JSON:    base.JSONLog,
		File:    base.LogFile,
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cmd.OutOrStdout(), base, targets, formats, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// loadConfigFile finds and loads the configuration file.
// A missing file is only an error when the user named one explicitly.
func loadConfigFile(path string) (*config.File, error) {
	found := config.FindConfigFile(path)
	if found == "" {
		if path != "" {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	file, err := config.LoadConfigFile(found)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
	}
	return file, nil
}

// buildConfigs creates the run-wide config and one validated config per
// target. Values come from defaults, then the configuration file, then
// flags the user set explicitly.
func buildConfigs(cmd *cobra.Command, args []string) (*config.Config, []*config.Config, error) {
	base := config.NewConfig()
	base.Verbose = getVerboseFlag(cmd)

	var err error
	base.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}

	file, err := loadConfigFile(base.ConfigFilePath)
	if err != nil {
		return nil, nil, err
	}

	base.ApplySite(file.Defaults)
	if err := applyFlags(cmd, base); err != nil {
		return nil, nil, err
	}

	var targets []*config.Config
	if base.SeedURL != "" {
		if len(args) > 0 {
			return nil, nil, errors.New("use either --seed or site names, not both")
		}
		cfg := base.Clone()
		if cfg.SiteName != "" && file.HasSite(cfg.SiteName) {
			cfg.ApplySite(file.GetSiteConfig(cfg.SiteName))
			if err := applyFlags(cmd, cfg); err != nil {
				return nil, nil, err
			}
		}
		targets = append(targets, cfg)
	} else {
		names := uniqueNames(args)
		if len(names) == 0 {
			names = file.SiteNames()
		}
		if len(names) == 0 {
			return nil, nil, fmt.Errorf("configuration error: %w", config.ErrNoTarget)
		}
		for _, name := range names {
			if !file.HasSite(name) {
				return nil, nil, fmt.Errorf("configuration error: %w: %s", config.ErrUnknownSite, name)
			}
			cfg := base.Clone()
			cfg.SiteName = name
			cfg.ApplySite(file.GetSiteConfig(name))
			if err := applyFlags(cmd, cfg); err != nil {
				return nil, nil, err
			}
			cfg.SiteName = name
			targets = append(targets, cfg)
		}
		base.Sites = names
	}

	for _, cfg := range targets {
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("configuration error for %q: %w", cfg.SiteName, err)
		}
	}
	if base.Concurrency <= 0 {
		return nil, nil, fmt.Errorf("configuration error: %w", config.ErrInvalidConcurrency)
	}
	if seen := duplicateSite(targets); seen != "" {
		return nil, nil, fmt.Errorf("configuration error: site %q given twice", seen)
	}

	return base, targets, nil
}

// applyFlags copies every flag the user set explicitly onto cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	err := errors.Join(
		override(cmd, "seed", flags.GetString, &cfg.SeedURL),
		override(cmd, "site", flags.GetString, &cfg.SiteName),
		override(cmd, "max-pages", flags.GetInt, &cfg.MaxPages),
		override(cmd, "depth", flags.GetInt, &cfg.MaxDepth),
		override(cmd, "workers", flags.GetInt, &cfg.Workers),
		override(cmd, "delay", flags.GetDuration, &cfg.PolitenessDelay),
		override(cmd, "rate-limit", flags.GetFloat64, &cfg.RateLimit),
		override(cmd, "poll-timeout", flags.GetDuration, &cfg.PollTimeout),
		override(cmd, "idle-polls", flags.GetInt, &cfg.IdlePolls),
		override(cmd, "timeout", flags.GetDuration, &cfg.Timeout),
		override(cmd, "max-body-size", flags.GetInt64, &cfg.MaxBodySize),
		override(cmd, "user-agent", flags.GetString, &cfg.UserAgent),
		override(cmd, "socks5", flags.GetString, &cfg.SOCKS5Proxy),
		override(cmd, "ignore", flags.GetStringSlice, &cfg.IgnorePatterns),
		override(cmd, "content-types", flags.GetStringSlice, &cfg.AllowedContentTypes),
		override(cmd, "output", flags.GetString, &cfg.OutputDir),
		override(cmd, "format", flags.GetStringSlice, &cfg.ReportFormats),
		override(cmd, "save", flags.GetBool, &cfg.SaveToDB),
		override(cmd, "db-dir", flags.GetString, &cfg.DBDir),
		override(cmd, "concurrency", flags.GetInt, &cfg.Concurrency),
		override(cmd, "metrics-addr", flags.GetString, &cfg.MetricsAddr),
		override(cmd, "log-file", flags.GetString, &cfg.LogFile),
		override(cmd, "json-log", flags.GetBool, &cfg.JSONLog),
	)
	if err != nil {
		return err
	}

	// Naming a database directory implies archiving.
	if flags.Changed("db-dir") {
		cfg.SaveToDB = true
	}

	if flags.Changed("header") {
		values, err := flags.GetStringArray("header")
		if err != nil {
			return err
		}
		headers, err := parseHeaders(values)
		if err != nil {
			return err
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(headers))
		}
		maps.Copy(cfg.Headers, headers)
	}

	return nil
}

// override stores the value of flag name in dst when the user set it.
func override[T any](cmd *cobra.Command, name string, get func(string) (T, error), dst *T) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// parseHeaders turns "Name: value" strings into a header map.
func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", v)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// parseFormats converts format names, dropping duplicates.
func parseFormats(names []string) ([]report.Format, error) {
	if len(names) == 0 {
		return nil, config.ErrNoReportFormat
	}
	formats := make([]report.Format, 0, len(names))
	seen := make(map[report.Format]bool, len(names))
	for _, name := range names {
		f, err := report.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	return formats, nil
}

func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func duplicateSite(targets []*config.Config) string {
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if seen[t.SiteName] {
			return t.SiteName
		}
		seen[t.SiteName] = true
	}
	return ""
}

// runner holds what every site crawl of one invocation shares.
type runner struct {
	out       io.Writer
	mu        sync.Mutex
	formats   []report.Format
	db        *database.CrawlDB
	observer  crawler.Observer
	transport http.RoundTripper
	logger    *slog.Logger
}

// runCrawl crawls every target, writes reports and prints a summary per site.
func runCrawl(ctx context.Context, out io.Writer, base *config.Config, targets []*config.Config, formats []report.Format, logger *slog.Logger) error {
	r := &runner{out: out, formats: formats, logger: logger}

	if base.SOCKS5Proxy != "" {
		transport, err := proxyTransport(ctx, base, targets[0].SeedURL)
		if err != nil {
			return err
		}
		r.transport = transport
		logger.Info("crawling through SOCKS5 proxy", "proxy", base.SOCKS5Proxy)
	}

	if base.SaveToDB {
		db, err := database.Open(base.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		r.db = db
		logger.Info("database opened", "path", db.Path())
	}

	if base.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector, err := metrics.NewCollector(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		r.observer = collector

		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(metricsCtx, base.MetricsAddr, reg, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	byName := make(map[string]*config.Config, len(targets))
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		byName[t.SiteName] = t
		names = append(names, t.SiteName)
	}

	processor := batch.NewProcessor(
		func(ctx context.Context, name string) (*model.CrawlResult, error) {
			return r.crawlSite(ctx, byName[name])
		},
		batch.WithConcurrency(base.Concurrency),
		batch.WithLogger(logger),
	)

	outcomes, err := processor.Process(ctx, names)

	var failed []string
	for _, o := range outcomes {
		if o.Err != nil && !errors.Is(o.Err, context.Canceled) {
			failed = append(failed, o.Site)
			fmt.Fprintf(out, "%s: crawl failed: %v\n", o.Site, o.Err)
		}
	}

	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d crawls failed: %s", len(failed), len(outcomes), strings.Join(failed, ", "))
	}
	return nil
}

// proxyTransport checks that the SOCKS5 proxy answers, using the host of
// seed as the CONNECT target, and returns a transport dialing through it.
func proxyTransport(ctx context.Context, base *config.Config, seed string) (http.RoundTripper, error) {
	dialer, err := socks.NewDialer(base.SOCKS5Proxy, base.Timeout)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidSeed, seed)
	}
	if status := dialer.Check(ctx, socks.TargetAddress(u)); status != socks.StatusOK {
		return nil, fmt.Errorf("SOCKS5 proxy %s: %w", base.SOCKS5Proxy, status.Err())
	}
	return dialer.Transport(), nil
}

// crawlSite runs one crawl, then writes its reports and archives it.
// A cancelled crawl still gets its reports for the pages fetched so far.
func (r *runner) crawlSite(ctx context.Context, cfg *config.Config) (*model.CrawlResult, error) {
	logger := r.logger.With("site", cfg.SiteName)

	f := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent:   cfg.UserAgent,
		Headers:     cfg.Headers,
		Timeout:     cfg.Timeout,
		MaxBodySize: cfg.MaxBodySize,
		Transport:   r.transport,
	})

	opts := []crawler.Option{
		crawler.WithSite(cfg.SiteName),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithMaxDepth(cfg.MaxDepth),
		crawler.WithWorkers(cfg.Workers),
		crawler.WithPolitenessDelay(cfg.PolitenessDelay),
		crawler.WithPollTimeout(cfg.PollTimeout),
		crawler.WithIdlePolls(cfg.IdlePolls),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithRateLimit(cfg.RateLimit),
		crawler.WithIgnorePatterns(cfg.IgnorePatterns),
		crawler.WithRobotsLoader(robots.NewLoader(f.Client(), cfg.UserAgent)),
		crawler.WithLogger(logger),
	}
	if len(cfg.AllowedContentTypes) > 0 {
		opts = append(opts, crawler.WithAllowedContentTypes(cfg.AllowedContentTypes))
	}
	if cfg.ExcludedExtensions != "" {
		opts = append(opts, crawler.WithExcludedExtensions(cfg.ExcludedExtensions))
	}
	if r.observer != nil {
		opts = append(opts, crawler.WithObserver(r.observer))
	}

	c, err := crawler.New(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create crawler: %w", err)
	}

	result, runErr := c.Run(ctx, cfg.SeedURL)
	if result == nil {
		return nil, runErr
	}

	paths, err := report.WriteFiles(cfg.OutputDir, result, r.formats, getVersion())
	if err != nil {
		return result, errors.Join(runErr, err)
	}

	var crawlID int64
	if r.db != nil {
		// Archive even after cancellation; the partial crawl is still a record.
		crawlID, err = r.db.SaveCrawl(context.WithoutCancel(ctx), result)
		if err != nil {
			return result, errors.Join(runErr, fmt.Errorf("failed to archive crawl: %w", err))
		}
	}

	r.mu.Lock()
	printSummary(r.out, result, paths, crawlID)
	r.mu.Unlock()

	return result, runErr
}

// printSummary writes a short per-site summary after a crawl.
func printSummary(out io.Writer, result *model.CrawlResult, paths []string, crawlID int64) {
	s := result.Snapshot
	fmt.Fprintf(out, "%s: %d pages fetched (%d ok, %d failed), %d visited, %d unique links, stopped: %s, elapsed %s\n",
		result.Site,
		s.FetchAttempts,
		s.FetchesSucceeded,
		s.FetchesFailed,
		len(result.Visits),
		s.UniqueURLsExtracted,
		result.StopReason,
		result.Elapsed().Round(time.Second),
	)
	if !result.RobotsLoaded {
		fmt.Fprintf(out, "%s: robots.txt could not be loaded, crawled without restrictions\n", result.Site)
	}
	for _, p := range paths {
		fmt.Fprintf(out, "  wrote %s\n", p)
	}
	if crawlID > 0 {
		fmt.Fprintf(out, "  archived as crawl #%d\n", crawlID)
	}
}
