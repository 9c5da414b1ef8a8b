package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/database"
	logpkg "github.com/nao1215/sitecrawl/internal/log"
	"github.com/nao1215/sitecrawl/internal/report"
	"github.com/nao1215/sitecrawl/internal/socks"
)

// writeConfig writes a configuration file into a temporary directory.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// parsedCrawlCmd returns a crawl command with args parsed, as cobra would
// leave it before calling RunE.
func parsedCrawlCmd(t *testing.T, args ...string) (*cobra.Command, []string) {
	t.Helper()
	cmd := NewCrawlCmd()
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return cmd, cmd.Flags().Args()
}

const twoSiteConfig = `defaults:
  workers: 3
  delay: 0s
  headers:
    X-Team: crawl
sites:
  docs:
    seed: https://docs.example.com/
    maxPages: 50
    maxDepth: 0
    cookie: "session=abc"
  blog:
    seed: https://blog.example.com/
    workers: 5
`

func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"seed", "s", ""},
		{"max-pages", "p", fmt.Sprint(config.DefaultMaxPages)},
		{"depth", "d", fmt.Sprint(config.DefaultMaxDepth)},
		{"workers", "w", fmt.Sprint(config.DefaultWorkers)},
		{"delay", "", config.DefaultPolitenessDelay.String()},
		{"timeout", "t", config.DefaultTimeout.String()},
		{"output", "o", config.DefaultOutputDir},
		{"format", "f", "[csv,text]"},
		{"header", "H", "[]"},
		{"save", "", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

func TestBuildConfigs(t *testing.T) {
	t.Parallel()

	t.Run("seed with defaults", func(t *testing.T) {
		t.Parallel()
		cfgPath := writeConfig(t, "sites: {}\n")
		cmd, args := parsedCrawlCmd(t, "--config", cfgPath, "--seed", "https://www.example.com/")

		base, targets, err := buildConfigs(cmd, args)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(targets) != 1 {
			t.Fatalf("expected 1 target, got %d", len(targets))
		}
		got := targets[0]
		if got.SiteName != "example.com" {
			t.Errorf("expected site name example.com, got %q", got.SiteName)
		}
		if got.MaxPages != config.DefaultMaxPages {
			t.Errorf("expected max pages %d, got %d", config.DefaultMaxPages, got.MaxPages)
		}
		if got.Workers != config.DefaultWorkers {
			t.Errorf("expected workers %d, got %d", config.DefaultWorkers, got.Workers)
		}
		if got.PolitenessDelay != config.DefaultPolitenessDelay {
			t.Errorf("expected delay %v, got %v", config.DefaultPolitenessDelay, got.PolitenessDelay)
		}
		if base.Concurrency != config.DefaultConcurrency {
			t.Errorf("expected concurrency %d, got %d", config.DefaultConcurrency, base.Concurrency)
		}
	})

	t.Run("flags override defaults", func(t *testing.T) {
		t.Parallel()
		cfgPath := writeConfig(t, "sites: {}\n")
		cmd, args := parsedCrawlCmd(t,
			"--config", cfgPath,
			"--seed", "https://www.example.com/",
			"--site", "mysite",
			"-p", "20",
			"-d", "0",
			"-w", "2",
			"--delay", "0",
			"-H", "Authorization: Bearer t",
			"--ignore", "/search*",
		)

		_, targets, err := buildConfigs(cmd, args)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := targets[0]
		if got.SiteName != "mysite" {
			t.Errorf("expected site name mysite, got %q", got.SiteName)
		}
		if got.MaxPages != 20 || got.MaxDepth != 0 || got.Workers != 2 || got.PolitenessDelay != 0 {
			t.Errorf("flags not applied: pages=%d depth=%d workers=%d delay=%v",
				got.MaxPages, got.MaxDepth, got.Workers, got.PolitenessDelay)
		}
		if got.Headers["Authorization"] != "Bearer t" {
			t.Errorf("expected Authorization header, got %v", got.Headers)
		}
		if !slices.Equal(got.IgnorePatterns, []string{"/search*"}) {
			t.Errorf("expected ignore pattern, got %v", got.IgnorePatterns)
		}
	})

	t.Run("configured sites with flag precedence", func(t *testing.T) {
		t.Parallel()
		cfgPath := writeConfig(t, twoSiteConfig)
		cmd, args := parsedCrawlCmd(t, "--config", cfgPath, "-p", "20")

		base, targets, err := buildConfigs(cmd, args)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(base.Sites, []string{"blog", "docs"}) {
			t.Fatalf("expected sites [blog docs], got %v", base.Sites)
		}

		blog, docs := targets[0], targets[1]
		if blog.SiteName != "blog" || docs.SiteName != "docs" {
			t.Fatalf("unexpected target order: %s, %s", blog.SiteName, docs.SiteName)
		}
		if blog.MaxPages != 20 || docs.MaxPages != 20 {
			t.Errorf("expected -p to win over the file, got %d and %d", blog.MaxPages, docs.MaxPages)
		}
		if blog.Workers != 5 {
			t.Errorf("expected blog workers 5, got %d", blog.Workers)
		}
		if docs.Workers != 3 {
			t.Errorf("expected docs workers 3 from defaults, got %d", docs.Workers)
		}
		if docs.MaxDepth != 0 {
			t.Errorf("expected docs depth 0, got %d", docs.MaxDepth)
		}
		if blog.MaxDepth != config.DefaultMaxDepth {
			t.Errorf("expected blog depth %d, got %d", config.DefaultMaxDepth, blog.MaxDepth)
		}
		if docs.PolitenessDelay != 0 {
			t.Errorf("expected delay 0 from defaults, got %v", docs.PolitenessDelay)
		}
		if docs.Headers["Cookie"] != "session=abc" || docs.Headers["X-Team"] != "crawl" {
			t.Errorf("unexpected docs headers: %v", docs.Headers)
		}
		if _, ok := blog.Headers["Cookie"]; ok {
			t.Error("docs cookie leaked into blog")
		}
	})

	t.Run("named site only", func(t *testing.T) {
		t.Parallel()
		cfgPath := writeConfig(t, twoSiteConfig)
		cmd, args := parsedCrawlCmd(t, "--config", cfgPath, "docs", "docs")

		_, targets, err := buildConfigs(cmd, args)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(targets) != 1 || targets[0].SeedURL != "https://docs.example.com/" {
			t.Errorf("expected only docs, got %+v", targets)
		}
	})

	t.Run("seed with configured site name", func(t *testing.T) {
		t.Parallel()
		cfgPath := writeConfig(t, twoSiteConfig)
		cmd, args := parsedCrawlCmd(t, "--config", cfgPath, "--seed", "https://docs.example.com/guide/", "--site", "docs")

		_, targets, err := buildConfigs(cmd, args)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := targets[0]
		if got.SeedURL != "https://docs.example.com/guide/" {
			t.Errorf("expected --seed to win, got %q", got.SeedURL)
		}
		if got.MaxPages != 50 {
			t.Errorf("expected maxPages 50 from the site entry, got %d", got.MaxPages)
		}
	})

	t.Run("db-dir implies save", func(t *testing.T) {
		t.Parallel()
		cfgPath := writeConfig(t, "sites: {}\n")
		dbDir := t.TempDir()
		cmd, args := parsedCrawlCmd(t, "--config", cfgPath, "--seed", "https://example.com/", "--db-dir", dbDir)

		base, _, err := buildConfigs(cmd, args)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !base.SaveToDB || base.DBDir != dbDir {
			t.Errorf("expected save to %s, got save=%v dir=%s", dbDir, base.SaveToDB, base.DBDir)
		}
	})
}

func TestBuildConfigs_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  string
		args    []string
		wantErr error
		wantMsg string
	}{
		{
			name:    "no target",
			config:  "sites: {}\n",
			wantErr: config.ErrNoTarget,
		},
		{
			name:    "unknown site",
			config:  twoSiteConfig,
			args:    []string{"shop"},
			wantErr: config.ErrUnknownSite,
		},
		{
			name:    "seed and site names",
			config:  twoSiteConfig,
			args:    []string{"--seed", "https://example.com/", "docs"},
			wantMsg: "either --seed or site names",
		},
		{
			name:    "invalid seed",
			config:  "sites: {}\n",
			args:    []string{"--seed", "ftp://example.com/"},
			wantErr: config.ErrInvalidSeed,
		},
		{
			name:    "invalid workers",
			config:  "sites: {}\n",
			args:    []string{"--seed", "https://example.com/", "-w", "0"},
			wantErr: config.ErrInvalidWorkers,
		},
		{
			name:    "invalid concurrency",
			config:  "sites: {}\n",
			args:    []string{"--seed", "https://example.com/", "--concurrency", "0"},
			wantErr: config.ErrInvalidConcurrency,
		},
		{
			name:    "invalid socks5 proxy",
			config:  "sites: {}\n",
			args:    []string{"--seed", "https://example.com/", "--socks5", "localhost"},
			wantErr: config.ErrInvalidProxy,
		},
		{
			name:    "invalid header",
			config:  "sites: {}\n",
			args:    []string{"--seed", "https://example.com/", "-H", "no-colon"},
			wantMsg: "invalid header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfgPath := writeConfig(t, tt.config)
			cmd, args := parsedCrawlCmd(t, append([]string{"--config", cfgPath}, tt.args...)...)

			_, _, err := buildConfigs(cmd, args)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}

	t.Run("missing config file", func(t *testing.T) {
		t.Parallel()
		missing := filepath.Join(t.TempDir(), "missing.yaml")
		cmd, args := parsedCrawlCmd(t, "--config", missing, "--seed", "https://example.com/")

		if _, _, err := buildConfigs(cmd, args); err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})
}

func TestParseHeaders(t *testing.T) {
	t.Parallel()

	headers, err := parseHeaders([]string{"Authorization: Bearer abc", "X-Empty:", " Accept : text/html "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{
		"Authorization": "Bearer abc",
		"X-Empty":       "",
		"Accept":        "text/html",
	}
	for k, v := range want {
		if headers[k] != v {
			t.Errorf("expected %s=%q, got %q", k, v, headers[k])
		}
	}

	for _, bad := range []string{"novalue", ": value"} {
		if _, err := parseHeaders([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestParseFormats(t *testing.T) {
	t.Parallel()

	formats, err := parseFormats([]string{"csv", "md", "markdown", "JSON"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []report.Format{report.FormatCSV, report.FormatMarkdown, report.FormatJSON}
	if !slices.Equal(formats, want) {
		t.Errorf("expected %v, got %v", want, formats)
	}

	if _, err := parseFormats(nil); !errors.Is(err, config.ErrNoReportFormat) {
		t.Errorf("expected ErrNoReportFormat, got %v", err)
	}
	if _, err := parseFormats([]string{"xml"}); !errors.Is(err, report.ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

// newTestSite serves a small site: the home page links to two pages, one
// external site and a page robots.txt disallows.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><body>
<a href="/about">About</a>
<a href="/blog">Blog</a>
<a href="/private/admin">Admin</a>
<a href="https://other.org/">Elsewhere</a>
</body></html>`)
		case "/about":
			fmt.Fprint(w, `<html><body><a href="/">Home</a></body></html>`)
		case "/blog":
			fmt.Fprint(w, `<html><body><a href="/about">About</a><a href="/missing">Gone</a></body></html>`)
		default:
			http.NotFound(w, r)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func fastCrawlArgs(srv *httptest.Server, cfgPath, outDir string) []string {
	return []string{
		"crawl",
		"--config", cfgPath,
		"--seed", srv.URL + "/",
		"--site", "local",
		"--delay", "0",
		"--poll-timeout", "10ms",
		"--idle-polls", "2",
		"-w", "2",
		"-o", outDir,
	}
}

func TestCrawlCommand(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	cfgPath := writeConfig(t, "sites: {}\n")
	outDir := t.TempDir()
	dbDir := t.TempDir()

	var buf bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&buf)
	root.SetErr(io.Discard)
	root.SetArgs(append(fastCrawlArgs(srv, cfgPath, outDir), "-f", "csv,json", "--db-dir", dbDir))

	if err := root.Execute(); err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "local: 4 pages fetched (3 ok, 1 failed)") {
		t.Errorf("unexpected summary: %q", output)
	}
	if !strings.Contains(output, "archived as crawl #1") {
		t.Errorf("expected archive line, got %q", output)
	}

	for _, name := range []string{"fetch_local.csv", "visit_local.csv", "urls_local.csv", "CrawlReport_local.json"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("expected %s to be written: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "CrawlReport_local.txt")); err == nil {
		t.Error("text report written although not requested")
	}

	fetchCSV, err := os.ReadFile(filepath.Join(outDir, "fetch_local.csv"))
	if err != nil {
		t.Fatalf("failed to read fetch records: %v", err)
	}
	if strings.Contains(string(fetchCSV), "/private") {
		t.Error("page disallowed by robots.txt was fetched")
	}
	if strings.Contains(string(fetchCSV), "other.org") {
		t.Error("external page was fetched")
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer db.Close()

	saved, err := db.LatestCrawl(context.Background(), "local")
	if err != nil {
		t.Fatalf("failed to load archived crawl: %v", err)
	}
	if saved == nil {
		t.Fatal("expected the crawl to be archived")
	}
	if saved.Snapshot.FetchAttempts != 4 {
		t.Errorf("expected 4 archived fetch attempts, got %d", saved.Snapshot.FetchAttempts)
	}
	if !saved.RobotsLoaded {
		t.Error("expected robots.txt to be recorded as loaded")
	}
}

func TestRunCrawl_Cancelled(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	outDir := t.TempDir()

	base := config.NewConfig()
	base.SeedURL = srv.URL + "/"
	base.SiteName = "local"
	base.OutputDir = outDir
	base.PolitenessDelay = 0
	base.PollTimeout = 10 * time.Millisecond
	base.IdlePolls = 2
	if err := base.Validate(); err != nil {
		t.Fatalf("invalid config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	logger := logpkg.Discard()
	err := runCrawl(ctx, &buf, base, []*config.Config{base}, []report.Format{report.FormatText}, logger)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if strings.Contains(buf.String(), "crawl failed") {
		t.Errorf("cancellation reported as failure: %q", buf.String())
	}
}

func TestRunCrawl_UnreachableProxy(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	proxyAddr := listener.Addr().String()
	listener.Close()

	base := config.NewConfig()
	base.SeedURL = "https://example.com/"
	base.OutputDir = t.TempDir()
	base.SOCKS5Proxy = proxyAddr
	if err := base.Validate(); err != nil {
		t.Fatalf("invalid config: %v", err)
	}

	logger := logpkg.Discard()
	err = runCrawl(context.Background(), io.Discard, base, []*config.Config{base}, []report.Format{report.FormatText}, logger)
	if !errors.Is(err, socks.ErrCannotConnect) {
		t.Errorf("expected ErrCannotConnect, got %v", err)
	}
}
