package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
)

// maxListedPages bounds how many added or removed pages are printed.
const maxListedPages = 20

// NewCompareCmd creates the compare command.
// It compares two archived crawls of the same site.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <site>",
		Short: "Compare the latest two archived crawls of a site",
		Long: `Compare shows how a site changed between two archived crawls.

It reports the change in fetch statistics, in status codes, and the pages
that were visited in one crawl but not the other. By default the latest
crawl is compared with the one before it.

Examples:
  # Compare the latest two crawls of a site
  sitecrawl compare example.com

  # Compare the latest crawl with crawl #5
  sitecrawl compare --with 5 example.com

  # Output the comparison as JSON
  sitecrawl compare --json example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().Int64("with", 0,
		"Compare with the crawl with this ID instead of the previous one")
	cmd.Flags().BoolP("json", "j", false,
		"Output the comparison in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the comparison in Markdown format")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	return cmd
}

// CrawlMetadata summarises one side of a comparison.
type CrawlMetadata struct {
	// ID is the archive ID of the crawl.
	ID int64 `json:"id"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// StopReason is why the crawl ended.
	StopReason model.StopReason `json:"stop_reason"`

	// Statistics is the final snapshot of the crawl.
	Statistics model.Snapshot `json:"statistics"`

	// Visited is the number of visit records.
	Visited int `json:"visited"`
}

// StatusDelta is the change in the number of fetches with one status code.
type StatusDelta struct {
	StatusCode int `json:"status_code"`
	Previous   int `json:"previous"`
	Current    int `json:"current"`
}

// ComparisonResult is the difference between two crawls of one site.
type ComparisonResult struct {
	// Site is the compared site.
	Site string `json:"site"`

	// Previous and Current are the two crawls, older first.
	Previous CrawlMetadata `json:"previous"`
	Current  CrawlMetadata `json:"current"`

	// StatusChanges lists status codes whose count changed, ascending.
	StatusChanges []StatusDelta `json:"status_changes"`

	// NewPages were visited in the current crawl only, sorted.
	NewPages []string `json:"new_pages"`

	// RemovedPages were visited in the previous crawl only, sorted.
	RemovedPages []string `json:"removed_pages"`

	// UnchangedPages is the number of pages visited in both crawls.
	UnchangedPages int `json:"unchanged_pages"`
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	withID, err := cmd.Flags().GetInt64("with")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return errors.New("--json and --markdown cannot be used together")
	}

	db, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := loadComparison(ctx, db, args[0], withID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return outputComparisonJSON(out, result)
	case markdownOutput:
		return outputComparisonMarkdown(out, result)
	default:
		return outputComparisonText(out, result)
	}
}

// loadComparison picks the two crawls to compare and compares them.
func loadComparison(ctx context.Context, db *database.CrawlDB, site string, withID int64) (*ComparisonResult, error) {
	crawls, err := db.ListCrawls(ctx, site)
	if err != nil {
		return nil, err
	}
	if len(crawls) == 0 {
		return nil, fmt.Errorf("no archived crawls found for %s", site)
	}

	currentID := crawls[0].ID
	previousID := withID
	if previousID == 0 {
		if len(crawls) < 2 {
			return nil, fmt.Errorf("only one archived crawl for %s; run another crawl with --save first", site)
		}
		previousID = crawls[1].ID
	}
	if previousID == currentID {
		return nil, fmt.Errorf("crawl #%d is the latest crawl; pick an older one", previousID)
	}

	current, err := db.GetCrawl(ctx, currentID)
	if err != nil {
		return nil, err
	}
	previous, err := db.GetCrawl(ctx, previousID)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return nil, fmt.Errorf("crawl #%d not found", previousID)
	}
	if previous.Site != site {
		return nil, fmt.Errorf("crawl #%d belongs to %s, not %s", previousID, previous.Site, site)
	}

	result := compareCrawls(previous, current)
	result.Previous.ID = previousID
	result.Current.ID = currentID
	return result, nil
}

// compareCrawls compares two crawls of the same site.
func compareCrawls(previous, current *model.CrawlResult) *ComparisonResult {
	result := &ComparisonResult{
		Site:     current.Site,
		Previous: crawlMetadata(previous),
		Current:  crawlMetadata(current),
	}

	codes := make(map[int]bool)
	for code := range previous.Snapshot.StatusCodes {
		codes[code] = true
	}
	for code := range current.Snapshot.StatusCodes {
		codes[code] = true
	}
	for code := range codes {
		p, c := previous.Snapshot.StatusCodes[code], current.Snapshot.StatusCodes[code]
		if p != c {
			result.StatusChanges = append(result.StatusChanges, StatusDelta{StatusCode: code, Previous: p, Current: c})
		}
	}
	slices.SortFunc(result.StatusChanges, func(a, b StatusDelta) int { return a.StatusCode - b.StatusCode })

	previousPages := visitedURLs(previous)
	currentPages := visitedURLs(current)
	for u := range currentPages {
		if previousPages[u] {
			result.UnchangedPages++
		} else {
			result.NewPages = append(result.NewPages, u)
		}
	}
	for u := range previousPages {
		if !currentPages[u] {
			result.RemovedPages = append(result.RemovedPages, u)
		}
	}
	slices.Sort(result.NewPages)
	slices.Sort(result.RemovedPages)

	return result
}

func crawlMetadata(r *model.CrawlResult) CrawlMetadata {
	return CrawlMetadata{
		StartedAt:  r.StartedAt,
		StopReason: r.StopReason,
		Statistics: r.Snapshot,
		Visited:    len(r.Visits),
	}
}

func visitedURLs(r *model.CrawlResult) map[string]bool {
	urls := make(map[string]bool, len(r.Visits))
	for _, v := range r.Visits {
		urls[v.URL] = true
	}
	return urls
}

// comparisonRow is one line of the statistics table.
type comparisonRow struct {
	label             string
	previous, current int
}

func comparisonRows(result *ComparisonResult) []comparisonRow {
	p, c := result.Previous.Statistics, result.Current.Statistics
	return []comparisonRow{
		{"Fetch attempts", p.FetchAttempts, c.FetchAttempts},
		{"Succeeded", p.FetchesSucceeded, c.FetchesSucceeded},
		{"Failed", p.FetchesFailed, c.FetchesFailed},
		{"Pages visited", result.Previous.Visited, result.Current.Visited},
		{"Unique URLs", p.UniqueURLsExtracted, c.UniqueURLsExtracted},
		{"Within site", p.UniqueURLsWithinSite, c.UniqueURLsWithinSite},
		{"Outside site", p.UniqueURLsOutsideSite, c.UniqueURLsOutsideSite},
	}
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "# Crawl Comparison: %s\n\n", result.Site)

	fmt.Fprintln(out, "| Metric | Previous | Current | Change |")
	fmt.Fprintln(out, "|--------|----------|---------|--------|")
	fmt.Fprintf(out, "| Crawl | #%d (%s) | #%d (%s) | - |\n",
		result.Previous.ID, result.Previous.StartedAt.Local().Format("2006-01-02 15:04"),
		result.Current.ID, result.Current.StartedAt.Local().Format("2006-01-02 15:04"))
	for _, row := range comparisonRows(result) {
		fmt.Fprintf(out, "| %s | %d | %d | %s |\n", row.label, row.previous, row.current, formatDelta(row.current-row.previous))
	}

	if len(result.StatusChanges) > 0 {
		fmt.Fprintln(out, "\n## Status Codes")
		fmt.Fprintln(out, "\n| Status | Previous | Current | Change |")
		fmt.Fprintln(out, "|--------|----------|---------|--------|")
		for _, d := range result.StatusChanges {
			fmt.Fprintf(out, "| %d | %d | %d | %s |\n", d.StatusCode, d.Previous, d.Current, formatDelta(d.Current-d.Previous))
		}
	}

	writeList := func(title string, pages []string, format string) {
		if len(pages) == 0 {
			return
		}
		fmt.Fprintf(out, "\n## %s (%d)\n\n", title, len(pages))
		for _, p := range limitPages(pages) {
			fmt.Fprintf(out, format, p)
		}
		if len(pages) > maxListedPages {
			fmt.Fprintf(out, "- *... and %d more*\n", len(pages)-maxListedPages)
		}
	}
	writeList("New Pages", result.NewPages, "- `%s`\n")
	writeList("Removed Pages", result.RemovedPages, "- ~~`%s`~~\n")

	if result.UnchangedPages > 0 {
		fmt.Fprintf(out, "\n---\n\n*%d pages unchanged*\n", result.UnchangedPages)
	}
	return nil
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "Crawl Comparison: %s\n", result.Site)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nPrevious crawl: #%d  %s  (%s)\n", result.Previous.ID,
		result.Previous.StartedAt.Local().Format("2006-01-02 15:04:05"), result.Previous.StopReason)
	fmt.Fprintf(out, "Current crawl:  #%d  %s  (%s)\n", result.Current.ID,
		result.Current.StartedAt.Local().Format("2006-01-02 15:04:05"), result.Current.StopReason)

	fmt.Fprintln(out, "\nStatistics:")
	fmt.Fprintf(out, "  %-16s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 52))
	for _, row := range comparisonRows(result) {
		fmt.Fprintf(out, "  %-16s  %-10d  %-10d  %-10s\n", row.label, row.previous, row.current, formatDelta(row.current-row.previous))
	}

	if len(result.StatusChanges) > 0 {
		fmt.Fprintln(out, "\nStatus Codes:")
		for _, d := range result.StatusChanges {
			fmt.Fprintf(out, "  %-16d  %-10d  %-10d  %-10s\n", d.StatusCode, d.Previous, d.Current, formatDelta(d.Current-d.Previous))
		}
	}

	writeList := func(title, marker string, pages []string) {
		if len(pages) == 0 {
			return
		}
		fmt.Fprintf(out, "\n%s (%d):\n", title, len(pages))
		for _, p := range limitPages(pages) {
			fmt.Fprintf(out, "  [%s] %s\n", marker, p)
		}
		if len(pages) > maxListedPages {
			fmt.Fprintf(out, "  ... and %d more\n", len(pages)-maxListedPages)
		}
	}
	writeList("New Pages", "+", result.NewPages)
	writeList("Removed Pages", "-", result.RemovedPages)

	if result.UnchangedPages > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d pages\n", result.UnchangedPages)
	}
	return nil
}

func limitPages(pages []string) []string {
	if len(pages) > maxListedPages {
		return pages[:maxListedPages]
	}
	return pages
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
