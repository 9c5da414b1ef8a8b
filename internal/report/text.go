package report

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// TextWriter outputs the plain text crawl report.
// The layout mirrors the classic crawl report: a header with the crawl
// parameters followed by fetch statistics, outgoing URLs, status codes,
// file sizes and content types, each under an underlined heading.
type TextWriter struct {
	baseWriter

	// verbose adds timing and termination details to the header.
	verbose bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithVerbose adds crawl timing, stop reason and robots.txt state to the header.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the crawl report.
func (w *TextWriter) Write(result *model.CrawlResult) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, result)
	w.writeFetchStatistics(&sb, result.Snapshot)
	w.writeOutgoingURLs(&sb, result.Snapshot)
	w.writeStatusCodes(&sb, result.Snapshot)
	w.writeFileSizes(&sb, result.Snapshot)
	w.writeContentTypes(&sb, result.Snapshot)

	return io.WriteString(w.output, sb.String())
}

func (w *TextWriter) writeHeader(sb *strings.Builder, result *model.CrawlResult) {
	fmt.Fprintf(sb, "Site: %s\n", result.Site)
	fmt.Fprintf(sb, "Site crawled: %s\n", result.Domain)
	fmt.Fprintf(sb, "Number of threads: %d\n", result.Workers)
	if w.verbose {
		fmt.Fprintf(sb, "Seed URL: %s\n", result.SeedURL)
		fmt.Fprintf(sb, "Max pages: %d\n", result.MaxPages)
		fmt.Fprintf(sb, "Max depth: %d\n", result.MaxDepth)
		fmt.Fprintf(sb, "Started: %s\n", result.StartedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(sb, "Elapsed: %s\n", result.Elapsed().Round(time.Second))
		fmt.Fprintf(sb, "Stop reason: %s\n", result.StopReason)
		fmt.Fprintf(sb, "robots.txt loaded: %t\n", result.RobotsLoaded)
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeFetchStatistics(sb *strings.Builder, s model.Snapshot) {
	writeHeading(sb, "Fetch Statistics")
	fmt.Fprintf(sb, "# fetches attempted: %d\n", s.FetchAttempts)
	fmt.Fprintf(sb, "# fetches succeeded: %d\n", s.FetchesSucceeded)
	fmt.Fprintf(sb, "# fetches failed or aborted: %d\n", s.FetchesFailed)
	sb.WriteString("\n")
}

func (w *TextWriter) writeOutgoingURLs(sb *strings.Builder, s model.Snapshot) {
	writeHeading(sb, "Outgoing URLs:")
	fmt.Fprintf(sb, "Total URLs extracted: %d\n", s.TotalURLsExtracted)
	fmt.Fprintf(sb, "# unique URLs extracted: %d\n", s.UniqueURLsExtracted)
	fmt.Fprintf(sb, "# unique URLs within site: %d\n", s.UniqueURLsWithinSite)
	fmt.Fprintf(sb, "# unique URLs outside site: %d\n", s.UniqueURLsOutsideSite)
	sb.WriteString("\n")
}

func (w *TextWriter) writeStatusCodes(sb *strings.Builder, s model.Snapshot) {
	writeHeading(sb, "Status Codes:")
	for _, code := range s.SortedStatusCodes() {
		fmt.Fprintf(sb, "%s: %d\n", statusLabel(code), s.StatusCodes[code])
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeFileSizes(sb *strings.Builder, s model.Snapshot) {
	writeHeading(sb, "File Sizes:")
	for _, bucket := range model.SizeBuckets {
		fmt.Fprintf(sb, "%s: %d\n", bucket, s.FileSizes[bucket])
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeContentTypes(sb *strings.Builder, s model.Snapshot) {
	writeHeading(sb, "Content Types:")
	for _, ct := range s.SortedContentTypes() {
		fmt.Fprintf(sb, "%s: %d\n", ct, s.ContentTypes[ct])
	}
}

// writeHeading writes title underlined with '=' of the same width.
func writeHeading(sb *strings.Builder, title string) {
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", len(title)))
	sb.WriteString("\n")
}

// statusLabel returns "200 OK" style labels, or just the code when it has
// no standard reason phrase.
func statusLabel(code int) string {
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("%d %s", code, text)
	}
	return fmt.Sprintf("%d", code)
}
