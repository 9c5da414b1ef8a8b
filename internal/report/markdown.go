package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitecrawl/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MarkdownWriter outputs the crawl report in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides type-safe tables, alerts and mermaid charts.
type MarkdownWriter struct {
	baseWriter

	// printer formats counts with thousands separators.
	printer *message.Printer
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		printer:    message.NewPrinter(language.English),
	}
}

// Write outputs the crawl report in Markdown format.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	cw := &countingWriter{w: w.output}
	md := markdown.NewMarkdown(cw)

	w.writeHeader(md, result)
	w.writeFetchStatistics(md, result)
	w.writeOutgoingURLs(md, result.Snapshot)
	w.writeStatusCodes(md, result.Snapshot)
	w.writeFileSizes(md, result.Snapshot)
	w.writeContentTypes(md, result.Snapshot)
	w.writeFooter(md)

	err := md.Build()
	return cw.n, err
}

func (w *MarkdownWriter) count(n int) string {
	return w.printer.Sprintf("%d", n)
}

// writeHeader writes the report title and crawl parameters.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.CrawlResult) {
	md.H1("Crawl Report: " + result.Site)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site crawled", "`" + result.Domain + "`"},
			{"Seed URL", "`" + result.SeedURL + "`"},
			{"Number of threads", strconv.Itoa(result.Workers)},
			{"Max pages", w.count(result.MaxPages)},
			{"Max depth", strconv.Itoa(result.MaxDepth)},
			{"Started", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", result.Elapsed().Round(time.Second).String()},
			{"Stop reason", stopReasonText(result.StopReason)},
		},
	})
	md.PlainText("")

	if !result.RobotsLoaded {
		md.Warning("robots.txt could not be loaded; the crawl ran without robots restrictions.")
		md.PlainText("")
	}
}

// stopReasonText title-cases a stop reason for display.
func stopReasonText(reason model.StopReason) string {
	if reason == model.StopReasonNone {
		return "-"
	}
	return cases.Title(language.English).String(string(reason))
}

func (w *MarkdownWriter) writeFetchStatistics(md *markdown.Markdown, result *model.CrawlResult) {
	s := result.Snapshot
	md.H2("Fetch Statistics")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"# fetches attempted", w.count(s.FetchAttempts)},
			{"# fetches succeeded", w.count(s.FetchesSucceeded)},
			{"# fetches failed or aborted", w.count(s.FetchesFailed)},
		},
	})
	md.PlainText("")

	if s.FetchAttempts > 0 && s.FetchesFailed*2 > s.FetchAttempts {
		md.Cautionf("More than half of the fetches failed (%d of %d).", s.FetchesFailed, s.FetchAttempts)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeOutgoingURLs(md *markdown.Markdown, s model.Snapshot) {
	md.H2("Outgoing URLs")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Total URLs extracted", w.count(s.TotalURLsExtracted)},
			{"# unique URLs extracted", w.count(s.UniqueURLsExtracted)},
			{"# unique URLs within site", w.count(s.UniqueURLsWithinSite)},
			{"# unique URLs outside site", w.count(s.UniqueURLsOutsideSite)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeStatusCodes(md *markdown.Markdown, s model.Snapshot) {
	md.H2("Status Codes")
	md.PlainText("")

	codes := s.SortedStatusCodes()
	if len(codes) == 0 {
		md.PlainText("No fetches were attempted.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(codes))
	for _, code := range codes {
		rows = append(rows, []string{statusLabel(code), w.count(s.StatusCodes[code])})
	}
	md.Table(markdown.TableSet{Header: []string{"Status", "Count"}, Rows: rows})
	md.PlainText("")

	w.writeStatusChart(md, s, codes)
}

// writeStatusChart writes a mermaid pie chart of the status distribution.
func (w *MarkdownWriter) writeStatusChart(md *markdown.Markdown, s model.Snapshot, codes []int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Status Code Distribution"),
		piechart.WithShowData(true),
	)
	for _, code := range codes {
		chart.LabelAndIntValue(strconv.Itoa(code), uint64(s.StatusCodes[code]))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFileSizes(md *markdown.Markdown, s model.Snapshot) {
	md.H2("File Sizes")
	md.PlainText("")

	rows := make([][]string, 0, len(model.SizeBuckets))
	for _, bucket := range model.SizeBuckets {
		rows = append(rows, []string{string(bucket), w.count(s.FileSizes[bucket])})
	}
	md.Table(markdown.TableSet{Header: []string{"Size", "Count"}, Rows: rows})
	md.PlainText("")
}

func (w *MarkdownWriter) writeContentTypes(md *markdown.Markdown, s model.Snapshot) {
	md.H2("Content Types")
	md.PlainText("")

	types := s.SortedContentTypes()
	if len(types) == 0 {
		md.PlainText("No pages were visited.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(types))
	for _, ct := range types {
		rows = append(rows, []string{"`" + ct + "`", w.count(s.ContentTypes[ct])})
	}
	md.Table(markdown.TableSet{Header: []string{"Content-Type", "Count"}, Rows: rows})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitecrawl](https://github.com/nao1215/sitecrawl)*")
}
