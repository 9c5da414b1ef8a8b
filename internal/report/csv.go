package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/sitecrawl/internal/model"
)

// CSVKind selects which record sequence a CSVWriter emits.
type CSVKind string

const (
	// CSVFetch writes one row per fetch attempt: URL, Status.
	CSVFetch CSVKind = "fetch"
	// CSVVisit writes one row per visit: URL, Size (bytes), # Outlinks, Content-Type.
	CSVVisit CSVKind = "visit"
	// CSVURLs writes one row per discovered link: URL, Indicator (OK / N_OK).
	CSVURLs CSVKind = "urls"
)

// CSVKinds lists every record file in the order they are written.
var CSVKinds = []CSVKind{CSVFetch, CSVVisit, CSVURLs}

// CSVWriter outputs one record sequence of a crawl as CSV.
// Commas inside URLs are replaced with underscores so downstream tools
// that split on commas keep working.
type CSVWriter struct {
	baseWriter
	kind CSVKind
}

// NewCSVWriter creates a CSVWriter for kind that outputs to the given writer.
func NewCSVWriter(output io.Writer, kind CSVKind) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output), kind: kind}
}

// Write outputs the header row and one row per record.
func (w *CSVWriter) Write(result *model.CrawlResult) (int, error) {
	cw := &countingWriter{w: w.output}
	out := csv.NewWriter(cw)

	var header []string
	var rows [][]string

	switch w.kind {
	case CSVFetch:
		header = []string{"URL", "Status"}
		rows = make([][]string, 0, len(result.Fetches))
		for _, f := range result.Fetches {
			rows = append(rows, []string{cleanURL(f.URL), strconv.Itoa(f.StatusCode)})
		}
	case CSVVisit:
		header = []string{"URL", "Size (bytes)", "# Outlinks", "Content-Type"}
		rows = make([][]string, 0, len(result.Visits))
		for _, v := range result.Visits {
			rows = append(rows, []string{
				cleanURL(v.URL),
				strconv.FormatInt(v.SizeBytes, 10),
				strconv.Itoa(v.OutlinkCount),
				v.ContentType,
			})
		}
	case CSVURLs:
		header = []string{"URL", "Indicator"}
		rows = make([][]string, 0, len(result.Discoveries))
		for _, d := range result.Discoveries {
			rows = append(rows, []string{cleanURL(d.URL), d.Indicator()})
		}
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCSVKind, w.kind)
	}

	if err := out.Write(header); err != nil {
		return cw.n, err
	}
	if err := out.WriteAll(rows); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// cleanURL replaces commas so a URL always stays a single CSV field
// even for naive comma splitting.
func cleanURL(u string) string {
	return strings.ReplaceAll(u, ",", "_")
}
