package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/sitecrawl/internal/model"
)

// JSONWriter outputs the full crawl result in JSON format.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// version is the sitecrawl version recorded in the document.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
	}
}

// WithVersion records the producing sitecrawl version in the document.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport wraps a crawl result with output metadata.
//
// Design decision: We wrap the result rather than adding fields to
// model.CrawlResult so output-specific data stays out of the core types.
type JSONReport struct {
	// Version is the sitecrawl version that generated this report.
	Version string `json:"version,omitempty"`

	// ElapsedSeconds is the crawl duration.
	ElapsedSeconds float64 `json:"elapsed_seconds"`

	// Result is the crawl result including every record.
	Result *model.CrawlResult `json:"result"`
}

// Write outputs the wrapped result as a single JSON document.
func (w *JSONWriter) Write(result *model.CrawlResult) (int, error) {
	doc := JSONReport{
		Version:        w.version,
		ElapsedSeconds: result.Elapsed().Seconds(),
		Result:         result,
	}

	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
