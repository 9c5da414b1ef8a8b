// Package report writes the results of a crawl.
//
// This package contains writers for different output formats:
//   - CSVWriter: one row per fetch, visit or discovered link
//   - TextWriter: the plain text crawl report
//   - MarkdownWriter: the crawl report with tables and a status chart
//   - JSONWriter: the full result for tool integration
//
// Design decision: We separate report writing from the result data
// (which lives in the model package) so new output formats can be added
// without touching the crawler.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably. WriteFiles renders a result into an output directory
// using the conventional file names.
package report
