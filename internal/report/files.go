package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Format names an output format accepted by WriteFiles.
type Format string

// Supported output formats.
const (
	FormatCSV      Format = "csv"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// DefaultFormats are written when no format is requested.
var DefaultFormats = []Format{FormatCSV, FormatText}

// ParseFormat converts a user-supplied name into a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "csv":
		return FormatCSV, nil
	case "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// CSVFileName returns the record file name for kind, e.g. fetch_<site>.csv.
func CSVFileName(kind CSVKind, site string) string {
	return fmt.Sprintf("%s_%s.csv", kind, site)
}

// ReportFileName returns the crawl report file name for format, e.g.
// CrawlReport_<site>.txt.
func ReportFileName(format Format, site string) string {
	ext := map[Format]string{
		FormatText:     "txt",
		FormatMarkdown: "md",
		FormatJSON:     "json",
	}[format]
	return fmt.Sprintf("CrawlReport_%s.%s", site, ext)
}

// WriteFiles renders result into dir in each of formats and returns the
// paths written. The directory is created when missing.
func WriteFiles(dir string, result *model.CrawlResult, formats []Format, version string) ([]string, error) {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	site := safeFileComponent(result.Site)
	paths := make([]string, 0, len(formats)+len(CSVKinds))

	write := func(name string, newWriter func(f *os.File) Writer) error {
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		_, werr := newWriter(f).Write(result)
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
		return nil
	}

	for _, format := range formats {
		var err error
		switch format {
		case FormatCSV:
			for _, kind := range CSVKinds {
				err = write(CSVFileName(kind, site), func(f *os.File) Writer { return NewCSVWriter(f, kind) })
				if err != nil {
					break
				}
			}
		case FormatText:
			err = write(ReportFileName(format, site), func(f *os.File) Writer { return NewTextWriter(f) })
		case FormatMarkdown:
			err = write(ReportFileName(format, site), func(f *os.File) Writer { return NewMarkdownWriter(f) })
		case FormatJSON:
			err = write(ReportFileName(format, site), func(f *os.File) Writer {
				return NewJSONWriter(f, WithPrettyPrint(), WithVersion(version))
			})
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
		}
		if err != nil {
			return paths, err
		}
	}
	return paths, nil
}

// safeFileComponent keeps letters, digits, '.', '-' and '_' so a site
// name cannot escape the output directory.
func safeFileComponent(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	s = strings.Trim(s, ".")
	if s == "" {
		return "site"
	}
	return s
}
