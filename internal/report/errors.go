package report

import "errors"

var (
	// ErrUnknownFormat is returned for a report format name that has no writer.
	ErrUnknownFormat = errors.New("unknown report format")

	// ErrUnknownCSVKind is returned by a CSVWriter with an unsupported kind.
	ErrUnknownCSVKind = errors.New("unknown csv kind")
)
