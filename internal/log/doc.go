// Package log builds the slog loggers used by sitecrawl.
//
// Every logger returned by New is wrapped in a SecureHandler, which masks
// values that look like credentials before they reach the output. Site
// configurations can carry cookies and Authorization headers, and crawled
// URLs can carry tokens in their query strings or user info; none of these
// should end up in a log file that gets shared.
//
// # Output
//
// Logs go to stderr as text, or as JSON when requested. When a log file is
// configured, records are also written to that file, which is rotated by
// size through lumberjack.
//
// # Usage
//
//	logger, closer, err := log.New(log.Options{Verbose: true, File: "crawl.log"})
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
//	slog.SetDefault(logger)
package log
