// Package database archives finished crawls in SQLite.
//
// Each crawl is stored as one row in the crawls table, holding the run
// parameters and the final statistics snapshot as JSON, plus its raw
// fetch, visit and discovery records in child tables keyed by crawl ID
// and record order. The archive lets a later run compare itself with
// the previous crawl of the same site.
//
// Design decision: SQLite via modernc.org/sqlite keeps the archive a
// single CGO-free file next to the user's data directory.
package database
