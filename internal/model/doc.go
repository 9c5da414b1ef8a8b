// Package model defines the data structures shared by the crawl engine,
// report writers and the archive database.
//
// This package contains the following main types:
//   - FrontierEntry: A (URL, depth) pair waiting in the frontier
//   - FetchRecord, VisitRecord, DiscoveryRecord: Append-only crawl records
//   - Snapshot: A point-in-time read of the crawl statistics
//   - CrawlResult: Everything a finished crawl produced
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, report and database packages all consume these
// types, so centralizing them prevents import cycles.
package model
