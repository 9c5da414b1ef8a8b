package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecrawl/internal/model"
)

// FileName is the name of the archive file inside the database directory.
const FileName = "sitecrawl.db"

// CrawlDB archives finished crawls in a single SQLite file.
//
// Design decision: every crawl of every site goes into one file. Runs are
// compared by site name, so keeping them side by side makes history
// queries a plain WHERE clause.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the location of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per finished crawl
	CREATE TABLE IF NOT EXISTS crawls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site TEXT NOT NULL,
		seed_url TEXT NOT NULL,
		domain TEXT NOT NULL,
		workers INTEGER NOT NULL,
		max_pages INTEGER NOT NULL,
		max_depth INTEGER NOT NULL,
		pages_fetched INTEGER NOT NULL,
		robots_loaded INTEGER NOT NULL,
		stop_reason TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		statistics_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_crawls_site ON crawls(site);
	CREATE INDEX IF NOT EXISTS idx_crawls_started ON crawls(started_at);

	-- Every dispatched fetch, in record order
	CREATE TABLE IF NOT EXISTS fetches (
		crawl_id INTEGER NOT NULL REFERENCES crawls(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		PRIMARY KEY (crawl_id, seq)
	);

	-- Every accepted page
	CREATE TABLE IF NOT EXISTS visits (
		crawl_id INTEGER NOT NULL REFERENCES crawls(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		outlinks INTEGER NOT NULL,
		content_type TEXT NOT NULL,
		PRIMARY KEY (crawl_id, seq)
	);

	-- Every extracted link
	CREATE TABLE IF NOT EXISTS discoveries (
		crawl_id INTEGER NOT NULL REFERENCES crawls(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		within_site INTEGER NOT NULL,
		PRIMARY KEY (crawl_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_visits_url ON visits(url);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// CrawlSummary is one archived crawl without its raw records.
type CrawlSummary struct {
	// ID is the unique identifier of the crawl in the database.
	ID int64

	// Site is the site identifier the crawl ran under.
	Site string

	// SeedURL is the address the crawl started from.
	SeedURL string

	// PagesFetched is the number of fetches dispatched.
	PagesFetched int

	// StopReason is why the crawl ended.
	StopReason model.StopReason

	// StartedAt and FinishedAt bracket the crawl.
	StartedAt  time.Time
	FinishedAt time.Time
}

// SaveCrawl stores a finished crawl with all of its records and returns
// its database ID. Everything is written in one transaction.
func (cdb *CrawlDB) SaveCrawl(ctx context.Context, result *model.CrawlResult) (int64, error) {
	if result == nil {
		return 0, errors.New("crawl result is nil")
	}

	statsJSON, err := json.Marshal(result.Snapshot)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal statistics: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO crawls (site, seed_url, domain, workers, max_pages, max_depth,
		pages_fetched, robots_loaded, stop_reason, started_at, finished_at, statistics_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.Site,
		result.SeedURL,
		result.Domain,
		result.Workers,
		result.MaxPages,
		result.MaxDepth,
		result.PagesFetched,
		boolToInt(result.RobotsLoaded),
		string(result.StopReason),
		result.StartedAt.UTC().Format(time.RFC3339Nano),
		result.FinishedAt.UTC().Format(time.RFC3339Nano),
		string(statsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get crawl id: %w", err)
	}

	if err := insertRecords(ctx, tx, `INSERT INTO fetches (crawl_id, seq, url, status_code) VALUES (?, ?, ?, ?)`,
		len(result.Fetches), func(i int) []any {
			f := result.Fetches[i]
			return []any{id, i, f.URL, f.StatusCode}
		}); err != nil {
		return 0, fmt.Errorf("failed to insert fetches: %w", err)
	}

	if err := insertRecords(ctx, tx, `INSERT INTO visits (crawl_id, seq, url, size_bytes, outlinks, content_type) VALUES (?, ?, ?, ?, ?, ?)`,
		len(result.Visits), func(i int) []any {
			v := result.Visits[i]
			return []any{id, i, v.URL, v.SizeBytes, v.OutlinkCount, v.ContentType}
		}); err != nil {
		return 0, fmt.Errorf("failed to insert visits: %w", err)
	}

	if err := insertRecords(ctx, tx, `INSERT INTO discoveries (crawl_id, seq, url, within_site) VALUES (?, ?, ?, ?)`,
		len(result.Discoveries), func(i int) []any {
			d := result.Discoveries[i]
			return []any{id, i, d.URL, boolToInt(d.WithinSite)}
		}); err != nil {
		return 0, fmt.Errorf("failed to insert discoveries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl: %w", err)
	}

	return id, nil
}

// insertRecords runs one prepared statement n times with the arguments args returns.
func insertRecords(ctx context.Context, tx *sql.Tx, query string, n int, args func(int) []any) error {
	if n == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range n {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return nil
}

// ListCrawls returns the archived crawls for site, newest first.
// An empty site lists every crawl.
func (cdb *CrawlDB) ListCrawls(ctx context.Context, site string) ([]CrawlSummary, error) {
	query := `
	SELECT id, site, seed_url, pages_fetched, stop_reason, started_at, finished_at
	FROM crawls
	WHERE ? = '' OR site = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, site, site)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawls: %w", err)
	}
	defer rows.Close()

	var results []CrawlSummary
	for rows.Next() {
		var s CrawlSummary
		var reason, started, finished string
		if err := rows.Scan(&s.ID, &s.Site, &s.SeedURL, &s.PagesFetched, &reason, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan crawl: %w", err)
		}
		s.StopReason = model.StopReason(reason)
		s.StartedAt = parseTimestamp(started)
		s.FinishedAt = parseTimestamp(finished)
		results = append(results, s)
	}

	return results, rows.Err()
}

// GetCrawl loads a complete archived crawl by ID.
// Returns nil, nil if no crawl has that ID.
func (cdb *CrawlDB) GetCrawl(ctx context.Context, id int64) (*model.CrawlResult, error) {
	query := `
	SELECT site, seed_url, domain, workers, max_pages, max_depth, pages_fetched,
		robots_loaded, stop_reason, started_at, finished_at, statistics_json
	FROM crawls
	WHERE id = ?
	`

	var (
		result                    model.CrawlResult
		robots                    int
		reason, started, finished string
		statsJSON                 string
	)
	err := cdb.db.QueryRowContext(ctx, query, id).Scan(
		&result.Site,
		&result.SeedURL,
		&result.Domain,
		&result.Workers,
		&result.MaxPages,
		&result.MaxDepth,
		&result.PagesFetched,
		&robots,
		&reason,
		&started,
		&finished,
		&statsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl: %w", err)
	}

	result.RobotsLoaded = robots != 0
	result.StopReason = model.StopReason(reason)
	result.StartedAt = parseTimestamp(started)
	result.FinishedAt = parseTimestamp(finished)
	if err := json.Unmarshal([]byte(statsJSON), &result.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse statistics: %w", err)
	}

	if result.Fetches, err = cdb.fetches(ctx, id); err != nil {
		return nil, err
	}
	if result.Visits, err = cdb.visits(ctx, id); err != nil {
		return nil, err
	}
	if result.Discoveries, err = cdb.discoveries(ctx, id); err != nil {
		return nil, err
	}

	return &result, nil
}

// LatestCrawl returns the most recent crawl of site, or nil if there is none.
func (cdb *CrawlDB) LatestCrawl(ctx context.Context, site string) (*model.CrawlResult, error) {
	var id int64
	err := cdb.db.QueryRowContext(ctx, `
	SELECT id FROM crawls WHERE site = ? ORDER BY started_at DESC, id DESC LIMIT 1
	`, site).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest crawl: %w", err)
	}
	return cdb.GetCrawl(ctx, id)
}

// DeleteCrawl removes a crawl and its records.
// It reports whether a crawl with that ID existed.
func (cdb *CrawlDB) DeleteCrawl(ctx context.Context, id int64) (bool, error) {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"fetches", "visits", "discoveries"} {
		// table names come from the fixed list above
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE crawl_id = ?", id); err != nil {
			return false, fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM crawls WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete crawl: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count deleted rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}
	return n > 0, nil
}

func (cdb *CrawlDB) fetches(ctx context.Context, id int64) ([]model.FetchRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT url, status_code FROM fetches WHERE crawl_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetches: %w", err)
	}
	defer rows.Close()

	var records []model.FetchRecord
	for rows.Next() {
		var r model.FetchRecord
		if err := rows.Scan(&r.URL, &r.StatusCode); err != nil {
			return nil, fmt.Errorf("failed to scan fetch: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (cdb *CrawlDB) visits(ctx context.Context, id int64) ([]model.VisitRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT url, size_bytes, outlinks, content_type FROM visits WHERE crawl_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var records []model.VisitRecord
	for rows.Next() {
		var r model.VisitRecord
		if err := rows.Scan(&r.URL, &r.SizeBytes, &r.OutlinkCount, &r.ContentType); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (cdb *CrawlDB) discoveries(ctx context.Context, id int64) ([]model.DiscoveryRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT url, within_site FROM discoveries WHERE crawl_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query discoveries: %w", err)
	}
	defer rows.Close()

	var records []model.DiscoveryRecord
	for rows.Next() {
		var r model.DiscoveryRecord
		var within int
		if err := rows.Scan(&r.URL, &within); err != nil {
			return nil, fmt.Errorf("failed to scan discovery: %w", err)
		}
		r.WithinSite = within != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
