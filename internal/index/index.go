package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"photo-librarian/internal/logging"
	"photo-librarian/internal/metrics"
)

// ErrIdentityConflict means a row with the same content hash (or target
// path) already exists. Ingestion maps this to a duplicate outcome.
var ErrIdentityConflict = errors.New("identity already in library index")

// ErrNotFound means no record matched the lookup.
var ErrNotFound = errors.New("record not found")

// Default timeout for individual index operations.
const defaultTimeout = 5 * time.Second

// Index is the sqlite-backed library index.
type Index struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the index database at path and brings its
// schema up to date. The parent directory must already exist.
func Open(ctx context.Context, path string) (*Index, error) {
	logging.Info("Index path: %s", path)

	// WAL keeps readers unblocked during ingestion writes; busy_timeout
	// prevents spurious "database is locked" errors under contention.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close index after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to index: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)
	metrics.IndexConnectionsOpen.Set(float64(db.Stats().OpenConnections))

	idx := &Index{db: db, path: path}
	if err := idx.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close index after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize index schema: %w", err)
	}

	logging.Info("Index initialized successfully at %s", path)
	return idx, nil
}

func (i *Index) initialize(ctx context.Context) error {
	schema := `
	-- Library records
	CREATE TABLE IF NOT EXISTS photos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		original_filename TEXT NOT NULL,
		current_path TEXT NOT NULL UNIQUE,
		date_taken TEXT,
		date_source TEXT NOT NULL DEFAULT 'exif',
		content_hash TEXT NOT NULL UNIQUE,
		file_size INTEGER NOT NULL DEFAULT 0,
		file_type TEXT NOT NULL,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		rating INTEGER NOT NULL DEFAULT 0,
		imported_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_photos_date_taken ON photos(date_taken);
	CREATE INDEX IF NOT EXISTS idx_photos_file_type ON photos(file_type);
	CREATE INDEX IF NOT EXISTS idx_photos_type_date ON photos(file_type, date_taken);

	-- Soft-deleted records, restorable until purged
	CREATE TABLE IF NOT EXISTS deleted_photos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		original_path TEXT NOT NULL,
		trash_filename TEXT NOT NULL UNIQUE,
		deleted_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		photo_data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deleted_photos_deleted_at ON deleted_photos(deleted_at);

	-- Digest memoization keyed by path identity
	CREATE TABLE IF NOT EXISTS hash_cache (
		file_path TEXT NOT NULL,
		mtime_ns INTEGER NOT NULL,
		file_size INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		cached_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		PRIMARY KEY (file_path, mtime_ns, file_size)
	);
	`

	if _, err := i.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return i.runMigrations(ctx)
}

// photoMigrations lists every photos column an older index may lack, with
// the statements that add it. ALTER TABLE cannot attach UNIQUE to a new
// column, so the identity columns get rowid-derived placeholder values and a
// unique index instead; placeholders never match a real digest or path, so
// reconciliation treats those rows as absent and repopulates them.
var photoMigrations = []struct {
	column string
	stmts  []string
}{
	{"original_filename", []string{
		`ALTER TABLE photos ADD COLUMN original_filename TEXT NOT NULL DEFAULT ''`,
	}},
	{"current_path", []string{
		`ALTER TABLE photos ADD COLUMN current_path TEXT NOT NULL DEFAULT ''`,
		`UPDATE photos SET current_path = 'unknown-' || id WHERE current_path = ''`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_photos_current_path ON photos(current_path)`,
	}},
	{"date_taken", []string{
		`ALTER TABLE photos ADD COLUMN date_taken TEXT`,
	}},
	{"date_source", []string{
		`ALTER TABLE photos ADD COLUMN date_source TEXT NOT NULL DEFAULT 'exif'`,
	}},
	{"content_hash", []string{
		`ALTER TABLE photos ADD COLUMN content_hash TEXT NOT NULL DEFAULT ''`,
		`UPDATE photos SET content_hash = 'unhashed-' || id WHERE content_hash = ''`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_photos_content_hash ON photos(content_hash)`,
	}},
	{"file_size", []string{
		`ALTER TABLE photos ADD COLUMN file_size INTEGER NOT NULL DEFAULT 0`,
	}},
	{"file_type", []string{
		`ALTER TABLE photos ADD COLUMN file_type TEXT NOT NULL DEFAULT 'photo'`,
	}},
	{"width", []string{
		`ALTER TABLE photos ADD COLUMN width INTEGER NOT NULL DEFAULT 0`,
	}},
	{"height", []string{
		`ALTER TABLE photos ADD COLUMN height INTEGER NOT NULL DEFAULT 0`,
	}},
	{"rating", []string{
		`ALTER TABLE photos ADD COLUMN rating INTEGER NOT NULL DEFAULT 0`,
	}},
	{"imported_at", []string{
		`ALTER TABLE photos ADD COLUMN imported_at INTEGER NOT NULL DEFAULT 0`,
	}},
}

// runMigrations adds any photos column missing from an index created by an
// older build.
func (i *Index) runMigrations(ctx context.Context) error {
	rows, err := i.db.QueryContext(ctx, `SELECT name FROM pragma_table_info('photos')`)
	if err != nil {
		return fmt.Errorf("failed to read photos schema: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan column name: %w", err)
		}
		columns[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate photos schema: %w", err)
	}

	for _, m := range photoMigrations {
		if columns[m.column] {
			continue
		}
		logging.Info("Migrating index: adding %s column to photos table", m.column)
		for _, stmt := range m.stmts {
			if _, err := i.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to add %s column: %w", m.column, err)
			}
		}
		logging.Info("Migration complete: %s column added", m.column)
	}
	return nil
}

// SnapshotTo writes a self-contained copy of the database to dst through the
// open connection. VACUUM INTO folds in everything still sitting in the WAL,
// which a raw file copy of a live index would miss. dst must not exist.
func (i *Index) SnapshotTo(ctx context.Context, dst string) (err error) {
	defer func(start time.Time) { track("snapshot", start, err) }(time.Now())

	if _, err = i.db.ExecContext(ctx, `VACUUM INTO ?`, dst); err != nil {
		return fmt.Errorf("failed to snapshot index to %s: %w", dst, err)
	}
	return nil
}

// Close closes the underlying database.
func (i *Index) Close() error {
	metrics.IndexConnectionsOpen.Set(0)
	return i.db.Close()
}

// Path returns the database file path.
func (i *Index) Path() string {
	return i.path
}

// track records metrics for a completed index operation.
func track(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.IndexQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.IndexQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// isUniqueViolation reports whether err is a sqlite UNIQUE constraint
// failure, which for this schema means a duplicate identity.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
