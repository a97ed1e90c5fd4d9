package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates the bridge's SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// Conservative pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is not great with many writers
	db.SetMaxIdleConns(1)

	// Pragmas to improve reliability
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA journal_mode=WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA foreign_keys=ON: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA busy_timeout=5000: %w", err)
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaJobHistory = `
CREATE TABLE IF NOT EXISTS job_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id TEXT UNIQUE,
    filename TEXT NOT NULL,
    start_time REAL NOT NULL,
    end_time REAL,
    total_duration REAL,
    status TEXT,
    filament_used REAL,
    metadata TEXT
);
`

const schemaJobHistoryIndex = `
CREATE INDEX IF NOT EXISTS idx_job_start_time ON job_history(start_time DESC);
`

const schemaFileCache = `
CREATE TABLE IF NOT EXISTS file_cache (
    path TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    size INTEGER NOT NULL,
    modified REAL NOT NULL,
    is_dir INTEGER NOT NULL,
    fetched_at REAL NOT NULL
);
`

const schemaFileCacheIndex = `
CREATE INDEX IF NOT EXISTS idx_cache_fetched_at ON file_cache(fetched_at);
`

const schemaFileMetadata = `
CREATE TABLE IF NOT EXISTS file_metadata (
    filename TEXT PRIMARY KEY,
    slicer TEXT,
    layer_height REAL,
    first_layer_height REAL,
    estimated_time INTEGER,
    filament_total REAL,
    thumbnails TEXT,
    cached_at REAL NOT NULL
);
`

const schemaNamespaceItems = `
CREATE TABLE IF NOT EXISTS namespace_items (
    namespace TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (namespace, key)
);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		// In case of panic, rollback to avoid leaving an open transaction
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaJobHistory,
		schemaJobHistoryIndex,
		schemaFileCache,
		schemaFileCacheIndex,
		schemaFileMetadata,
		schemaNamespaceItems,
		schemaUsers,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
