package repository

import (
	"context"
	"database/sql"
	"time"

	"bambu_bridge/internal/models"
)

type FileCacheSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewFileCacheSQLite(db *sql.DB) *FileCacheSQLite {
	return &FileCacheSQLite{db: db, now: time.Now}
}

// Put replaces the cached listing with a freshly fetched one.
func (r *FileCacheSQLite) Put(ctx context.Context, files []models.RemoteFileEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM file_cache"); err != nil {
		return err
	}

	fetchedAt := float64(r.now().UnixNano()) / 1e9
	for _, f := range files {
		isDir := 0
		if f.IsDir {
			isDir = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO file_cache (path, filename, size, modified, is_dir, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, f.Name, f.Name, f.Size, f.Modified, isDir, fetchedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetFresh returns the cached listing, or nil when the cache is empty or
// older than maxAge.
func (r *FileCacheSQLite) GetFresh(ctx context.Context, maxAge time.Duration) ([]models.RemoteFileEntry, error) {
	var latest sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(fetched_at) FROM file_cache").Scan(&latest); err != nil {
		return nil, err
	}
	if !latest.Valid {
		return nil, nil
	}
	age := float64(r.now().UnixNano())/1e9 - latest.Float64
	if age > maxAge.Seconds() {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT filename, size, modified, is_dir FROM file_cache
		ORDER BY is_dir DESC, filename ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RemoteFileEntry
	for rows.Next() {
		var (
			entry models.RemoteFileEntry
			isDir int
		)
		if err := rows.Scan(&entry.Name, &entry.Size, &entry.Modified, &isDir); err != nil {
			return nil, err
		}
		entry.IsDir = isDir != 0
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Invalidate clears the cache so the next listing refetches.
func (r *FileCacheSQLite) Invalidate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM file_cache")
	return err
}
