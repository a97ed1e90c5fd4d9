package repository

import (
	"context"
	"database/sql"
	"time"

	"bambu_bridge/internal/models"
)

// JobFilter narrows a history listing. Before/Since are unix-second
// bounds on start_time; zero means unbounded.
type JobFilter struct {
	Limit      int
	Before     float64
	Since      float64
	Descending bool
}

// JobRepo is the append-only job-history log.
type JobRepo interface {
	Insert(ctx context.Context, rec models.JobRecord) error
	List(ctx context.Context, f JobFilter) (int, []models.JobRecord, error)
	Totals(ctx context.Context) (models.JobTotals, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// FileCacheRepo is the time-bounded remote file-listing cache.
type FileCacheRepo interface {
	Put(ctx context.Context, files []models.RemoteFileEntry) error
	// GetFresh returns nil (no error) when the cache is empty or stale.
	GetFresh(ctx context.Context, maxAge time.Duration) ([]models.RemoteFileEntry, error)
	Invalidate(ctx context.Context) error
}

// NamespaceRepo is the namespaced key-value store behind server.database.*.
// Values are arbitrary JSON.
type NamespaceRepo interface {
	Get(ctx context.Context, namespace, key string) (any, error)
	GetAll(ctx context.Context, namespace string) (map[string]any, error)
	Put(ctx context.Context, namespace, key string, value any) (any, error)
	Delete(ctx context.Context, namespace, key string) (any, error)
	Namespaces(ctx context.Context) ([]string, error)
}

// UserRepo backs the access.* login surface.
type UserRepo interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type Repository struct {
	Jobs       JobRepo
	FileCache  FileCacheRepo
	Namespaces NamespaceRepo
	Users      UserRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Jobs:       NewJobSQLite(db),
		FileCache:  NewFileCacheSQLite(db),
		Namespaces: NewNamespaceSQLite(db),
		Users:      NewUserSQLite(db),
	}
}
