package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"bambu_bridge/internal/models"
)

type JobSQLite struct {
	db *sql.DB
}

func NewJobSQLite(db *sql.DB) *JobSQLite { return &JobSQLite{db: db} }

// Insert appends one closed job record.
func (r *JobSQLite) Insert(ctx context.Context, rec models.JobRecord) error {
	var metaPtr *string
	if rec.Metadata != nil {
		if b, err := json.Marshal(rec.Metadata); err == nil {
			s := string(b)
			metaPtr = &s
		}
	}

	var endPtr any
	if rec.EndTime != nil {
		endPtr = *rec.EndTime
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO job_history (job_id, filename, start_time, end_time, total_duration, status, filament_used, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.JobID,
		rec.Filename,
		rec.StartTime,
		endPtr,
		rec.TotalDuration,
		rec.Status,
		rec.FilamentUsed,
		metaPtr,
	)
	return err
}

// List returns the total matching count plus up to Limit records ordered
// by start_time.
func (r *JobSQLite) List(ctx context.Context, f JobFilter) (int, []models.JobRecord, error) {
	var (
		conds []string
		args  []any
	)
	if f.Before > 0 {
		conds = append(conds, "start_time < ?")
		args = append(args, f.Before)
	}
	if f.Since > 0 {
		conds = append(conds, "start_time > ?")
		args = append(args, f.Since)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM job_history"+where, args...).Scan(&total); err != nil {
		return 0, nil, err
	}

	order := "ASC"
	if f.Descending {
		order = "DESC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	q := `SELECT job_id, filename, start_time, end_time, total_duration, status, filament_used, metadata FROM job_history` +
		where + " ORDER BY start_time " + order + " LIMIT ?"
	rows, err := r.db.QueryContext(ctx, q, append(args, limit)...)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	out := make([]models.JobRecord, 0, limit)
	for rows.Next() {
		var (
			rec      models.JobRecord
			end      sql.NullFloat64
			duration sql.NullFloat64
			status   sql.NullString
			filament sql.NullFloat64
			metaStr  sql.NullString
		)
		if err := rows.Scan(&rec.JobID, &rec.Filename, &rec.StartTime, &end, &duration, &status, &filament, &metaStr); err != nil {
			return 0, nil, err
		}
		if end.Valid {
			v := end.Float64
			rec.EndTime = &v
		}
		rec.TotalDuration = duration.Float64
		rec.Status = status.String
		rec.FilamentUsed = filament.Float64
		if metaStr.Valid && metaStr.String != "" {
			var meta map[string]any
			if err := json.Unmarshal([]byte(metaStr.String), &meta); err == nil {
				rec.Metadata = meta
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	return total, out, nil
}

// Totals aggregates completed jobs.
func (r *JobSQLite) Totals(ctx context.Context) (models.JobTotals, error) {
	var (
		count    int
		time_    sql.NullFloat64
		filament sql.NullFloat64
		longest  sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(total_duration), SUM(filament_used), MAX(total_duration)
		FROM job_history WHERE status = 'completed'
	`).Scan(&count, &time_, &filament, &longest)
	if err != nil {
		return models.JobTotals{}, err
	}
	return models.JobTotals{
		TotalJobs:     count,
		TotalTime:     time_.Float64,
		TotalFilament: filament.Float64,
		LongestJob:    longest.Float64,
		// Dashboards read both names for the same figure.
		TotalPrints: count,
	}, nil
}

// DeleteOlderThan prunes history rows whose job started before cutoff.
func (r *JobSQLite) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM job_history WHERE start_time < ?",
		float64(cutoff.UnixNano())/1e9,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
