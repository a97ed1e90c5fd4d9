package models

// JobRecord is a persisted summary of one print attempt. Times are unix
// seconds (float, Moonraker convention). EndTime is nil while the job is
// still open.
type JobRecord struct {
	JobID         string         `json:"job_id"`
	Filename      string         `json:"filename"`
	StartTime     float64        `json:"start_time"`
	EndTime       *float64       `json:"end_time"`
	TotalDuration float64        `json:"total_duration"`
	Status        string         `json:"status"` // completed | cancelled | error
	FilamentUsed  float64        `json:"filament_used"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// JobTotals aggregates completed jobs for server.history.totals.
type JobTotals struct {
	TotalJobs     int     `json:"total_jobs"`
	TotalTime     float64 `json:"total_time"`
	TotalFilament float64 `json:"total_filament"`
	LongestJob    float64 `json:"longest_job"`
	TotalPrints   int     `json:"total_prints"`
}

// RemoteFileEntry is one entry from the printer's FTPS listing.
// Size is meaningful only when IsDir is false.
type RemoteFileEntry struct {
	Name     string  `json:"name"`
	IsDir    bool    `json:"is_dir"`
	Size     int64   `json:"size"`
	Modified float64 `json:"modified"` // unix seconds
}

// User is a dashboard login account.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// Webcam is a dashboard-managed camera entry, persisted in the
// "moonraker" namespace under key "webcams".
type Webcam struct {
	UID            string  `json:"uid"`
	Name           string  `json:"name"`
	Location       string  `json:"location"`
	Service        string  `json:"service"`
	TargetFPS      int     `json:"target_fps"`
	StreamURL      string  `json:"stream_url"`
	SnapshotURL    string  `json:"snapshot_url"`
	FlipHorizontal bool    `json:"flip_horizontal"`
	FlipVertical   bool    `json:"flip_vertical"`
	Rotation       int     `json:"rotation"`
	Source         string  `json:"source"`
	Enabled        bool    `json:"enabled"`
}
