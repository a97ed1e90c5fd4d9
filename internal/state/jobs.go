package state

import (
	"sync"
	"time"

	"bambu_bridge/internal/models"

	"github.com/google/uuid"
)

// Job outcome statuses. Complete, cancelled and error are terminal and
// close the open record.
const (
	JobStatusCompleted = "completed"
	JobStatusCancelled = "cancelled"
	JobStatusError     = "error"
)

// Tracker derives print-job records from print-state transitions. At most
// one record is open at a time; the derivation logic itself enforces that.
// Open jobs live only in memory: a process restart loses an in-progress
// job rather than resuming it (wall-clock durations, no persistence of
// open records).
type Tracker struct {
	mu        sync.Mutex
	lastState string
	openID    string
	openStart time.Time

	now   func() time.Time
	newID func() string
}

func NewTracker() *Tracker {
	return &Tracker{
		lastState: "standby",
		now:       time.Now,
		// Short ids are what the dashboard history view shows.
		newID: func() string { return uuid.NewString()[:8] },
	}
}

// Observe feeds one print-state transition into the tracker and returns a
// closed JobRecord when the transition ends a job, nil otherwise.
// Repeated reports of the same state are no-ops.
func (t *Tracker) Observe(newState, filename string, filamentUsed float64) *models.JobRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	if newState == t.lastState {
		return nil
	}
	prev := t.lastState
	t.lastState = newState

	// Opening: any transition into printing while no job is open.
	if newState == "printing" && prev != "printing" {
		if t.openID == "" {
			t.openID = t.newID()
			t.openStart = t.now()
		}
		return nil
	}

	if t.openID == "" {
		return nil
	}

	var status string
	switch newState {
	case "complete":
		status = JobStatusCompleted
	case "cancelled":
		status = JobStatusCancelled
	case "error":
		status = JobStatusError
	case "standby":
		// Going idle mid-job is an implicit cancel.
		status = JobStatusCancelled
	default:
		// paused etc. leave the job open
		return nil
	}

	end := t.now()
	endUnix := float64(end.UnixNano()) / 1e9
	record := &models.JobRecord{
		JobID:         t.openID,
		Filename:      filename,
		StartTime:     float64(t.openStart.UnixNano()) / 1e9,
		EndTime:       &endUnix,
		TotalDuration: end.Sub(t.openStart).Seconds(),
		Status:        status,
		FilamentUsed:  filamentUsed,
		Metadata:      map[string]any{},
	}
	t.openID = ""
	t.openStart = time.Time{}
	return record
}

// Open reports whether a job record is currently open.
func (t *Tracker) Open() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.openID != ""
}
