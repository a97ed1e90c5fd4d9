package service

import (
	"context"
	"time"

	"bambu_bridge/internal/logger"
	"bambu_bridge/internal/repository"
	"bambu_bridge/internal/state"
)

// Notifier is the dashboard fan-out side consumed by the syncer.
type Notifier interface {
	NotifyStatusUpdate(delta map[string]map[string]any, eventtime float64)
	NotifyHistoryChanged(action string, job any)
}

// Syncer is the single apply path for state changes. Device telemetry and
// local command echoes both land here, so deltas, job tracking, history
// persistence, and broadcasts stay consistent no matter where a change
// originated.
type Syncer struct {
	store   *state.Store
	tracker *state.Tracker
	jobs    repository.JobRepo
	hub     Notifier
	log     *logger.Logger
}

func NewSyncer(store *state.Store, tracker *state.Tracker, jobs repository.JobRepo, hub Notifier, log *logger.Logger) *Syncer {
	return &Syncer{store: store, tracker: tracker, jobs: jobs, hub: hub, log: log}
}

// Apply merges an update into the store and broadcasts the resulting
// delta. When the print state transition closes a job, the record is
// persisted and announced.
func (s *Syncer) Apply(updates state.Update) {
	delta, eventtime := s.store.ApplyUpdate(updates)
	if len(delta) == 0 {
		return
	}

	if ps, ok := delta["print_stats"]; ok {
		if _, ok := ps["state"]; ok {
			s.observeJob()
		}
	}

	s.hub.NotifyStatusUpdate(delta, eventtime)
}

func (s *Syncer) observeJob() {
	stats, ok := s.store.GetObject("print_stats")
	if !ok {
		return
	}
	newState, _ := stats["state"].(string)
	filename, _ := stats["filename"].(string)
	filament, _ := stats["filament_used"].(float64)

	closed := s.tracker.Observe(newState, filename, filament)
	if closed == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.jobs.Insert(ctx, *closed); err != nil {
		s.log.Errorw("job_history_insert_failed", "job_id", closed.JobID, "err", err)
		return
	}
	s.log.Infow("job_closed",
		"job_id", closed.JobID,
		"filename", closed.Filename,
		"status", closed.Status,
		"duration", closed.TotalDuration,
	)
	s.hub.NotifyHistoryChanged("finished", closed)
}
