package service

import (
	"context"

	"bambu_bridge/internal/models"
	"bambu_bridge/internal/repository"
)

// HistoryService serves the persisted job log.
type HistoryService struct {
	jobs repository.JobRepo
}

func NewHistoryService(jobs repository.JobRepo) *HistoryService {
	return &HistoryService{jobs: jobs}
}

// List returns the count/jobs envelope dashboards consume.
func (s *HistoryService) List(ctx context.Context, f repository.JobFilter) (map[string]any, error) {
	total, jobs, err := s.jobs.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []models.JobRecord{}
	}
	return map[string]any{
		"count": total,
		"jobs":  jobs,
	}, nil
}

func (s *HistoryService) Totals(ctx context.Context) (models.JobTotals, error) {
	return s.jobs.Totals(ctx)
}
