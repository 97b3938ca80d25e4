package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/noah-isme/kumon-analytics/internal/models"
)

// MemoryPipelineRunRepository keeps pipeline runs in process memory for the
// memory store driver and the CLI.
type MemoryPipelineRunRepository struct {
	mu   sync.RWMutex
	runs map[string]*models.PipelineRun
}

// NewMemoryPipelineRunRepository constructs an empty repository.
func NewMemoryPipelineRunRepository() *MemoryPipelineRunRepository {
	return &MemoryPipelineRunRepository{runs: make(map[string]*models.PipelineRun)}
}

// Create stores a copy of run.
func (r *MemoryPipelineRunRepository) Create(_ context.Context, run *models.PipelineRun) error {
	prepareRun(run)
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *run
	r.runs[run.ID] = &stored
	return nil
}

// GetByID returns a copy of the run.
func (r *MemoryPipelineRunRepository) GetByID(_ context.Context, id string) (*models.PipelineRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	out := *run
	return &out, nil
}

// Update applies params to a stored run.
func (r *MemoryPipelineRunRepository) Update(_ context.Context, id string, params UpdatePipelineRunParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	if params.Status != nil {
		run.Status = *params.Status
	}
	if params.StartedAt != nil {
		t := *params.StartedAt
		run.StartedAt = &t
	}
	if params.FinishedAt != nil {
		t := *params.FinishedAt
		run.FinishedAt = &t
	}
	if params.Summary != nil {
		summary := *params.Summary
		run.Summary = &summary
	}
	if params.Error != nil {
		run.Error = *params.Error
	}
	return nil
}

// ListQueued returns queued runs oldest first.
func (r *MemoryPipelineRunRepository) ListQueued(_ context.Context, limit int) ([]models.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	queued := make([]models.PipelineRun, 0)
	for _, run := range r.runs {
		if run.Status == models.RunStatusQueued {
			queued = append(queued, *run)
		}
	}
	sort.Slice(queued, func(i, j int) bool { return queued[i].CreatedAt.Before(queued[j].CreatedAt) })
	if len(queued) > limit {
		queued = queued[:limit]
	}
	return queued, nil
}
