package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/kumon-analytics/internal/models"
	"github.com/noah-isme/kumon-analytics/internal/repository"
	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"
	"github.com/noah-isme/kumon-analytics/pkg/jobs"
)

// PipelineJobType tags normalization jobs on the queue.
const PipelineJobType = "normalize"

type pipelineRunStore interface {
	Create(ctx context.Context, run *models.PipelineRun) error
	GetByID(ctx context.Context, id string) (*models.PipelineRun, error)
	Update(ctx context.Context, id string, params repository.UpdatePipelineRunParams) error
	ListQueued(ctx context.Context, limit int) ([]models.PipelineRun, error)
}

type jobDispatcher interface {
	TryEnqueue(job jobs.Job) error
}

type normalizationRunner interface {
	Run(ctx context.Context) (*models.NormalizationSummary, error)
}

// PipelineRunService submits normalization runs to the background queue and
// reports their progress.
type PipelineRunService struct {
	repo   pipelineRunStore
	queue  jobDispatcher
	logger *zap.Logger
}

// NewPipelineRunService constructs the run service.
func NewPipelineRunService(repo pipelineRunStore, queue jobDispatcher, logger *zap.Logger) *PipelineRunService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineRunService{repo: repo, queue: queue, logger: logger}
}

// Submit records a queued run and dispatches it. A full queue is reported as
// unavailable and the run is marked failed.
func (s *PipelineRunService) Submit(ctx context.Context, actor string) (*models.PipelineRun, error) {
	run := &models.PipelineRun{Status: models.RunStatusQueued, RequestedBy: actor}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create pipeline run")
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: run.ID, Type: PipelineJobType}); err != nil {
		failed := models.RunStatusFailed
		msg := err.Error()
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, run.ID, repository.UpdatePipelineRunParams{Status: &failed, Error: &msg, FinishedAt: &now})
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Clone(appErrors.ErrUnavailable, "a normalization run is already pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue pipeline run")
	}
	s.logger.Info("pipeline run queued", zap.String("run_id", run.ID), zap.String("operator", actor))
	return run, nil
}

// Get returns a run by id.
func (s *PipelineRunService) Get(ctx context.Context, id string) (*models.PipelineRun, error) {
	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pipeline run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pipeline run")
	}
	return run, nil
}

// RecoverQueued replays runs left queued by a previous process.
func (s *PipelineRunService) RecoverQueued(ctx context.Context) {
	runs, err := s.repo.ListQueued(ctx, 20)
	if err != nil {
		s.logger.Warn("failed to recover queued pipeline runs", zap.Error(err))
		return
	}
	for _, run := range runs {
		if err := s.queue.TryEnqueue(jobs.Job{ID: run.ID, Type: PipelineJobType}); err != nil {
			s.logger.Warn("failed to requeue pipeline run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
}

// PipelineWorker bridges queue jobs to the normalization pipeline.
type PipelineWorker struct {
	repo     pipelineRunStore
	pipeline normalizationRunner
	logger   *zap.Logger
	now      func() time.Time
}

// NewPipelineWorker constructs a worker.
func NewPipelineWorker(repo pipelineRunStore, pipeline normalizationRunner, logger *zap.Logger) *PipelineWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineWorker{repo: repo, pipeline: pipeline, logger: logger, now: time.Now}
}

// Handle processes a queue job.
func (w *PipelineWorker) Handle(ctx context.Context, job jobs.Job) error {
	started := w.now().UTC()
	processing := models.RunStatusProcessing
	if err := w.repo.Update(ctx, job.ID, repository.UpdatePipelineRunParams{Status: &processing, StartedAt: &started}); err != nil {
		return err
	}

	summary, runErr := w.pipeline.Run(ctx)
	finished := w.now().UTC()
	params := repository.UpdatePipelineRunParams{FinishedAt: &finished}
	if runErr != nil {
		failed := models.RunStatusFailed
		msg := runErr.Error()
		params.Status = &failed
		params.Error = &msg
	} else {
		done := models.RunStatusFinished
		params.Status = &done
		params.Summary = summary
	}
	if err := w.repo.Update(ctx, job.ID, params); err != nil {
		w.logger.Warn("failed to record pipeline run outcome", zap.String("run_id", job.ID), zap.Error(err))
		return err
	}
	return runErr
}
