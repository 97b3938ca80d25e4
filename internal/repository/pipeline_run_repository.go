package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/kumon-analytics/internal/models"
)

// ErrRunNotFound is returned when a pipeline run id is unknown.
var ErrRunNotFound = errors.New("pipeline run not found")

// UpdatePipelineRunParams defines the mutable fields of a run.
type UpdatePipelineRunParams struct {
	Status     *models.RunStatus
	StartedAt  *time.Time
	FinishedAt *time.Time
	Summary    *models.NormalizationSummary
	Error      *string
}

type pipelineRunRow struct {
	ID          string        `db:"id"`
	Status      string        `db:"status"`
	RequestedBy string        `db:"requested_by"`
	CreatedAt   time.Time     `db:"created_at"`
	StartedAt   sql.NullTime  `db:"started_at"`
	FinishedAt  sql.NullTime  `db:"finished_at"`
	RawRows     sql.NullInt64 `db:"raw_rows"`
	Students    sql.NullInt64 `db:"students"`
	Enrollments sql.NullInt64 `db:"enrollments"`
	Facts       sql.NullInt64 `db:"facts"`
	Error       string        `db:"error"`
}

func (r pipelineRunRow) toModel() *models.PipelineRun {
	run := &models.PipelineRun{
		ID:          r.ID,
		Status:      models.RunStatus(r.Status),
		RequestedBy: r.RequestedBy,
		CreatedAt:   r.CreatedAt,
		Error:       r.Error,
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		run.StartedAt = &t
	}
	if r.FinishedAt.Valid {
		t := r.FinishedAt.Time
		run.FinishedAt = &t
	}
	if r.RawRows.Valid {
		run.Summary = &models.NormalizationSummary{
			RawRows:     int(r.RawRows.Int64),
			Students:    int(r.Students.Int64),
			Enrollments: int(r.Enrollments.Int64),
			Facts:       int(r.Facts.Int64),
		}
	}
	return run
}

// PipelineRunRepository persists pipeline run metadata in PostgreSQL.
type PipelineRunRepository struct {
	db *sqlx.DB
}

// NewPipelineRunRepository constructs the repository.
func NewPipelineRunRepository(db *sqlx.DB) *PipelineRunRepository {
	return &PipelineRunRepository{db: db}
}

// Create inserts a new run with generated defaults.
func (r *PipelineRunRepository) Create(ctx context.Context, run *models.PipelineRun) error {
	prepareRun(run)
	const query = `INSERT INTO pipeline_runs (id, status, requested_by, created_at, error)
VALUES (:id, :status, :requested_by, :created_at, :error)`
	row := pipelineRunRow{ID: run.ID, Status: string(run.Status), RequestedBy: run.RequestedBy, CreatedAt: run.CreatedAt, Error: run.Error}
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("create pipeline run: %w", err)
	}
	return nil
}

// GetByID returns a run by its identifier.
func (r *PipelineRunRepository) GetByID(ctx context.Context, id string) (*models.PipelineRun, error) {
	const query = `SELECT id, status, requested_by, created_at, started_at, finished_at, raw_rows, students, enrollments, facts, error
FROM pipeline_runs WHERE id = $1`
	var row pipelineRunRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("get pipeline run: %w", err)
	}
	return row.toModel(), nil
}

// Update persists the provided changes for a run.
func (r *PipelineRunRepository) Update(ctx context.Context, id string, params UpdatePipelineRunParams) error {
	set := make([]string, 0, 8)
	args := make([]interface{}, 0, 9)
	argPos := 1
	add := func(column string, value interface{}) {
		set = append(set, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if params.Status != nil {
		add("status", string(*params.Status))
	}
	if params.StartedAt != nil {
		add("started_at", *params.StartedAt)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}
	if params.Summary != nil {
		add("raw_rows", params.Summary.RawRows)
		add("students", params.Summary.Students)
		add("enrollments", params.Summary.Enrollments)
		add("facts", params.Summary.Facts)
	}
	if params.Error != nil {
		add("error", *params.Error)
	}
	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE pipeline_runs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update pipeline run: %w", err)
	}
	return nil
}

// ListQueued fetches queued runs oldest first, used to recover after restart.
func (r *PipelineRunRepository) ListQueued(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, status, requested_by, created_at, started_at, finished_at, raw_rows, students, enrollments, facts, error
FROM pipeline_runs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1`
	var rows []pipelineRunRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("list queued pipeline runs: %w", err)
	}
	runs := make([]models.PipelineRun, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, *row.toModel())
	}
	return runs, nil
}

func prepareRun(run *models.PipelineRun) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunStatusQueued
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}
