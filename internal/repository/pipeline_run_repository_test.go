package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kumon-analytics/internal/models"
)

var runColumns = []string{"id", "status", "requested_by", "created_at", "started_at", "finished_at", "raw_rows", "students", "enrollments", "facts", "error"}

func TestPipelineRunRepositoryCreateFillsDefaults(t *testing.T) {
	db, mock, cleanup := newSheetMock(t)
	defer cleanup()
	repo := NewPipelineRunRepository(db)

	mock.ExpectExec("INSERT INTO pipeline_runs").
		WithArgs(sqlmock.AnyArg(), "QUEUED", "root", sqlmock.AnyArg(), "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.PipelineRun{RequestedBy: "root"}
	require.NoError(t, repo.Create(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, models.RunStatusQueued, run.Status)
	assert.False(t, run.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPipelineRunRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newSheetMock(t)
	defer cleanup()
	repo := NewPipelineRunRepository(db)

	created := time.Date(2024, time.March, 2, 10, 0, 0, 0, time.UTC)
	finished := created.Add(time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta("FROM pipeline_runs WHERE id = $1")).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(runColumns).
			AddRow("run-1", "FINISHED", "root", created, created, finished, 3, 2, 0, 3, ""))

	run, err := repo.GetByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFinished, run.Status)
	require.NotNil(t, run.FinishedAt)
	assert.True(t, finished.Equal(*run.FinishedAt))
	assert.Equal(t, &models.NormalizationSummary{RawRows: 3, Students: 2, Facts: 3}, run.Summary)
}

func TestPipelineRunRepositoryGetByIDMissing(t *testing.T) {
	db, mock, cleanup := newSheetMock(t)
	defer cleanup()
	repo := NewPipelineRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM pipeline_runs WHERE id = $1")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestPipelineRunRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newSheetMock(t)
	defer cleanup()
	repo := NewPipelineRunRepository(db)

	status := models.RunStatusFailed
	msg := "raw table missing"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pipeline_runs SET status = $1, error = $2 WHERE id = $3")).
		WithArgs("FAILED", msg, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "run-1", UpdatePipelineRunParams{Status: &status, Error: &msg}))
	require.NoError(t, repo.Update(context.Background(), "run-1", UpdatePipelineRunParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPipelineRunRepositoryListQueued(t *testing.T) {
	db, mock, cleanup := newSheetMock(t)
	defer cleanup()
	repo := NewPipelineRunRepository(db)

	created := time.Date(2024, time.March, 2, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1")).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows(runColumns).
			AddRow("run-1", "QUEUED", "root", created, nil, nil, nil, nil, nil, nil, ""))

	runs, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].Summary)
	assert.Nil(t, runs[0].StartedAt)
}

func TestMemoryPipelineRunRepository(t *testing.T) {
	repo := NewMemoryPipelineRunRepository()
	ctx := context.Background()

	older := &models.PipelineRun{RequestedBy: "root", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &models.PipelineRun{RequestedBy: "root", CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, older))

	queued, err := repo.ListQueued(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, older.ID, queued[0].ID)

	status := models.RunStatusFinished
	require.NoError(t, repo.Update(ctx, older.ID, UpdatePipelineRunParams{Status: &status, Summary: &models.NormalizationSummary{Facts: 4}}))

	got, err := repo.GetByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFinished, got.Status)
	assert.Equal(t, 4, got.Summary.Facts)

	got.Status = models.RunStatusFailed
	again, err := repo.GetByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFinished, again.Status)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, repo.Update(ctx, "missing", UpdatePipelineRunParams{Status: &status}), ErrRunNotFound)
}
