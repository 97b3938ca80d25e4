package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kumon-analytics/internal/models"
	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"
)

func TestCSVDirRepositoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewCSVDirRepository(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = repo.ReadTable(ctx, "dim_students")
	require.True(t, appErrors.IsTableNotFound(err))

	table := models.Table{Header: []string{"student_id", "name"}, Rows: [][]string{{"s-1", "ANA, MARIA"}}}
	require.NoError(t, repo.ClearAndWrite(ctx, "dim_students", table))

	got, err := repo.ReadTable(ctx, "dim_students")
	require.NoError(t, err)
	assert.Equal(t, table, got)

	raw, err := os.ReadFile(filepath.Join(dir, "dim_students.csv"))
	require.NoError(t, err)
	assert.Equal(t, "student_id,name\ns-1,\"ANA, MARIA\"\n", string(raw))
}

func TestCSVDirRepositoryAppendAlignsColumns(t *testing.T) {
	repo, err := NewCSVDirRepository(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.AppendRows(ctx, "facts", models.Table{Header: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}}))
	require.NoError(t, repo.AppendRows(ctx, "facts", models.Table{Header: []string{"b", "c"}, Rows: [][]string{{"3", "4"}}}))

	got, err := repo.ReadTable(ctx, "facts")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got.Header)
	assert.Equal(t, [][]string{{"1", "2", ""}, {"", "3", "4"}}, got.Rows)
}

func TestCSVDirRepositoryCreateTableKeepsExisting(t *testing.T) {
	repo, err := NewCSVDirRepository(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.CreateTable(ctx, "facts", []string{"a"}))
	got, err := repo.ReadTable(ctx, "facts")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Header)
	assert.Empty(t, got.Rows)

	require.NoError(t, repo.AppendRows(ctx, "facts", models.Table{Header: []string{"a"}, Rows: [][]string{{"x"}}}))
	require.NoError(t, repo.CreateTable(ctx, "facts", []string{"other"}))
	got, err = repo.ReadTable(ctx, "facts")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x"}}, got.Rows)
}

func TestCSVDirRepositoryShortRowsArePadded(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw.csv"), []byte("a,b,c\n1\n"), 0o644))
	repo, err := NewCSVDirRepository(dir)
	require.NoError(t, err)

	got, err := repo.ReadTable(context.Background(), "raw")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "", ""}}, got.Rows)
}

func TestCSVDirRepositoryRejectsRowsLongerThanHeader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw.csv"), []byte("a,b\n1,2\n3,4,lost\n"), 0o644))
	repo, err := NewCSVDirRepository(dir)
	require.NoError(t, err)

	_, err = repo.ReadTable(context.Background(), "raw")

	var storeErr *appErrors.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "raw", storeErr.Table)
	assert.Contains(t, err.Error(), "line 3")
}

func TestCSVDirRepositoryIgnoresTrailingEmptyCells(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw.csv"), []byte("a,b\n1,2,,\n"), 0o644))
	repo, err := NewCSVDirRepository(dir)
	require.NoError(t, err)

	got, err := repo.ReadTable(context.Background(), "raw")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}}, got.Rows)
}
