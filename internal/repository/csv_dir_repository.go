package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/noah-isme/kumon-analytics/internal/models"
	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"
	"github.com/noah-isme/kumon-analytics/pkg/storage"
)

const csvExt = ".csv"

// CSVDirRepository stores each table as <dir>/<name>.csv with the header on
// the first line.
type CSVDirRepository struct {
	mu    sync.Mutex
	dir   string
	files *storage.LocalStorage
}

// NewCSVDirRepository opens dir, creating it when missing.
func NewCSVDirRepository(dir string) (*CSVDirRepository, error) {
	files, err := storage.NewLocalStorage(dir)
	if err != nil {
		return nil, err
	}
	return &CSVDirRepository{dir: dir, files: files}, nil
}

// ReadTable implements the tabular store contract.
func (r *CSVDirRepository) ReadTable(_ context.Context, name string) (models.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read(name)
}

// ClearAndWrite implements the tabular store contract.
func (r *CSVDirRepository) ClearAndWrite(_ context.Context, name string, table models.Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(name, table)
}

// AppendRows implements the tabular store contract.
func (r *CSVDirRepository) AppendRows(_ context.Context, name string, table models.Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, err := r.read(name)
	if appErrors.IsTableNotFound(err) {
		return r.write(name, table)
	}
	if err != nil {
		return err
	}
	header, rows := alignRows(stored.Header, table)
	next := models.Table{Header: header, Rows: make([][]string, 0, len(stored.Rows)+len(rows))}
	for _, row := range stored.Rows {
		padded := make([]string, len(header))
		copy(padded, row)
		next.Rows = append(next.Rows, padded)
	}
	next.Rows = append(next.Rows, rows...)
	return r.write(name, next)
}

// CreateTable implements the tabular store contract.
func (r *CSVDirRepository) CreateTable(_ context.Context, name string, header []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := os.Stat(r.path(name)); err == nil {
		return nil
	}
	return r.write(name, models.NewTable(header...))
}

func (r *CSVDirRepository) path(name string) string {
	return filepath.Join(r.dir, name+csvExt)
}

func (r *CSVDirRepository) read(name string) (models.Table, error) {
	data, err := os.ReadFile(r.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return models.Table{}, &appErrors.NotFoundError{Table: name}
	}
	if err != nil {
		return models.Table{}, appErrors.NewStoreError(name, "read", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return models.Table{}, appErrors.NewStoreError(name, "read", fmt.Errorf("parse csv: %w", err))
	}
	if len(records) == 0 {
		return models.Table{Rows: [][]string{}}, nil
	}
	table := models.Table{Header: records[0], Rows: make([][]string, 0, len(records)-1)}
	for i, rec := range records[1:] {
		if len(rec) > len(table.Header) && !blankCells(rec[len(table.Header):]) {
			return models.Table{}, appErrors.NewStoreError(name, "read",
				fmt.Errorf("line %d has %d cells for %d columns", i+2, len(rec), len(table.Header)))
		}
		row := make([]string, len(table.Header))
		copy(row, rec)
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// blankCells reports whether every cell is empty or whitespace. Spreadsheet
// exports pad rows with trailing empty cells.
func blankCells(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (r *CSVDirRepository) write(name string, table models.Table) error {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if len(table.Header) > 0 {
		if err := w.Write(table.Header); err != nil {
			return appErrors.NewStoreError(name, "write", err)
		}
	}
	if err := w.WriteAll(table.Rows); err != nil {
		return appErrors.NewStoreError(name, "write", err)
	}
	if _, err := r.files.Save(name+csvExt, buf.Bytes()); err != nil {
		return appErrors.NewStoreError(name, "write", err)
	}
	return nil
}
