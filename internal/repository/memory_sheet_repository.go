package repository

import (
	"context"
	"sort"
	"sync"

	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"

	"github.com/noah-isme/kumon-analytics/internal/models"
)

// MemorySheetRepository is an in-process tabular store used by the CLI and
// tests.
type MemorySheetRepository struct {
	mu     sync.RWMutex
	sheets map[string]models.Table
	writes int
}

// NewMemorySheetRepository constructs an empty store.
func NewMemorySheetRepository() *MemorySheetRepository {
	return &MemorySheetRepository{sheets: make(map[string]models.Table)}
}

// Seed installs a sheet without counting it as a write.
func (r *MemorySheetRepository) Seed(name string, table models.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sheets[name] = table.Clone()
}

// ReadTable implements the tabular store contract.
func (r *MemorySheetRepository) ReadTable(_ context.Context, name string) (models.Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table, ok := r.sheets[name]
	if !ok {
		return models.Table{}, &appErrors.NotFoundError{Table: name}
	}
	return table.Clone(), nil
}

// ClearAndWrite implements the tabular store contract.
func (r *MemorySheetRepository) ClearAndWrite(_ context.Context, name string, table models.Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sheets[name] = table.Clone()
	r.writes++
	return nil
}

// AppendRows implements the tabular store contract.
func (r *MemorySheetRepository) AppendRows(_ context.Context, name string, table models.Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	stored, ok := r.sheets[name]
	if !ok {
		r.sheets[name] = table.Clone()
		return nil
	}
	header, rows := alignRows(stored.Header, table)
	next := models.Table{Header: header, Rows: make([][]string, 0, len(stored.Rows)+len(rows))}
	for _, row := range stored.Rows {
		padded := make([]string, len(header))
		copy(padded, row)
		next.Rows = append(next.Rows, padded)
	}
	next.Rows = append(next.Rows, rows...)
	r.sheets[name] = next
	return nil
}

// CreateTable implements the tabular store contract.
func (r *MemorySheetRepository) CreateTable(_ context.Context, name string, header []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sheets[name]; ok {
		return nil
	}
	r.sheets[name] = models.NewTable(header...)
	r.writes++
	return nil
}

// Writes returns the number of mutating calls served.
func (r *MemorySheetRepository) Writes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}

// Names lists the stored sheets in lexical order.
func (r *MemorySheetRepository) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sheets))
	for name := range r.sheets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
