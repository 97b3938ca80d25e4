package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"

	"github.com/noah-isme/kumon-analytics/internal/models"
)

// SheetRepository is a Postgres-backed tabular store. Each named sheet keeps
// its header in sheets and its rows, in order, in sheet_rows.
type SheetRepository struct {
	db *sqlx.DB
}

// NewSheetRepository constructs a SheetRepository.
func NewSheetRepository(db *sqlx.DB) *SheetRepository {
	return &SheetRepository{db: db}
}

// ReadTable returns the whole sheet, header first.
func (r *SheetRepository) ReadTable(ctx context.Context, name string) (models.Table, error) {
	var header pq.StringArray
	if err := r.db.GetContext(ctx, &header, `SELECT header FROM sheets WHERE name = $1`, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Table{}, &appErrors.NotFoundError{Table: name}
		}
		return models.Table{}, appErrors.NewStoreError(name, "read", err)
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT cells FROM sheet_rows WHERE sheet = $1 ORDER BY position`, name)
	if err != nil {
		return models.Table{}, appErrors.NewStoreError(name, "read", err)
	}
	defer rows.Close()

	table := models.NewTable(header...)
	for rows.Next() {
		var cells pq.StringArray
		if err := rows.Scan(&cells); err != nil {
			return models.Table{}, appErrors.NewStoreError(name, "read", fmt.Errorf("scan row: %w", err))
		}
		table.Rows = append(table.Rows, []string(cells))
	}
	if err := rows.Err(); err != nil {
		return models.Table{}, appErrors.NewStoreError(name, "read", err)
	}
	return table, nil
}

// ClearAndWrite replaces the sheet with table, creating it when absent.
func (r *SheetRepository) ClearAndWrite(ctx context.Context, name string, table models.Table) error {
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sheets (name, header, updated_at) VALUES ($1, $2, NOW())
        ON CONFLICT (name) DO UPDATE SET header = EXCLUDED.header, updated_at = NOW()`, name, pq.StringArray(table.Header)); err != nil {
			return fmt.Errorf("upsert header: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE sheet = $1`, name); err != nil {
			return fmt.Errorf("clear rows: %w", err)
		}
		return insertRows(ctx, tx, name, 0, table.Rows)
	})
	return appErrors.NewStoreError(name, "clear_and_write", err)
}

// AppendRows adds rows after the existing ones, aligning columns to the
// stored header by name. Existing rows are never read.
func (r *SheetRepository) AppendRows(ctx context.Context, name string, table models.Table) error {
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var stored pq.StringArray
		err := tx.GetContext(ctx, &stored, `SELECT header FROM sheets WHERE name = $1 FOR UPDATE`, name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx, `INSERT INTO sheets (name, header, updated_at) VALUES ($1, $2, NOW())`, name, pq.StringArray(table.Header)); err != nil {
				return fmt.Errorf("create sheet: %w", err)
			}
			return insertRows(ctx, tx, name, 0, table.Rows)
		case err != nil:
			return fmt.Errorf("load header: %w", err)
		}

		header, rows := alignRows(stored, table)
		if !sameHeader(header, stored) {
			if _, err := tx.ExecContext(ctx, `UPDATE sheets SET header = $2, updated_at = NOW() WHERE name = $1`, name, pq.StringArray(header)); err != nil {
				return fmt.Errorf("extend header: %w", err)
			}
		}
		var next int64
		if err := tx.GetContext(ctx, &next, `SELECT COALESCE(MAX(position), -1) + 1 FROM sheet_rows WHERE sheet = $1`, name); err != nil {
			return fmt.Errorf("next position: %w", err)
		}
		return insertRows(ctx, tx, name, next, rows)
	})
	return appErrors.NewStoreError(name, "append", err)
}

// CreateTable registers an empty sheet. Existing sheets are left untouched.
func (r *SheetRepository) CreateTable(ctx context.Context, name string, header []string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sheets (name, header, updated_at) VALUES ($1, $2, NOW()) ON CONFLICT (name) DO NOTHING`, name, pq.StringArray(header))
	return appErrors.NewStoreError(name, "create", err)
}

func (r *SheetRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRows(ctx context.Context, tx *sqlx.Tx, name string, start int64, rows [][]string) error {
	for i, row := range rows {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sheet_rows (sheet, position, cells) VALUES ($1, $2, $3)`, name, start+int64(i), pq.StringArray(row)); err != nil {
			return fmt.Errorf("insert row %d: %w", start+int64(i), err)
		}
	}
	return nil
}
