package service

import (
	"context"

	"github.com/noah-isme/kumon-analytics/pkg/config"
	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"

	"github.com/noah-isme/kumon-analytics/internal/models"
)

// tableLoader reads and decodes the destination tables.
type tableLoader struct {
	codec           *TableCodec
	sheets          config.SheetsConfig
	withEnrollments bool
}

// students reads dim_students and returns the decoded rows together with the
// raw table for fingerprinting.
func (l tableLoader) students(ctx context.Context, store TabularStore) ([]models.Student, models.Table, error) {
	table, err := store.ReadTable(ctx, l.sheets.Students)
	if err != nil {
		return nil, models.Table{}, err
	}
	students, err := l.codec.DecodeStudents(l.sheets.Students, table)
	if err != nil {
		return nil, models.Table{}, err
	}
	return students, table, nil
}

// studentsOrEmpty treats a missing dim_students as empty.
func (l tableLoader) studentsOrEmpty(ctx context.Context, store TabularStore) ([]models.Student, error) {
	students, _, err := l.students(ctx, store)
	if appErrors.IsTableNotFound(err) {
		return []models.Student{}, nil
	}
	return students, err
}

// facts reads the fact log; a missing table is an empty log.
func (l tableLoader) facts(ctx context.Context, store TabularStore) ([]models.StatusReport, error) {
	table, err := store.ReadTable(ctx, l.sheets.Facts)
	if appErrors.IsTableNotFound(err) {
		return []models.StatusReport{}, nil
	}
	if err != nil {
		return nil, err
	}
	return l.codec.DecodeFacts(l.sheets.Facts, table)
}

// enrollments reads the relation in the relation layout and returns nil in
// the folded layout. A missing table is an empty relation.
func (l tableLoader) enrollments(ctx context.Context, store TabularStore) ([]models.Enrollment, error) {
	if !l.withEnrollments {
		return nil, nil
	}
	table, err := store.ReadTable(ctx, l.sheets.Enrollments)
	if appErrors.IsTableNotFound(err) {
		return []models.Enrollment{}, nil
	}
	if err != nil {
		return nil, err
	}
	return l.codec.DecodeEnrollments(l.sheets.Enrollments, table)
}
