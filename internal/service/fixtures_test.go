package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/kumon-analytics/internal/models"
	"github.com/noah-isme/kumon-analytics/pkg/config"
)

// seqAssigner hands out predictable ids: prefix-1, prefix-2, ...
type seqAssigner struct {
	prefix string
	n      int
}

func (a *seqAssigner) NewID() string {
	a.n++
	return fmt.Sprintf("%s-%d", a.prefix, a.n)
}

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	t := day(s)
	return &t
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var testSheets = config.SheetsConfig{
	Raw:         "data_cleaned",
	Students:    "dim_students",
	Enrollments: "rel_students_subject",
	Facts:       "fct_status_report",
}

func foldedConfig() config.PipelineConfig {
	return config.PipelineConfig{
		SchemaVariant:  config.SchemaVariantFolded,
		StatusStrategy: config.StatusStrategyStatusCode,
		ReuseKeys:      true,
		DefaultLesson:  DefaultLesson,
	}
}

func relationConfig() config.PipelineConfig {
	cfg := foldedConfig()
	cfg.SchemaVariant = config.SchemaVariantRelation
	return cfg
}

var rawHeader = []string{
	"kumon_id", "name", "gender", "birth_date", "subject", "report_date",
	"type", "grade", "stage", "current_lesson", "total_sheets", "advanced", "status",
}

// failingStore wraps a store and fails the selected operations.
type failingStore struct {
	TabularStore
	failClearAndWrite string
	failAppend        string
}

var errStoreDown = errors.New("quota exceeded")

func (s *failingStore) ClearAndWrite(ctx context.Context, name string, table models.Table) error {
	if name == s.failClearAndWrite {
		return errStoreDown
	}
	return s.TabularStore.ClearAndWrite(ctx, name, table)
}

func (s *failingStore) AppendRows(ctx context.Context, name string, table models.Table) error {
	if name == s.failAppend {
		return errStoreDown
	}
	return s.TabularStore.AppendRows(ctx, name, table)
}
