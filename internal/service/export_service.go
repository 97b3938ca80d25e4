package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/kumon-analytics/internal/models"
	"github.com/noah-isme/kumon-analytics/pkg/config"
	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"
	"github.com/noah-isme/kumon-analytics/pkg/export"
)

// Export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// ExportFile is a rendered document ready to be served or saved.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the roster and the monthly report.
type ExportService struct {
	store     TabularStore
	loader    tableLoader
	renderers map[string]export.Renderer
	loc       *time.Location
	logger    *zap.Logger
}

// NewExportService constructs an ExportService with CSV and PDF renderers.
func NewExportService(store TabularStore, sheets config.SheetsConfig, cfg config.PipelineConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	codec := NewTableCodec(cfg.Location(), cfg.WithEnrollments())
	return &ExportService{
		store:  store,
		loader: tableLoader{codec: codec, sheets: sheets, withEnrollments: cfg.WithEnrollments()},
		renderers: map[string]export.Renderer{
			FormatCSV: export.NewCSVExporter(),
			FormatPDF: export.NewPDFExporter(),
		},
		loc:    cfg.Location(),
		logger: logger,
	}
}

func (s *ExportService) renderer(format string) (export.Renderer, error) {
	if format == "" {
		format = FormatCSV
	}
	r, ok := s.renderers[strings.ToLower(format)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	return r, nil
}

// Roster renders the active roster, optionally for one subject.
func (s *ExportService) Roster(ctx context.Context, subject, format string) (*ExportFile, error) {
	renderer, err := s.renderer(format)
	if err != nil {
		return nil, err
	}
	students, err := s.loader.studentsOrEmpty(ctx, s.store)
	if err != nil {
		return nil, err
	}
	subject = NormalizeKey(subject)
	active := make([]models.Student, 0, len(students))
	for _, st := range students {
		if RosterStatusOf(st.Status) != models.RosterActive {
			continue
		}
		if subject != "" && NormalizeKey(st.Subject) != subject {
			continue
		}
		active = append(active, st)
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Name < active[j].Name })

	data := export.Dataset{
		Title:   "Active roster",
		Headers: []string{"kumon_id", "name", "subject", "type", "current_grade", "current_stage", "status"},
	}
	if subject != "" {
		data.Title += " - " + subject
	}
	for _, st := range active {
		data.Rows = append(data.Rows, []string{st.KumonID, st.Name, st.Subject, st.Type, st.CurrentGrade, st.CurrentStage, string(st.Status)})
	}
	return s.render(renderer, data, "roster", subject)
}

// MonthlyReport renders the facts reported for month.
func (s *ExportService) MonthlyReport(ctx context.Context, filter models.ReportFilter, format string) (*ExportFile, error) {
	renderer, err := s.renderer(format)
	if err != nil {
		return nil, err
	}
	students, err := s.loader.studentsOrEmpty(ctx, s.store)
	if err != nil {
		return nil, err
	}
	facts, err := s.loader.facts(ctx, s.store)
	if err != nil {
		return nil, err
	}
	names := make(map[string]models.Student, len(students))
	for _, st := range students {
		names[st.StudentID] = st
	}

	month := filter.Month.In(s.loc)
	subject := NormalizeKey(filter.Subject)
	selected := make([]models.StatusReport, 0)
	for _, f := range facts {
		if f.ReportDate.Year() != month.Year() || f.ReportDate.Month() != month.Month() {
			continue
		}
		if subject != "" && NormalizeKey(f.Subject) != subject {
			continue
		}
		selected = append(selected, f)
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return names[selected[i].StudentID].Name < names[selected[j].StudentID].Name
	})

	label := month.Format("2006-01")
	data := export.Dataset{
		Title:   "Monthly report " + label,
		Headers: []string{"kumon_id", "name", "subject", "stage", "lesson", "sheets", "advanced", "status"},
	}
	for _, f := range selected {
		st := names[f.StudentID]
		data.Rows = append(data.Rows, []string{
			st.KumonID, st.Name, f.Subject, f.Stage,
			strconv.Itoa(f.CurrentLesson), strconv.Itoa(f.TotalSheets),
			strconv.FormatBool(f.Advanced), string(f.Status),
		})
	}
	return s.render(renderer, data, "report-"+label, subject)
}

func (s *ExportService) render(renderer export.Renderer, data export.Dataset, base, subject string) (*ExportFile, error) {
	body, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	if subject != "" {
		base += "-" + strings.ToLower(subject)
	}
	s.logger.Debug("export rendered", zap.String("file", base), zap.Int("rows", len(data.Rows)))
	return &ExportFile{
		Filename:    base + "." + renderer.Extension(),
		ContentType: renderer.ContentType(),
		Data:        body,
	}, nil
}
