package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kumon-analytics/internal/dto"
	"github.com/noah-isme/kumon-analytics/internal/models"
	"github.com/noah-isme/kumon-analytics/internal/repository"
	"github.com/noah-isme/kumon-analytics/pkg/config"
	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"
)

func registerRequest() dto.RegisterStudentRequest {
	return dto.RegisterStudentRequest{
		KumonID:       " k-77 ",
		Name:          "Lia Souza",
		Gender:        "female",
		BirthDate:     "2016-04-02",
		CurrentGrade:  "2EF",
		Subject:       "math",
		CurrentStage:  "3A",
		EnrollDateSub: "2024-03-04",
		Type:          "paper",
		Status:        models.StatusNew,
	}
}

func newTestRoster(store TabularStore, cfg config.PipelineConfig) *RosterService {
	svc := NewRosterService(store, testSheets, cfg, &seqAssigner{prefix: "id"}, nil, nil)
	svc.now = fixedClock(ingestTime)
	return svc
}

func TestRosterListFiltersAndPaginates(t *testing.T) {
	svc := newTestRoster(seededReportStore(t), foldedConfig())

	active, page, err := svc.List(context.Background(), models.StudentFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "BRUNO", active[0].Name)
	assert.Equal(t, models.RosterActive, active[0].Roster)
	assert.Equal(t, 1, page.TotalCount)

	all, _, err := svc.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ANA", all[0].Name)
	assert.Equal(t, models.RosterInactive, all[0].Roster)

	second, page, err := svc.List(context.Background(), models.StudentFilter{Page: 2, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "BRUNO", second[0].Name)
	assert.Equal(t, 2, page.Page)

	none, _, err := svc.List(context.Background(), models.StudentFilter{Subject: "english"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRosterListTreatsMissingTableAsEmpty(t *testing.T) {
	svc := newTestRoster(repository.NewMemorySheetRepository(), foldedConfig())

	entries, page, err := svc.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 0, page.TotalCount)
}

func TestRosterRegisterAppendsStudent(t *testing.T) {
	repo := seededReportStore(t)
	svc := newTestRoster(repo, foldedConfig())

	student, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	assert.Equal(t, "id-1", student.StudentID)
	assert.Equal(t, "K-77", student.KumonID)
	assert.Equal(t, "LIA SOUZA", student.Name)
	assert.Equal(t, "MATH", student.Subject)
	assert.Equal(t, ingestTime, student.IngestedAt)
	require.NotNil(t, student.EnrollDateSub)
	assert.Nil(t, student.EnrollDate)

	entries, _, err := svc.List(context.Background(), models.StudentFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "LIA SOUZA", entries[1].Name)
	assert.NotContains(t, repo.Names(), testSheets.Enrollments)
}

func TestRosterRegisterRejectsExistingKumonID(t *testing.T) {
	svc := newTestRoster(seededReportStore(t), foldedConfig())
	req := registerRequest()
	req.KumonID = "k1"

	_, err := svc.Register(context.Background(), req)

	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRosterRegisterValidatesAgainstCatalog(t *testing.T) {
	svc := newTestRoster(repository.NewMemorySheetRepository(), foldedConfig())
	cases := map[string]func(*dto.RegisterStudentRequest){
		"subject": func(r *dto.RegisterStudentRequest) { r.Subject = "chess" },
		"stage":   func(r *dto.RegisterStudentRequest) { r.CurrentStage = "AII" },
		"grade":   func(r *dto.RegisterStudentRequest) { r.CurrentGrade = "10EF" },
		"status":  func(r *dto.RegisterStudentRequest) { r.Status = models.StatusCurrent },
		"date":    func(r *dto.RegisterStudentRequest) { r.BirthDate = "02/04/2016" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := registerRequest()
			mutate(&req)
			_, err := svc.Register(context.Background(), req)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestRosterRegisterAddsEnrollmentInRelationLayout(t *testing.T) {
	repo := repository.NewMemorySheetRepository()
	svc := newTestRoster(repo, relationConfig())

	student, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	codec := NewTableCodec(nil, true)
	table, err := repo.ReadTable(context.Background(), testSheets.Enrollments)
	require.NoError(t, err)
	enrollments, err := codec.DecodeEnrollments(testSheets.Enrollments, table)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, "id-2", enrollments[0].SubjectID)
	assert.Equal(t, student.StudentID, enrollments[0].StudentID)
	assert.Equal(t, "MATH", enrollments[0].Subject)
}
