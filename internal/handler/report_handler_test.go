package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kumon-analytics/internal/dto"
	"github.com/noah-isme/kumon-analytics/internal/middleware"
	"github.com/noah-isme/kumon-analytics/internal/models"
	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"
)

type reportServiceMock struct {
	view    *models.EditableView
	viewErr error
	subject string

	result    *models.CommitResult
	commitErr error
	actor     string
	request   dto.CommitReportRequest
}

func (m *reportServiceMock) EditableView(ctx context.Context, subject string) (*models.EditableView, error) {
	m.subject = subject
	return m.view, m.viewErr
}

func (m *reportServiceMock) CommitCycle(ctx context.Context, req dto.CommitReportRequest, actor string) (*models.CommitResult, error) {
	m.request = req
	m.actor = actor
	return m.result, m.commitErr
}

func commitPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(dto.CommitReportRequest{
		Fingerprint: "abc",
		Month:       "2024-03",
		Rows: []dto.EditableRowRequest{{
			StudentID: "s-1", NewStage: "B", NewLesson: 40, Status: models.StatusCurrent,
		}},
	})
	require.NoError(t, err)
	return payload
}

func TestReportHandlerEditable(t *testing.T) {
	svc := &reportServiceMock{view: &models.EditableView{
		Rows:        []models.EditableRow{{StudentID: "s-1", Name: "ANA", LastStage: "A", LastLesson: 120}},
		Fingerprint: "0123456789abcdef",
	}}
	h := NewReportHandler(svc)

	c, w := newGinContext(http.MethodGet, "/reports/editable?subject=MATH", nil)
	h.Editable(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MATH", svc.subject)
	assert.Contains(t, w.Body.String(), `"fingerprint":"0123456789abcdef"`)
}

func TestReportHandlerEditableMissingTable(t *testing.T) {
	h := NewReportHandler(&reportServiceMock{viewErr: &appErrors.NotFoundError{Table: "dim_students"}})

	c, w := newGinContext(http.MethodGet, "/reports/editable", nil)
	h.Editable(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportHandlerCommit(t *testing.T) {
	svc := &reportServiceMock{result: &models.CommitResult{
		ReportDate:      time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		FactsAppended:   1,
		StudentsUpdated: 1,
	}}
	h := NewReportHandler(svc)

	c, w := newGinContext(http.MethodPost, "/reports/commit", commitPayload(t))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{Username: "maria", Role: models.RoleOperator})
	h.Commit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "maria", svc.actor)
	assert.Equal(t, "2024-03", svc.request.Month)
	assert.Nil(t, decodeEnvelope(t, w).Meta)
}

func TestReportHandlerCommitFlagsDrift(t *testing.T) {
	h := NewReportHandler(&reportServiceMock{result: &models.CommitResult{FactsAppended: 1, SnapshotDrift: true}})

	c, w := newGinContext(http.MethodPost, "/reports/commit", commitPayload(t))
	h.Commit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Meta)
	assert.Contains(t, env.Meta, "warning")
}

func TestReportHandlerCommitErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown student", appErrors.NewValidationError("dim_students", "commit", "s-x", "unknown student"), http.StatusUnprocessableEntity, appErrors.ErrTableValidation.Code},
		{"store down", &appErrors.StoreError{Table: "fct_status_report", Operation: "append", Err: errors.New("quota")}, http.StatusBadGateway, appErrors.ErrStore.Code},
		{"bad payload", appErrors.Clone(appErrors.ErrValidation, "rows are required"), http.StatusBadRequest, appErrors.ErrValidation.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewReportHandler(&reportServiceMock{commitErr: tc.err})

			c, w := newGinContext(http.MethodPost, "/reports/commit", commitPayload(t))
			h.Commit(c)

			require.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decodeEnvelope(t, w).Error.Code)
		})
	}
}

func TestReportHandlerCommitMalformedBody(t *testing.T) {
	svc := &reportServiceMock{}
	h := NewReportHandler(svc)

	c, w := newGinContext(http.MethodPost, "/reports/commit", []byte(`{"rows":"nope"}`))
	h.Commit(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.actor)
}
