package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/kumon-analytics/internal/dto"
	"github.com/noah-isme/kumon-analytics/internal/handler"
	"github.com/noah-isme/kumon-analytics/internal/models"
	"github.com/noah-isme/kumon-analytics/internal/repository"
	"github.com/noah-isme/kumon-analytics/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	return &config.Config{
		Env:       "test",
		APIPrefix: "/api/v1",
		JWT:       config.JWTConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "kumon-test"},
		Auth: config.AuthConfig{Operators: []string{
			fmt.Sprintf("root:ADMIN:%s", hash),
			fmt.Sprintf("maria:OPERATOR:%s", hash),
		}},
		Store: config.StoreConfig{Driver: config.StoreDriverMemory},
		Sheets: config.SheetsConfig{
			Raw:         "data_cleaned",
			Students:    "dim_students",
			Enrollments: "rel_students_subject",
			Facts:       "fct_status_report",
		},
		Pipeline: config.PipelineConfig{
			SchemaVariant:  config.SchemaVariantFolded,
			StatusStrategy: config.StatusStrategyStatusCode,
			ReuseKeys:      true,
			DefaultLesson:  10,
			Timezone:       "UTC",
			QueueBuffer:    2,
		},
	}
}

type testApp struct {
	t      *testing.T
	router *gin.Engine
	sheets *repository.MemorySheetRepository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)

	sheets := repository.NewMemorySheetRepository()
	sheets.Seed(cfg.Sheets.Raw, models.Table{
		Header: []string{"kumon_id", "name", "gender", "birth_date", "subject", "report_date",
			"type", "grade", "stage", "current_lesson", "total_sheets", "advanced", "status"},
		Rows: [][]string{
			{"K1", "Bruno", "male", "2014-06-01", "MATH", "2024-02-01", "paper", "3EF", "B", "50", "20", "FALSE", "current"},
			{"K2", "Ana", "female", "2015-01-10", "MATH", "2024-03-01", "connect", "2EF", "A", "30", "10", "FALSE", "current"},
		},
	})
	be := &backend{
		store:  sheets,
		runs:   repository.NewMemoryPipelineRunRepository(),
		checks: map[string]handler.Pinger{},
	}

	r, stop, err := newApp(context.Background(), cfg, zap.NewNop(), be)
	require.NoError(t, err)
	t.Cleanup(stop)
	return &testApp{t: t, router: r, sheets: sheets}
}

func (a *testApp) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(a.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) login(username string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{Username: username, Password: "pw"})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var env struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Data.AccessToken
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	env := struct {
		Data interface{} `json:"data"`
	}{Data: dest}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
}

func TestRouterPublicEndpoints(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/ready", "", nil).Code)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/api/v1/catalog", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, app.do(http.MethodGet, "/api/v1/students", "", nil).Code)
}

func TestRouterNormalizeEditCommit(t *testing.T) {
	app := newTestApp(t)
	admin := app.login("root")
	operator := app.login("maria")

	require.Equal(t, http.StatusForbidden, app.do(http.MethodPost, "/api/v1/pipeline/runs", operator, nil).Code)

	w := app.do(http.MethodPost, "/api/v1/pipeline/runs", admin, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var submitted dto.PipelineRunResponse
	decodeData(t, w, &submitted)
	require.NotEmpty(t, submitted.ID)

	require.Eventually(t, func() bool {
		var run models.PipelineRun
		res := app.do(http.MethodGet, "/api/v1/pipeline/runs/"+submitted.ID, operator, nil)
		if res.Code != http.StatusOK {
			return false
		}
		decodeData(t, res, &run)
		return run.Status == models.RunStatusFinished
	}, 2*time.Second, 10*time.Millisecond)

	w = app.do(http.MethodGet, "/api/v1/reports/editable", operator, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view models.EditableView
	decodeData(t, w, &view)
	require.Len(t, view.Rows, 2)
	assert.Equal(t, "ANA", view.Rows[0].Name)
	assert.Equal(t, "BRUNO", view.Rows[1].Name)

	commit := dto.CommitReportRequest{
		Fingerprint: view.Fingerprint,
		Month:       "2024-04",
		Rows: []dto.EditableRowRequest{{
			StudentID: view.Rows[0].StudentID,
			Subject:   "MATH",
			NewStage:  "A",
			NewLesson: 40,
			Status:    models.StatusCurrent,
		}},
	}
	w = app.do(http.MethodPost, "/api/v1/reports/commit", operator, commit)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result models.CommitResult
	decodeData(t, w, &result)
	assert.Equal(t, 1, result.FactsAppended)
	assert.False(t, result.SnapshotDrift)

	facts, err := app.sheets.ReadTable(context.Background(), "fct_status_report")
	require.NoError(t, err)
	assert.Equal(t, 3, facts.Len())

	w = app.do(http.MethodGet, "/api/v1/exports/reports?month=2024-04&format=csv", operator, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "K2")
	assert.NotContains(t, w.Body.String(), "K1")
}
