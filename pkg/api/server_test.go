package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mimir-aip/activelearn/pkg/dataset"
	"github.com/mimir-aip/activelearn/pkg/experiment"
	"github.com/mimir-aip/activelearn/pkg/models"
	"github.com/mimir-aip/activelearn/pkg/observability"
	"github.com/mimir-aip/activelearn/pkg/scheduler"
	"github.com/mimir-aip/activelearn/pkg/store"
)

type recordingExecutor struct {
	store *store.SQLiteStore
}

func (e *recordingExecutor) Run(ctx context.Context, name string, pool *dataset.Pool, cfg models.ExperimentConfig) (*experiment.Result, error) {
	run := &models.ExperimentRun{
		ID:        "triggered",
		Name:      name,
		Status:    models.RunStatusCompleted,
		Config:    cfg,
		StartedAt: time.Now().UTC(),
	}
	return &experiment.Result{Run: run}, e.store.SaveRun(run)
}

func stubPool(string, int64) (*dataset.Pool, error) {
	return dataset.NewPool([]models.Example{{ID: "a", Features: []float64{1}, Flagged: true}})
}

func newTestServer(t *testing.T) (*httptest.Server, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := zaptest.NewLogger(t)
	sched := scheduler.NewService(st, &recordingExecutor{store: st}, stubPool, logger)
	metrics := observability.NewMetrics()
	metrics.ObserveRun("completed")

	srv := httptest.NewServer(NewServer(st, sched, metrics, logger, "0").Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func seedRun(t *testing.T, st *store.SQLiteStore, id string, started time.Time) {
	t.Helper()
	cfg := models.DefaultExperimentConfig()
	require.NoError(t, st.SaveRun(&models.ExperimentRun{
		ID:     id,
		Name:   id,
		Status: models.RunStatusCompleted,
		Config: cfg,
		PerformanceTable: []models.PerformanceRecord{
			{TrainingSize: 40, Metrics: map[string]float64{"accuracy": 0.61, "auc": 0.7}},
			{TrainingSize: 50, Metrics: map[string]float64{"accuracy": 0.66, "auc": 0.75}},
		},
		StartedAt: started,
	}))
}

func do(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "healthy")

	resp, body = do(t, http.MethodGet, srv.URL+"/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "ready")
}

func TestRunEndpoints(t *testing.T) {
	srv, st := newTestServer(t)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	seedRun(t, st, "first", base)
	seedRun(t, st, "second", base.Add(time.Hour))

	resp, body := do(t, http.MethodGet, srv.URL+"/api/runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var runs []models.ExperimentRun
	require.NoError(t, json.Unmarshal([]byte(body), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "second", runs[0].ID)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/runs?limit=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal([]byte(body), &runs))
	assert.Len(t, runs, 1)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/runs?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/runs/first", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var run models.ExperimentRun
	require.NoError(t, json.Unmarshal([]byte(body), &run))
	assert.Equal(t, "first", run.Name)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/runs/first/curve?metric=auc", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "0.7500")
	assert.Contains(t, body, "auc, training size 40 to 50")

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/runs/first/curve?metric=mcc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/runs/first", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/runs/first", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/runs", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestScheduleEndpoints(t *testing.T) {
	srv, st := newTestServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/schedules", `{"name":"x","cron_schedule":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/schedules", `{"name":"nightly","cron_schedule":"0 2 * * *"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var schedule models.Schedule
	require.NoError(t, json.Unmarshal([]byte(body), &schedule))
	assert.Equal(t, "nightly", schedule.Name)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/schedules", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, schedule.ID)

	resp, body = do(t, http.MethodPost, srv.URL+"/api/schedules/"+schedule.ID+"/trigger", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "triggered")
	_, err := st.GetRun("triggered")
	assert.NoError(t, err)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/schedules/"+schedule.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/schedules/"+schedule.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `activelearn_runs_total{status="completed"} 1`)
}
