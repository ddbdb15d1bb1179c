package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamsynth/internal/api/handler"
	"streamsynth/internal/model"
	"streamsynth/internal/pipeline"
	"streamsynth/internal/store"
	"streamsynth/pkg/router"
)

type fixture struct {
	router   *router.Router
	pipeline *pipeline.Pipeline
	history  *store.Store
}

func newFixture(t *testing.T, start bool) *fixture {
	t.Helper()
	events := make([]interface{}, 0, 5)
	for i := 1; i <= 5; i++ {
		events = append(events, map[string]interface{}{"n": i})
	}
	p := pipeline.New().
		Source("memory", map[string]interface{}{"events": events}).
		Sink("memory", nil).
		BufferSize(2).
		Aggregate(model.WindowSpec{Count: 100}, pipeline.Collect())

	history, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })
	require.NoError(t, history.SaveRun("run-1", p.Definition().String()))

	reg := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(reg)
	metrics.Attach(p)
	tracker := pipeline.NewTracker("run-1", history, nil)
	tracker.Attach(p)

	if start {
		ended := make(chan struct{})
		p.Subscribe(func(n pipeline.Notification) {
			if n.Signal == pipeline.SignalEnd {
				close(ended)
			}
		})
		require.NoError(t, p.Start(context.Background(), pipeline.WithSpilloverDir(filepath.Join(t.TempDir(), "spill"))))
		t.Cleanup(func() { p.Stop(context.Background()) })
		select {
		case <-ended:
		case <-time.After(5 * time.Second):
			t.Fatal("source did not end")
		}
	}

	r := router.New(nil)
	RegisterRoutes(r, handler.NewPipelineHandler(p, tracker, history, nil), reg)
	return &fixture{router: r, pipeline: p, history: history}
}

func (f *fixture) do(t *testing.T, method, path string) (int, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var body map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestPipelineStatus(t *testing.T) {
	f := newFixture(t, true)

	code, body := f.do(t, http.MethodGet, "/api/v1/pipeline")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "running", body["state"])
	assert.Equal(t, "memory", body["source"])
	assert.Equal(t, []interface{}{"aggregate"}, body["stages"])
	assert.Equal(t, map[string]interface{}{"length": 0.0, "capacity": 2.0}, body["buffer"])

	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, "running", stats["status"])
	assert.Equal(t, 1.0, stats["processed"])
	assert.Equal(t, 3.0, stats["spillovers"])
	assert.Equal(t, true, stats["source_finished"])

	code, body = f.do(t, http.MethodGet, "/api/v1/pipeline/errors")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0.0, body["count"])
}

func TestSpilloverEndpoints(t *testing.T) {
	f := newFixture(t, true)

	code, body := f.do(t, http.MethodGet, "/api/v1/spillover")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3.0, body["files"])
	assert.Equal(t, 3.0, body["events"])
	assert.Len(t, body["pending"], 3)

	code, body = f.do(t, http.MethodPost, "/api/v1/spillover/reload")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["reloaded"])
	assert.Equal(t, 1.0, body["buffer_length"])
	assert.Equal(t, 2.0, body["pending_files"])

	code, _ = f.do(t, http.MethodGet, "/api/v1/spillover/reload")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestSpilloverBeforeStart(t *testing.T) {
	f := newFixture(t, false)

	code, body := f.do(t, http.MethodGet, "/api/v1/spillover")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "pipeline not started", body["error"])

	code, _ = f.do(t, http.MethodPost, "/api/v1/spillover/reload")
	assert.Equal(t, http.StatusConflict, code)

	code, body = f.do(t, http.MethodGet, "/api/v1/pipeline")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "idle", body["state"])
}

func TestRunEndpoints(t *testing.T) {
	f := newFixture(t, false)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []model.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)

	code, body := f.do(t, http.MethodGet, "/api/v1/runs/run-1")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "run-1", body["run"].(map[string]interface{})["id"])

	code, body = f.do(t, http.MethodGet, "/api/v1/runs/missing")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "run not found", body["error"])
}

func TestRunHistoryDisabled(t *testing.T) {
	p := pipeline.New()
	r := router.New(nil)
	RegisterRoutes(r, handler.NewPipelineHandler(p, pipeline.NewTracker("x", nil, nil), nil, nil), nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsAndDocs(t *testing.T) {
	f := newFixture(t, true)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "streamsynth_engine_events_processed_total 1")
	assert.Contains(t, rec.Body.String(), "streamsynth_engine_spillover_events_total 3")

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "StreamSynth admin API")

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/index.html", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
