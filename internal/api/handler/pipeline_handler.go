package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"streamsynth/internal/model"
	"streamsynth/internal/pipeline"
	"streamsynth/internal/store"
)

// RunHistory is the part of the run store the API reads.
type RunHistory interface {
	ListRuns() ([]model.RunRecord, error)
	GetRun(runID string) (model.RunRecord, error)
	GetRunErrors(runID string) ([]model.ErrorDetail, error)
}

// PipelineHandler serves the admin API for one running pipeline.
type PipelineHandler struct {
	pipeline *pipeline.Pipeline
	tracker  *pipeline.Tracker
	history  RunHistory
	log      *zap.Logger
}

// NewPipelineHandler builds the handler. history may be nil when run
// history is disabled.
func NewPipelineHandler(p *pipeline.Pipeline, tracker *pipeline.Tracker, history RunHistory, log *zap.Logger) *PipelineHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PipelineHandler{pipeline: p, tracker: tracker, history: history, log: log}
}

// GetPipeline returns the pipeline definition, engine state and live stats
// @Summary Get pipeline status
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /pipeline [get]
func (h *PipelineHandler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	def := h.pipeline.Definition()
	state := pipeline.StateIdle
	if e := h.pipeline.Engine(); e != nil {
		state = e.State()
	}

	stats := h.tracker.Snapshot()
	stats.BufferedEvents = h.pipeline.BufferLen()

	stages := make([]string, len(def.Stages))
	for i, s := range def.Stages {
		stages[i] = s.String()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":      state.String(),
		"source":     def.Source.String(),
		"sink":       def.Sink.String(),
		"stages":     stages,
		"definition": def.String(),
		"buffer": map[string]interface{}{
			"length":   stats.BufferedEvents,
			"capacity": def.BufferCapacity,
		},
		"stats": stats,
	})
}

// GetPipelineErrors returns the most recent errors
// @Summary Get pipeline errors
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /pipeline/errors [get]
func (h *PipelineHandler) GetPipelineErrors(w http.ResponseWriter, r *http.Request) {
	errs := h.tracker.Errors()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"errors": errs,
		"count":  len(errs),
	})
}

// GetSpillover lists the spillover batches waiting on disk
// @Summary List spillover files
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{} "Pipeline not started"
// @Router /spillover [get]
func (h *PipelineHandler) GetSpillover(w http.ResponseWriter, r *http.Request) {
	e := h.pipeline.Engine()
	if e == nil {
		writeError(w, http.StatusConflict, "pipeline not started")
		return
	}
	pending := e.Pending()
	total := 0
	for _, rec := range pending {
		total += rec.Count
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dir":     e.SpilloverDir(),
		"pending": pending,
		"files":   len(pending),
		"events":  total,
	})
}

// ReloadSpillover moves the oldest spillover batch back into the buffer
// @Summary Reload oldest spillover batch
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{} "Pipeline not started"
// @Failure 500 {object} map[string]interface{} "Reload failed"
// @Router /spillover/reload [post]
func (h *PipelineHandler) ReloadSpillover(w http.ResponseWriter, r *http.Request) {
	e := h.pipeline.Engine()
	if e == nil {
		writeError(w, http.StatusConflict, "pipeline not started")
		return
	}
	reloaded, err := e.Reload()
	if err != nil {
		h.log.Error("spillover reload failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":      reloaded,
		"buffer_length": e.BufferLen(),
		"pending_files": len(e.Pending()),
	})
}

// ListRuns returns recorded runs, newest first
// @Summary List runs
// @Produce json
// @Success 200 {array} model.RunRecord
// @Failure 404 {object} map[string]interface{} "Run history disabled"
// @Router /runs [get]
func (h *PipelineHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}
	runs, err := h.history.ListRuns()
	if err != nil {
		h.log.Error("failed to list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch runs")
		return
	}
	if runs == nil {
		runs = []model.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one recorded run with its errors
// @Summary Get run
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func (h *PipelineHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}

	prefix := "/api/v1/runs/"
	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if runID == "" || strings.Contains(runID, "/") {
		writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	run, err := h.history.GetRun(runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.log.Error("failed to get run", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch run")
		return
	}
	errs, err := h.history.GetRunErrors(runID)
	if err != nil {
		h.log.Error("failed to get run errors", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch run errors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":    run,
		"errors": errs,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]interface{}{"error": msg})
}
