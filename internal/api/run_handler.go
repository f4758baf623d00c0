package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nmslite/switchaudit/internal/report"
	"github.com/nmslite/switchaudit/internal/runner"
)

// RunHandler handles audit run endpoints
type RunHandler struct {
	runCtx context.Context
	runs   RunService
	logger *slog.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(runCtx context.Context, runs RunService, logger *slog.Logger) *RunHandler {
	return &RunHandler{runCtx: runCtx, runs: runs, logger: logger}
}

// FailuresResponse lists the devices of a run that produced no report.
type FailuresResponse struct {
	RunID    string              `json:"run_id"`
	Count    int                 `json:"count"`
	Failures []report.FailureRow `json:"failures"`
}

// Start handles POST /api/v1/runs
func (h *RunHandler) Start(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Start(h.runCtx)
	if errors.Is(err, runner.ErrRunInProgress) {
		sendError(w, r, http.StatusConflict, "RUN_IN_PROGRESS", err.Error(), nil)
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to start run", slog.String("error", err.Error()))
		sendError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start run", nil)
		return
	}

	h.logger.InfoContext(r.Context(), "Audit run triggered", slog.String("run_id", run.ID.String()))
	sendJSON(w, http.StatusAccepted, run)
}

// Latest handles GET /api/v1/runs/latest
func (h *RunHandler) Latest(w http.ResponseWriter, r *http.Request) {
	run, ok := h.runs.Latest()
	if !ok {
		sendError(w, r, http.StatusNotFound, "NOT_FOUND", "No audit run yet", nil)
		return
	}
	sendJSON(w, http.StatusOK, run)
}

// Failures handles GET /api/v1/runs/latest/failures
func (h *RunHandler) Failures(w http.ResponseWriter, r *http.Request) {
	run, ok := h.runs.Latest()
	if !ok {
		sendError(w, r, http.StatusNotFound, "NOT_FOUND", "No audit run yet", nil)
		return
	}
	if run.Report == nil {
		sendError(w, r, http.StatusNotFound, "REPORT_NOT_AVAILABLE", "The latest run has no report", map[string]string{
			"status": string(run.Status),
		})
		return
	}

	sendJSON(w, http.StatusOK, FailuresResponse{
		RunID:    run.ID.String(),
		Count:    len(run.Report.Failures),
		Failures: run.Report.Failures,
	})
}
