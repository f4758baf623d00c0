package api

import (
	"net/http"
	"time"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	runs RunService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(runs RunService) *HealthHandler {
	return &HealthHandler{runs: runs}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	RunActive  bool      `json:"run_active"`
	LatestRun  string    `json:"latest_run,omitempty"`
	LastStatus string    `json:"last_status,omitempty"`
}

// Health handles GET /health (liveness probe)
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		RunActive: h.runs.Running(),
	}
	if run, ok := h.runs.Latest(); ok {
		response.LatestRun = run.ID.String()
		response.LastStatus = string(run.Status)
	}

	sendJSON(w, http.StatusOK, response)
}
