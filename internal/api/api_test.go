package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmslite/switchaudit/internal/auth"
	"github.com/nmslite/switchaudit/internal/middleware"
	"github.com/nmslite/switchaudit/internal/orchestrator"
	"github.com/nmslite/switchaudit/internal/report"
	"github.com/nmslite/switchaudit/internal/runner"
)

type fakeRuns struct {
	mu      sync.Mutex
	latest  *runner.Run
	running bool
}

func (f *fakeRuns) Start(context.Context) (*runner.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil, runner.ErrRunInProgress
	}
	f.running = true
	f.latest = &runner.Run{ID: uuid.New(), Status: runner.StatusRunning, StartedAt: time.Now()}
	run := *f.latest
	return &run, nil
}

func (f *fakeRuns) Latest() (*runner.Run, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return nil, false
	}
	run := *f.latest
	return &run, true
}

func (f *fakeRuns) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func completedRun() *runner.Run {
	agg := report.Aggregate(nil)
	agg.Failures = []report.FailureRow{{Address: "10.0.0.9", Stage: "connect", Error: "connection refused"}}
	return &runner.Run{
		ID:      uuid.New(),
		Status:  runner.StatusCompleted,
		Summary: orchestrator.Summary{Total: 1, Failed: 1},
		Report:  &agg,
	}
}

const testSecret = "12345678901234567890123456789012"

func newAuth(t *testing.T) *auth.Service {
	t.Helper()
	svc, err := auth.NewService(testSecret, "admin", "admin", time.Hour)
	require.NoError(t, err)
	return svc
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/login", "", auth.LoginRequest{Username: "admin", Password: "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp auth.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Token
}

func TestHealth(t *testing.T) {
	runs := &fakeRuns{latest: completedRun()}
	h := NewRouter(context.Background(), runs, newAuth(t), nil)

	rec := do(t, h, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.RunActive)
	assert.Equal(t, "completed", resp.LastStatus)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestLogin(t *testing.T) {
	h := NewRouter(context.Background(), &fakeRuns{}, newAuth(t), nil)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"valid", auth.LoginRequest{Username: "admin", Password: "admin"}, http.StatusOK},
		{"wrong password", auth.LoginRequest{Username: "admin", Password: "nope"}, http.StatusUnauthorized},
		{"missing fields", auth.LoginRequest{Username: "admin"}, http.StatusBadRequest},
		{"invalid body", "not an object", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/login", "", tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRuns_RequireToken(t *testing.T) {
	h := NewRouter(context.Background(), &fakeRuns{latest: completedRun()}, newAuth(t), nil)

	rec := do(t, h, http.MethodGet, "/api/v1/runs/latest", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/runs/latest", login(t, h), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRuns_NoAuthConfigured(t *testing.T) {
	h := NewRouter(context.Background(), &fakeRuns{latest: completedRun()}, nil, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/runs/latest", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/login", "", auth.LoginRequest{Username: "admin", Password: "admin"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRuns_Latest(t *testing.T) {
	runs := &fakeRuns{}
	h := NewRouter(context.Background(), runs, nil, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/runs/latest", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	runs.latest = completedRun()
	rec = do(t, h, http.MethodGet, "/api/v1/runs/latest", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Summary struct {
			Total  int `json:"total"`
			Failed int `json:"failed"`
		} `json:"summary"`
		Report struct {
			Devices struct {
				Columns []string `json:"columns"`
			} `json:"devices"`
		} `json:"report"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, runs.latest.ID.String(), body.ID)
	assert.Equal(t, "completed", body.Status)
	assert.Equal(t, 1, body.Summary.Failed)
	assert.Equal(t, []string{"hostname", "address"}, body.Report.Devices.Columns)
}

func TestRuns_Failures(t *testing.T) {
	runs := &fakeRuns{latest: completedRun()}
	h := NewRouter(context.Background(), runs, nil, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/runs/latest/failures", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FailuresResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "10.0.0.9", resp.Failures[0].Address)

	runs.latest = &runner.Run{ID: uuid.New(), Status: runner.StatusRunning}
	rec = do(t, h, http.MethodGet, "/api/v1/runs/latest/failures", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var errResp middleware.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "REPORT_NOT_AVAILABLE", errResp.Error.Code)
}

func TestRuns_Start(t *testing.T) {
	runs := &fakeRuns{}
	h := NewRouter(context.Background(), runs, nil, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/runs", "", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var run runner.Run
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
	assert.Equal(t, runner.StatusRunning, run.Status)

	rec = do(t, h, http.MethodPost, "/api/v1/runs", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
