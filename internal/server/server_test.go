package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sprintd/internal/config"
	"github.com/fyrsmithlabs/sprintd/internal/engine"
)

type stubSource struct {
	state *engine.SprintState
}

func (s *stubSource) Snapshot() *engine.SprintState { return s.state }

func newTestServer(t *testing.T, source StateSource) *Server {
	t.Helper()
	srv, err := New(config.ServerConfig{Port: 0}, source, zap.NewNop())
	require.NoError(t, err)
	return srv
}

func TestNewRequiresSource(t *testing.T) {
	_, err := New(config.ServerConfig{}, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubSource{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestStateIdle(t *testing.T) {
	srv := newTestServer(t, &stubSource{})

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body StateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Running)
	assert.Nil(t, body.Sprint)
}

func TestStateRunningSprint(t *testing.T) {
	state := &engine.SprintState{
		SprintNumber: 2,
		Phase:        engine.PhaseCoding,
		CurrentTask:  "wire the parser",
	}
	srv := newTestServer(t, &stubSource{state: state})

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body StateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Running)
	require.NotNil(t, body.Sprint)
	assert.Equal(t, 2, body.Sprint.SprintNumber)
	assert.Equal(t, engine.PhaseCoding, body.Sprint.Phase)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubSource{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
