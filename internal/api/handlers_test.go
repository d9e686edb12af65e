package api

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devfleet/devfleet/internal/domain"
	"github.com/devfleet/devfleet/internal/logs"
	"github.com/devfleet/devfleet/internal/supervisor"
)

type testEnv struct {
	sup      *supervisor.Supervisor
	streamer *logs.Streamer
	server   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	streamer := logs.NewStreamer()
	t.Cleanup(streamer.Close)

	sup := supervisor.New(nil, streamer, supervisor.Config{
		GracePeriod: time.Second,
		SettleDelay: 10 * time.Millisecond,
	})
	t.Cleanup(sup.Close)

	apiServer := NewServer(ServerConfig{Host: "127.0.0.1", Port: 0}, NewHandlers(sup, streamer))
	srv := httptest.NewServer(apiServer.Router())
	t.Cleanup(srv.Close)

	return &testEnv{sup: sup, streamer: streamer, server: srv}
}

func (e *testEnv) get(t *testing.T, path string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	if v != nil {
		defer func() { _ = resp.Body.Close() }()
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func (e *testEnv) post(t *testing.T, path string, v any) *http.Response {
	t.Helper()
	resp, err := http.Post(e.server.URL+path, "application/json", nil)
	require.NoError(t, err)
	if v != nil {
		defer func() { _ = resp.Body.Close() }()
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/healthz", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/metrics", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetStatus(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.sup.Start(domain.ServiceConfig{
		Name: "test", Command: "sleep", Args: []string{"30"},
	}))

	var status StatusResponse
	resp := env.get(t, "/api/v1/status", &status)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, 1, status.Services)
	assert.Equal(t, APIVersion, status.APIVersion)
}

func TestListServices(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.sup.Start(domain.ServiceConfig{
		Name: "web", Command: "sleep", Args: []string{"30"},
	}))
	require.NoError(t, env.sup.Start(domain.ServiceConfig{
		Name: "api", Command: "sleep", Args: []string{"30"},
	}))

	var list ServiceListResponse
	resp := env.get(t, "/api/v1/services", &list)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list.Services, 2)
	assert.Equal(t, "api", list.Services[0].Name)
	assert.Equal(t, "web", list.Services[1].Name)
	assert.Equal(t, "running", list.Services[0].State)
}

func TestGetService(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.sup.Start(domain.ServiceConfig{
		Name: "web", Command: "sleep", Args: []string{"30"},
	}))

	var svc ServiceResponse
	resp := env.get(t, "/api/v1/services/web", &svc)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "web", svc.Name)
	assert.Equal(t, "running", svc.State)
	assert.Greater(t, svc.PID, 0)
	assert.Equal(t, "unknown", svc.Health)
}

func TestGetService_NotFound(t *testing.T) {
	env := newTestEnv(t)

	var errResp ErrorResponse
	resp := env.get(t, "/api/v1/services/ghost", &errResp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, domain.ErrCodeServiceNotFound, errResp.Code)
}

func TestStopService(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.sup.Start(domain.ServiceConfig{
		Name: "web", Command: "sleep", Args: []string{"30"},
	}))

	var svc ServiceResponse
	resp := env.post(t, "/api/v1/services/web/stop", &svc)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "stopped", svc.State)
}

func TestStopService_NotFound(t *testing.T) {
	env := newTestEnv(t)

	var errResp ErrorResponse
	resp := env.post(t, "/api/v1/services/ghost/stop", &errResp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, domain.ErrCodeServiceNotFound, errResp.Code)
}

func TestRestartService(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.sup.Start(domain.ServiceConfig{
		Name: "web", Command: "sleep", Args: []string{"30"},
	}))

	before, err := env.sup.Status("web")
	require.NoError(t, err)

	var svc ServiceResponse
	resp := env.post(t, "/api/v1/services/web/restart", &svc)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", svc.State)
	assert.Equal(t, 1, svc.Restarts)
	assert.NotEqual(t, before.PID, svc.PID)
}

func TestRestartService_NotFound(t *testing.T) {
	env := newTestEnv(t)

	var errResp ErrorResponse
	resp := env.post(t, "/api/v1/services/ghost/restart", &errResp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, domain.ErrCodeServiceNotFound, errResp.Code)
}

func TestStartService_StartsStoppedService(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.sup.Start(domain.ServiceConfig{
		Name: "web", Command: "sleep", Args: []string{"30"},
	}))
	require.NoError(t, env.sup.Stop("web", false))

	var svc ServiceResponse
	resp := env.post(t, "/api/v1/services/web/start", &svc)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", svc.State)
}

func TestStartService_NotFound(t *testing.T) {
	env := newTestEnv(t)

	var errResp ErrorResponse
	resp := env.post(t, "/api/v1/services/ghost/start", &errResp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetLogs(t *testing.T) {
	env := newTestEnv(t)

	for _, msg := range []string{"alpha", "beta", "gamma"} {
		env.streamer.Write(domain.LogEntry{
			Timestamp: time.Now().UTC(),
			Service:   "web",
			Level:     domain.LevelInfo,
			Message:   msg,
			Raw:       msg,
		})
	}

	resp, err := http.Get(env.server.URL + "/api/v1/logs?lines=2")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var entries []domain.LogEntry
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry domain.LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}

	// Tail of the stream, in arrival order
	require.Len(t, entries, 2)
	assert.Equal(t, "beta", entries[0].Message)
	assert.Equal(t, "gamma", entries[1].Message)
}

func TestGetLogs_LevelFilter(t *testing.T) {
	env := newTestEnv(t)

	env.streamer.Write(domain.LogEntry{Service: "web", Level: domain.LevelDebug, Message: "noise", Raw: "noise"})
	env.streamer.Write(domain.LogEntry{Service: "web", Level: domain.LevelError, Message: "signal", Raw: "signal"})

	resp, err := http.Get(env.server.URL + "/api/v1/logs?level=error")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body := new(strings.Builder)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		body.WriteString(scanner.Text())
	}

	assert.Contains(t, body.String(), "signal")
	assert.NotContains(t, body.String(), "noise")
}
