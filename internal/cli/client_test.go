package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devfleet/devfleet/internal/api"
	"github.com/devfleet/devfleet/internal/domain"
)

func TestClient_GetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/status", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.StatusResponse{
			Status:     "running",
			Services:   3,
			APIVersion: "v1",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	status, err := client.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, 3, status.Services)
}

func TestClient_StopServiceForce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/services/web/stop", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("force"))
		_ = json.NewEncoder(w).Encode(api.ServiceResponse{Name: "web", State: "stopped"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	require.NoError(t, client.StopService("web", true))
}

func TestClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{
			Error: "service not found: ghost",
			Code:  domain.ErrCodeServiceNotFound,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.RestartService("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrCodeServiceNotFound)
	assert.Contains(t, err.Error(), "ghost")
}

func TestClient_StreamLogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "api", r.URL.Query().Get("service"))
		assert.Equal(t, "5", r.URL.Query().Get("lines"))
		w.Header().Set("Content-Type", "application/x-ndjson")
		for i := 1; i <= 2; i++ {
			entry := domain.LogEntry{
				Service: "api",
				Level:   domain.LevelInfo,
				Message: fmt.Sprintf("line %d", i),
			}
			data, _ := json.Marshal(entry)
			_, _ = w.Write(append(data, '\n'))
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	var got []domain.LogEntry
	err := client.StreamLogs(LogParams{Service: "api", Lines: 5}, func(entry domain.LogEntry) {
		got = append(got, entry)
	})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "line 1", got[0].Message)
	assert.Equal(t, domain.LevelInfo, got[0].Level)
}

func TestSelectServices(t *testing.T) {
	configs := []domain.ServiceConfig{
		{Name: "api"}, {Name: "web"}, {Name: "worker"},
	}

	selected, err := selectServices(configs, []string{"worker", "api"})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "worker", selected[0].Name)
	assert.Equal(t, "api", selected[1].Name)

	_, err = selectServices(configs, []string{"ghost"})
	assert.ErrorIs(t, err, domain.ErrServiceNotFound)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45e9))
	assert.Equal(t, "2m5s", formatDuration(125e9))
	assert.Equal(t, "1h1m", formatDuration(3660e9))
}
