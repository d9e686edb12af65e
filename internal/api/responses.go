package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/devfleet/devfleet/internal/domain"
)

// StatusResponse represents the response for GET /api/v1/status
type StatusResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Services      int    `json:"services"`
	APIVersion    string `json:"api_version"`
}

// ServiceListResponse represents the response for GET /api/v1/services
type ServiceListResponse struct {
	Services []ServiceResponse `json:"services"`
}

// ServiceResponse represents a single service in responses
type ServiceResponse struct {
	Name            string `json:"name"`
	State           string `json:"state"`
	StateReason     string `json:"state_reason,omitempty"`
	PID             int    `json:"pid,omitempty"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	Restarts        int    `json:"restarts"`
	Health          string `json:"health"`
	HealthReason    string `json:"health_reason,omitempty"`
	LastHealthCheck string `json:"last_health_check,omitempty"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// newServiceResponse converts a domain snapshot into a response
func newServiceResponse(info domain.ServiceInfo) ServiceResponse {
	resp := ServiceResponse{
		Name:          info.Name,
		State:         info.State.String(),
		StateReason:   info.StateReason,
		PID:           info.PID,
		UptimeSeconds: info.UptimeSeconds(),
		Restarts:      info.Restarts,
		Health:        info.Health.String(),
		HealthReason:  info.HealthReason,
	}
	if !info.LastHealthCheck.IsZero() {
		resp.LastHealthCheck = info.LastHealthCheck.Format(time.RFC3339)
	}
	return resp
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a domain error as a JSON error response
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{
		Error: err.Error(),
		Code:  domain.ErrorCode(err),
	})
}
