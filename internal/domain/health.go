package domain

import (
	"time"

	"github.com/devfleet/devfleet/internal/constants"
)

// HealthStatus classifies the operational status of a service. Statuses
// are classified, not ordered; the reason for a degraded or unhealthy
// status travels alongside the status wherever it is recorded.
type HealthStatus string

const (
	HealthStatusUnknown   HealthStatus = "unknown"
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// String returns the string representation of HealthStatus
func (s HealthStatus) String() string {
	return string(s)
}

// HealthCheck describes a periodic HTTP probe against a service endpoint.
type HealthCheck struct {
	Endpoint string
	Interval time.Duration
	Timeout  time.Duration
	Retries  int
}

// WithDefaults returns a copy of the check with default values applied
func (c HealthCheck) WithDefaults() HealthCheck {
	result := c
	if result.Interval == 0 {
		result.Interval = constants.DefaultHealthInterval
	}
	if result.Timeout == 0 {
		result.Timeout = constants.DefaultHealthTimeout
	}
	if result.Retries == 0 {
		result.Retries = constants.DefaultHealthRetries
	}
	return result
}

// ServiceHealth is the recorded result of health checks for one service.
type ServiceHealth struct {
	Name                string        `json:"name"`
	Status              HealthStatus  `json:"status"`
	Reason              string        `json:"reason,omitempty"`
	LastCheck           time.Time     `json:"last_check,omitempty"`
	Latency             time.Duration `json:"latency,omitempty"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
}
