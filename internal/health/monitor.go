// Package health implements a standalone registry of HTTP health checks.
// It is independent of the process supervisor and is used for ad-hoc
// status reporting against services devfleet does not necessarily own.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/devfleet/devfleet/internal/domain"
	"github.com/devfleet/devfleet/internal/metrics"
)

// Monitor maintains named health checks and the result of their last run.
type Monitor struct {
	mu      sync.Mutex
	checks  map[string]domain.HealthCheck
	results map[string]*domain.ServiceHealth

	client *http.Client
}

// NewMonitor creates an empty Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		checks:  make(map[string]domain.HealthCheck),
		results: make(map[string]*domain.ServiceHealth),
		client:  &http.Client{},
	}
}

// Register adds or replaces a health check. The recorded status starts as
// unknown until the first check runs.
func (m *Monitor) Register(name string, check domain.HealthCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checks[name] = check.WithDefaults()
	m.results[name] = &domain.ServiceHealth{
		Name:   name,
		Status: domain.HealthStatusUnknown,
	}
}

// CheckOne performs exactly one bounded-timeout probe for the named check
// and records the outcome. A 2xx response is healthy, 5xx unhealthy, any
// other status degraded, and transport errors unhealthy. The consecutive
// failure counter resets to zero only on a healthy result.
func (m *Monitor) CheckOne(ctx context.Context, name string) (domain.HealthStatus, error) {
	m.mu.Lock()
	check, ok := m.checks[name]
	m.mu.Unlock()
	if !ok {
		return domain.HealthStatusUnknown, fmt.Errorf("%w: %s", domain.ErrCheckNotRegistered, name)
	}

	start := time.Now()
	status, reason := Probe(ctx, m.client, check.Endpoint, check.Timeout)
	latency := time.Since(start)

	metrics.HealthCheckDuration.WithLabelValues(name).Observe(latency.Seconds())
	metrics.SetHealth(name, status)

	m.mu.Lock()
	defer m.mu.Unlock()

	result, ok := m.results[name]
	if !ok {
		// Register raced with an unregister; nothing to record.
		return status, nil
	}

	result.Status = status
	result.Reason = reason
	result.LastCheck = time.Now()
	result.Latency = latency
	if status == domain.HealthStatusHealthy {
		result.ConsecutiveFailures = 0
	} else {
		result.ConsecutiveFailures++
	}

	return status, nil
}

// CheckAll runs every registered check once. Individual failures do not
// abort the batch.
func (m *Monitor) CheckAll(ctx context.Context) map[string]domain.HealthStatus {
	m.mu.Lock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	m.mu.Unlock()
	sort.Strings(names)

	results := make(map[string]domain.HealthStatus, len(names))
	for _, name := range names {
		status, err := m.CheckOne(ctx, name)
		if err != nil {
			continue
		}
		results[name] = status
	}
	return results
}

// Status returns the recorded health of one service
func (m *Monitor) Status(name string) (domain.ServiceHealth, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result, ok := m.results[name]
	if !ok {
		return domain.ServiceHealth{}, false
	}
	return *result, true
}

// All returns a snapshot of every recorded result, sorted by name
func (m *Monitor) All() []domain.ServiceHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]domain.ServiceHealth, 0, len(m.results))
	for _, result := range m.results {
		all = append(all, *result)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// IsHealthy reports whether the last recorded status for name is healthy
func (m *Monitor) IsHealthy(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	result, ok := m.results[name]
	return ok && result.Status == domain.HealthStatusHealthy
}

// UnhealthyServices returns the names whose last recorded status is
// neither healthy nor unknown, sorted.
func (m *Monitor) UnhealthyServices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	for name, result := range m.results {
		if result.Status != domain.HealthStatusHealthy && result.Status != domain.HealthStatusUnknown {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Probe performs one bounded-timeout GET against endpoint and classifies
// the response. It is shared with the supervisor's health polling loop.
func Probe(ctx context.Context, client *http.Client, endpoint string, timeout time.Duration) (domain.HealthStatus, string) {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.HealthStatusUnhealthy, fmt.Sprintf("building request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return domain.HealthStatusUnhealthy, fmt.Sprintf("connection error: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return domain.HealthStatusHealthy, ""
	case resp.StatusCode >= 500:
		return domain.HealthStatusUnhealthy, fmt.Sprintf("server error: %d", resp.StatusCode)
	default:
		return domain.HealthStatusDegraded, fmt.Sprintf("status: %d", resp.StatusCode)
	}
}
