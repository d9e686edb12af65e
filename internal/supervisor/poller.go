package supervisor

import (
	"context"
	"time"

	"github.com/devfleet/devfleet/internal/constants"
	"github.com/devfleet/devfleet/internal/domain"
	"github.com/devfleet/devfleet/internal/health"
	"github.com/devfleet/devfleet/internal/metrics"
)

// pollHealth is the background health-polling task for one running
// service. ctx belongs to this task alone: launching a replacement task
// cancels it, so a service never has two pollers. Each iteration also
// re-checks that the service is still running and still health-checked
// and exits the loop otherwise, so no task dangles after a stop. A
// sustained unhealthy result under an auto-restart policy marks the
// service restarting and performs the restart; the mark is a
// compare-and-swap, so overlapping triggers cannot spawn two children.
func (s *Supervisor) pollHealth(ctx context.Context, sp *ServiceProcess) {
	cfg := sp.Config()

	interval := cfg.HealthInterval
	if interval <= 0 {
		interval = constants.DefaultHealthInterval
	}
	timeout := cfg.HealthTimeout
	if timeout <= 0 {
		timeout = constants.DefaultHealthTimeout
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if sp.State() != domain.ProcessStateRunning || cfg.HealthCheckURL == "" {
			return
		}

		start := time.Now()
		status, reason := health.Probe(ctx, s.client, cfg.HealthCheckURL, timeout)

		// Cancelled mid-probe by a replacement task: the result is not
		// this service's health, drop it.
		select {
		case <-ctx.Done():
			return
		default:
		}

		metrics.HealthCheckDuration.WithLabelValues(cfg.Name).Observe(time.Since(start).Seconds())
		metrics.SetHealth(cfg.Name, status)
		sp.setHealth(status, reason)

		if status != domain.HealthStatusUnhealthy || !cfg.RestartPolicy.AutoRestarts() {
			continue
		}

		if !sp.markRestarting() {
			// A restart is already in flight.
			return
		}

		sp.logf(domain.LevelWarn, "unhealthy (%s), restarting", reason)
		go func() {
			defer sp.clearRestarting()
			if err := s.Restart(cfg.Name); err != nil {
				sp.logf(domain.LevelError, "automatic restart failed: %v", err)
			}
		}()

		// The restart launches a fresh polling task; this one is done.
		return
	}
}
