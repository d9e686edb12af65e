// Package metrics registers the prometheus collectors exposed on the
// control API's /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devfleet/devfleet/internal/domain"
)

var (
	// RestartsTotal counts restarts per service, manual and automatic.
	RestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devfleet_service_restarts_total",
			Help: "Total number of times a service was restarted.",
		},
		[]string{"service"},
	)

	// ServiceUp reports 1 while a service's child process is running.
	ServiceUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "devfleet_service_up",
			Help: "Whether the service's child process is currently running.",
		},
		[]string{"service"},
	)

	// HealthStatus reports the last health classification per service:
	// 1 healthy, 0.5 degraded, 0 unhealthy, -1 unknown.
	HealthStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "devfleet_service_health",
			Help: "Last health check classification for the service.",
		},
		[]string{"service"},
	)

	// HealthCheckDuration observes health probe latency.
	HealthCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "devfleet_health_check_duration_seconds",
			Help:    "Latency of health check probes.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// LogEntriesTotal counts parsed log records per service and level.
	LogEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devfleet_log_entries_total",
			Help: "Total number of log records parsed.",
		},
		[]string{"service", "level"},
	)
)

func init() {
	prometheus.MustRegister(RestartsTotal, ServiceUp, HealthStatus, HealthCheckDuration, LogEntriesTotal)
}

// SetHealth records a health classification on the HealthStatus gauge
func SetHealth(service string, status domain.HealthStatus) {
	var v float64
	switch status {
	case domain.HealthStatusHealthy:
		v = 1
	case domain.HealthStatusDegraded:
		v = 0.5
	case domain.HealthStatusUnhealthy:
		v = 0
	default:
		v = -1
	}
	HealthStatus.WithLabelValues(service).Set(v)
}

// Handler returns the HTTP handler serving the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
