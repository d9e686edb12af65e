package domain

import "time"

// ProcessState represents the current state of a supervised service.
// Services transition through these states during their lifecycle:
//
//	starting -> running -> stopping -> stopped
//	starting -> failed
//	running -> restarting -> starting
type ProcessState string

const (
	// ProcessStateStarting indicates the service is being launched
	ProcessStateStarting ProcessState = "starting"
	// ProcessStateRunning indicates the child process is alive
	ProcessStateRunning ProcessState = "running"
	// ProcessStateStopping indicates a stop has been requested
	ProcessStateStopping ProcessState = "stopping"
	// ProcessStateStopped indicates the service was stopped deliberately
	ProcessStateStopped ProcessState = "stopped"
	// ProcessStateFailed indicates the spawn failed or the process exited unexpectedly
	ProcessStateFailed ProcessState = "failed"
	// ProcessStateRestarting indicates a restart is in flight
	ProcessStateRestarting ProcessState = "restarting"
)

// String returns the string representation of ProcessState
func (s ProcessState) String() string {
	return string(s)
}

// IsRunning returns true if the service's child process is alive
func (s ProcessState) IsRunning() bool {
	return s == ProcessStateRunning
}

// IsStopped returns true if the service is stopped or failed
func (s ProcessState) IsStopped() bool {
	return s == ProcessStateStopped || s == ProcessStateFailed
}

// RestartPolicy governs whether an unhealthy or exited service is
// automatically restarted.
type RestartPolicy string

const (
	RestartNever         RestartPolicy = "never"
	RestartOnFailure     RestartPolicy = "on-failure"
	RestartAlways        RestartPolicy = "always"
	RestartUnlessStopped RestartPolicy = "unless-stopped"
)

// String returns the string representation of RestartPolicy
func (p RestartPolicy) String() string {
	return string(p)
}

// AutoRestarts returns true if an unhealthy service under this policy
// should be restarted automatically.
func (p RestartPolicy) AutoRestarts() bool {
	return p == RestartOnFailure || p == RestartAlways
}

// ParseRestartPolicy maps a manifest string to a RestartPolicy.
// Empty input defaults to "never"; unrecognized input reports ok=false.
func ParseRestartPolicy(s string) (RestartPolicy, bool) {
	switch s {
	case "", "never", "no":
		return RestartNever, true
	case "on-failure":
		return RestartOnFailure, true
	case "always":
		return RestartAlways, true
	case "unless-stopped":
		return RestartUnlessStopped, true
	default:
		return RestartNever, false
	}
}

// ServiceConfig defines the configuration for a single supervised service.
// It is immutable per start invocation: the supervisor copies it into the
// registry entry when the service is first started.
type ServiceConfig struct {
	Name           string
	Command        string
	Args           []string
	Dir            string
	Env            map[string]string
	EnvFile        string
	Ports          []int // informational only
	HealthCheckURL string
	HealthInterval time.Duration
	HealthTimeout  time.Duration
	StartupTimeout time.Duration
	RestartPolicy  RestartPolicy
	LogFile        string
}

// ServiceInfo is a read-only snapshot of a supervised service's runtime state.
type ServiceInfo struct {
	Name            string       `json:"name"`
	State           ProcessState `json:"state"`
	StateReason     string       `json:"state_reason,omitempty"`
	PID             int          `json:"pid"`
	StartedAt       time.Time    `json:"started_at,omitempty"`
	Restarts        int          `json:"restarts"`
	Health          HealthStatus `json:"health"`
	HealthReason    string       `json:"health_reason,omitempty"`
	LastHealthCheck time.Time    `json:"last_health_check,omitempty"`
	Command         string       `json:"command,omitempty"`
}

// UptimeSeconds returns the number of seconds the service has been running
func (i ServiceInfo) UptimeSeconds() int64 {
	if i.StartedAt.IsZero() {
		return 0
	}
	return int64(time.Since(i.StartedAt).Seconds())
}
