// Package constants provides shared configuration values used across the devfleet application.
package constants

import "time"

// Configuration file defaults
const (
	// DefaultManifestFile is the default workspace manifest filename
	DefaultManifestFile = "devfleet.yaml"

	// DefaultAPIHost is the default host for the control API server
	DefaultAPIHost = "127.0.0.1"

	// DefaultAPIPort is the default port for the control API server
	DefaultAPIPort = 4440

	// DefaultLogDir is where per-service log files are created
	DefaultLogDir = ".devfleet/logs"
)

// Supervision timing defaults
const (
	// StopGracePeriod is how long a service gets to exit after SIGTERM
	// before it is killed
	StopGracePeriod = 5 * time.Second

	// RestartSettleDelay is the pause between stopping and starting a
	// service during a restart
	RestartSettleDelay = 1 * time.Second

	// DefaultStartupTimeout bounds how long a service may take to become ready
	DefaultStartupTimeout = 30 * time.Second

	// DefaultShutdownTimeout is the default timeout for stopping everything
	DefaultShutdownTimeout = 10 * time.Second
)

// Health check defaults
const (
	DefaultHealthInterval = 10 * time.Second
	DefaultHealthTimeout  = 5 * time.Second
	DefaultHealthRetries  = 3
)

// Log streaming configuration
const (
	// TailPollInterval is how often a follow-mode watcher re-checks its file
	TailPollInterval = 100 * time.Millisecond

	// DrainReceiveTimeout is how long a non-follow stream waits for another
	// record before deciding the channel is drained
	DrainReceiveTimeout = 100 * time.Millisecond

	// DefaultLogLimit is the default number of log lines to show
	DefaultLogLimit = 100

	// StreamBufferSize is the capacity of the shared log record channel
	StreamBufferSize = 1024

	// ScannerBufferSize is the initial buffer size for log line scanning
	ScannerBufferSize = 64 * 1024 // 64KB

	// ScannerMaxBufferSize is the maximum buffer size for log line scanning
	ScannerMaxBufferSize = 1024 * 1024 // 1MB
)

// Log file rotation defaults (lumberjack semantics)
const (
	LogMaxSizeMB  = 10
	LogMaxBackups = 3
	LogMaxAgeDays = 7
)

// SupervisorLogName is the reserved service name under which the
// orchestrator's own messages appear in the log stream.
const SupervisorLogName = "devfleet"
