package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/devfleet/devfleet/internal/constants"
	"github.com/devfleet/devfleet/internal/domain"
	"github.com/devfleet/devfleet/internal/logs"
)

// Config holds supervisor-wide settings
type Config struct {
	// GracePeriod is how long a service gets to exit after SIGTERM
	GracePeriod time.Duration
	// SettleDelay is the pause between stop and start during a restart
	SettleDelay time.Duration
}

// DefaultConfig returns the default supervisor configuration
func DefaultConfig() Config {
	return Config{
		GracePeriod: constants.StopGracePeriod,
		SettleDelay: constants.RestartSettleDelay,
	}
}

// Supervisor owns the registry of named services, their configuration,
// their live child-process handles, and their lifecycle state machines.
// All operations are keyed by service name.
type Supervisor struct {
	mu sync.RWMutex

	// services maps service names to their registry entries
	services map[string]*ServiceProcess

	// runner handles the actual process execution (can be faked in tests)
	runner ProcessRunner

	// streamer receives log records from piped output and supervisor chatter
	streamer *logs.Streamer

	cfg Config

	// client performs health probes; shared by all polling tasks
	client *http.Client

	// ctx bounds the lifetime of every polling task
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new supervisor
func New(runner ProcessRunner, streamer *logs.Streamer, cfg Config) *Supervisor {
	if runner == nil {
		runner = NewExecRunner()
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = constants.StopGracePeriod
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = constants.RestartSettleDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		services: make(map[string]*ServiceProcess),
		runner:   runner,
		streamer: streamer,
		cfg:      cfg,
		client:   &http.Client{},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the named service. If the service is already running this
// is a no-op success; no second child is spawned. On spawn failure the
// service stays registered in state failed so status queries see it, and a
// SpawnError is returned.
func (s *Supervisor) Start(config domain.ServiceConfig) error {
	if config.Name == "" {
		return fmt.Errorf("%w: service name is required", domain.ErrInvalidConfig)
	}

	s.mu.Lock()
	sp, ok := s.services[config.Name]
	if ok {
		if sp.State().IsRunning() {
			s.mu.Unlock()
			return nil
		}
		// Not running: the fresh config replaces the stored one. The
		// restart counter stays with the record.
		sp.setConfig(config)
	} else {
		sp = newServiceProcess(config, s.runner, s.streamer, s.cfg.GracePeriod)
		s.services[config.Name] = sp
	}
	s.mu.Unlock()

	return s.launch(sp)
}

// launch starts the child and, when the service is health-checked, its
// polling task. An already-running service is left untouched: no second
// child and no second poller.
func (s *Supervisor) launch(sp *ServiceProcess) error {
	if sp.State().IsRunning() {
		return nil
	}
	if err := sp.start(s.ctx); err != nil {
		return err
	}
	if sp.Config().HealthCheckURL != "" {
		s.startPoller(sp)
	}
	return nil
}

// startPoller spawns the health-polling task for a freshly started
// instance, cancelling the previous instance's task first so each service
// has at most one.
func (s *Supervisor) startPoller(sp *ServiceProcess) {
	ctx, cancel := context.WithCancel(s.ctx)
	sp.swapPollCancel(cancel)
	go s.pollHealth(ctx, sp)
}

// StartExisting launches a previously registered service using its stored
// configuration. Starting a service that is already running is a no-op
// success. Unlike Restart this does not touch the restart counter.
func (s *Supervisor) StartExisting(name string) error {
	s.mu.RLock()
	sp, ok := s.services[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrServiceNotFound, name)
	}
	return s.launch(sp)
}

// Stop terminates the named service. Unknown and already-stopped services
// are a no-op success; a stop never fails because a service is not running.
func (s *Supervisor) Stop(name string, force bool) error {
	s.mu.RLock()
	sp, ok := s.services[name]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return sp.stop(force)
}

// Restart stops and starts the named service with its stored
// configuration. It fails with ErrServiceNotFound if the service was never
// started. The restart counter increments exactly once per successful call.
func (s *Supervisor) Restart(name string) error {
	s.mu.RLock()
	sp, ok := s.services[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrServiceNotFound, name)
	}

	if err := sp.restart(s.ctx, s.cfg.SettleDelay); err != nil {
		return err
	}
	if sp.Config().HealthCheckURL != "" {
		s.startPoller(sp)
	}
	return nil
}

// Status returns a snapshot of one service. It never blocks on I/O.
func (s *Supervisor) Status(name string) (domain.ServiceInfo, error) {
	s.mu.RLock()
	sp, ok := s.services[name]
	s.mu.RUnlock()
	if !ok {
		return domain.ServiceInfo{}, fmt.Errorf("%w: %s", domain.ErrServiceNotFound, name)
	}
	return sp.Info(), nil
}

// List returns snapshots of every registered service, sorted by name
func (s *Supervisor) List() []domain.ServiceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ServiceInfo, 0, len(s.services))
	for _, sp := range s.services {
		result = append(result, sp.Info())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// StopAll gracefully stops every registered service. It is best effort:
// individual failures are logged, never propagated, so shutdown paths can
// rely on it.
func (s *Supervisor) StopAll() {
	s.mu.RLock()
	services := make([]*ServiceProcess, 0, len(s.services))
	for _, sp := range s.services {
		services = append(services, sp)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sp := range services {
		wg.Add(1)
		go func(sp *ServiceProcess) {
			defer wg.Done()
			if err := sp.stop(false); err != nil {
				sp.logf(domain.LevelWarn, "error stopping: %v", err)
			}
		}(sp)
	}
	wg.Wait()
}

// Close tears the supervisor down: every owned process is stopped (best
// effort) and every polling task is cancelled. No orphaned children are
// left behind.
func (s *Supervisor) Close() {
	s.StopAll()
	s.cancel()
}
