package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/devfleet/devfleet/internal/constants"
	"github.com/devfleet/devfleet/internal/domain"
	"github.com/devfleet/devfleet/internal/logs"
	"github.com/devfleet/devfleet/internal/metrics"
)

// outputDrainTimeout is the maximum time to wait for output readers to
// finish after a process exits. Pipes stay open until all processes
// (including grandchildren) close them, so a bounded wait keeps shutdown
// from hanging on a grandchild that holds a pipe open.
const outputDrainTimeout = 5 * time.Second

// ServiceProcess is the supervisor-owned record for one service: its
// configuration, lifecycle state, child-process handle, restart counter,
// and last known health. The record is created on first start and persists
// across restarts, carrying the restart counter forward.
type ServiceProcess struct {
	mu sync.RWMutex

	config   domain.ServiceConfig
	runner   ProcessRunner
	streamer *logs.Streamer
	parser   *logs.Parser

	state       domain.ProcessState
	stateReason string
	proc        Process
	startedAt   time.Time
	restarts    int

	// gen identifies the current process instance; goroutines belonging
	// to an older instance must not mutate the record.
	gen uint64

	health          domain.HealthStatus
	healthReason    string
	lastHealthCheck time.Time

	// restarting serializes automatic restarts: marking a service
	// Restarting twice before the restart completes must not spawn two
	// children.
	restarting atomic.Bool

	gracePeriod time.Duration

	// cancel tears down the current process instance's context
	cancel context.CancelFunc

	// pollCancel stops the current health-polling task; at most one task
	// exists per service
	pollCancel context.CancelFunc

	// done is closed when the current process instance has been reaped
	done      chan struct{}
	closeDone func()

	outputWg sync.WaitGroup
}

func newServiceProcess(config domain.ServiceConfig, runner ProcessRunner, streamer *logs.Streamer, gracePeriod time.Duration) *ServiceProcess {
	done := make(chan struct{})
	close(done)
	return &ServiceProcess{
		config:      config,
		runner:      runner,
		streamer:    streamer,
		parser:      logs.NewParser(),
		state:       domain.ProcessStateStopped,
		health:      domain.HealthStatusUnknown,
		gracePeriod: gracePeriod,
		done:        done,
		closeDone:   func() {},
	}
}

// Name returns the service name
func (p *ServiceProcess) Name() string {
	return p.config.Name
}

// Config returns a copy of the stored service configuration
func (p *ServiceProcess) Config() domain.ServiceConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config
}

// setConfig replaces the stored configuration ahead of a fresh start
func (p *ServiceProcess) setConfig(config domain.ServiceConfig) {
	p.mu.Lock()
	p.config = config
	p.mu.Unlock()
}

// swapPollCancel records the cancel function for a new polling task and
// cancels the previous task, if any.
func (p *ServiceProcess) swapPollCancel(cancel context.CancelFunc) {
	p.mu.Lock()
	prev := p.pollCancel
	p.pollCancel = cancel
	p.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// State returns the current lifecycle state
func (p *ServiceProcess) State() domain.ProcessState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Info returns a snapshot of the service's runtime state
func (p *ServiceProcess) Info() domain.ServiceInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	info := domain.ServiceInfo{
		Name:            p.config.Name,
		State:           p.state,
		StateReason:     p.stateReason,
		Restarts:        p.restarts,
		Health:          p.health,
		HealthReason:    p.healthReason,
		LastHealthCheck: p.lastHealthCheck,
		Command:         p.config.Command,
	}
	if p.proc != nil {
		info.PID = p.proc.PID()
	}
	if !p.startedAt.IsZero() {
		info.StartedAt = p.startedAt
	}
	return info
}

// start spawns the child process. Calling start while the service is
// already starting or running is a no-op success; no second child is
// spawned. On spawn failure the record stays registered in state failed
// so status queries see the failure.
func (p *ServiceProcess) start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == domain.ProcessStateRunning || p.state == domain.ProcessStateStarting {
		return nil
	}

	p.state = domain.ProcessStateStarting
	p.stateReason = ""
	p.gen++
	gen := p.gen

	instCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	done := make(chan struct{})
	var once sync.Once
	closeDone := func() { once.Do(func() { close(done) }) }
	p.done = done
	p.closeDone = closeDone

	var logWriter io.WriteCloser
	var output io.Writer
	if p.config.LogFile != "" {
		logWriter = logs.NewFileWriter(p.config.LogFile, logs.FileConfig{})
		output = logWriter
	}

	proc, err := p.runner.Start(instCtx, p.config, output)
	if err != nil {
		p.state = domain.ProcessStateFailed
		p.stateReason = err.Error()
		p.cancel = nil
		cancel()
		if logWriter != nil {
			_ = logWriter.Close()
		}
		closeDone()
		metrics.ServiceUp.WithLabelValues(p.config.Name).Set(0)
		return &domain.SpawnError{Service: p.config.Name, Err: err}
	}

	p.proc = proc
	p.startedAt = time.Now()
	p.state = domain.ProcessStateRunning
	p.health = domain.HealthStatusUnknown
	p.healthReason = ""
	metrics.ServiceUp.WithLabelValues(p.config.Name).Set(1)

	// Piped output is parsed and injected into the shared log stream.
	if output == nil {
		p.outputWg.Add(2)
		go func() {
			defer p.outputWg.Done()
			p.readOutput(proc.Stdout())
		}()
		go func() {
			defer p.outputWg.Done()
			p.readOutput(proc.Stderr())
		}()
	}

	go p.monitor(gen, proc, logWriter, closeDone)

	return nil
}

// stop terminates the child process. Stopping a service that is already
// stopped is a no-op success. The handle is taken out of the record before
// any signal is sent, so it can never be signaled twice.
func (p *ServiceProcess) stop(force bool) error {
	p.mu.Lock()

	if p.state == domain.ProcessStateStopped {
		p.mu.Unlock()
		return nil
	}

	if p.state == domain.ProcessStateStopping {
		done := p.done
		p.mu.Unlock()
		// Another stop is in flight; wait for it to finish.
		<-done
		return nil
	}

	p.state = domain.ProcessStateStopping
	p.stateReason = ""
	proc := p.proc
	p.proc = nil
	done := p.done
	cancel := p.cancel
	p.mu.Unlock()

	if proc == nil {
		// Nothing alive to signal (spawn failed earlier).
		p.mu.Lock()
		p.state = domain.ProcessStateStopped
		p.mu.Unlock()
		return nil
	}

	if force {
		if err := proc.Signal(sigkill); err != nil {
			p.logf(domain.LevelWarn, "SIGKILL failed: %v", err)
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	} else {
		if err := proc.Signal(sigterm); err != nil {
			// The process may already be dead; escalation below covers
			// delivery failures.
			p.logf(domain.LevelWarn, "SIGTERM failed (process may have already exited): %v", err)
		}

		select {
		case <-done:
			// Exited within the grace period
		case <-time.After(p.gracePeriod):
			p.logf(domain.LevelWarn, "graceful shutdown timed out, sending SIGKILL")
			if err := proc.Signal(sigkill); err != nil {
				p.logf(domain.LevelWarn, "SIGKILL failed: %v", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
		}
	}

	if cancel != nil {
		cancel()
	}

	p.mu.Lock()
	p.state = domain.ProcessStateStopped
	p.mu.Unlock()

	return nil
}

// restart stops the service, waits for it to settle, and starts it with
// the stored configuration. The restart counter increments exactly once
// per successful invocation.
func (p *ServiceProcess) restart(ctx context.Context, settle time.Duration) error {
	if err := p.stop(false); err != nil {
		return err
	}

	select {
	case <-time.After(settle):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := p.start(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	p.restarts++
	p.mu.Unlock()
	metrics.RestartsTotal.WithLabelValues(p.config.Name).Inc()

	return nil
}

// setHealth records a health polling result
func (p *ServiceProcess) setHealth(status domain.HealthStatus, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.health = status
	p.healthReason = reason
	p.lastHealthCheck = time.Now()
}

// markRestarting flags the service for an automatic restart. It returns
// false if a restart is already in flight, making the trigger idempotent.
func (p *ServiceProcess) markRestarting() bool {
	if !p.restarting.CompareAndSwap(false, true) {
		return false
	}
	p.mu.Lock()
	p.state = domain.ProcessStateRestarting
	p.mu.Unlock()
	return true
}

// clearRestarting releases the automatic-restart flag
func (p *ServiceProcess) clearRestarting() {
	p.restarting.Store(false)
}

// monitor reaps the child and records how it went away. The generation
// guard keeps a monitor that outlived its instance (a stop that timed out
// followed by a fresh start) from touching the newer instance's state.
func (p *ServiceProcess) monitor(gen uint64, proc Process, logWriter io.WriteCloser, closeDone func()) {
	err := proc.Wait()

	// Wait for the output readers to drain the pipes, bounded so a
	// grandchild holding a pipe open cannot block the reap forever.
	outputDone := make(chan struct{})
	go func() {
		p.outputWg.Wait()
		close(outputDone)
	}()
	select {
	case <-outputDone:
	case <-time.After(outputDrainTimeout):
		p.logf(domain.LevelWarn, "output capture timed out (some logs may be missing)")
	}

	if logWriter != nil {
		_ = logWriter.Close()
	}

	exitCode := exitCodeFromError(err)

	p.mu.Lock()
	if p.gen == gen {
		p.proc = nil
		switch p.state {
		case domain.ProcessStateStopping, domain.ProcessStateStopped:
			p.logfLocked(domain.LevelInfo, "stopped (rc=%d)", exitCode)
		default:
			p.state = domain.ProcessStateFailed
			p.stateReason = fmt.Sprintf("exited unexpectedly (rc=%d)", exitCode)
			p.logfLocked(domain.LevelError, "exited unexpectedly (rc=%d)", exitCode)
		}
		metrics.ServiceUp.WithLabelValues(p.config.Name).Set(0)
	}
	p.mu.Unlock()

	closeDone()
}

// readOutput scans one pipe and feeds parsed lines into the log stream
func (p *ServiceProcess) readOutput(r io.Reader) {
	if r == nil {
		return
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, constants.ScannerBufferSize), constants.ScannerMaxBufferSize)

	for scanner.Scan() {
		entry, ok := p.parser.Parse(scanner.Text(), p.config.Name)
		if !ok {
			continue
		}
		p.streamer.Write(entry)
	}

	if err := scanner.Err(); err != nil {
		p.logf(domain.LevelWarn, "output reader error: %v", err)
	}
}

// exitCodeFromError extracts an exit code from Wait's error. Signal
// termination is reported as the negative signal number.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return 1
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
		if status.Signaled() {
			return -int(status.Signal())
		}
		return status.ExitStatus()
	}
	return exitErr.ExitCode()
}

func (p *ServiceProcess) logf(level domain.LogLevel, format string, args ...any) {
	msg := fmt.Sprintf("%s: %s", p.config.Name, fmt.Sprintf(format, args...))
	p.streamer.Write(domain.LogEntry{
		Timestamp: time.Now().UTC(),
		Service:   constants.SupervisorLogName,
		Level:     level,
		Message:   msg,
		Raw:       msg,
	})
}

// logfLocked is logf for callers already holding p.mu; Write never blocks,
// so holding the lock here is safe.
func (p *ServiceProcess) logfLocked(level domain.LogLevel, format string, args ...any) {
	msg := fmt.Sprintf("%s: %s", p.config.Name, fmt.Sprintf(format, args...))
	p.streamer.Write(domain.LogEntry{
		Timestamp: time.Now().UTC(),
		Service:   constants.SupervisorLogName,
		Level:     level,
		Message:   msg,
		Raw:       msg,
	})
}
