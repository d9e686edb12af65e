package logs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/devfleet/devfleet/internal/constants"
	"github.com/devfleet/devfleet/internal/domain"
	"github.com/devfleet/devfleet/internal/metrics"
)

// Streamer owns the shared log record channel and the registry of active
// watcher tasks. Watchers are the producers; a single Stream call is the
// consumer.
type Streamer struct {
	mu       sync.Mutex
	watchers map[string]context.CancelFunc

	entries chan domain.LogEntry

	ctx    context.Context
	cancel context.CancelFunc
}

// NewStreamer creates a new Streamer
func NewStreamer() *Streamer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Streamer{
		watchers: make(map[string]context.CancelFunc),
		entries:  make(chan domain.LogEntry, constants.StreamBufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// AddLogFile spawns a watcher task for the given service's log file.
// Registering a name again replaces the tracked handle; the previous
// watcher is abandoned, not force-stopped, since non-follow watchers
// terminate on their own at end of file.
func (s *Streamer) AddLogFile(service, path string, follow bool) {
	watchCtx, cancel := context.WithCancel(s.ctx)

	s.mu.Lock()
	s.watchers[service] = cancel
	s.mu.Unlock()

	w := NewWatcher(path, service, s.entries)
	go func() {
		if err := w.Watch(watchCtx, follow); err != nil {
			s.Write(domain.LogEntry{
				Timestamp: time.Now().UTC(),
				Service:   constants.SupervisorLogName,
				Level:     domain.LevelError,
				Message:   fmt.Sprintf("watching logs for %s: %v", service, err),
				Raw:       fmt.Sprintf("watching logs for %s: %v", service, err),
			})
		}
	}()
}

// Write injects an already-parsed entry into the stream. It is used for
// records produced from piped child output and for the orchestrator's own
// messages. The channel is bounded; when no consumer keeps up the entry is
// dropped rather than blocking a producer.
func (s *Streamer) Write(entry domain.LogEntry) {
	metrics.LogEntriesTotal.WithLabelValues(entry.Service, entry.Level.String()).Inc()
	select {
	case s.entries <- entry:
	default:
	}
}

// Stream renders records from the shared channel to w according to cfg.
//
// In non-follow mode the channel is drained until no record arrives within
// the receive timeout, then only the last cfg.Lines filtered records are
// printed in arrival order. In follow mode every filtered record is printed
// as it arrives until ctx is cancelled.
func (s *Streamer) Stream(ctx context.Context, cfg domain.StreamConfig, w io.Writer) error {
	var pattern *regexp.Regexp
	if cfg.Pattern != "" {
		re, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidPattern, err)
		}
		pattern = re
	}

	if !cfg.Follow {
		return s.streamDrain(ctx, cfg, pattern, w)
	}
	return s.streamFollow(ctx, cfg, pattern, w)
}

func (s *Streamer) streamDrain(ctx context.Context, cfg domain.StreamConfig, pattern *regexp.Regexp, w io.Writer) error {
	timer := time.NewTimer(constants.DrainReceiveTimeout)
	defer timer.Stop()

	var buffer []domain.LogEntry
drain:
	for {
		select {
		case entry := <-s.entries:
			if s.matches(entry, cfg, pattern) {
				buffer = append(buffer, entry)
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(constants.DrainReceiveTimeout)
		case <-timer.C:
			break drain
		case <-ctx.Done():
			break drain
		}
	}

	start := 0
	if cfg.Lines > 0 && len(buffer) > cfg.Lines {
		start = len(buffer) - cfg.Lines
	}
	for _, entry := range buffer[start:] {
		renderEntry(w, entry, cfg.Format)
	}
	return nil
}

func (s *Streamer) streamFollow(ctx context.Context, cfg domain.StreamConfig, pattern *regexp.Regexp, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case entry := <-s.entries:
			if s.matches(entry, cfg, pattern) {
				renderEntry(w, entry, cfg.Format)
			}
		}
	}
}

// matches applies the configured display filters; all must pass.
func (s *Streamer) matches(entry domain.LogEntry, cfg domain.StreamConfig, pattern *regexp.Regexp) bool {
	if cfg.MinLevel != nil && entry.Level < *cfg.MinLevel {
		return false
	}
	if cfg.Service != "" && !strings.Contains(entry.Service, cfg.Service) {
		return false
	}
	if pattern != nil && !pattern.MatchString(entry.Message) {
		return false
	}
	return true
}

// CreateLogFile ensures dir exists, opens or creates the per-service log
// file in append mode, and writes one marker line recording service start.
// This establishes the file a Watcher will later tail.
func (s *Streamer) CreateLogFile(service string, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating log directory %s: %w", dir, err)
	}

	path := LogPath(dir, service)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("opening log file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	marker := fmt.Sprintf("%s [INFO] Service '%s' started\n",
		time.Now().UTC().Format("2006-01-02 15:04:05"), service)
	if _, err := file.WriteString(marker); err != nil {
		return "", fmt.Errorf("writing log marker for %s: %w", service, err)
	}

	return path, nil
}

// LogPath returns the log file path for a service within dir
func LogPath(dir, service string) string {
	return filepath.Join(dir, service+".log")
}

// Close tears the streamer down, cancelling every watcher task. Follow-mode
// watchers notice within the tail poll interval.
func (s *Streamer) Close() {
	s.cancel()

	s.mu.Lock()
	s.watchers = make(map[string]context.CancelFunc)
	s.mu.Unlock()
}
