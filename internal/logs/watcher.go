package logs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/devfleet/devfleet/internal/constants"
	"github.com/devfleet/devfleet/internal/domain"
	"github.com/devfleet/devfleet/internal/metrics"
)

// Watcher tails one log file and emits parsed entries onto the shared
// stream channel. In follow mode it polls every TailPollInterval, waking
// early when fsnotify reports activity on the file's directory, and
// survives truncation and rotation by reopening the file whenever its size
// drops below the last read position.
type Watcher struct {
	path    string
	service string
	out     chan<- domain.LogEntry
	parser  *Parser

	position int64
	partial  []byte
}

// NewWatcher creates a watcher for one file
func NewWatcher(path, service string, out chan<- domain.LogEntry) *Watcher {
	return &Watcher{
		path:    path,
		service: service,
		out:     out,
		parser:  NewParser(),
	}
}

// Watch reads the file and emits entries until the context is cancelled.
// In non-follow mode it returns after the first read to EOF. The initial
// open failing is the only fatal condition; read errors afterwards end the
// watcher without affecting other services.
func (w *Watcher) Watch(ctx context.Context, follow bool) error {
	file, err := os.Open(w.path)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", w.path, err)
	}
	defer func() { _ = file.Close() }()

	if follow {
		// Only new lines are emitted when following.
		pos, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return fmt.Errorf("seeking log file %s: %w", w.path, err)
		}
		w.position = pos
	}

	reader := bufio.NewReaderSize(file, constants.ScannerBufferSize)

	var notify *fsnotify.Watcher
	if follow {
		if nw, err := fsnotify.NewWatcher(); err == nil {
			if err := nw.Add(filepath.Dir(w.path)); err == nil {
				notify = nw
				defer func() { _ = nw.Close() }()
			} else {
				_ = nw.Close()
			}
		}
		// Polling alone is sufficient when fsnotify is unavailable.
	}

	ticker := time.NewTicker(constants.TailPollInterval)
	defer ticker.Stop()

	for {
		if err := w.drain(ctx, reader); err != nil {
			return err
		}

		if !follow {
			return nil
		}

		if !w.waitForActivity(ctx, ticker, notify) {
			return nil
		}

		if reopened, err := w.reopenIfTruncated(); err != nil {
			return err
		} else if reopened != nil {
			_ = file.Close()
			file = reopened
			reader.Reset(file)
		}
	}
}

// drain reads every complete line currently available and emits it. A
// trailing partial line is held back until its newline arrives.
func (w *Watcher) drain(ctx context.Context, reader *bufio.Reader) error {
	for {
		chunk, err := reader.ReadBytes('\n')
		w.position += int64(len(chunk))

		if err != nil {
			// Keep the incomplete tail for the next cycle.
			w.partial = append(w.partial, chunk...)
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading log file %s: %w", w.path, err)
		}

		line := string(w.partial) + string(chunk)
		w.partial = w.partial[:0]

		entry, ok := w.parser.Parse(line, w.service)
		if !ok {
			continue
		}
		metrics.LogEntriesTotal.WithLabelValues(entry.Service, entry.Level.String()).Inc()

		select {
		case w.out <- entry:
		case <-ctx.Done():
			return nil
		}
	}
}

// waitForActivity blocks until the poll interval elapses, the directory
// reports an event, or the context is cancelled. It returns false when the
// watcher should exit.
func (w *Watcher) waitForActivity(ctx context.Context, ticker *time.Ticker, notify *fsnotify.Watcher) bool {
	if notify == nil {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			return true
		}
	}

	select {
	case <-ctx.Done():
		return false
	case <-ticker.C:
		return true
	case <-notify.Events:
		return true
	case <-notify.Errors:
		return true
	}
}

// reopenIfTruncated compares the file's reported size against the last
// read position. A smaller size means the file was rotated or truncated:
// the stale handle is discarded and a fresh one opened at position zero.
func (w *Watcher) reopenIfTruncated() (*os.File, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		// The file may be mid-rotation; try again next cycle.
		return nil, nil
	}

	if info.Size() >= w.position {
		return nil, nil
	}

	file, err := os.Open(w.path)
	if err != nil {
		return nil, fmt.Errorf("reopening log file %s: %w", w.path, err)
	}
	w.position = 0
	w.partial = w.partial[:0]
	return file, nil
}
