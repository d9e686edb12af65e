// Package logs implements the log pipeline: a line parser, per-file
// watchers that tail service log files, and a streamer that aggregates,
// filters, and renders the resulting records.
package logs

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/devfleet/devfleet/internal/domain"
)

var (
	levelRe     = regexp.MustCompile(`(?i)\b(TRACE|DEBUG|INFO|WARN|WARNING|ERROR)\b`)
	timestampRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}`)
)

// textTimestampLayouts are tried in order against a timestamp substring
// found in a plain-text line.
var textTimestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Parser turns raw log lines into structured entries. It is stateless and
// safe for concurrent use.
type Parser struct{}

// NewParser creates a new Parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse extracts a structured entry from one raw line. Extraction is
// best-effort and never fails: the worst case is an entry whose message is
// the raw line with the current time and INFO level. Empty and
// whitespace-only lines report ok=false and produce nothing.
func (p *Parser) Parse(line, service string) (domain.LogEntry, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return domain.LogEntry{}, false
	}

	if strings.HasPrefix(trimmed, "{") {
		if entry, ok := p.parseJSON(trimmed, service); ok {
			return entry, true
		}
	}

	return p.parseText(trimmed, service), true
}

// parseJSON handles lines that are JSON objects. Well-known keys are
// extracted; every remaining key becomes a field.
func (p *Parser) parseJSON(line, service string) (domain.LogEntry, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return domain.LogEntry{}, false
	}

	timestamp := time.Now().UTC()
	if s, ok := takeString(obj, "timestamp", "time", "ts"); ok {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			timestamp = ts.UTC()
		}
	}

	level := domain.LevelInfo
	if s, ok := takeString(obj, "level", "severity"); ok {
		level, _ = domain.ParseLevel(s)
	}

	message := line
	if s, ok := takeString(obj, "message", "msg"); ok {
		message = s
	}

	var fields map[string]any
	if len(obj) > 0 {
		fields = obj
	}

	return domain.LogEntry{
		Timestamp: timestamp,
		Service:   service,
		Level:     level,
		Message:   message,
		Fields:    fields,
		Raw:       line,
	}, true
}

// parseText handles free-form lines by scanning for a timestamp substring
// and a level keyword anywhere in the line.
func (p *Parser) parseText(line, service string) domain.LogEntry {
	timestamp := time.Now().UTC()
	if m := timestampRe.FindString(line); m != "" {
		for _, layout := range textTimestampLayouts {
			if ts, err := time.Parse(layout, m); err == nil {
				timestamp = ts.UTC()
				break
			}
		}
	}

	level := domain.LevelInfo
	if m := levelRe.FindString(line); m != "" {
		level, _ = domain.ParseLevel(m)
	}

	return domain.LogEntry{
		Timestamp: timestamp,
		Service:   service,
		Level:     level,
		Message:   line,
		Raw:       line,
	}
}

// takeString removes the first present key from obj and returns its value
// if it is a string. A present key with a non-string value is left in obj
// so it survives as an ordinary field.
func takeString(obj map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := obj[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return "", false
		}
		delete(obj, key)
		return s, true
	}
	return "", false
}
