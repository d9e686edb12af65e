package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// LogLevel is the severity of a log record. Levels are ordered so that a
// minimum-level filter is a plain comparison.
type LogLevel int8

const (
	LevelTrace LogLevel = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the upper-case level name
func (l LogLevel) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// MarshalJSON encodes the level as its name
func (l LogLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// UnmarshalJSON decodes a level name; unknown names fall back to INFO
func (l *LogLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	level, _ := ParseLevel(s)
	*l = level
	return nil
}

// ParseLevel maps a level keyword to a LogLevel, case-insensitively.
// WARNING is accepted as an alias for WARN. Unrecognized input reports
// ok=false and LevelInfo.
func ParseLevel(s string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace, true
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// LogEntry is one structured log record produced by the parser. Entries are
// immutable once produced and flow once through the pipeline from watcher to
// streamer.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Service   string         `json:"service"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	Raw       string         `json:"raw"`
}

// LogFormat selects how a streamed entry is rendered
type LogFormat string

const (
	FormatPretty LogFormat = "pretty"
	FormatJSON   LogFormat = "json"
	FormatRaw    LogFormat = "raw"
)

// StreamConfig holds the parameters of one log streaming request.
//
// All configured filters must pass for an entry to be displayed: the level
// filter compares against MinLevel, the service filter is a substring match
// on the service name, and Pattern is a regular expression matched against
// the message.
type StreamConfig struct {
	Follow   bool
	Lines    int
	MinLevel *LogLevel
	Service  string
	Pattern  string
	Format   LogFormat
}

// DefaultStreamConfig returns the default streaming parameters
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Lines:  100,
		Format: FormatPretty,
	}
}
