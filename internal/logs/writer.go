package logs

import (
	"io"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/devfleet/devfleet/internal/constants"
)

// FileConfig describes rotation parameters for service log files.
// Zero values fall back to the package defaults.
type FileConfig struct {
	MaxSizeMB  int  // megabytes before rotation
	MaxBackups int  // number of rotated files to keep
	MaxAgeDays int  // days to keep rotated files
	Compress   bool // gzip rotated files
}

// NewFileWriter returns a rotating writer for the given log file path.
// The supervisor attaches it to a child's stdout/stderr when the service
// is configured to log to disk.
func NewFileWriter(path string, cfg FileConfig) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    valOr(cfg.MaxSizeMB, constants.LogMaxSizeMB),
		MaxBackups: valOr(cfg.MaxBackups, constants.LogMaxBackups),
		MaxAge:     valOr(cfg.MaxAgeDays, constants.LogMaxAgeDays),
		Compress:   cfg.Compress,
	}
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
