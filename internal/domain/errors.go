package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrServiceNotFound    = errors.New("service not found")
	ErrServiceNotRunning  = errors.New("service not running")
	ErrInvalidPattern     = errors.New("invalid filter pattern")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrManifestNotFound   = errors.New("manifest file not found")
	ErrCheckNotRegistered = errors.New("health check not registered")
)

// SpawnError reports that a service's executable could not be launched.
// It is fatal to that start attempt; the supervisor records the service
// as failed and surfaces this error to the caller.
type SpawnError struct {
	Service string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning service %s: %v", e.Service, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Error codes for API responses
const (
	ErrCodeServiceNotFound   = "SERVICE_NOT_FOUND"
	ErrCodeServiceNotRunning = "SERVICE_NOT_RUNNING"
	ErrCodeInvalidPattern    = "INVALID_PATTERN"
	ErrCodeSpawnFailed       = "SPAWN_FAILED"
)

// ErrorCode returns the API error code for a domain error
func ErrorCode(err error) string {
	var spawnErr *SpawnError
	switch {
	case errors.Is(err, ErrServiceNotFound):
		return ErrCodeServiceNotFound
	case errors.Is(err, ErrServiceNotRunning):
		return ErrCodeServiceNotRunning
	case errors.Is(err, ErrInvalidPattern):
		return ErrCodeInvalidPattern
	case errors.As(err, &spawnErr):
		return ErrCodeSpawnFailed
	default:
		return "INTERNAL_ERROR"
	}
}
