package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeServiceNotFound, ErrorCode(ErrServiceNotFound))
	assert.Equal(t, ErrCodeServiceNotFound, ErrorCode(fmt.Errorf("%w: web", ErrServiceNotFound)))
	assert.Equal(t, ErrCodeServiceNotRunning, ErrorCode(ErrServiceNotRunning))
	assert.Equal(t, ErrCodeInvalidPattern, ErrorCode(ErrInvalidPattern))
	assert.Equal(t, ErrCodeSpawnFailed, ErrorCode(&SpawnError{Service: "web", Err: errors.New("no such file")}))
	assert.Equal(t, "INTERNAL_ERROR", ErrorCode(errors.New("boom")))
}

func TestSpawnError_Unwrap(t *testing.T) {
	cause := errors.New("executable file not found")
	err := &SpawnError{Service: "web", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "web")
	assert.Contains(t, err.Error(), "executable file not found")
}
