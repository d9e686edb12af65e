package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRestartPolicy(t *testing.T) {
	tests := []struct {
		input string
		want  RestartPolicy
		ok    bool
	}{
		{"", RestartNever, true},
		{"never", RestartNever, true},
		{"no", RestartNever, true},
		{"on-failure", RestartOnFailure, true},
		{"always", RestartAlways, true},
		{"unless-stopped", RestartUnlessStopped, true},
		{"sometimes", RestartNever, false},
	}

	for _, tt := range tests {
		got, ok := ParseRestartPolicy(tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Equal(t, tt.ok, ok, "input %q", tt.input)
	}
}

func TestRestartPolicy_AutoRestarts(t *testing.T) {
	assert.False(t, RestartNever.AutoRestarts())
	assert.True(t, RestartOnFailure.AutoRestarts())
	assert.True(t, RestartAlways.AutoRestarts())
	assert.False(t, RestartUnlessStopped.AutoRestarts())
}

func TestProcessState_Predicates(t *testing.T) {
	assert.True(t, ProcessStateRunning.IsRunning())
	assert.False(t, ProcessStateStarting.IsRunning())

	assert.True(t, ProcessStateStopped.IsStopped())
	assert.True(t, ProcessStateFailed.IsStopped())
	assert.False(t, ProcessStateRunning.IsStopped())
	assert.False(t, ProcessStateRestarting.IsStopped())
}

func TestServiceInfo_UptimeSeconds(t *testing.T) {
	assert.EqualValues(t, 0, ServiceInfo{}.UptimeSeconds())

	info := ServiceInfo{StartedAt: time.Now().Add(-90 * time.Second)}
	assert.GreaterOrEqual(t, info.UptimeSeconds(), int64(89))
}
