package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devfleet/devfleet/internal/domain"
	"github.com/devfleet/devfleet/internal/logs"
)

func TestMonitor_UnexpectedExit(t *testing.T) {
	sup := newTestSupervisor(t)

	require.NoError(t, sup.Start(domain.ServiceConfig{
		Name:    "flaky",
		Command: "sh",
		Args:    []string{"-c", "exit 3"},
	}))

	require.Eventually(t, func() bool {
		info, err := sup.Status("flaky")
		return err == nil && info.State == domain.ProcessStateFailed
	}, 5*time.Second, 20*time.Millisecond)

	info, err := sup.Status("flaky")
	require.NoError(t, err)
	assert.Contains(t, info.StateReason, "rc=3")
}

func TestMonitor_CleanExitStillFails(t *testing.T) {
	sup := newTestSupervisor(t)

	// A service exiting on its own is a failure even with rc=0: services
	// are expected to run until stopped.
	require.NoError(t, sup.Start(domain.ServiceConfig{
		Name:    "oneshot",
		Command: "true",
	}))

	require.Eventually(t, func() bool {
		info, err := sup.Status("oneshot")
		return err == nil && info.State == domain.ProcessStateFailed
	}, 5*time.Second, 20*time.Millisecond)

	info, _ := sup.Status("oneshot")
	assert.Contains(t, info.StateReason, "rc=0")
}

func TestPipedOutputEntersStream(t *testing.T) {
	streamer := logs.NewStreamer()
	t.Cleanup(streamer.Close)
	sup := New(nil, streamer, Config{
		GracePeriod: time.Second,
		SettleDelay: 10 * time.Millisecond,
	})
	t.Cleanup(sup.Close)

	require.NoError(t, sup.Start(domain.ServiceConfig{
		Name:    "echoer",
		Command: "sh",
		Args:    []string{"-c", "echo 'INFO hello from child'; sleep 30"},
	}))

	var buf strings.Builder
	cfg := domain.StreamConfig{Lines: 50, Service: "echoer", Format: domain.FormatRaw}
	require.NoError(t, streamer.Stream(context.Background(), cfg, &buf))

	assert.Contains(t, buf.String(), "INFO hello from child")
}

func TestLogFileOutput(t *testing.T) {
	sup := newTestSupervisor(t)

	logFile := filepath.Join(t.TempDir(), "writer.log")
	require.NoError(t, sup.Start(domain.ServiceConfig{
		Name:    "writer",
		Command: "sh",
		Args:    []string{"-c", "echo 'a line for the file'; sleep 30"},
		LogFile: logFile,
	}))

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(logFile)
		return err == nil && strings.Contains(string(data), "a line for the file")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, sup.Stop("writer", false))
}

func TestServiceProcess_InfoSnapshot(t *testing.T) {
	sup := newTestSupervisor(t)

	require.NoError(t, sup.Start(sleepConfig("snap")))

	info, err := sup.Status("snap")
	require.NoError(t, err)
	assert.Equal(t, "snap", info.Name)
	assert.Equal(t, "sleep", info.Command)
	assert.False(t, info.StartedAt.IsZero())
	assert.GreaterOrEqual(t, info.UptimeSeconds(), int64(0))
	assert.Zero(t, info.Restarts)
}

func TestExitCodeFromError(t *testing.T) {
	assert.Equal(t, 0, exitCodeFromError(nil))
	assert.Equal(t, 1, exitCodeFromError(assert.AnError))
}
