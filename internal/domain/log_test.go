package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
		ok    bool
	}{
		{"trace", LevelTrace, true},
		{"DEBUG", LevelDebug, true},
		{"Info", LevelInfo, true},
		{"warn", LevelWarn, true},
		{"WARNING", LevelWarn, true},
		{"error", LevelError, true},
		{"  error  ", LevelError, true},
		{"fatal", LevelInfo, false},
		{"", LevelInfo, false},
	}

	for _, tt := range tests {
		got, ok := ParseLevel(tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Equal(t, tt.ok, ok, "input %q", tt.input)
	}
}

func TestLogLevel_Ordering(t *testing.T) {
	assert.True(t, LevelTrace < LevelDebug)
	assert.True(t, LevelDebug < LevelInfo)
	assert.True(t, LevelInfo < LevelWarn)
	assert.True(t, LevelWarn < LevelError)
}

func TestLogLevel_JSON(t *testing.T) {
	data, err := json.Marshal(LevelWarn)
	require.NoError(t, err)
	assert.Equal(t, `"WARN"`, string(data))

	var level LogLevel
	require.NoError(t, json.Unmarshal([]byte(`"ERROR"`), &level))
	assert.Equal(t, LevelError, level)

	// Unknown names fall back to INFO rather than failing the decode
	require.NoError(t, json.Unmarshal([]byte(`"VERBOSE"`), &level))
	assert.Equal(t, LevelInfo, level)
}

func TestDefaultStreamConfig(t *testing.T) {
	cfg := DefaultStreamConfig()
	assert.Equal(t, 100, cfg.Lines)
	assert.Equal(t, FormatPretty, cfg.Format)
	assert.False(t, cfg.Follow)
	assert.Nil(t, cfg.MinLevel)
}
