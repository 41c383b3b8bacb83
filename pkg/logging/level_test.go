package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{"", LevelInfo, false},
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"Info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLevelValidate(t *testing.T) {
	assert.NoError(t, Level("").Validate())
	assert.NoError(t, LevelDebug.Validate())
	assert.NoError(t, Level("warn").Validate())
	assert.Error(t, Level("trace").Validate())
}

func TestLevelToZapCoreLevel(t *testing.T) {
	tests := []struct {
		level    Level
		expected zapcore.Level
	}{
		{LevelDebug, zapcore.DebugLevel},
		{Level(""), zapcore.InfoLevel},
		{LevelInfo, zapcore.InfoLevel},
		{LevelWarn, zapcore.WarnLevel},
		{LevelError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		zl, err := tt.level.toZapCoreLevel()
		require.NoError(t, err)
		assert.Equal(t, tt.expected, zl)
	}

	_, err := Level("trace").toZapCoreLevel()
	assert.Error(t, err)
}

func TestConfigToZapCoreLevel(t *testing.T) {
	c := &Config{Debug: true, Level: LevelError}
	zl, err := c.toZapCoreLevel()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, zl)
}
