package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/dbsmedya/gofresh/internal/config"
)

func TestNew(t *testing.T) {
	log, err := New(&config.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestNewDefault(t *testing.T) {
	assert.NotNil(t, NewDefault())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseLevel(tt.input), "level %q", tt.input)
	}
}

func TestContextHelpers(t *testing.T) {
	log := NewDefault()

	assert.NotNil(t, log.WithTable("users"))
	assert.NotNil(t, log.WithWave(2))
	assert.NotNil(t, log.WithVendor("postgres"))
	assert.NotNil(t, log.WithFields(map[string]interface{}{"run": "abc"}))
}
