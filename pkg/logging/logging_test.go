package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"bizhub-backend/pkg/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("WARN", false))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("nonsense", false))
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("error", true))
}

func TestNew(t *testing.T) {
	logger, err := New(&config.Config{Environment: "production", LogLevel: "error"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
}
