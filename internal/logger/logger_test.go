package logger

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithSink(Config{Level: "info", Format: "json"}, zapcore.AddSync(&buf))

	log.Info("stage finished", zap.String("stage", "load"))
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "stage finished", entry["msg"])
	assert.Equal(t, "load", entry["stage"])
	assert.Contains(t, entry, "timestamp")
	assert.Contains(t, entry, "caller")
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithSink(Config{Level: "debug", Format: "console"}, zapcore.AddSync(&buf))

	log.Debug("resolving kernels")
	require.NoError(t, log.Sync())

	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "resolving kernels")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithSink(Config{Level: "warn", Format: "json"}, zapcore.AddSync(&buf))

	log.Info("hidden")
	log.Warn("shown")
	require.NoError(t, log.Sync())

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithSink(Config{Level: "chatty"}, zapcore.AddSync(&buf))

	log.Debug("hidden")
	log.Info("shown")
	require.NoError(t, log.Sync())

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
