package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	cfg := Config{Level: "info", FilePath: path, WriteToStderr: false}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)

	logger.Info("test_event", slog.String("key", "value"))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"test_event"`)
	assert.Contains(t, string(data), `"key":"value"`)
}

func TestSetup_LevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	cfg := Config{Level: "warn", FilePath: path, WriteToStderr: false}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)

	logger.Info("suppressed")
	logger.Warn("emitted")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "suppressed")
	assert.Contains(t, string(data), "emitted")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelFromString("debug"))
	assert.Equal(t, slog.LevelWarn, LevelFromString("WARNING"))
	assert.Equal(t, slog.LevelError, LevelFromString("error"))
	assert.Equal(t, slog.LevelInfo, LevelFromString("bogus"))
}

func TestDebugConfig(t *testing.T) {
	cfg := DebugConfig()
	assert.Equal(t, "debug", cfg.Level)
	assert.True(t, cfg.WriteToStderr)
}
