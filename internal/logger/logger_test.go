package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewDefaults(t *testing.T) {
	log, err := New(Config{})

	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewInvalidLevelFallsBackToInfo(t *testing.T) {
	log, err := New(Config{Level: "loud", Encoding: "xml"})

	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewDebugConsole(t *testing.T) {
	log, err := New(Config{Level: "DEBUG", Encoding: "console", OutputPath: "stderr"})

	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewFileOutputRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pathread.log")

	log, err := New(Config{Level: "warn", OutputPath: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("kept")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"kept"`)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"level":"WARN"`)
}

func TestNewRotatorHonorsCompress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pathread.log")

	rotator := newRotator(Config{MaxSizeMB: 5, MaxBackups: 2, MaxAgeDays: 7, Compress: true}, path)
	assert.Equal(t, path, rotator.Filename)
	assert.Equal(t, 5, rotator.MaxSize)
	assert.Equal(t, 2, rotator.MaxBackups)
	assert.Equal(t, 7, rotator.MaxAge)
	assert.True(t, rotator.Compress)

	assert.False(t, newRotator(Config{}, path).Compress)
}
