package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestNew_WritesJSONFile tests that entries land in the rotating file
func TestNew_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Dir: dir, Name: "engine", Level: "info"})
	require.NoError(t, err)

	l.Trade("opened %s at %.2f", "BTCUSDT", 101.5)
	l.LogError("gateway", errors.New("timeout"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(filepath.Join(dir, "engine.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "opened BTCUSDT at 101.50")
	assert.Contains(t, string(data), `"kind":"TRADE"`)
	assert.Contains(t, string(data), `"error":"timeout"`)
	assert.Equal(t, filepath.Join(dir, "engine.log"), l.GetLogPath())
}

// TestNew_InvalidLevel tests level validation
func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Dir: t.TempDir(), Level: "loud"})
	assert.Error(t, err)
}

// TestWith_CarriesFields tests child loggers through an observer core
func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With(zap.String("symbol", "ETHUSDT"))

	l.Warning("spread %d bps", 12)
	l.Debug("tick")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "spread 12 bps", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "ETHUSDT", entries[0].ContextMap()["symbol"])
}

// TestNewNop tests that the nop logger is safe to use and close
func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Info("ignored")
	assert.NoError(t, l.Close())
	assert.Empty(t, l.GetLogPath())
}
