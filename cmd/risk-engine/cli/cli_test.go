package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-risk-engine/internal/config"
	"github.com/ducminhle1904/crypto-risk-engine/internal/logger"
	"github.com/ducminhle1904/crypto-risk-engine/internal/notifications"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

func series(n int) []types.OHLCV {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.OHLCV, n)
	for i := range out {
		out[i] = types.OHLCV{Timestamp: start.Add(time.Duration(i) * time.Hour), Close: 100}
	}
	return out
}

// TestWithWarmup tests the history kept ahead of the first traded candle
func TestWithWarmup(t *testing.T) {
	candles := series(100)

	out, visible := withWarmup(candles, time.Time{}, 30)
	assert.Len(t, out, 100)
	assert.Equal(t, 31, visible)

	out, visible = withWarmup(candles, candles[60].Timestamp, 30)
	assert.Equal(t, candles[30].Timestamp, out[0].Timestamp)
	assert.Equal(t, 31, visible)
	assert.Equal(t, candles[60].Timestamp, out[visible-1].Timestamp)

	out, visible = withWarmup(candles, candles[10].Timestamp, 30)
	assert.Len(t, out, 100)
	assert.Equal(t, 11, visible)

	out, visible = withWarmup(series(5), time.Time{}, 30)
	assert.Len(t, out, 5)
	assert.Equal(t, 5, visible)
}

// TestParseSince tests dates, periods and bad input
func TestParseSince(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	since, err := parseSince("", now)
	require.NoError(t, err)
	assert.True(t, since.IsZero())

	since, err = parseSince("7d", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-7*24*time.Hour), since)

	since, err = parseSince("2024-03-01", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), since)

	_, err = parseSince("last week", now)
	assert.Error(t, err)
}

// TestBuildAlerts tests sink selection and the event filter
func TestBuildAlerts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg := &config.Config{}
	a := buildAlerts(ctx, cfg, logger.NewNop())
	assert.IsType(t, notifications.Nop{}, a.notifier)
	assert.Nil(t, a.hub)
	a.Close()

	cfg.Notifications.Discord = config.DiscordConfig{Enabled: true, WebhookURL: "http://127.0.0.1:1/webhook"}
	cfg.Notifications.Events = []string{"emergency_stop"}
	a = buildAlerts(ctx, cfg, logger.NewNop())
	assert.IsType(t, &notifications.Filter{}, a.notifier)
	assert.Nil(t, a.hub, "the dashboard hub needs the monitoring server")
	a.Close()
}

// TestBuildFeatureGate tests the static and license modes
func TestBuildFeatureGate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg := &config.Config{FeatureGate: config.FeatureGateConfig{Mode: "static", Automation: true}}
	gate, err := buildFeatureGate(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	assert.True(t, gate.AutomationPermitted(ctx))

	cfg.FeatureGate = config.FeatureGateConfig{Mode: "license", LicenseFile: filepath.Join(t.TempDir(), "missing.json")}
	gate, err = buildFeatureGate(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	assert.False(t, gate.AutomationPermitted(ctx), "a missing license is the free tier")
}

// TestProfilesCommand tests listing the built-in profiles without a config file
func TestProfilesCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"profiles", "--config", filepath.Join(t.TempDir(), "none.yaml")})
	require.NoError(t, rootCmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "multi_indicator")
	assert.Contains(t, out, "scalping")
	assert.Contains(t, out, "swing")
}

// TestVersionCommand tests the short version output
func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "risk-engine v"+ProjectVersion)
}
