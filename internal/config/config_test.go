package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-risk-engine/internal/errors"
	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-risk-engine/internal/journal"
	"github.com/ducminhle1904/crypto-risk-engine/internal/strategy"
)

const minimal = `
instruments: [btcusdt, ETHUSDT]
exchange:
  name: paper
`

func clearEnv(t *testing.T) {
	for _, key := range []string{
		EnvBybitAPIKey, EnvBybitAPISecret, EnvTelegramToken, EnvTelegramChatID,
		EnvDiscordWebhook, EnvAMQPURL, EnvJournalDSN, EnvEnvironment, EnvLogLevel, EnvLogConsole,
	} {
		t.Setenv(key, "")
	}
}

// TestParse_Defaults tests defaults applied to a minimal file
func TestParse_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Instruments)
	assert.Equal(t, exchange.Interval15m, cfg.Interval)
	assert.Equal(t, time.Minute, cfg.ScanInterval)
	assert.Equal(t, cfg.Indicators.MinCandles()+10, cfg.CandleCount)
	assert.Equal(t, strategy.ProfileMultiIndicator, cfg.Strategy.Profile)
	assert.Equal(t, 10000.0, cfg.Exchange.Paper.InitialBalance)
	assert.Equal(t, journal.BackendSQLite, cfg.Journal.Backend)
	assert.Equal(t, "static", cfg.FeatureGate.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Monitoring.StaleAfter)
	assert.Equal(t, 2.0, cfg.Risk.MaxDailyLossPercent)
	assert.Contains(t, cfg.Summary(), "instruments=BTCUSDT,ETHUSDT")
}

// TestParse_EnvSecrets tests that secrets come from the environment only
func TestParse_EnvSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBybitAPIKey, "key")
	t.Setenv(EnvBybitAPISecret, "secret")
	t.Setenv(EnvTelegramToken, "token")
	t.Setenv(EnvTelegramChatID, "42")
	t.Setenv(EnvJournalDSN, "postgres://localhost/journal")

	cfg, err := Parse([]byte(`
instruments: [BTCUSDT]
exchange:
  name: bybit
  bybit:
    demo: true
notifications:
  telegram:
    enabled: true
`))
	require.NoError(t, err)
	assert.Equal(t, "key", cfg.Exchange.Bybit.APIKey)
	assert.Equal(t, "secret", cfg.Exchange.Bybit.APISecret)
	assert.Equal(t, "token", cfg.Notifications.Telegram.Token)
	assert.Equal(t, "42", cfg.Notifications.Telegram.ChatID)
	assert.Equal(t, journal.BackendPostgres, cfg.Journal.Backend)
}

// TestValidate_Errors tests rejected configurations
func TestValidate_Errors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no instruments", "exchange: {name: paper}", "at least one instrument"},
		{"bad symbol", "instruments: [BTC-USDT]", "instrument"},
		{"duplicate", "instruments: [BTCUSDT, btcusdt]", "listed twice"},
		{"bad interval", "instruments: [BTCUSDT]\ninterval: 7m", "interval"},
		{"short history", "instruments: [BTCUSDT]\ncandle_count: 20", "candle_count"},
		{"unknown profile", "instruments: [BTCUSDT]\nstrategy: {profile: nope}", "unknown strategy profile"},
		{"bad risk", "instruments: [BTCUSDT]\nrisk: {max_daily_loss_percent: 150}", "risk"},
		{"telegram without token", "instruments: [BTCUSDT]\nnotifications: {telegram: {enabled: true}}", "telegram"},
		{"unknown event", "instruments: [BTCUSDT]\nnotifications: {events: [bogus]}", "unknown notification event"},
		{"license without file", "instruments: [BTCUSDT]\nfeature_gate: {mode: license}", "license_file"},
		{"websocket without monitoring", "instruments: [BTCUSDT]\nnotifications: {websocket: {enabled: true}}", "monitoring"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, errors.HasCategory(err, errors.ErrorCategoryConfiguration))
		})
	}
}

// TestValidate_MissingCredentials tests the credentials category for bybit
func TestValidate_MissingCredentials(t *testing.T) {
	clearEnv(t)
	_, err := Parse([]byte("instruments: [BTCUSDT]\nexchange: {name: bybit, bybit: {demo: true}}"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.ErrorCategoryCredentials))
}

// TestLoad_ProfilesAndEnvFile tests relative profile paths and env file loading
func TestLoad_ProfilesAndEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	custom := strategy.SwingProfile()
	custom.Name = "swing_custom"
	data, err := strategy.MarshalProfiles([]strategy.Profile{custom})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profiles.yaml"), data, 0644))

	cfgPath := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
instruments: [BTCUSDT]
strategy:
  profile: swing_custom
  profiles_file: profiles.yaml
  min_strength: 0.8
`), 0644))
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("LOG_LEVEL=debug\n"), 0644))
	// godotenv never overrides variables that are already set
	require.NoError(t, os.Unsetenv(EnvLogLevel))

	cfg, err := Load(cfgPath, envPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "profiles.yaml"), cfg.ProfilePath())
	assert.Equal(t, "debug", cfg.Logging.Level)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	p, err := reg.Get("swing_custom")
	require.NoError(t, err)
	assert.Equal(t, 0.8, p.MinStrength)
}

// TestLoad_MissingEnvFile tests that an absent env file is not an error
func TestLoad_MissingEnvFile(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(minimal), 0644))

	_, err := Load(cfgPath, filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}
