package config

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/ducminhle1904/crypto-risk-engine/internal/errors"
	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-risk-engine/internal/notifications"
	"github.com/ducminhle1904/crypto-risk-engine/internal/safety"
	"github.com/ducminhle1904/crypto-risk-engine/internal/strategy"
)

const component = "config"

// Validate validates the configuration. Every violation is reported as a
// configuration error; the first one found is returned.
func (c *Config) Validate() error {
	if len(c.Instruments) == 0 {
		return configError("validate", "at least one instrument is required")
	}
	seen := make(map[string]bool, len(c.Instruments))
	for _, symbol := range c.Instruments {
		if res := safety.ValidateSymbol(symbol); !res.Valid {
			return configError("validate", "instrument %q: %s", symbol, res.Message)
		}
		if seen[symbol] {
			return configError("validate", "instrument %s listed twice", symbol)
		}
		seen[symbol] = true
	}

	interval, err := exchange.ParseInterval(c.IntervalRaw)
	if err != nil {
		return configError("validate", "%v", err)
	}
	c.Interval = interval

	if c.ScanInterval < 0 || c.RequestTimeout < 0 || c.EntryTimeout < 0 || c.EquitySync < 0 {
		return configError("validate", "durations must not be negative")
	}
	if min := c.Indicators.MinCandles(); c.CandleCount < min {
		return configError("validate", "candle_count %d is below the %d candles the indicators need", c.CandleCount, min)
	}
	if c.CandleCount > 1000 {
		return configError("validate", "candle_count %d exceeds the gateway limit of 1000", c.CandleCount)
	}
	if c.Strategy.MinStrength < 0 || c.Strategy.MinStrength > 1 {
		return configError("validate", "strategy.min_strength must be within [0,1], got %.2f", c.Strategy.MinStrength)
	}
	if _, err := c.Registry(); err != nil {
		return configError("validate", "%v", err)
	}

	if err := c.Risk.Validate(); err != nil {
		return configError("validate", "risk: %v", err)
	}
	if err := c.Exchange.Validate(); err != nil {
		if stderrors.Is(err, exchange.ErrAuthenticationFailed) {
			return errors.NewCredentialsError(component, "validate", err.Error())
		}
		return configError("validate", "exchange: %v", err)
	}

	if err := c.validateNotifications(); err != nil {
		return err
	}

	switch c.FeatureGate.Mode {
	case "static":
	case "license":
		if c.FeatureGate.LicenseFile == "" {
			return configError("validate", "feature_gate.license_file is required in license mode")
		}
	default:
		return configError("validate", "feature_gate.mode must be static or license, got %q", c.FeatureGate.Mode)
	}

	if c.Retry.MaxAttempts < 0 {
		return configError("validate", "retry.max_attempts must not be negative")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	n := c.Notifications
	if n.Telegram.Enabled && (n.Telegram.Token == "" || n.Telegram.ChatID == "") {
		return configError("validate", "telegram enabled but %s or %s is not set", EnvTelegramToken, EnvTelegramChatID)
	}
	if n.Discord.Enabled && n.Discord.WebhookURL == "" {
		return configError("validate", "discord enabled but %s is not set", EnvDiscordWebhook)
	}
	if n.AMQP.Enabled && n.AMQP.URL == "" {
		return configError("validate", "amqp enabled but %s is not set", EnvAMQPURL)
	}
	if n.WebSocket.Enabled && !c.Monitoring.Enabled {
		return configError("validate", "websocket alerts are served by the monitoring server, enable monitoring")
	}
	for _, e := range n.Events {
		if !notifications.KnownEventType(notifications.EventType(strings.ToUpper(e))) {
			return configError("validate", "unknown notification event %q", e)
		}
	}
	return nil
}

// Registry returns the built-in profiles plus those from the profiles file,
// checking that the selected profile exists. A positive MinStrength
// overrides the selected profile's threshold.
func (c *Config) Registry() (*strategy.Registry, error) {
	reg := strategy.NewRegistry()
	if c.Strategy.ProfilesFile != "" {
		if err := reg.Load(c.Strategy.ProfilesFile); err != nil {
			return nil, err
		}
	}
	profile, err := reg.Get(c.Strategy.Profile)
	if err != nil {
		return nil, fmt.Errorf("%w (available: %s)", err, strings.Join(reg.Names(), ", "))
	}
	if c.Strategy.MinStrength > 0 && profile.MinStrength != c.Strategy.MinStrength {
		profile.MinStrength = c.Strategy.MinStrength
		if err := reg.Register(profile); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func configError(operation, format string, args ...interface{}) error {
	return errors.NewConfigurationError(component, operation, fmt.Sprintf(format, args...))
}
