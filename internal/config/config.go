package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-risk-engine/internal/indicators"
	"github.com/ducminhle1904/crypto-risk-engine/internal/journal"
	"github.com/ducminhle1904/crypto-risk-engine/internal/logger"
	"github.com/ducminhle1904/crypto-risk-engine/internal/notifications"
	"github.com/ducminhle1904/crypto-risk-engine/internal/recovery"
	"github.com/ducminhle1904/crypto-risk-engine/internal/risk"
	"github.com/ducminhle1904/crypto-risk-engine/internal/safety"
	"github.com/ducminhle1904/crypto-risk-engine/internal/strategy"
)

// Environment variables holding secrets
const (
	EnvBybitAPIKey    = "BYBIT_API_KEY"
	EnvBybitAPISecret = "BYBIT_API_SECRET"
	EnvTelegramToken  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
	EnvDiscordWebhook = "DISCORD_WEBHOOK_URL"
	EnvAMQPURL        = "AMQP_URL"
	EnvJournalDSN     = "JOURNAL_DSN"
	EnvEnvironment    = "ENV"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogConsole     = "LOG_CONSOLE"
)

// Config is the session configuration. It is read once at start-up and not
// modified afterwards.
type Config struct {
	Environment string `yaml:"environment"`

	Instruments    []string               `yaml:"instruments"`
	Interval       exchange.KlineInterval `yaml:"-"`
	IntervalRaw    string                 `yaml:"interval"`
	ScanInterval   time.Duration          `yaml:"scan_interval"`
	CandleCount    int                    `yaml:"candle_count"`
	RequestTimeout time.Duration          `yaml:"request_timeout"`
	EntryTimeout   time.Duration          `yaml:"entry_timeout"`
	EquitySync     time.Duration          `yaml:"equity_sync"`

	Strategy   StrategyConfig    `yaml:"strategy"`
	Indicators indicators.Params `yaml:"indicators"`
	Risk       risk.Limits       `yaml:"risk"`

	Exchange       exchange.Config             `yaml:"exchange"`
	Journal        journal.Config              `yaml:"journal"`
	Notifications  NotificationConfig          `yaml:"notifications"`
	FeatureGate    FeatureGateConfig           `yaml:"feature_gate"`
	Monitoring     MonitoringConfig            `yaml:"monitoring"`
	Logging        logger.Config               `yaml:"logging"`
	Retry          recovery.Policy             `yaml:"retry"`
	CircuitBreaker safety.CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// StrategyConfig selects the signal profile
type StrategyConfig struct {
	Profile      string `yaml:"profile"`
	ProfilesFile string `yaml:"profiles_file"`
	// MinStrength overrides the profile's threshold when positive
	MinStrength float64 `yaml:"min_strength"`
}

// NotificationConfig holds the alert sinks
type NotificationConfig struct {
	Telegram   TelegramConfig                 `yaml:"telegram"`
	Discord    DiscordConfig                  `yaml:"discord"`
	AMQP       AMQPConfig                     `yaml:"amqp"`
	WebSocket  WebSocketConfig                `yaml:"websocket"`
	Dispatcher notifications.DispatcherConfig `yaml:"dispatcher"`
	// Events restricts delivery to the listed types; empty means all
	Events []string `yaml:"events"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"-"`
	ChatID  string `yaml:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"-"`
}

type AMQPConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"-"`
	Queue   string `yaml:"queue"`
}

type WebSocketConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// FeatureGateConfig chooses between a fixed answer and a license file
type FeatureGateConfig struct {
	Mode        string `yaml:"mode"` // static or license
	Automation  bool   `yaml:"automation"`
	LicenseFile string `yaml:"license_file"`
}

type MonitoringConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Addr       string        `yaml:"addr"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

// Load reads the env file (if present), the YAML or JSON config file and
// secrets from the environment, then applies defaults and validates.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, configError("load", "failed to load env file %s: %v", envFile, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configError("load", "failed to read config file %s: %v", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if cfg.Strategy.ProfilesFile != "" && !filepath.IsAbs(cfg.Strategy.ProfilesFile) {
		cfg.Strategy.ProfilesFile = filepath.Join(filepath.Dir(path), cfg.Strategy.ProfilesFile)
	}
	return cfg, nil
}

// Parse decodes config bytes, applies the environment and defaults, and validates
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		Indicators:     indicators.DefaultParams(),
		Risk:           risk.DefaultLimits(),
		Retry:          recovery.DefaultPolicy(),
		Logging:        logger.DefaultConfig(),
		Notifications:  NotificationConfig{Dispatcher: notifications.DefaultDispatcherConfig()},
		CircuitBreaker: safety.CircuitBreakerConfig{FailureThreshold: 5, SuccessThreshold: 1, Timeout: 30 * time.Second},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, configError("parse", "failed to parse config: %v", err)
	}

	cfg.applyEnv()
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills secrets and overrides from the environment
func (c *Config) applyEnv() {
	if c.Exchange.Bybit != nil {
		c.Exchange.Bybit.APIKey = os.Getenv(EnvBybitAPIKey)
		c.Exchange.Bybit.APISecret = os.Getenv(EnvBybitAPISecret)
	}
	c.Notifications.Telegram.Token = os.Getenv(EnvTelegramToken)
	c.Notifications.Telegram.ChatID = getEnv(EnvTelegramChatID, c.Notifications.Telegram.ChatID)
	c.Notifications.Discord.WebhookURL = os.Getenv(EnvDiscordWebhook)
	c.Notifications.AMQP.URL = os.Getenv(EnvAMQPURL)
	c.Journal.DSN = os.Getenv(EnvJournalDSN)
	c.Environment = getEnv(EnvEnvironment, c.Environment)
	c.Logging.Level = getEnv(EnvLogLevel, c.Logging.Level)
	c.Logging.Console = getEnvBool(EnvLogConsole, c.Logging.Console)
}

// setDefaults sets default values for missing configuration
func (c *Config) setDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	for i, s := range c.Instruments {
		c.Instruments[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	if c.IntervalRaw == "" {
		c.IntervalRaw = "15m"
	}
	if c.ScanInterval == 0 {
		c.ScanInterval = time.Minute
	}
	if c.CandleCount == 0 {
		c.CandleCount = c.Indicators.MinCandles() + 10
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.EntryTimeout == 0 {
		c.EntryTimeout = 2 * time.Minute
	}
	if c.EquitySync == 0 {
		c.EquitySync = 5 * time.Minute
	}
	if c.Strategy.Profile == "" {
		c.Strategy.Profile = strategy.ProfileMultiIndicator
	}

	if c.Exchange.Name == "" {
		c.Exchange.Name = exchange.NamePaper
	}
	c.Exchange.Name = strings.ToLower(c.Exchange.Name)
	if c.Exchange.Name == exchange.NamePaper && c.Exchange.Paper == nil {
		c.Exchange.Paper = &exchange.PaperConfig{}
	}
	if p := c.Exchange.Paper; p != nil {
		if p.InitialBalance == 0 {
			p.InitialBalance = 10000
		}
		if p.FeeRate == 0 {
			p.FeeRate = 0.00055
		}
	}

	if c.Journal.Backend == "" {
		c.Journal.Backend = journal.BackendSQLite
		if c.Journal.DSN != "" {
			c.Journal.Backend = journal.BackendPostgres
		}
	}
	if c.FeatureGate.Mode == "" {
		c.FeatureGate.Mode = "static"
	}
	if c.Monitoring.Addr == "" {
		c.Monitoring.Addr = ":8080"
	}
	if c.Monitoring.StaleAfter == 0 {
		c.Monitoring.StaleAfter = 5 * c.ScanInterval
	}
}

// ProfilePath returns the profiles file, if any
func (c *Config) ProfilePath() string {
	return c.Strategy.ProfilesFile
}

// Summary is a one-line description for start-up logs
func (c *Config) Summary() string {
	return fmt.Sprintf("env=%s gateway=%s instruments=%s interval=%s profile=%s",
		c.Environment, c.Exchange.Name, strings.Join(c.Instruments, ","), c.Interval, c.Strategy.Profile)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
