package exchange

import (
	"fmt"
	"strings"
)

// Gateway names accepted by the factory
const (
	NameBybit = "bybit"
	NamePaper = "paper"
)

// Config selects and configures a gateway
type Config struct {
	Name  string       `json:"name" yaml:"name"`
	Bybit *BybitConfig `json:"bybit,omitempty" yaml:"bybit,omitempty"`
	Paper *PaperConfig `json:"paper,omitempty" yaml:"paper,omitempty"`
}

// BybitConfig holds Bybit-specific configuration. Credentials come from the environment.
type BybitConfig struct {
	APIKey            string  `json:"-" yaml:"-"`
	APISecret         string  `json:"-" yaml:"-"`
	Testnet           bool    `json:"testnet" yaml:"testnet"`
	Demo              bool    `json:"demo" yaml:"demo"`
	Leverage          int     `json:"leverage" yaml:"leverage"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	FillPollSeconds   int     `json:"fill_poll_seconds" yaml:"fill_poll_seconds"`
}

// PaperConfig configures the in-memory simulator
type PaperConfig struct {
	InitialBalance float64 `json:"initial_balance" yaml:"initial_balance"`
	SlippageBps    float64 `json:"slippage_bps" yaml:"slippage_bps"`
	FeeRate        float64 `json:"fee_rate" yaml:"fee_rate"`
	DataDir        string  `json:"data_dir" yaml:"data_dir"`
}

// SupportedGateways lists the names the factory understands
func SupportedGateways() []string {
	return []string{NameBybit, NamePaper}
}

// Validate checks that the selected gateway has a usable configuration
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Name)) {
	case NameBybit:
		if c.Bybit == nil {
			return fmt.Errorf("bybit configuration is required")
		}
		if c.Bybit.APIKey == "" || c.Bybit.APISecret == "" {
			return ErrAuthenticationFailed.WithDetails("BYBIT_API_KEY and BYBIT_API_SECRET must be set")
		}
		if c.Bybit.Testnet && c.Bybit.Demo {
			return fmt.Errorf("bybit testnet and demo are mutually exclusive")
		}
		if c.Bybit.Leverage < 0 || c.Bybit.Leverage > 100 {
			return fmt.Errorf("bybit leverage must be between 0 and 100, got %d", c.Bybit.Leverage)
		}
	case NamePaper:
		if c.Paper == nil {
			return fmt.Errorf("paper configuration is required")
		}
		if c.Paper.InitialBalance <= 0 {
			return fmt.Errorf("paper initial balance must be positive")
		}
		if c.Paper.SlippageBps < 0 || c.Paper.FeeRate < 0 {
			return fmt.Errorf("paper slippage and fee rate must be non-negative")
		}
	case "":
		return fmt.Errorf("gateway name is required")
	default:
		return fmt.Errorf("gateway %q is not supported (supported: %s)", c.Name, strings.Join(SupportedGateways(), ", "))
	}
	return nil
}
