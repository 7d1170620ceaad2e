// Package cli implements the risk-engine command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "risk-engine",
	Short: "Multi-indicator signal and risk-management engine for crypto perpetuals",
	Long: `risk-engine turns candles into trade decisions under hard risk limits.

Each cycle computes indicators, composes a directional signal from the
configured profile, admits or vetoes it through the risk gate and drives the
position lifecycle on the configured gateway (Bybit or paper).

Commands:
  run       - trade live (or on the paper gateway) until interrupted
  replay    - replay historical CSV candles through the paper gateway
  report    - summarise the journal as tables, CSV or Excel
  profiles  - list and inspect strategy profiles
  version   - print build information`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/risk-engine.yaml", "configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "environment file holding secrets")
}
