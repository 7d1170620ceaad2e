package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange/adapters"
	"github.com/ducminhle1904/crypto-risk-engine/internal/journal"
	"github.com/ducminhle1904/crypto-risk-engine/internal/logger"
	"github.com/ducminhle1904/crypto-risk-engine/internal/monitoring"
	"github.com/ducminhle1904/crypto-risk-engine/internal/orchestrator"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine against the configured gateway",
	Long: `Run starts one decision loop per configured instrument and keeps running
until interrupted (Ctrl+C or SIGTERM). A cycle in progress is finished
before the process exits.

Signals:
  SIGUSR1 - trigger the emergency stop and flatten every position
  SIGUSR2 - clear the emergency stop

Examples:
  risk-engine run
  risk-engine run -c configs/risk-engine.yaml --env .env.production`,
	Args: cobra.NoArgs,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runEngine(cmd *cobra.Command, _ []string) error {
	cfg, profile, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Close()
	log.Status("🚀 Risk engine %s starting: %s", ProjectVersion, cfg.Summary())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := adapters.NewGateway(cfg.Exchange, log)
	if err != nil {
		log.LogError("gateway", err)
		return err
	}
	defer gw.Close()

	j, err := journal.Open(ctx, cfg.Journal)
	if err != nil {
		log.LogError("journal", err)
		return err
	}
	defer j.Close()

	alerts := buildAlerts(ctx, cfg, log)
	defer alerts.Close()

	features, err := buildFeatureGate(ctx, cfg, log)
	if err != nil {
		return err
	}

	health := monitoring.NewHealthChecker(cfg.Monitoring.StaleAfter)
	engine, err := orchestrator.New(ctx, orchestrator.OptionsFromConfig(cfg, profile), orchestrator.Deps{
		Gateway:     gw,
		Journal:     j,
		Notifier:    alerts.notifier,
		FeatureGate: features,
		Health:      health,
		Log:         log,
	})
	if err != nil {
		log.LogError("engine", err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Monitoring.Enabled {
		extra := map[string]http.Handler{}
		if alerts.hub != nil {
			extra["/ws"] = alerts.hub
			g.Go(func() error {
				alerts.hub.Run(gctx)
				return nil
			})
		}
		srv := monitoring.NewServer(cfg.Monitoring.Addr, health, extra, log)
		g.Go(func() error { return srv.Run(gctx) })
	}
	g.Go(func() error {
		watchOperatorSignals(gctx, engine, log)
		return nil
	})
	g.Go(func() error { return engine.Run(gctx) })

	err = g.Wait()
	acct := engine.Ledger().Snapshot()
	log.Status("🛑 Risk engine stopped: equity %.2f, P&L today %.2f, %d open positions",
		acct.Equity, acct.RealizedPnLToday, acct.OpenPositions)
	return err
}

// watchOperatorSignals maps SIGUSR1/SIGUSR2 to the emergency stop
func watchOperatorSignals(ctx context.Context, engine *orchestrator.Engine, log *logger.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			switch sig {
			case syscall.SIGUSR1:
				if !engine.TriggerEmergencyStop(ctx, "operator signal") {
					log.Info("emergency stop already active")
				}
			case syscall.SIGUSR2:
				if !engine.ClearEmergencyStop() {
					log.Info("emergency stop was not active")
				}
			}
		}
	}
}
