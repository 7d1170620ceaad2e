package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange/adapters"
	"github.com/ducminhle1904/crypto-risk-engine/internal/featuregate"
	"github.com/ducminhle1904/crypto-risk-engine/internal/journal"
	"github.com/ducminhle1904/crypto-risk-engine/internal/logger"
	"github.com/ducminhle1904/crypto-risk-engine/internal/monitoring"
	"github.com/ducminhle1904/crypto-risk-engine/internal/orchestrator"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/data"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay historical candles through the paper gateway",
	Long: `Replay feeds CSV candles for every configured instrument into the paper
gateway and steps the engine once per candle, exactly as run would on live
data. Risk limits, the emergency stop and the daily roll all use candle time.

Data files are looked up as
  <data-root>/<exchange>/<category>/<SYMBOL>/<minutes>/candles.csv
or <data-root>/<SYMBOL>_<minutes>.csv.

Examples:
  risk-engine replay --period 30d
  risk-engine replay --from 2024-01-01 --to 2024-03-01 --xlsx results/replay.xlsx`,
	Args: cobra.NoArgs,
	RunE: runReplay,
}

var (
	rpDataRoot string
	rpExchange string
	rpFrom     string
	rpTo       string
	rpPeriod   string
	rpBalance  float64
	rpDBPath   string
	rpCloseEnd bool
	rpXLSX     string
	rpCSV      string
	rpTrades   bool
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVar(&rpDataRoot, "data-root", "data", "root directory of historical candles")
	replayCmd.Flags().StringVar(&rpExchange, "exchange", "bybit", "exchange sub-directory of the data root")
	replayCmd.Flags().StringVar(&rpFrom, "from", "", "first candle date (YYYY-MM-DD or RFC3339)")
	replayCmd.Flags().StringVar(&rpTo, "to", "", "last candle date (YYYY-MM-DD or RFC3339)")
	replayCmd.Flags().StringVar(&rpPeriod, "period", "", "trailing window such as 7d or 30d (overrides --from)")
	replayCmd.Flags().Float64VarP(&rpBalance, "balance", "b", 0, "starting balance (default from the paper config)")
	replayCmd.Flags().StringVarP(&rpDBPath, "db", "d", "", "journal file (default results/replay_<date>.db)")
	replayCmd.Flags().BoolVar(&rpCloseEnd, "close-end", true, "flatten open positions after the last candle")
	replayCmd.Flags().StringVar(&rpXLSX, "xlsx", "", "write an Excel report to this path")
	replayCmd.Flags().StringVar(&rpCSV, "csv", "", "write the trade list as CSV to this path")
	replayCmd.Flags().BoolVar(&rpTrades, "trades", false, "print every trade")
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfg, profile, err := loadConfig()
	if err != nil {
		return err
	}

	from, err := parseDate(rpFrom)
	if err != nil {
		return fmt.Errorf("bad --from: %w", err)
	}
	to, err := parseDate(rpTo)
	if err != nil {
		return fmt.Errorf("bad --to: %w", err)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return fmt.Errorf("--from must be before --to")
	}

	logCfg := cfg.Logging
	logCfg.Name = "replay"
	log, err := logger.New(logCfg)
	if err != nil {
		return err
	}
	defer log.Close()

	paper := exchange.PaperConfig{InitialBalance: 10000}
	if cfg.Exchange.Paper != nil {
		paper = *cfg.Exchange.Paper
	}
	if rpBalance > 0 {
		paper.InitialBalance = rpBalance
	}
	gw := adapters.NewPaperGateway(paper)
	defer gw.Close()

	var period time.Duration
	if rpPeriod != "" {
		var ok bool
		if period, ok = data.ParseTrailingPeriod(rpPeriod); !ok {
			return fmt.Errorf("bad --period %q", rpPeriod)
		}
	}

	dm := data.NewDataManager(rpDataRoot, rpExchange)
	var first time.Time
	for _, symbol := range cfg.Instruments {
		candles, err := dm.Load(symbol, cfg.IntervalRaw, time.Time{}, to)
		if err != nil {
			return err
		}
		if len(candles) == 0 {
			return fmt.Errorf("no candles for %s in the requested range", symbol)
		}

		startAt := from
		if period > 0 {
			startAt = candles[len(candles)-1].Timestamp.Add(-period)
		}
		series, visible := withWarmup(candles, startAt, cfg.CandleCount)
		gw.Feed(symbol, series, visible)

		opening := series[visible-1].Timestamp
		if first.IsZero() || opening.Before(first) {
			first = opening
		}
		log.Info("📊 %s: %d candles, trading %s → %s", symbol, len(series)-visible+1,
			opening.Format(time.DateOnly), series[len(series)-1].Timestamp.Format(time.DateOnly))
	}

	dbPath := rpDBPath
	if dbPath == "" {
		dbPath = filepath.Join("results", fmt.Sprintf("replay_%s.db", time.Now().Format("20060102_150405")))
	}
	j, err := journal.Open(cmd.Context(), journal.Config{Backend: journal.BackendSQLite, Path: dbPath})
	if err != nil {
		return err
	}
	defer j.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	engine, err := orchestrator.New(ctx, orchestrator.OptionsFromConfig(cfg, profile), orchestrator.Deps{
		Gateway:     gw,
		Journal:     j,
		FeatureGate: featuregate.Static(true),
		Health:      monitoring.NewHealthChecker(0),
		Log:         log,
		Clock:       gw.Now,
	})
	if err != nil {
		return err
	}

	started := time.Now()
	steps := 1
	engine.Step(ctx)
	for ctx.Err() == nil && gw.Advance() {
		engine.Step(ctx)
		steps++
	}
	if rpCloseEnd {
		engine.TriggerEmergencyStop(ctx, "end of replay")
		engine.DrainFills(ctx)
	}
	log.Status("⏱️ Replayed %d cycles in %s", steps, time.Since(started).Round(time.Millisecond))

	report, err := loadReport(ctx, j, fmt.Sprintf("REPLAY %s (%s)", profile.Name, filepath.Base(dbPath)), first)
	if err != nil {
		return err
	}
	report.To = gw.Now()
	return renderReport(os.Stdout, report, rpTrades, rpXLSX, rpCSV)
}

// withWarmup keeps up to warm candles before startAt as history and returns
// how many candles the feed reveals before the first step
func withWarmup(candles []types.OHLCV, startAt time.Time, warm int) ([]types.OHLCV, int) {
	idx := min(warm, len(candles)-1)
	if !startAt.IsZero() {
		idx = sort.Search(len(candles), func(i int) bool { return !candles[i].Timestamp.Before(startAt) })
		idx = min(idx, len(candles)-1)
	}
	lo := max(0, idx-warm)
	return candles[lo:], idx - lo + 1
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
