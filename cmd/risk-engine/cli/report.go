package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-risk-engine/internal/journal"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/data"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/reporting"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarise the trade journal",
	Long: `Report reads trades, the equity curve and risk events from the configured
journal and prints a performance summary. Trades can be exported as CSV and
the whole report as an Excel workbook.

Examples:
  risk-engine report --since 7d
  risk-engine report --since 2024-03-01 --trades --excel
  risk-engine report --db results/replay_20240301_120000.db --xlsx out.xlsx`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

var (
	rptSince  string
	rptDBPath string
	rptTrades bool
	rptExcel  bool
	rptXLSX   string
	rptCSV    string
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&rptSince, "since", "", "start of the report: a date or a trailing period such as 7d")
	reportCmd.Flags().StringVarP(&rptDBPath, "db", "d", "", "read this SQLite journal instead of the configured one")
	reportCmd.Flags().BoolVar(&rptTrades, "trades", false, "print every trade")
	reportCmd.Flags().BoolVar(&rptExcel, "excel", false, "write an Excel report under results/")
	reportCmd.Flags().StringVar(&rptXLSX, "xlsx", "", "write an Excel report to this path")
	reportCmd.Flags().StringVar(&rptCSV, "csv", "", "write the trade list as CSV to this path")
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	now := time.Now().UTC()

	since, err := parseSince(rptSince, now)
	if err != nil {
		return err
	}

	var jcfg journal.Config
	if rptDBPath != "" {
		if _, err := os.Stat(rptDBPath); err != nil {
			return fmt.Errorf("journal %s: %w", rptDBPath, err)
		}
		jcfg = journal.Config{Backend: journal.BackendSQLite, Path: rptDBPath}
	} else {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		jcfg = cfg.Journal
	}

	j, err := journal.Open(ctx, jcfg)
	if err != nil {
		return err
	}
	defer j.Close()

	report, err := loadReport(ctx, j, "RISK ENGINE REPORT", since)
	if err != nil {
		return err
	}
	report.To = now

	xlsx := rptXLSX
	if xlsx == "" && rptExcel {
		xlsx = reporting.DefaultOutputPath("report", now, "xlsx")
	}
	return renderReport(os.Stdout, report, rptTrades, xlsx, rptCSV)
}

// parseSince accepts a date, an RFC3339 time or a trailing period
func parseSince(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if period, ok := data.ParseTrailingPeriod(s); ok {
		return now.Add(-period), nil
	}
	t, err := parseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad --since %q: expected a date or a period like 7d", s)
	}
	return t, nil
}

func loadReport(ctx context.Context, j journal.Journal, title string, since time.Time) (reporting.Report, error) {
	trades, err := j.Trades(ctx, since)
	if err != nil {
		return reporting.Report{}, fmt.Errorf("load trades: %w", err)
	}
	equity, err := j.EquityCurve(ctx, since)
	if err != nil {
		return reporting.Report{}, fmt.Errorf("load equity curve: %w", err)
	}
	events, err := j.RiskEvents(ctx, since)
	if err != nil {
		return reporting.Report{}, fmt.Errorf("load risk events: %w", err)
	}
	return reporting.NewReport(title, since, time.Time{}, trades, equity, events), nil
}

func renderReport(w io.Writer, r reporting.Report, trades bool, xlsx, csvPath string) error {
	reporting.PrintSummary(w, r)
	if trades && len(r.Trades) > 0 {
		reporting.PrintTrades(w, r)
	}
	if len(r.RiskEvents) > 0 {
		reporting.PrintRiskEvents(w, r)
	}

	if xlsx != "" {
		if err := reporting.WriteXLSX(r, xlsx); err != nil {
			return fmt.Errorf("excel report: %w", err)
		}
		fmt.Fprintf(w, "📊 Excel report saved to %s\n", xlsx)
	}
	if csvPath != "" {
		if err := reporting.WriteTradesCSV(r, csvPath); err != nil {
			return fmt.Errorf("csv export: %w", err)
		}
		fmt.Fprintf(w, "💾 Trades saved to %s\n", csvPath)
	}
	return nil
}
