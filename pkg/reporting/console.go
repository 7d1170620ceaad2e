package reporting

import (
	"fmt"
	"io"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// PrintSummary renders the performance summary
func PrintSummary(w io.Writer, r Report) {
	p := r.Performance

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(r.Title)
	t.SetStyle(table.StyleRounded)

	if !r.From.IsZero() || !r.To.IsZero() {
		t.AppendRows([]table.Row{
			{"📅 Period", fmt.Sprintf("%s → %s", r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))},
		})
		t.AppendSeparator()
	}

	t.AppendRows([]table.Row{
		{"🔄 Trades", p.Trades},
		{"✅ Wins", fmt.Sprintf("%d (%.1f%%)", p.Wins, p.WinRate)},
		{"❌ Losses", p.Losses},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"💰 Total PnL", fmt.Sprintf("$%.2f", p.TotalPnL)},
		{"📈 Gross Profit", fmt.Sprintf("$%.2f", p.GrossProfit)},
		{"📉 Gross Loss", fmt.Sprintf("$%.2f", p.GrossLoss)},
		{"💹 Profit Factor", formatRatio(p.ProfitFactor)},
		{"💸 Fees", fmt.Sprintf("$%.2f", p.TotalFees)},
		{"📉 Max Drawdown", fmt.Sprintf("$%.2f (%.2f%%)", p.MaxDrawdown, p.MaxDrawdownPercent)},
	})
	if len(r.RiskEvents) > 0 {
		t.AppendSeparator()
		t.AppendRow(table.Row{"🚨 Risk Events", len(r.RiskEvents)})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 40, Align: text.AlignLeft},
	})

	t.Render()
}

// PrintTrades renders one row per trade
func PrintTrades(w io.Writer, r Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("TRADES")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Closed", "Symbol", "Side", "Entry", "Exit", "Size", "PnL", "Reason"})

	for _, tr := range r.Trades {
		t.AppendRow(table.Row{
			tr.ClosedAt.Format("2006-01-02 15:04"),
			tr.Symbol,
			tr.Side,
			fmt.Sprintf("%.4f", tr.EntryPrice),
			fmt.Sprintf("%.4f", tr.ExitPrice),
			fmt.Sprintf("%.6f", tr.Size),
			fmt.Sprintf("%+.2f", tr.PnL),
			tr.ExitReason,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", fmt.Sprintf("%+.2f", r.Performance.TotalPnL), ""})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})

	t.Render()
}

// PrintRiskEvents renders vetoes, stops and reconciliations
func PrintRiskEvents(w io.Writer, r Report) {
	if len(r.RiskEvents) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("RISK EVENTS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "Symbol", "Kind", "Rule", "Reason"})
	for _, e := range r.RiskEvents {
		t.AppendRow(table.Row{e.Time.Format("2006-01-02 15:04"), e.Symbol, e.Kind, e.Rule, e.Reason})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, WidthMax: 60},
	})
	t.Render()
}

func formatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "∞"
	}
	return fmt.Sprintf("%.2f", v)
}
