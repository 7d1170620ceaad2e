package reporting

import (
	"math"

	"github.com/xuri/excelize/v2"
)

const (
	tradesSheet  = "Trades"
	summarySheet = "Summary"
	equitySheet  = "Equity"
	eventsSheet  = "Risk Events"
)

// WriteXLSX writes the trades, summary, equity and risk event sheets
func WriteXLSX(r Report, path string) error {
	if err := EnsureDirectoryExists(path); err != nil {
		return err
	}

	fx := excelize.NewFile()
	defer fx.Close()

	// Replace default sheet and create additional sheets
	fx.SetSheetName(fx.GetSheetName(0), summarySheet)
	for _, name := range []string{tradesSheet, equitySheet, eventsSheet} {
		if _, err := fx.NewSheet(name); err != nil {
			return err
		}
	}

	styles, err := createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := writeSummarySheet(fx, r, styles); err != nil {
		return err
	}
	if err := writeTradesSheet(fx, r, styles); err != nil {
		return err
	}
	if err := writeEquitySheet(fx, r, styles); err != nil {
		return err
	}
	if err := writeEventsSheet(fx, r, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func lightBorder() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}
}

func createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	// Header style - Dark slate background with white text
	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    lightBorder(),
	})
	if err != nil {
		return styles, err
	}

	// values are already in percent, so a plain two-decimal format
	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    2,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    lightBorder(),
	})
	if err != nil {
		return styles, err
	}

	styles.BaseStyle, err = fx.NewStyle(&excelize.Style{Border: lightBorder()})
	if err != nil {
		return styles, err
	}

	styles.ProfitStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Font:      &excelize.Font{Color: "008000"},
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    lightBorder(),
	})
	if err != nil {
		return styles, err
	}

	styles.LossStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Font:      &excelize.Font{Color: "FF0000"},
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    lightBorder(),
	})
	return styles, err
}

func writeHeader(fx *excelize.File, sheet string, headers []string, styles ExcelStyles) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", last, styles.HeaderStyle); err != nil {
		return err
	}
	return fx.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeRow(fx *excelize.File, sheet string, row int, values []interface{}, cellStyles []int) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		if i < len(cellStyles) && cellStyles[i] != 0 {
			if err := fx.SetCellStyle(sheet, cell, cell, cellStyles[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSummarySheet(fx *excelize.File, r Report, styles ExcelStyles) error {
	p := r.Performance
	if err := writeHeader(fx, summarySheet, []string{"Metric", "Value"}, styles); err != nil {
		return err
	}

	profitFactor := interface{}(p.ProfitFactor)
	if math.IsInf(p.ProfitFactor, 1) {
		profitFactor = "∞"
	}

	rows := []struct {
		label string
		value interface{}
		style int
	}{
		{"Trades", p.Trades, styles.BaseStyle},
		{"Wins", p.Wins, styles.BaseStyle},
		{"Losses", p.Losses, styles.BaseStyle},
		{"Win Rate %", p.WinRate, styles.PercentStyle},
		{"Total PnL", p.TotalPnL, pnlStyle(p.TotalPnL, styles)},
		{"Gross Profit", p.GrossProfit, styles.CurrencyStyle},
		{"Gross Loss", p.GrossLoss, styles.CurrencyStyle},
		{"Profit Factor", profitFactor, styles.BaseStyle},
		{"Average Win", p.AvgWin, styles.CurrencyStyle},
		{"Average Loss", p.AvgLoss, styles.CurrencyStyle},
		{"Largest Win", p.LargestWin, styles.CurrencyStyle},
		{"Largest Loss", p.LargestLoss, styles.CurrencyStyle},
		{"Fees", p.TotalFees, styles.CurrencyStyle},
		{"Max Drawdown", p.MaxDrawdown, styles.CurrencyStyle},
		{"Max Drawdown %", p.MaxDrawdownPercent, styles.PercentStyle},
		{"Risk Events", len(r.RiskEvents), styles.BaseStyle},
	}
	for i, row := range rows {
		if err := writeRow(fx, summarySheet, i+2, []interface{}{row.label, row.value}, []int{styles.BaseStyle, row.style}); err != nil {
			return err
		}
	}
	return fx.SetColWidth(summarySheet, "A", "B", 20)
}

func writeTradesSheet(fx *excelize.File, r Report, styles ExcelStyles) error {
	headers := []string{"ID", "Symbol", "Side", "Opened", "Closed", "Entry", "Exit", "Size", "PnL", "Fees", "Exit Reason", "Strategy"}
	if err := writeHeader(fx, tradesSheet, headers, styles); err != nil {
		return err
	}
	for i, t := range r.Trades {
		values := []interface{}{
			t.ID, t.Symbol, t.Side,
			t.OpenedAt.Format("2006-01-02 15:04:05"), t.ClosedAt.Format("2006-01-02 15:04:05"),
			t.EntryPrice, t.ExitPrice, t.Size, t.PnL, t.Fees, t.ExitReason, t.Strategy,
		}
		cellStyles := []int{
			styles.BaseStyle, styles.BaseStyle, styles.BaseStyle, styles.BaseStyle, styles.BaseStyle,
			styles.BaseStyle, styles.BaseStyle, styles.BaseStyle, pnlStyle(t.PnL, styles), styles.CurrencyStyle,
			styles.BaseStyle, styles.BaseStyle,
		}
		if err := writeRow(fx, tradesSheet, i+2, values, cellStyles); err != nil {
			return err
		}
	}
	if err := fx.SetColWidth(tradesSheet, "A", "A", 28); err != nil {
		return err
	}
	return fx.SetColWidth(tradesSheet, "D", "E", 20)
}

func writeEquitySheet(fx *excelize.File, r Report, styles ExcelStyles) error {
	if err := writeHeader(fx, equitySheet, []string{"Time", "Equity", "Realized Today", "Drawdown %", "Open Positions"}, styles); err != nil {
		return err
	}
	for i, e := range r.Equity {
		values := []interface{}{e.Time.Format("2006-01-02 15:04:05"), e.Equity, e.RealizedPnLToday, e.DrawdownPercent, e.OpenPositions}
		cellStyles := []int{styles.BaseStyle, styles.CurrencyStyle, pnlStyle(e.RealizedPnLToday, styles), styles.PercentStyle, styles.BaseStyle}
		if err := writeRow(fx, equitySheet, i+2, values, cellStyles); err != nil {
			return err
		}
	}
	return fx.SetColWidth(equitySheet, "A", "A", 20)
}

func writeEventsSheet(fx *excelize.File, r Report, styles ExcelStyles) error {
	if err := writeHeader(fx, eventsSheet, []string{"Time", "Symbol", "Kind", "Rule", "Reason"}, styles); err != nil {
		return err
	}
	for i, e := range r.RiskEvents {
		values := []interface{}{e.Time.Format("2006-01-02 15:04:05"), e.Symbol, e.Kind, e.Rule, e.Reason}
		if err := writeRow(fx, eventsSheet, i+2, values, nil); err != nil {
			return err
		}
	}
	return fx.SetColWidth(eventsSheet, "E", "E", 60)
}

func pnlStyle(v float64, styles ExcelStyles) int {
	if v < 0 {
		return styles.LossStyle
	}
	return styles.ProfitStyle
}
