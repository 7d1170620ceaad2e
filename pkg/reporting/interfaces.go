// Package reporting renders journal data as console tables, CSV and Excel workbooks.
package reporting

import (
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/internal/journal"
)

// Report is everything a rendering needs
type Report struct {
	Title       string
	From        time.Time
	To          time.Time
	Trades      []journal.TradeRecord
	Equity      []journal.EquityPoint
	RiskEvents  []journal.RiskEvent
	Performance journal.Performance
}

// NewReport computes performance over the given records
func NewReport(title string, from, to time.Time, trades []journal.TradeRecord, equity []journal.EquityPoint, events []journal.RiskEvent) Report {
	return Report{
		Title:       title,
		From:        from,
		To:          to,
		Trades:      trades,
		Equity:      equity,
		RiskEvents:  events,
		Performance: journal.ComputePerformance(trades, equity),
	}
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle   int
	CurrencyStyle int
	PercentStyle  int
	BaseStyle     int
	ProfitStyle   int
	LossStyle     int
}
