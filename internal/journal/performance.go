package journal

import "math"

// Performance summarises a set of closed trades and the equity curve
type Performance struct {
	Trades       int
	Wins         int
	Losses       int
	WinRate      float64 // percent
	GrossProfit  float64
	GrossLoss    float64 // positive
	ProfitFactor float64 // +Inf when there are wins and no losses
	TotalPnL     float64
	TotalFees    float64
	AvgWin       float64
	AvgLoss      float64
	LargestWin   float64
	LargestLoss  float64

	MaxDrawdown        float64
	MaxDrawdownPercent float64
}

// ComputePerformance derives trade statistics. Drawdown comes from the equity
// curve when one is given, otherwise from cumulative trade P&L.
func ComputePerformance(trades []TradeRecord, equity []EquityPoint) Performance {
	var p Performance
	p.Trades = len(trades)

	for _, t := range trades {
		p.TotalPnL += t.PnL
		p.TotalFees += t.Fees
		switch {
		case t.PnL > 0:
			p.Wins++
			p.GrossProfit += t.PnL
			p.LargestWin = math.Max(p.LargestWin, t.PnL)
		case t.PnL < 0:
			p.Losses++
			p.GrossLoss -= t.PnL
			p.LargestLoss = math.Min(p.LargestLoss, t.PnL)
		}
	}

	if p.Trades > 0 {
		p.WinRate = float64(p.Wins) / float64(p.Trades) * 100
	}
	if p.Wins > 0 {
		p.AvgWin = p.GrossProfit / float64(p.Wins)
	}
	if p.Losses > 0 {
		p.AvgLoss = -p.GrossLoss / float64(p.Losses)
	}
	switch {
	case p.GrossLoss > 0:
		p.ProfitFactor = p.GrossProfit / p.GrossLoss
	case p.GrossProfit > 0:
		p.ProfitFactor = math.Inf(1)
	}

	if len(equity) > 0 {
		p.MaxDrawdown, p.MaxDrawdownPercent = drawdown(equityValues(equity))
	} else {
		curve := make([]float64, 0, len(trades)+1)
		cum := 0.0
		curve = append(curve, cum)
		for _, t := range trades {
			cum += t.PnL
			curve = append(curve, cum)
		}
		p.MaxDrawdown, _ = drawdown(curve)
	}
	return p
}

func equityValues(points []EquityPoint) []float64 {
	out := make([]float64, len(points))
	for i, e := range points {
		out[i] = e.Equity
	}
	return out
}

// drawdown returns the largest peak-to-trough decline and that decline as a
// percent of its peak (zero when the peak is not positive)
func drawdown(curve []float64) (float64, float64) {
	if len(curve) == 0 {
		return 0, 0
	}
	peak := curve[0]
	maxDD, maxPct := 0.0, 0.0
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		dd := peak - v
		if dd > maxDD {
			maxDD = dd
		}
		if peak > 0 {
			maxPct = math.Max(maxPct, dd/peak*100)
		}
	}
	return maxDD, maxPct
}
