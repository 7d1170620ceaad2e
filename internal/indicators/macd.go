package indicators

import "fmt"

// MACDResult holds the latest MACD values
type MACDResult struct {
	Line          float64
	Signal        float64
	Histogram     float64
	PrevHistogram float64
}

// Rising reports whether the histogram increased on the latest candle
func (m MACDResult) Rising() bool {
	return m.Histogram > m.PrevHistogram
}

// MACD computes line = EMA(fast) - EMA(slow), signal = EMA(line, signal)
// and the histogram. It needs slow+signal values so that the previous
// histogram is also available.
func MACD(values []float64, fast, slow, signal int) (MACDResult, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return MACDResult{}, fmt.Errorf("invalid MACD periods %d/%d/%d", fast, slow, signal)
	}
	if fast >= slow {
		return MACDResult{}, fmt.Errorf("MACD fast period %d must be below slow period %d", fast, slow)
	}
	need := slow + signal
	if len(values) < need {
		return MACDResult{}, insufficient("MACD", need, len(values))
	}

	fastSeries, err := EMASeries(values, fast)
	if err != nil {
		return MACDResult{}, err
	}
	slowSeries, err := EMASeries(values, slow)
	if err != nil {
		return MACDResult{}, err
	}

	offset := slow - fast
	line := make([]float64, len(slowSeries))
	for i := range slowSeries {
		line[i] = fastSeries[i+offset] - slowSeries[i]
	}

	signalSeries, err := EMASeries(line, signal)
	if err != nil {
		return MACDResult{}, err
	}

	last := len(line) - 1
	lastSig := len(signalSeries) - 1
	return MACDResult{
		Line:          line[last],
		Signal:        signalSeries[lastSig],
		Histogram:     line[last] - signalSeries[lastSig],
		PrevHistogram: line[last-1] - signalSeries[lastSig-1],
	}, nil
}
