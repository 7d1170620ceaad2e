package indicators

import (
	"math"

	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// TrueRange is the greatest of high-low, |high-prevClose| and |low-prevClose|
func TrueRange(candle types.OHLCV, prevClose float64) float64 {
	return math.Max(candle.High-candle.Low,
		math.Max(math.Abs(candle.High-prevClose), math.Abs(candle.Low-prevClose)))
}

// ATR computes the Average True Range with Wilder's smoothing, seeded with the
// mean of the first period true ranges. It needs period+1 candles.
func ATR(candles []types.OHLCV, period int) (float64, error) {
	if period <= 0 {
		return 0, invalidPeriod("ATR", period)
	}
	if len(candles) < period+1 {
		return 0, insufficient("ATR", period+1, len(candles))
	}

	atr := 0.0
	for i := 1; i <= period; i++ {
		atr += TrueRange(candles[i], candles[i-1].Close)
	}
	atr /= float64(period)

	n := float64(period)
	for i := period + 1; i < len(candles); i++ {
		atr = (atr*(n-1) + TrueRange(candles[i], candles[i-1].Close)) / n
	}
	return atr, nil
}

// VolumeRatio returns the latest volume divided by the mean volume of the
// last period candles. A zero average yields 1.
func VolumeRatio(candles []types.OHLCV, period int) (float64, error) {
	if period <= 0 {
		return 0, invalidPeriod("volume", period)
	}
	if len(candles) < period {
		return 0, insufficient("volume", period, len(candles))
	}

	sum := 0.0
	for _, c := range candles[len(candles)-period:] {
		sum += c.Volume
	}
	avg := sum / float64(period)
	if avg == 0 {
		return 1, nil
	}
	return candles[len(candles)-1].Volume / avg, nil
}
