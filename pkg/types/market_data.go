package types

import (
	"fmt"
	"time"
)

// OHLCV is a single candle. Candles are immutable once appended to a series.
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Validate checks the internal consistency of a candle
func (c OHLCV) Validate() error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("prices must be positive")
	}
	if c.High < c.Low {
		return fmt.Errorf("high (%.8f) below low (%.8f)", c.High, c.Low)
	}
	if c.High < c.Open || c.High < c.Close {
		return fmt.Errorf("high (%.8f) below open/close", c.High)
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("low (%.8f) above open/close", c.Low)
	}
	if c.Volume < 0 {
		return fmt.Errorf("negative volume")
	}
	return nil
}

// ValidateSeries checks every candle and enforces strictly increasing timestamps.
func ValidateSeries(candles []OHLCV) error {
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("candle %d: %w", i, err)
		}
		if i > 0 && !c.Timestamp.After(candles[i-1].Timestamp) {
			return fmt.Errorf("candle %d: timestamp %s not after %s",
				i, c.Timestamp.Format(time.RFC3339), candles[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Closes extracts close prices
func Closes(candles []OHLCV) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Last returns the most recent candle. The caller must ensure the series is non-empty.
func Last(candles []OHLCV) OHLCV {
	return candles[len(candles)-1]
}
