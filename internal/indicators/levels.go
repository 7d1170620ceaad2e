package indicators

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// Level is a price zone where local extrema cluster
type Level struct {
	Price     float64
	Touches   int
	LastIndex int
	LastTouch time.Time
}

// Levels holds ranked support and resistance zones relative to the last close.
// Both slices are ordered by touch count, then recency.
type Levels struct {
	Support    []Level
	Resistance []Level

	// Nearest support below and resistance above the last close. When no
	// cluster exists on a side the window's extreme low/high is used.
	NearestSupport    float64
	NearestResistance float64
}

// LevelParams configures support/resistance detection
type LevelParams struct {
	Lookback  int     `json:"lookback" yaml:"lookback"`   // candles scanned
	Pivot     int     `json:"pivot" yaml:"pivot"`         // candles on each side a pivot must dominate
	Tolerance float64 `json:"tolerance" yaml:"tolerance"` // cluster band as a fraction of price (0.005 = 0.5%)
}

type touch struct {
	price float64
	index int
}

// SupportResistance clusters pivot highs and lows within the tolerance band
// and ranks the resulting levels by touch count and recency.
func SupportResistance(candles []types.OHLCV, p LevelParams) (Levels, error) {
	if p.Pivot <= 0 {
		return Levels{}, invalidPeriod("pivot", p.Pivot)
	}
	if p.Tolerance <= 0 {
		return Levels{}, fmt.Errorf("invalid level tolerance %.4f", p.Tolerance)
	}
	need := p.Lookback
	if minWindow := 2*p.Pivot + 1; need < minWindow {
		need = minWindow
	}
	if len(candles) < need {
		return Levels{}, insufficient("support/resistance", need, len(candles))
	}

	window := candles[len(candles)-need:]
	var touches []touch
	lowest, highest := window[0].Low, window[0].High
	for i, c := range window {
		lowest = math.Min(lowest, c.Low)
		highest = math.Max(highest, c.High)
		if i < p.Pivot || i >= len(window)-p.Pivot {
			continue
		}
		if isPivotHigh(window, i, p.Pivot) {
			touches = append(touches, touch{price: c.High, index: i})
		}
		if isPivotLow(window, i, p.Pivot) {
			touches = append(touches, touch{price: c.Low, index: i})
		}
	}

	levels := rankLevels(cluster(touches, p.Tolerance, window))

	last := window[len(window)-1].Close
	out := Levels{NearestSupport: lowest, NearestResistance: highest}
	nearestBelow, nearestAbove := math.Inf(-1), math.Inf(1)
	for _, lvl := range levels {
		switch {
		case lvl.Price < last:
			out.Support = append(out.Support, lvl)
			if lvl.Price > nearestBelow {
				nearestBelow = lvl.Price
			}
		case lvl.Price > last:
			out.Resistance = append(out.Resistance, lvl)
			if lvl.Price < nearestAbove {
				nearestAbove = lvl.Price
			}
		}
	}
	if !math.IsInf(nearestBelow, -1) {
		out.NearestSupport = nearestBelow
	}
	if !math.IsInf(nearestAbove, 1) {
		out.NearestResistance = nearestAbove
	}
	return out, nil
}

func isPivotHigh(window []types.OHLCV, i, pivot int) bool {
	for j := i - pivot; j <= i+pivot; j++ {
		if j == i {
			continue
		}
		// strictly above the left side, not below the right side
		if j < i && window[j].High >= window[i].High {
			return false
		}
		if j > i && window[j].High > window[i].High {
			return false
		}
	}
	return true
}

func isPivotLow(window []types.OHLCV, i, pivot int) bool {
	for j := i - pivot; j <= i+pivot; j++ {
		if j == i {
			continue
		}
		if j < i && window[j].Low <= window[i].Low {
			return false
		}
		if j > i && window[j].Low < window[i].Low {
			return false
		}
	}
	return true
}

// cluster groups touches whose price lies within tolerance of the running cluster mean
func cluster(touches []touch, tolerance float64, window []types.OHLCV) []Level {
	if len(touches) == 0 {
		return nil
	}
	sort.Slice(touches, func(i, j int) bool { return touches[i].price < touches[j].price })

	var levels []Level
	sum := touches[0].price
	current := Level{Price: touches[0].price, Touches: 1, LastIndex: touches[0].index}
	for _, t := range touches[1:] {
		if math.Abs(t.price-current.Price)/current.Price <= tolerance {
			sum += t.price
			current.Touches++
			current.Price = sum / float64(current.Touches)
			if t.index > current.LastIndex {
				current.LastIndex = t.index
			}
			continue
		}
		levels = append(levels, current)
		sum = t.price
		current = Level{Price: t.price, Touches: 1, LastIndex: t.index}
	}
	levels = append(levels, current)

	for i := range levels {
		levels[i].LastTouch = window[levels[i].LastIndex].Timestamp
	}
	return levels
}

func rankLevels(levels []Level) []Level {
	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].Touches != levels[j].Touches {
			return levels[i].Touches > levels[j].Touches
		}
		return levels[i].LastIndex > levels[j].LastIndex
	})
	return levels
}
