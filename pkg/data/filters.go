package data

import (
	"sort"
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// FilterByPeriod keeps the trailing period of data, measured from the last candle
func FilterByPeriod(data []types.OHLCV, period time.Duration) []types.OHLCV {
	if period <= 0 || len(data) == 0 {
		return data
	}
	cutoff := data[len(data)-1].Timestamp.Add(-period)
	idx := sort.Search(len(data), func(i int) bool { return !data[i].Timestamp.Before(cutoff) })
	return data[idx:]
}

// FilterByDateRange keeps candles with start <= timestamp <= end. A zero
// bound is open.
func FilterByDateRange(data []types.OHLCV, start, end time.Time) []types.OHLCV {
	var filtered []types.OHLCV
	for _, c := range data {
		if !start.IsZero() && c.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && c.Timestamp.After(end) {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

// SortByTimestamp sorts in place, oldest first
func SortByTimestamp(data []types.OHLCV) []types.OHLCV {
	sort.SliceStable(data, func(i, j int) bool { return data[i].Timestamp.Before(data[j].Timestamp) })
	return data
}

// RemoveDuplicates keeps the last candle for each timestamp of sorted data
func RemoveDuplicates(data []types.OHLCV) []types.OHLCV {
	if len(data) < 2 {
		return data
	}
	out := data[:0]
	for i, c := range data {
		if i+1 < len(data) && data[i+1].Timestamp.Equal(c.Timestamp) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ParseTrailingPeriod parses period strings like "7d", "30days" or "168h"
func ParseTrailingPeriod(s string) (time.Duration, bool) {
	return parseTrailingPeriod(s)
}
