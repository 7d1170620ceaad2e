package data

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ConvertIntervalToMinutes converts interval strings like "5m", "1h", "4h" to
// minute numbers. Bybit's "D" maps to 1440. Unknown input is returned as-is.
func ConvertIntervalToMinutes(interval string) string {
	if _, err := strconv.Atoi(interval); err == nil {
		return interval
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "d" {
		return "1440"
	}
	if len(interval) < 2 {
		return interval
	}

	num, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil {
		return interval
	}
	switch interval[len(interval)-1:] {
	case "m":
		return strconv.Itoa(num)
	case "h":
		return strconv.Itoa(num * 60)
	case "d":
		return strconv.Itoa(num * 24 * 60)
	case "w":
		return strconv.Itoa(num * 7 * 24 * 60)
	}
	return interval
}

// FindDataFile locates data/{exchange}/{category}/{symbol}/{interval}/candles.csv
func FindDataFile(dataRoot, exchange, symbol, interval string) (string, error) {
	symbol = strings.ToUpper(symbol)
	minutes := ConvertIntervalToMinutes(interval)

	categories := []string{"linear", "spot", "inverse", "futures"}
	var attempted []string
	for _, category := range categories {
		path := filepath.Join(dataRoot, exchange, category, symbol, minutes, "candles.csv")
		attempted = append(attempted, path)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	flat := filepath.Join(dataRoot, fmt.Sprintf("%s_%s.csv", symbol, minutes))
	attempted = append(attempted, flat)
	if _, err := os.Stat(flat); err == nil {
		return flat, nil
	}
	return "", fmt.Errorf("no data file for %s %s %s (tried %s)", exchange, symbol, interval, strings.Join(attempted, ", "))
}

func parseTrailingPeriod(s string) (time.Duration, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasSuffix(s, "days") {
		s = strings.TrimSuffix(s, "days") + "d"
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n <= 0 {
			return 0, false
		}
		return time.Duration(n) * 24 * time.Hour, true
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}
