package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// CSVProvider implements DataProvider for CSV files
type CSVProvider struct {
	format CSVColumnMapping
}

// NewCSVProvider creates a new CSV data provider with default format
func NewCSVProvider() *CSVProvider {
	return &CSVProvider{format: DefaultCSVFormat}
}

// NewCSVProviderWithFormat creates a new CSV data provider with custom format
func NewCSVProviderWithFormat(format CSVColumnMapping) *CSVProvider {
	return &CSVProvider{format: format}
}

// GetName returns the name of the data provider
func (p *CSVProvider) GetName() string {
	return "csv"
}

// LoadData loads candles from a CSV file
func (p *CSVProvider) LoadData(source string) ([]types.OHLCV, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer file.Close()

	candles, err := p.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return candles, nil
}

// Parse reads candles, sorts them by time and drops duplicate timestamps.
// Malformed rows are an error; the engine never trades on guessed data.
func (p *CSVProvider) Parse(r io.Reader) ([]types.OHLCV, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	format := p.format

	if format.HasHeader {
		if _, err := reader.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("empty csv")
			}
			return nil, err
		}
	}

	var out []types.OHLCV
	line := 1
	if format.HasHeader {
		line = 2
	}
	for ; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) < format.MinColumns {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", line, format.MinColumns, len(record))
		}

		candle, err := p.parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, candle)
	}

	out = RemoveDuplicates(SortByTimestamp(out))
	if err := types.ValidateSeries(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *CSVProvider) parseRecord(record []string) (types.OHLCV, error) {
	f := p.format
	ts, err := parseTime(strings.TrimSpace(record[f.TimestampCol]), f.DateFormat)
	if err != nil {
		return types.OHLCV{}, err
	}

	cols := []int{f.OpenCol, f.HighCol, f.LowCol, f.CloseCol, f.VolumeCol}
	values := make([]float64, len(cols))
	for i, col := range cols {
		raw := strings.TrimSpace(record[col])
		if values[i], err = strconv.ParseFloat(raw, 64); err != nil {
			return types.OHLCV{}, fmt.Errorf("invalid number %q in column %d", raw, col)
		}
	}

	return types.OHLCV{
		Timestamp: ts,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}

func parseTime(raw, layout string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	ts, err := time.Parse(layout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
	}
	return ts.UTC(), nil
}
