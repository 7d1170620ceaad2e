package data

import (
	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// DataProvider loads historical candles from a source
type DataProvider interface {
	// LoadData loads candles from the source, oldest first
	LoadData(source string) ([]types.OHLCV, error)

	// GetName returns the name of the data provider
	GetName() string
}

// CSVColumnMapping defines the column positions of a CSV format
type CSVColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	// DateFormat is a time layout; an all-digit field is read as unix milliseconds instead
	DateFormat string
	HasHeader  bool
}

// DefaultCSVFormat is timestamp,open,high,low,close,volume with a header row.
// Bybit kline exports use the same layout.
var DefaultCSVFormat = CSVColumnMapping{
	TimestampCol: 0,
	OpenCol:      1,
	HighCol:      2,
	LowCol:       3,
	CloseCol:     4,
	VolumeCol:    5,
	MinColumns:   6,
	DateFormat:   "2006-01-02 15:04:05",
	HasHeader:    true,
}
