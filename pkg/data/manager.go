package data

import (
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// DataManager locates, loads and caches historical candles for replay
type DataManager struct {
	provider DataProvider
	dataRoot string
	exchange string

	mu    sync.RWMutex
	cache map[string][]types.OHLCV
}

// NewDataManager creates a manager reading CSV files under dataRoot
func NewDataManager(dataRoot, exchange string) *DataManager {
	return NewDataManagerWithProvider(NewCSVProvider(), dataRoot, exchange)
}

// NewDataManagerWithProvider creates a data manager with a custom provider
func NewDataManagerWithProvider(provider DataProvider, dataRoot, exchange string) *DataManager {
	return &DataManager{
		provider: provider,
		dataRoot: dataRoot,
		exchange: exchange,
		cache:    make(map[string][]types.OHLCV),
	}
}

// Load returns the candles for symbol and interval within [start, end]. Files
// are read once; later calls filter the cached series.
func (dm *DataManager) Load(symbol, interval string, start, end time.Time) ([]types.OHLCV, error) {
	path, err := FindDataFile(dm.dataRoot, dm.exchange, symbol, interval)
	if err != nil {
		return nil, err
	}
	series, err := dm.loadCached(path)
	if err != nil {
		return nil, err
	}
	return FilterByDateRange(series, start, end), nil
}

func (dm *DataManager) loadCached(path string) ([]types.OHLCV, error) {
	dm.mu.RLock()
	series, ok := dm.cache[path]
	dm.mu.RUnlock()
	if ok {
		return series, nil
	}

	series, err := dm.provider.LoadData(path)
	if err != nil {
		return nil, err
	}
	dm.mu.Lock()
	dm.cache[path] = series
	dm.mu.Unlock()
	return series, nil
}

// CacheSize returns the number of cached files
func (dm *DataManager) CacheSize() int {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return len(dm.cache)
}
