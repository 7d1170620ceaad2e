package bybit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InstrumentInfo holds the trading filters of a linear contract
type InstrumentInfo struct {
	Symbol      string
	Status      string
	MinOrderQty float64
	MaxOrderQty float64
	QtyStep     float64
	MinNotional float64
	TickSize    float64
	FetchedAt   time.Time
}

// InstrumentManager caches instrument filters; they rarely change
type InstrumentManager struct {
	client *Client
	ttl    time.Duration
	mu     sync.RWMutex
	cache  map[string]InstrumentInfo
}

// NewInstrumentManager creates a cache with a one hour expiry
func NewInstrumentManager(client *Client) *InstrumentManager {
	return &InstrumentManager{
		client: client,
		ttl:    time.Hour,
		cache:  make(map[string]InstrumentInfo),
	}
}

// Get returns cached filters for symbol, fetching them when missing or stale
func (im *InstrumentManager) Get(ctx context.Context, symbol string) (InstrumentInfo, error) {
	im.mu.RLock()
	info, ok := im.cache[symbol]
	im.mu.RUnlock()
	if ok && time.Since(info.FetchedAt) < im.ttl {
		return info, nil
	}

	info, err := im.fetch(ctx, symbol)
	if err != nil {
		return InstrumentInfo{}, err
	}

	im.mu.Lock()
	im.cache[symbol] = info
	im.mu.Unlock()
	return info, nil
}

func (im *InstrumentManager) fetch(ctx context.Context, symbol string) (InstrumentInfo, error) {
	params := map[string]interface{}{
		"category": CategoryLinear,
		"symbol":   symbol,
	}
	if err := im.client.wait(ctx); err != nil {
		return InstrumentInfo{}, err
	}
	result, err := im.client.httpClient.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	if err != nil {
		return InstrumentInfo{}, fmt.Errorf("failed to fetch instrument info: %w", err)
	}

	var payload struct {
		List []struct {
			Symbol        string `json:"symbol"`
			Status        string `json:"status"`
			LotSizeFilter struct {
				MaxOrderQty      string `json:"maxOrderQty"`
				MinOrderQty      string `json:"minOrderQty"`
				QtyStep          string `json:"qtyStep"`
				MinNotionalValue string `json:"minNotionalValue"`
			} `json:"lotSizeFilter"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
		} `json:"list"`
	}
	if err := decodeResult("instrument info", result, &payload); err != nil {
		return InstrumentInfo{}, err
	}

	for _, item := range payload.List {
		if item.Symbol != symbol {
			continue
		}
		info := InstrumentInfo{
			Symbol:      item.Symbol,
			Status:      item.Status,
			MinOrderQty: mustFloat(item.LotSizeFilter.MinOrderQty),
			MaxOrderQty: mustFloat(item.LotSizeFilter.MaxOrderQty),
			QtyStep:     mustFloat(item.LotSizeFilter.QtyStep),
			MinNotional: mustFloat(item.LotSizeFilter.MinNotionalValue),
			TickSize:    mustFloat(item.PriceFilter.TickSize),
			FetchedAt:   time.Now(),
		}
		if info.QtyStep <= 0 {
			return InstrumentInfo{}, fmt.Errorf("instrument %s has no qty step", symbol)
		}
		return info, nil
	}
	return InstrumentInfo{}, &APIError{Code: ErrCodeSymbolNotFound, Message: "symbol not found: " + symbol, Operation: "instrument info"}
}

// Invalidate drops a cached entry
func (im *InstrumentManager) Invalidate(symbol string) {
	im.mu.Lock()
	delete(im.cache, symbol)
	im.mu.Unlock()
}
