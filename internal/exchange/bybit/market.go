package bybit

import (
	"context"
	"fmt"
	"sort"

	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// Category of the v5 products this client trades
const CategoryLinear = "linear"

// KlineParams represents parameters for kline requests
type KlineParams struct {
	Symbol   string
	Interval string // 1,3,5,15,30,60,240,D
	Limit    int    // max 1000
}

// GetKlines fetches candles in ascending time order. Bybit returns the newest
// first and the last element may still be forming.
func (c *Client) GetKlines(ctx context.Context, params KlineParams) ([]types.OHLCV, error) {
	if params.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	reqParams := map[string]interface{}{
		"category": CategoryLinear,
		"symbol":   params.Symbol,
		"interval": params.Interval,
	}
	if params.Limit > 0 {
		if params.Limit > 1000 {
			params.Limit = 1000
		}
		reqParams["limit"] = params.Limit
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(reqParams).GetMarketKline(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines: %w", err)
	}

	var payload struct {
		Symbol string     `json:"symbol"`
		List   [][]string `json:"list"`
	}
	if err := decodeResult("kline", result, &payload); err != nil {
		return nil, err
	}
	return parseKlines(payload.List)
}

// parseKlines converts [start, open, high, low, close, volume, turnover] rows
func parseKlines(rows [][]string) ([]types.OHLCV, error) {
	candles := make([]types.OHLCV, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			continue
		}
		ts, err := parseTimestamp(row[0])
		if err != nil {
			return nil, fmt.Errorf("kline %d: bad start time %q: %w", i, row[0], err)
		}
		values := make([]float64, 5)
		for j := range values {
			if values[j], err = parseFloat64(row[j+1]); err != nil {
				return nil, fmt.Errorf("kline %d: bad number %q: %w", i, row[j+1], err)
			}
		}
		candles = append(candles, types.OHLCV{
			Timestamp: ts,
			Open:      values[0],
			High:      values[1],
			Low:       values[2],
			Close:     values[3],
			Volume:    values[4],
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp.Before(candles[j].Timestamp) })
	return candles, nil
}
