package bybit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// decodeResult checks the retCode of a v5 response and decodes its result
// object into out.
func decodeResult(operation string, response interface{}, out interface{}) error {
	resp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return fmt.Errorf("bybit %s: unexpected response type %T", operation, response)
	}
	if err := newAPIError(operation, resp.RetCode, resp.RetMsg); err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("bybit %s: failed to marshal result: %w", operation, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("bybit %s: failed to decode result: %w", operation, err)
	}
	return nil
}

// parseFloat64 parses Bybit's string-encoded numbers, treating "" as zero
func parseFloat64(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// mustFloat is parseFloat64 for optional fields
func mustFloat(s string) float64 {
	v, _ := parseFloat64(s)
	return v
}

// parseTimestamp converts a millisecond timestamp string
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
