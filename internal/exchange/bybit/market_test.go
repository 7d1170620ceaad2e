package bybit

import (
	"errors"
	"fmt"
	"testing"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseKlines_SortsAscending tests that newest-first rows come back oldest first
func TestParseKlines_SortsAscending(t *testing.T) {
	rows := [][]string{
		{"1700000120000", "101", "103", "100", "102", "12", "1200"},
		{"1700000060000", "100", "102", "99", "101", "10", "1000"},
		{"1700000000000", "99", "101", "98", "100", "8", "800"},
	}

	candles, err := parseKlines(rows)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, 100.0, candles[0].Close)
	assert.Equal(t, 102.0, candles[2].Close)
	assert.True(t, candles[0].Timestamp.Before(candles[1].Timestamp))
	assert.Equal(t, 12.0, candles[2].Volume)
}

// TestParseKlines_BadNumber tests malformed rows
func TestParseKlines_BadNumber(t *testing.T) {
	_, err := parseKlines([][]string{{"1700000000000", "x", "1", "1", "1", "1"}})
	assert.Error(t, err)

	candles, err := parseKlines([][]string{{"1700000000000", "1"}})
	require.NoError(t, err)
	assert.Empty(t, candles)
}

// TestDecodeResult tests retCode handling and result decoding
func TestDecodeResult(t *testing.T) {
	var out struct {
		OrderID string `json:"orderId"`
	}
	ok := &bybit_api.ServerResponse{RetCode: 0, Result: map[string]interface{}{"orderId": "abc"}}
	require.NoError(t, decodeResult("place order", ok, &out))
	assert.Equal(t, "abc", out.OrderID)

	failed := &bybit_api.ServerResponse{RetCode: ErrCodeInsufficientBalance, RetMsg: "ab not enough"}
	err := decodeResult("place order", failed, &out)
	require.Error(t, err)
	assert.True(t, IsInsufficientBalanceError(err))
	assert.False(t, IsRetryableError(err))

	assert.Error(t, decodeResult("x", "not a response", nil))
}

// TestErrorClassification tests retry and auth helpers through wrapping
func TestErrorClassification(t *testing.T) {
	rateLimited := fmt.Errorf("wrapped: %w", &APIError{Code: ErrCodeRateLimitExceeded, Message: "too many"})
	assert.True(t, IsRetryableError(rateLimited))
	assert.True(t, IsAuthenticationError(&APIError{Code: ErrCodeInvalidSignature}))
	assert.True(t, IsOrderNotFoundError(&APIError{Code: ErrCodeOrderNotFound}))
	assert.True(t, IsRetryableError(errors.New("read tcp: i/o timeout")))
	assert.False(t, IsRetryableError(nil))
}

// TestOrder_Final tests terminal order statuses
func TestOrder_Final(t *testing.T) {
	assert.True(t, Order{Status: StatusFilled}.Final())
	assert.True(t, Order{Status: StatusPartiallyFilledCanceled}.Final())
	assert.False(t, Order{Status: StatusNew}.Final())
	assert.False(t, Order{Status: StatusPartiallyFilled}.Final())
}
