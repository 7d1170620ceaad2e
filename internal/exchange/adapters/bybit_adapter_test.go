package adapters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

type fakeBybit struct {
	mu       sync.Mutex
	candles  []types.OHLCV
	placed   []bybit.PlaceOrderParams
	orders   map[string]bybit.Order
	leverage int
	placeErr error
}

func (f *fakeBybit) GetKlines(ctx context.Context, params bybit.KlineParams) ([]types.OHLCV, error) {
	return f.candles, nil
}

func (f *fakeBybit) PlaceOrder(ctx context.Context, params bybit.PlaceOrderParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return "", f.placeErr
	}
	f.placed = append(f.placed, params)
	return "oid-1", nil
}

func (f *fakeBybit) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }

func (f *fakeBybit) GetOrder(ctx context.Context, symbol, orderID string) (bybit.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return bybit.Order{}, &bybit.APIError{Code: bybit.ErrCodeOrderNotFound}
	}
	return order, nil
}

func (f *fakeBybit) GetPosition(ctx context.Context, symbol string) (bybit.Position, error) {
	return bybit.Position{Symbol: symbol, Side: "Sell", Size: 0.5, EntryPrice: 30000, MarkPrice: 29900}, nil
}

func (f *fakeBybit) GetEquity(ctx context.Context, accountType bybit.AccountType) (float64, error) {
	return 12345, nil
}

func (f *fakeBybit) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	f.leverage = leverage
	return nil
}

type fakeLots struct{}

func (fakeLots) Get(ctx context.Context, symbol string) (bybit.InstrumentInfo, error) {
	return bybit.InstrumentInfo{Symbol: symbol, MinOrderQty: 0.001, QtyStep: 0.001, MinNotional: 5}, nil
}

// TestBybitGateway_DropsFormingCandle tests that the open candle is excluded
func TestBybitGateway_DropsFormingCandle(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 7, 0, 0, time.UTC)
	api := &fakeBybit{candles: []types.OHLCV{
		{Timestamp: now.Add(-12 * time.Minute), Close: 1},
		{Timestamp: now.Add(-7 * time.Minute), Close: 2},
		{Timestamp: now.Add(-2 * time.Minute), Close: 3},
	}}
	g := newBybitGateway(api, fakeLots{}, &exchange.BybitConfig{}, nil)
	g.now = func() time.Time { return now }

	candles, err := g.GetCandles(context.Background(), "BTCUSDT", exchange.Interval5m, 5)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 2.0, candles[1].Close)
}

// TestBybitGateway_SubmitAndPoll tests order placement and fill discovery
func TestBybitGateway_SubmitAndPoll(t *testing.T) {
	api := &fakeBybit{orders: map[string]bybit.Order{}}
	g := newBybitGateway(api, fakeLots{}, &exchange.BybitConfig{Leverage: 3}, nil)
	ctx := context.Background()

	orderID, err := g.SubmitOrder(ctx, exchange.OrderRequest{Symbol: "BTCUSDT", Side: exchange.OrderSideBuy, Size: 0.01, ClientID: "sig-1"})
	require.NoError(t, err)
	assert.Equal(t, "oid-1", orderID)
	require.Len(t, api.placed, 1)
	assert.Equal(t, "sig-1", api.placed[0].OrderLinkID)
	assert.Equal(t, "0.01", api.placed[0].Qty)
	assert.Equal(t, 3, api.leverage)

	api.orders["oid-1"] = bybit.Order{OrderID: "oid-1", Status: bybit.StatusNew}
	g.pollFills(ctx)
	assert.Empty(t, g.Fills())

	api.orders["oid-1"] = bybit.Order{OrderID: "oid-1", Status: bybit.StatusFilled, AvgPrice: 30010, CumExecQty: 0.01, CumExecFee: 0.18}
	g.pollFills(ctx)
	require.Len(t, g.Fills(), 1)
	fill := <-g.Fills()
	assert.Equal(t, exchange.FillFilled, fill.Status)
	assert.Equal(t, "sig-1", fill.ClientID)
	assert.Equal(t, 30010.0, fill.Price)

	g.pollFills(ctx)
	assert.Empty(t, g.Fills(), "final orders are no longer tracked")
}

// TestBybitGateway_GeneratedClientID tests uuid link ids when none is given
func TestBybitGateway_GeneratedClientID(t *testing.T) {
	api := &fakeBybit{orders: map[string]bybit.Order{}}
	g := newBybitGateway(api, fakeLots{}, &exchange.BybitConfig{}, nil)

	_, err := g.SubmitOrder(context.Background(), exchange.OrderRequest{Symbol: "BTCUSDT", Side: exchange.OrderSideSell, Size: 1, ReduceOnly: true})
	require.NoError(t, err)
	assert.Len(t, api.placed[0].OrderLinkID, 36)
	assert.True(t, api.placed[0].ReduceOnly)
}

// TestBybitGateway_AccountViews tests position, equity and lot size mapping
func TestBybitGateway_AccountViews(t *testing.T) {
	g := newBybitGateway(&fakeBybit{}, fakeLots{}, &exchange.BybitConfig{}, nil)
	ctx := context.Background()

	pos, err := g.Position(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderSideSell, pos.Side)
	assert.Equal(t, 0.5, pos.Size)

	equity, err := g.Equity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12345.0, equity)

	lot, err := g.LotSize(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 5.0, lot.MinNotional)
}

// TestConvertError tests mapping to standard exchange errors
func TestConvertError(t *testing.T) {
	assert.Nil(t, convertError(nil))
	assert.ErrorIs(t, convertError(&bybit.APIError{Code: bybit.ErrCodeInsufficientBalance}), exchange.ErrInsufficientBalance)
	assert.ErrorIs(t, convertError(&bybit.APIError{Code: bybit.ErrCodeInvalidAPIKey}), exchange.ErrAuthenticationFailed)

	rate := convertError(&bybit.APIError{Code: bybit.ErrCodeRateLimitExceeded, Message: "Too many visits"})
	assert.ErrorIs(t, rate, exchange.ErrRateLimitExceeded)
	var exErr *exchange.ExchangeError
	require.ErrorAs(t, rate, &exErr)
	assert.True(t, exErr.IsRetryable)
}
