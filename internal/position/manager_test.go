package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-risk-engine/internal/strategy"
)

type fakePlacer struct {
	mu        sync.Mutex
	orders    []exchange.OrderRequest
	cancelled []string
	submitErr error
	cancelErr error
}

func (f *fakePlacer) SubmitOrder(_ context.Context, req exchange.OrderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.orders = append(f.orders, req)
	return fmt.Sprintf("order-%d", len(f.orders)), nil
}

func (f *fakePlacer) CancelOrder(_ context.Context, _, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

var fillTime = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

func longSignal(id string) strategy.Signal {
	return strategy.Signal{
		ID:        id,
		Symbol:    "BTCUSDT",
		Direction: strategy.Long,
		Strength:  0.8,
		Entry:     100,
		Stop:      98,
		Target:    106,
		Strategy:  "multi_indicator",
	}
}

func filled(orderID string, side exchange.OrderSide, price, size float64) exchange.Fill {
	return exchange.Fill{
		OrderID:   orderID,
		Symbol:    "BTCUSDT",
		Side:      side,
		Price:     price,
		Size:      size,
		Status:    exchange.FillFilled,
		Timestamp: fillTime,
	}
}

func openLong(t *testing.T, m *Manager) {
	t.Helper()
	require.NoError(t, m.Enter(context.Background(), longSignal("sig-1"), 2))
	tr := m.OnFill(filled("order-1", exchange.OrderSideBuy, 101, 2))
	require.Equal(t, Opened, tr.Kind)
}

// TestManager_RoundTrip tests entry, fill re-anchoring, exit and realized P&L
func TestManager_RoundTrip(t *testing.T) {
	placer := &fakePlacer{}
	m := NewManager("BTCUSDT", placer, strategy.Exits{StopLossPercent: 2, TakeProfitPercent: 6})

	require.NoError(t, m.Enter(context.Background(), longSignal("sig-1"), 2))
	assert.Equal(t, StatePendingEntry, m.State())
	_, pending := m.PendingSince()
	assert.True(t, pending)
	require.Len(t, placer.orders, 1)
	assert.Equal(t, exchange.OrderSideBuy, placer.orders[0].Side)
	assert.Equal(t, "sig-1", placer.orders[0].ClientID)

	tr := m.OnFill(filled("order-1", exchange.OrderSideBuy, 101, 2))
	require.Equal(t, Opened, tr.Kind)
	pos := m.Position()
	assert.Equal(t, StateOpen, pos.State)
	assert.InDelta(t, 101.0, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 99.0, pos.Stop, 1e-9)
	assert.InDelta(t, 107.0, pos.Target, 1e-9)

	reason, hit := m.ExitTrigger(107.5)
	require.True(t, hit)
	assert.Equal(t, ExitTakeProfit, reason)

	require.NoError(t, m.RequestExit(context.Background(), reason, 107.5))
	assert.Equal(t, StatePendingExit, m.State())
	require.Len(t, placer.orders, 2)
	assert.Equal(t, exchange.OrderSideSell, placer.orders[1].Side)
	assert.True(t, placer.orders[1].ReduceOnly)
	assert.InDelta(t, 2.0, placer.orders[1].Size, 1e-9)

	tr = m.OnFill(filled("order-2", exchange.OrderSideSell, 107.5, 2))
	require.Equal(t, Closed, tr.Kind)
	require.NotNil(t, tr.Trade)
	assert.InDelta(t, 13.0, tr.Trade.PnL, 1e-9)
	assert.Equal(t, ExitTakeProfit, tr.Trade.ExitReason)
	assert.Equal(t, "sig-1", tr.Trade.SignalID)
	assert.False(t, tr.Reconciled)
	assert.Equal(t, StateFlat, m.State())
}

// TestManager_ShortPnL tests the side sign in realized P&L
func TestManager_ShortPnL(t *testing.T) {
	assert.InDelta(t, 20.0, RealizedPnL(strategy.Short, 100, 90, 2), 1e-9)
	assert.InDelta(t, -20.0, RealizedPnL(strategy.Long, 100, 90, 2), 1e-9)
}

// TestManager_BusyAndConsumed tests idempotent signal consumption
func TestManager_BusyAndConsumed(t *testing.T) {
	placer := &fakePlacer{}
	m := NewManager("BTCUSDT", placer, strategy.Exits{StopLossPercent: 2, TakeProfitPercent: 6})

	require.NoError(t, m.Enter(context.Background(), longSignal("sig-1"), 1))
	assert.ErrorIs(t, m.Enter(context.Background(), longSignal("sig-2"), 1), ErrBusy)

	m.OnCancel("order-1")
	assert.Equal(t, StateFlat, m.State())
	assert.ErrorIs(t, m.Enter(context.Background(), longSignal("sig-1"), 1), ErrSignalConsumed)
	assert.NoError(t, m.Enter(context.Background(), longSignal("sig-3"), 1))
	assert.Len(t, placer.orders, 2)
	assert.True(t, m.Consumed("sig-1"))
	assert.False(t, m.Consumed("sig-4"))
}

// TestManager_IDsFollowClock tests that trade and exit IDs carry the manager's clock
func TestManager_IDsFollowClock(t *testing.T) {
	placer := &fakePlacer{}
	m := NewManager("BTCUSDT", placer, strategy.Exits{StopLossPercent: 2, TakeProfitPercent: 6})
	candleTime := time.Date(2021, 1, 4, 8, 15, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return candleTime })
	openLong(t, m)

	require.NoError(t, m.RequestExit(context.Background(), ExitStopLoss, 98))
	exitID, err := ulid.Parse(placer.orders[1].ClientID)
	require.NoError(t, err)
	assert.Equal(t, candleTime.UnixMilli(), int64(exitID.Time()))

	tr := m.OnFill(filled("order-2", exchange.OrderSideSell, 98, 2))
	require.NotNil(t, tr.Trade)
	tradeID, err := ulid.Parse(tr.Trade.ID)
	require.NoError(t, err)
	assert.Equal(t, candleTime.UnixMilli(), int64(tradeID.Time()))
}

// TestManager_SubmitFailureStaysFlat tests that a failed entry leaves no pending order
func TestManager_SubmitFailureStaysFlat(t *testing.T) {
	placer := &fakePlacer{submitErr: errors.New("gateway down")}
	m := NewManager("BTCUSDT", placer, strategy.Exits{StopLossPercent: 2, TakeProfitPercent: 6})

	assert.Error(t, m.Enter(context.Background(), longSignal("sig-1"), 1))
	assert.Equal(t, StateFlat, m.State())
	placer.submitErr = nil
	assert.ErrorIs(t, m.Enter(context.Background(), longSignal("sig-1"), 1), ErrSignalConsumed)
}

// TestManager_CancelEntry tests timing out a pending entry
func TestManager_CancelEntry(t *testing.T) {
	placer := &fakePlacer{}
	m := NewManager("BTCUSDT", placer, strategy.Exits{StopLossPercent: 2, TakeProfitPercent: 6})
	require.NoError(t, m.Enter(context.Background(), longSignal("sig-1"), 1))

	tr, err := m.CancelEntry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EntryCancelled, tr.Kind)
	assert.Equal(t, []string{"order-1"}, placer.cancelled)
	assert.Equal(t, StateFlat, m.State())

	// a late fill for the cancelled order is adopted
	tr = m.OnFill(filled("order-1", exchange.OrderSideBuy, 100, 1))
	assert.Equal(t, Adopted, tr.Kind)
	assert.True(t, tr.Reconciled)
	assert.Equal(t, StateOpen, m.State())
}

// TestManager_ExitCancelledReturnsToOpen tests PENDING_EXIT back to OPEN
func TestManager_ExitCancelledReturnsToOpen(t *testing.T) {
	m := NewManager("BTCUSDT", &fakePlacer{}, strategy.Exits{StopLossPercent: 2, TakeProfitPercent: 6})
	openLong(t, m)
	require.NoError(t, m.RequestExit(context.Background(), ExitManual, 100))
	require.NoError(t, m.RequestExit(context.Background(), ExitManual, 100))

	tr := m.OnFill(exchange.Fill{OrderID: "order-2", Status: exchange.FillCancelled})
	assert.Equal(t, ExitCancelled, tr.Kind)
	assert.Equal(t, StateOpen, m.State())
}

// TestManager_TrailingStopNeverLoosens tests ratcheting on favorable moves only
func TestManager_TrailingStopNeverLoosens(t *testing.T) {
	m := NewManager("BTCUSDT", &fakePlacer{}, strategy.Exits{StopLossPercent: 2, TakeProfitPercent: 20, TrailingPercent: 1})
	openLong(t, m)
	assert.InDelta(t, 99.0, m.Position().Stop, 1e-9)

	prices := []float64{102, 104, 103, 101, 106, 100, 105}
	last := m.Position().Stop
	for _, p := range prices {
		m.UpdateStops(p, 0)
		stop := m.Position().Stop
		assert.GreaterOrEqual(t, stop, last, "stop loosened at price %.2f", p)
		last = stop
	}
	assert.InDelta(t, 106*0.99, last, 1e-9)
	assert.InDelta(t, 106.0, m.Position().HighWater, 1e-9)
}

// TestManager_ShortTrailingAndATR tests mirrored stops for shorts
func TestManager_ShortTrailingAndATR(t *testing.T) {
	placer := &fakePlacer{}
	m := NewManager("BTCUSDT", placer, strategy.Exits{StopLossPercent: 4, TakeProfitPercent: 8, ATRStopMultiplier: 2, TrailingPercent: 3})
	sig := longSignal("sig-short")
	sig.Direction, sig.Stop, sig.Target = strategy.Short, 104, 92
	require.NoError(t, m.Enter(context.Background(), sig, 1))
	require.Equal(t, exchange.OrderSideSell, placer.orders[0].Side)
	m.OnFill(filled("order-1", exchange.OrderSideSell, 100, 1))

	// ATR candidate 100 + 2*1.5 = 103 beats the initial 104
	assert.True(t, m.UpdateStops(100, 1.5))
	assert.InDelta(t, 103.0, m.Position().Stop, 1e-9)

	// price falls: trailing 95 * 1.03 = 97.85
	m.UpdateStops(95, 1.5)
	assert.InDelta(t, 97.85, m.Position().Stop, 1e-9)

	// a wider ATR and a rally never loosen it
	assert.False(t, m.UpdateStops(97, 5))
	assert.InDelta(t, 97.85, m.Position().Stop, 1e-9)

	reason, hit := m.ExitTrigger(98)
	assert.True(t, hit)
	assert.Equal(t, ExitStopLoss, reason)
}

// TestManager_ReconcileAdoptsExchange tests adoption of unexpected exchange positions
func TestManager_ReconcileAdoptsExchange(t *testing.T) {
	m := NewManager("BTCUSDT", &fakePlacer{}, strategy.Exits{StopLossPercent: 2, TakeProfitPercent: 6})

	tr := m.Reconcile(exchange.ExternalPosition{Symbol: "BTCUSDT"})
	assert.Equal(t, NoChange, tr.Kind)

	tr = m.Reconcile(exchange.ExternalPosition{Symbol: "BTCUSDT", Side: exchange.OrderSideBuy, Size: 0.5, EntryPrice: 200})
	require.Equal(t, Adopted, tr.Kind)
	assert.True(t, tr.Reconciled)
	pos := m.Position()
	assert.Equal(t, StateOpen, pos.State)
	assert.Equal(t, strategy.Long, pos.Side)
	assert.InDelta(t, 196.0, pos.Stop, 1e-9)

	tr = m.Reconcile(exchange.ExternalPosition{Symbol: "BTCUSDT", Side: exchange.OrderSideBuy, Size: 0.3, EntryPrice: 200})
	assert.Equal(t, Adopted, tr.Kind)
	assert.InDelta(t, 0.3, m.Position().Size, 1e-9)

	tr = m.Reconcile(exchange.ExternalPosition{Symbol: "BTCUSDT", MarkPrice: 210})
	require.Equal(t, Closed, tr.Kind)
	require.NotNil(t, tr.Trade)
	assert.InDelta(t, 3.0, tr.Trade.PnL, 1e-9)
	assert.Equal(t, ExitExternal, tr.Trade.ExitReason)
	assert.Equal(t, StateFlat, m.State())
}

// TestManager_ReconcileSkipsInFlight tests that pending orders are not reconciled
func TestManager_ReconcileSkipsInFlight(t *testing.T) {
	m := NewManager("BTCUSDT", &fakePlacer{}, strategy.Exits{StopLossPercent: 2, TakeProfitPercent: 6})
	require.NoError(t, m.Enter(context.Background(), longSignal("sig-1"), 1))

	tr := m.Reconcile(exchange.ExternalPosition{Symbol: "BTCUSDT", Side: exchange.OrderSideBuy, Size: 1, EntryPrice: 100})
	assert.Equal(t, NoChange, tr.Kind)
	assert.Equal(t, StatePendingEntry, m.State())
}

// TestManager_ExternalCloseFill tests an opposite fill the manager did not request
func TestManager_ExternalCloseFill(t *testing.T) {
	m := NewManager("BTCUSDT", &fakePlacer{}, strategy.Exits{StopLossPercent: 2, TakeProfitPercent: 6})
	openLong(t, m)

	tr := m.OnFill(filled("manual-1", exchange.OrderSideSell, 99, 0.5))
	assert.Equal(t, Adopted, tr.Kind)
	require.NotNil(t, tr.Trade)
	assert.InDelta(t, -1.0, tr.Trade.PnL, 1e-9)
	assert.InDelta(t, 1.5, m.Position().Size, 1e-9)

	tr = m.OnFill(filled("manual-2", exchange.OrderSideSell, 99, 1.5))
	assert.Equal(t, Closed, tr.Kind)
	assert.True(t, tr.Reconciled)
	assert.InDelta(t, -3.0, tr.Trade.PnL, 1e-9)
}

// TestManager_RequestExitWhenFlat tests exits without a position
func TestManager_RequestExitWhenFlat(t *testing.T) {
	m := NewManager("BTCUSDT", &fakePlacer{}, strategy.Exits{StopLossPercent: 2, TakeProfitPercent: 6})
	assert.ErrorIs(t, m.RequestExit(context.Background(), ExitManual, 100), ErrNotOpen)
}
