package safety

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-risk-engine/internal/exchange"
)

var errUpstream = errors.New("upstream down")

func failing(ctx context.Context) error { return errUpstream }
func succeeding(ctx context.Context) error { return nil }

// TestCircuitBreaker_OpensAndRecovers tests the closed, open and half-open cycle
func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("BTCUSDT", CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Minute})
	cb.SetClock(func() time.Time { return now })

	var transitions []string
	cb.SetStateChangeCallback(func(name string, from, to CircuitBreakerState) {
		transitions = append(transitions, from.String()+">"+to.String())
	})
	ctx := context.Background()

	assert.ErrorIs(t, cb.Call(ctx, failing), errUpstream)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Call(ctx, failing), errUpstream)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Call(ctx, func(ctx context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(61 * time.Second)
	require.NoError(t, cb.Call(ctx, succeeding))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, []string{"CLOSED>OPEN", "OPEN>HALF_OPEN", "HALF_OPEN>CLOSED"}, transitions)
}

// TestCircuitBreaker_HalfOpenFailureReopens tests a failed probe
func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Minute})
	cb.SetClock(func() time.Time { return now })
	ctx := context.Background()

	_ = cb.Call(ctx, failing)
	now = now.Add(2 * time.Minute)
	_ = cb.Call(ctx, failing)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.Equal(t, now.Add(time.Minute), cb.GetStats().NextAttempt)
}

// TestCircuitBreaker_IgnoresCancellation tests that caller cancellation is not a failure
func TestCircuitBreaker_IgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = cb.Call(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.Equal(t, StateClosed, cb.GetState())
}

// TestCircuitBreakerManager tests per-name breakers and open listing
func TestCircuitBreakerManager(t *testing.T) {
	m := NewCircuitBreakerManager(CircuitBreakerConfig{FailureThreshold: 1}, nil)
	a := m.GetOrCreate("ETHUSDT")
	assert.Same(t, a, m.GetOrCreate("ETHUSDT"))
	m.GetOrCreate("BTCUSDT")

	_ = a.Call(context.Background(), failing)
	assert.Equal(t, []string{"ETHUSDT"}, m.GetOpenCircuits())
	assert.Len(t, m.GetStats(), 2)
}

// TestEmergencyStop_TripAndClear tests activation, reason retention and callbacks
func TestEmergencyStop_TripAndClear(t *testing.T) {
	es := NewEmergencyStop()
	var mu sync.Mutex
	var events []bool
	es.OnChange(func(active bool, reason string) {
		mu.Lock()
		events = append(events, active)
		mu.Unlock()
	})

	assert.True(t, es.Trip("manual"))
	assert.False(t, es.Trip("second"))
	assert.True(t, es.Active())
	assert.Equal(t, "manual", es.Reason())
	assert.False(t, es.TrippedAt().IsZero())

	assert.True(t, es.Clear())
	assert.False(t, es.Clear())
	assert.False(t, es.Active())
	assert.Equal(t, []bool{true, false}, events)
}

// TestEmergencyStop_DailyTrip tests clearance at the UTC day boundary
func TestEmergencyStop_DailyTrip(t *testing.T) {
	es := NewEmergencyStop()
	tripped := time.Date(2024, 6, 3, 22, 0, 0, 0, time.UTC)
	es.SetClock(func() time.Time { return tripped })

	es.TripForDay("daily-loss-limit")
	assert.False(t, es.ClearForNewDay(tripped.Add(time.Hour)))
	assert.True(t, es.Active())
	assert.True(t, es.ClearForNewDay(tripped.Add(3*time.Hour)))
	assert.False(t, es.Active())

	es.Trip("manual")
	assert.False(t, es.ClearForNewDay(tripped.Add(48*time.Hour)), "explicit trips need an explicit clear")

	es.Clear()
	es.TripForDay("daily-loss-limit")
	es.Trip("operator")
	assert.False(t, es.ClearForNewDay(tripped.Add(48*time.Hour)), "an explicit trip upgrades a daily one")
}

// TestValidateOrder tests the pre-submission guard
func TestValidateOrder(t *testing.T) {
	lot := exchange.LotSize{MinOrderQty: 0.01, MaxOrderQty: 10, MinNotional: 5}
	ok := exchange.OrderRequest{Symbol: "BTCUSDT", Side: exchange.OrderSideBuy, Size: 0.5, Price: 100}
	assert.NoError(t, ValidateOrder(ok, lot).Err())

	small := ok
	small.Size = 0.001
	assert.Equal(t, "QUANTITY_BELOW_MIN", ValidateOrder(small, lot).Code)

	cheap := ok
	cheap.Size = 0.02
	assert.Equal(t, "NOTIONAL_BELOW_MIN", ValidateOrder(cheap, lot).Code)

	exit := small
	exit.ReduceOnly = true
	exit.Price = 0
	assert.True(t, ValidateOrder(exit, lot).Valid)

	bad := ok
	bad.Symbol = "btc-usdt"
	assert.Equal(t, "SYMBOL_INVALID", ValidateOrder(bad, lot).Code)
}

// TestValidatePercentageRange tests bounds
func TestValidatePercentageRange(t *testing.T) {
	assert.True(t, ValidatePercentageRange(2, 0, 100, "max_daily_loss").Valid)
	assert.Error(t, ValidatePercentageRange(-1, 0, 100, "max_daily_loss").Err())
}
