package journal

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

// TestSQLiteSchemaCreated tests that opening applies the schema
func TestSQLiteSchemaCreated(t *testing.T) {
	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())
	for _, table := range []string{"signals", "trades", "equity", "risk_events", "daily_stats"} {
		assert.True(t, found[table], table)
	}
}

// TestSQLiteTrades tests the round trip and the since filter
func TestSQLiteTrades(t *testing.T) {
	j, _ := newTestSQLite(t)
	ctx := context.Background()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	early := TradeRecord{ID: "T1", Symbol: "BTCUSDT", Side: "LONG", EntryPrice: 100, ExitPrice: 104, Size: 0.5, PnL: 2,
		ExitReason: "take-profit", SignalID: "S1", Strategy: "multi_indicator", OpenedAt: day, ClosedAt: day.Add(time.Hour)}
	late := early
	late.ID, late.PnL, late.ClosedAt = "T2", -1, day.Add(26*time.Hour)

	require.NoError(t, j.RecordTrade(ctx, late))
	require.NoError(t, j.RecordTrade(ctx, early))

	all, err := j.Trades(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, early, all[0])

	recent, err := j.Trades(ctx, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "T2", recent[0].ID)

	assert.Error(t, j.RecordTrade(ctx, early), "trade ids are unique")
}

// TestSQLiteEquityAndEvents tests the curve and risk event queries
func TestSQLiteEquityAndEvents(t *testing.T) {
	j, _ := newTestSQLite(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordEquity(ctx, EquityPoint{Time: at.Add(time.Minute), Equity: 990, RealizedPnLToday: -10, DrawdownPercent: 1, OpenPositions: 1}))
	require.NoError(t, j.RecordEquity(ctx, EquityPoint{Time: at, Equity: 1000}))
	curve, err := j.EquityCurve(ctx, at)
	require.NoError(t, err)
	require.Len(t, curve, 2)
	assert.Equal(t, 1000.0, curve[0].Equity)
	assert.Equal(t, 1, curve[1].OpenPositions)

	require.NoError(t, j.RecordRiskEvent(ctx, RiskEvent{ID: "R1", Symbol: "ETHUSDT", Kind: RiskEventVeto, Rule: "daily-loss-limit", Reason: "loss 250", Time: at}))
	events, err := j.RiskEvents(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "daily-loss-limit", events[0].Rule)
	assert.Equal(t, at, events[0].Time)
}

// TestSQLiteSignalsAndDailyStats tests upserts for signals and daily rows
func TestSQLiteSignalsAndDailyStats(t *testing.T) {
	j, path := newTestSQLite(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

	sig := SignalRecord{ID: "S1", Symbol: "BTCUSDT", Direction: "LONG", Strength: 0.7, Entry: 100, Stop: 98, Target: 106,
		Strategy: "multi_indicator", Outcome: OutcomeApproved, Timestamp: now}
	require.NoError(t, j.RecordSignal(ctx, sig))
	sig.Outcome = OutcomeIgnored
	require.NoError(t, j.RecordSignal(ctx, sig))

	day := DailyStats{Day: now, StartEquity: 1000, EndEquity: 1010, RealizedPnL: 10, Trades: 2, Wins: 1, Losses: 1}
	require.NoError(t, j.RecordDailyStats(ctx, day))
	day.EndEquity = 1020
	require.NoError(t, j.RecordDailyStats(ctx, day))
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var outcome string
	require.NoError(t, db.QueryRow(`SELECT outcome FROM signals WHERE id = 'S1'`).Scan(&outcome))
	assert.Equal(t, OutcomeIgnored, outcome)

	var end float64
	var count int
	require.NoError(t, db.QueryRow(`SELECT end_equity, (SELECT COUNT(*) FROM daily_stats) FROM daily_stats WHERE day = '2024-01-02'`).Scan(&end, &count))
	assert.Equal(t, 1020.0, end)
	assert.Equal(t, 1, count)
}

// TestOpen tests backend selection
func TestOpen(t *testing.T) {
	ctx := context.Background()

	j, err := Open(ctx, Config{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "nested", "j.db")})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	mem, err := Open(ctx, Config{Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, mem.RecordEquity(ctx, EquityPoint{Time: time.Now(), Equity: 1}))
	curve, err := mem.EquityCurve(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, curve, 1)
	require.NoError(t, mem.Close())

	_, err = Open(ctx, Config{Backend: "postgres"})
	assert.Error(t, err)
	_, err = Open(ctx, Config{Backend: "mongo"})
	assert.Error(t, err)
}

// TestPostgres runs against a real database when JOURNAL_TEST_DSN is set
func TestPostgres(t *testing.T) {
	dsn := os.Getenv("JOURNAL_TEST_DSN")
	if dsn == "" {
		t.Skip("JOURNAL_TEST_DSN not set")
	}
	ctx := context.Background()
	j, err := NewPostgres(ctx, dsn)
	require.NoError(t, err)
	defer j.Close()

	id := "PGTEST-" + time.Now().Format("150405.000000")
	closed := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, j.RecordTrade(ctx, TradeRecord{ID: id, Symbol: "BTCUSDT", Side: "LONG", PnL: 1, OpenedAt: closed, ClosedAt: closed}))
	trades, err := j.Trades(ctx, closed)
	require.NoError(t, err)
	assert.NotEmpty(t, trades)
}

// TestComputePerformance tests trade statistics
func TestComputePerformance(t *testing.T) {
	trades := []TradeRecord{{PnL: 30, Fees: 1}, {PnL: -10, Fees: 1}, {PnL: -20, Fees: 1}, {PnL: 50, Fees: 1}}
	p := ComputePerformance(trades, nil)

	assert.Equal(t, 4, p.Trades)
	assert.Equal(t, 2, p.Wins)
	assert.Equal(t, 2, p.Losses)
	assert.InDelta(t, 50.0, p.WinRate, 1e-9)
	assert.InDelta(t, 80.0, p.GrossProfit, 1e-9)
	assert.InDelta(t, 30.0, p.GrossLoss, 1e-9)
	assert.InDelta(t, 80.0/30.0, p.ProfitFactor, 1e-9)
	assert.InDelta(t, 50.0, p.TotalPnL, 1e-9)
	assert.InDelta(t, 4.0, p.TotalFees, 1e-9)
	assert.InDelta(t, -15.0, p.AvgLoss, 1e-9)
	assert.InDelta(t, -20.0, p.LargestLoss, 1e-9)
	// cumulative 0, 30, 20, 0, 50
	assert.InDelta(t, 30.0, p.MaxDrawdown, 1e-9)
}

// TestComputePerformance_EquityDrawdown tests drawdown from the equity curve
func TestComputePerformance_EquityDrawdown(t *testing.T) {
	equity := []EquityPoint{{Equity: 1000}, {Equity: 1100}, {Equity: 990}, {Equity: 1050}}
	p := ComputePerformance([]TradeRecord{{PnL: 5}}, equity)

	assert.InDelta(t, 110.0, p.MaxDrawdown, 1e-9)
	assert.InDelta(t, 10.0, p.MaxDrawdownPercent, 1e-9)
	assert.True(t, math.IsInf(p.ProfitFactor, 1))

	empty := ComputePerformance(nil, nil)
	assert.Zero(t, empty.WinRate)
	assert.Zero(t, empty.ProfitFactor)
}
