package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a file-backed journal. ":memory:" gives a throwaway database.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func (j *SQLite) RecordSignal(ctx context.Context, s SignalRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO signals
		(id, symbol, direction, strength, entry, stop, target, strategy, reason, outcome, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Symbol, s.Direction, s.Strength, s.Entry, s.Stop, s.Target,
		s.Strategy, s.Reason, s.Outcome, toMillis(s.Timestamp),
	)
	return err
}

func (j *SQLite) RecordTrade(ctx context.Context, t TradeRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO trades
		(id, symbol, side, entry_price, exit_price, size, pnl, fees, exit_reason, signal_id, strategy, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Symbol, t.Side, t.EntryPrice, t.ExitPrice, t.Size, t.PnL, t.Fees,
		t.ExitReason, t.SignalID, t.Strategy, toMillis(t.OpenedAt), toMillis(t.ClosedAt),
	)
	return err
}

func (j *SQLite) RecordEquity(ctx context.Context, e EquityPoint) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO equity
		(ts, equity, realized_pnl_today, drawdown_pct, open_positions)
		VALUES (?, ?, ?, ?, ?)`,
		toMillis(e.Time), e.Equity, e.RealizedPnLToday, e.DrawdownPercent, e.OpenPositions,
	)
	return err
}

func (j *SQLite) RecordRiskEvent(ctx context.Context, e RiskEvent) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO risk_events
		(id, symbol, kind, rule, reason, ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Symbol, e.Kind, e.Rule, e.Reason, toMillis(e.Time),
	)
	return err
}

func (j *SQLite) RecordDailyStats(ctx context.Context, d DailyStats) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO daily_stats
		(day, start_equity, end_equity, realized_pnl, trades, wins, losses)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.Day.UTC().Format("2006-01-02"), d.StartEquity, d.EndEquity, d.RealizedPnL, d.Trades, d.Wins, d.Losses,
	)
	return err
}

func (j *SQLite) Trades(ctx context.Context, since time.Time) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, symbol, side, entry_price, exit_price, size, pnl, fees, exit_reason, signal_id, strategy, opened_at, closed_at
		FROM trades WHERE closed_at >= ? ORDER BY closed_at, id`, toMillis(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		var opened, closed int64
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.EntryPrice, &t.ExitPrice, &t.Size, &t.PnL, &t.Fees,
			&t.ExitReason, &t.SignalID, &t.Strategy, &opened, &closed); err != nil {
			return nil, err
		}
		t.OpenedAt, t.ClosedAt = fromMillis(opened), fromMillis(closed)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (j *SQLite) EquityCurve(ctx context.Context, since time.Time) ([]EquityPoint, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT ts, equity, realized_pnl_today, drawdown_pct, open_positions
		FROM equity WHERE ts >= ? ORDER BY ts`, toMillis(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityPoint
	for rows.Next() {
		var e EquityPoint
		var ts int64
		if err := rows.Scan(&ts, &e.Equity, &e.RealizedPnLToday, &e.DrawdownPercent, &e.OpenPositions); err != nil {
			return nil, err
		}
		e.Time = fromMillis(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *SQLite) RiskEvents(ctx context.Context, since time.Time) ([]RiskEvent, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, symbol, kind, rule, reason, ts
		FROM risk_events WHERE ts >= ? ORDER BY ts, id`, toMillis(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RiskEvent
	for rows.Next() {
		var e RiskEvent
		var ts int64
		if err := rows.Scan(&e.ID, &e.Symbol, &e.Kind, &e.Rule, &e.Reason, &ts); err != nil {
			return nil, err
		}
		e.Time = fromMillis(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
