package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a journal backed by a pgx connection pool
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a connection pool and ensures tables exist.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	j := &Postgres{pool: pool}
	if err := j.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

func (j *Postgres) ensureSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := j.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (j *Postgres) RecordSignal(ctx context.Context, s SignalRecord) error {
	_, err := j.pool.Exec(ctx, `
		insert into signals (id, symbol, direction, strength, entry, stop, target, strategy, reason, outcome, ts)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		on conflict (id) do update set outcome = excluded.outcome`,
		s.ID, s.Symbol, s.Direction, s.Strength, s.Entry, s.Stop, s.Target,
		s.Strategy, s.Reason, s.Outcome, s.Timestamp.UTC(),
	)
	return err
}

func (j *Postgres) RecordTrade(ctx context.Context, t TradeRecord) error {
	_, err := j.pool.Exec(ctx, `
		insert into trades (id, symbol, side, entry_price, exit_price, size, pnl, fees, exit_reason, signal_id, strategy, opened_at, closed_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.Symbol, t.Side, t.EntryPrice, t.ExitPrice, t.Size, t.PnL, t.Fees,
		t.ExitReason, t.SignalID, t.Strategy, t.OpenedAt.UTC(), t.ClosedAt.UTC(),
	)
	return err
}

func (j *Postgres) RecordEquity(ctx context.Context, e EquityPoint) error {
	_, err := j.pool.Exec(ctx, `
		insert into equity (ts, equity, realized_pnl_today, drawdown_pct, open_positions)
		values ($1, $2, $3, $4, $5)`,
		e.Time.UTC(), e.Equity, e.RealizedPnLToday, e.DrawdownPercent, e.OpenPositions,
	)
	return err
}

func (j *Postgres) RecordRiskEvent(ctx context.Context, e RiskEvent) error {
	_, err := j.pool.Exec(ctx, `
		insert into risk_events (id, symbol, kind, rule, reason, ts)
		values ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Symbol, e.Kind, e.Rule, e.Reason, e.Time.UTC(),
	)
	return err
}

func (j *Postgres) RecordDailyStats(ctx context.Context, d DailyStats) error {
	_, err := j.pool.Exec(ctx, `
		insert into daily_stats (day, start_equity, end_equity, realized_pnl, trades, wins, losses)
		values ($1, $2, $3, $4, $5, $6, $7)
		on conflict (day) do update set
			start_equity = excluded.start_equity,
			end_equity = excluded.end_equity,
			realized_pnl = excluded.realized_pnl,
			trades = excluded.trades,
			wins = excluded.wins,
			losses = excluded.losses`,
		d.Day.UTC(), d.StartEquity, d.EndEquity, d.RealizedPnL, d.Trades, d.Wins, d.Losses,
	)
	return err
}

func (j *Postgres) Trades(ctx context.Context, since time.Time) ([]TradeRecord, error) {
	rows, err := j.pool.Query(ctx, `
		select id, symbol, side, entry_price, exit_price, size, pnl, fees, exit_reason, signal_id, strategy, opened_at, closed_at
		from trades where closed_at >= $1 order by closed_at, id`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.EntryPrice, &t.ExitPrice, &t.Size, &t.PnL, &t.Fees,
			&t.ExitReason, &t.SignalID, &t.Strategy, &t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, err
		}
		t.OpenedAt, t.ClosedAt = t.OpenedAt.UTC(), t.ClosedAt.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func (j *Postgres) EquityCurve(ctx context.Context, since time.Time) ([]EquityPoint, error) {
	rows, err := j.pool.Query(ctx, `
		select ts, equity, realized_pnl_today, drawdown_pct, open_positions
		from equity where ts >= $1 order by ts`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityPoint
	for rows.Next() {
		var e EquityPoint
		if err := rows.Scan(&e.Time, &e.Equity, &e.RealizedPnLToday, &e.DrawdownPercent, &e.OpenPositions); err != nil {
			return nil, err
		}
		e.Time = e.Time.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *Postgres) RiskEvents(ctx context.Context, since time.Time) ([]RiskEvent, error) {
	rows, err := j.pool.Query(ctx, `
		select id, symbol, kind, rule, reason, ts
		from risk_events where ts >= $1 order by ts, id`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RiskEvent
	for rows.Next() {
		var e RiskEvent
		if err := rows.Scan(&e.ID, &e.Symbol, &e.Kind, &e.Rule, &e.Reason, &e.Time); err != nil {
			return nil, err
		}
		e.Time = e.Time.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (j *Postgres) Close() error {
	j.pool.Close()
	return nil
}
