package journal

// sqliteSchema stores times as unix milliseconds
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS signals (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	strength REAL NOT NULL,
	entry REAL NOT NULL,
	stop REAL NOT NULL,
	target REAL NOT NULL,
	strategy TEXT NOT NULL,
	reason TEXT NOT NULL,
	outcome TEXT NOT NULL,
	ts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	size REAL NOT NULL,
	pnl REAL NOT NULL,
	fees REAL NOT NULL,
	exit_reason TEXT NOT NULL,
	signal_id TEXT NOT NULL,
	strategy TEXT NOT NULL,
	opened_at INTEGER NOT NULL,
	closed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	ts INTEGER NOT NULL,
	equity REAL NOT NULL,
	realized_pnl_today REAL NOT NULL,
	drawdown_pct REAL NOT NULL,
	open_positions INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_events (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	kind TEXT NOT NULL,
	rule TEXT NOT NULL,
	reason TEXT NOT NULL,
	ts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_stats (
	day TEXT PRIMARY KEY,
	start_equity REAL NOT NULL,
	end_equity REAL NOT NULL,
	realized_pnl REAL NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_closed ON trades(closed_at);
CREATE INDEX IF NOT EXISTS idx_equity_ts ON equity(ts);
CREATE INDEX IF NOT EXISTS idx_risk_events_ts ON risk_events(ts);
`

var postgresSchema = []string{
	`create table if not exists signals (
		id text primary key,
		symbol text not null,
		direction text not null,
		strength double precision not null,
		entry double precision not null,
		stop double precision not null,
		target double precision not null,
		strategy text not null,
		reason text not null,
		outcome text not null,
		ts timestamptz not null
	)`,
	`create table if not exists trades (
		id text primary key,
		symbol text not null,
		side text not null,
		entry_price double precision not null,
		exit_price double precision not null,
		size double precision not null,
		pnl double precision not null,
		fees double precision not null,
		exit_reason text not null,
		signal_id text not null,
		strategy text not null,
		opened_at timestamptz not null,
		closed_at timestamptz not null
	)`,
	`create table if not exists equity (
		ts timestamptz not null,
		equity double precision not null,
		realized_pnl_today double precision not null,
		drawdown_pct double precision not null,
		open_positions integer not null
	)`,
	`create table if not exists risk_events (
		id text primary key,
		symbol text not null,
		kind text not null,
		rule text not null,
		reason text not null,
		ts timestamptz not null
	)`,
	`create table if not exists daily_stats (
		day date primary key,
		start_equity double precision not null,
		end_equity double precision not null,
		realized_pnl double precision not null,
		trades integer not null,
		wins integer not null,
		losses integer not null
	)`,
	`create index if not exists idx_trades_closed on trades(closed_at)`,
	`create index if not exists idx_equity_ts on equity(ts)`,
	`create index if not exists idx_risk_events_ts on risk_events(ts)`,
}
