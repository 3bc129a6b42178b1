package journal

// Schema creates the journal tables. Monetary columns are stored as TEXT so
// decimal values round-trip exactly.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	timestamp DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	price TEXT NOT NULL,
	quantity TEXT NOT NULL,
	pnl TEXT NOT NULL,
	trigger_reason TEXT NOT NULL,
	fee_usd TEXT NOT NULL,
	balance TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS signals (
	timestamp DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	signal TEXT NOT NULL,
	price TEXT NOT NULL,
	trigger_met INTEGER NOT NULL,
	blocked_reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	timestamp DATETIME NOT NULL,
	conservative_value TEXT NOT NULL,
	aggressive_value TEXT NOT NULL,
	total_value TEXT NOT NULL,
	cash TEXT NOT NULL,
	open_positions INTEGER NOT NULL,
	total_trades INTEGER NOT NULL,
	daily_loss TEXT NOT NULL,
	total_loss TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_time ON trades(timestamp);
CREATE INDEX IF NOT EXISTS idx_signals_time ON signals(timestamp);
CREATE INDEX IF NOT EXISTS idx_snapshots_time ON snapshots(timestamp);
`
