package journal

const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	volume REAL NOT NULL,
	price REAL NOT NULL,
	stop_loss REAL NOT NULL,
	take_profit REAL NOT NULL,
	multiplier REAL NOT NULL,
	atr REAL NOT NULL,
	ticket INTEGER NOT NULL,
	reason TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS closes (
	ticket INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	volume REAL NOT NULL,
	price REAL NOT NULL,
	profit REAL NOT NULL,
	partial INTEGER NOT NULL,
	reason TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS blocks (
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	code TEXT NOT NULL,
	detail TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL,
	margin_level REAL NOT NULL,
	positions INTEGER NOT NULL,
	halted INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_closes_time ON closes(time);
CREATE INDEX IF NOT EXISTS idx_blocks_time ON blocks(time);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
