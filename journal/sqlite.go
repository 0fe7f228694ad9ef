package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(order_id, symbol, side, volume, price, stop_loss, take_profit, multiplier, atr, ticket, reason, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.Symbol, o.Side, o.Volume, o.Price, o.StopLoss,
		o.TakeProfit, o.Multiplier, o.ATR, o.Ticket, o.Reason, o.Time,
	)
	return err
}

func (j *SQLite) RecordClose(c CloseRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO closes
		(ticket, symbol, volume, price, profit, partial, reason, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Ticket, c.Symbol, c.Volume, c.Price, c.Profit, c.Partial, c.Reason, c.Time,
	)
	return err
}

func (j *SQLite) RecordBlock(b BlockRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO blocks (symbol, action, code, detail, time)
		VALUES (?, ?, ?, ?, ?)`,
		b.Symbol, b.Action, b.Code, b.Detail, b.Time,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, balance, equity, margin_level, positions, halted)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time, e.Balance, e.Equity, e.MarginLevel, e.Positions, e.Halted,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
