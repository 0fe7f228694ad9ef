package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// GetOrder returns a single order record by ID.
func (j *SQLite) GetOrder(orderID string) (OrderRecord, error) {
	var rec OrderRecord

	row := j.db.QueryRow(`
		SELECT order_id, symbol, side, volume, price, stop_loss, take_profit, multiplier, atr, ticket, reason, time
		FROM orders
		WHERE order_id = ?`, orderID)

	err := row.Scan(
		&rec.OrderID,
		&rec.Symbol,
		&rec.Side,
		&rec.Volume,
		&rec.Price,
		&rec.StopLoss,
		&rec.TakeProfit,
		&rec.Multiplier,
		&rec.ATR,
		&rec.Ticket,
		&rec.Reason,
		&rec.Time,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return OrderRecord{}, fmt.Errorf("order %q not found", orderID)
		}
		return OrderRecord{}, err
	}
	return rec, nil
}

// ListOrdersBetween returns fills whose time is within [start, end).
func (j *SQLite) ListOrdersBetween(start, end time.Time) ([]OrderRecord, error) {
	rows, err := j.db.Query(`
		SELECT order_id, symbol, side, volume, price, stop_loss, take_profit, multiplier, atr, ticket, reason, time
		FROM orders
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var rec OrderRecord
		if err := rows.Scan(
			&rec.OrderID,
			&rec.Symbol,
			&rec.Side,
			&rec.Volume,
			&rec.Price,
			&rec.StopLoss,
			&rec.TakeProfit,
			&rec.Multiplier,
			&rec.ATR,
			&rec.Ticket,
			&rec.Reason,
			&rec.Time,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListClosesBetween returns closes whose time is within [start, end).
func (j *SQLite) ListClosesBetween(start, end time.Time) ([]CloseRecord, error) {
	rows, err := j.db.Query(`
		SELECT ticket, symbol, volume, price, profit, partial, reason, time
		FROM closes
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CloseRecord
	for rows.Next() {
		var rec CloseRecord
		if err := rows.Scan(
			&rec.Ticket,
			&rec.Symbol,
			&rec.Volume,
			&rec.Price,
			&rec.Profit,
			&rec.Partial,
			&rec.Reason,
			&rec.Time,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBlocksBetween returns blocked orders within [start, end), newest last.
func (j *SQLite) ListBlocksBetween(start, end time.Time) ([]BlockRecord, error) {
	rows, err := j.db.Query(`
		SELECT symbol, action, code, detail, time
		FROM blocks
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BlockRecord
	for rows.Next() {
		var rec BlockRecord
		if err := rows.Scan(&rec.Symbol, &rec.Action, &rec.Code, &rec.Detail, &rec.Time); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DaySummary aggregates a day's closes and blocks.
type DaySummary struct {
	Day         string
	Closes      int
	Partials    int
	RealizedPL  float64
	Blocks      int
	BlocksByTag map[string]int
}

// SummarizeDay builds a DaySummary for the UTC day containing t.
func (j *SQLite) SummarizeDay(t time.Time) (DaySummary, error) {
	day := t.UTC().Truncate(24 * time.Hour)
	next := day.Add(24 * time.Hour)

	closes, err := j.ListClosesBetween(day, next)
	if err != nil {
		return DaySummary{}, err
	}
	blocks, err := j.ListBlocksBetween(day, next)
	if err != nil {
		return DaySummary{}, err
	}

	s := DaySummary{
		Day:         day.Format("2006-01-02"),
		Closes:      len(closes),
		Blocks:      len(blocks),
		BlocksByTag: map[string]int{},
	}
	for _, c := range closes {
		s.RealizedPL += c.Profit
		if c.Partial {
			s.Partials++
		}
	}
	for _, b := range blocks {
		s.BlocksByTag[b.Code]++
	}
	return s, nil
}
