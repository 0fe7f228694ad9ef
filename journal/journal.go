// Package journal records everything the controller does to the account:
// fills, closes, blocked orders, and equity snapshots.
package journal

import "time"

type OrderRecord struct {
	OrderID    string
	Symbol     string
	Side       string
	Volume     float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
	Multiplier float64
	ATR        float64
	Ticket     int64
	Reason     string
	Time       time.Time
}

type CloseRecord struct {
	Ticket  int64
	Symbol  string
	Volume  float64
	Price   float64
	Profit  float64
	Partial bool
	Reason  string
	Time    time.Time
}

type BlockRecord struct {
	Symbol string
	Action string
	Code   string
	Detail string
	Time   time.Time
}

type EquitySnapshot struct {
	Time        time.Time
	Balance     float64
	Equity      float64
	MarginLevel float64
	Positions   int
	Halted      bool
}

type Journal interface {
	RecordOrder(OrderRecord) error
	RecordClose(CloseRecord) error
	RecordBlock(BlockRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop is used when journaling is disabled.
type Nop struct{}

func (Nop) RecordOrder(OrderRecord) error     { return nil }
func (Nop) RecordClose(CloseRecord) error     { return nil }
func (Nop) RecordBlock(BlockRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }
