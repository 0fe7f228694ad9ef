// Package venue defines the contract with the trading venue: prices, account
// metrics, positions, order primitives, and indicator reads. The controller
// only ever talks to this interface; the live adapter and the in-memory sim
// both satisfy it.
package venue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Side of a trade or position.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// Timeframe for indicator and bar queries.
type Timeframe int

const (
	M1 Timeframe = iota
	M5
	M15
)

func (tf Timeframe) String() string {
	switch tf {
	case M1:
		return "M1"
	case M15:
		return "M15"
	}
	return "M5"
}

// ParseTimeframe maps a config string to a Timeframe.
func ParseTimeframe(s string) (Timeframe, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M1":
		return M1, true
	case "M5":
		return M5, true
	case "M15":
		return M15, true
	}
	return M5, false
}

// StrategyIdentity selects this controller's positions among everything on
// the account. Set once at start, never mutated.
type StrategyIdentity struct {
	Symbol string
	Magic  int
}

// Tick is a top-of-book quote.
type Tick struct {
	Bid          float64
	Ask          float64
	SpreadPoints float64
	Time         time.Time
}

// Account is a snapshot of account-level metrics.
type Account struct {
	Login       int64
	Balance     float64
	Equity      float64
	MarginLevel float64 // percent; zero when no margin is in use
}

// SymbolInfo carries the instrument metadata sizing needs.
type SymbolInfo struct {
	Point      float64
	Digits     int
	VolumeStep float64
	VolumeMin  float64
}

// Position is the venue's view of one open position. The venue owns this
// state; after any mutating call the caller must re-read it rather than
// trust a stale copy (fills and stop-outs happen concurrently).
type Position struct {
	Ticket     int64
	Side       Side
	Volume     float64
	OpenPrice  float64
	StopLoss   float64 // zero = none
	TakeProfit float64 // zero = none
	Profit     float64 // account currency, informational
	OpenTime   time.Time
}

// OrderRequest is a market order with protective levels.
type OrderRequest struct {
	Symbol          string
	Side            Side
	Volume          float64
	StopLoss        float64 // zero = none
	TakeProfit      float64 // zero = none
	DeviationPoints int
	Magic           int
	Comment         string
}

// OrderResult reports a fill.
type OrderResult struct {
	Ticket int64
	Price  float64
	Volume float64
}

// Venue result codes, modeled on the platform's trade return codes.
const (
	CodeDone         = 10009
	CodeRequote      = 10004
	CodeInvalidStops = 10016
	CodeMarketClosed = 10018
	CodeNoMoney      = 10019
	CodePositionGone = 10036
)

// Error is a failed venue operation carrying the platform result code so it
// can be logged verbatim.
type Error struct {
	Op   string
	Code int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("venue %s: code=%d %s", e.Op, e.Code, e.Msg)
}

// Code extracts the venue result code from err, or zero.
func Code(err error) int {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return 0
}

// ErrNoPrice is returned when no quote exists for the instrument yet.
var ErrNoPrice = errors.New("venue: no price")

// Venue is the full collaborator contract. All calls are synchronous and
// expected to return quickly; none blocks indefinitely.
type Venue interface {
	Tick(ctx context.Context, symbol string) (Tick, error)
	Account(ctx context.Context) (Account, error)
	SymbolInfo(ctx context.Context, symbol string) (SymbolInfo, error)

	Positions(ctx context.Context, id StrategyIdentity) ([]Position, error)
	Position(ctx context.Context, ticket int64) (Position, bool, error)

	SubmitMarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit float64) error
	// ClosePosition closes volume lots of the position; volume below the
	// position's size is a partial close.
	ClosePosition(ctx context.Context, ticket int64, volume float64) error

	// ProfitForTrade simulates the monetary P&L of volume lots moving from
	// openPrice to closePrice.
	ProfitForTrade(ctx context.Context, symbol string, side Side, volume, openPrice, closePrice float64) (float64, error)

	ATR(ctx context.Context, symbol string, tf Timeframe, period int) (float64, error)
	// BarRange reports high-low of the bar at shift (0 = current, 1 = last
	// completed) on the given timeframe.
	BarRange(ctx context.Context, symbol string, tf Timeframe, shift int) (float64, error)

	ServerTime() time.Time
	GMTOffsetSec() int
}
